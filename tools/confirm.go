package tools

import (
	"context"
	"errors"
)

// ErrConfirmDenied means the user (or the gate, on cancellation)
// rejected a mutating action. The tool reports it as a failed Result
// and no side effect happens.
var ErrConfirmDenied = errors.New("action denied")

// ConfirmRequest describes a pending mutating action for the user.
type ConfirmRequest struct {
	Tool    string // tool name
	Summary string // one-line description, e.g. `edit main.go (+3 -1 lines)`
	Detail  string // rendered diff or the full command text
}

// Confirmer decides whether a mutating action may proceed. Implemented
// by the agent's confirmation gate; tools call it before any side
// effect.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (bool, error)
}

// AutoApprove is a Confirmer that approves everything. Used when the
// host runs with confirmations disabled.
type AutoApprove struct{}

func (AutoApprove) Confirm(ctx context.Context, req ConfirmRequest) (bool, error) {
	return true, nil
}

// confirm resolves a nil Confirmer to denial-free auto approval and
// normalizes a denied decision into ErrConfirmDenied.
func confirm(ctx context.Context, c Confirmer, req ConfirmRequest) error {
	if c == nil {
		c = AutoApprove{}
	}
	ok, err := c.Confirm(ctx, req)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConfirmDenied
	}
	return nil
}
