package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ternlabs/tern/tools"
)

// ErrConfirmationPending means Confirm was called while another
// confirmation was still unresolved. Tool calls resolve sequentially,
// so this indicates a caller bug rather than a user-facing condition.
var ErrConfirmationPending = errors.New("a confirmation is already pending")

// PendingConfirmation is one outstanding approval request. The host UI
// receives it from Gate.Requests, renders it, and calls Resolve exactly
// once. Extra Resolve calls are ignored.
type PendingConfirmation struct {
	Request tools.ConfirmRequest

	once     sync.Once
	decision chan bool
}

// Resolve answers the request. Safe to call more than once; only the
// first call counts.
func (p *PendingConfirmation) Resolve(approved bool) {
	p.once.Do(func() {
		p.decision <- approved
	})
}

// Gate suspends mutating tool calls until the user approves them. It
// implements tools.Confirmer. At most one request is outstanding at a
// time; the sequential tool resolution order guarantees this holds as
// long as a single turn drives the gate.
type Gate struct {
	requests    chan *PendingConfirmation
	pending     atomic.Bool
	autoApprove bool
}

// NewGate creates a Gate. With autoApprove set every request resolves
// immediately as approved without suspending, for unattended runs.
func NewGate(autoApprove bool) *Gate {
	return &Gate{
		requests:    make(chan *PendingConfirmation, 1),
		autoApprove: autoApprove,
	}
}

// Requests returns the channel the host UI reads pending confirmations
// from.
func (g *Gate) Requests() <-chan *PendingConfirmation {
	return g.requests
}

// Confirm suspends until the host resolves the request or ctx is
// cancelled. Cancellation resolves the request as denied.
func (g *Gate) Confirm(ctx context.Context, req tools.ConfirmRequest) (bool, error) {
	if g.autoApprove {
		return true, nil
	}

	if !g.pending.CompareAndSwap(false, true) {
		return false, ErrConfirmationPending
	}
	defer g.pending.Store(false)

	pc := &PendingConfirmation{
		Request:  req,
		decision: make(chan bool, 1),
	}

	select {
	case g.requests <- pc:
	case <-ctx.Done():
		return false, nil
	}

	select {
	case approved := <-pc.decision:
		return approved, nil
	case <-ctx.Done():
		pc.Resolve(false)
		// If the host never picked the request up, withdraw it so it
		// is not replayed ahead of the next real one.
		select {
		case <-g.requests:
		default:
		}
		return false, nil
	}
}
