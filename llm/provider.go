package llm

import "context"

// StreamProvider is the interface implemented by provider adapters.
// Stream returns a channel of events for one model call. The channel
// is closed after either a StreamFinish or a StreamError event. Errors
// establishing the stream are returned directly; errors after that
// arrive as a StreamError event.
type StreamProvider interface {
	Name() string
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
}

// Closer is an optional interface for adapters that hold resources.
type Closer interface {
	Close() error
}
