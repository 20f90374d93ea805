// Package backend defines the contract between the orchestrator and a streaming
// model provider. Providers live in subpackages; factory picks one from settings.
package backend

import (
	"context"

	"github.com/go-go-golems/marionette/pkg/conversation"
	"github.com/go-go-golems/marionette/pkg/stream"
)

// Request is a single streaming chat call.
type Request struct {
	Model string
	Turns []conversation.Turn
	// Think asks the provider to expose the model's reasoning when it can.
	Think bool
}

// Backend starts a streamed response. The returned stream must be read to io.EOF
// and closed by the caller.
type Backend interface {
	Invoke(ctx context.Context, req Request) (stream.Stream, error)
}

// Func adapts a function to the Backend interface.
type Func func(ctx context.Context, req Request) (stream.Stream, error)

func (f Func) Invoke(ctx context.Context, req Request) (stream.Stream, error) {
	return f(ctx, req)
}
