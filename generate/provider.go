package generate

import (
	"context"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plan"
)

// Request is one generation call.
type Request struct {
	Mode plan.Mode
	Text string
	// Settings tunes the prompt. Nil uses the plain mode prompt.
	Settings *entitlement.Settings
}

// Fragment is one piece of streamed output. A fragment with a non-nil Err
// is the last one on its channel.
type Fragment struct {
	Text string
	Err  error
}

// Provider streams a completion. The returned channel is closed when the
// output ends, the upstream fails or ctx is cancelled.
type Provider interface {
	Stream(ctx context.Context, req Request) (<-chan Fragment, error)
}

// ProviderFunc is an adapter to use a plain function as a Provider.
type ProviderFunc func(ctx context.Context, req Request) (<-chan Fragment, error)

// Stream implements Provider.
func (f ProviderFunc) Stream(ctx context.Context, req Request) (<-chan Fragment, error) {
	return f(ctx, req)
}

// Collect drains a stream into a string, stopping at the first error.
func Collect(ch <-chan Fragment) (string, error) {
	var out []byte
	for f := range ch {
		if f.Err != nil {
			return string(out), f.Err
		}
		out = append(out, f.Text...)
	}
	return string(out), nil
}
