package llm

import (
	"context"
	"time"
)

// timeoutGenerator bounds every call to the wrapped Generator.
type timeoutGenerator struct {
	inner   Generator
	timeout time.Duration
}

// WithTimeout wraps a Generator so each call carries its own deadline. For
// streaming calls the deadline covers the whole stream; the timer is released
// when the stream drains.
func WithTimeout(g Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		return g
	}
	return &timeoutGenerator{inner: g, timeout: timeout}
}

func (t *timeoutGenerator) Generate(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, messages)
}

func (t *timeoutGenerator) GenerateStream(ctx context.Context, messages []Message) (<-chan string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)

	chunks, err := t.inner.GenerateStream(ctx, messages)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer cancel()
		defer close(out)
		for chunk := range chunks {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
