package contextprovider

import (
	"context"
	"strings"
	"time"

	"redteam/internal/metrics"
	"redteam/pkg/errors"
	"redteam/pkg/logger"
)

// Provider supplies background context for one (strategy, perspective) pair.
// An empty string means no context is available.
type Provider interface {
	Enhance(ctx context.Context, strategy, perspective string) (string, error)
}

// NoOp never returns context.
type NoOp struct{}

func (NoOp) Enhance(context.Context, string, string) (string, error) {
	return "", nil
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, strategy, perspective string) (string, error)

func (f Func) Enhance(ctx context.Context, strategy, perspective string) (string, error) {
	return f(ctx, strategy, perspective)
}

// Guarded bounds a provider with a timeout and converts every failure,
// panics included, into "no context". Its Enhance never returns an error.
type Guarded struct {
	inner   Provider
	timeout time.Duration
	log     *logger.Logger
}

// NewGuarded wraps inner. A nil inner behaves like NoOp.
func NewGuarded(inner Provider, timeout time.Duration) *Guarded {
	if inner == nil {
		inner = NoOp{}
	}
	return &Guarded{
		inner:   inner,
		timeout: timeout,
		log:     logger.Get().Component("context_provider"),
	}
}

type lookup struct {
	text string
	err  error
}

// Enhance returns as soon as the timeout fires, even when the inner provider
// ignores ctx. A late answer is discarded.
func (g *Guarded) Enhance(ctx context.Context, strategy, perspective string) (string, error) {
	if _, ok := g.inner.(NoOp); ok {
		return "", nil
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan lookup, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- lookup{err: errors.Newf("context provider panicked: %v", r)}
			}
		}()
		text, err := g.inner.Enhance(ctx, strategy, perspective)
		done <- lookup{text: text, err: err}
	}()

	var res lookup
	select {
	case res = <-done:
	case <-ctx.Done():
		g.log.Warnw("Context enhancement timed out, continuing without context",
			"perspective", perspective,
			"timeout", g.timeout,
		)
		metrics.RecordContextLookup("timeout")
		return "", nil
	}

	if res.err != nil {
		g.log.Warnw("Context enhancement failed, continuing without context",
			"perspective", perspective,
			"error", res.err,
		)
		metrics.RecordContextLookup("error")
		return "", nil
	}

	text := strings.TrimSpace(res.text)
	if text == "" {
		metrics.RecordContextLookup("empty")
	}
	return text, nil
}
