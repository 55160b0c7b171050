package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/meysamhadeli/scaffai/logging"
	"github.com/meysamhadeli/scaffai/providers/contracts"
)

// Middleware decorates a generator with a cross-cutting concern.
type Middleware func(contracts.IGenerator) contracts.IGenerator

// Wrap applies middlewares in left-to-right order: Wrap(inner, A, B) => A(B(inner)).
func Wrap(inner contracts.IGenerator, mws ...Middleware) contracts.IGenerator {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		out = mws[i](out)
	}
	return out
}

// Timeout bounds every Generate call. An expired deadline is reported as
// ErrGenerationUnavailable; cancellation of the parent context passes through as is.
// A non-positive d disables the bound.
func Timeout(d time.Duration) Middleware {
	return func(next contracts.IGenerator) contracts.IGenerator {
		if d <= 0 {
			return next
		}
		return &timeout{next: next, d: d}
	}
}

type timeout struct {
	next contracts.IGenerator
	d    time.Duration
}

func (t *timeout) Name() string { return t.next.Name() }

func (t *timeout) Generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	text, err := t.next.Generate(callCtx, prompt)
	if err == nil {
		return text, nil
	}
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", contracts.Unavailable(t.next.Name(), context.DeadlineExceeded)
	}
	return "", err
}

// WithLogging logs prompt/response sizes, durations and errors at debug level.
func WithLogging(logger *logging.Logger) Middleware {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(next contracts.IGenerator) contracts.IGenerator {
		return &logged{next: next, log: logger.Component("generator").With("provider", next.Name())}
	}
}

type logged struct {
	next contracts.IGenerator
	log  *logging.Logger
}

func (l *logged) Name() string { return l.next.Name() }

func (l *logged) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	l.log.Debug("generation request", "prompt_bytes", len(prompt))
	text, err := l.next.Generate(ctx, prompt)
	if err != nil {
		l.log.Warn("generation failed", "error", err, "elapsed", time.Since(start).String())
		return text, err
	}
	l.log.Debug("generation response", "bytes", len(text), "elapsed", time.Since(start).String())
	return text, nil
}

type ctxKeyCacheable struct{}

// Cacheable marks ctx so that a Cache middleware may serve and store the call.
// Calls without the mark always reach the provider.
func Cacheable(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyCacheable{}, true)
}

// IsCacheable reports whether ctx was marked with Cacheable.
func IsCacheable(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(ctxKeyCacheable{}).(bool)
	return v
}
