// Package sandbox executes untrusted, generated strategy source against a
// typed market context and normalizes the outcome into a safe signal. The
// top-level Evaluate never panics and never returns a signal outside
// buy/sell/hold, no matter what the supplied code does.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Engine compiles and runs strategy scripts. Safe for concurrent use; each
// invocation gets its own runtime and shares only the normalization cache.
type Engine struct {
	normalizer *Normalizer
	timeout    time.Duration
	log        zerolog.Logger
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		normalizer: NewNormalizer(),
		timeout:    DefaultTimeout,
		log:        log,
	}
}

// SetTimeout overrides the default per-invocation budget.
func (e *Engine) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// Evaluate runs source once against ec with the engine's default budget.
func (e *Engine) Evaluate(ctx context.Context, source string, ec Context) Result {
	return e.EvaluateTimeout(ctx, source, ec, e.timeout)
}

// EvaluateTimeout is Evaluate with a per-invocation time budget. Every
// failure mode degrades to a hold result with an explanatory reason.
func (e *Engine) EvaluateTimeout(ctx context.Context, source string, ec Context, limit time.Duration) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("sandbox panic recovered")
			res = holdOnError(fmt.Errorf("%v", r))
		}
	}()

	executable, err := e.normalizer.Normalize(source)
	if err != nil {
		return holdOnError(err)
	}

	vm := newRuntime()
	raw, err := runWithTimeout(ctx, vm, limit, func() (any, error) {
		return run(vm, executable, ec)
	})
	if err != nil {
		return holdOnError(err)
	}
	return validateResult(raw)
}
