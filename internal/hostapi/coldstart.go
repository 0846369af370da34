package hostapi

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/novasandbox/internal/callback"
	"github.com/oriys/novasandbox/internal/pool"
	"github.com/oriys/novasandbox/internal/sandbox"
)

// coldStartParams carries everything a fresh child needs to reach the
// same state as every other warm supervisor serving the same script key:
// the source to compile and every constant/function bound so far.
// internal/pool's Factory signature only receives a context, so a session
// passes this through context values rather than changing pool's API.
type coldStartParams struct {
	extension    string
	source       string
	memoryCap    int64
	callDeadline time.Duration
	parent       *callback.ParentTable
	bindings     []binding
}

type coldStartKey struct{}

func withColdStart(ctx context.Context, p coldStartParams) context.Context {
	return context.WithValue(ctx, coldStartKey{}, p)
}

func coldStartFrom(ctx context.Context) (coldStartParams, bool) {
	p, ok := ctx.Value(coldStartKey{}).(coldStartParams)
	return p, ok
}

// coldStart is the pool.Factory every Host installs. It forks a new
// supervisor, drives it through the lockdown handshake, replays every
// constant/function binding recorded so far, then compiles the script so
// the returned supervisor is immediately callable.
func (h *Host) coldStart(ctx context.Context) (pool.Supervisor, error) {
	params, ok := coldStartFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("hostapi: cold start requested without parameters")
	}

	sup := sandbox.New(params.extension, sandbox.Config{
		MemoryCapBytes: params.memoryCap,
		CallDeadline:   params.callDeadline,
		Limits:         wireLimitsFromConfig(h.cfg),
		ExecutablePath: h.cfg.SandboxChildBinary,
	}, params.parent)

	if err := sup.Initialize(ctx, params.memoryCap); err != nil {
		return nil, fmt.Errorf("hostapi: initialize sandbox: %w", err)
	}

	for _, b := range params.bindings {
		if err := b.apply(ctx, sup); err != nil {
			sup.Destroy()
			return nil, fmt.Errorf("hostapi: replay binding %q: %w", b.name, err)
		}
	}

	if err := sup.CompileScript(ctx, params.source); err != nil {
		sup.Destroy()
		return nil, fmt.Errorf("hostapi: compile script: %w", err)
	}
	return sup, nil
}
