// Package orchestrator selects among a chain of backends, probing
// availability, failing over on backend-liveness errors, and serializing
// per-backend state transitions: iterate candidates in order, probe
// each, and generate on the first one that reports available.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shellsage/shellsage/internal/backend"
	"github.com/shellsage/shellsage/internal/shelldomain"
	"github.com/shellsage/shellsage/internal/shellerr"
)

// status is a backend's liveness state in the orchestrator's view.
type status int

const (
	unknown status = iota
	probing
	available
	unavailable
)

// probeValidity bounds how long a cached Available/Unavailable verdict
// is trusted before the orchestrator re-probes, mirroring the remote
// backend's own probe-cache TTL so the two layers don't fight.
const probeValidity = 30 * time.Second

type backendState struct {
	mu       sync.Mutex
	st       status
	probedAt time.Time
}

// Orchestrator holds an ordered backend chain and the per-backend
// liveness state machine: Unknown -> Probing -> Available|Unavailable,
// with Available/Unavailable expiring back to a re-probe after
// probeValidity.
type Orchestrator struct {
	chain  []namedBackend
	states []*backendState
}

type namedBackend struct {
	label string
	b     backend.Backend
}

// New builds an orchestrator from a primary backend and an ordered list
// of fallbacks. Labels come from each backend's Info().Name.
func New(primary backend.Backend, fallbacks ...backend.Backend) *Orchestrator {
	all := append([]backend.Backend{primary}, fallbacks...)
	o := &Orchestrator{}
	for _, b := range all {
		o.chain = append(o.chain, namedBackend{label: b.Info().Name, b: b})
		o.states = append(o.states, &backendState{})
	}
	return o
}

// outcome captures why a candidate backend didn't serve a request, for
// the chain-outcome summary attached to a total failure.
type outcome struct {
	label string
	err   error
}

// Generate tries each backend in chain order: skip unavailable ones,
// call Generate on the first available one. A failover-eligible error
// continues to the next backend and flips that backend's state to
// Unavailable; any other error (or success) returns immediately. If
// every backend fails, the first failover-eligible error seen is
// returned, with the chain outcome summary attached as its cause.
func (o *Orchestrator) Generate(ctx context.Context, req shelldomain.Request) (shelldomain.GeneratedCommand, error) {
	var outcomes []outcome
	var firstFailoverErr error

	for i, nb := range o.chain {
		if !o.isAvailableIndexed(ctx, i) {
			outcomes = append(outcomes, outcome{label: nb.label, err: fmt.Errorf("not available")})
			continue
		}

		cmd, err := nb.b.Generate(ctx, req)
		if err == nil {
			cmd.BackendLabel = nb.label
			o.markAvailable(i)
			return cmd, nil
		}

		if backend.FailoverEligible(err) {
			o.markUnavailable(i)
			outcomes = append(outcomes, outcome{label: nb.label, err: err})
			if firstFailoverErr == nil {
				firstFailoverErr = err
			}
			continue
		}

		// Not failover-eligible: request- or artifact-specific, surface
		// immediately without trying the rest of the chain.
		return shelldomain.GeneratedCommand{}, err
	}

	if firstFailoverErr == nil {
		firstFailoverErr = shellerr.BackendUnavailableErr("orchestrator.Generate", fmt.Errorf("no backend configured"))
	}
	return shelldomain.GeneratedCommand{}, shellerr.New(
		failoverKind(firstFailoverErr),
		"orchestrator.Generate",
		summarizeOutcomes(outcomes),
	)
}

// failoverKind recovers the Kind of the first failover-eligible error
// seen, so a total-chain failure reports what actually went wrong
// (NetworkFailure, Timeout, ...) instead of always claiming
// BackendUnavailable.
func failoverKind(err error) shellerr.Kind {
	var typed *shellerr.Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return shellerr.BackendUnavailable
}

func summarizeOutcomes(outcomes []outcome) error {
	var b strings.Builder
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", o.label, o.err)
	}
	return fmt.Errorf("all backends failed: %s", b.String())
}

func (o *Orchestrator) isAvailableIndexed(ctx context.Context, i int) bool {
	st := o.states[i]
	st.mu.Lock()
	if st.st == available || st.st == unavailable {
		if time.Since(st.probedAt) < probeValidity {
			ok := st.st == available
			st.mu.Unlock()
			return ok
		}
	}
	st.st = probing
	st.mu.Unlock()

	ok := o.chain[i].b.IsAvailable(ctx)

	st.mu.Lock()
	if ok {
		st.st = available
	} else {
		st.st = unavailable
	}
	st.probedAt = time.Now()
	st.mu.Unlock()
	return ok
}

func (o *Orchestrator) markAvailable(i int) {
	st := o.states[i]
	st.mu.Lock()
	st.st = available
	st.probedAt = time.Now()
	st.mu.Unlock()
}

func (o *Orchestrator) markUnavailable(i int) {
	st := o.states[i]
	st.mu.Lock()
	st.st = unavailable
	st.probedAt = time.Now()
	st.mu.Unlock()
}

// Shutdown releases every backend in the chain, returning the first
// error encountered but attempting all of them regardless.
func (o *Orchestrator) Shutdown() error {
	var firstErr error
	for _, nb := range o.chain {
		if err := nb.b.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
