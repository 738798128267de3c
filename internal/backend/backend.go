// Package backend defines the capability set shared by every inference
// backend (embedded or remote) and the orchestrator's error-classification
// policy, so neither embeddedbackend nor remotebackend needs to import the
// orchestrator (or each other) to satisfy it.
package backend

import (
	"context"

	"github.com/shellsage/shellsage/internal/shelldomain"
	"github.com/shellsage/shellsage/internal/shellerr"
)

// Backend is the polymorphic inference capability set: embedded-cpu,
// embedded-accel, remote-openai-compatible and remote-local-api all
// satisfy it, and the orchestrator operates only through this interface.
type Backend interface {
	// Generate performs end-to-end inference for req. May suspend on
	// network or CPU-bound work; must observe ctx cancellation.
	Generate(ctx context.Context, req shelldomain.Request) (shelldomain.GeneratedCommand, error)

	// IsAvailable is fast and non-suspending: it must not perform I/O
	// beyond reading in-process state (a cached probe result).
	IsAvailable(ctx context.Context) bool

	// Info reports static identity: label, variant, model id, and
	// whether a model is currently loaded.
	Info() Info

	// Shutdown releases heavy resources. Idempotent.
	Shutdown() error
}

// Info describes a backend's static identity for diagnostics and for
// info()'s documented device-choice disclosure.
type Info struct {
	Name    string
	Variant string
	ModelID string
	Loaded  bool
}

// FailoverEligible reports whether err indicates the backend itself is
// unreachable or unusable right now (as opposed to the request or
// artifact being the problem), so the orchestrator knows when to try
// the next backend in the chain rather than surface the error directly.
func FailoverEligible(err error) bool {
	switch {
	case shellerr.Of(err, shellerr.BackendUnavailable):
		return true
	case shellerr.Of(err, shellerr.NetworkFailure):
		return true
	case shellerr.Of(err, shellerr.Timeout):
		return true
	default:
		return false
	}
}
