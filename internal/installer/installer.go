package installer

import (
	"context"
	"sync"

	"github.com/jstrand/preflight/internal/api"
)

// StateSource provides a cheap, locally cached view of the metadata registry.
// The view may lag behind the authoritative store.
type StateSource interface {
	State() *api.ClusterState
}

// Store issues create requests against the authoritative metadata registry.
// Each call performs exactly one round-trip and invokes done exactly once,
// possibly on a different goroutine.
type Store interface {
	CreateIndex(ctx context.Context, name string, spec api.IndexSpec, done func(error))
	PutTemplate(ctx context.Context, name string, spec api.TemplateSpec, done func(error))
}

// Outcome is the terminal result of one provisioning request.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeAlreadyExists
	OutcomeFailed
)

// classify maps a store error to an install outcome. Two nodes can both
// observe the resource as absent and both attempt creation; the loser's
// already-exists failure counts as success because the resource is present
// either way. Every other failure propagates untouched.
func classify(err error) (Outcome, error) {
	switch {
	case err == nil:
		return OutcomeCreated, nil
	case api.IsAlreadyExists(err):
		return OutcomeAlreadyExists, nil
	default:
		return OutcomeFailed, err
	}
}

// Installer makes the internal index and audit template present in the
// registry. All entry points are idempotent and notify done exactly once,
// with nil on success or the unmodified cause on failure. It holds no locks:
// concurrent installers on other nodes are reconciled by the already-exists
// rule alone.
type Installer struct {
	Source StateSource
	Store  Store
}

// EnsureIndexInstalled creates the current internal index unless the snapshot
// already shows it. When nothing is required no store request is made.
func (i *Installer) EnsureIndexInstalled(ctx context.Context, done func(error)) {
	done = fireOnce(done)

	if HaveLatestIndex(i.Source.State()) {
		done(nil)
		return
	}

	i.Store.CreateIndex(ctx, LatestIndexName, InternalIndexSpec(), func(err error) {
		_, err = classify(err)
		done(err)
	})
}

// EnsureAuditTemplateInstalled installs the audit template unless the
// snapshot already shows it at the expected version or newer.
func (i *Installer) EnsureAuditTemplateInstalled(ctx context.Context, done func(error)) {
	done = fireOnce(done)

	if HaveLatestAuditTemplate(i.Source.State()) {
		done(nil)
		return
	}

	i.Store.PutTemplate(ctx, AuditTemplateName, AuditTemplateSpec(), func(err error) {
		_, err = classify(err)
		done(err)
	})
}

// EnsureInstalled runs the index step and then the template step, in that
// order. The template step always re-evaluates its own check, even when the
// index step skipped - skipping one must not skip the other. The first
// failure is surfaced without attempting the next step.
func (i *Installer) EnsureInstalled(ctx context.Context, done func(error)) {
	done = fireOnce(done)

	i.EnsureIndexInstalled(ctx, func(err error) {
		if err != nil {
			done(err)
			return
		}
		i.EnsureAuditTemplateInstalled(ctx, done)
	})
}

// fireOnce guards a completion callback so it fires at most once regardless
// of how the store behaves.
func fireOnce(done func(error)) func(error) {
	var once sync.Once
	return func(err error) {
		once.Do(func() { done(err) })
	}
}
