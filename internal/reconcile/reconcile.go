package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/canonical/falco-agent/internal/config"
	"github.com/canonical/falco-agent/internal/falco"
	"github.com/canonical/falco-agent/internal/gitrepo"
	syncpkg "github.com/canonical/falco-agent/internal/sync"
)

// ErrServiceNotRunning indicates the falco unit is not active after a
// reconciliation attempt. This is unrecoverable from inside the agent: a
// soft blocked status here could mask the daemon being down while reporting
// health, so it propagates as a crash-equivalent error instead.
var ErrServiceNotRunning = errors.New("falco service is not running")

// Event is an orchestrator lifecycle event driving one reconciliation pass.
type Event string

const (
	EventInstall       Event = "install"
	EventUpgrade       Event = "upgrade"
	EventRemove        Event = "remove"
	EventUpdateStatus  Event = "update-status"
	EventConfigChanged Event = "config-changed"
	EventSecretChanged Event = "secret-changed"
)

// ParseEvent validates an event name from the command line.
func ParseEvent(name string) (Event, error) {
	switch e := Event(name); e {
	case EventInstall, EventUpgrade, EventRemove, EventUpdateStatus, EventConfigChanged, EventSecretChanged:
		return e, nil
	default:
		return "", fmt.Errorf("unknown lifecycle event %q", name)
	}
}

// Lifecycle drives the falco unit through its transitions.
type Lifecycle interface {
	Install(ctx context.Context) error
	Remove(ctx context.Context) error
	Configure(ctx context.Context) error
	CheckActive(ctx context.Context) bool
}

// RepoSyncer converges the override directories onto a repository reference.
type RepoSyncer interface {
	Sync(ctx context.Context, ref *config.RepoRef, layout *falco.Layout) (bool, error)
}

// Reconciler converges local on-disk state and the service supervisor to
// match the declared configuration. One pass runs to completion per event;
// the caller serializes events.
type Reconciler struct {
	repoURL  string
	layout   *falco.Layout
	service  Lifecycle
	syncer   RepoSyncer
	reporter Reporter
	logger   *slog.Logger
}

// New creates a Reconciler. repoURL is the raw setting_repo.url value; it is
// parsed fresh on every pass so a bad value surfaces as a blocked status, not
// a construction failure.
func New(repoURL string, layout *falco.Layout, svc Lifecycle, syncer RepoSyncer, reporter Reporter, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repoURL:  repoURL,
		layout:   layout,
		service:  svc,
		syncer:   syncer,
		reporter: reporter,
		logger:   logger,
	}
}

// Run executes one reconciliation pass for the given event. The returned
// error is non-nil only for unrecoverable conditions; every recoverable
// failure is reported as a blocked status instead.
func (r *Reconciler) Run(ctx context.Context, event Event) error {
	r.logger.Info("handling lifecycle event", "event", string(event))

	switch event {
	case EventInstall, EventUpgrade:
		r.reporter.Report(StatusInstalling)
		if err := r.service.Install(ctx); err != nil {
			return err
		}
		return r.reconcileConfig(ctx)

	case EventRemove:
		r.reporter.Report(StatusRemoving)
		return r.service.Remove(ctx)

	case EventUpdateStatus, EventConfigChanged, EventSecretChanged:
		return r.reconcileConfig(ctx)

	default:
		return fmt.Errorf("unknown lifecycle event %q", event)
	}
}

// reconcileConfig validates the declared repository reference, syncs when one
// is present, clears stale overrides when absent, and confirms the service is
// active. It is the single point mapping error kinds to statuses.
func (r *Reconciler) reconcileConfig(ctx context.Context) error {
	ref, err := config.ParseRepoRef(r.repoURL)
	if err != nil {
		r.logger.Warn("invalid setting repository configuration", "error", err)
		r.reporter.Report(StatusInvalidConfig)
		return nil
	}

	if ref == nil {
		// No repository configured: previously synced overrides must not
		// linger.
		if err := r.layout.ClearOverrides(); err != nil {
			r.logger.Error("failed to clear overrides", "error", err)
			r.reporter.Report(StatusSyncFailed)
			return nil
		}
	} else {
		synced, err := r.syncer.Sync(ctx, ref, r.layout)
		if err != nil {
			r.logger.Error("setting repository sync failed", "reason", syncFailureReason(err), "error", err)
			r.reporter.Report(StatusSyncFailed)
			return nil
		}
		if !synced {
			r.logger.Warn("nothing to sync for setting repository", "url", ref.URL, "host", ref.Host)
		}
		// The daemon picks up override changes only via restart, so
		// reconfigure whenever a sync was attempted.
		if err := r.service.Configure(ctx); err != nil {
			return err
		}
	}

	if !r.service.CheckActive(ctx) {
		return ErrServiceNotRunning
	}
	r.reporter.Report(StatusActive)
	return nil
}

// syncFailureReason classifies a sync error for logging.
func syncFailureReason(err error) string {
	var (
		cloneErr    *gitrepo.CloneError
		keyScanErr  *gitrepo.KeyScanError
		keyWriteErr *gitrepo.KeyWriteError
		mirrorErr   *syncpkg.MirrorError
	)
	switch {
	case errors.As(err, &cloneErr):
		return "clone"
	case errors.As(err, &keyScanErr):
		return "ssh-keyscan"
	case errors.As(err, &keyWriteErr):
		return "ssh-key-write"
	case errors.As(err, &mirrorErr):
		return "mirror"
	default:
		return "other"
	}
}
