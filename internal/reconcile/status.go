package reconcile

import "log/slog"

// State is the coarse health bucket of a reported status.
type State string

const (
	StateMaintenance State = "maintenance"
	StateBlocked     State = "blocked"
	StateActive      State = "active"
)

// Status is the externally visible outcome of a reconciliation pass. It is
// recomputed on every event and never persisted.
type Status struct {
	State   State
	Message string
}

var (
	// StatusInstalling is reported while the service is being installed.
	StatusInstalling = Status{State: StateMaintenance, Message: "installing falco service"}
	// StatusRemoving is reported while the service is being removed.
	StatusRemoving = Status{State: StateMaintenance, Message: "removing falco service"}
	// StatusActive is reported when reconciliation converged and the
	// service is running.
	StatusActive = Status{State: StateActive}
	// StatusInvalidConfig is reported for a malformed or unsupported
	// setting repository configuration. User-correctable.
	StatusInvalidConfig = Status{State: StateBlocked, Message: "invalid setting repository configuration"}
	// StatusSyncFailed is reported when the setting repository could not be
	// synced. Retried in full on the next reconciliation.
	StatusSyncFailed = Status{State: StateBlocked, Message: "failed to sync setting repository"}
)

// Reporter receives status transitions. The orchestrator that invokes the
// agent owns real status plumbing; the agent itself ships a logging reporter.
type Reporter interface {
	Report(status Status)
}

// LogReporter implements Reporter by logging transitions.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a Reporter that logs each transition.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs the status transition.
func (r *LogReporter) Report(status Status) {
	r.logger.Info("status", "state", string(status.State), "message", status.Message)
}
