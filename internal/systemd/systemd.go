package systemd

import (
	"context"

	"github.com/canonical/falco-agent/internal/runner"
)

// Manager provides operations against the local service supervisor
type Manager interface {
	// Enable enables the unit for boot-time start
	Enable(ctx context.Context, unit string) error
	// Disable disables the unit
	Disable(ctx context.Context, unit string) error
	// Stop stops the unit
	Stop(ctx context.Context, unit string) error
	// Restart restarts the unit
	Restart(ctx context.Context, unit string) error
	// DaemonReload reloads the systemd unit database
	DaemonReload(ctx context.Context) error
	// IsActive reports whether the unit is currently running
	IsActive(ctx context.Context, unit string) bool
}

// Client implements Manager by shelling out to systemctl
type Client struct {
	run runner.Runner
}

// NewClient creates a systemd client backed by the given runner.
func NewClient(run runner.Runner) *Client {
	return &Client{run: run}
}

func (c *Client) systemctl(ctx context.Context, args ...string) error {
	return c.run.Run(ctx, runner.Command{Name: "systemctl", Args: args})
}

// Enable enables the unit for boot-time start.
func (c *Client) Enable(ctx context.Context, unit string) error {
	return c.systemctl(ctx, "enable", unit)
}

// Disable disables the unit.
func (c *Client) Disable(ctx context.Context, unit string) error {
	return c.systemctl(ctx, "disable", unit)
}

// Stop stops the unit.
func (c *Client) Stop(ctx context.Context, unit string) error {
	return c.systemctl(ctx, "stop", unit)
}

// Restart restarts the unit.
func (c *Client) Restart(ctx context.Context, unit string) error {
	return c.systemctl(ctx, "restart", unit)
}

// DaemonReload reloads the systemd unit database.
func (c *Client) DaemonReload(ctx context.Context) error {
	return c.systemctl(ctx, "daemon-reload")
}

// IsActive reports whether the unit is currently running.
// is-active exits non-zero for inactive units; that is not an error.
func (c *Client) IsActive(ctx context.Context, unit string) bool {
	return c.systemctl(ctx, "is-active", "--quiet", unit) == nil
}
