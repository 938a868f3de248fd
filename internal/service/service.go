package service

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/canonical/falco-agent/internal/falco"
	"github.com/canonical/falco-agent/internal/systemd"
)

// UnitName is the fixed name of the Falco service unit.
const UnitName = "falco.service"

// DefaultUnitDir is where system unit files live.
const DefaultUnitDir = "/etc/systemd/system"

const (
	unitTemplate   = "falco.service.tmpl"
	configTemplate = "falco.yaml.tmpl"
)

// Service drives the Falco unit through install, configure and remove
// transitions, composing config-file and unit-file rendering with supervisor
// calls.
type Service struct {
	layout  *falco.Layout
	systemd systemd.Manager
	unitDir string
	logger  *slog.Logger
}

// New creates a Service for the given layout. unitDir is where the rendered
// unit file is placed; production callers pass DefaultUnitDir.
func New(layout *falco.Layout, sysd systemd.Manager, unitDir string, logger *slog.Logger) *Service {
	return &Service{
		layout:  layout,
		systemd: sysd,
		unitDir: unitDir,
		logger:  logger,
	}
}

// UnitFile returns the path of the rendered unit file.
func (s *Service) UnitFile() string {
	return filepath.Join(s.unitDir, UnitName)
}

// Install renders the config and unit files, configures the service, and
// enables it for boot-time start.
func (s *Service) Install(ctx context.Context) error {
	s.logger.Info("installing falco service", "unit", UnitName)

	if err := s.renderConfig(); err != nil {
		return err
	}
	if err := s.renderUnit(); err != nil {
		return err
	}
	if err := s.Configure(ctx); err != nil {
		return err
	}
	if err := s.systemd.Enable(ctx, UnitName); err != nil {
		return err
	}

	s.logger.Info("falco service installed")
	return nil
}

// Remove stops and disables the unit and deletes the rendered files.
func (s *Service) Remove(ctx context.Context) error {
	s.logger.Info("removing falco service", "unit", UnitName)

	if err := s.systemd.Stop(ctx, UnitName); err != nil {
		return err
	}
	if err := s.systemd.Disable(ctx, UnitName); err != nil {
		return err
	}
	if err := s.systemd.DaemonReload(ctx); err != nil {
		return err
	}
	if err := removeFile(s.layout.ConfigFile()); err != nil {
		return err
	}
	if err := removeFile(s.UnitFile()); err != nil {
		return err
	}

	s.logger.Info("falco service removed")
	return nil
}

// Configure reloads the unit database and restarts the unit. Falco has no
// hot-reload contract for rule files, so any override change requires a full
// restart.
func (s *Service) Configure(ctx context.Context) error {
	s.logger.Info("configuring falco service", "unit", UnitName)

	if err := s.systemd.DaemonReload(ctx); err != nil {
		return err
	}
	return s.systemd.Restart(ctx, UnitName)
}

// CheckActive reports whether the unit is currently running.
func (s *Service) CheckActive(ctx context.Context) bool {
	return s.systemd.IsActive(ctx, UnitName)
}

func (s *Service) renderConfig() error {
	return renderTemplate(configTemplate, s.layout.ConfigFile(), map[string]string{
		"DefaultRulesDir": s.layout.DefaultRulesDir(),
		"RulesDir":        s.layout.RulesDir(),
		"ConfigsDir":      s.layout.ConfigsDir(),
		"PluginsDir":      s.layout.PluginsDir(),
	})
}

func (s *Service) renderUnit() error {
	return renderTemplate(unitTemplate, s.UnitFile(), map[string]string{
		"Command":    s.layout.Cmd(),
		"ConfigFile": s.layout.ConfigFile(),
		"Home":       s.layout.Home(),
	})
}
