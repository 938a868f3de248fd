package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/canonical/falco-agent/internal/config"
	"github.com/canonical/falco-agent/internal/falco"
	"github.com/canonical/falco-agent/internal/gitrepo"
	"github.com/canonical/falco-agent/internal/runner"
	"github.com/canonical/falco-agent/internal/secrets"
)

// Fixed-name subdirectories of the setting repository treated as override
// sources. Anything else in the repository is ignored.
const (
	rulesSourceDir   = "rules.d"
	configsSourceDir = "config.override.d"
)

// MirrorError indicates the mirror copy of an override directory failed.
type MirrorError struct {
	Source string
	Dest   string
	Err    error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("mirror copy from %s to %s failed: %v", e.Source, e.Dest, e.Err)
}

func (e *MirrorError) Unwrap() error { return e.Err }

// Syncer keeps the local override directories in sync with the setting
// repository. It is constructed fresh on every reconciliation pass and is
// safe to invoke repeatedly: a working copy already matching the reference is
// left untouched, anything else is destroyed and recloned.
type Syncer struct {
	workingDir  string
	git         gitrepo.Client
	provisioner *gitrepo.Provisioner
	run         runner.Runner
	store       secrets.Store
	keyID       string
	logger      *slog.Logger
}

// New creates a Syncer. keyID names the secret holding the clone key and may
// be empty.
func New(workingDir string, git gitrepo.Client, provisioner *gitrepo.Provisioner, run runner.Runner, store secrets.Store, keyID string, logger *slog.Logger) *Syncer {
	return &Syncer{
		workingDir:  workingDir,
		git:         git,
		provisioner: provisioner,
		run:         run,
		store:       store,
		keyID:       keyID,
		logger:      logger,
	}
}

// Sync converges the override directories of layout onto the content of the
// repository named by ref. It returns true when the working copy matches the
// reference on return, false when there is nothing to sync (empty URL or
// host). All failures carry a specific error type for classification by the
// caller.
func (s *Syncer) Sync(ctx context.Context, ref *config.RepoRef, layout *falco.Layout) (bool, error) {
	if s.isSynced(ref) {
		s.logger.Info("setting repository already synced", "url", ref.URL, "ref", ref.Ref)
		return true, nil
	}

	if ref.URL == "" || ref.Host == "" {
		return false, nil
	}

	key, err := s.store.Resolve(ctx, s.keyID)
	if err != nil {
		return false, err
	}
	if err := s.provisioner.Provision(ctx, key, ref.Host); err != nil {
		return false, err
	}

	// Stale partial state is never reused: remove and reclone.
	if _, err := os.Stat(s.workingDir); err == nil {
		s.logger.Info("removing stale working copy", "dir", s.workingDir)
		if err := os.RemoveAll(s.workingDir); err != nil {
			return false, fmt.Errorf("failed to remove working copy: %w", err)
		}
	}

	s.logger.Info("cloning setting repository", "url", ref.URL, "ref", ref.Ref)
	if err := s.git.Clone(ctx, ref.URL, ref.Ref, s.workingDir); err != nil {
		return false, err
	}

	root := filepath.Join(s.workingDir, ref.SubPath)
	for _, m := range []struct {
		src, dst string
	}{
		{filepath.Join(root, rulesSourceDir), layout.RulesDir()},
		{filepath.Join(root, configsSourceDir), layout.ConfigsDir()},
	} {
		if !dirExists(m.src) {
			continue
		}
		if err := s.mirror(ctx, m.src, m.dst); err != nil {
			return false, err
		}
	}

	return true, nil
}

// isSynced reports whether the working copy already matches ref, comparing
// the recorded origin URL and the exact tag at HEAD. Both queries collapse
// failure to "", so a missing clone and an unreadable one are treated alike.
func (s *Syncer) isSynced(ref *config.RepoRef) bool {
	return ref.URL == s.git.RemoteOriginURL(s.workingDir) &&
		ref.Ref == s.git.ExactTag(s.workingDir)
}

// mirror performs a delete-extraneous copy: files present in dst but absent
// from src are removed, so the destination exactly reflects the source.
func (s *Syncer) mirror(ctx context.Context, src, dst string) error {
	s.logger.Info("mirroring overrides", "src", src, "dst", dst)
	err := s.run.Run(ctx, runner.Command{
		Name: "rsync",
		Args: []string{"-a", "--delete", src + "/", dst + "/"},
	})
	if err != nil {
		return &MirrorError{Source: src, Dest: dst, Err: err}
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
