package gitrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/canonical/falco-agent/internal/runner"
)

// Client provides the git operations needed to sync the setting repository
type Client interface {
	// Clone performs a shallow clone of url into destDir. A non-empty ref
	// selects a branch or tag; empty clones the default branch.
	Clone(ctx context.Context, url, ref, destDir string) error
	// RemoteOriginURL returns the recorded origin URL of the working copy
	// at dir, or "" if it cannot be determined.
	RemoteOriginURL(dir string) string
	// ExactTag returns the tag pointing exactly at HEAD of the working copy
	// at dir, or "" if there is none or it cannot be determined.
	ExactTag(dir string) string
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct {
	run            runner.Runner
	keyFile        string
	knownHostsFile string
}

// NewShellClient creates a git client that uses the git command with the
// provisioned key and known_hosts files.
func NewShellClient(run runner.Runner, keyFile, knownHostsFile string) *ShellClient {
	return &ShellClient{
		run:            run,
		keyFile:        keyFile,
		knownHostsFile: knownHostsFile,
	}
}

// Clone performs a depth-1 clone of url into destDir.
func (c *ShellClient) Clone(ctx context.Context, url, ref, destDir string) error {
	args := []string{"clone", "--depth", "1", url, destDir}
	if ref != "" {
		args = append(args, "--branch", ref)
	}

	// Host key trust flows through the provisioned files only, never the
	// operator's own SSH configuration. Paths are shell-quoted to prevent
	// injection via crafted filenames.
	sshCmd := fmt.Sprintf("ssh -i %s -o UserKnownHostsFile=%s -o StrictHostKeyChecking=yes -F /dev/null",
		shellQuote(c.keyFile), shellQuote(c.knownHostsFile))

	err := c.run.Run(ctx, runner.Command{
		Name:     "git",
		Args:     args,
		ExtraEnv: []string{"GIT_SSH_COMMAND=" + sshCmd, "GIT_TERMINAL_PROMPT=0"},
	})
	if err != nil {
		return &CloneError{URL: url, Err: err}
	}
	return nil
}

// shellQuote wraps s in single quotes, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
