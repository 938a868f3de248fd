package gitrepo

import (
	"context"
	"os"
	"path/filepath"

	"github.com/canonical/falco-agent/internal/runner"
)

// Provisioner writes the SSH private key and a scanned host key entry to
// their well-known locations before any clone attempt. Writes are idempotent:
// partial state from a failed attempt is safely overwritten on the next one.
type Provisioner struct {
	sshDir         string
	keyFile        string
	knownHostsFile string
	run            runner.Runner
}

// NewProvisioner creates a Provisioner writing to the given paths.
func NewProvisioner(sshDir, keyFile, knownHostsFile string, run runner.Runner) *Provisioner {
	return &Provisioner{
		sshDir:         sshDir,
		keyFile:        keyFile,
		knownHostsFile: knownHostsFile,
		run:            run,
	}
}

// Provision writes the private key and the scanned host key for host.
//
// An empty keyContent writes an empty key file: public repositories reachable
// over SSH with host-based trust only are intentionally permitted.
func (p *Provisioner) Provision(ctx context.Context, keyContent, host string) error {
	if err := p.writeKey(keyContent); err != nil {
		return err
	}
	return p.scanHostKey(ctx, host)
}

func (p *Provisioner) writeKey(keyContent string) error {
	if err := os.MkdirAll(p.sshDir, 0o700); err != nil {
		return &KeyWriteError{Path: p.sshDir, Err: err}
	}
	if err := os.WriteFile(p.keyFile, []byte(keyContent), 0o600); err != nil {
		return &KeyWriteError{Path: p.keyFile, Err: err}
	}
	return nil
}

func (p *Provisioner) scanHostKey(ctx context.Context, host string) error {
	out, err := p.run.Output(ctx, runner.Command{
		Name: "ssh-keyscan",
		Args: []string{"-t", "rsa", host},
	})
	if err != nil {
		return &KeyScanError{Host: host, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(p.knownHostsFile), 0o700); err != nil {
		return &KeyScanError{Host: host, Err: err}
	}
	if err := os.WriteFile(p.knownHostsFile, out, 0o600); err != nil {
		return &KeyScanError{Host: host, Err: err}
	}
	return nil
}
