package gitrepo

import "fmt"

// KeyWriteError indicates the SSH private key could not be written.
type KeyWriteError struct {
	Path string
	Err  error
}

func (e *KeyWriteError) Error() string {
	return fmt.Sprintf("failed to write ssh key to %s: %v", e.Path, e.Err)
}

func (e *KeyWriteError) Unwrap() error { return e.Err }

// KeyScanError indicates the remote host key could not be scanned or stored.
type KeyScanError struct {
	Host string
	Err  error
}

func (e *KeyScanError) Error() string {
	return fmt.Sprintf("ssh keyscan failed for host %s: %v", e.Host, e.Err)
}

func (e *KeyScanError) Unwrap() error { return e.Err }

// CloneError indicates the repository could not be cloned.
type CloneError struct {
	URL string
	Err error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("git clone of %s failed: %v", e.URL, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }
