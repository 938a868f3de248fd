package activation

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// Systemd passes activated file descriptors starting at fd 3
// (0=stdin, 1=stdout, 2=stderr).
const listenFD = 3

// Listener returns the systemd-activated listener for the trigger endpoint,
// or nil when the process was not socket activated (or the activation is for
// a different process). The agent only ever declares a single listen socket.
func Listener() (net.Listener, error) {
	pidStr := os.Getenv("LISTEN_PID")
	if pidStr == "" {
		return nil, nil
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_PID %q: %w", pidStr, err)
	}
	if pid != os.Getpid() {
		return nil, nil
	}

	numFDs, err := strconv.Atoi(os.Getenv("LISTEN_FDS"))
	if err != nil || numFDs < 1 {
		return nil, nil
	}
	if numFDs > 1 {
		return nil, fmt.Errorf("expected a single activated socket, got %d", numFDs)
	}

	file := os.NewFile(uintptr(listenFD), "systemd-socket")
	if file == nil {
		return nil, fmt.Errorf("failed to open activated fd %d", listenFD)
	}
	defer func() {
		_ = file.Close()
	}()

	listener, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener from fd %d: %w", listenFD, err)
	}

	// Unset so child processes (git, rsync) don't inherit the activation.
	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")
	_ = os.Unsetenv("LISTEN_FDNAMES")

	return listener, nil
}
