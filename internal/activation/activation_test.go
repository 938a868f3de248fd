package activation

import (
	"os"
	"strconv"
	"testing"
)

func TestListener_NotActivated(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	l, err := Listener()
	if err != nil {
		t.Fatal(err)
	}
	if l != nil {
		t.Error("expected nil listener without activation env")
	}
}

func TestListener_OtherProcess(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()+1))
	t.Setenv("LISTEN_FDS", "1")

	l, err := Listener()
	if err != nil {
		t.Fatal(err)
	}
	if l != nil {
		t.Error("activation for a different pid must be ignored")
	}
}

func TestListener_InvalidPID(t *testing.T) {
	t.Setenv("LISTEN_PID", "not-a-pid")
	t.Setenv("LISTEN_FDS", "1")

	if _, err := Listener(); err == nil {
		t.Error("expected error for malformed LISTEN_PID")
	}
}

func TestListener_TooManySockets(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "2")

	if _, err := Listener(); err == nil {
		t.Error("expected error for more than one activated socket")
	}
}

func TestListener_ZeroFDs(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "0")

	l, err := Listener()
	if err != nil {
		t.Fatal(err)
	}
	if l != nil {
		t.Error("expected nil listener for zero activated sockets")
	}
}

func TestListener_MissingFDCount(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "")

	l, err := Listener()
	if err != nil {
		t.Fatal(err)
	}
	if l != nil {
		t.Error("expected nil listener without LISTEN_FDS")
	}
}
