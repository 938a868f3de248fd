package watch

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newTestWatcher(t *testing.T, fn ReconcileFunc) *Watcher {
	t.Helper()
	w, err := New(Options{Interval: time.Hour}, fn, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestNew_ReadsTrimmedSecret(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(secretFile, []byte("  hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := New(Options{
		Interval:   time.Hour,
		ListenAddr: "127.0.0.1:0",
		SecretFile: secretFile,
	}, func(context.Context) error { return nil }, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if string(w.secret) != "hunter2" {
		t.Errorf("secret = %q, want trimmed content", w.secret)
	}
}

func TestNew_MissingSecretFile(t *testing.T) {
	_, err := New(Options{
		Interval:   time.Hour,
		ListenAddr: "127.0.0.1:0",
		SecretFile: filepath.Join(t.TempDir(), "absent"),
	}, func(context.Context) error { return nil }, testLogger())
	if err == nil {
		t.Fatal("expected error for missing secret file")
	}
}

func TestVerifySignature(t *testing.T) {
	w := newTestWatcher(t, func(context.Context) error { return nil })
	w.secret = []byte("hunter2")

	tests := []struct {
		name      string
		body      string
		signature string
		want      bool
	}{
		{"valid", `{"event":"push"}`, sign("hunter2", `{"event":"push"}`), true},
		{"wrong secret", `{"event":"push"}`, sign("wrong", `{"event":"push"}`), false},
		{"tampered body", `{"event":"pull"}`, sign("hunter2", `{"event":"push"}`), false},
		{"missing prefix", `{}`, hex.EncodeToString([]byte("raw")), false},
		{"empty", `{}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.verifySignature([]byte(tt.body), tt.signature); got != tt.want {
				t.Errorf("verifySignature = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleTrigger_MethodNotAllowed(t *testing.T) {
	w := newTestWatcher(t, func(context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	w.handleTrigger(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleTrigger_InvalidSignature(t *testing.T) {
	w := newTestWatcher(t, func(context.Context) error { return nil })
	w.secret = []byte("hunter2")

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set(signatureHeader, sign("wrong", "{}"))
	rec := httptest.NewRecorder()
	w.handleTrigger(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHandleTrigger_Accepted(t *testing.T) {
	ran := make(chan struct{}, 1)
	w := newTestWatcher(t, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	w.secret = []byte("hunter2")
	w.debounce.delay = 10 * time.Millisecond

	body := `{"event":"push"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(signatureHeader, sign("hunter2", body))
	rec := httptest.NewRecorder()
	w.handleTrigger(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced pass never ran")
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	d := &debouncer{delay: 30 * time.Millisecond}
	for i := 0; i < 5; i++ {
		d.trigger(func() {
			mu.Lock()
			runs++
			mu.Unlock()
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Errorf("burst ran %d times, want 1", runs)
	}
}

// Passes never overlap: kicks arriving during a pass coalesce into at most
// one queued re-run.
func TestKick_SingleFlight(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	release := make(chan struct{})
	started := make(chan struct{}, 10)

	w := newTestWatcher(t, func(context.Context) error {
		started <- struct{}{}
		<-release
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	w.kick(ctx)
	<-started

	// These arrive while the first pass is blocked.
	w.kick(ctx)
	w.kick(ctx)
	w.kick(ctx)

	close(release)

	// The queued re-run starts after the first pass completes.
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("queued re-run never started")
	}

	// Let both passes finish, then confirm no third pass appears.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	got := runs
	mu.Unlock()
	if got != 2 {
		t.Errorf("ran %d passes, want 2", got)
	}
}

func TestRun_FatalReconcileError(t *testing.T) {
	boom := errors.New("service is not running")
	w := newTestWatcher(t, func(context.Context) error { return boom })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.Run(ctx); !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want fatal reconcile error", err)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	w := newTestWatcher(t, func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_EndToEndTrigger(t *testing.T) {
	ran := make(chan struct{}, 10)
	secretFile := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(secretFile, []byte("hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := New(Options{
		Interval:   time.Hour,
		ListenAddr: "127.0.0.1:0",
		SecretFile: secretFile,
	}, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	w.debounce.delay = 10 * time.Millisecond

	// Bind the listener ourselves so the test knows the port.
	srv := httptest.NewServer(http.HandlerFunc(w.handleTrigger))
	defer srv.Close()

	body := `{"event":"push"}`
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(signatureHeader, sign("hunter2", body))

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger never caused a pass")
	}
}
