// Package watch runs continuous reconciliation: a periodic pass on a fixed
// interval, plus an optional authenticated HTTP endpoint that lets a push
// pipeline request an immediate pass instead of waiting for the next tick.
package watch

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// signatureHeader carries the HMAC-SHA256 signature of the request body,
// formatted as "sha256=<hex>".
const signatureHeader = "X-Agent-Signature-256"

// ReconcileFunc runs one reconciliation pass. A returned error is fatal and
// terminates the watcher.
type ReconcileFunc func(ctx context.Context) error

// Watcher serializes reconciliation passes triggered by the interval ticker
// and the HTTP endpoint. Passes never overlap; at most one re-run is queued
// while a pass is in progress.
type Watcher struct {
	interval   time.Duration
	listenAddr string
	listener   net.Listener
	secret     []byte
	reconcile  ReconcileFunc
	logger     *slog.Logger

	mu      sync.Mutex // guards running and pending
	running bool
	pending bool

	debounce *debouncer
	fatal    chan error
}

// debouncer coalesces bursts of trigger requests into a single pass.
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	callback func()
}

// Options configures a Watcher.
type Options struct {
	Interval time.Duration
	// ListenAddr enables the trigger endpoint when non-empty. Ignored when
	// Listener is set (socket activation).
	ListenAddr string
	// Listener is an already-bound socket for the trigger endpoint.
	Listener net.Listener
	// SecretFile holds the shared secret used to sign trigger requests.
	// Required when the endpoint is enabled.
	SecretFile string
}

// New creates a Watcher running fn on every pass.
func New(opts Options, fn ReconcileFunc, logger *slog.Logger) (*Watcher, error) {
	w := &Watcher{
		interval:   opts.Interval,
		listenAddr: opts.ListenAddr,
		listener:   opts.Listener,
		reconcile:  fn,
		logger:     logger,
		debounce:   &debouncer{delay: 2 * time.Second},
		fatal:      make(chan error, 1),
	}

	if w.serveEnabled() {
		secret, err := os.ReadFile(opts.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read trigger secret: %w", err)
		}
		w.secret = []byte(strings.TrimSpace(string(secret)))
	}

	return w, nil
}

func (w *Watcher) serveEnabled() bool {
	return w.listenAddr != "" || w.listener != nil
}

// Run performs an initial pass and then reconciles on every tick or trigger
// until ctx is cancelled or a pass fails fatally.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("starting watch", "interval", w.interval)
	w.kick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var server *http.Server
	serverErr := make(chan error, 1)
	if w.serveEnabled() {
		server = &http.Server{
			Handler:           http.HandlerFunc(w.handleTrigger),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		go func() {
			var err error
			if w.listener != nil {
				w.logger.Info("trigger endpoint listening", "addr", w.listener.Addr().String())
				err = server.Serve(w.listener)
			} else {
				w.logger.Info("trigger endpoint listening", "addr", w.listenAddr)
				server.Addr = w.listenAddr
				err = server.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				serverErr <- err
			}
		}()
	}

	defer func() {
		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down watch")
			return nil
		case <-ticker.C:
			w.kick(ctx)
		case err := <-w.fatal:
			return err
		case err := <-serverErr:
			return err
		}
	}
}

// kick starts a reconciliation pass with single-flight semantics. If a pass
// is already in progress, at most one additional run is queued; further
// concurrent requests are dropped.
func (w *Watcher) kick(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.pending = true
		w.mu.Unlock()
		w.logger.Info("reconciliation already in progress, queuing re-run")
		return
	}
	w.running = true
	w.mu.Unlock()

	go func() {
		for {
			if err := w.reconcile(ctx); err != nil {
				select {
				case w.fatal <- err:
				default:
				}
				w.mu.Lock()
				w.running = false
				w.pending = false
				w.mu.Unlock()
				return
			}

			w.mu.Lock()
			if !w.pending {
				w.running = false
				w.mu.Unlock()
				return
			}
			w.pending = false
			w.mu.Unlock()

			w.logger.Info("re-running reconciliation due to pending request")
		}
	}()
}

// handleTrigger accepts an authenticated POST and schedules a debounced pass.
func (w *Watcher) handleTrigger(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.logger.Warn("rejecting non-POST trigger request", "method", r.Method)
		http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		w.logger.Error("failed to read trigger request body", "error", err)
		http.Error(rw, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	if !w.verifySignature(body, r.Header.Get(signatureHeader)) {
		w.logger.Warn("rejecting trigger request with invalid signature")
		http.Error(rw, "Invalid signature", http.StatusForbidden)
		return
	}

	w.logger.Info("trigger request accepted")
	// The pass outlives the request, so it must not inherit the request
	// context.
	w.debounce.trigger(func() {
		w.kick(context.Background())
	})

	rw.WriteHeader(http.StatusAccepted)
	_, _ = fmt.Fprintln(rw, "Reconciliation triggered")
}

// verifySignature checks the HMAC-SHA256 signature of body.
func (w *Watcher) verifySignature(body []byte, signature string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, w.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// trigger schedules the callback to run after the debounce delay.
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
}
