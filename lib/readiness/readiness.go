// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package readiness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// Line is the exact line the backend writes to standard output once it
// is ready. Nothing else on the stream is interpreted.
const Line = "SERVICE_READY\n"

// Errors returned by Wait.
var (
	ErrNotReady      = rpcerr.New(rpcerr.KindService, "backend did not become ready")
	ErrBackendExited = rpcerr.New(rpcerr.KindService, "backend exited before becoming ready")
)

// Announce writes the readiness line to w.
func Announce(w io.Writer) error {
	if _, err := io.WriteString(w, Line); err != nil {
		return fmt.Errorf("announcing readiness: %w", err)
	}
	return nil
}

// Watcher tracks whether a backend has announced readiness or exited.
// Safe for concurrent use.
type Watcher struct {
	logger *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	exited   chan struct{}
	exitOnce sync.Once
	exitErr  error
}

// NewWatcher returns a Watcher that has seen nothing yet. A nil logger
// discards backend output.
func NewWatcher(logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		logger: logger,
		ready:  make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Consume reads the backend's standard output line by line until EOF
// or a read error, marking the watcher ready when Line appears. Other
// lines are logged at debug level. It returns nil at EOF.
func (w *Watcher) Consume(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line == Line {
			w.MarkReady()
		} else if line != "" {
			w.logger.Debug("backend output", "line", line)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading backend output: %w", err)
		}
	}
}

// MarkReady records the readiness notification. Later calls have no
// effect.
func (w *Watcher) MarkReady() {
	w.readyOnce.Do(func() {
		w.logger.Info("backend announced readiness")
		close(w.ready)
	})
}

// MarkExited records that the backend process has exited, with the
// error from waiting on it (nil for a clean exit). Only the first call
// has an effect.
func (w *Watcher) MarkExited(err error) {
	w.exitOnce.Do(func() {
		w.exitErr = err
		w.logger.Info("backend exited", "error", err)
		close(w.exited)
	})
}

// Ready is closed once the backend has announced readiness.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Exited is closed once the backend has exited.
func (w *Watcher) Exited() <-chan struct{} { return w.exited }

// ExitErr returns the error passed to MarkExited. It is only meaningful
// after Exited is closed.
func (w *Watcher) ExitErr() error {
	select {
	case <-w.exited:
		return w.exitErr
	default:
		return nil
	}
}

// Wait blocks until the backend is ready, the backend exits, or ctx is
// done. A backend that announced readiness and then exited still
// counts as ready here; later RPCs will surface the failure.
func (w *Watcher) Wait(ctx context.Context) error {
	select {
	case <-w.ready:
		return nil
	default:
	}

	select {
	case <-w.ready:
		return nil
	case <-w.exited:
		select {
		case <-w.ready:
			return nil
		default:
		}
		if w.exitErr != nil {
			return fmt.Errorf("%w: %w", ErrBackendExited, w.exitErr)
		}
		return ErrBackendExited
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, context.Cause(ctx))
	}
}
