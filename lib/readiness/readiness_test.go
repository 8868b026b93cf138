// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package readiness

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/tether/lib/rpcerr"
	"github.com/bureau-foundation/tether/lib/testutil"
)

func TestAnnounce(t *testing.T) {
	var buffer bytes.Buffer
	if err := Announce(&buffer); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	if buffer.String() != "SERVICE_READY\n" {
		t.Errorf("Announce wrote %q, want %q", buffer.String(), "SERVICE_READY\n")
	}
}

func TestConsumeDetectsReadyLine(t *testing.T) {
	watcher := NewWatcher(nil)
	output := "starting backend\nloading data\nSERVICE_READY\nserving\n"

	if err := watcher.Consume(strings.NewReader(output)); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	testutil.RequireClosed(t, watcher.Ready(), time.Second, "ready after SERVICE_READY line")
	testutil.RequireOpen(t, watcher.Exited(), "exited without MarkExited")
}

func TestConsumeRequiresExactLine(t *testing.T) {
	for _, output := range []string{
		"SERVICE_READY",              // no newline
		"SERVICE_READY\r\n",          // CRLF
		" SERVICE_READY\n",           // leading space
		"service_ready\n",            // case
		"SERVICE_READY and more\n",   // trailing text
		"status: SERVICE_READY\n",    // embedded
		"SERVICE-READY\n",            // probe method name, not the line
		"SERVICE_READY_NOT_REALLY\n", // prefix
	} {
		watcher := NewWatcher(nil)
		if err := watcher.Consume(strings.NewReader(output)); err != nil {
			t.Fatalf("Consume(%q): %v", output, err)
		}
		testutil.RequireOpen(t, watcher.Ready(), "output %q must not signal readiness", output)
	}
}

func TestConsumeAcrossPartialReads(t *testing.T) {
	watcher := NewWatcher(nil)
	reader, writer := io.Pipe()

	done := make(chan error, 1)
	go func() { done <- watcher.Consume(reader) }()

	for _, chunk := range []string{"SERV", "ICE_RE", "ADY", "\n"} {
		if _, err := writer.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	testutil.RequireClosed(t, watcher.Ready(), 5*time.Second, "ready after split line")

	writer.Close()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Consume returns at EOF"); err != nil {
		t.Errorf("Consume = %v, want nil at EOF", err)
	}
}

func TestConsumeReportsReadError(t *testing.T) {
	watcher := NewWatcher(nil)
	failure := errors.New("pipe broken")
	err := watcher.Consume(io.MultiReader(strings.NewReader("partial"), errorReader{failure}))
	if !errors.Is(err, failure) {
		t.Errorf("Consume = %v, want %v", err, failure)
	}
}

type errorReader struct{ err error }

func (r errorReader) Read([]byte) (int, error) { return 0, r.err }

func TestWaitReady(t *testing.T) {
	watcher := NewWatcher(nil)
	watcher.MarkReady()
	watcher.MarkReady()

	if err := watcher.Wait(context.Background()); err != nil {
		t.Errorf("Wait = %v, want nil", err)
	}
}

func TestWaitBackendExited(t *testing.T) {
	watcher := NewWatcher(nil)
	exitError := errors.New("exit status 2")
	watcher.MarkExited(exitError)
	watcher.MarkExited(nil)

	err := watcher.Wait(context.Background())
	if !errors.Is(err, ErrBackendExited) {
		t.Fatalf("Wait = %v, want ErrBackendExited", err)
	}
	if !errors.Is(err, exitError) {
		t.Errorf("Wait = %v, want it to wrap the exit error", err)
	}
	if errors.Is(err, ErrNotReady) {
		t.Error("backend exit reported as not-ready")
	}
	if !errors.Is(err, rpcerr.ErrService) {
		t.Error("backend exit is not a service error")
	}
	if watcher.ExitErr() != exitError {
		t.Errorf("ExitErr = %v, want %v", watcher.ExitErr(), exitError)
	}
}

func TestWaitCleanExitBeforeReady(t *testing.T) {
	watcher := NewWatcher(nil)
	watcher.MarkExited(nil)
	if err := watcher.Wait(context.Background()); err != ErrBackendExited {
		t.Errorf("Wait = %v, want ErrBackendExited", err)
	}
}

func TestWaitReadyThenExitedIsReady(t *testing.T) {
	watcher := NewWatcher(nil)
	watcher.MarkReady()
	watcher.MarkExited(nil)
	if err := watcher.Wait(context.Background()); err != nil {
		t.Errorf("Wait = %v, want nil", err)
	}
}

func TestWaitContextDone(t *testing.T) {
	watcher := NewWatcher(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := watcher.Wait(ctx)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Wait = %v, want ErrNotReady", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait = %v, want it to wrap context.Canceled", err)
	}
	if errors.Is(err, ErrBackendExited) {
		t.Error("timeout reported as backend exit")
	}
}

func TestWaitUnblocksOnLaterReady(t *testing.T) {
	watcher := NewWatcher(nil)
	result := make(chan error, 1)
	go func() { result <- watcher.Wait(context.Background()) }()

	watcher.MarkReady()
	if err := testutil.RequireReceive(t, result, 5*time.Second, "Wait returns after MarkReady"); err != nil {
		t.Errorf("Wait = %v, want nil", err)
	}
}
