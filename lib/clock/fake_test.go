// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeTimerFiresAtDeadline(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(5 * time.Second)

	clock.Advance(3 * time.Second)
	select {
	case <-timer.C:
		t.Fatal("timer fired before deadline")
	default:
	}

	clock.Advance(2 * time.Second)
	select {
	case fired := <-timer.C:
		if !fired.Equal(epoch.Add(5 * time.Second)) {
			t.Errorf("fire time = %v, want %v", fired, epoch.Add(5*time.Second))
		}
	default:
		t.Fatal("timer did not fire at exact deadline")
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after firing, want 0", clock.PendingCount())
	}
}

func TestFakeTimerNonPositiveDuration(t *testing.T) {
	clock := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		timer := clock.NewTimer(d)
		select {
		case <-timer.C:
		default:
			t.Fatalf("NewTimer(%v) did not fire immediately", d)
		}
		if timer.Stop() {
			t.Errorf("Stop on fired NewTimer(%v) = true", d)
		}
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", clock.PendingCount())
	}
}

func TestFakeTimerStop(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)

	if !timer.Stop() {
		t.Fatal("Stop on pending timer = false")
	}
	if timer.Stop() {
		t.Error("second Stop = true")
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after Stop, want 0", clock.PendingCount())
	}

	clock.Advance(time.Minute)
	select {
	case <-timer.C:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeTimerStopAfterFire(t *testing.T) {
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)
	clock.Advance(time.Second)
	if timer.Stop() {
		t.Error("Stop after fire = true")
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	fired := make(chan time.Time, 1)

	go func() {
		timer := clock.NewTimer(10 * time.Second)
		fired <- <-timer.C
	}()

	clock.WaitForTimers(1)
	clock.Advance(10 * time.Second)

	select {
	case got := <-fired:
		if !got.Equal(epoch.Add(10 * time.Second)) {
			t.Errorf("fire time = %v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timer goroutine did not observe the fire")
	}
}

func TestFakeClockAdvanceFiresAllDue(t *testing.T) {
	clock := Fake(epoch)
	short := clock.NewTimer(time.Second)
	long := clock.NewTimer(3 * time.Second)
	later := clock.NewTimer(time.Hour)

	clock.Advance(5 * time.Second)

	for name, timer := range map[string]*Timer{"short": short, "long": long} {
		select {
		case <-timer.C:
		default:
			t.Errorf("%s timer did not fire", name)
		}
	}
	select {
	case <-later.C:
		t.Error("hour timer fired early")
	default:
	}
	if clock.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", clock.PendingCount())
	}
}

func TestRealClock(t *testing.T) {
	clock := Real()
	before := time.Now()
	if clock.Now().Before(before) {
		t.Error("Real().Now() is before time.Now()")
	}
	timer := clock.NewTimer(time.Hour)
	if !timer.Stop() {
		t.Error("Stop on pending real timer = false")
	}
}
