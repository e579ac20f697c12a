// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0
//
// Modified from github.com/bureau-foundation/bureau lib/clock: trimmed to
// Now, AfterFunc and NewTicker, with PendingCount renamed to Pending.

package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	fired := 0
	c.AfterFunc(5*time.Second, func() { fired++ })

	c.Advance(4 * time.Second)
	if fired != 0 {
		t.Fatalf("fired early: %d", fired)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", c.Pending())
	}

	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("expected 1 fire, got %d", fired)
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.Pending())
	}
}

func TestFakeStopPreventsFire(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on an armed timer should return true")
	}
	if timer.Stop() {
		t.Fatal("second Stop should return false")
	}

	c.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeTicker(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	tk := c.NewTicker(10 * time.Second)
	defer tk.Stop()

	c.Advance(10 * time.Second)
	select {
	case <-tk.C:
	default:
		t.Fatal("expected a tick")
	}

	c.Advance(5 * time.Second)
	select {
	case <-tk.C:
		t.Fatal("unexpected tick")
	default:
	}
}
