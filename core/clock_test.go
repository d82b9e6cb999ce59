package core

import (
	"testing"
	"time"
)

// waitForClockWaiter spins until clk has at least one registered waiter
// (i.e. some goroutine is blocked in Sleep/After), so a test can safely
// call Advance without racing the goroutine that hasn't reached its wait
// point yet.
func waitForClockWaiter(t *testing.T, clk *FakeClock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		clk.mu.Lock()
		n := len(clk.waiters)
		clk.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for clock waiter to register")
}

func TestFakeClockAdvanceFiresWaiters(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)

	ch := clk.After(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("waiter fired before deadline")
	default:
	}

	clk.Advance(3 * time.Second)
	select {
	case <-ch:
		t.Fatal("waiter fired early")
	default:
	}

	clk.Advance(2 * time.Second)
	select {
	case got := <-ch:
		if !got.Equal(start.Add(5 * time.Second)) {
			t.Errorf("waiter fired with wrong time: %v", got)
		}
	default:
		t.Fatal("waiter did not fire at deadline")
	}
}

func TestFakeClockAfterZeroFiresImmediately(t *testing.T) {
	clk := NewFakeClock(time.Now())
	ch := clk.After(0)
	select {
	case <-ch:
	default:
		t.Fatal("zero-duration After did not fire immediately")
	}
}

func TestFakeClockSleepBlocksUntilAdvance(t *testing.T) {
	clk := NewFakeClock(time.Now())
	done := make(chan struct{})
	go func() {
		clk.Sleep(10 * time.Second)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Sleep returned before Advance")
	case <-time.After(20 * time.Millisecond):
	}

	clk.Advance(10 * time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep did not unblock after Advance")
	}
}

func TestSystemClockNowAdvances(t *testing.T) {
	clk := SystemClock{}
	t1 := clk.Now()
	time.Sleep(time.Millisecond)
	t2 := clk.Now()
	if !t2.After(t1) {
		t.Error("SystemClock.Now() did not advance")
	}
}
