package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestGate_TryAcquire(t *testing.T) {
	g := NewGate("test", 3, time.Minute)

	granted := 0
	for i := 0; i < 5; i++ {
		if g.TryAcquire() {
			granted++
		}
	}
	if granted != 3 {
		t.Errorf("granted = %d, want 3", granted)
	}
}

func TestGate_TimeUntilNextSlot(t *testing.T) {
	g := NewGate("test", 1, time.Minute)

	if got := g.TimeUntilNextSlot(); got != 0 {
		t.Errorf("wait before any acquisition = %v, want 0", got)
	}

	if !g.TryAcquire() {
		t.Fatal("first acquire denied")
	}

	wait := g.TimeUntilNextSlot()
	if wait <= 0 {
		t.Errorf("wait after exhaustion = %v, want > 0", wait)
	}
	if wait > time.Minute {
		t.Errorf("wait = %v, want <= window", wait)
	}

	// Probing the wait time must not consume a slot.
	if g.TimeUntilNextSlot() <= 0 {
		t.Error("second probe reported no wait")
	}
}

func TestGate_ConcurrentAcquire(t *testing.T) {
	g := NewGate("test", 10, time.Minute)

	var mu sync.Mutex
	granted := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 10 {
		t.Errorf("granted = %d, want 10", granted)
	}
}
