package objmon

import (
	"testing"
	"time"
)

func TestParker_UnparkBeforeParkIsSticky(t *testing.T) {
	var p parker
	p.unpark()

	done := make(chan struct{})
	go func() {
		p.park(0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("park should return immediately when a permit is already pending")
	}
}

func TestParker_ParkBlocksUntilUnpark(t *testing.T) {
	var p parker
	done := make(chan struct{})
	go func() {
		p.park(0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("park returned before unpark was called")
	case <-time.After(20 * time.Millisecond):
	}

	p.unpark()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("park never returned after unpark")
	}
}

func TestParker_DoubleUnparkDoesNotAccumulate(t *testing.T) {
	var p parker
	p.unpark()
	p.unpark()

	p.park(0) // consumes the single pending permit
	done := make(chan struct{})
	go func() {
		p.park(0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second park should block: two unparks must not post two permits")
	case <-time.After(20 * time.Millisecond):
	}

	p.unpark()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("park never returned after unpark")
	}
}

func TestParker_TimeoutReturnsWhenNoUnpark(t *testing.T) {
	var p parker
	start := time.Now()
	p.park(30 * time.Millisecond)
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("park returned too early: %v", elapsed)
	}
}
