package objmon

import (
	"testing"
	"time"
)

func TestPauseGate_StartsPaused(t *testing.T) {
	var g pauseGate
	if g.running() {
		t.Fatal("zero-value pauseGate should start paused")
	}
}

func TestPauseGate_WaitRunningBlocksUntilResume(t *testing.T) {
	var g pauseGate
	done := make(chan struct{})
	go func() {
		g.waitRunning()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waitRunning returned before resume")
	case <-time.After(20 * time.Millisecond):
	}

	g.resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitRunning never returned after resume")
	}
	if !g.running() {
		t.Fatal("running() should report true after resume")
	}
}

func TestPauseGate_PauseBlocksSubsequentWaiters(t *testing.T) {
	var g pauseGate
	g.resume()
	g.pause()

	done := make(chan struct{})
	go func() {
		g.waitRunning()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waitRunning returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	g.resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitRunning never returned after resume")
	}
}

func TestPauseGate_PausedCountOnlyCountsActualBlocks(t *testing.T) {
	var g pauseGate
	g.resume()
	g.waitRunning()
	g.waitRunning()
	if got := g.pausedCount(); got != 0 {
		t.Fatalf("pausedCount = %d, want 0 when the gate was already open", got)
	}

	g.pause()
	done := make(chan struct{})
	go func() {
		g.waitRunning()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	g.resume()
	<-done

	if got := g.pausedCount(); got != 1 {
		t.Fatalf("pausedCount = %d, want 1 after one blocked waitRunning", got)
	}
}
