package objmon

import (
	"testing"
	"time"
)

func TestScavengeGen_WaitAtLeastReturnsImmediatelyWhenReached(t *testing.T) {
	var g scavengeGen
	g.advance()
	g.advance()

	done := make(chan struct{})
	go func() {
		g.waitAtLeast(2)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitAtLeast blocked despite target already reached")
	}
}

func TestScavengeGen_WaitAtLeastBlocksUntilAdvance(t *testing.T) {
	var g scavengeGen
	done := make(chan struct{})
	go func() {
		g.waitAtLeast(3)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waitAtLeast returned before target cycle completed")
	case <-time.After(20 * time.Millisecond):
	}

	g.advance()
	g.advance()

	select {
	case <-done:
		t.Fatal("waitAtLeast returned before target cycle completed")
	case <-time.After(20 * time.Millisecond):
	}

	g.advance()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitAtLeast never returned once target was reached")
	}
}
