package objmon

import "testing"

func TestSpinAdjustUp_RaisesBelowPovertyThenAddsBonus(t *testing.T) {
	if got := spinAdjustUp(0); got != spinPoverty+spinBonus {
		t.Fatalf("spinAdjustUp(0) = %d, want %d", got, spinPoverty+spinBonus)
	}
	if got := spinAdjustUp(spinPoverty); got != spinPoverty+spinBonus {
		t.Fatalf("spinAdjustUp(POVERTY) = %d, want %d", got, spinPoverty+spinBonus)
	}
}

func TestSpinAdjustUp_ClampsAtLimit(t *testing.T) {
	if got := spinAdjustUp(spinLimit); got != spinLimit {
		t.Fatalf("spinAdjustUp(SPIN_LIMIT) = %d, want %d", got, spinLimit)
	}
}

func TestSpinAdjustDown_SubtractsPenaltyFlooredAtZero(t *testing.T) {
	if got := spinAdjustDown(spinPoverty); got != spinPoverty-spinPenalty {
		t.Fatalf("spinAdjustDown(POVERTY) = %d, want %d", got, spinPoverty-spinPenalty)
	}
	if got := spinAdjustDown(spinPenalty / 2); got != 0 {
		t.Fatalf("spinAdjustDown should floor at zero, got %d", got)
	}
}

func TestTrySpin_PreSpinWinsWithoutTouchingBudget(t *testing.T) {
	m := newMonitorCore(nil)
	self := NewThread()

	if !m.trySpin(self) {
		t.Fatal("trySpin should win the pre-spin burst against an idle monitor")
	}
	if got := m.spinDuration.Load(); got != spinPoverty {
		t.Fatalf("pre-spin win must not adjust spin_duration, got %d want %d", got, spinPoverty)
	}
}

func TestTrySpin_WinsWhenOwnerReleasesDuringAdaptiveWindow(t *testing.T) {
	m := newMonitorCore(nil)
	self := NewThread()
	busy := NewThread()

	m.owner.casNoneToSelf(busy)
	m.spinDuration.Store(spinLimit)

	go func() {
		m.owner.casSelfToNone(busy)
	}()

	if !m.trySpin(self) {
		t.Fatal("trySpin should win once the owner releases within the spin budget")
	}
	if !m.owner.is(self) {
		t.Fatal("self should be recorded as owner after a winning spin")
	}
}

func TestTrySpin_LosesWhenOwnerNeverReleases(t *testing.T) {
	m := newMonitorCore(nil)
	self := NewThread()
	busy := NewThread()

	m.owner.casNoneToSelf(busy)
	m.spinDuration.Store(spinPoverty)

	if m.trySpin(self) {
		t.Fatal("trySpin should not win against a permanently busy owner")
	}
	if got := m.spinDuration.Load(); got != spinAdjustDown(spinPoverty) {
		t.Fatalf("spin_duration = %d, want %d after a losing spin", got, spinAdjustDown(spinPoverty))
	}
}
