package objmon

import "testing"

func drainWaitSet(head **Waiter) []*Waiter {
	var out []*Waiter
	for {
		w := waitSetPopFront(head)
		if w == nil {
			return out
		}
		out = append(out, w)
	}
}

func TestWaitSet_AppendPreservesFIFOOrder(t *testing.T) {
	var head *Waiter
	a := newWaiter(NewThread(), stateWait)
	b := newWaiter(NewThread(), stateWait)
	c := newWaiter(NewThread(), stateWait)

	waitSetAppend(&head, a)
	waitSetAppend(&head, b)
	waitSetAppend(&head, c)

	order := drainWaitSet(&head)
	if len(order) != 3 || order[0] != a || order[1] != b || order[2] != c {
		t.Fatalf("expected FIFO order [a,b,c], got %v", order)
	}
	if head != nil {
		t.Fatal("head should be nil after draining every entry")
	}
}

func TestWaitSet_UnlinkMiddleElement(t *testing.T) {
	var head *Waiter
	a := newWaiter(NewThread(), stateWait)
	b := newWaiter(NewThread(), stateWait)
	c := newWaiter(NewThread(), stateWait)
	waitSetAppend(&head, a)
	waitSetAppend(&head, b)
	waitSetAppend(&head, c)

	waitSetUnlink(&head, b)

	order := drainWaitSet(&head)
	if len(order) != 2 || order[0] != a || order[1] != c {
		t.Fatalf("expected [a,c] after unlinking b, got %v", order)
	}
}

func TestWaitSet_UnlinkSoleElement(t *testing.T) {
	var head *Waiter
	a := newWaiter(NewThread(), stateWait)
	waitSetAppend(&head, a)
	waitSetUnlink(&head, a)
	if head != nil {
		t.Fatal("head should be nil after unlinking the only element")
	}
}
