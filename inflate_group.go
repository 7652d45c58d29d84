package objmon

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/llxisdsh/pb"
)

// call represents an in-flight or completed onceGroup.Do call.
type call[V any] struct {
	wg   sync.WaitGroup
	val  V
	err  error
	dups int32
}

// onceGroup suppresses duplicate concurrent work per key. The Registry uses
// one keyed by object identity to make sure that when several goroutines
// race to inflate the same object's lock, only one of them actually builds
// and installs a Monitor; the rest block on the same call and receive its
// result. Backed by the external pb.MapOf so the dedup table itself scales
// under the same contention the monitors it protects are built for.
//
// Unlike a general-purpose singleflight, this group only ever serves one
// caller shape (Registry.Inflate's build-and-install closure), so it keeps
// counters of how often inflation actually raced instead of the
// channel/Forget surface a general-purpose group would need for callers
// that fire-and-forget or want to evict a cached failure early.
type onceGroup[K comparable, V any] struct {
	m pb.MapOf[K, *call[V]]

	calls      atomic.Uint64
	dedupCalls atomic.Uint64
}

// Do executes and returns the results of the given function, making sure
// that only one execution is in-flight for a given key at a time. If a
// duplicate comes in, the duplicate caller waits for the original to
// complete and receives the same results. The return value shared
// indicates whether v was given to multiple callers.
func (g *onceGroup[K, V]) Do(
	key K,
	fn func() (V, error),
) (V, error, bool) {
	g.calls.Add(1)

	var c *call[V]
	_, loaded := g.m.ProcessEntry(
		key,
		func(l *pb.EntryOf[K, *call[V]]) (*pb.EntryOf[K, *call[V]], *call[V], bool) {
			if l != nil {
				c = l.Value
				atomic.AddInt32(&c.dups, 1)
				return l, c, true
			}
			c = &call[V]{}
			c.wg.Add(1)
			return &pb.EntryOf[K, *call[V]]{Value: c}, c, false
		},
	)
	if loaded {
		g.dedupCalls.Add(1)
		c.wg.Wait()
		var e *panicError
		if errors.As(c.err, &e) {
			panic(e)
		} else if errors.Is(c.err, errGoexit) {
			runtime.Goexit()
		}
		return c.val, c.err, true
	}

	// Primary executes with panic/Goexit semantics compatible with x/sync/singleflight.
	g.doCall(c, key, fn)
	shared := atomic.LoadInt32(&c.dups) > 0
	return c.val, c.err, shared
}

// counts returns the total number of calls recorded (every Do call, plus
// any the owner adds to calls directly, as Registry.Inflate does for calls
// answered from its live table) and how many Do calls joined an already
// in-flight call instead of running fn themselves.
func (g *onceGroup[K, V]) counts() (calls, deduped uint64) {
	return g.calls.Load(), g.dedupCalls.Load()
}

// doCall runs fn with panic/Goexit semantics and completes the call.
func (g *onceGroup[K, V]) doCall(
	c *call[V],
	key K,
	fn func() (V, error),
) {
	normalReturn := false
	recovered := false

	defer func() {
		// Mark Goexit if the goroutine terminated without normal return
		// and without a recovered panic.
		if !normalReturn && !recovered {
			c.err = errGoexit
		}

		// Complete the call and remove the key so a later Do for the same
		// key (after this one finishes) starts a fresh call rather than
		// joining this completed one.
		c.wg.Done()
		_, _ = g.m.ProcessEntry(
			key,
			func(l *pb.EntryOf[K, *call[V]]) (*pb.EntryOf[K, *call[V]], *call[V], bool) {
				if l != nil && l.Value == c {
					return nil, nil, false
				}
				return l, nil, false
			},
		)

		// After wg.Done, duplicates in Do() will wake and re-panic/goexit.
		var e *panicError
		if errors.As(c.err, &e) {
			// Match x/sync: ensure panic is unrecoverable and visible.
			panic(e)
		}
	}()

	// Distinguish panic from Goexit via double-defer with inner wrapper,
	// matching the structure of the official implementation.
	func() {
		defer func() {
			if !normalReturn {
				// Only recover when not a normal return, so we can
				// differentiate panic vs Goexit.
				if r := recover(); r != nil {
					c.err = newPanicError(r)
				}
			}
		}()

		c.val, c.err = fn()
		normalReturn = true
	}()

	if !normalReturn {
		recovered = true
	}
}

// -------------------------
// Panic/Goexit handling
// -------------------------

// panicError mirrors the type used by x/sync/singleflight.
// A panicError is an arbitrary value recovered from a panic
// with the stack trace during the execution of given function.
type panicError struct {
	value any
	stack []byte
}

// Error implements error interface.
func (p *panicError) Error() string {
	return fmt.Sprintf("%v\n\n%s", p.value, p.stack)
}

// Unwrap returns the underlying error value, if any.
func (p *panicError) Unwrap() error {
	if err, ok := p.value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v any) error {
	stack := debug.Stack()
	// Trim first line "goroutine N [status]:" which can be misleading.
	if line := bytes.IndexByte(stack[:], '\n'); line >= 0 {
		stack = stack[line+1:]
	}
	return &panicError{value: v, stack: stack}
}

var errGoexit = errors.New("runtime.Goexit was called")
