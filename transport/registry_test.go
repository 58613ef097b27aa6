package transport

import (
	"errors"
	"testing"
)

func TestDispatchOrderByPriority(t *testing.T) {
	r := NewRegistry()
	var order []string
	record := func(id string) StepHandler {
		return func(int, int64) error {
			order = append(order, id)
			return nil
		}
	}

	r.Register("low", 1, record("low"))
	r.Register("high", 100, record("high"))
	r.Register("mid", 50, record("mid"))

	r.Dispatch(0, 1)
	want := []string{"high", "mid", "low"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
}

func TestEqualPriorityIsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	record := func(id string) StepHandler {
		return func(int, int64) error {
			order = append(order, id)
			return nil
		}
	}

	r.Register("first", 5, record("first"))
	r.Register("second", 5, record("second"))
	r.Register("third", 5, record("third"))

	r.Dispatch(0, 1)
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
}

func TestUnregisterAndReplace(t *testing.T) {
	r := NewRegistry()
	calls := map[string]int{}
	record := func(id string) StepHandler {
		return func(int, int64) error {
			calls[id]++
			return nil
		}
	}

	r.Register("a", 1, record("a"))
	r.Register("b", 1, record("b"))
	r.Unregister("a")
	r.Register("b", 1, record("b2")) // same id replaces

	r.Dispatch(0, 1)
	if calls["a"] != 0 {
		t.Errorf("unregistered handler ran %d times", calls["a"])
	}
	if calls["b"] != 0 || calls["b2"] != 1 {
		t.Errorf("replacement: b=%d b2=%d, want 0/1", calls["b"], calls["b2"])
	}
}

func TestFailingHandlerIsIsolated(t *testing.T) {
	r := NewRegistry()
	var survived int

	r.Register("panics", 100, func(int, int64) error {
		panic("boom")
	})
	r.Register("errors", 50, func(int, int64) error {
		return errors.New("nope")
	})
	r.Register("fine", 1, func(int, int64) error {
		survived++
		return nil
	})

	r.Dispatch(0, 1)
	r.Dispatch(1, 2)

	if survived != 2 {
		t.Errorf("healthy handler ran %d times, want 2", survived)
	}
	if got := r.ErrorCount(); got != 4 {
		t.Errorf("error count = %d, want 4", got)
	}
}

func TestPatternCompleteSlot(t *testing.T) {
	r := NewRegistry()

	// Nil slot must be safe
	r.DispatchPatternComplete(1)

	var got int64
	r.SetPatternComplete(func(ts int64) { got = ts })
	r.DispatchPatternComplete(42)
	if got != 42 {
		t.Errorf("pattern complete ts = %d, want 42", got)
	}

	r.SetPatternComplete(func(int64) { panic("boom") })
	r.DispatchPatternComplete(43) // must not propagate
	if r.ErrorCount() != 1 {
		t.Errorf("error count = %d, want 1", r.ErrorCount())
	}
}
