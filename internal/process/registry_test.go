package process

import (
	"testing"
)

func TestRegistryInsertFindRemove(t *testing.T) {
	r := NewRegistry()

	s := newSession(1, ModeInProcess, "", "-version", nil)
	r.Insert(s)

	got, ok := r.Find(1)
	if !ok || got != s {
		t.Fatalf("Find(1) = %v, %v", got, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	if !r.Remove(1) {
		t.Error("Remove(1) = false, want true")
	}
	if r.Remove(1) {
		t.Error("second Remove(1) = true, want false")
	}
	if _, ok := r.Find(1); ok {
		t.Error("session still found after Remove")
	}
}

func TestRegistryForEachAllowsReentry(t *testing.T) {
	r := NewRegistry()
	for _, id := range []int64{3, 1, 2} {
		r.Insert(newSession(id, ModeInProcess, "", "", nil))
	}

	var order []int64
	r.ForEach(func(s *Session) {
		order = append(order, s.ID())
		// Mutating from the callback must not deadlock.
		r.Remove(s.ID())
	})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
