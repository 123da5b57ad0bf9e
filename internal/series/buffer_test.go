package series

import (
	"errors"
	"testing"
)

func TestBuffer_BadCapacity(t *testing.T) {
	for _, c := range []int{0, -1, -900} {
		_, err := New[int](c)
		if !errors.Is(err, ErrBadCapacity) {
			t.Errorf("New(%d): expected ErrBadCapacity, got %v", c, err)
		}
	}
}

func TestBuffer_AppendAndLastN(t *testing.T) {
	b, err := New[int](4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b.Append(1)
	b.Append(2)
	b.Append(3)

	if b.Len() != 3 {
		t.Fatalf("expected len=3, got %d", b.Len())
	}

	got := b.LastN(2)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("LastN(2) = %v, want [2 3]", got)
	}

	// LastN must not mutate state
	if b.Len() != 3 {
		t.Fatalf("LastN mutated buffer, len=%d", b.Len())
	}

	// Asking for more than stored returns everything
	got = b.LastN(10)
	if len(got) != 3 || got[0] != 1 {
		t.Fatalf("LastN(10) = %v, want [1 2 3]", got)
	}
}

func TestBuffer_EvictsOldest(t *testing.T) {
	const capacity = 5
	b, err := New[int](capacity)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// capacity + k inserts: length stays at capacity, contents are the
	// most recent `capacity` values in arrival order.
	const total = capacity + 7
	for i := 0; i < total; i++ {
		b.Append(i)
	}

	if b.Len() != capacity {
		t.Fatalf("expected len=%d after %d inserts, got %d", capacity, total, b.Len())
	}

	items := b.Items()
	for i, v := range items {
		want := total - capacity + i
		if v != want {
			t.Errorf("items[%d] = %d, want %d", i, v, want)
		}
	}
}

func TestBuffer_WraparoundOrder(t *testing.T) {
	b, _ := New[string](3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		b.Append(s)
	}
	items := b.Items()
	if len(items) != 3 || items[0] != "c" || items[1] != "d" || items[2] != "e" {
		t.Fatalf("items = %v, want [c d e]", items)
	}
}
