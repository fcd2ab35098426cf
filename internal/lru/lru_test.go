package lru

import (
	"errors"
	"testing"
)

func TestGetSet(t *testing.T) {
	c := New[string, int](0, nil)
	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) found a value")
	}
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Len != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestEvictsOldestQuarter(t *testing.T) {
	var evicted []int
	c := New[int, int](8, func(k, _ int) { evicted = append(evicted, k) })
	for i := range 8 {
		c.Set(i, i)
	}
	// Touch 0 and 1 so 2 and 3 are the oldest.
	c.Get(0)
	c.Get(1)
	c.Set(8, 8)

	if c.Len() != 6 {
		t.Fatalf("Len = %d, want 6", c.Len())
	}
	want := map[int]bool{2: true, 3: true, 4: true}
	if len(evicted) != 3 {
		t.Fatalf("evicted %v, want 3 entries", evicted)
	}
	for _, k := range evicted {
		if !want[k] {
			t.Errorf("evicted recently used key %d", k)
		}
	}
	if _, ok := c.Get(8); !ok {
		t.Error("new entry was evicted")
	}
}

func TestGetOrCreate(t *testing.T) {
	c := New[string, int](0, nil)
	calls := 0
	create := func() (int, error) { calls++; return 7, nil }

	for range 3 {
		v, err := c.GetOrCreate("k", create)
		if err != nil || v != 7 {
			t.Fatalf("GetOrCreate = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	errBoom := errors.New("boom")
	if _, err := c.GetOrCreate("x", func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want %v", err, errBoom)
	}
	if _, ok := c.Get("x"); ok {
		t.Error("failed creation was cached")
	}
}

func TestSetReplaceAndClear(t *testing.T) {
	var evicted []int
	c := New[string, int](0, func(_ string, v int) { evicted = append(evicted, v) })
	c.Set("a", 1)
	c.Set("a", 2)
	if len(evicted) != 1 || evicted[0] != 1 {
		t.Fatalf("replace evicted %v, want [1]", evicted)
	}
	c.Set("b", 3)
	c.Clear()
	if c.Len() != 0 || len(evicted) != 3 {
		t.Errorf("after Clear: Len = %d, evicted = %v", c.Len(), evicted)
	}
	if c.Delete("missing") {
		t.Error("Delete of missing key reported true")
	}
}
