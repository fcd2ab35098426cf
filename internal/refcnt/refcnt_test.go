package refcnt

import "testing"

func TestRefCntLifecycle(t *testing.T) {
	released := 0
	var r RefCnt
	r.Init(func() { released++ })

	if !r.IsUnique() {
		t.Fatal("new counter should be unique")
	}
	r.Ref()
	if r.IsUnique() || r.RefCount() != 2 {
		t.Fatalf("RefCount = %d, want 2", r.RefCount())
	}
	r.Unref()
	if released != 0 {
		t.Fatal("released with a reference outstanding")
	}
	r.Unref()
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}
}

func TestRefCntUnderflowPanics(t *testing.T) {
	var r RefCnt
	r.Init(nil)
	r.Unref()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on Unref below zero")
		}
	}()
	r.Unref()
}

func TestRefCntRefAfterReleasePanics(t *testing.T) {
	var r RefCnt
	r.Init(nil)
	r.Unref()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on Ref after release")
		}
	}()
	r.Ref()
}
