package resource_test

import (
	"testing"

	"github.com/arfaz/opbus/bus/resource"
)

type fakeStream struct {
	closed bool
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

type otherStream struct{}

func (otherStream) Close() error { return nil }

func TestAddAllocatesHandlesStartingAt3(t *testing.T) {
	table := resource.New()
	rid := table.Add("test", &fakeStream{})
	if rid != 3 {
		t.Errorf("first Add() rid = %d, want 3", rid)
	}
	second := table.Add("test", &fakeStream{})
	if second != 4 {
		t.Errorf("second Add() rid = %d, want 4", second)
	}
}

func TestAddAtInstallsReservedHandles(t *testing.T) {
	table := resource.New()
	table.AddAt(0, "stdin", &fakeStream{})
	table.AddAt(1, "stdout", &fakeStream{})
	table.AddAt(2, "stderr", &fakeStream{})

	if tag, ok := table.Tag(1); !ok || tag != "stdout" {
		t.Errorf("Tag(1) = (%q, %v), want (stdout, true)", tag, ok)
	}
	// Next dynamically allocated handle must not collide with the reserved ones.
	if rid := table.Add("dynamic", &fakeStream{}); rid < 3 {
		t.Errorf("Add() after AddAt(0..2) returned rid %d, want >= 3", rid)
	}
}

func TestAddAtPanicsOnDuplicateRID(t *testing.T) {
	table := resource.New()
	table.AddAt(0, "stdin", &fakeStream{})
	defer func() {
		if recover() == nil {
			t.Error("expected AddAt to panic on an already-occupied rid")
		}
	}()
	table.AddAt(0, "stdin-again", &fakeStream{})
}

func TestGetReturnsBadResourceForUnknownRID(t *testing.T) {
	table := resource.New()
	_, berr := resource.Get[*fakeStream](table, 99)
	if berr == nil {
		t.Fatal("expected bad_resource error for unknown rid")
	}
}

func TestGetReturnsBadResourceForWrongType(t *testing.T) {
	table := resource.New()
	rid := table.Add("other", otherStream{})
	_, berr := resource.Get[*fakeStream](table, rid)
	if berr == nil {
		t.Fatal("expected bad_resource error when downcasting to the wrong concrete type")
	}
}

func TestGetSucceedsForMatchingType(t *testing.T) {
	table := resource.New()
	fs := &fakeStream{}
	rid := table.Add("fake", fs)
	got, berr := resource.Get[*fakeStream](table, rid)
	if berr != nil {
		t.Fatalf("Get: %v", berr)
	}
	if got != fs {
		t.Error("Get returned a different pointer than was stored")
	}
}

func TestRemoveDeletesAndReturnsStream(t *testing.T) {
	table := resource.New()
	fs := &fakeStream{}
	rid := table.Add("fake", fs)

	removed, ok := table.Remove(rid)
	if !ok {
		t.Fatal("expected Remove to report ok=true for a live rid")
	}
	if removed != fs {
		t.Error("Remove returned a different stream than was stored")
	}
	if _, ok := table.Tag(rid); ok {
		t.Error("expected rid to be gone after Remove")
	}
}

func TestRemoveUnknownRIDReportsNotOK(t *testing.T) {
	table := resource.New()
	if _, ok := table.Remove(123); ok {
		t.Error("expected Remove to report ok=false for an unknown rid")
	}
}

func TestEntriesAndLenReflectLiveHandles(t *testing.T) {
	table := resource.New()
	table.AddAt(0, "stdin", &fakeStream{})
	table.Add("a", &fakeStream{})
	table.Add("b", &fakeStream{})

	if table.Len() != 3 {
		t.Errorf("Len() = %d, want 3", table.Len())
	}
	entries := table.Entries()
	if len(entries) != 3 {
		t.Errorf("len(Entries()) = %d, want 3", len(entries))
	}

	table.Remove(0)
	if table.Len() != 2 {
		t.Errorf("Len() after Remove = %d, want 2", table.Len())
	}
}
