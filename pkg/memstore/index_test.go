package memstore

import (
	"fmt"
	"testing"
)

func TestGroupIndexLookup(t *testing.T) {
	ids := make([]string, 500)
	for i := range ids {
		ids[i] = fmt.Sprintf("group-%04d", i)
	}
	idx, err := newGroupIndex(ids)
	if err != nil {
		t.Fatalf("newGroupIndex: %v", err)
	}
	if idx.mph == nil {
		t.Fatal("expected a perfect hash index")
	}

	for i, id := range ids {
		got, ok := idx.lookup(id)
		if !ok || got != i {
			t.Fatalf("lookup(%q) = %d, %v; want %d", id, got, ok, i)
		}
	}
	for _, absent := range []string{"", "group-9999", "GROUP-0001"} {
		if _, ok := idx.lookup(absent); ok {
			t.Errorf("lookup(%q) should miss", absent)
		}
	}
}

func TestGroupIndexEmpty(t *testing.T) {
	idx, err := newGroupIndex(nil)
	if err != nil {
		t.Fatalf("newGroupIndex: %v", err)
	}
	if _, ok := idx.lookup("1"); ok {
		t.Error("empty index should miss")
	}
}

func TestGroupIndexFallback(t *testing.T) {
	if !hasDuplicates([]uint64{3, 1, 3}) || hasDuplicates([]uint64{1, 2, 3}) {
		t.Fatal("hasDuplicates mismatch")
	}

	idx := &groupIndex{ids: []string{"a", "b"}, fallback: map[string]int{"a": 0, "b": 1}}
	if i, ok := idx.lookup("b"); !ok || i != 1 {
		t.Errorf("fallback lookup = %d, %v", i, ok)
	}
}
