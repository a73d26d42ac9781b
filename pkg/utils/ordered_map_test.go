package utils_test

import (
	"testing"

	"n2t.dev/toolchain/pkg/utils"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := utils.NewOrderedMapFromList([]utils.MapEntry[string, int]{
		{Key: "b", Value: 2},
		{Key: "a", Value: 1},
		{Key: "c", Value: 3},
	})

	var keys []string
	for k := range m.Entries() {
		keys = append(keys, k)
	}

	want := []string{"b", "a", "c"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %v", len(want), len(keys), keys)
	}
	for i, k := range keys {
		if k != want[i] {
			t.Errorf("position %d: expected key %q, got %q", i, want[i], k)
		}
	}
}

func TestOrderedMapGet(t *testing.T) {
	m := utils.NewOrderedMapFromList([]utils.MapEntry[string, int]{{Key: "x", Value: 42}})

	if v, ok := m.Get("x"); !ok || v != 42 {
		t.Fatalf("expected to find 'x' = 42, got %d (found=%v)", v, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatalf("expected 'missing' to not be found")
	}
}

func TestOrderedMapSetAppendsNewAndOverwritesExisting(t *testing.T) {
	var m utils.OrderedMap[string, int]

	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 10) // overwrite, should not change insertion order

	if m.Size() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Size())
	}

	var keys []string
	for k, v := range m.Entries() {
		keys = append(keys, k)
		if k == "a" && v != 10 {
			t.Errorf("expected 'a' to be overwritten to 10, got %d", v)
		}
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected insertion order [a b] preserved after overwrite, got %v", keys)
	}
}

func TestOrderedMapSize(t *testing.T) {
	var m utils.OrderedMap[string, bool]
	if m.Size() != 0 {
		t.Fatalf("expected a zero-value OrderedMap to have size 0, got %d", m.Size())
	}

	m.Set("k", true)
	if m.Size() != 1 {
		t.Fatalf("expected size 1 after one Set, got %d", m.Size())
	}
}
