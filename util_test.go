package firemock

import (
	"strings"
	"testing"
)

func TestSortedKeys(t *testing.T) {
	got := strings.Join(sortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}), ",")
	if got != "a,b,c" {
		t.Fatalf("sortedKeys = %q, wanted %q", got, "a,b,c")
	}
	if got := sortedKeys(map[string]any(nil)); len(got) != 0 {
		t.Fatalf("sortedKeys(nil) = %v, wanted empty", got)
	}
}

func TestRandomID(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := randomID()
		if len(id) != 20 {
			t.Fatalf("len(randomID()) = %d, wanted 20", len(id))
		}
		for _, r := range id {
			if !strings.ContainsRune(autoIDAlphabet, r) {
				t.Fatalf("randomID() = %q contains %q", id, r)
			}
		}
		if seen[id] {
			t.Fatalf("randomID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestMust(t *testing.T) {
	if got := must(42, nil); got != 42 {
		t.Fatalf("must = %v, wanted 42", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("ensure did not panic")
		}
	}()
	ensure(ErrNoField)
}
