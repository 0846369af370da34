package callback

import "testing"

func TestHashTablePutGet(t *testing.T) {
	h := New[string, int](StringKey)
	h.Put("a", 1)
	h.Put("b", 2)

	if v, ok := h.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v; want 1, true", v, ok)
	}
	if v, ok := h.Get("b"); !ok || v != 2 {
		t.Fatalf("Get(b) = %v, %v; want 2, true", v, ok)
	}
	if _, ok := h.Get("missing"); ok {
		t.Fatal("Get(missing) found a value")
	}
}

func TestHashTableShadowsOnReinsert(t *testing.T) {
	h := New[string, int](StringKey)
	h.Put("x", 1)
	h.Put("x", 2)

	v, ok := h.Get("x")
	if !ok || v != 2 {
		t.Fatalf("Get(x) = %v, %v; want 2, true", v, ok)
	}
}

func TestHashTableDelete(t *testing.T) {
	h := New[string, int](StringKey)
	h.Put("x", 1)

	if !h.Delete("x") {
		t.Fatal("Delete(x) = false, want true")
	}
	if h.Delete("x") {
		t.Fatal("Delete(x) second call = true, want false")
	}
	if h.Contains("x") {
		t.Fatal("Contains(x) = true after delete")
	}
}

func TestHashTableGrowsAndStaysConsistent(t *testing.T) {
	h := New[string, int](StringKey)
	const n = 500
	for i := 0; i < n; i++ {
		h.Put(keyFor(i), i)
	}
	if h.Count() != n {
		t.Fatalf("Count() = %d, want %d", h.Count(), n)
	}
	for i := 0; i < n; i++ {
		v, ok := h.Get(keyFor(i))
		if !ok || v != i {
			t.Fatalf("Get(%s) = %v, %v; want %d, true", keyFor(i), v, ok, i)
		}
	}
}

func TestHashTableForEachVisitsEverything(t *testing.T) {
	h := New[string, int](StringKey)
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		h.Put(k, v)
	}

	got := map[string]int{}
	h.ForEach(func(k string, v int) { got[k] = v })

	if len(got) != len(want) {
		t.Fatalf("ForEach visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("ForEach[%s] = %d, want %d", k, got[k], v)
		}
	}
}

func keyFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)]) + string(rune('0'+i%10)) + string(rune('A'+i/10))
}
