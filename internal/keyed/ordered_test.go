package keyed

import (
	"encoding/json"
	"fmt"
	"testing"
)

type item struct {
	ID  string `json:"id"`
	Val int    `json:"val"`
}

func itemID(i item) string { return i.ID }

// checkInvariants verifies the structural invariants: the index matches the
// sequence, and every entry is findable under its own id.
func checkInvariants(t *testing.T, d *Dict[item]) {
	t.Helper()
	if len(d.index) != len(d.items) {
		t.Fatalf("index size %d != array length %d", len(d.index), len(d.items))
	}
	for _, it := range d.All() {
		got, ok := d.Get(it.ID)
		if !ok {
			t.Fatalf("entry %q not findable via Get", it.ID)
		}
		if got != it {
			t.Fatalf("Get(%q) = %+v, want %+v", it.ID, got, it)
		}
	}
}

func TestUpsertAppendPrepend(t *testing.T) {
	d := NewDict(itemID)
	d.Upsert(item{ID: "b"}, Append)
	d.Upsert(item{ID: "c"}, Append)
	d.Upsert(item{ID: "a"}, Prepend)

	want := []string{"a", "b", "c"}
	for i, it := range d.All() {
		if it.ID != want[i] {
			t.Errorf("position %d = %q, want %q", i, it.ID, want[i])
		}
	}
	checkInvariants(t, d)
}

func TestUpsertExistingKeepsPosition(t *testing.T) {
	d := NewDict(itemID)
	d.Upsert(item{ID: "a", Val: 1}, Append)
	d.Upsert(item{ID: "b", Val: 1}, Append)
	d.Upsert(item{ID: "c", Val: 1}, Append)

	// Re-upserting b (even as prepend) must replace in place.
	d.Upsert(item{ID: "b", Val: 2}, Prepend)

	if d.Len() != 3 {
		t.Fatalf("len = %d, want 3", d.Len())
	}
	if d.IndexOf("b") != 1 {
		t.Errorf("b moved to %d, want 1", d.IndexOf("b"))
	}
	got, _ := d.Get("b")
	if got.Val != 2 {
		t.Errorf("b.Val = %d, want 2 (replaced)", got.Val)
	}
	checkInvariants(t, d)
}

func TestUpdateAbsent(t *testing.T) {
	d := NewDict(itemID)
	if d.Update(item{ID: "ghost"}) {
		t.Error("Update of absent id returned true")
	}
	if d.Patch("ghost", func(v item) item { return v }) {
		t.Error("Patch of absent id returned true")
	}
}

func TestPatchInPlace(t *testing.T) {
	d := NewDict(itemID)
	d.Upsert(item{ID: "a", Val: 1}, Append)
	ok := d.Patch("a", func(v item) item {
		v.Val += 10
		return v
	})
	if !ok {
		t.Fatal("Patch returned false")
	}
	got, _ := d.Get("a")
	if got.Val != 11 {
		t.Errorf("Val = %d, want 11", got.Val)
	}
}

func TestRemove(t *testing.T) {
	d := NewDict(itemID)
	d.Upsert(item{ID: "a"}, Append)
	d.Upsert(item{ID: "b"}, Append)
	d.Upsert(item{ID: "c"}, Append)

	if !d.RemoveID("b") {
		t.Fatal("RemoveID(b) = false")
	}
	if d.RemoveID("b") {
		t.Error("second RemoveID(b) = true")
	}
	if _, ok := d.Get("b"); ok {
		t.Error("b still findable after remove")
	}
	// c shifted down; index must follow.
	if d.IndexOf("c") != 1 {
		t.Errorf("c at %d after remove, want 1", d.IndexOf("c"))
	}
	checkInvariants(t, d)
}

func TestFilterPreservesOrder(t *testing.T) {
	d := NewDict(itemID)
	for i := 0; i < 10; i++ {
		d.Upsert(item{ID: fmt.Sprintf("i%d", i), Val: i}, Append)
	}
	d.Filter(func(v item) bool { return v.Val%2 == 0 })

	if d.Len() != 5 {
		t.Fatalf("len = %d, want 5", d.Len())
	}
	prev := -1
	for _, it := range d.All() {
		if it.Val <= prev {
			t.Errorf("order broken: %d after %d", it.Val, prev)
		}
		prev = it.Val
	}
	checkInvariants(t, d)
}

func TestClear(t *testing.T) {
	d := NewDict(itemID)
	d.Upsert(item{ID: "a"}, Append)
	d.Clear()
	if d.Len() != 0 {
		t.Errorf("len after clear = %d", d.Len())
	}
	if _, ok := d.Get("a"); ok {
		t.Error("a survived clear")
	}
}

func TestSortedInsert(t *testing.T) {
	// Sort key is the id itself; Dict orders descending.
	d := NewSortedDict(itemID, itemID)
	d.Upsert(item{ID: "b"}, Append)
	d.Upsert(item{ID: "c"}, Append)
	d.Upsert(item{ID: "a"}, Append)

	want := []string{"c", "b", "a"}
	for i, it := range d.All() {
		if it.ID != want[i] {
			t.Errorf("position %d = %q, want %q", i, it.ID, want[i])
		}
	}
	checkInvariants(t, d)
}

func TestJSONRoundTrip(t *testing.T) {
	d := NewDict(itemID)
	d.Upsert(item{ID: "a", Val: 1}, Append)
	d.Upsert(item{ID: "b", Val: 2}, Append)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}

	restored := NewDict(itemID)
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 2 {
		t.Fatalf("restored len = %d, want 2", restored.Len())
	}
	for i, it := range restored.All() {
		if it != d.All()[i] {
			t.Errorf("entry %d = %+v, want %+v", i, it, d.All()[i])
		}
	}
	checkInvariants(t, restored)
}

func TestEmptyMarshalsAsArray(t *testing.T) {
	d := NewDict(itemID)
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("empty dict marshals as %s, want []", data)
	}
}

// TestInvariantsUnderMixedOps runs a fixed scripted mix of operations and
// checks the structural invariants after every step.
func TestInvariantsUnderMixedOps(t *testing.T) {
	d := NewDict(itemID)
	ops := []func(){
		func() { d.Upsert(item{ID: "a", Val: 1}, Append) },
		func() { d.Upsert(item{ID: "b", Val: 2}, Prepend) },
		func() { d.Upsert(item{ID: "c", Val: 3}, Append) },
		func() { d.Upsert(item{ID: "a", Val: 4}, Append) },
		func() { d.RemoveID("b") },
		func() { d.Patch("c", func(v item) item { v.Val = 9; return v }) },
		func() { d.Upsert(item{ID: "d", Val: 5}, Prepend) },
		func() { d.Filter(func(v item) bool { return v.Val > 3 }) },
		func() { d.Upsert(item{ID: "e", Val: 6}, Append) },
		func() { d.Clear() },
		func() { d.Upsert(item{ID: "z", Val: 0}, Append) },
	}
	for i, op := range ops {
		op()
		t.Run(fmt.Sprintf("step%d", i), func(t *testing.T) {
			checkInvariants(t, d)
		})
	}
}
