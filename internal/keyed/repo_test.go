package keyed

import "testing"

type label struct {
	ID   string
	Name string
}

func TestRepoCopyOnInsert(t *testing.T) {
	r := NewRepo[label]()
	l := label{ID: "1", Name: "work"}
	r.UpsertByID(l.ID, l)

	// Mutating the caller's value must not leak into the repo.
	l.Name = "mutated"

	got, ok := r.FindByID("1")
	if !ok {
		t.Fatal("label not found")
	}
	if got.Name != "work" {
		t.Errorf("Name = %q, want work (copy-on-insert)", got.Name)
	}
}

func TestRepoDeleteAndCount(t *testing.T) {
	r := NewRepo[label]()
	r.UpsertByID("1", label{ID: "1"})
	r.UpsertByID("2", label{ID: "2"})

	if r.Count() != 2 {
		t.Fatalf("count = %d, want 2", r.Count())
	}
	if !r.DeleteByID("1") {
		t.Error("DeleteByID(1) = false")
	}
	if r.DeleteByID("1") {
		t.Error("second DeleteByID(1) = true")
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
	if len(r.FindAll()) != 1 {
		t.Errorf("FindAll len = %d, want 1", len(r.FindAll()))
	}
}

func TestRepoReplace(t *testing.T) {
	r := NewRepo[label]()
	r.UpsertByID("old", label{ID: "old"})

	src := map[string]label{"a": {ID: "a"}, "b": {ID: "b"}}
	r.Replace(src)

	// Replace copies; mutating src afterwards must not affect the repo.
	delete(src, "a")

	if r.Count() != 2 {
		t.Fatalf("count = %d, want 2", r.Count())
	}
	if _, ok := r.FindByID("old"); ok {
		t.Error("old entry survived Replace")
	}
}
