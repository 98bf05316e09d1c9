package store

import (
	"errors"
	"testing"
)

func TestToPublicRenamesIdentifier(t *testing.T) {
	rec, err := ToPublic(Document{IDField: "X1", "name": "Flat"})
	if err != nil {
		t.Fatalf("ToPublic: %v", err)
	}
	if rec[PublicIDField] != "X1" {
		t.Fatalf("id = %v", rec[PublicIDField])
	}
	if _, ok := rec[IDField]; ok {
		t.Fatal("internal id leaked into public record")
	}
	if rec["name"] != "Flat" {
		t.Fatalf("name = %v", rec["name"])
	}
}

func TestToPublicEmpty(t *testing.T) {
	if _, err := ToPublic(nil); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
	if _, err := ToPublic(Document{}); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestToStorageStripsIdentifiers(t *testing.T) {
	fields := ToStorage(map[string]any{"id": "spoof", "_id": "spoof2", "name": "n"})
	if _, ok := fields["id"]; ok {
		t.Fatal("public id survived sanitization")
	}
	if _, ok := fields["_id"]; ok {
		t.Fatal("internal id survived sanitization")
	}
	if fields["name"] != "n" {
		t.Fatalf("name = %v", fields["name"])
	}
}

func TestMergeKeepsAbsentFields(t *testing.T) {
	base := Document{IDField: "X1", "a": 1, "b": 2}
	merged := Merge(base, Fields{"b": 3, "c": 4})
	if merged["a"] != 1 || merged["b"] != 3 || merged["c"] != 4 {
		t.Fatalf("merged = %v", merged)
	}
	if base["b"] != 2 {
		t.Fatal("merge mutated the base document")
	}
}
