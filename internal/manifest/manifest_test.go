package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildAndSave(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "BatP1.csv")
	if err := os.WriteFile(csvPath, []byte("Time[s],A\n0,1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := Build([]string{csvPath})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(m.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(m.Items))
	}
	item := m.Items[0]
	if item.Type != "csv" {
		t.Errorf("type = %q, want csv", item.Type)
	}
	if item.Size != 14 {
		t.Errorf("size = %d, want 14", item.Size)
	}
	if len(item.Sha256) != 64 {
		t.Errorf("sha256 = %q", item.Sha256)
	}

	out := filepath.Join(dir, "manifest.json")
	if err := Save(m, out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var loaded Manifest
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loaded.ShaAlgo != "sha256" || len(loaded.Items) != 1 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestBuildMissingFile(t *testing.T) {
	if _, err := Build([]string{filepath.Join(t.TempDir(), "absent.csv")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDigestStable(t *testing.T) {
	a := Item{Path: "a.csv", Sha256: "11"}
	b := Item{Path: "b.csv", Sha256: "22"}
	m1 := Manifest{Items: []Item{a, b}}
	m2 := Manifest{Items: []Item{b, a}}
	if m1.Digest() != m2.Digest() {
		t.Error("digest depends on item order")
	}
	if m1.Digest() == (Manifest{}).Digest() {
		t.Error("digest ignores items")
	}
}
