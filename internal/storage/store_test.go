package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixil98/go-testutil"
)

// mockSpec implements ValidatingSpec for testing FileStore.
type mockSpec struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func (s *mockSpec) Validate() error {
	return nil
}

func TestNewFileStore_Empty(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewFileStore[*mockSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "path", store.path, tmpDir)
	testutil.AssertEqual(t, "records length", len(store.records), 0)
}

func TestNewFileStore_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records", "players")

	_, err := NewFileStore[*mockSpec](path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat store directory: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected store path to be a directory")
	}
}

func TestNewFileStore_LoadsExistingDocuments(t *testing.T) {
	tmpDir := t.TempDir()

	docs := []struct {
		id   string
		spec *mockSpec
	}{
		{"record-1", &mockSpec{Name: "First", Value: 1}},
		{"record-2", &mockSpec{Name: "Second", Value: 2}},
	}

	for _, d := range docs {
		doc := Document[*mockSpec]{
			Version:    1,
			Identifier: Identifier(d.id),
			Spec:       d.spec,
		}
		data, err := json.Marshal(doc)
		if err != nil {
			t.Fatalf("failed to marshal test document: %v", err)
		}
		err = os.WriteFile(filepath.Join(tmpDir, d.id+".json"), data, 0644)
		if err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}
	}

	store, err := NewFileStore[*mockSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "record count", len(store.records), 2)

	rec := store.Get("record-1")
	if rec == nil {
		t.Fatal("expected record-1 to be loaded")
	}
	testutil.AssertEqual(t, "name", rec.Name, "First")
}

func TestFileStore_Get_Missing(t *testing.T) {
	store, err := NewFileStore[*mockSpec](t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec := store.Get("nope"); rec != nil {
		t.Errorf("Get on missing id = %v, want nil", rec)
	}
}

func TestFileStore_SaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewFileStore[*mockSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = store.Save("record-9", &mockSpec{Name: "Nine", Value: 9})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// Cached value is visible immediately.
	rec := store.Get("record-9")
	if rec == nil {
		t.Fatal("expected cached record")
	}
	testutil.AssertEqual(t, "value", rec.Value, 9)

	// A fresh store sees the persisted document.
	reopened, err := NewFileStore[*mockSpec](tmpDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec = reopened.Get("record-9")
	if rec == nil {
		t.Fatal("expected persisted record after reopen")
	}
	testutil.AssertEqual(t, "name", rec.Name, "Nine")

	// No stray temp files left behind.
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestFileStore_Save_RejectsUnsafeIds(t *testing.T) {
	root := t.TempDir()
	storeDir := filepath.Join(root, "store")

	store, err := NewFileStore[*mockSpec](storeDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{"", "a/../../evil", "a/b", `a\b`, "a:b"} {
		err := store.Save(id, &mockSpec{Name: "x"})
		testutil.AssertErrorContains(t, err, "invalid record id")
	}

	// Nothing escaped the store directory.
	if _, err := os.Stat(filepath.Join(root, "evil.json")); !os.IsNotExist(err) {
		t.Errorf("record written outside store directory: %v", err)
	}

	entries, err := os.ReadDir(storeDir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	testutil.AssertEqual(t, "store entries", len(entries), 0)
}

func TestFileStore_Save_Overwrite(t *testing.T) {
	store, err := NewFileStore[*mockSpec](t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Save("r", &mockSpec{Name: "old"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save("r", &mockSpec{Name: "new"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	testutil.AssertEqual(t, "name", store.Get("r").Name, "new")
}
