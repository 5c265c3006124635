package handoff

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func readDoc(t *testing.T, path string) Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read handoff: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode handoff: %v", err)
	}
	return doc
}

func TestChannel_CommitWritesSelection(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	if _, err := os.Stat(c.Path()); !os.IsNotExist(err) {
		t.Fatalf("file should not exist before commit, stat err = %v", err)
	}

	wrote, err := c.Commit(Selection{IDs: []string{"a1", "a3"}, Revision: 1})
	if err != nil || !wrote {
		t.Fatalf("Commit = (%v, %v)", wrote, err)
	}
	doc := readDoc(t, c.Path())
	if !reflect.DeepEqual(doc.SelectedIDs, []string{"a1", "a3"}) {
		t.Errorf("selectedIds = %v", doc.SelectedIDs)
	}
}

func TestChannel_RecommitSameRevisionIsNoop(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	if _, err := c.Commit(Selection{IDs: []string{"a1"}, Revision: 4}); err != nil {
		t.Fatal(err)
	}
	wrote, err := c.Commit(Selection{IDs: []string{"a1"}, Revision: 4})
	if err != nil || wrote {
		t.Errorf("recommit = (%v, %v), want (false, nil)", wrote, err)
	}

	wrote, err = c.Commit(Selection{IDs: []string{"a2"}, Revision: 5})
	if err != nil || !wrote {
		t.Fatalf("commit after edit = (%v, %v)", wrote, err)
	}
	if doc := readDoc(t, c.Path()); !reflect.DeepEqual(doc.SelectedIDs, []string{"a2"}) {
		t.Errorf("selectedIds = %v, want [a2]", doc.SelectedIDs)
	}
	if c.Commits() != 2 {
		t.Errorf("Commits() = %d, want 2", c.Commits())
	}
}

func TestChannel_CloseTwice(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Commit(Selection{IDs: []string{"a1"}, Revision: 1}); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := os.Stat(c.Path()); !os.IsNotExist(err) {
		t.Errorf("handoff file still present: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(c.Path())); !os.IsNotExist(err) {
		t.Errorf("handoff directory still present: %v", err)
	}
	if _, err := c.Commit(Selection{Revision: 2}); !errors.Is(err, ErrClosed) {
		t.Errorf("commit after close: expected ErrClosed, got %v", err)
	}
}

func TestChannel_CloseWithoutCommit(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("close without commit: %v", err)
	}
}

func TestChannel_PathsAreUnpredictable(t *testing.T) {
	base := t.TempDir()
	a, err := New(base)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()
	b, err := New(base)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = b.Close() }()

	if a.Path() == b.Path() {
		t.Error("two channels share a path")
	}
	if !strings.HasPrefix(filepath.Base(a.Path()), "selection-") {
		t.Errorf("unexpected file name %q", filepath.Base(a.Path()))
	}
}

func TestEncode_EmptySelection(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"selectedIds":[]}` {
		t.Errorf("Encode(nil) = %s", data)
	}
}
