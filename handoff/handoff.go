// Package handoff synchronizes the user's artifact selection with the
// worker through a filesystem drop.
//
// A Channel owns one per-run file at an unpredictable path. The worker is
// told the path up front and polls it; Commit writes the selection
// document, and Close deletes it. Close is safe to call more than once and
// tolerates the file already being gone.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/pithecene-io/uproot/iox"
)

// ErrClosed is returned by Commit after Close.
var ErrClosed = errors.New("handoff channel closed")

// Document is the JSON shape read by the worker.
type Document struct {
	SelectedIDs []string `json:"selectedIds"`
}

// Encode renders the handoff document. A nil id list encodes as [].
func Encode(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(Document{SelectedIDs: ids})
}

// Selection is a point-in-time selection to commit.
type Selection struct {
	IDs []string
	// Revision identifies the selection state the ids were taken from.
	// Committing the same revision twice is a no-op.
	Revision uint64
}

// Channel is the per-run selection handoff.
type Channel struct {
	mu sync.Mutex

	dir     string
	path    string
	ownsDir bool

	committed    bool
	committedRev uint64
	commits      int
	closed       bool
}

// New creates a channel whose file lives in a fresh private directory
// under baseDir (os.TempDir when empty). The file itself is not created
// until the first Commit.
func New(baseDir string) (*Channel, error) {
	dir, err := os.MkdirTemp(baseDir, "uproot-handoff-")
	if err != nil {
		return nil, fmt.Errorf("create handoff directory: %w", err)
	}
	name := "selection-" + uuid.NewString() + ".json"
	return &Channel{
		dir:     dir,
		path:    filepath.Join(dir, name),
		ownsDir: true,
	}, nil
}

// Path returns the location the worker should poll.
func (c *Channel) Path() string {
	return c.path
}

// Commit writes sel to the handoff file.
// Returns wrote=false without touching the file when sel.Revision was
// already committed.
func (c *Channel) Commit(sel Selection) (wrote bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}
	if c.committed && c.committedRev == sel.Revision {
		return false, nil
	}

	data, err := Encode(sel.IDs)
	if err != nil {
		return false, fmt.Errorf("encode selection: %w", err)
	}
	if err := iox.WriteFileAtomic(c.path, data, 0o600); err != nil {
		return false, fmt.Errorf("write handoff file: %w", err)
	}

	c.committed = true
	c.committedRev = sel.Revision
	c.commits++
	return true, nil
}

// Committed reports whether any selection has been written.
func (c *Channel) Committed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// CommittedRevision returns the revision of the last write.
func (c *Channel) CommittedRevision() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committedRev, c.committed
}

// Commits returns the number of writes performed.
func (c *Channel) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

// Close deletes the handoff file and its directory. Missing files are not
// an error and repeated calls are no-ops.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if err := iox.RemoveIfExists(c.path); err != nil {
		return fmt.Errorf("remove handoff file: %w", err)
	}
	if c.ownsDir {
		if err := iox.RemoveIfExists(c.dir); err != nil {
			return fmt.Errorf("remove handoff directory: %w", err)
		}
	}
	return nil
}
