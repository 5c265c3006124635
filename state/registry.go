package state

import (
	"fmt"

	"github.com/pithecene-io/uproot/types"
)

// SelectionChange is published to registry subscribers after any change
// to the selection set.
type SelectionChange struct {
	// IDs lists the artifacts whose selection flipped. Empty when Replaced.
	IDs []string
	// Replaced is true when the whole registry was swapped.
	Replaced bool
	// Revision is the registry revision after the change.
	Revision uint64
}

// entry is the mutable per-run record of one artifact.
type entry struct {
	spec          types.ArtifactSpec
	selected      bool
	removal       types.RemovalState
	failureDetail string
}

// Registry holds the discovered artifacts, grouped, with selection and
// removal state. Lookup by id is O(1); iteration follows discovery order.
type Registry struct {
	order    []*entry
	byID     map[string]*entry
	groups   []string
	revision uint64

	observers []func(SelectionChange)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*entry)}
}

// Subscribe registers fn to be called after every selection change.
// Observers run synchronously on the writer's goroutine.
func (r *Registry) Subscribe(fn func(SelectionChange)) {
	r.observers = append(r.observers, fn)
}

// Replace atomically swaps the full artifact set. Selection starts from each
// item's DefaultSelected; no state from the previous set survives.
// Items with a duplicate id are dropped (first wins) and returned.
func (r *Registry) Replace(items []types.ArtifactSpec) (duplicates []string) {
	order := make([]*entry, 0, len(items))
	byID := make(map[string]*entry, len(items))
	var groups []string
	seenGroup := make(map[string]bool)

	for _, it := range items {
		if _, dup := byID[it.ID]; dup {
			duplicates = append(duplicates, it.ID)
			continue
		}
		e := &entry{
			spec:     it,
			selected: it.DefaultSelected,
			removal:  types.RemovalPending,
		}
		order = append(order, e)
		byID[it.ID] = e
		if !seenGroup[it.Group] {
			seenGroup[it.Group] = true
			groups = append(groups, it.Group)
		}
	}

	r.order = order
	r.byID = byID
	r.groups = groups
	r.revision++
	r.notify(SelectionChange{Replaced: true, Revision: r.revision})
	return duplicates
}

// SetSelected sets the selection flag of one artifact.
// Returns changed=false when the flag already had the requested value.
func (r *Registry) SetSelected(id string, selected bool) (bool, error) {
	e, ok := r.byID[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownArtifact, id)
	}
	if e.selected == selected {
		return false, nil
	}
	e.selected = selected
	r.revision++
	r.notify(SelectionChange{IDs: []string{id}, Revision: r.revision})
	return true, nil
}

// SelectAll selects every artifact and returns how many flipped.
func (r *Registry) SelectAll() int {
	return r.setAll(true)
}

// SelectNone deselects every artifact and returns how many flipped.
func (r *Registry) SelectNone() int {
	return r.setAll(false)
}

func (r *Registry) setAll(selected bool) int {
	var flipped []string
	for _, e := range r.order {
		if e.selected != selected {
			e.selected = selected
			flipped = append(flipped, e.spec.ID)
		}
	}
	if len(flipped) == 0 {
		return 0
	}
	r.revision++
	r.notify(SelectionChange{IDs: flipped, Revision: r.revision})
	return len(flipped)
}

// SelectedIDs returns the currently selected ids in registry order.
// The result is never nil.
func (r *Registry) SelectedIDs() []string {
	ids := make([]string, 0, len(r.order))
	for _, e := range r.order {
		if e.selected {
			ids = append(ids, e.spec.ID)
		}
	}
	return ids
}

// SelectedTotals returns the selected artifact count and byte total.
func (r *Registry) SelectedTotals() (count int, bytes int64) {
	for _, e := range r.order {
		if e.selected {
			count++
			bytes += e.spec.SizeBytes
		}
	}
	return count, bytes
}

// Get returns a copy of one artifact.
func (r *Registry) Get(id string) (types.Artifact, bool) {
	e, ok := r.byID[id]
	if !ok {
		return types.Artifact{}, false
	}
	return e.view(), true
}

// Len returns the number of artifacts.
func (r *Registry) Len() int {
	return len(r.order)
}

// Revision increases on every replace or selection change.
func (r *Registry) Revision() uint64 {
	return r.revision
}

// Artifacts returns copies of all artifacts in registry order.
func (r *Registry) Artifacts() []types.Artifact {
	out := make([]types.Artifact, 0, len(r.order))
	for _, e := range r.order {
		out = append(out, e.view())
	}
	return out
}

// Groups returns the derived group views in first-seen order.
func (r *Registry) Groups() []types.ArtifactGroup {
	idx := make(map[string]int, len(r.groups))
	out := make([]types.ArtifactGroup, len(r.groups))
	for i, name := range r.groups {
		idx[name] = i
		out[i].Name = name
	}
	for _, e := range r.order {
		g := &out[idx[e.spec.Group]]
		g.Artifacts = append(g.Artifacts, e.view())
		if e.selected {
			g.SelectedCount++
			g.SelectedBytes += e.spec.SizeBytes
		}
	}
	return out
}

func (r *Registry) notify(change SelectionChange) {
	for _, fn := range r.observers {
		fn(change)
	}
}

func (e *entry) view() types.Artifact {
	return types.Artifact{
		ArtifactSpec:  e.spec,
		Selected:      e.selected,
		RemovalState:  e.removal,
		FailureDetail: e.failureDetail,
	}
}
