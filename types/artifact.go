//nolint:revive // types is a common Go package naming convention
package types

// Defaults applied when the worker omits optional artifact fields.
const (
	DefaultArtifactGroup = "Other"
	DefaultArtifactKind  = "Unknown"
)

// RemovalState is the per-run removal outcome of an artifact.
type RemovalState string

// Removal state constants.
const (
	RemovalPending RemovalState = "pending"
	RemovalRemoved RemovalState = "removed"
	RemovalFailed  RemovalState = "failed"
)

// ArtifactSpec is the immutable identity of a discovered artifact,
// as reported by the worker in an artifacts event.
type ArtifactSpec struct {
	ID                        string `json:"id" yaml:"id"`
	Group                     string `json:"group" yaml:"group"`
	Kind                      string `json:"kind" yaml:"kind"`
	DisplayName               string `json:"display_name" yaml:"display_name"`
	Path                      string `json:"path" yaml:"path"`
	SizeBytes                 int64  `json:"size_bytes" yaml:"size_bytes"`
	RequiresElevatedPrivilege bool   `json:"requires_elevated_privilege" yaml:"requires_elevated_privilege"`
	DefaultSelected           bool   `json:"default_selected" yaml:"default_selected"`
}

// Artifact is a read-only view of an artifact with its mutable per-run state.
type Artifact struct {
	ArtifactSpec
	Selected      bool         `json:"selected" yaml:"selected"`
	RemovalState  RemovalState `json:"removal_state" yaml:"removal_state"`
	FailureDetail string       `json:"failure_detail,omitempty" yaml:"failure_detail,omitempty"`
}

// ArtifactGroup is a derived view over artifacts sharing a group key.
type ArtifactGroup struct {
	Name          string     `json:"name" yaml:"name"`
	Artifacts     []Artifact `json:"artifacts" yaml:"artifacts"`
	SelectedCount int        `json:"selected_count" yaml:"selected_count"`
	SelectedBytes int64      `json:"selected_bytes" yaml:"selected_bytes"`
}
