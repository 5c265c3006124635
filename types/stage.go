// Package types defines core domain types for the uproot orchestrator.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"strings"
)

// Stage is one of the fixed, ordered phases of a removal run.
type Stage int

// Stages in declared order. The order is significant: stages complete
// strictly in this sequence.
const (
	StageKickoff Stage = iota
	StageDefaultUninstall
	StageProcessSweep
	StageArtifactDiscovery
	StageSelectionHold
	StageCleanup
	StageSummary
)

// AllStages returns every stage in declared order.
func AllStages() []Stage {
	return []Stage{
		StageKickoff,
		StageDefaultUninstall,
		StageProcessSweep,
		StageArtifactDiscovery,
		StageSelectionHold,
		StageCleanup,
		StageSummary,
	}
}

// StageCount is the number of stages.
const StageCount = int(StageSummary) + 1

var stageNames = [...]string{
	StageKickoff:           "Kickoff",
	StageDefaultUninstall:  "DefaultUninstall",
	StageProcessSweep:      "ProcessSweep",
	StageArtifactDiscovery: "ArtifactDiscovery",
	StageSelectionHold:     "SelectionHold",
	StageCleanup:           "Cleanup",
	StageSummary:           "Summary",
}

// String returns the wire name of the stage.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

// Valid reports whether s is one of the declared stages.
func (s Stage) Valid() bool {
	return s >= StageKickoff && s <= StageSummary
}

// MarshalText encodes the stage as its wire name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// stageLookup maps normalized wire names to stages.
var stageLookup = map[string]Stage{
	"kickoff":           StageKickoff,
	"defaultuninstall":  StageDefaultUninstall,
	"uninstall":         StageDefaultUninstall,
	"processsweep":      StageProcessSweep,
	"processes":         StageProcessSweep,
	"artifactdiscovery": StageArtifactDiscovery,
	"discovery":         StageArtifactDiscovery,
	"selectionhold":     StageSelectionHold,
	"selection":         StageSelectionHold,
	"cleanup":           StageCleanup,
	"summary":           StageSummary,
}

// ParseStage maps a worker stage name to a Stage.
// Matching ignores case, '_' and '-'. Unknown names resolve to StageKickoff
// with ok=false so that a misbehaving worker cannot advance the run.
func ParseStage(name string) (stage Stage, ok bool) {
	key := strings.ToLower(name)
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	if s, found := stageLookup[key]; found {
		return s, true
	}
	return StageKickoff, false
}

// StageStatus is the lifecycle status of a single stage.
type StageStatus string

// Stage status constants.
const (
	StagePending   StageStatus = "pending"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// IsTerminal returns true if the status is Completed or Failed.
func (s StageStatus) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// StageState is a read-only view of one stage.
type StageState struct {
	Stage  Stage       `json:"stage"`
	Status StageStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
}

// UnmarshalText decodes a stage wire name. Unlike ParseStage, unknown
// names are an error.
func (s *Stage) UnmarshalText(text []byte) error {
	stage, ok := ParseStage(string(text))
	if !ok {
		return fmt.Errorf("unknown stage %q", text)
	}
	*s = stage
	return nil
}
