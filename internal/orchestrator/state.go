package orchestrator

import (
	"cmp"
	"slices"
	"time"

	"outfit-studio/internal/catalog"
)

type Status string

const (
	StatusIdle        Status = "idle"
	StatusClassifying Status = "classifying"
	StatusGenerating  Status = "generating"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

func (s Status) Running() bool {
	return s == StatusClassifying || s == StatusGenerating
}

type Artifact struct {
	ID         string    `json:"id"`
	StyleID    string    `json:"style_id"`
	StyleLabel string    `json:"style_label"`
	ImageData  string    `json:"image"`
	CreatedAt  time.Time `json:"created_at"`

	position int
}

// Snapshot is an immutable copy of the run state handed to observers.
type Snapshot struct {
	RunID     string           `json:"run_id,omitempty"`
	Status    Status           `json:"status"`
	Category  catalog.Category `json:"category,omitempty"`
	Artifacts []Artifact       `json:"artifacts"`
	Completed int              `json:"completed"`
	Total     int              `json:"total"`
	Progress  int              `json:"progress"`
	Error     string           `json:"error,omitempty"`
}

type runState struct {
	runID     string
	status    Status
	category  catalog.Category
	targets   []catalog.Style
	artifacts []Artifact
	completed int
	err       string
}

func (st *runState) addArtifact(a Artifact) {
	st.artifacts = append(st.artifacts, a)
	slices.SortStableFunc(st.artifacts, func(x, y Artifact) int {
		return cmp.Compare(x.position, y.position)
	})
}

func (st *runState) snapshot() Snapshot {
	artifacts := make([]Artifact, len(st.artifacts))
	copy(artifacts, st.artifacts)
	return Snapshot{
		RunID:     st.runID,
		Status:    st.status,
		Category:  st.category,
		Artifacts: artifacts,
		Completed: st.completed,
		Total:     len(st.targets),
		Progress:  progress(st.completed, len(st.targets), st.status),
		Error:     st.err,
	}
}

// progress is round(100*completed/total). A run with nothing to generate
// reports 100 once it is done.
func progress(completed, total int, status Status) int {
	if total <= 0 {
		if status == StatusDone {
			return 100
		}
		return 0
	}
	if completed >= total {
		return 100
	}
	return (200*completed + total) / (2 * total)
}
