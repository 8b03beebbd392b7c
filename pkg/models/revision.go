package models

import (
	"encoding/json"
	"time"
)

// Revision is an immutable point-in-time copy of a project's full state,
// captured before risky mutations (revise, restore, workflow switch).
// RevisionNumber is 1-based and monotonic per project. Revisions are never
// deleted or rewritten; restore only reads one and writes a new project
// state plus a new safety revision.
type Revision struct {
	ID                string          `json:"id"                 validate:"required"`
	ProjectID         string          `json:"project_id"         validate:"required"`
	RevisionNumber    int             `json:"revision_number"    validate:"min=1"`
	SnapshotDate      time.Time       `json:"snapshot_date"`
	SnapshotJSON      json.RawMessage `json:"snapshot_json"`
	FilesSnapshot     json.RawMessage `json:"files_snapshot,omitempty"`
	StageType         string          `json:"stage_type"`
	ReasonForRevision string          `json:"reason_for_revision"`

	// VisibleComponents freezes the component visibility in force at
	// capture time so a read-only replay renders the same screen set.
	VisibleComponents []string `json:"visible_components,omitempty"`
}

// Snapshot deserializes the captured project state. The returned project is
// detached: mutating it never touches the stored revision.
func (r *Revision) Snapshot() (*Project, error) {
	var project Project
	if err := json.Unmarshal(r.SnapshotJSON, &project); err != nil {
		return nil, err
	}

	return &project, nil
}

// Documents deserializes the document records captured with the snapshot.
// A revision taken of a project with no documents returns nil.
func (r *Revision) Documents() ([]DocumentRecord, error) {
	if len(r.FilesSnapshot) == 0 {
		return nil, nil
	}

	var records []DocumentRecord
	if err := json.Unmarshal(r.FilesSnapshot, &records); err != nil {
		return nil, err
	}

	return records, nil
}
