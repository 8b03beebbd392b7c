package models

import "time"

// DocumentRecord is the stored metadata row for one uploaded document. The
// file contents live in the (out-of-scope) upload store; the engine keeps
// labels for gating counts and for the files snapshot captured in revisions.
type DocumentRecord struct {
	StageID    string    `json:"stage_id"`
	Label      string    `json:"label"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}
