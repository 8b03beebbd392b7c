package models

// ActionSet is the exact set of actions permitted for a (project, role set,
// stage) combination, computed fresh by the action resolver. A zero ActionSet
// (every boolean false, every list empty) means no action is permitted; this
// is what read-only snapshot views always resolve to.
type ActionSet struct {
	CanApprove bool `json:"can_approve"`
	CanReject  bool `json:"can_reject"`

	// AlreadyDecided is set when the caller holds a required role that has
	// recorded a decision for the current stage visit. Repeat approval is a
	// no-op, surfaced here rather than as an error.
	AlreadyDecided bool `json:"already_decided"`

	// CanMove lists target stages the caller may move the project to.
	// Missing files or pending approvals empty this list even when a
	// transition rule would otherwise allow the role.
	CanMove []string `json:"can_move"`

	// MissingFiles lists unmet mandatory document rules for the current
	// stage, annotated with the shortfall ("BOQ (need 1)").
	MissingFiles []string `json:"missing_files"`
	FilesOK      bool     `json:"files_ok"`
}
