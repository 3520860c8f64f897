package dto

// SequenceStep is one pending upgrade step
type SequenceStep struct {
	Module string `json:"module"`
	From   string `json:"from"`
	To     string `json:"to"`
	Script string `json:"script"`
}

// SequenceResponse lists the pending upgrade steps in execution order
type SequenceResponse struct {
	Steps []SequenceStep `json:"steps"`
	Total int            `json:"total"`
}

// UpgradeRequest represents an upgrade request
type UpgradeRequest struct {
	WhatIf      bool              `json:"what_if"`     // Optional, default false
	Transaction string            `json:"transaction"` // Optional: none or perStep
	Variables   map[string]string `json:"variables"`   // Optional, override configured variables
}

// UpgradeResponse represents an upgrade response
type UpgradeResponse struct {
	RunID   string   `json:"run_id,omitempty"`
	Success bool     `json:"success"`
	WhatIf  bool     `json:"what_if"`
	Applied []string `json:"applied"`
	Errors  []string `json:"errors"`
	Queued  bool     `json:"queued"`
	JobID   string   `json:"job_id,omitempty"`
}

// ErrorResponse is returned for failed requests. Blocked lists the next
// script of every module that could not be sequenced.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Blocked []string `json:"blocked,omitempty"`
}
