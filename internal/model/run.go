// Package model defines the data structures used throughout the application.
package model

import "time"

// Run records a single execution request: the code blocks that were
// submitted and the outcome of running them.
type Run struct {
	ID         string    `json:"id"`
	Language   string    `json:"language"`
	BlockCount int       `json:"blockCount"`
	ExitCode   int       `json:"exitCode"`
	Output     string    `json:"output"`
	CodeFile   string    `json:"codeFile,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}
