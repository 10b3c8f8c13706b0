// Package model defines the data structures persisted by the application.
package model

import "time"

// Run is the stored record of one completed execution: the request that
// came in and the result envelope that went out. Runs are immutable once
// written; there is no update path.
type Run struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestId"` // the execution's workspace id
	Language   string    `json:"language"`
	Source     string    `json:"source"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	Status     string    `json:"status"`
	ExitCode   int       `json:"exitCode"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}
