package book

// Status represents the terminal fetch state of a single chapter.
// Results are materialized only once final: a chapter either fetched,
// exhausted its retries, or was skipped when a lenient tolerance let
// the job proceed without it.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)
