package domain

import "time"

// SilverFileResult is the outcome of running one silver SQL file.
type SilverFileResult struct {
	File       string
	Statements int
	Err        error
	Duration   time.Duration
}

// OK reports whether every statement in the file succeeded.
func (r SilverFileResult) OK() bool { return r.Err == nil }
