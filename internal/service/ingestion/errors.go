package ingestion

import (
	"errors"
	"fmt"
)

// Step names one guarded stage of the bronze procedure.
type Step string

// Procedure steps in execution order.
const (
	StepValidate  Step = "validate"
	StepExists    Step = "exists"
	StepHeader    Step = "header"
	StepStage     Step = "stage"
	StepParse     Step = "parse"
	StepReconcile Step = "reconcile"
	StepRename    Step = "rename"
	StepDrop      Step = "drop"
	StepWrite     Step = "write"
)

// ErrTooFewColumns is returned when the parsed file is narrower than its
// declared header.
var ErrTooFewColumns = errors.New("parsed fewer columns than the declared header")

// StepError records which step of which job failed.
type StepError struct {
	Step  Step
	Table string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.Table, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
