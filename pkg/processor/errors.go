package processor

import (
	"fmt"
	"strings"
)

// ValidationError reports a node that cannot be turned into a record.
type ValidationError struct {
	NodeID string   // id, or the source key when the id itself is missing
	Fields []string // missing required fields
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("node %s: missing required field(s) %s", e.NodeID, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("node %s: %s", e.NodeID, e.Reason)
}

// BatchError reports a tree whose records were not all produced.
type BatchError struct {
	SetID   string
	Summary Summary
	Cause   error // first node failure, set in fail-fast mode
}

func (e *BatchError) Error() string {
	msg := fmt.Sprintf("standard set %s: %d of %d nodes failed (%s)",
		e.SetID, e.Summary.Failed, e.Summary.Total, strings.Join(e.Summary.FailedIDs, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BatchError) Unwrap() error {
	return e.Cause
}
