package timeline

import (
	"fmt"
	"strings"
)

// IssueKind classifies a validation problem found in an input record.
type IssueKind string

const (
	IssueMalformedDate    IssueKind = "malformed_date"
	IssueMalformedPattern IssueKind = "malformed_pattern"
)

// ValidationIssue describes one offending field of one record. Index is the
// position of the offending element in a collection field, or -1.
type ValidationIssue struct {
	Kind     IssueKind `json:"kind"`
	RecordID string    `json:"recordId,omitempty"`
	Field    string    `json:"field"`
	Index    int       `json:"index"`
	Value    string    `json:"value,omitempty"`
	Reason   string    `json:"reason"`
}

func (i ValidationIssue) String() string {
	field := i.Field
	if i.Index >= 0 {
		field = fmt.Sprintf("%s[%d]", i.Field, i.Index)
	}
	if i.RecordID != "" {
		return fmt.Sprintf("%s %s: %s (%s)", i.RecordID, field, i.Reason, i.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", field, i.Reason, i.Kind)
}

// ValidationError rejects a whole record. It is returned, never panicked.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid record"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

// Field returns the first offending field, used when surfacing the error to a client.
func (e *ValidationError) Field() string {
	if e == nil || len(e.Issues) == 0 {
		return ""
	}
	return e.Issues[0].Field
}

func dateIssue(recordID, field, value string, err error) ValidationIssue {
	return ValidationIssue{
		Kind:     IssueMalformedDate,
		RecordID: recordID,
		Field:    field,
		Index:    -1,
		Value:    value,
		Reason:   err.Error(),
	}
}

func patternIssue(recordID string, index int, value, reason string) ValidationIssue {
	return ValidationIssue{
		Kind:     IssueMalformedPattern,
		RecordID: recordID,
		Field:    "schedule",
		Index:    index,
		Value:    value,
		Reason:   reason,
	}
}
