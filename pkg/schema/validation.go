package schema

import (
	"encoding/json"
	"fmt"
)

// Severity ranks an issue. Only errors block downstream use.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue codes shared by the validator and the converter.
const (
	IssueDuplicateID      = "DUPLICATE_ID"
	IssueMissingID        = "MISSING_ID"
	IssueMissingName      = "MISSING_NAME"
	IssueUnknownAction    = "UNKNOWN_ACTION"
	IssueMissingField     = "MISSING_FIELD"
	IssueInvalidField     = "INVALID_FIELD"
	IssueInvalidStructure = "INVALID_STRUCTURE"
	IssueSchema           = "SCHEMA_VIOLATION"
	IssueExpression       = "INVALID_EXPRESSION"
	IssueDanglingEdge     = "DANGLING_EDGE"
	IssueMarkerEdge       = "MARKER_EDGE"
	IssueUnreachable      = "UNREACHABLE_NODE"
	IssueUntracked        = "UNTRACKED_NODE"
	IssueDroppedNode      = "DROPPED_NODE"
	IssueOrphanNode       = "ORPHAN_NODE"
	IssueHandle           = "INVALID_HANDLE"
	IssueSuggestion       = "SUGGESTION"
)

// Issue is a single problem found in a flow tree or graph.
type Issue struct {
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Field      string   `json:"field,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	StepID     string   `json:"step_id,omitempty"`
	Path       string   `json:"path,omitempty"`
}

func (i Issue) String() string {
	if i.StepID != "" {
		return fmt.Sprintf("%s: step %s: %s", i.Severity, i.StepID, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Severity, i.Message)
}

// ValidationResult aggregates every issue found by a validation pass.
type ValidationResult struct {
	Issues []Issue `json:"issues"`
}

// Valid returns true if there are no error-severity issues.
func (r *ValidationResult) Valid() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Add appends an issue.
func (r *ValidationResult) Add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(stepID, field, code, message string) *Issue {
	return r.add(SeverityError, stepID, field, code, message)
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(stepID, field, code, message string) *Issue {
	return r.add(SeverityWarning, stepID, field, code, message)
}

// AddInfo appends an info-severity issue.
func (r *ValidationResult) AddInfo(stepID, field, code, message string) *Issue {
	return r.add(SeverityInfo, stepID, field, code, message)
}

// add returns a pointer into r.Issues so callers can attach a suggestion or
// path; it is only valid until the next append.
func (r *ValidationResult) add(sev Severity, stepID, field, code, message string) *Issue {
	r.Issues = append(r.Issues, Issue{
		Severity: sev, Code: code, Message: message, Field: field, StepID: stepID,
	})
	return &r.Issues[len(r.Issues)-1]
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Errors returns the error-severity issues.
func (r *ValidationResult) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns the warning-severity issues.
func (r *ValidationResult) Warnings() []Issue { return r.filter(SeverityWarning) }

// Infos returns the info-severity issues.
func (r *ValidationResult) Infos() []Issue { return r.filter(SeverityInfo) }

func (r *ValidationResult) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// ForStep returns every issue attached to the given step id.
func (r *ValidationResult) ForStep(stepID string) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.StepID == stepID {
			out = append(out, i)
		}
	}
	return out
}

// MarshalJSON renders the result as {"valid": ..., "issues": [...]}.
func (r ValidationResult) MarshalJSON() ([]byte, error) {
	issues := r.Issues
	if issues == nil {
		issues = []Issue{}
	}
	return json.Marshal(struct {
		Valid  bool    `json:"valid"`
		Issues []Issue `json:"issues"`
	}{Valid: r.Valid(), Issues: issues})
}

// ToError converts the result to a FlowError if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	errs := r.Errors()
	msg := errs[0].Message
	if len(errs) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(errs))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(errs),
			"warning_count": len(r.Warnings()),
			"errors":        errs,
		})
}
