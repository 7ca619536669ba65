// Package validation checks a flow tree and its graph and reports typed
// issues. It never mutates its input and never fails: every problem becomes
// an issue in the returned result.
package validation

import (
	"sync"

	"github.com/rendis/flowgraph/internal/expressions"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Validator runs the validation pipeline:
//  1. Structural (JSON Schema of the tree)
//  2. Tree (ids, name, action kinds, branch shape)
//  3. Per-step rules keyed by action kind
//  4. Cross-cutting (timeout, retry, schedule)
//  5. Graph (edges, handles, tracking, reachability)
//
// Stages do not short-circuit; the editor always gets the full list.
type Validator struct {
	structural *StructuralValidator
	checkers   *expressions.Set
	strict     bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithStrictExpressions enables real parsing of expressions with the expr,
// CEL and jq libraries on top of the bracket-balance heuristic. Parse
// failures are reported as warnings.
func WithStrictExpressions(strict bool) Option {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator creates a Validator.
func NewValidator(opts ...Option) (*Validator, error) {
	sv, err := NewStructuralValidator()
	if err != nil {
		return nil, err
	}
	checkers, err := expressions.NewSet()
	if err != nil {
		return nil, err
	}

	v := &Validator{structural: sv, checkers: checkers}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate checks the tree, the graph, or both; either may be nil. The
// result is valid iff it holds no error-severity issue.
func (v *Validator) Validate(def *schema.FlowDefinition, g *schema.Graph) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if def == nil && g == nil {
		result.AddError("", "", schema.IssueInvalidStructure, "nothing to validate: flow and graph are both missing")
		return result
	}

	if def != nil {
		result.Merge(v.structural.Validate(def))
		result.Merge(validateTree(def))
		result.Merge(v.validateSteps(def))
		result.Merge(validateCrossCutting(def))
	}
	if g != nil {
		result.Merge(validateGraph(g, def))
	}
	return result
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// ValidateFlow validates with a shared default Validator (heuristic
// expression checks only).
func ValidateFlow(def *schema.FlowDefinition, g *schema.Graph) *schema.ValidationResult {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	if defaultErr != nil {
		result := &schema.ValidationResult{}
		result.AddError("", "", schema.IssueInvalidStructure, "validator unavailable: "+defaultErr.Error())
		return result
	}
	return defaultValidator.Validate(def, g)
}
