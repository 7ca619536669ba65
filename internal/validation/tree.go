package validation

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/rendis/flowgraph/pkg/schema"
)

// stepVisit is one step reached by walkTree together with its location.
type stepVisit struct {
	step *schema.Step
	path string // e.g. steps[1].then[0]
}

// walkTree visits every step depth-first in declaration order.
func walkTree(def *schema.FlowDefinition, fn func(stepVisit)) {
	for _, section := range schema.SectionOrder {
		key := string(section)
		if section == schema.SectionMain {
			key = "steps"
		}
		walkSequence(def.Section(section), key, fn)
	}
}

func walkSequence(steps []schema.Step, prefix string, fn func(stepVisit)) {
	for i := range steps {
		path := fmt.Sprintf("%s[%d]", prefix, i)
		fn(stepVisit{step: &steps[i], path: path})
		walkSequence(steps[i].Then, path+".then", fn)
		walkSequence(steps[i].Else, path+".else", fn)
		walkSequence(steps[i].Body, path+".body", fn)
	}
}

// validateTree checks tree-wide invariants: unique non-empty ids, a flow
// name, known action kinds and nested sequences only where the kind owns
// them.
func validateTree(def *schema.FlowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if strings.TrimSpace(def.Name) == "" {
		result.AddError("", "name", schema.IssueMissingName, "flow name is required")
	}
	if len(def.Steps) == 0 {
		result.AddWarning("", "steps", schema.IssueInvalidStructure, "main section has no steps")
	}

	firstSeen := make(map[string]string)
	walkTree(def, func(v stepVisit) {
		step := v.step

		if strings.TrimSpace(step.ID) == "" {
			result.AddError("", "id", schema.IssueMissingID, fmt.Sprintf("step at %s has no id", v.path)).
				Path = v.path
		} else if first, dup := firstSeen[step.ID]; dup {
			result.AddError(step.ID, "id", schema.IssueDuplicateID,
				fmt.Sprintf("duplicate step id %q (first used at %s)", step.ID, first)).
				Path = v.path
		} else {
			firstSeen[step.ID] = v.path
		}

		checkActionKind(step, v.path, result)
		checkShape(step, v.path, result)
	})

	return result
}

func checkActionKind(step *schema.Step, path string, result *schema.ValidationResult) {
	if step.Action == "" {
		result.AddError(step.ID, "action", schema.IssueUnknownAction, "step has no action").Path = path
		return
	}
	if step.Action.Known() {
		return
	}
	issue := result.AddError(step.ID, "action", schema.IssueUnknownAction,
		fmt.Sprintf("unknown action %q", step.Action))
	issue.Path = path
	if s := closestAction(string(step.Action)); s != "" {
		issue.Suggestion = fmt.Sprintf("did you mean %q?", s)
	}
}

// checkShape enforces that only conditions own then/else and only loops own
// a body.
func checkShape(step *schema.Step, path string, result *schema.ValidationResult) {
	switch step.Action {
	case schema.ActionCondition:
		if len(step.Then) == 0 && len(step.Else) == 0 {
			result.AddWarning(step.ID, "then", schema.IssueInvalidStructure,
				"condition has empty then and else branches").Path = path
		}
	case schema.ActionForEach:
		if len(step.Body) == 0 {
			result.AddWarning(step.ID, "body", schema.IssueInvalidStructure, "loop has an empty body").Path = path
		}
	}

	if step.Action != schema.ActionCondition && (len(step.Then) > 0 || len(step.Else) > 0) {
		result.AddError(step.ID, "then", schema.IssueInvalidStructure,
			fmt.Sprintf("only condition steps may have then/else branches, not %q", step.Action)).Path = path
	}
	if step.Action != schema.ActionForEach && len(step.Body) > 0 {
		result.AddError(step.ID, "body", schema.IssueInvalidStructure,
			fmt.Sprintf("only for_each steps may have a body, not %q", step.Action)).Path = path
	}
}

// closestAction returns the known action kind nearest to s by edit
// distance, or "" when none is close enough to be a likely typo.
func closestAction(s string) string {
	best, bestDist := "", 4
	for _, k := range schema.ActionKinds {
		if d := levenshtein.ComputeDistance(strings.ToLower(s), string(k)); d < bestDist {
			best, bestDist = string(k), d
		}
	}
	return best
}
