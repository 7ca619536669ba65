package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowgraph/pkg/schema"
)

// scheduleParser accepts five-field cron specs and @every/@daily descriptors.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// maxSensibleAttempts is the retry count above which a warning is raised.
const maxSensibleAttempts = 10

// validateCrossCutting checks attributes any step kind may carry (timeout,
// retry) and the flow-level schedule.
func validateCrossCutting(def *schema.FlowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if s := strings.TrimSpace(def.Schedule); s != "" {
		if _, err := scheduleParser.Parse(s); err != nil {
			issue := result.AddError("", "schedule", schema.IssueInvalidField,
				fmt.Sprintf("invalid cron schedule %q: %v", s, err))
			issue.Suggestion = `use five fields ("0 6 * * *") or a descriptor ("@hourly")`
		}
	}

	walkTree(def, func(v stepVisit) {
		step := v.step
		if step.Timeout != "" {
			checkTimeout(step, v.path, result)
		}
		if step.Retry != nil {
			checkRetry(step, v.path, result)
		}
	})
	return result
}

func checkTimeout(step *schema.Step, path string, result *schema.ValidationResult) {
	d, err := time.ParseDuration(step.Timeout)
	switch {
	case err != nil:
		issue := result.AddError(step.ID, "timeout", schema.IssueInvalidField,
			fmt.Sprintf("invalid timeout %q", step.Timeout))
		issue.Path = path
		issue.Suggestion = "use a duration such as 30s or 2m"
	case d <= 0:
		result.AddError(step.ID, "timeout", schema.IssueInvalidField,
			fmt.Sprintf("timeout %q must be positive", step.Timeout)).Path = path
	}
}

func checkRetry(step *schema.Step, path string, result *schema.ValidationResult) {
	r := step.Retry
	if r.Delay != "" {
		if err := checkDurationString(r.Delay); err != nil {
			result.AddError(step.ID, "retry.delay", schema.IssueInvalidField, err.Error()).Path = path
		}
	}
	if r.MaxAttempts > maxSensibleAttempts {
		result.AddWarning(step.ID, "retry.max_attempts", schema.IssueInvalidField,
			fmt.Sprintf("%d retry attempts is unusually high", r.MaxAttempts)).Path = path
	}
}
