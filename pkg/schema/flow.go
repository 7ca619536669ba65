package schema

// FlowDefinition is the declarative step tree of a test flow.
// It is the durable representation: what is saved, diffed and executed.
type FlowDefinition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Suite       string         `json:"suite,omitempty" yaml:"suite,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Env         map[string]any `json:"env,omitempty" yaml:"env,omitempty"`
	Schedule    string         `json:"schedule,omitempty" yaml:"schedule,omitempty"` // cron expression, carried as metadata
	Setup       []Step         `json:"setup,omitempty" yaml:"setup,omitempty"`
	Steps       []Step         `json:"steps" yaml:"steps"` // the main section
	Teardown    []Step         `json:"teardown,omitempty" yaml:"teardown,omitempty"`
}

// Step is one executable unit of a flow.
type Step struct {
	ID          string            `json:"id" yaml:"id"`
	Action      ActionKind        `json:"action" yaml:"action"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Config      map[string]any    `json:"config,omitempty" yaml:"config,omitempty"`
	Assert      []string          `json:"assert,omitempty" yaml:"assert,omitempty"`
	Output      map[string]string `json:"output,omitempty" yaml:"output,omitempty"`
	Retry       *RetryPolicy      `json:"retry,omitempty" yaml:"retry,omitempty"`
	Timeout     string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Then []Step `json:"then,omitempty" yaml:"then,omitempty"` // condition only
	Else []Step `json:"else,omitempty" yaml:"else,omitempty"` // condition only
	Body []Step `json:"body,omitempty" yaml:"body,omitempty"` // for_each only
}

// RetryPolicy configures retry behavior for a step.
type RetryPolicy struct {
	MaxAttempts int    `json:"max_attempts" yaml:"max_attempts"`
	Delay       string `json:"delay,omitempty" yaml:"delay,omitempty"`
	Backoff     string `json:"backoff,omitempty" yaml:"backoff,omitempty"` // constant | linear | exponential
}

// SectionName identifies one of the three ordered sections of a flow.
type SectionName string

const (
	SectionSetup    SectionName = "setup"
	SectionMain     SectionName = "main"
	SectionTeardown SectionName = "teardown"
)

// SectionOrder is the fixed declaration order of sections.
var SectionOrder = []SectionName{SectionSetup, SectionMain, SectionTeardown}

// Valid reports whether s names a known section.
func (s SectionName) Valid() bool {
	switch s {
	case SectionSetup, SectionMain, SectionTeardown:
		return true
	}
	return false
}

// Section returns the steps of the named section.
func (f *FlowDefinition) Section(name SectionName) []Step {
	switch name {
	case SectionSetup:
		return f.Setup
	case SectionTeardown:
		return f.Teardown
	default:
		return f.Steps
	}
}

// SetSection replaces the steps of the named section.
func (f *FlowDefinition) SetSection(name SectionName, steps []Step) {
	switch name {
	case SectionSetup:
		f.Setup = steps
	case SectionTeardown:
		f.Teardown = steps
	default:
		f.Steps = steps
	}
}

// CopyMetadata copies everything that has no graph representation from src.
func (f *FlowDefinition) CopyMetadata(src *FlowDefinition) {
	if src == nil {
		return
	}
	f.Name = src.Name
	f.Description = src.Description
	f.Suite = src.Suite
	f.Tags = append([]string(nil), src.Tags...)
	f.Env = cloneMap(src.Env)
	f.Schedule = src.Schedule
}

// StepCount returns the number of steps in the flow, nested ones included.
func (f *FlowDefinition) StepCount() int {
	n := 0
	Walk(f, func(StepPath, *Step) { n++ })
	return n
}

// StepPath locates a step inside the tree.
type StepPath struct {
	Section  SectionName
	ParentID string // empty for top-level steps
	Branch   Branch // then, else or body when ParentID is set
	Index    int
}

// Branch names a nested sequence of a structural step.
type Branch string

const (
	BranchThen Branch = "then"
	BranchElse Branch = "else"
	BranchBody Branch = "body"
)

// Walk visits every step of the flow depth-first in declaration order,
// nested then/else/body steps included.
func Walk(f *FlowDefinition, fn func(path StepPath, step *Step)) {
	if f == nil {
		return
	}
	for _, section := range SectionOrder {
		steps := f.Section(section)
		walkSteps(steps, StepPath{Section: section}, fn)
	}
}

func walkSteps(steps []Step, base StepPath, fn func(StepPath, *Step)) {
	for i := range steps {
		step := &steps[i]
		path := base
		path.Index = i
		fn(path, step)

		nested := StepPath{Section: base.Section, ParentID: step.ID}
		nested.Branch = BranchThen
		walkSteps(step.Then, nested, fn)
		nested.Branch = BranchElse
		walkSteps(step.Else, nested, fn)
		nested.Branch = BranchBody
		walkSteps(step.Body, nested, fn)
	}
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	out := s
	out.Config = cloneMap(s.Config)
	out.Assert = append([]string(nil), s.Assert...)
	if s.Output != nil {
		out.Output = make(map[string]string, len(s.Output))
		for k, v := range s.Output {
			out.Output[k] = v
		}
	}
	if s.Retry != nil {
		r := *s.Retry
		out.Retry = &r
	}
	out.Then = cloneSteps(s.Then)
	out.Else = cloneSteps(s.Else)
	out.Body = cloneSteps(s.Body)
	return out
}

// DisplayName returns the name shown on the canvas for the step.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.ID != "" {
		return s.ID
	}
	return string(s.Action)
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i := range steps {
		out[i] = steps[i].Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneAny(item)
		}
		return out
	default:
		return v
	}
}
