// Package scenario defines layout scenarios, their actions, and the probe assertions evaluated against page values.
package scenario

import (
	"strings"
	"time"

	"github.com/tyemirov/layoutprobe/internal/browser"
)

// ActionType identifies a scenario step.
type ActionType string

// Supported action types.
const (
	ActionNavigate   ActionType = "navigate"
	ActionEvaluate   ActionType = "evaluate"
	ActionClick      ActionType = "click"
	ActionSelect     ActionType = "select"
	ActionPress      ActionType = "press"
	ActionWait       ActionType = "wait"
	ActionScreenshot ActionType = "screenshot"
	ActionConsole    ActionType = "console"
)

// Operator identifies an assertion comparison.
type Operator string

// Supported assertion operators.
const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorMatches     Operator = "matches"
	OperatorOneOf       Operator = "one_of"
	OperatorWithin      Operator = "within"
	OperatorLessThan    Operator = "less_than"
	OperatorGreaterThan Operator = "greater_than"
	OperatorTruthy      Operator = "truthy"
	OperatorFalsy       Operator = "falsy"
)

// Suite groups related scenarios under a shared name.
type Suite struct {
	Name        string     `yaml:"suite"`
	Description string     `yaml:"description"`
	Scenarios   []Scenario `yaml:"scenarios"`
}

// Scenario is one page load at one viewport followed by ordered steps.
type Scenario struct {
	Name     string           `yaml:"name"`
	Suite    string           `yaml:"-"`
	URL      string           `yaml:"url"`
	Viewport browser.Viewport `yaml:"viewport"`
	Steps    []Action         `yaml:"steps"`
}

// Action is a tagged step; only the fields relevant to Type are populated.
// An evaluate step carries either Script, an expression evaluated as written, or
// Function, a body that is run as an async function so it may use return and await.
type Action struct {
	Type        ActionType    `yaml:"action"`
	URL         string        `yaml:"url,omitempty"`
	Script      string        `yaml:"script,omitempty"`
	Function    string        `yaml:"function,omitempty"`
	Selector    string        `yaml:"selector,omitempty"`
	Text        string        `yaml:"text,omitempty"`
	Value       string        `yaml:"value,omitempty"`
	Key         string        `yaml:"key,omitempty"`
	Duration    time.Duration `yaml:"duration,omitempty"`
	Until       string        `yaml:"until,omitempty"`
	Interval    time.Duration `yaml:"interval,omitempty"`
	Name        string        `yaml:"name,omitempty"`
	FullPage    bool          `yaml:"full_page,omitempty"`
	Format      string        `yaml:"format,omitempty"`
	Quality     int           `yaml:"quality,omitempty"`
	ConsoleType string        `yaml:"type,omitempty"`
	Probe       *Probe        `yaml:"probe,omitempty"`
}

// Probe names a captured value and the assertions that must all hold for it to pass.
type Probe struct {
	Name       string      `yaml:"name"`
	Assertions []Assertion `yaml:"assert"`
	PassDetail string      `yaml:"pass_detail,omitempty"`
}

// Assertion compares one field of a probe value against an expectation.
type Assertion struct {
	Field         string   `yaml:"field,omitempty"`
	Op            Operator `yaml:"op"`
	Expected      any      `yaml:"expected,omitempty"`
	ExpectedField string   `yaml:"expected_field,omitempty"`
	Tolerance     float64  `yaml:"tolerance,omitempty"`
}

// HasProbe reports whether the action captures a probe value.
func (action Action) HasProbe() bool {
	return action.Probe != nil
}

// EvaluationSource returns the expression an evaluate step sends to the page.
func (action Action) EvaluationSource() string {
	if len(strings.TrimSpace(action.Function)) > 0 {
		return browser.FunctionExpression(action.Function)
	}
	return action.Script
}
