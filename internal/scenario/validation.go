package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tyemirov/layoutprobe/internal/browser"
)

const (
	validationErrorTemplateConstant         = "scenario %q step %d: %s"
	validationScenarioErrorTemplateConstant = "scenario %q: %s"
)

// ValidationError describes an invalid scenario definition.
type ValidationError struct {
	Scenario  string
	StepIndex int
	Message   string
}

// Error implements the error interface.
func (validationError ValidationError) Error() string {
	if validationError.StepIndex < 0 {
		return fmt.Sprintf(validationScenarioErrorTemplateConstant, validationError.Scenario, validationError.Message)
	}
	return fmt.Sprintf(validationErrorTemplateConstant, validationError.Scenario, validationError.StepIndex+1, validationError.Message)
}

// Validate checks every scenario and returns all problems joined.
func (catalog Catalog) Validate() error {
	var problems []error
	seenNames := make(map[string]struct{})
	for _, candidate := range catalog.Scenarios() {
		if _, duplicate := seenNames[candidate.Name]; duplicate && len(candidate.Name) > 0 {
			problems = append(problems, ValidationError{Scenario: candidate.Name, StepIndex: -1, Message: "duplicate scenario name"})
		}
		seenNames[candidate.Name] = struct{}{}
		problems = append(problems, candidate.Validate()...)
	}
	return errors.Join(problems...)
}

// Validate reports the problems of a single scenario.
func (scenario Scenario) Validate() []error {
	var problems []error
	scenarioProblem := func(message string) {
		problems = append(problems, ValidationError{Scenario: scenario.Name, StepIndex: -1, Message: message})
	}

	if len(scenario.Name) == 0 {
		scenarioProblem("name is required")
	}
	if len(strings.TrimSpace(scenario.URL)) == 0 {
		scenarioProblem("url is required")
	}
	if scenario.Viewport.Width <= 0 || scenario.Viewport.Height <= 0 {
		scenarioProblem("viewport width and height must be positive")
	}

	for stepIndex, action := range scenario.Steps {
		for _, message := range action.problems() {
			problems = append(problems, ValidationError{Scenario: scenario.Name, StepIndex: stepIndex, Message: message})
		}
	}
	return problems
}

func (action Action) problems() []string {
	var messages []string
	require := func(condition bool, message string) {
		if !condition {
			messages = append(messages, message)
		}
	}

	switch action.Type {
	case ActionNavigate:
	case ActionEvaluate:
		hasScript := len(strings.TrimSpace(action.Script)) > 0
		hasFunction := len(strings.TrimSpace(action.Function)) > 0
		require(hasScript || hasFunction, "evaluate requires script or function")
		require(!(hasScript && hasFunction), "evaluate takes script or function, not both")
	case ActionClick:
		require(len(strings.TrimSpace(action.Selector)) > 0, "click requires selector")
	case ActionSelect:
		require(len(strings.TrimSpace(action.Selector)) > 0, "select requires selector")
	case ActionPress:
		_, known := browser.LookupKey(action.Key)
		require(known, fmt.Sprintf("press key %q is not one of %s", action.Key, strings.Join(browser.SupportedKeys(), ", ")))
	case ActionWait:
		require(action.Duration > 0, "wait requires a positive duration")
		require(action.Interval >= 0, "wait interval must not be negative")
	case ActionScreenshot:
		require(len(strings.TrimSpace(action.Name)) > 0, "screenshot requires name")
		format, formatError := browser.ParseScreenshotFormat(action.Format)
		require(formatError == nil, fmt.Sprintf("screenshot format %q is not supported", action.Format))
		require(action.Quality >= 0 && action.Quality <= 100, fmt.Sprintf("screenshot quality %d is outside 0-100", action.Quality))
		require(action.Quality == 0 || format == browser.ScreenshotFormatJPEG, "screenshot quality applies to jpeg only")
	case ActionConsole:
		require(len(strings.TrimSpace(action.ConsoleType)) > 0, "console requires type")
	default:
		messages = append(messages, fmt.Sprintf("unknown action %q", action.Type))
	}

	if action.Probe != nil {
		require(action.Type == ActionEvaluate || action.Type == ActionConsole, fmt.Sprintf("%s steps cannot carry a probe", action.Type))
		messages = append(messages, action.Probe.problems()...)
	}
	return messages
}

func (probe Probe) problems() []string {
	var messages []string
	if len(strings.TrimSpace(probe.Name)) == 0 {
		messages = append(messages, "probe name is required")
	}
	if len(probe.Assertions) == 0 {
		messages = append(messages, fmt.Sprintf("probe %q has no assertions", probe.Name))
	}
	for _, assertion := range probe.Assertions {
		if message := assertion.problem(); len(message) > 0 {
			messages = append(messages, fmt.Sprintf("probe %q: %s", probe.Name, message))
		}
	}
	return messages
}

func (assertion Assertion) problem() string {
	hasExpectation := assertion.Expected != nil || len(assertion.ExpectedField) > 0
	switch assertion.Op {
	case OperatorTruthy, OperatorFalsy:
		return ""
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorLessThan, OperatorGreaterThan:
		if !hasExpectation {
			return fmt.Sprintf("%s requires expected or expected_field", assertion.Op)
		}
	case OperatorMatches:
		pattern, isText := assertion.Expected.(string)
		if !isText {
			return "matches requires a string pattern"
		}
		if _, compileError := regexp.Compile(pattern); compileError != nil {
			return fmt.Sprintf("invalid pattern %q: %v", pattern, compileError)
		}
	case OperatorOneOf:
		if _, isList := normalize(assertion.Expected).([]any); !isList {
			return "one_of requires a list"
		}
	case OperatorWithin:
		if !hasExpectation {
			return "within requires expected or expected_field"
		}
		if assertion.Tolerance <= 0 {
			return "within requires a positive tolerance"
		}
	default:
		return fmt.Sprintf("unknown operator %q", assertion.Op)
	}
	return ""
}
