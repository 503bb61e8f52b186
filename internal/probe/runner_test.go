package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/layoutprobe/internal/browser"
	"github.com/tyemirov/layoutprobe/internal/browser/browsertest"
	"github.com/tyemirov/layoutprobe/internal/scenario"
)

const (
	runnerSubtestTemplateConstant  = "%d_%s"
	testBaseURLConstant            = "http://fixtures.test"
	horizontalScrollScriptConstant = "document.documentElement.scrollWidth > document.documentElement.clientWidth"
	thrownMessageConstant          = "ReferenceError: missingElement is not defined"
	scrollPositionFunctionConstant = "return { scrollX: window.scrollX };"
	missingElementValueConstant    = "not found"
)

func overflowScenario(steps ...scenario.Action) scenario.Scenario {
	return scenario.Scenario{
		Name:     "Overflow - Desktop (1440px)",
		Suite:    "Overflow",
		URL:      "/overflow/plain",
		Viewport: browser.Viewport{Width: 1440, Height: 900},
		Steps:    steps,
	}
}

func falsyProbe(name string) *scenario.Probe {
	return &scenario.Probe{Name: name, Assertions: []scenario.Assertion{{Op: scenario.OperatorFalsy}}}
}

func TestRunScenarioCapturesProbesInOrder(testInstance *testing.T) {
	var screenshotOptions browser.ScreenshotOptions
	session := &browsertest.FakeSession{
		EvaluateFunc: func(script string) (any, error) {
			if script == horizontalScrollScriptConstant {
				return false, nil
			}
			return map[string]any{"scrollX": float64(0)}, nil
		},
		ScreenshotFunc: func(name string, options browser.ScreenshotOptions) (string, error) {
			screenshotOptions = options
			return name + options.Format.Extension(), nil
		},
		Console: map[string][]string{"error": {"Uncaught TypeError"}},
	}
	runner, runnerError := NewRunner(session, RunnerOptions{BaseURL: testBaseURLConstant})
	require.NoError(testInstance, runnerError)

	results := runner.RunScenario(context.Background(), overflowScenario(
		scenario.Action{Type: scenario.ActionEvaluate, Script: horizontalScrollScriptConstant, Probe: falsyProbe("Overflow - no horizontal scroll")},
		scenario.Action{Type: scenario.ActionEvaluate, Script: "window.scrollTo(100, 0)"},
		scenario.Action{Type: scenario.ActionClick, Selector: "button", Text: "Toggle Wide Content"},
		scenario.Action{Type: scenario.ActionSelect, Selector: `select[name="columns"]`, Value: "3"},
		scenario.Action{Type: scenario.ActionPress, Key: "PageDown"},
		scenario.Action{Type: scenario.ActionScreenshot, Name: "overflow-desktop", FullPage: true, Format: "jpg", Quality: 70},
		scenario.Action{Type: scenario.ActionEvaluate, Function: scrollPositionFunctionConstant, Probe: &scenario.Probe{
			Name:       "Overflow - scroll position",
			Assertions: []scenario.Assertion{{Field: "scrollX", Op: scenario.OperatorEquals, Expected: 0}},
		}},
		scenario.Action{Type: scenario.ActionConsole, ConsoleType: "error", Probe: &scenario.Probe{
			Name:       "Overflow - console errors",
			Assertions: []scenario.Assertion{{Field: "length", Op: scenario.OperatorEquals, Expected: 0}},
		}},
	))

	require.Equal(testInstance, []browser.Operation{
		browser.OperationNavigate,
		browser.OperationEvaluate,
		browser.OperationEvaluate,
		browser.OperationClick,
		browser.OperationSelect,
		browser.OperationPressKey,
		browser.OperationScreenshot,
		browser.OperationEvaluate,
	}, session.Operations())

	calls := session.Calls()
	require.Equal(testInstance, "http://fixtures.test/overflow/plain", calls[0].Subject)
	require.Equal(testInstance, browser.Viewport{Width: 1440, Height: 900}, calls[0].Viewport)
	require.Equal(testInstance, "window.scrollTo(100, 0)", calls[2].Subject)
	require.Equal(testInstance, browser.FunctionExpression(scrollPositionFunctionConstant), calls[7].Subject)
	require.Equal(testInstance, browser.ScreenshotOptions{FullPage: true, Format: browser.ScreenshotFormatJPEG, Quality: 70}, screenshotOptions)

	require.Len(testInstance, results, 3)
	require.Equal(testInstance, "Overflow - no horizontal scroll", results[0].Name)
	require.Equal(testInstance, "false", results[0].Detail)
	require.Equal(testInstance, `{"scrollX":0}`, results[1].Detail)
	require.Equal(testInstance, []any{"Uncaught TypeError"}, results[2].Value)

	passed, _ := results[0].Evaluate()
	require.True(testInstance, passed)
	passed, detail := results[2].Evaluate()
	require.False(testInstance, passed)
	require.Equal(testInstance, "length equals 0: observed 1", detail)
}

func TestRunScenarioStopsAtFirstFailure(testInstance *testing.T) {
	clickFailure := browser.NewErrorMessage(browser.ErrElementNotFound, browser.OperationClick, "button.missing", "no element matches selector")
	evaluationFailure := browser.NewError(browser.ErrEvaluation, browser.OperationEvaluate, "", errors.New(thrownMessageConstant))

	testCases := []struct {
		name          string
		session       *browsertest.FakeSession
		steps         []scenario.Action
		expectedName  string
		expectedKind  browser.Kind
		expectedCalls int
	}{
		{
			name:    "navigation_failure_named_after_scenario",
			session: &browsertest.FakeSession{NavigateFunc: func(string, browser.Viewport) error { return browser.NewErrorMessage(browser.ErrNavigation, browser.OperationNavigate, "", "net::ERR_CONNECTION_REFUSED") }},
			steps: []scenario.Action{
				{Type: scenario.ActionEvaluate, Script: horizontalScrollScriptConstant, Probe: falsyProbe("never evaluated")},
			},
			expectedName:  "Overflow - Desktop (1440px)",
			expectedKind:  browser.ErrNavigation,
			expectedCalls: 1,
		},
		{
			name:    "effect_step_failure_named_after_scenario",
			session: &browsertest.FakeSession{ClickFunc: func(string, string) error { return clickFailure }},
			steps: []scenario.Action{
				{Type: scenario.ActionClick, Selector: "button.missing"},
				{Type: scenario.ActionEvaluate, Script: horizontalScrollScriptConstant, Probe: falsyProbe("never evaluated")},
			},
			expectedName:  "Overflow - Desktop (1440px)",
			expectedKind:  browser.ErrElementNotFound,
			expectedCalls: 2,
		},
		{
			name:    "probe_failure_named_after_probe",
			session: &browsertest.FakeSession{EvaluateFunc: func(string) (any, error) { return nil, evaluationFailure }},
			steps: []scenario.Action{
				{Type: scenario.ActionEvaluate, Script: "missingElement.scrollWidth", Probe: falsyProbe("Overflow - thrown script")},
				{Type: scenario.ActionScreenshot, Name: "never-written"},
			},
			expectedName:  "Overflow - thrown script",
			expectedKind:  browser.ErrEvaluation,
			expectedCalls: 2,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(runnerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			runner, runnerError := NewRunner(testCase.session, RunnerOptions{BaseURL: testBaseURLConstant})
			require.NoError(testInstance, runnerError)

			results := runner.RunScenario(context.Background(), overflowScenario(testCase.steps...))
			require.Len(testInstance, results, 1)
			require.Equal(testInstance, testCase.expectedName, results[0].Name)
			require.True(testInstance, results[0].Failed())
			require.ErrorIs(testInstance, results[0].Err, testCase.expectedKind)
			require.Len(testInstance, testCase.session.Calls(), testCase.expectedCalls)

			passed, detail := results[0].Evaluate()
			require.False(testInstance, passed)
			require.Equal(testInstance, browser.MessageOf(results[0].Err), detail)
		})
	}
}

func TestRunScenarioThrownMessageInDetails(testInstance *testing.T) {
	session := &browsertest.FakeSession{EvaluateFunc: func(string) (any, error) {
		return nil, browser.NewError(browser.ErrEvaluation, browser.OperationEvaluate, "", errors.New(thrownMessageConstant))
	}}
	runner, runnerError := NewRunner(session, RunnerOptions{})
	require.NoError(testInstance, runnerError)

	results := runner.RunScenario(context.Background(), overflowScenario(
		scenario.Action{Type: scenario.ActionEvaluate, Script: "missingElement.scrollWidth", Probe: falsyProbe("Overflow - thrown script")},
	))
	require.Len(testInstance, results, 1)
	require.Contains(testInstance, results[0].Detail, thrownMessageConstant)
}

func TestRunScenarioMissingElementFailsProbe(testInstance *testing.T) {
	catalog, catalogError := scenario.DefaultCatalog()
	require.NoError(testInstance, catalogError)
	stressScenarios := catalog.Filter([]string{"stress tests - laptop"}).Scenarios()
	require.NotEmpty(testInstance, stressScenarios)

	session := &browsertest.FakeSession{EvaluateFunc: func(script string) (any, error) {
		if strings.Contains(script, "return warning ?") {
			return missingElementValueConstant, nil
		}
		return map[string]any{
			"hasHorizontalScroll": false,
			"tableOverflow":       "auto",
			"fixedWidthElements":  float64(2),
			"hasCodeBlock":        true,
			"overflowX":           "auto",
		}, nil
	}}
	runner, runnerError := NewRunner(session, RunnerOptions{BaseURL: testBaseURLConstant})
	require.NoError(testInstance, runnerError)

	results := runner.RunScenario(context.Background(), stressScenarios[0])
	var longText *Result
	for resultIndex := range results {
		if results[resultIndex].Name == "Stress Tests - Long Unbreakable Text" {
			longText = &results[resultIndex]
		}
	}
	require.NotNil(testInstance, longText)
	require.False(testInstance, longText.Failed())
	passed, detail := longText.Evaluate()
	require.False(testInstance, passed)
	require.Contains(testInstance, detail, missingElementValueConstant)
}

func TestRunScenarioNavigateStepUsesScenarioViewport(testInstance *testing.T) {
	session := &browsertest.FakeSession{}
	runner, runnerError := NewRunner(session, RunnerOptions{BaseURL: testBaseURLConstant})
	require.NoError(testInstance, runnerError)

	results := runner.RunScenario(context.Background(), overflowScenario(
		scenario.Action{Type: scenario.ActionNavigate},
		scenario.Action{Type: scenario.ActionNavigate, URL: "/overflow/contained"},
	))
	require.Empty(testInstance, results)

	calls := session.Calls()
	require.Len(testInstance, calls, 3)
	require.Equal(testInstance, "http://fixtures.test/overflow/plain", calls[1].Subject)
	require.Equal(testInstance, "http://fixtures.test/overflow/contained", calls[2].Subject)
	require.Equal(testInstance, browser.Viewport{Width: 1440, Height: 900}, calls[2].Viewport)
}

func TestRunScenarioWaitPolling(testInstance *testing.T) {
	testCases := []struct {
		name                string
		truthyAfter         int
		expectedEvaluations int
		expectWarning       bool
	}{
		{name: "condition_met_immediately", truthyAfter: 1, expectedEvaluations: 1},
		{name: "condition_met_after_polls", truthyAfter: 3, expectedEvaluations: 3},
		{name: "condition_times_out", truthyAfter: 1000, expectWarning: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(runnerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			evaluations := 0
			session := &browsertest.FakeSession{EvaluateFunc: func(string) (any, error) {
				evaluations++
				return evaluations >= testCase.truthyAfter, nil
			}}
			core, recorded := observer.New(zapcore.WarnLevel)
			runner, runnerError := NewRunner(session, RunnerOptions{Logger: zap.New(core), DefaultPollInterval: time.Millisecond})
			require.NoError(testInstance, runnerError)

			results := runner.RunScenario(context.Background(), overflowScenario(
				scenario.Action{Type: scenario.ActionWait, Duration: 50 * time.Millisecond, Until: "window.scrollY === 0"},
			))
			require.Empty(testInstance, results)

			if testCase.expectWarning {
				require.Greater(testInstance, evaluations, 1)
				require.Equal(testInstance, 1, recorded.FilterMessage(waitConditionUnmetMessageConstant).Len())
				return
			}
			require.Equal(testInstance, testCase.expectedEvaluations, evaluations)
			require.Zero(testInstance, recorded.Len())
		})
	}
}

func TestRunScenarioCanceledContext(testInstance *testing.T) {
	session := &browsertest.FakeSession{}
	runner, runnerError := NewRunner(session, RunnerOptions{})
	require.NoError(testInstance, runnerError)

	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	results := runner.RunScenario(executionContext, overflowScenario(
		scenario.Action{Type: scenario.ActionWait, Duration: time.Minute},
	))
	require.Len(testInstance, results, 1)
	require.ErrorIs(testInstance, results[0].Err, context.Canceled)
}

func TestNewRunnerRequiresSession(testInstance *testing.T) {
	_, runnerError := NewRunner(nil, RunnerOptions{})
	require.ErrorIs(testInstance, runnerError, ErrSessionNotConfigured)
}
