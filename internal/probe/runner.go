// Package probe executes layout scenarios against a browser session and captures probe values.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/layoutprobe/internal/browser"
	"github.com/tyemirov/layoutprobe/internal/scenario"
)

const (
	sessionNotConfiguredMessageConstant = "probe runner requires a browser session"
	unsupportedActionTemplateConstant   = "unsupported action %q"
	scenarioStartMessageConstant        = "scenario starting"
	scenarioAbortedMessageConstant      = "scenario aborted"
	scenarioCompletedMessageConstant    = "scenario completed"
	probeCapturedMessageConstant        = "probe captured"
	waitConditionUnmetMessageConstant   = "wait condition not met before timeout"
	scenarioFieldNameConstant           = "scenario"
	suiteFieldNameConstant              = "suite"
	probeFieldNameConstant              = "probe"
	stepFieldNameConstant               = "step"
	actionFieldNameConstant             = "action"
	urlFieldNameConstant                = "url"
	viewportFieldNameConstant           = "viewport"
	detailFieldNameConstant             = "detail"
	conditionFieldNameConstant          = "condition"
	durationFieldNameConstant           = "duration"
	probeCountFieldNameConstant         = "probes"

	// DefaultPollInterval is used by wait steps with a condition and no interval.
	DefaultPollInterval = 100 * time.Millisecond
)

// ErrSessionNotConfigured indicates the runner was built without a session.
var ErrSessionNotConfigured = errors.New(sessionNotConfiguredMessageConstant)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	BaseURL             string
	DefaultPollInterval time.Duration
	Logger              *zap.Logger
}

// Runner drives one browser session through scenarios sequentially.
type Runner struct {
	session      browser.Session
	baseURL      string
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRunner constructs a Runner bound to session.
func NewRunner(session browser.Session, options RunnerOptions) (*Runner, error) {
	if session == nil {
		return nil, ErrSessionNotConfigured
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pollInterval := options.DefaultPollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Runner{session: session, baseURL: options.BaseURL, pollInterval: pollInterval, logger: logger}, nil
}

// RunScenario navigates to the scenario page and executes its steps in order.
// Failures are recorded as results and stop the scenario; they are never returned.
func (runner *Runner) RunScenario(executionContext context.Context, target scenario.Scenario) []Result {
	scenarioLogger := runner.logger.With(
		zap.String(scenarioFieldNameConstant, target.Name),
		zap.String(suiteFieldNameConstant, target.Suite),
	)
	results := make([]Result, 0, len(target.Steps))

	scenarioURL, resolveError := scenario.ResolveURL(runner.baseURL, target.URL)
	if resolveError != nil {
		failure := browser.NewError(browser.ErrNavigation, browser.OperationNavigate, target.URL, resolveError)
		return append(results, runner.abort(scenarioLogger, target, -1, nil, failure))
	}

	scenarioLogger.Info(scenarioStartMessageConstant,
		zap.String(urlFieldNameConstant, scenarioURL),
		zap.String(viewportFieldNameConstant, target.Viewport.String()),
	)

	if navigationError := runner.session.Navigate(executionContext, scenarioURL, target.Viewport); navigationError != nil {
		return append(results, runner.abort(scenarioLogger, target, -1, nil, navigationError))
	}

	for stepIndex, step := range target.Steps {
		if contextError := executionContext.Err(); contextError != nil {
			return append(results, runner.abort(scenarioLogger, target, stepIndex, step.Probe, contextError))
		}

		value, stepError := runner.executeStep(executionContext, scenarioLogger, target, scenarioURL, step)
		if stepError != nil {
			return append(results, runner.abort(scenarioLogger, target, stepIndex, step.Probe, stepError))
		}
		if !step.HasProbe() {
			continue
		}

		captured := Result{
			Name:     step.Probe.Name,
			Scenario: target.Name,
			Value:    value,
			Detail:   scenario.CompactJSON(value),
			Probe:    step.Probe,
		}
		scenarioLogger.Debug(probeCapturedMessageConstant,
			zap.String(probeFieldNameConstant, captured.Name),
			zap.String(detailFieldNameConstant, captured.Detail),
		)
		results = append(results, captured)
	}

	scenarioLogger.Info(scenarioCompletedMessageConstant, zap.Int(probeCountFieldNameConstant, len(results)))
	return results
}

func (runner *Runner) executeStep(executionContext context.Context, scenarioLogger *zap.Logger, target scenario.Scenario, scenarioURL string, step scenario.Action) (any, error) {
	switch step.Type {
	case scenario.ActionNavigate:
		navigationURL := scenarioURL
		if len(step.URL) > 0 {
			resolvedURL, resolveError := scenario.ResolveURL(runner.baseURL, step.URL)
			if resolveError != nil {
				return nil, browser.NewError(browser.ErrNavigation, browser.OperationNavigate, step.URL, resolveError)
			}
			navigationURL = resolvedURL
		}
		return nil, runner.session.Navigate(executionContext, navigationURL, target.Viewport)
	case scenario.ActionEvaluate:
		return runner.session.Evaluate(executionContext, step.EvaluationSource())
	case scenario.ActionClick:
		return nil, runner.session.Click(executionContext, step.Selector, step.Text)
	case scenario.ActionSelect:
		return nil, runner.session.SelectOption(executionContext, step.Selector, step.Value)
	case scenario.ActionPress:
		return nil, runner.session.PressKey(executionContext, step.Key)
	case scenario.ActionWait:
		return nil, runner.wait(executionContext, scenarioLogger, step)
	case scenario.ActionScreenshot:
		format, formatError := browser.ParseScreenshotFormat(step.Format)
		if formatError != nil {
			return nil, browser.NewError(browser.ErrIO, browser.OperationScreenshot, step.Name, formatError)
		}
		_, screenshotError := runner.session.Screenshot(executionContext, step.Name, browser.ScreenshotOptions{FullPage: step.FullPage, Format: format, Quality: step.Quality})
		return nil, screenshotError
	case scenario.ActionConsole:
		entries := runner.session.ConsoleLogs(step.ConsoleType)
		value := make([]any, 0, len(entries))
		for _, entry := range entries {
			value = append(value, entry)
		}
		return value, nil
	default:
		return nil, fmt.Errorf(unsupportedActionTemplateConstant, step.Type)
	}
}

// wait sleeps for the step duration, or polls the until condition and proceeds with a warning on timeout.
func (runner *Runner) wait(executionContext context.Context, scenarioLogger *zap.Logger, step scenario.Action) error {
	if len(step.Until) == 0 {
		return sleepContext(executionContext, step.Duration)
	}

	interval := step.Interval
	if interval <= 0 {
		interval = runner.pollInterval
	}
	deadline := time.Now().Add(step.Duration)
	for {
		value, evaluationError := runner.session.Evaluate(executionContext, step.Until)
		if evaluationError != nil {
			return evaluationError
		}
		if scenario.IsTruthy(value) {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			scenarioLogger.Warn(waitConditionUnmetMessageConstant,
				zap.String(conditionFieldNameConstant, step.Until),
				zap.Duration(durationFieldNameConstant, step.Duration),
			)
			return nil
		}
		if sleepError := sleepContext(executionContext, min(interval, remaining)); sleepError != nil {
			return sleepError
		}
	}
}

func (runner *Runner) abort(scenarioLogger *zap.Logger, target scenario.Scenario, stepIndex int, stepProbe *scenario.Probe, failure error) Result {
	resultName := target.Name
	if stepProbe != nil && len(stepProbe.Name) > 0 {
		resultName = stepProbe.Name
	}

	fields := []zap.Field{
		zap.String(probeFieldNameConstant, resultName),
		zap.Error(failure),
	}
	if stepIndex >= 0 {
		fields = append(fields, zap.Int(stepFieldNameConstant, stepIndex+1), zap.String(actionFieldNameConstant, string(target.Steps[stepIndex].Type)))
	}
	scenarioLogger.Warn(scenarioAbortedMessageConstant, fields...)

	return Result{
		Name:     resultName,
		Scenario: target.Name,
		Detail:   browser.MessageOf(failure),
		Probe:    stepProbe,
		Err:      failure,
	}
}

func sleepContext(executionContext context.Context, duration time.Duration) error {
	if duration <= 0 {
		return executionContext.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}
