package layoutrunner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tyemirov/layoutprobe/internal/browser"
	"github.com/tyemirov/layoutprobe/internal/probe"
	"github.com/tyemirov/layoutprobe/internal/results"
	"github.com/tyemirov/layoutprobe/internal/scenario"
)

const (
	noScenariosMessageConstant          = "no scenarios selected"
	launchErrorTemplateConstant         = "layoutrunner.session.launch: %w"
	loggingErrorTemplateConstant        = "layoutrunner.session.logging: %w"
	runnerErrorTemplateConstant         = "layoutrunner.probe.runner: %w"
	interruptedErrorTemplateConstant    = "layoutrunner.run.interrupted: %w"
	reportErrorTemplateConstant         = "layoutrunner.report: %w"
	metricsErrorTemplateConstant        = "layoutrunner.metrics: %w"
	runStartMessageConstant             = "layout run starting"
	runFinishedMessageConstant          = "layout run finished"
	sessionCloseFailedMessageConstant   = "browser session close failed"
	sessionCloseWarningTemplateConstant = "warning: browser session close failed: %v\n"
	reportWrittenMessageConstant        = "report written"
	metricsWrittenMessageConstant       = "metrics written"
	runIdentifierFieldNameConstant      = "run_id"
	scenarioCountFieldNameConstant      = "scenarios"
	baseURLFieldNameConstant            = "base_url"
	passedFieldNameConstant             = "passed"
	failedFieldNameConstant             = "failed"
	pathFieldNameConstant               = "path"
	durationFieldNameConstant           = "duration"
	engineFieldNameConstant             = "engine"
	headlessFieldNameConstant           = "headless"
)

// ErrNoScenarios indicates the filter left nothing to run.
var ErrNoScenarios = errors.New(noScenariosMessageConstant)

// Options configure a single catalog run.
type Options struct {
	Browser           browser.LaunchOptions
	BaseURL           string
	Only              []string
	ReportPath        string
	MetricsPath       string
	RunIdentifier     string
	ConfigurationFile string
}

// Executor runs scenario catalogs.
type Executor interface {
	Run(executionContext context.Context, catalog scenario.Catalog, options Options) (results.Report, error)
}

// Factory constructs an Executor given runner dependencies.
type Factory func(Dependencies) Executor

// Resolve returns either the provided factory result or the default catalog runner.
func Resolve(factory Factory, dependencies Dependencies) Executor {
	var executor Executor
	if factory != nil {
		executor = factory(dependencies)
	}
	if executor == nil {
		executor = NewCatalogRunner(dependencies)
	}
	return executor
}

// CatalogRunner executes every selected scenario in one browser session.
type CatalogRunner struct {
	dependencies Dependencies
}

// NewCatalogRunner constructs a CatalogRunner, filling unset dependencies with defaults.
func NewCatalogRunner(dependencies Dependencies) *CatalogRunner {
	resolved := BuildDependencies(DependenciesConfig{
		LoggerProvider:        func() *zap.Logger { return dependencies.Logger },
		Launcher:              dependencies.Launcher,
		NowProvider:           dependencies.Now,
		RunIdentifierProvider: dependencies.NewRunIdentifier,
	}, DependenciesOptions{Output: dependencies.Output, Errors: dependencies.Errors})
	return &CatalogRunner{dependencies: resolved}
}

// Run launches a session, executes the filtered catalog in declaration order, prints the
// line report and summary, and writes the optional report and metrics files.
// The session is closed exactly once. The returned report is populated whenever a session was opened.
func (runner *CatalogRunner) Run(executionContext context.Context, catalog scenario.Catalog, options Options) (results.Report, error) {
	selected := catalog.Filter(options.Only).Scenarios()
	if len(selected) == 0 {
		return results.Report{}, ErrNoScenarios
	}

	runIdentifier := strings.TrimSpace(options.RunIdentifier)
	if len(runIdentifier) == 0 {
		runIdentifier = runner.dependencies.NewRunIdentifier()
	}
	baseURL := strings.TrimSpace(options.BaseURL)
	if len(baseURL) == 0 {
		baseURL = scenario.DefaultBaseURL
	}
	logger := runner.dependencies.Logger.With(zap.String(runIdentifierFieldNameConstant, runIdentifier))

	startedAt := runner.dependencies.Now()
	logger.Info(runStartMessageConstant,
		zap.Int(scenarioCountFieldNameConstant, len(selected)),
		zap.String(baseURLFieldNameConstant, baseURL),
		zap.String(engineFieldNameConstant, options.Browser.Engine),
		zap.Bool(headlessFieldNameConstant, options.Browser.Headless),
	)

	session, launchError := runner.dependencies.Launcher.Launch(executionContext, options.Browser)
	if launchError != nil {
		return results.Report{}, fmt.Errorf(launchErrorTemplateConstant, launchError)
	}
	loggedSession, loggingError := browser.NewLoggingSession(logger, session)
	if loggingError != nil {
		runner.closeOnce(logger, session)()
		return results.Report{}, fmt.Errorf(loggingErrorTemplateConstant, loggingError)
	}
	closeSession := runner.closeOnce(logger, loggedSession)
	defer closeSession()

	scenarioRunner, runnerError := probe.NewRunner(loggedSession, probe.RunnerOptions{BaseURL: baseURL, Logger: logger})
	if runnerError != nil {
		return results.Report{}, fmt.Errorf(runnerErrorTemplateConstant, runnerError)
	}

	aggregator := results.NewAggregator(runner.dependencies.Output, results.WithNowProvider(runner.dependencies.Now))
	var runError error
	for _, candidate := range selected {
		if contextError := executionContext.Err(); contextError != nil {
			runError = fmt.Errorf(interruptedErrorTemplateConstant, contextError)
			break
		}
		aggregator.BeginScenario(candidate.Name)
		scenarioStart := runner.dependencies.Now()
		for _, result := range scenarioRunner.RunScenario(executionContext, candidate) {
			recordResult(aggregator, result)
		}
		aggregator.RecordScenarioDuration(candidate.Name, candidate.Suite, runner.dependencies.Now().Sub(scenarioStart))
	}
	closeSession()

	summary := aggregator.Summarize()
	aggregator.PrintSummary()

	report := results.Report{
		RunIdentifier:     runIdentifier,
		BaseURL:           baseURL,
		ConfigurationFile: strings.TrimSpace(options.ConfigurationFile),
		StartedAt:         startedAt,
		FinishedAt:        runner.dependencies.Now(),
		ExitCode:          results.ExitCode(summary),
		Summary:           summary,
	}
	logger.Info(runFinishedMessageConstant,
		zap.Int(passedFieldNameConstant, summary.PassedCount),
		zap.Int(failedFieldNameConstant, summary.FailedCount),
		zap.Duration(durationFieldNameConstant, report.FinishedAt.Sub(report.StartedAt)),
	)

	return report, errors.Join(runError, runner.writeArtifacts(logger, report, options))
}

func (runner *CatalogRunner) writeArtifacts(logger *zap.Logger, report results.Report, options Options) error {
	var artifactErrors []error
	if reportPath := strings.TrimSpace(options.ReportPath); len(reportPath) > 0 {
		if writeError := results.WriteReportFile(reportPath, report); writeError != nil {
			artifactErrors = append(artifactErrors, fmt.Errorf(reportErrorTemplateConstant, writeError))
		} else {
			logger.Info(reportWrittenMessageConstant, zap.String(pathFieldNameConstant, reportPath))
		}
	}
	if metricsPath := strings.TrimSpace(options.MetricsPath); len(metricsPath) > 0 {
		if writeError := results.WriteMetricsFile(metricsPath, report); writeError != nil {
			artifactErrors = append(artifactErrors, fmt.Errorf(metricsErrorTemplateConstant, writeError))
		} else {
			logger.Info(metricsWrittenMessageConstant, zap.String(pathFieldNameConstant, metricsPath))
		}
	}
	return errors.Join(artifactErrors...)
}

func recordResult(aggregator *results.Aggregator, result probe.Result) {
	if result.Failed() {
		aggregator.RecordError(result.Name, result.Err)
		return
	}
	passed, detail := result.Evaluate()
	status := results.StatusFailed
	if passed {
		status = results.StatusPassed
	}
	aggregator.Record(result.Name, status, detail)
}

// closeOnce closes session at most once. Close failures do not fail the run; they are logged
// and reported on the error stream.
func (runner *CatalogRunner) closeOnce(logger *zap.Logger, session browser.Session) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if closeError := session.Close(); closeError != nil {
				logger.Warn(sessionCloseFailedMessageConstant, zap.Error(closeError))
				fmt.Fprintf(runner.dependencies.Errors, sessionCloseWarningTemplateConstant, closeError)
			}
		})
	}
}
