package layoutrunner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/layoutprobe/internal/browser"
	"github.com/tyemirov/layoutprobe/internal/browser/browsertest"
	"github.com/tyemirov/layoutprobe/internal/results"
	"github.com/tyemirov/layoutprobe/internal/scenario"
)

const (
	testRunIdentifierConstant = "run-0001"
	testBaseURLConstant       = "http://fixtures.test"
	overflowScriptConstant    = "document.documentElement.scrollWidth > document.documentElement.clientWidth"
)

func testCatalog() scenario.Catalog {
	overflowProbe := func(name string) *scenario.Probe {
		return &scenario.Probe{Name: name, Assertions: []scenario.Assertion{{Op: scenario.OperatorFalsy}}}
	}
	return scenario.Catalog{Suites: []scenario.Suite{
		{
			Name: "Overflow",
			Scenarios: []scenario.Scenario{
				{
					Name:     "Overflow - Plain (1440px)",
					Suite:    "Overflow",
					URL:      "/overflow/plain",
					Viewport: browser.Viewport{Width: 1440, Height: 900},
					Steps:    []scenario.Action{{Type: scenario.ActionEvaluate, Script: overflowScriptConstant, Probe: overflowProbe("Overflow - Plain (1440px)")}},
				},
				{
					Name:     "Overflow - Uncontained (1920px)",
					Suite:    "Overflow",
					URL:      "/overflow/uncontained",
					Viewport: browser.Viewport{Width: 1920, Height: 1080},
					Steps:    []scenario.Action{{Type: scenario.ActionEvaluate, Script: overflowScriptConstant, Probe: overflowProbe("Overflow - Uncontained (1920px)")}},
				},
			},
		},
		{
			Name: "Dynamic",
			Scenarios: []scenario.Scenario{
				{
					Name:     "Dynamic - Missing Button",
					Suite:    "Dynamic",
					URL:      "/test-layout/dynamic",
					Viewport: browser.Viewport{Width: 1280, Height: 800},
					Steps: []scenario.Action{
						{Type: scenario.ActionClick, Selector: "button.missing"},
						{Type: scenario.ActionEvaluate, Script: overflowScriptConstant, Probe: overflowProbe("never evaluated")},
					},
				},
			},
		},
	}}
}

func fakeSession() *browsertest.FakeSession {
	currentURL := ""
	return &browsertest.FakeSession{
		NavigateFunc: func(targetURL string, _ browser.Viewport) error {
			currentURL = targetURL
			return nil
		},
		EvaluateFunc: func(string) (any, error) {
			return strings.HasSuffix(currentURL, "/uncontained"), nil
		},
		ClickFunc: func(selector string, _ string) error {
			return browser.NewErrorMessage(browser.ErrElementNotFound, browser.OperationClick, selector, "no element matches selector \"button.missing\"")
		},
	}
}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)
}

func newTestRunner(launcher browser.Launcher, output *bytes.Buffer) Executor {
	return Resolve(nil, Dependencies{
		Launcher:         launcher,
		Output:           output,
		Errors:           &bytes.Buffer{},
		Now:              fixedNow,
		NewRunIdentifier: func() string { return testRunIdentifierConstant },
	})
}

func TestCatalogRunnerRecordsOutcomesInDeclarationOrder(testInstance *testing.T) {
	session := fakeSession()
	launcher := &browsertest.FakeLauncher{Session: session}
	output := &bytes.Buffer{}

	report, runError := newTestRunner(launcher, output).Run(context.Background(), testCatalog(), Options{
		Browser: browser.LaunchOptions{Engine: browser.EngineChromium, Headless: true},
		BaseURL: testBaseURLConstant,
	})
	require.NoError(testInstance, runError)

	require.Equal(testInstance, "PASSED: Overflow - Plain (1440px) | observed false\n"+
		"FAILED: Overflow - Uncontained (1920px) | value falsy: observed true\n"+
		"FAILED: Dynamic - Missing Button | no element matches selector \"button.missing\"\n"+
		"Summary: passed=1 failed=2 total=3\n"+
		"Failed tests:\n"+
		"  - Overflow - Uncontained (1920px): value falsy: observed true\n"+
		"  - Dynamic - Missing Button [element_not_found]: no element matches selector \"button.missing\"\n", output.String())

	require.Equal(testInstance, 1, launcher.LaunchCount())
	require.True(testInstance, launcher.LastOptions().Headless)
	require.Equal(testInstance, 1, session.CloseCount())

	require.Equal(testInstance, testRunIdentifierConstant, report.RunIdentifier)
	require.Equal(testInstance, testBaseURLConstant, report.BaseURL)
	require.Equal(testInstance, 1, report.ExitCode)
	require.Equal(testInstance, len(report.Summary.Outcomes), report.Summary.PassedCount+report.Summary.FailedCount)
	require.Len(testInstance, report.Summary.Timings, 3)
	require.Equal(testInstance, browser.ErrElementNotFound, report.Summary.Outcomes[2].ErrorKind)
	require.Equal(testInstance, "Dynamic - Missing Button", report.Summary.Outcomes[2].Scenario)
}

func TestCatalogRunnerFiltersScenarios(testInstance *testing.T) {
	session := fakeSession()
	output := &bytes.Buffer{}

	report, runError := newTestRunner(&browsertest.FakeLauncher{Session: session}, output).Run(context.Background(), testCatalog(), Options{
		BaseURL: testBaseURLConstant,
		Only:    []string{"plain"},
	})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 0, report.ExitCode)
	require.Equal(testInstance, 1, report.Summary.PassedCount)
	require.Equal(testInstance, "http://fixtures.test/overflow/plain", session.Calls()[0].Subject)

	_, emptyError := newTestRunner(&browsertest.FakeLauncher{Session: fakeSession()}, &bytes.Buffer{}).Run(context.Background(), testCatalog(), Options{Only: []string{"snap"}})
	require.ErrorIs(testInstance, emptyError, ErrNoScenarios)
}

func TestCatalogRunnerLaunchFailure(testInstance *testing.T) {
	launchFailure := browser.NewErrorMessage(browser.ErrSession, browser.OperationLaunch, browser.EngineChromium, "executable not found")
	launcher := &browsertest.FakeLauncher{LaunchError: launchFailure}
	output := &bytes.Buffer{}

	_, runError := newTestRunner(launcher, output).Run(context.Background(), testCatalog(), Options{})
	require.ErrorIs(testInstance, runError, browser.ErrSession)
	require.ErrorContains(testInstance, runError, "layoutrunner.session.launch")
	require.Empty(testInstance, output.String())
}

func TestCatalogRunnerClosesSessionOnceWhenCloseFails(testInstance *testing.T) {
	session := fakeSession()
	session.CloseError = errors.New("browser already gone")
	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	errorOutput := &bytes.Buffer{}

	executor := Resolve(nil, Dependencies{
		Logger:           zap.New(observedCore),
		Launcher:         &browsertest.FakeLauncher{Session: session},
		Output:           &bytes.Buffer{},
		Errors:           errorOutput,
		Now:              fixedNow,
		NewRunIdentifier: func() string { return testRunIdentifierConstant },
	})
	_, runError := executor.Run(context.Background(), testCatalog(), Options{})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, session.CloseCount())
	require.Equal(testInstance, "warning: browser session close failed: browser already gone\n", errorOutput.String())

	closeFailures := observedLogs.FilterMessage("browser operation failed").FilterField(zap.String("operation", string(browser.OperationClose)))
	require.Equal(testInstance, 1, closeFailures.Len())
	require.Equal(testInstance, 1, observedLogs.FilterMessage(sessionCloseFailedMessageConstant).Len())
}

func TestCatalogRunnerInterrupted(testInstance *testing.T) {
	session := fakeSession()
	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	report, runError := newTestRunner(&browsertest.FakeLauncher{Session: session}, &bytes.Buffer{}).Run(executionContext, testCatalog(), Options{})
	require.ErrorIs(testInstance, runError, context.Canceled)
	require.Empty(testInstance, report.Summary.Outcomes)
	require.Equal(testInstance, 1, session.CloseCount())
}

func TestCatalogRunnerWritesArtifacts(testInstance *testing.T) {
	outputDirectory := testInstance.TempDir()
	reportPath := filepath.Join(outputDirectory, "reports", "run.json")
	metricsPath := filepath.Join(outputDirectory, "metrics", "layoutprobe.prom")

	report, runError := newTestRunner(&browsertest.FakeLauncher{Session: fakeSession()}, &bytes.Buffer{}).Run(context.Background(), testCatalog(), Options{
		ReportPath:        reportPath,
		MetricsPath:       metricsPath,
		ConfigurationFile: "/etc/layoutprobe/config.yaml",
	})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, scenario.DefaultBaseURL, report.BaseURL)
	require.Equal(testInstance, "/etc/layoutprobe/config.yaml", report.ConfigurationFile)

	reportContent, reportError := os.ReadFile(reportPath)
	require.NoError(testInstance, reportError)
	require.Contains(testInstance, string(reportContent), `"run_id": "`+testRunIdentifierConstant+`"`)
	require.Contains(testInstance, string(reportContent), `"config_file": "/etc/layoutprobe/config.yaml"`)

	metricsContent, metricsError := os.ReadFile(metricsPath)
	require.NoError(testInstance, metricsError)
	require.Contains(testInstance, string(metricsContent), `layoutprobe_outcomes_total{kind="element_not_found",status="failed"} 1`)

	_, invalidError := newTestRunner(&browsertest.FakeLauncher{Session: fakeSession()}, &bytes.Buffer{}).Run(context.Background(), testCatalog(), Options{
		ReportPath: filepath.Join(outputDirectory, "run.txt"),
	})
	require.ErrorContains(testInstance, invalidError, "layoutrunner.report")
}

type stubExecutor struct{}

func (stubExecutor) Run(context.Context, scenario.Catalog, Options) (results.Report, error) {
	return results.Report{RunIdentifier: "stub"}, nil
}

func TestResolvePrefersFactory(testInstance *testing.T) {
	executor := Resolve(func(Dependencies) Executor { return stubExecutor{} }, Dependencies{})
	report, runError := executor.Run(context.Background(), scenario.Catalog{}, Options{})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, "stub", report.RunIdentifier)

	_, isCatalogRunner := Resolve(func(Dependencies) Executor { return nil }, Dependencies{Launcher: &browsertest.FakeLauncher{}}).(*CatalogRunner)
	require.True(testInstance, isCatalogRunner)
}
