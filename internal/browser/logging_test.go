package browser_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/layoutprobe/internal/browser"
	"github.com/tyemirov/layoutprobe/internal/browser/browsertest"
)

func TestNewLoggingSessionRequiresDependencies(testInstance *testing.T) {
	_, loggerError := browser.NewLoggingSession(nil, &browsertest.FakeSession{})
	require.ErrorIs(testInstance, loggerError, browser.ErrLoggerNotConfigured)

	_, sessionError := browser.NewLoggingSession(zap.NewNop(), nil)
	require.ErrorIs(testInstance, sessionError, browser.ErrSessionNotConfigured)
}

func TestLoggingSessionRecordsLifecycle(testInstance *testing.T) {
	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	fakeSession := &browsertest.FakeSession{
		ClickFunc: func(selector string, _ string) error {
			return browser.NewErrorMessage(browser.ErrElementNotFound, browser.OperationClick, selector, "no element matches selector \".missing\"")
		},
	}

	loggingSession, constructionError := browser.NewLoggingSession(zap.New(observedCore), fakeSession)
	require.NoError(testInstance, constructionError)

	require.NoError(testInstance, loggingSession.Navigate(context.Background(), "http://localhost:4000/basic", browser.Viewport{Width: 1440, Height: 900}))

	clickError := loggingSession.Click(context.Background(), ".missing", "")
	require.ErrorIs(testInstance, clickError, browser.ErrElementNotFound)

	startEntries := observedLogs.FilterMessage("browser operation starting").All()
	require.Len(testInstance, startEntries, 2)
	require.Equal(testInstance, "browser.navigate", startEntries[0].ContextMap()["operation"])
	require.Equal(testInstance, "1440x900", startEntries[0].ContextMap()["viewport"])

	failureEntries := observedLogs.FilterMessage("browser operation failed").All()
	require.Len(testInstance, failureEntries, 1)
	require.Equal(testInstance, zapcore.WarnLevel, failureEntries[0].Level)
	require.Equal(testInstance, "element_not_found", failureEntries[0].ContextMap()["kind"])
	require.Equal(testInstance, ".missing", failureEntries[0].ContextMap()["subject"])

	require.Equal(testInstance, []browser.Operation{browser.OperationNavigate, browser.OperationClick}, fakeSession.Operations())
}

func TestLoggingSessionDelegatesResults(testInstance *testing.T) {
	observedCore, observedLogs := observer.New(zapcore.InfoLevel)
	fakeSession := &browsertest.FakeSession{
		EvaluateFunc:     func(string) (any, error) { return float64(0), nil },
		Console:          map[string][]string{"error": {"boom"}},
		ScreenshotFolder: "screenshots",
	}

	loggingSession, constructionError := browser.NewLoggingSession(zap.New(observedCore), fakeSession)
	require.NoError(testInstance, constructionError)

	value, evaluationError := loggingSession.Evaluate(context.Background(), "window.scrollX")
	require.NoError(testInstance, evaluationError)
	require.Equal(testInstance, float64(0), value)

	screenshotPath, screenshotError := loggingSession.Screenshot(context.Background(), "basic-layout-mobile-375px", browser.ScreenshotOptions{FullPage: true})
	require.NoError(testInstance, screenshotError)
	require.Equal(testInstance, "screenshots/basic-layout-mobile-375px.png", screenshotPath)
	require.Equal(testInstance, 1, observedLogs.FilterMessage("screenshot written").Len())

	require.Equal(testInstance, []string{"boom"}, loggingSession.ConsoleLogs("error"))

	require.NoError(testInstance, loggingSession.Close())
	require.Equal(testInstance, 1, fakeSession.CloseCount())
}
