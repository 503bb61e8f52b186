package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	headlessFlagNameConstant                = "headless"
	defaultNavigationTimeoutConstant        = 30 * time.Second
	defaultScreenshotQualityConstant        = 90
	losslessScreenshotQualityConstant       = 100
	screenshotDirectoryPermissionsConstant  = 0o755
	screenshotFilePermissionsConstant       = 0o644
	unsupportedEngineTemplateConstant       = "unsupported browser engine %q; only %s is available"
	elementNotFoundTemplateConstant         = "no element matches selector %q"
	elementWithTextNotFoundTemplateConstant = "no element matches selector %q with text %q"
	optionNotFoundTemplateConstant          = "select %q has no option with value %q"
	unsupportedKeyTemplateConstant          = "unsupported key %q"
	unexpectedScriptResultTemplateConstant  = "unexpected script result %v"
	exceptionEntryTypeConstant              = "error"
	chromedpLogMessageConstant              = "chromedp"
	chromedpErrorMessageConstant            = "chromedp error"
	chromedpMessageFieldConstant            = "detail"
)

// ChromedpLauncher opens Chromium sessions through the DevTools protocol.
type ChromedpLauncher struct {
	LoggerProvider func() *zap.Logger
}

// NewChromedpLauncher constructs a launcher that reports protocol diagnostics to logger.
func NewChromedpLauncher(logger *zap.Logger) ChromedpLauncher {
	return ChromedpLauncher{LoggerProvider: func() *zap.Logger { return logger }}
}

// Launch starts a browser and returns a session bound to its first tab.
func (launcher ChromedpLauncher) Launch(executionContext context.Context, options LaunchOptions) (Session, error) {
	engine := strings.ToLower(strings.TrimSpace(options.Engine))
	if len(engine) > 0 && engine != EngineChromium {
		return nil, NewErrorMessage(ErrSession, OperationLaunch, options.Engine, fmt.Sprintf(unsupportedEngineTemplateConstant, options.Engine, EngineChromium))
	}

	logger := launcher.resolveLogger()

	allocatorOptions := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOptions = append(allocatorOptions, chromedp.Flag(headlessFlagNameConstant, options.Headless))
	if executablePath := strings.TrimSpace(options.ExecutablePath); len(executablePath) > 0 {
		allocatorOptions = append(allocatorOptions, chromedp.ExecPath(executablePath))
	}

	allocatorContext, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions...)
	browserContext, browserCancel := chromedp.NewContext(
		allocatorContext,
		chromedp.WithLogf(func(format string, arguments ...any) {
			logger.Debug(chromedpLogMessageConstant, zap.String(chromedpMessageFieldConstant, fmt.Sprintf(format, arguments...)))
		}),
		chromedp.WithErrorf(func(format string, arguments ...any) {
			logger.Debug(chromedpErrorMessageConstant, zap.String(chromedpMessageFieldConstant, fmt.Sprintf(format, arguments...)))
		}),
	)

	navigationTimeout := options.NavigationTimeout
	if navigationTimeout <= 0 {
		navigationTimeout = defaultNavigationTimeoutConstant
	}

	session := &ChromedpSession{
		allocatorCancel:     allocatorCancel,
		browserContext:      browserContext,
		browserCancel:       browserCancel,
		navigationTimeout:   navigationTimeout,
		screenshotDirectory: options.ScreenshotDirectory,
	}
	chromedp.ListenTarget(browserContext, session.handleTargetEvent)

	// The first Run allocates the browser process and must use the browser context itself.
	if executionContext != nil {
		stopLaunchCancellation := context.AfterFunc(executionContext, browserCancel)
		defer stopLaunchCancellation()
	}
	if startError := chromedp.Run(browserContext); startError != nil {
		browserCancel()
		allocatorCancel()
		return nil, NewError(ErrSession, OperationLaunch, EngineChromium, startError)
	}

	return session, nil
}

func (launcher ChromedpLauncher) resolveLogger() *zap.Logger {
	if launcher.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := launcher.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// ChromedpSession drives a single Chromium tab.
type ChromedpSession struct {
	allocatorCancel     context.CancelFunc
	browserContext      context.Context
	browserCancel       context.CancelFunc
	navigationTimeout   time.Duration
	screenshotDirectory string

	consoleMutex   sync.Mutex
	consoleEntries []ConsoleEntry

	closeOnce  sync.Once
	closeError error
}

// Navigate applies the viewport emulation and loads targetURL. Console entries are reset.
func (session *ChromedpSession) Navigate(executionContext context.Context, targetURL string, viewport Viewport) error {
	normalizedViewport := viewport.Normalized()
	emulationOptions := []chromedp.EmulateViewportOption{chromedp.EmulateScale(normalizedViewport.DeviceScaleFactor)}
	if normalizedViewport.Mobile {
		emulationOptions = append(emulationOptions, chromedp.EmulateMobile)
	}
	if normalizedViewport.Touch {
		emulationOptions = append(emulationOptions, chromedp.EmulateTouch)
	}

	session.resetConsole()

	navigationError := session.run(
		executionContext,
		session.navigationTimeout,
		chromedp.EmulateViewport(int64(normalizedViewport.Width), int64(normalizedViewport.Height), emulationOptions...),
		chromedp.Navigate(targetURL),
	)
	if navigationError != nil {
		return NewError(ErrNavigation, OperationNavigate, targetURL, navigationError)
	}
	return nil
}

// Evaluate runs script in the page and returns its JSON-decoded value.
func (session *ChromedpSession) Evaluate(executionContext context.Context, script string) (any, error) {
	value, evaluationError := session.evaluate(executionContext, strings.TrimSpace(script))
	if evaluationError != nil {
		return nil, NewError(ErrEvaluation, OperationEvaluate, "", evaluationError)
	}
	return value, nil
}

// Click clicks the first element matching selector whose text contains text.
func (session *ChromedpSession) Click(executionContext context.Context, selector string, text string) error {
	value, evaluationError := session.evaluate(executionContext, clickScript(selector, text))
	if evaluationError != nil {
		return NewError(ErrEvaluation, OperationClick, selector, evaluationError)
	}
	clicked, isBool := value.(bool)
	if !isBool {
		return NewErrorMessage(ErrEvaluation, OperationClick, selector, fmt.Sprintf(unexpectedScriptResultTemplateConstant, value))
	}
	if !clicked {
		if len(text) > 0 {
			return NewErrorMessage(ErrElementNotFound, OperationClick, selector, fmt.Sprintf(elementWithTextNotFoundTemplateConstant, selector, text))
		}
		return NewErrorMessage(ErrElementNotFound, OperationClick, selector, fmt.Sprintf(elementNotFoundTemplateConstant, selector))
	}
	return nil
}

// SelectOption sets the value of a select element and fires input and change events.
func (session *ChromedpSession) SelectOption(executionContext context.Context, selector string, value string) error {
	result, evaluationError := session.evaluate(executionContext, selectScript(selector, value))
	if evaluationError != nil {
		return NewError(ErrEvaluation, OperationSelect, selector, evaluationError)
	}
	switch result {
	case selectResultOKConstant:
		return nil
	case selectResultMissingElementConstant:
		return NewErrorMessage(ErrElementNotFound, OperationSelect, selector, fmt.Sprintf(elementNotFoundTemplateConstant, selector))
	case selectResultMissingOptionConstant:
		return NewErrorMessage(ErrElementNotFound, OperationSelect, selector, fmt.Sprintf(optionNotFoundTemplateConstant, selector, value))
	default:
		return NewErrorMessage(ErrEvaluation, OperationSelect, selector, fmt.Sprintf(unexpectedScriptResultTemplateConstant, result))
	}
}

// PressKey dispatches a key down and key up pair for a named key.
func (session *ChromedpSession) PressKey(executionContext context.Context, key string) error {
	definition, found := LookupKey(key)
	if !found {
		return NewErrorMessage(ErrEvaluation, OperationPressKey, key, fmt.Sprintf(unsupportedKeyTemplateConstant, key))
	}

	pressError := session.run(executionContext, session.navigationTimeout, chromedp.ActionFunc(func(actionContext context.Context) error {
		downType := input.KeyRawDown
		if len(definition.Text) > 0 {
			downType = input.KeyDown
		}
		keyDown := input.DispatchKeyEvent(downType).
			WithKey(definition.Key).
			WithCode(definition.Code).
			WithWindowsVirtualKeyCode(definition.VirtualKeyCode).
			WithNativeVirtualKeyCode(definition.VirtualKeyCode)
		if len(definition.Text) > 0 {
			keyDown = keyDown.WithText(definition.Text).WithUnmodifiedText(definition.Text)
		}
		if downError := keyDown.Do(actionContext); downError != nil {
			return downError
		}
		return input.DispatchKeyEvent(input.KeyUp).
			WithKey(definition.Key).
			WithCode(definition.Code).
			WithWindowsVirtualKeyCode(definition.VirtualKeyCode).
			WithNativeVirtualKeyCode(definition.VirtualKeyCode).
			Do(actionContext)
	}))
	if pressError != nil {
		return NewError(ErrEvaluation, OperationPressKey, key, pressError)
	}
	return nil
}

// Screenshot captures the page into the screenshot directory and returns the written path.
func (session *ChromedpSession) Screenshot(executionContext context.Context, name string, options ScreenshotOptions) (string, error) {
	format := options.Format
	if len(format) == 0 {
		format = ScreenshotFormatPNG
	}
	quality := options.Quality
	if quality <= 0 || quality > losslessScreenshotQualityConstant {
		quality = defaultScreenshotQualityConstant
	}

	var imageData []byte
	var captureAction chromedp.Action
	switch {
	case options.FullPage && format == ScreenshotFormatPNG:
		captureAction = chromedp.FullScreenshot(&imageData, losslessScreenshotQualityConstant)
	case options.FullPage:
		captureAction = chromedp.FullScreenshot(&imageData, quality)
	default:
		captureAction = chromedp.ActionFunc(func(actionContext context.Context) error {
			capture := page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng)
			if format == ScreenshotFormatJPEG {
				capture = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatJpeg).WithQuality(int64(quality))
			}
			capturedData, captureError := capture.Do(actionContext)
			if captureError != nil {
				return captureError
			}
			imageData = capturedData
			return nil
		})
	}

	if captureError := session.run(executionContext, session.navigationTimeout, captureAction); captureError != nil {
		return "", NewError(ErrIO, OperationScreenshot, name, captureError)
	}

	outputPath := filepath.Join(session.screenshotDirectory, name+format.Extension())
	if directoryError := os.MkdirAll(filepath.Dir(outputPath), screenshotDirectoryPermissionsConstant); directoryError != nil {
		return "", NewError(ErrIO, OperationScreenshot, outputPath, directoryError)
	}
	if writeError := os.WriteFile(outputPath, imageData, screenshotFilePermissionsConstant); writeError != nil {
		return "", NewError(ErrIO, OperationScreenshot, outputPath, writeError)
	}
	return outputPath, nil
}

// ConsoleLogs returns the console messages captured since the last navigation.
func (session *ChromedpSession) ConsoleLogs(typeFilter string) []string {
	session.consoleMutex.Lock()
	defer session.consoleMutex.Unlock()
	return filterConsoleEntries(session.consoleEntries, typeFilter)
}

// Close shuts the browser down. Subsequent calls return the first result.
func (session *ChromedpSession) Close() error {
	session.closeOnce.Do(func() {
		if cancelError := chromedp.Cancel(session.browserContext); cancelError != nil && !errors.Is(cancelError, context.Canceled) {
			session.closeError = NewError(ErrSession, OperationClose, EngineChromium, cancelError)
		}
		session.browserCancel()
		session.allocatorCancel()
	})
	return session.closeError
}

func (session *ChromedpSession) evaluate(executionContext context.Context, expression string) (any, error) {
	var payload []byte
	runError := session.run(executionContext, session.navigationTimeout, chromedp.Evaluate(expression, &payload, func(parameters *runtime.EvaluateParams) *runtime.EvaluateParams {
		return parameters.WithAwaitPromise(true)
	}))
	if runError != nil {
		return nil, runError
	}
	return decodeEvaluationResult(payload)
}

// run executes actions on the tab, bounded by timeout and cancelled with executionContext.
func (session *ChromedpSession) run(executionContext context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runContext, runCancel := context.WithTimeout(session.browserContext, timeout)
	defer runCancel()
	if executionContext != nil {
		stopPropagation := context.AfterFunc(executionContext, runCancel)
		defer stopPropagation()
	}
	return chromedp.Run(runContext, actions...)
}

func (session *ChromedpSession) handleTargetEvent(event any) {
	switch typedEvent := event.(type) {
	case *runtime.EventConsoleAPICalled:
		session.appendConsole(ConsoleEntry{Type: string(typedEvent.Type), Text: consoleArgumentsText(typedEvent.Args)})
	case *runtime.EventExceptionThrown:
		if typedEvent.ExceptionDetails != nil {
			session.appendConsole(ConsoleEntry{Type: exceptionEntryTypeConstant, Text: typedEvent.ExceptionDetails.Error()})
		}
	}
}

func (session *ChromedpSession) appendConsole(entry ConsoleEntry) {
	session.consoleMutex.Lock()
	defer session.consoleMutex.Unlock()
	session.consoleEntries = append(session.consoleEntries, entry)
}

func (session *ChromedpSession) resetConsole() {
	session.consoleMutex.Lock()
	defer session.consoleMutex.Unlock()
	session.consoleEntries = nil
}

func consoleArgumentsText(arguments []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		if argument == nil {
			continue
		}
		if len(argument.Value) > 0 {
			var decodedString string
			if json.Unmarshal(argument.Value, &decodedString) == nil {
				parts = append(parts, decodedString)
				continue
			}
			parts = append(parts, string(argument.Value))
			continue
		}
		parts = append(parts, argument.Description)
	}
	return strings.Join(parts, " ")
}
