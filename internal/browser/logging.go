package browser

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant  = "browser session logger not configured"
	sessionNotConfiguredMessageConstant = "browser session not configured"
	operationStartMessageConstant       = "browser operation starting"
	operationSuccessMessageConstant     = "browser operation completed"
	operationFailureMessageConstant     = "browser operation failed"
	screenshotWrittenMessageConstant    = "screenshot written"
	operationFieldNameConstant          = "operation"
	subjectFieldNameConstant            = "subject"
	kindFieldNameConstant               = "kind"
	viewportFieldNameConstant           = "viewport"
	durationFieldNameConstant           = "duration"
	pathFieldNameConstant               = "path"
)

var (
	// ErrLoggerNotConfigured indicates the logger dependency was missing.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrSessionNotConfigured indicates the wrapped session was missing.
	ErrSessionNotConfigured = errors.New(sessionNotConfiguredMessageConstant)
)

// LoggingSession decorates a Session with lifecycle logging for every operation.
type LoggingSession struct {
	session Session
	logger  *zap.Logger
}

// NewLoggingSession wraps session so each operation logs its start, completion, and failure.
func NewLoggingSession(logger *zap.Logger, session Session) (*LoggingSession, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if session == nil {
		return nil, ErrSessionNotConfigured
	}
	return &LoggingSession{session: session, logger: logger}, nil
}

// Navigate logs and delegates navigation.
func (loggingSession *LoggingSession) Navigate(executionContext context.Context, targetURL string, viewport Viewport) error {
	return loggingSession.observe(OperationNavigate, targetURL, []zap.Field{zap.String(viewportFieldNameConstant, viewport.String())}, func() error {
		return loggingSession.session.Navigate(executionContext, targetURL, viewport)
	})
}

// Evaluate logs and delegates script evaluation.
func (loggingSession *LoggingSession) Evaluate(executionContext context.Context, script string) (any, error) {
	var value any
	observeError := loggingSession.observe(OperationEvaluate, "", nil, func() error {
		var evaluationError error
		value, evaluationError = loggingSession.session.Evaluate(executionContext, script)
		return evaluationError
	})
	return value, observeError
}

// Click logs and delegates a click.
func (loggingSession *LoggingSession) Click(executionContext context.Context, selector string, text string) error {
	return loggingSession.observe(OperationClick, selector, nil, func() error {
		return loggingSession.session.Click(executionContext, selector, text)
	})
}

// SelectOption logs and delegates option selection.
func (loggingSession *LoggingSession) SelectOption(executionContext context.Context, selector string, value string) error {
	return loggingSession.observe(OperationSelect, selector, nil, func() error {
		return loggingSession.session.SelectOption(executionContext, selector, value)
	})
}

// PressKey logs and delegates a key press.
func (loggingSession *LoggingSession) PressKey(executionContext context.Context, key string) error {
	return loggingSession.observe(OperationPressKey, key, nil, func() error {
		return loggingSession.session.PressKey(executionContext, key)
	})
}

// Screenshot logs and delegates a screenshot capture.
func (loggingSession *LoggingSession) Screenshot(executionContext context.Context, name string, options ScreenshotOptions) (string, error) {
	var outputPath string
	observeError := loggingSession.observe(OperationScreenshot, name, nil, func() error {
		var screenshotError error
		outputPath, screenshotError = loggingSession.session.Screenshot(executionContext, name, options)
		return screenshotError
	})
	if observeError == nil {
		loggingSession.logger.Info(screenshotWrittenMessageConstant, zap.String(subjectFieldNameConstant, name), zap.String(pathFieldNameConstant, outputPath))
	}
	return outputPath, observeError
}

// ConsoleLogs delegates console retrieval.
func (loggingSession *LoggingSession) ConsoleLogs(typeFilter string) []string {
	return loggingSession.session.ConsoleLogs(typeFilter)
}

// Close logs and delegates session shutdown.
func (loggingSession *LoggingSession) Close() error {
	return loggingSession.observe(OperationClose, "", nil, loggingSession.session.Close)
}

func (loggingSession *LoggingSession) observe(operation Operation, subject string, extraFields []zap.Field, action func() error) error {
	baseFields := []zap.Field{zap.String(operationFieldNameConstant, string(operation))}
	if len(subject) > 0 {
		baseFields = append(baseFields, zap.String(subjectFieldNameConstant, subject))
	}

	loggingSession.logger.Debug(operationStartMessageConstant, append(baseFields, extraFields...)...)
	startedAt := time.Now()

	actionError := action()
	elapsedField := zap.Duration(durationFieldNameConstant, time.Since(startedAt))
	if actionError != nil {
		failureFields := append(append([]zap.Field{}, baseFields...), elapsedField, zap.Error(actionError))
		if kind, found := KindOf(actionError); found {
			failureFields = append(failureFields, zap.String(kindFieldNameConstant, string(kind)))
		}
		loggingSession.logger.Warn(operationFailureMessageConstant, failureFields...)
		return actionError
	}

	loggingSession.logger.Debug(operationSuccessMessageConstant, append(baseFields, elapsedField)...)
	return nil
}
