// Package browsertest provides scriptable browser sessions for tests.
package browsertest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/tyemirov/layoutprobe/internal/browser"
)

// Call records one operation observed by a FakeSession.
type Call struct {
	Operation browser.Operation
	Subject   string
	Viewport  browser.Viewport
}

// FakeSession is an in-memory browser.Session. Unset hooks succeed.
type FakeSession struct {
	NavigateFunc     func(targetURL string, viewport browser.Viewport) error
	EvaluateFunc     func(script string) (any, error)
	ClickFunc        func(selector string, text string) error
	SelectFunc       func(selector string, value string) error
	PressKeyFunc     func(key string) error
	ScreenshotFunc   func(name string, options browser.ScreenshotOptions) (string, error)
	Console          map[string][]string
	CloseError       error
	ScreenshotFolder string

	mutex      sync.Mutex
	calls      []Call
	closeCount int
}

// Navigate records the navigation and runs NavigateFunc.
func (session *FakeSession) Navigate(_ context.Context, targetURL string, viewport browser.Viewport) error {
	session.record(Call{Operation: browser.OperationNavigate, Subject: targetURL, Viewport: viewport})
	if session.NavigateFunc == nil {
		return nil
	}
	return session.NavigateFunc(targetURL, viewport)
}

// Evaluate records the script and runs EvaluateFunc.
func (session *FakeSession) Evaluate(_ context.Context, script string) (any, error) {
	session.record(Call{Operation: browser.OperationEvaluate, Subject: script})
	if session.EvaluateFunc == nil {
		return nil, nil
	}
	return session.EvaluateFunc(script)
}

// Click records the selector and runs ClickFunc.
func (session *FakeSession) Click(_ context.Context, selector string, text string) error {
	session.record(Call{Operation: browser.OperationClick, Subject: selector})
	if session.ClickFunc == nil {
		return nil
	}
	return session.ClickFunc(selector, text)
}

// SelectOption records the selector and runs SelectFunc.
func (session *FakeSession) SelectOption(_ context.Context, selector string, value string) error {
	session.record(Call{Operation: browser.OperationSelect, Subject: selector})
	if session.SelectFunc == nil {
		return nil
	}
	return session.SelectFunc(selector, value)
}

// PressKey records the key and runs PressKeyFunc.
func (session *FakeSession) PressKey(_ context.Context, key string) error {
	session.record(Call{Operation: browser.OperationPressKey, Subject: key})
	if session.PressKeyFunc == nil {
		return nil
	}
	return session.PressKeyFunc(key)
}

// Screenshot records the name and runs ScreenshotFunc, defaulting to a synthetic path.
func (session *FakeSession) Screenshot(_ context.Context, name string, options browser.ScreenshotOptions) (string, error) {
	session.record(Call{Operation: browser.OperationScreenshot, Subject: name})
	if session.ScreenshotFunc != nil {
		return session.ScreenshotFunc(name, options)
	}
	format := options.Format
	if len(format) == 0 {
		format = browser.ScreenshotFormatPNG
	}
	return filepath.Join(session.ScreenshotFolder, fmt.Sprintf("%s%s", name, format.Extension())), nil
}

// ConsoleLogs returns the configured console entries for typeFilter.
func (session *FakeSession) ConsoleLogs(typeFilter string) []string {
	return append([]string(nil), session.Console[typeFilter]...)
}

// Close counts the call and returns CloseError.
func (session *FakeSession) Close() error {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.closeCount++
	return session.CloseError
}

// Calls returns a copy of the recorded operations.
func (session *FakeSession) Calls() []Call {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return append([]Call(nil), session.calls...)
}

// Operations returns the recorded operation names in order.
func (session *FakeSession) Operations() []browser.Operation {
	calls := session.Calls()
	operations := make([]browser.Operation, 0, len(calls))
	for _, call := range calls {
		operations = append(operations, call.Operation)
	}
	return operations
}

// CloseCount reports how many times Close was invoked.
func (session *FakeSession) CloseCount() int {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.closeCount
}

func (session *FakeSession) record(call Call) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.calls = append(session.calls, call)
}

// FakeLauncher returns a fixed session or error.
type FakeLauncher struct {
	Session     browser.Session
	LaunchError error

	mutex       sync.Mutex
	launchCount int
	lastOptions browser.LaunchOptions
}

// Launch returns the configured session.
func (launcher *FakeLauncher) Launch(_ context.Context, options browser.LaunchOptions) (browser.Session, error) {
	launcher.mutex.Lock()
	defer launcher.mutex.Unlock()
	launcher.launchCount++
	launcher.lastOptions = options
	if launcher.LaunchError != nil {
		return nil, launcher.LaunchError
	}
	return launcher.Session, nil
}

// LaunchCount reports how many sessions were requested.
func (launcher *FakeLauncher) LaunchCount() int {
	launcher.mutex.Lock()
	defer launcher.mutex.Unlock()
	return launcher.launchCount
}

// LastOptions returns the options of the most recent launch.
func (launcher *FakeLauncher) LastOptions() browser.LaunchOptions {
	launcher.mutex.Lock()
	defer launcher.mutex.Unlock()
	return launcher.lastOptions
}
