// Package browser exposes the browser automation capability used by layout probes.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// EngineChromium is the only supported browser engine.
	EngineChromium = "chromium"

	defaultDeviceScaleFactorConstant = 1.0
	viewportLabelTemplateConstant    = "%dx%d"
)

// Viewport describes the emulated device the page is rendered on.
type Viewport struct {
	Width             int     `yaml:"width" json:"width"`
	Height            int     `yaml:"height" json:"height"`
	DeviceScaleFactor float64 `yaml:"device_scale_factor,omitempty" json:"device_scale_factor,omitempty"`
	Mobile            bool    `yaml:"mobile,omitempty" json:"mobile,omitempty"`
	Touch             bool    `yaml:"touch,omitempty" json:"touch,omitempty"`
}

// Normalized returns the viewport with a default device scale factor applied.
func (viewport Viewport) Normalized() Viewport {
	if viewport.DeviceScaleFactor <= 0 {
		viewport.DeviceScaleFactor = defaultDeviceScaleFactorConstant
	}
	return viewport
}

// String renders the viewport as WIDTHxHEIGHT.
func (viewport Viewport) String() string {
	return fmt.Sprintf(viewportLabelTemplateConstant, viewport.Width, viewport.Height)
}

// ScreenshotFormat enumerates supported image encodings.
type ScreenshotFormat string

// Supported screenshot formats.
const (
	ScreenshotFormatPNG  ScreenshotFormat = "png"
	ScreenshotFormatJPEG ScreenshotFormat = "jpeg"
)

// ParseScreenshotFormat normalizes a format name, defaulting to PNG.
func ParseScreenshotFormat(rawFormat string) (ScreenshotFormat, error) {
	switch strings.ToLower(strings.TrimSpace(rawFormat)) {
	case "", string(ScreenshotFormatPNG):
		return ScreenshotFormatPNG, nil
	case string(ScreenshotFormatJPEG), "jpg":
		return ScreenshotFormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported screenshot format %q", rawFormat)
	}
}

// Extension returns the file extension for the format.
func (format ScreenshotFormat) Extension() string {
	if format == ScreenshotFormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// ScreenshotOptions configures a screenshot capture.
type ScreenshotOptions struct {
	FullPage bool
	Format   ScreenshotFormat
	Quality  int
}

// ConsoleEntry captures one console message emitted by the page.
type ConsoleEntry struct {
	Type string
	Text string
}

// Session is an open browser page driven by layout probes.
type Session interface {
	Navigate(executionContext context.Context, targetURL string, viewport Viewport) error
	Evaluate(executionContext context.Context, script string) (any, error)
	Click(executionContext context.Context, selector string, text string) error
	SelectOption(executionContext context.Context, selector string, value string) error
	PressKey(executionContext context.Context, key string) error
	Screenshot(executionContext context.Context, name string, options ScreenshotOptions) (string, error)
	ConsoleLogs(typeFilter string) []string
	Close() error
}

// LaunchOptions configures a browser session.
type LaunchOptions struct {
	Engine              string
	Headless            bool
	ExecutablePath      string
	NavigationTimeout   time.Duration
	ScreenshotDirectory string
}

// Launcher opens browser sessions.
type Launcher interface {
	Launch(executionContext context.Context, options LaunchOptions) (Session, error)
}

func filterConsoleEntries(entries []ConsoleEntry, typeFilter string) []string {
	normalizedFilter := strings.ToLower(strings.TrimSpace(typeFilter))
	filtered := make([]string, 0, len(entries))
	for _, entry := range entries {
		if len(normalizedFilter) > 0 && !strings.EqualFold(entry.Type, normalizedFilter) {
			continue
		}
		filtered = append(filtered, entry.Text)
	}
	return filtered
}
