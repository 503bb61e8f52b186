package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"

	"github.com/tyemirov/layoutprobe/internal/browser"
	"github.com/tyemirov/layoutprobe/internal/utils"
	"github.com/tyemirov/layoutprobe/pkg/layoutrunner"
)

const (
	unsupportedEngineTemplateConstant            = "unsupported browser engine %q (supported: %s)"
	invalidNavigationTimeoutTemplateConstant     = "browser.navigation_timeout must be positive, got %s"
	watchRequiresScenarioFileMessageConstant     = "run.watch requires run.scenarios to name a scenario file"
	configurationValidationErrorTemplateConstant = "invalid configuration: %w"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common   ApplicationCommonConfiguration   `mapstructure:"common"`
	Browser  ApplicationBrowserConfiguration  `mapstructure:"browser"`
	Run      ApplicationRunConfiguration      `mapstructure:"run"`
	Fixtures ApplicationFixturesConfiguration `mapstructure:"fixtures"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationBrowserConfiguration selects and tunes the browser session.
type ApplicationBrowserConfiguration struct {
	Engine               string        `mapstructure:"engine"`
	Headless             bool          `mapstructure:"headless"`
	ExecutablePath       string        `mapstructure:"executable_path"`
	NavigationTimeout    time.Duration `mapstructure:"navigation_timeout"`
	ScreenshotsDirectory string        `mapstructure:"screenshots_directory"`
}

// ApplicationRunConfiguration captures what a run executes and where its artifacts go.
type ApplicationRunConfiguration struct {
	BaseURL     string   `mapstructure:"base_url"`
	Scenarios   string   `mapstructure:"scenarios"`
	Only        []string `mapstructure:"only"`
	Report      string   `mapstructure:"report"`
	MetricsFile string   `mapstructure:"metrics_file"`
	Watch       bool     `mapstructure:"watch"`
}

// ApplicationFixturesConfiguration configures the bundled fixture server.
type ApplicationFixturesConfiguration struct {
	Address string `mapstructure:"address"`
}

func configurationDecodeHooks() []mapstructure.DecodeHookFunc {
	return []mapstructure.DecodeHookFunc{
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	}
}

func configurationDefaults() map[string]any {
	return map[string]any{
		commonLogLevelConfigKeyConstant:           string(utils.LogLevelError),
		commonLogFormatConfigKeyConstant:          string(utils.LogFormatStructured),
		browserEngineConfigKeyConstant:            browser.EngineChromium,
		browserHeadlessConfigKeyConstant:          true,
		browserNavigationTimeoutConfigKeyConstant: defaultNavigationTimeoutConstant,
		runBaseURLConfigKeyConstant:               defaultBaseURLConstant,
		fixturesAddressConfigKeyConstant:          defaultFixturesAddressConstant,
	}
}

// Validate reports configuration values no run could honour.
func (configuration ApplicationConfiguration) Validate() error {
	var validationErrors []error

	engine := strings.ToLower(strings.TrimSpace(configuration.Browser.Engine))
	if len(engine) > 0 && engine != browser.EngineChromium {
		validationErrors = append(validationErrors, fmt.Errorf(unsupportedEngineTemplateConstant, configuration.Browser.Engine, browser.EngineChromium))
	}
	if configuration.Browser.NavigationTimeout <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf(invalidNavigationTimeoutTemplateConstant, configuration.Browser.NavigationTimeout))
	}
	if configuration.Run.Watch && len(strings.TrimSpace(configuration.Run.Scenarios)) == 0 {
		validationErrors = append(validationErrors, errors.New(watchRequiresScenarioFileMessageConstant))
	}

	if len(validationErrors) == 0 {
		return nil
	}
	return fmt.Errorf(configurationValidationErrorTemplateConstant, errors.Join(validationErrors...))
}

// LaunchOptions converts the browser section into session launch options.
func (configuration ApplicationConfiguration) LaunchOptions() browser.LaunchOptions {
	engine := strings.ToLower(strings.TrimSpace(configuration.Browser.Engine))
	if len(engine) == 0 {
		engine = browser.EngineChromium
	}
	return browser.LaunchOptions{
		Engine:              engine,
		Headless:            configuration.Browser.Headless,
		ExecutablePath:      strings.TrimSpace(configuration.Browser.ExecutablePath),
		NavigationTimeout:   configuration.Browser.NavigationTimeout,
		ScreenshotDirectory: strings.TrimSpace(configuration.Browser.ScreenshotsDirectory),
	}
}

// RunOptions converts the configuration into catalog runner options.
func (configuration ApplicationConfiguration) RunOptions(runIdentifier string) layoutrunner.Options {
	return layoutrunner.Options{
		Browser:       configuration.LaunchOptions(),
		BaseURL:       strings.TrimSpace(configuration.Run.BaseURL),
		Only:          trimmedValues(configuration.Run.Only),
		ReportPath:    strings.TrimSpace(configuration.Run.Report),
		MetricsPath:   strings.TrimSpace(configuration.Run.MetricsFile),
		RunIdentifier: runIdentifier,
	}
}

func trimmedValues(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		if candidate := strings.TrimSpace(value); len(candidate) > 0 {
			trimmed = append(trimmed, candidate)
		}
	}
	return trimmed
}
