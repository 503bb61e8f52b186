package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/layoutprobe/internal/fixtures"
	"github.com/tyemirov/layoutprobe/internal/scenario"
	flagutils "github.com/tyemirov/layoutprobe/internal/utils/flags"
	"github.com/tyemirov/layoutprobe/pkg/layoutrunner"
)

const (
	runCommandUseNameConstant                 = "run"
	runCommandShortDescriptionConstant        = "Run the scenario catalog and report PASSED/FAILED lines"
	runCommandLongDescriptionConstant         = "run executes every selected scenario in one browser session, prints a line per probe followed by a summary, and exits non-zero when any probe fails."
	scenariosCommandUseNameConstant           = "scenarios"
	scenariosCommandAliasConstant             = "list"
	scenariosCommandShortDescriptionConstant  = "List the suites and scenarios a run would execute"
	fixturesNamespaceUseNameConstant          = "fixtures"
	fixturesNamespaceShortDescriptionConstant = "Fixture application commands"
	fixturesServeUseNameConstant              = "serve"
	fixturesServeShortDescriptionConstant     = "Serve the bundled layout fixture pages"
	fixturesServeLongDescriptionConstant      = "fixtures serve hosts the bundled fixture pages so the catalog can be exercised without the target application. It stops on interrupt."
	versionCommandUseNameConstant             = "version"
	versionCommandShortDescriptionConstant    = "Print the layoutprobe version"
	onlyFlagNameConstant                      = "only"
	onlyFlagUsageConstant                     = "Run only scenarios whose name or suite contains one of these substrings (repeatable, comma separated)."
	scenariosFlagNameConstant                 = "scenarios"
	scenariosFlagUsageConstant                = "Scenario catalog file (YAML). Defaults to the built-in catalog."
	reportFlagNameConstant                    = "report"
	reportFlagUsageConstant                   = "Write a JSON or YAML run report to this path (.json, .yaml, .yml)."
	metricsFileFlagNameConstant               = "metrics-file"
	metricsFileFlagUsageConstant              = "Write Prometheus textfile metrics to this path."
	watchFlagNameConstant                     = "watch"
	watchFlagUsageConstant                    = "Re-run whenever the scenario file changes."
	baseURLFlagNameConstant                   = "base-url"
	baseURLFlagUsageConstant                  = "Base URL relative scenario URLs resolve against."
	headlessFlagNameConstant                  = "headless"
	headlessFlagUsageConstant                 = "Run the browser without a window."
	navigationTimeoutFlagNameConstant         = "navigation-timeout"
	navigationTimeoutFlagUsageConstant        = "Maximum time to wait for each navigation."
	addressFlagNameConstant                   = "address"
	addressFlagUsageConstant                  = "Address the fixture server listens on."
	catalogLoadErrorTemplateConstant          = "unable to load scenario catalog: %w"
	testFailuresTemplateConstant              = "%d of %d layout tests failed"
	suiteListingTemplateConstant              = "%s (%d scenarios)\n"
	suiteDescriptionTemplateConstant          = "  %s\n"
	scenarioListingTemplateConstant           = "  - %s\n"
	fixtureRouteListingTemplateConstant       = "http://%s%s  %s\n"
	watchInitialRunFailedMessageConstant      = "initial run failed"
	fixtureServeMessageConstant               = "fixture server starting"
	addressFieldConstant                      = "address"
)

// TestFailuresError reports a completed run in which at least one probe failed.
type TestFailuresError struct {
	FailedCount int
	TotalCount  int
}

// Error implements the error interface.
func (failures TestFailuresError) Error() string {
	return fmt.Sprintf(testFailuresTemplateConstant, failures.FailedCount, failures.TotalCount)
}

func (application *Application) registerCommands(cobraCommand *cobra.Command) {
	runCommand := &cobra.Command{
		Use:           runCommandUseNameConstant,
		Short:         runCommandShortDescriptionConstant,
		Long:          runCommandLongDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runCatalog(command)
		},
	}
	bindRunFlags(runCommand)
	cobraCommand.AddCommand(runCommand)

	scenariosCommand := &cobra.Command{
		Use:           scenariosCommandUseNameConstant,
		Short:         scenariosCommandShortDescriptionConstant,
		Aliases:       []string{scenariosCommandAliasConstant},
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.listScenarios(command)
		},
	}
	scenariosCommand.Flags().String(scenariosFlagNameConstant, "", scenariosFlagUsageConstant)
	scenariosCommand.Flags().StringSlice(onlyFlagNameConstant, nil, onlyFlagUsageConstant)
	cobraCommand.AddCommand(scenariosCommand)

	fixturesNamespaceCommand := &cobra.Command{
		Use:           fixturesNamespaceUseNameConstant,
		Short:         fixturesNamespaceShortDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	fixturesServeCommand := &cobra.Command{
		Use:           fixturesServeUseNameConstant,
		Short:         fixturesServeShortDescriptionConstant,
		Long:          fixturesServeLongDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.serveFixtures(command)
		},
	}
	fixturesServeCommand.Flags().String(addressFlagNameConstant, "", addressFlagUsageConstant)
	fixturesNamespaceCommand.AddCommand(fixturesServeCommand)
	cobraCommand.AddCommand(fixturesNamespaceCommand)

	cobraCommand.AddCommand(&cobra.Command{
		Use:           versionCommandUseNameConstant,
		Short:         versionCommandShortDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command)
			return nil
		},
	})
}

func bindRunFlags(command *cobra.Command) {
	flagSet := command.Flags()
	flagSet.StringSlice(onlyFlagNameConstant, nil, onlyFlagUsageConstant)
	flagSet.String(scenariosFlagNameConstant, "", scenariosFlagUsageConstant)
	flagSet.String(reportFlagNameConstant, "", reportFlagUsageConstant)
	flagSet.String(metricsFileFlagNameConstant, "", metricsFileFlagUsageConstant)
	flagSet.String(baseURLFlagNameConstant, "", baseURLFlagUsageConstant)
	flagSet.Duration(navigationTimeoutFlagNameConstant, 0, navigationTimeoutFlagUsageConstant)
	flagutils.AddToggleFlag(flagSet, nil, watchFlagNameConstant, "", false, watchFlagUsageConstant)
	flagutils.AddToggleFlag(flagSet, nil, headlessFlagNameConstant, "", true, headlessFlagUsageConstant)
}

// applyRunFlags overlays explicitly set run flags on top of the loaded configuration.
func applyRunFlags(command *cobra.Command, configuration *ApplicationConfiguration) {
	if onlyValues, onlyChanged, onlyError := flagutils.StringSliceFlag(command, onlyFlagNameConstant); onlyError == nil && onlyChanged {
		configuration.Run.Only = onlyValues
	}
	stringOverrides := []struct {
		flagName string
		target   *string
	}{
		{flagName: scenariosFlagNameConstant, target: &configuration.Run.Scenarios},
		{flagName: reportFlagNameConstant, target: &configuration.Run.Report},
		{flagName: metricsFileFlagNameConstant, target: &configuration.Run.MetricsFile},
		{flagName: baseURLFlagNameConstant, target: &configuration.Run.BaseURL},
	}
	for _, override := range stringOverrides {
		if flagValue, flagChanged, flagError := flagutils.StringFlag(command, override.flagName); flagError == nil && flagChanged {
			*override.target = strings.TrimSpace(flagValue)
		}
	}
	if timeoutValue, timeoutChanged, timeoutError := flagutils.DurationFlag(command, navigationTimeoutFlagNameConstant); timeoutError == nil && timeoutChanged {
		configuration.Browser.NavigationTimeout = timeoutValue
	}
	if watchValue, watchChanged, watchError := flagutils.BoolFlag(command, watchFlagNameConstant); watchError == nil && watchChanged {
		configuration.Run.Watch = watchValue
	}
	if headlessValue, headlessChanged, headlessError := flagutils.BoolFlag(command, headlessFlagNameConstant); headlessError == nil && headlessChanged {
		configuration.Browser.Headless = headlessValue
	}
}

func (application *Application) runCatalog(command *cobra.Command) error {
	configuration := application.configuration
	applyRunFlags(command, &configuration)
	if validationError := configuration.Validate(); validationError != nil {
		return validationError
	}

	executor := layoutrunner.Resolve(application.runnerFactory, layoutrunner.BuildDependencies(
		layoutrunner.DependenciesConfig{
			LoggerProvider: func() *zap.Logger { return application.logger },
			Launcher:       application.browserLauncher,
		},
		layoutrunner.DependenciesOptions{Command: command},
	))

	runIdentifier := application.runIdentifierProvider()
	executionContext := application.commandContextAccessor.WithRunIdentifier(command.Context(), runIdentifier)

	runOnce := func(runContext context.Context) error {
		catalog, catalogError := loadCatalog(configuration.Run.Scenarios)
		if catalogError != nil {
			return catalogError
		}
		contextIdentifier, _ := application.commandContextAccessor.RunIdentifier(runContext)
		runOptions := configuration.RunOptions(contextIdentifier)
		runOptions.ConfigurationFile, _ = application.commandContextAccessor.ConfigurationFilePath(runContext)
		report, runError := executor.Run(runContext, catalog, runOptions)
		if runError != nil {
			return runError
		}
		if report.ExitCode != 0 {
			return TestFailuresError{FailedCount: report.Summary.FailedCount, TotalCount: report.Summary.Total()}
		}
		return nil
	}

	if !configuration.Run.Watch {
		return runOnce(executionContext)
	}

	// The outcome of the most recent run decides the exit status once watching stops.
	lastRunError := runOnce(executionContext)
	if lastRunError != nil {
		var failures TestFailuresError
		if !errors.As(lastRunError, &failures) {
			application.logger.Warn(watchInitialRunFailedMessageConstant, zap.Error(lastRunError))
		}
	}
	watchError := layoutrunner.WatchFile(executionContext, application.logger, configuration.Run.Scenarios, layoutrunner.DefaultWatchDebounce, func(watchContext context.Context) error {
		lastRunError = runOnce(application.commandContextAccessor.WithRunIdentifier(watchContext, application.runIdentifierProvider()))
		return lastRunError
	})
	if watchError != nil {
		return watchError
	}
	return lastRunError
}

func (application *Application) listScenarios(command *cobra.Command) error {
	configuration := application.configuration
	applyRunFlags(command, &configuration)

	catalog, catalogError := loadCatalog(configuration.Run.Scenarios)
	if catalogError != nil {
		return catalogError
	}
	writeCatalogListing(command.OutOrStdout(), catalog.Filter(trimmedValues(configuration.Run.Only)))
	return nil
}

func (application *Application) serveFixtures(command *cobra.Command) error {
	address := strings.TrimSpace(application.configuration.Fixtures.Address)
	if flagValue, flagChanged, flagError := flagutils.StringFlag(command, addressFlagNameConstant); flagError == nil && flagChanged {
		address = strings.TrimSpace(flagValue)
	}
	if len(address) == 0 {
		address = fixtures.DefaultAddress
	}

	application.logger.Info(fixtureServeMessageConstant, zap.String(addressFieldConstant, address))
	output := command.OutOrStdout()
	for _, route := range fixtures.Routes() {
		fmt.Fprintf(output, fixtureRouteListingTemplateConstant, address, route.Path, route.Description)
	}
	return fixtures.NewServer(application.logger).ListenAndServe(command.Context(), address)
}

func loadCatalog(scenariosPath string) (scenario.Catalog, error) {
	trimmedPath := strings.TrimSpace(scenariosPath)
	var catalog scenario.Catalog
	var loadError error
	if len(trimmedPath) == 0 {
		catalog, loadError = scenario.DefaultCatalog()
	} else {
		catalog, loadError = scenario.LoadCatalog(trimmedPath)
	}
	if loadError != nil {
		return scenario.Catalog{}, fmt.Errorf(catalogLoadErrorTemplateConstant, loadError)
	}
	return catalog, nil
}

func writeCatalogListing(writer io.Writer, catalog scenario.Catalog) {
	for _, suite := range catalog.List() {
		fmt.Fprintf(writer, suiteListingTemplateConstant, suite.Name, len(suite.ScenarioNames))
		if description := strings.TrimSpace(suite.Description); len(description) > 0 {
			fmt.Fprintf(writer, suiteDescriptionTemplateConstant, description)
		}
		for _, scenarioName := range suite.ScenarioNames {
			fmt.Fprintf(writer, scenarioListingTemplateConstant, scenarioName)
		}
	}
}
