package layoutrunner

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/layoutprobe/internal/browser"
)

// DependenciesConfig captures providers required to build runner dependencies.
type DependenciesConfig struct {
	LoggerProvider        func() *zap.Logger
	Launcher              browser.Launcher
	NowProvider           func() time.Time
	RunIdentifierProvider func() string
}

// DependenciesOptions allows per-command overrides when resolving dependencies.
type DependenciesOptions struct {
	Command *cobra.Command
	Output  io.Writer
	Errors  io.Writer
}

// Dependencies are the collaborators a catalog run needs.
type Dependencies struct {
	Logger           *zap.Logger
	Launcher         browser.Launcher
	Output           io.Writer
	Errors           io.Writer
	Now              func() time.Time
	NewRunIdentifier func() string
}

// BuildDependencies resolves the logger, launcher, writers, and clocks, defaulting to chromedp and the command streams.
func BuildDependencies(config DependenciesConfig, options DependenciesOptions) Dependencies {
	logger := resolveLogger(config.LoggerProvider)

	launcher := config.Launcher
	if launcher == nil {
		launcher = browser.NewChromedpLauncher(logger)
	}

	now := config.NowProvider
	if now == nil {
		now = time.Now
	}

	newRunIdentifier := config.RunIdentifierProvider
	if newRunIdentifier == nil {
		newRunIdentifier = uuid.NewString
	}

	return Dependencies{
		Logger:           logger,
		Launcher:         launcher,
		Output:           resolveWriter(options.Output, options.Command, true),
		Errors:           resolveWriter(options.Errors, options.Command, false),
		Now:              now,
		NewRunIdentifier: newRunIdentifier,
	}
}

func resolveLogger(provider func() *zap.Logger) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveWriter(provided io.Writer, command *cobra.Command, useStdout bool) io.Writer {
	if provided != nil {
		return provided
	}
	if command != nil {
		if useStdout {
			if writer := command.OutOrStdout(); writer != nil && writer != io.Discard {
				return writer
			}
		} else {
			if writer := command.ErrOrStderr(); writer != nil && writer != io.Discard {
				return writer
			}
		}
	}
	if useStdout {
		return os.Stdout
	}
	return os.Stderr
}
