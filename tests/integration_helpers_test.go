package tests

import (
	"context"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/tyemirov/layoutprobe/internal/fixtures"
)

const (
	integrationCommandFailureFormatConstant = "command failed: %v\n%s"
	integrationBinaryFileNameConstant       = "layoutprobe-integration"
	integrationShortModeSkipMessageConstant = "browser integration tests are skipped in short mode"
	integrationNoBrowserSkipMessageConstant = "no Chromium-compatible browser found on PATH"
	integrationConfigSearchPathVariable     = "LAYOUTPROBE_CONFIG_SEARCH_PATH"
)

var integrationBrowserExecutableNames = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"headless-shell",
}

func requireBrowser(testInstance *testing.T) {
	testInstance.Helper()
	if testing.Short() {
		testInstance.Skip(integrationShortModeSkipMessageConstant)
	}
	for _, executableName := range integrationBrowserExecutableNames {
		if _, lookupError := exec.LookPath(executableName); lookupError == nil {
			return
		}
	}
	testInstance.Skip(integrationNoBrowserSkipMessageConstant)
}

func repositoryRoot(testInstance *testing.T) string {
	testInstance.Helper()
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		testInstance.Fatalf(integrationCommandFailureFormatConstant, workingDirectoryError, "")
	}
	return filepath.Dir(workingDirectory)
}

func buildIntegrationBinary(testInstance *testing.T) string {
	testInstance.Helper()
	binaryPath := filepath.Join(testInstance.TempDir(), integrationBinaryFileNameConstant)

	command := exec.Command("go", "build", "-o", binaryPath, ".")
	command.Dir = repositoryRoot(testInstance)
	command.Env = os.Environ()

	outputBytes, runError := command.CombinedOutput()
	if runError != nil {
		testInstance.Fatalf(integrationCommandFailureFormatConstant, runError, string(outputBytes))
	}
	return binaryPath
}

func startFixtureServer(testInstance *testing.T) string {
	testInstance.Helper()
	server := httptest.NewServer(fixtures.NewServer(nil).Handler())
	testInstance.Cleanup(server.Close)
	return server.URL
}

func runBinaryIntegrationCommand(testInstance *testing.T, binaryPath string, timeout time.Duration, arguments ...string) (string, error) {
	testInstance.Helper()

	executionContext, cancelFunction := context.WithTimeout(context.Background(), timeout)
	defer cancelFunction()

	workingDirectory := testInstance.TempDir()
	command := exec.CommandContext(executionContext, binaryPath, arguments...)
	command.Dir = workingDirectory
	command.Env = append(os.Environ(), integrationConfigSearchPathVariable+"="+workingDirectory)

	outputBytes, runError := command.CombinedOutput()
	return string(outputBytes), runError
}

func writeScenarioFile(testInstance *testing.T, content string) string {
	testInstance.Helper()
	scenarioPath := filepath.Join(testInstance.TempDir(), "scenarios.yaml")
	if writeError := os.WriteFile(scenarioPath, []byte(content), 0o600); writeError != nil {
		testInstance.Fatalf(integrationCommandFailureFormatConstant, writeError, "")
	}
	return scenarioPath
}
