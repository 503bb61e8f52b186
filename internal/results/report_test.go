package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/layoutprobe/internal/browser"
)

const (
	reportSubtestTemplateConstant = "%d_%s"
	reportRunIdentifierConstant   = "0b6f3f5e-1f0c-4d8e-9a55-2f7c4f1d9a10"
)

func sampleReport() Report {
	startedAt := time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)
	return Report{
		RunIdentifier: reportRunIdentifierConstant,
		BaseURL:       "http://localhost:4000",
		StartedAt:     startedAt,
		FinishedAt:    startedAt.Add(12 * time.Second),
		ExitCode:      1,
		Summary: RunSummary{
			PassedCount: 1,
			FailedCount: 1,
			Outcomes: []Outcome{
				{TestName: "Basic Layout - Desktop (1440px)", Scenario: "Basic Layout - Desktop (1440px)", Status: StatusPassed, Details: "observed {}", RecordedAt: startedAt},
				{TestName: "Snap Scrolling - Desktop (1280px)", Scenario: "Snap Scrolling - Desktop (1280px)", Status: StatusFailed, Details: "net::ERR_CONNECTION_REFUSED", ErrorKind: browser.ErrNavigation, RecordedAt: startedAt},
			},
			Timings: []ScenarioTiming{
				{Scenario: "Basic Layout - Desktop (1440px)", Suite: "Basic Layout Tests", Duration: 2 * time.Second},
			},
		},
	}
}

func TestReportFormatForPath(testInstance *testing.T) {
	testCases := []struct {
		name          string
		path          string
		expected      ReportFormat
		expectedError bool
	}{
		{name: "json", path: "reports/run.json", expected: ReportFormatJSON},
		{name: "yaml", path: "run.YAML", expected: ReportFormatYAML},
		{name: "yml", path: "run.yml", expected: ReportFormatYAML},
		{name: "unsupported", path: "run.txt", expectedError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(reportSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			format, formatError := ReportFormatForPath(testCase.path)
			if testCase.expectedError {
				require.Error(testInstance, formatError)
				return
			}
			require.NoError(testInstance, formatError)
			require.Equal(testInstance, testCase.expected, format)
		})
	}
}

func TestWriteReportFileJSON(testInstance *testing.T) {
	reportPath := filepath.Join(testInstance.TempDir(), "nested", "run.json")
	require.NoError(testInstance, WriteReportFile(reportPath, sampleReport()))

	content, readError := os.ReadFile(reportPath)
	require.NoError(testInstance, readError)

	var decoded map[string]any
	require.NoError(testInstance, json.Unmarshal(content, &decoded))
	require.Equal(testInstance, reportRunIdentifierConstant, decoded["run_id"])
	require.Equal(testInstance, float64(1), decoded["exit_code"])

	summary, isMap := decoded["summary"].(map[string]any)
	require.True(testInstance, isMap)
	outcomes, isList := summary["outcomes"].([]any)
	require.True(testInstance, isList)
	require.Len(testInstance, outcomes, 2)
	require.Equal(testInstance, "navigation", outcomes[1].(map[string]any)["error_kind"])
}

func TestWriteReportFileYAML(testInstance *testing.T) {
	reportPath := filepath.Join(testInstance.TempDir(), "run.yaml")
	require.NoError(testInstance, WriteReportFile(reportPath, sampleReport()))

	content, readError := os.ReadFile(reportPath)
	require.NoError(testInstance, readError)
	require.True(testInstance, strings.Contains(string(content), "run_id: "+reportRunIdentifierConstant))

	var decoded Report
	require.NoError(testInstance, yaml.Unmarshal(content, &decoded))
	require.Equal(testInstance, sampleReport().Summary.Outcomes[1].TestName, decoded.Summary.Outcomes[1].TestName)
	require.Equal(testInstance, 2*time.Second, decoded.Summary.Timings[0].Duration)
}

func TestWriteReportFileErrors(testInstance *testing.T) {
	require.EqualError(testInstance, WriteReportFile(" ", sampleReport()), reportPathRequiredMessageConstant)
	require.Error(testInstance, WriteReportFile(filepath.Join(testInstance.TempDir(), "run.csv"), sampleReport()))
}
