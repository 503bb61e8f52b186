package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const metricsExpectedOutcomesConstant = `
# HELP layoutprobe_outcomes_total Layout test outcomes recorded in the last run, by status and failure kind.
# TYPE layoutprobe_outcomes_total counter
layoutprobe_outcomes_total{kind="navigation",status="failed"} 1
layoutprobe_outcomes_total{kind="none",status="failed"} 0
layoutprobe_outcomes_total{kind="none",status="passed"} 1
`

func TestNewMetricsRegistryOutcomes(testInstance *testing.T) {
	registry := NewMetricsRegistry(sampleReport())

	require.NoError(testInstance, testutil.GatherAndCompare(registry, strings.NewReader(metricsExpectedOutcomesConstant), "layoutprobe_outcomes_total"))

	count, countError := testutil.GatherAndCount(registry, "layoutprobe_scenario_duration_seconds")
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 1, count)
}

func TestWriteMetricsFile(testInstance *testing.T) {
	metricsPath := filepath.Join(testInstance.TempDir(), "textfile", "layoutprobe.prom")
	require.NoError(testInstance, WriteMetricsFile(metricsPath, sampleReport()))

	content, readError := os.ReadFile(metricsPath)
	require.NoError(testInstance, readError)
	text := string(content)
	require.Contains(testInstance, text, `layoutprobe_run_success{run_id="`+reportRunIdentifierConstant+`"} 0`)
	require.Contains(testInstance, text, "layoutprobe_run_duration_seconds 12")
	require.Contains(testInstance, text, `layoutprobe_scenario_duration_seconds{scenario="Basic Layout - Desktop (1440px)",suite="Basic Layout Tests"} 2`)

	require.EqualError(testInstance, WriteMetricsFile("", sampleReport()), metricsPathRequiredMessageConstant)
}
