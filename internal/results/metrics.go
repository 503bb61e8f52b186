package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespaceConstant              = "layoutprobe"
	metricsPathRequiredMessageConstant    = "metrics file path not provided"
	metricsDirectoryErrorTemplateConstant = "results.metrics.directory: %w"
	metricsWriteErrorTemplateConstant     = "results.metrics.write: %w"
	statusLabelConstant                   = "status"
	kindLabelConstant                     = "kind"
	scenarioLabelConstant                 = "scenario"
	suiteLabelConstant                    = "suite"
	runIdentifierLabelConstant            = "run_id"
	unknownKindLabelConstant              = "none"
	metricsDirectoryPermissionsConstant   = 0o755
)

// WriteMetricsFile exports report as a Prometheus textfile collector file.
func WriteMetricsFile(filePath string, report Report) error {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return errors.New(metricsPathRequiredMessageConstant)
	}
	if directoryError := os.MkdirAll(filepath.Dir(trimmedPath), metricsDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(metricsDirectoryErrorTemplateConstant, directoryError)
	}

	registry := NewMetricsRegistry(report)
	if writeError := prometheus.WriteToTextfile(trimmedPath, registry); writeError != nil {
		return fmt.Errorf(metricsWriteErrorTemplateConstant, writeError)
	}
	return nil
}

// NewMetricsRegistry builds a registry populated from one run report.
func NewMetricsRegistry(report Report) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	outcomesTotal := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespaceConstant,
		Name:      "outcomes_total",
		Help:      "Layout test outcomes recorded in the last run, by status and failure kind.",
	}, []string{statusLabelConstant, kindLabelConstant})
	scenarioDuration := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespaceConstant,
		Name:      "scenario_duration_seconds",
		Help:      "Wall time of each scenario in the last run.",
	}, []string{scenarioLabelConstant, suiteLabelConstant})
	runSuccess := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespaceConstant,
		Name:      "run_success",
		Help:      "1 when every outcome of the last run passed.",
	}, []string{runIdentifierLabelConstant})
	runFinished := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespaceConstant,
		Name:      "run_finished_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})
	runDuration := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespaceConstant,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run.",
	})

	outcomesTotal.WithLabelValues(string(StatusPassed), unknownKindLabelConstant).Add(0)
	outcomesTotal.WithLabelValues(string(StatusFailed), unknownKindLabelConstant).Add(0)
	for _, outcome := range report.Summary.Outcomes {
		kindLabel := unknownKindLabelConstant
		if len(outcome.ErrorKind) > 0 {
			kindLabel = string(outcome.ErrorKind)
		}
		outcomesTotal.WithLabelValues(string(outcome.Status), kindLabel).Inc()
	}
	for _, timing := range report.Summary.Timings {
		scenarioDuration.WithLabelValues(timing.Scenario, timing.Suite).Set(timing.Duration.Seconds())
	}

	successValue := 0.0
	if ExitCode(report.Summary) == exitCodeSuccessConstant {
		successValue = 1
	}
	runSuccess.WithLabelValues(report.RunIdentifier).Set(successValue)
	if !report.FinishedAt.IsZero() {
		runFinished.Set(float64(report.FinishedAt.UnixNano()) / float64(time.Second))
		runDuration.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	return registry
}
