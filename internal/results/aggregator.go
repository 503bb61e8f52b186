// Package results accumulates layout test outcomes and renders line reports, summaries, report files, and metrics.
package results

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tyemirov/layoutprobe/internal/browser"
)

const (
	passedLineTemplateConstant      = "PASSED: %s | %s\n"
	failedLineTemplateConstant      = "FAILED: %s | %s\n"
	summaryLineTemplateConstant     = "Summary: passed=%d failed=%d total=%d\n"
	failedHeaderConstant            = "Failed tests:\n"
	failedEntryTemplateConstant     = "  - %s: %s\n"
	failedKindEntryTemplateConstant = "  - %s [%s]: %s\n"
	exitCodeSuccessConstant         = 0
	exitCodeFailureConstant         = 1
)

// Status is the verdict of one outcome.
type Status string

// Outcome statuses.
const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Outcome is one recorded verdict. Outcomes are never mutated after recording.
type Outcome struct {
	TestName   string       `json:"test_name" yaml:"test_name"`
	Scenario   string       `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	Status     Status       `json:"status" yaml:"status"`
	Details    string       `json:"details" yaml:"details"`
	ErrorKind  browser.Kind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	RecordedAt time.Time    `json:"recorded_at" yaml:"recorded_at"`
}

// ScenarioTiming records how long one scenario took.
type ScenarioTiming struct {
	Scenario string        `json:"scenario" yaml:"scenario"`
	Suite    string        `json:"suite,omitempty" yaml:"suite,omitempty"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

// RunSummary is a snapshot of the aggregated outcomes.
type RunSummary struct {
	PassedCount int              `json:"passed" yaml:"passed"`
	FailedCount int              `json:"failed" yaml:"failed"`
	Outcomes    []Outcome        `json:"outcomes" yaml:"outcomes"`
	Timings     []ScenarioTiming `json:"scenario_timings,omitempty" yaml:"scenario_timings,omitempty"`
}

// Total returns the number of recorded outcomes.
func (summary RunSummary) Total() int {
	return summary.PassedCount + summary.FailedCount
}

// Failures returns the failed outcomes in recording order.
func (summary RunSummary) Failures() []Outcome {
	failures := make([]Outcome, 0, summary.FailedCount)
	for _, outcome := range summary.Outcomes {
		if outcome.Status == StatusFailed {
			failures = append(failures, outcome)
		}
	}
	return failures
}

// AggregatorOption customises an Aggregator.
type AggregatorOption func(*Aggregator)

// WithNowProvider overrides the clock used for outcome timestamps.
func WithNowProvider(provider func() time.Time) AggregatorOption {
	return func(aggregator *Aggregator) {
		if provider != nil {
			aggregator.now = provider
		}
	}
}

// Aggregator records outcomes in order and echoes each one as a report line.
type Aggregator struct {
	outputWriter io.Writer
	now          func() time.Time

	mutex       sync.Mutex
	passedCount int
	failedCount int
	outcomes    []Outcome
	timings     []ScenarioTiming
	scenario    string
}

// NewAggregator writes report lines to output, defaulting to stdout.
func NewAggregator(output io.Writer, options ...AggregatorOption) *Aggregator {
	if output == nil {
		output = os.Stdout
	}
	aggregator := &Aggregator{outputWriter: output, now: time.Now}
	for _, option := range options {
		option(aggregator)
	}
	return aggregator
}

// BeginScenario tags subsequent outcomes with scenarioName.
func (aggregator *Aggregator) BeginScenario(scenarioName string) {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()
	aggregator.scenario = scenarioName
}

// RecordScenarioDuration stores the wall time of a finished scenario.
func (aggregator *Aggregator) RecordScenarioDuration(scenarioName string, suiteName string, duration time.Duration) {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()
	aggregator.timings = append(aggregator.timings, ScenarioTiming{Scenario: scenarioName, Suite: suiteName, Duration: duration})
}

// Record appends an outcome and prints its line immediately.
func (aggregator *Aggregator) Record(testName string, status Status, details string) Outcome {
	return aggregator.record(Outcome{TestName: testName, Status: status, Details: details})
}

// RecordError appends a failed outcome carrying the automation kind of err.
func (aggregator *Aggregator) RecordError(testName string, err error) Outcome {
	outcome := Outcome{TestName: testName, Status: StatusFailed, Details: browser.MessageOf(err)}
	if kind, known := browser.KindOf(err); known {
		outcome.ErrorKind = kind
	}
	return aggregator.record(outcome)
}

func (aggregator *Aggregator) record(outcome Outcome) Outcome {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()

	if outcome.Status != StatusPassed {
		outcome.Status = StatusFailed
	}
	outcome.Scenario = aggregator.scenario
	outcome.RecordedAt = aggregator.now()

	aggregator.outcomes = append(aggregator.outcomes, outcome)
	lineTemplate := passedLineTemplateConstant
	if outcome.Status == StatusPassed {
		aggregator.passedCount++
	} else {
		aggregator.failedCount++
		lineTemplate = failedLineTemplateConstant
	}
	fmt.Fprintf(aggregator.outputWriter, lineTemplate, outcome.TestName, outcome.Details)
	return outcome
}

// Summarize returns a copy of the current counts and outcomes.
func (aggregator *Aggregator) Summarize() RunSummary {
	aggregator.mutex.Lock()
	defer aggregator.mutex.Unlock()
	return RunSummary{
		PassedCount: aggregator.passedCount,
		FailedCount: aggregator.failedCount,
		Outcomes:    append([]Outcome(nil), aggregator.outcomes...),
		Timings:     append([]ScenarioTiming(nil), aggregator.timings...),
	}
}

// PrintSummary writes the totals and the failed tests block.
func (aggregator *Aggregator) PrintSummary() {
	summary := aggregator.Summarize()
	WriteSummary(aggregator.outputWriter, summary)
}

// WriteSummary renders summary to writer.
func WriteSummary(writer io.Writer, summary RunSummary) {
	fmt.Fprintf(writer, summaryLineTemplateConstant, summary.PassedCount, summary.FailedCount, summary.Total())
	failures := summary.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprint(writer, failedHeaderConstant)
	for _, failure := range failures {
		if len(failure.ErrorKind) > 0 {
			fmt.Fprintf(writer, failedKindEntryTemplateConstant, failure.TestName, failure.ErrorKind, failure.Details)
			continue
		}
		fmt.Fprintf(writer, failedEntryTemplateConstant, failure.TestName, failure.Details)
	}
}

// ExitCode maps a summary to a process exit status: 0 when nothing failed, 1 otherwise.
func ExitCode(summary RunSummary) int {
	if summary.FailedCount == 0 {
		return exitCodeSuccessConstant
	}
	return exitCodeFailureConstant
}
