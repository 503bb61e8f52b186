package probe

import (
	"github.com/tyemirov/layoutprobe/internal/browser"
	"github.com/tyemirov/layoutprobe/internal/scenario"
)

// Result is one captured probe value, or the failure that stopped a scenario.
type Result struct {
	Name     string
	Scenario string
	Value    any
	Detail   string
	Probe    *scenario.Probe
	Err      error
}

// Failed reports whether the result carries an automation failure.
func (result Result) Failed() bool {
	return result.Err != nil
}

// Evaluate applies the probe assertions to the captured value.
// Failures always fail; results without assertions pass with the captured detail.
func (result Result) Evaluate() (bool, string) {
	if result.Err != nil {
		return false, browser.MessageOf(result.Err)
	}
	if result.Probe == nil {
		return true, result.Detail
	}
	return result.Probe.Evaluate(result.Value)
}
