// Package flags provides helpers for binding and reading the shared layoutprobe flags on Cobra commands.
package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	toggleTrueLiteral           = "true"
	unsupportedToggleValueError = "unsupported toggle value %q"
)

// toggleValue is a boolean flag value that also accepts yes/no and on/off spellings.
type toggleValue struct {
	target *bool
}

func (value *toggleValue) String() string {
	if value.target == nil {
		return "false"
	}
	if *value.target {
		return toggleTrueLiteral
	}
	return "false"
}

func (value *toggleValue) Set(rawValue string) error {
	parsedValue, parseError := parseToggleValue(rawValue)
	if parseError != nil {
		return parseError
	}
	*value.target = parsedValue
	return nil
}

func (value *toggleValue) Type() string {
	return "bool"
}

// IsBoolFlag lets pflag accept the bare flag form.
func (value *toggleValue) IsBoolFlag() bool {
	return true
}

// AddToggleFlag registers a boolean flag that accepts --name, --name=false, and --name=no forms.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}
	if flagSet.Lookup(name) != nil {
		return
	}
	if target == nil {
		target = new(bool)
	}
	*target = defaultValue

	flag := flagSet.VarPF(&toggleValue{target: target}, name, shorthand, usage)
	flag.NoOptDefVal = toggleTrueLiteral
}

func parseToggleValue(rawValue string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(rawValue)) {
	case "true", "t", "1", "yes", "y", "on":
		return true, nil
	case "false", "f", "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf(unsupportedToggleValueError, rawValue)
	}
}
