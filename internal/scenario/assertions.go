package scenario

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

const (
	pathSeparatorConstant         = "."
	lengthSegmentConstant         = "length"
	notFoundLabelConstant         = "<not found>"
	wholeValueLabelConstant       = "value"
	observedDetailTemplate        = "observed %s"
	assertionFailureTemplate      = "%s %s %s: observed %s"
	assertionFailureWithinFormat  = "%s within %s of %s: observed %s"
	assertionFailureUnaryTemplate = "%s %s: observed %s"
	expectedFieldLabelTemplate    = "field %q"
)

// NotFound marks a probe field that does not exist in the evaluated value.
var NotFound = notFoundValue{}

type notFoundValue struct{}

func (notFoundValue) String() string {
	return notFoundLabelConstant
}

// MarshalJSON renders the marker as a readable string in reports.
func (notFoundValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(notFoundLabelConstant)
}

// ResolvePath walks a dot separated path through maps, arrays, and strings.
// The segment "length" yields the size of arrays and strings.
func ResolvePath(value any, path string) any {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return value
	}

	current := value
	for _, segment := range strings.Split(trimmedPath, pathSeparatorConstant) {
		switch typedValue := current.(type) {
		case map[string]any:
			nextValue, exists := typedValue[segment]
			if !exists {
				return NotFound
			}
			current = nextValue
		case []any:
			if segment == lengthSegmentConstant {
				current = float64(len(typedValue))
				continue
			}
			index, indexError := strconv.Atoi(segment)
			if indexError != nil || index < 0 || index >= len(typedValue) {
				return NotFound
			}
			current = typedValue[index]
		case string:
			if segment != lengthSegmentConstant {
				return NotFound
			}
			current = float64(len([]rune(typedValue)))
		default:
			return NotFound
		}
	}
	return current
}

// Evaluate checks every assertion against value and returns whether all held plus a detail line.
func (probe Probe) Evaluate(value any) (bool, string) {
	for _, assertion := range probe.Assertions {
		held, failureDetail := assertion.Check(value)
		if !held {
			return false, failureDetail
		}
	}
	if len(strings.TrimSpace(probe.PassDetail)) > 0 {
		return true, probe.PassDetail
	}
	return true, fmt.Sprintf(observedDetailTemplate, CompactJSON(value))
}

// Check evaluates a single assertion and describes the failure when it does not hold.
func (assertion Assertion) Check(value any) (bool, string) {
	observed := ResolvePath(value, assertion.Field)
	expected := assertion.Expected
	expectedLabel := CompactJSON(expected)
	if len(assertion.ExpectedField) > 0 {
		expected = ResolvePath(value, assertion.ExpectedField)
		expectedLabel = fmt.Sprintf(expectedFieldLabelTemplate, assertion.ExpectedField)
	}

	fieldLabel := assertion.Field
	if len(fieldLabel) == 0 {
		fieldLabel = wholeValueLabelConstant
	}

	if _, missing := observed.(notFoundValue); missing {
		if assertion.Op == OperatorTruthy || assertion.Op == OperatorFalsy {
			return false, fmt.Sprintf(assertionFailureUnaryTemplate, fieldLabel, assertion.Op, notFoundLabelConstant)
		}
		return false, fmt.Sprintf(assertionFailureTemplate, fieldLabel, assertion.Op, expectedLabel, notFoundLabelConstant)
	}
	if _, missing := expected.(notFoundValue); missing {
		return false, fmt.Sprintf(assertionFailureTemplate, fieldLabel, assertion.Op, expectedLabel+" "+notFoundLabelConstant, CompactJSON(observed))
	}

	if compare(assertion.Op, observed, expected, assertion.Tolerance) {
		return true, ""
	}

	if assertion.Op == OperatorTruthy || assertion.Op == OperatorFalsy {
		return false, fmt.Sprintf(assertionFailureUnaryTemplate, fieldLabel, assertion.Op, CompactJSON(observed))
	}
	if assertion.Op == OperatorWithin {
		return false, fmt.Sprintf(assertionFailureWithinFormat, fieldLabel, strconv.FormatFloat(assertion.Tolerance, 'f', -1, 64), expectedLabel, CompactJSON(observed))
	}
	return false, fmt.Sprintf(assertionFailureTemplate, fieldLabel, assertion.Op, expectedLabel, CompactJSON(observed))
}

func compare(operator Operator, observed any, expected any, tolerance float64) bool {
	switch operator {
	case OperatorEquals:
		return valuesEqual(observed, expected)
	case OperatorNotEquals:
		return !valuesEqual(observed, expected)
	case OperatorContains:
		return containsValue(observed, expected)
	case OperatorMatches:
		observedText, isText := observed.(string)
		patternText, patternIsText := expected.(string)
		if !isText || !patternIsText {
			return false
		}
		pattern, compileError := regexp.Compile(patternText)
		if compileError != nil {
			return false
		}
		return pattern.MatchString(observedText)
	case OperatorOneOf:
		candidates, isList := normalize(expected).([]any)
		if !isList {
			return false
		}
		for _, candidate := range candidates {
			if valuesEqual(observed, candidate) {
				return true
			}
		}
		return false
	case OperatorWithin:
		observedNumber, observedIsNumber := toNumber(observed)
		expectedNumber, expectedIsNumber := toNumber(expected)
		return observedIsNumber && expectedIsNumber && math.Abs(observedNumber-expectedNumber) < tolerance
	case OperatorLessThan:
		observedNumber, observedIsNumber := toNumber(observed)
		expectedNumber, expectedIsNumber := toNumber(expected)
		return observedIsNumber && expectedIsNumber && observedNumber < expectedNumber
	case OperatorGreaterThan:
		observedNumber, observedIsNumber := toNumber(observed)
		expectedNumber, expectedIsNumber := toNumber(expected)
		return observedIsNumber && expectedIsNumber && observedNumber > expectedNumber
	case OperatorTruthy:
		return IsTruthy(observed)
	case OperatorFalsy:
		return !IsTruthy(observed)
	default:
		return false
	}
}

func valuesEqual(observed any, expected any) bool {
	observedNumber, observedIsNumber := toNumber(observed)
	expectedNumber, expectedIsNumber := toNumber(expected)
	if observedIsNumber && expectedIsNumber {
		return observedNumber == expectedNumber
	}
	return reflect.DeepEqual(normalize(observed), normalize(expected))
}

func containsValue(observed any, expected any) bool {
	switch typedObserved := observed.(type) {
	case string:
		expectedText, isText := expected.(string)
		return isText && strings.Contains(typedObserved, expectedText)
	case []any:
		for _, element := range typedObserved {
			if valuesEqual(element, expected) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// IsTruthy follows JavaScript truthiness for JSON values.
func IsTruthy(value any) bool {
	switch typedValue := value.(type) {
	case nil:
		return false
	case bool:
		return typedValue
	case string:
		return len(typedValue) > 0
	default:
		if number, isNumber := toNumber(typedValue); isNumber {
			return number != 0 && !math.IsNaN(number)
		}
		return true
	}
}

func toNumber(value any) (float64, bool) {
	switch typedValue := value.(type) {
	case float64:
		return typedValue, true
	case float32:
		return float64(typedValue), true
	case int:
		return float64(typedValue), true
	case int64:
		return float64(typedValue), true
	case int32:
		return float64(typedValue), true
	case uint64:
		return float64(typedValue), true
	case json.Number:
		number, parseError := typedValue.Float64()
		return number, parseError == nil
	default:
		return 0, false
	}
}

// normalize converts YAML decoded values into the shapes produced by JSON decoding.
func normalize(value any) any {
	switch typedValue := value.(type) {
	case []any:
		normalized := make([]any, 0, len(typedValue))
		for _, element := range typedValue {
			normalized = append(normalized, normalize(element))
		}
		return normalized
	case map[string]any:
		normalized := make(map[string]any, len(typedValue))
		for key, element := range typedValue {
			normalized[key] = normalize(element)
		}
		return normalized
	case map[any]any:
		normalized := make(map[string]any, len(typedValue))
		for key, element := range typedValue {
			normalized[fmt.Sprint(key)] = normalize(element)
		}
		return normalized
	default:
		if number, isNumber := toNumber(typedValue); isNumber {
			return number
		}
		return value
	}
}

// CompactJSON renders value as single line JSON, falling back to fmt formatting.
func CompactJSON(value any) string {
	encoded, encodeError := json.Marshal(value)
	if encodeError != nil {
		return fmt.Sprint(value)
	}
	return string(encoded)
}
