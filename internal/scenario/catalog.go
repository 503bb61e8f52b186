package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	catalogPathRequiredMessageConstant = "scenario catalog path not provided"
	catalogReadErrorTemplateConstant   = "unable to read scenario catalog %s: %w"
	catalogParseErrorTemplateConstant  = "unable to parse scenario catalog: %w"
	catalogEmptyMessageConstant        = "scenario catalog defines no scenarios"
	embeddedSuiteErrorTemplateConstant = "embedded suite %s: %w"
)

//go:embed suites/*.yaml
var embeddedSuiteFiles embed.FS

// embeddedSuiteOrder lists the default suites in execution order.
var embeddedSuiteOrder = []string{
	"suites/basic.yaml",
	"suites/snap.yaml",
	"suites/stress.yaml",
	"suites/dynamic.yaml",
	"suites/touch.yaml",
	"suites/background.yaml",
}

// SuiteMetadata summarizes a suite for listings.
type SuiteMetadata struct {
	Name          string
	Description   string
	ScenarioNames []string
}

// Catalog is an ordered collection of suites.
type Catalog struct {
	Suites []Suite
}

// DefaultCatalog parses the embedded suites.
func DefaultCatalog() (Catalog, error) {
	catalog := Catalog{}
	for _, fileName := range embeddedSuiteOrder {
		content, readError := embeddedSuiteFiles.ReadFile(fileName)
		if readError != nil {
			return Catalog{}, fmt.Errorf(embeddedSuiteErrorTemplateConstant, fileName, readError)
		}
		parsedCatalog, parseError := ParseCatalog(content)
		if parseError != nil {
			return Catalog{}, fmt.Errorf(embeddedSuiteErrorTemplateConstant, fileName, parseError)
		}
		catalog.Suites = append(catalog.Suites, parsedCatalog.Suites...)
	}
	return catalog, nil
}

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(filePath string) (Catalog, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return Catalog{}, errors.New(catalogPathRequiredMessageConstant)
	}

	content, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return Catalog{}, fmt.Errorf(catalogReadErrorTemplateConstant, trimmedPath, readError)
	}

	catalog, parseError := ParseCatalog(content)
	if parseError != nil {
		return Catalog{}, parseError
	}
	if validationError := catalog.Validate(); validationError != nil {
		return Catalog{}, validationError
	}
	return catalog, nil
}

// ParseCatalog decodes one or more YAML suite documents.
func ParseCatalog(content []byte) (Catalog, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	catalog := Catalog{}
	for {
		var suite Suite
		decodeError := decoder.Decode(&suite)
		if errors.Is(decodeError, io.EOF) {
			break
		}
		if decodeError != nil {
			return Catalog{}, fmt.Errorf(catalogParseErrorTemplateConstant, decodeError)
		}
		suite.Name = strings.TrimSpace(suite.Name)
		for scenarioIndex := range suite.Scenarios {
			suite.Scenarios[scenarioIndex].Name = strings.TrimSpace(suite.Scenarios[scenarioIndex].Name)
			suite.Scenarios[scenarioIndex].Suite = suite.Name
		}
		catalog.Suites = append(catalog.Suites, suite)
	}

	if len(catalog.Scenarios()) == 0 {
		return Catalog{}, errors.New(catalogEmptyMessageConstant)
	}
	return catalog, nil
}

// Scenarios flattens the catalog in declaration order.
func (catalog Catalog) Scenarios() []Scenario {
	scenarios := make([]Scenario, 0)
	for _, suite := range catalog.Suites {
		scenarios = append(scenarios, suite.Scenarios...)
	}
	return scenarios
}

// Filter keeps scenarios whose name or suite contains any pattern, case-insensitively.
// Suites left without scenarios are dropped. No patterns keeps everything.
func (catalog Catalog) Filter(patterns []string) Catalog {
	normalizedPatterns := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmedPattern := strings.ToLower(strings.TrimSpace(pattern))
		if len(trimmedPattern) > 0 {
			normalizedPatterns = append(normalizedPatterns, trimmedPattern)
		}
	}
	if len(normalizedPatterns) == 0 {
		return catalog
	}

	filtered := Catalog{}
	for _, suite := range catalog.Suites {
		keptSuite := Suite{Name: suite.Name, Description: suite.Description}
		for _, candidate := range suite.Scenarios {
			if matchesAny(normalizedPatterns, candidate.Name, suite.Name) {
				keptSuite.Scenarios = append(keptSuite.Scenarios, candidate)
			}
		}
		if len(keptSuite.Scenarios) > 0 {
			filtered.Suites = append(filtered.Suites, keptSuite)
		}
	}
	return filtered
}

// List describes every suite and its scenario names.
func (catalog Catalog) List() []SuiteMetadata {
	metadata := make([]SuiteMetadata, 0, len(catalog.Suites))
	for _, suite := range catalog.Suites {
		names := make([]string, 0, len(suite.Scenarios))
		for _, candidate := range suite.Scenarios {
			names = append(names, candidate.Name)
		}
		metadata = append(metadata, SuiteMetadata{Name: suite.Name, Description: suite.Description, ScenarioNames: names})
	}
	return metadata
}

func matchesAny(patterns []string, candidates ...string) bool {
	for _, candidate := range candidates {
		loweredCandidate := strings.ToLower(candidate)
		for _, pattern := range patterns {
			if strings.Contains(loweredCandidate, pattern) {
				return true
			}
		}
	}
	return false
}
