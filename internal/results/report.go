package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	reportPathRequiredMessageConstant  = "report path not provided"
	reportEncodeErrorTemplateConstant  = "results.report.encode: %w"
	reportWriteErrorTemplateConstant   = "results.report.write: %w"
	reportFormatErrorTemplateConstant  = "results.report.format: unsupported extension %q"
	reportDirectoryPermissionsConstant = 0o755
	reportFilePermissionsConstant      = 0o644
	jsonIndentConstant                 = "  "
)

// Report describes one complete run for machine consumption.
type Report struct {
	RunIdentifier     string     `json:"run_id" yaml:"run_id"`
	BaseURL           string     `json:"base_url" yaml:"base_url"`
	ConfigurationFile string     `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	StartedAt         time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt        time.Time  `json:"finished_at" yaml:"finished_at"`
	ExitCode          int        `json:"exit_code" yaml:"exit_code"`
	Summary           RunSummary `json:"summary" yaml:"summary"`
}

// ReportFormat selects the report encoding.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatJSON ReportFormat = "json"
	ReportFormatYAML ReportFormat = "yaml"
)

// ReportFormatForPath derives the format from the file extension.
func ReportFormatForPath(filePath string) (ReportFormat, error) {
	extension := strings.ToLower(filepath.Ext(strings.TrimSpace(filePath)))
	switch extension {
	case ".json":
		return ReportFormatJSON, nil
	case ".yaml", ".yml":
		return ReportFormatYAML, nil
	default:
		return "", fmt.Errorf(reportFormatErrorTemplateConstant, extension)
	}
}

// EncodeReport renders report in format.
func EncodeReport(report Report, format ReportFormat) ([]byte, error) {
	switch format {
	case ReportFormatJSON:
		encoded, encodeError := json.MarshalIndent(report, "", jsonIndentConstant)
		if encodeError != nil {
			return nil, fmt.Errorf(reportEncodeErrorTemplateConstant, encodeError)
		}
		return append(encoded, '\n'), nil
	case ReportFormatYAML:
		encoded, encodeError := yaml.Marshal(report)
		if encodeError != nil {
			return nil, fmt.Errorf(reportEncodeErrorTemplateConstant, encodeError)
		}
		return encoded, nil
	default:
		return nil, fmt.Errorf(reportFormatErrorTemplateConstant, format)
	}
}

// WriteReportFile encodes report by extension and writes it, creating parent directories.
func WriteReportFile(filePath string, report Report) error {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return errors.New(reportPathRequiredMessageConstant)
	}
	format, formatError := ReportFormatForPath(trimmedPath)
	if formatError != nil {
		return formatError
	}
	encoded, encodeError := EncodeReport(report, format)
	if encodeError != nil {
		return encodeError
	}
	if directoryError := os.MkdirAll(filepath.Dir(trimmedPath), reportDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(reportWriteErrorTemplateConstant, directoryError)
	}
	if writeError := os.WriteFile(trimmedPath, encoded, reportFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(reportWriteErrorTemplateConstant, writeError)
	}
	return nil
}
