package scenario

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the application address scenarios resolve against.
	DefaultBaseURL = "http://localhost:4000"

	baseURLParseErrorTemplateConstant   = "invalid base url %q: %w"
	targetURLParseErrorTemplateConstant = "invalid scenario url %q: %w"
)

// ResolveURL resolves target against baseURL; absolute targets are returned unchanged.
func ResolveURL(baseURL string, target string) (string, error) {
	trimmedBase := strings.TrimSpace(baseURL)
	if len(trimmedBase) == 0 {
		trimmedBase = DefaultBaseURL
	}

	parsedBase, baseError := url.Parse(trimmedBase)
	if baseError != nil {
		return "", fmt.Errorf(baseURLParseErrorTemplateConstant, baseURL, baseError)
	}
	parsedTarget, targetError := url.Parse(strings.TrimSpace(target))
	if targetError != nil {
		return "", fmt.Errorf(targetURLParseErrorTemplateConstant, target, targetError)
	}
	return parsedBase.ResolveReference(parsedTarget).String(), nil
}
