package browser

import (
	"sort"
	"strings"
)

// KeyDefinition describes the key event fields dispatched for a named key.
type KeyDefinition struct {
	Key            string
	Code           string
	Text           string
	VirtualKeyCode int64
}

var keyDefinitions = map[string]KeyDefinition{
	"Home":       {Key: "Home", Code: "Home", VirtualKeyCode: 36},
	"End":        {Key: "End", Code: "End", VirtualKeyCode: 35},
	"PageUp":     {Key: "PageUp", Code: "PageUp", VirtualKeyCode: 33},
	"PageDown":   {Key: "PageDown", Code: "PageDown", VirtualKeyCode: 34},
	"ArrowUp":    {Key: "ArrowUp", Code: "ArrowUp", VirtualKeyCode: 38},
	"ArrowDown":  {Key: "ArrowDown", Code: "ArrowDown", VirtualKeyCode: 40},
	"ArrowLeft":  {Key: "ArrowLeft", Code: "ArrowLeft", VirtualKeyCode: 37},
	"ArrowRight": {Key: "ArrowRight", Code: "ArrowRight", VirtualKeyCode: 39},
	"Enter":      {Key: "Enter", Code: "Enter", Text: "\r", VirtualKeyCode: 13},
	"Escape":     {Key: "Escape", Code: "Escape", VirtualKeyCode: 27},
	"Tab":        {Key: "Tab", Code: "Tab", VirtualKeyCode: 9},
	"Space":      {Key: " ", Code: "Space", Text: " ", VirtualKeyCode: 32},
}

// LookupKey resolves a key name case-insensitively.
func LookupKey(name string) (KeyDefinition, bool) {
	trimmedName := strings.TrimSpace(name)
	if definition, found := keyDefinitions[trimmedName]; found {
		return definition, true
	}
	for candidateName, definition := range keyDefinitions {
		if strings.EqualFold(candidateName, trimmedName) {
			return definition, true
		}
	}
	return KeyDefinition{}, false
}

// SupportedKeys lists the key names accepted by PressKey in sorted order.
func SupportedKeys() []string {
	names := make([]string, 0, len(keyDefinitions))
	for name := range keyDefinitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
