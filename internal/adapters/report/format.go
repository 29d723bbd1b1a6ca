// Package report renders audit reports and normalization plans for the
// terminal and for machines.
package report

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned for an output format that is not supported.
var ErrUnknownFormat = errors.New("unknown report format")

// Format selects how a report is written.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML}
}

// ParseFormat accepts a format name, case-insensitively. "yml" is read as
// yaml.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q (want text, json or yaml)", ErrUnknownFormat, s)
	}
}
