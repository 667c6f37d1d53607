package logger

import (
	"fmt"
	"runtime"
	"strings"
)

// FilenameValidationError reports characters that cannot appear in a log
// file name on the current platform.
type FilenameValidationError struct {
	Pattern      string
	InvalidChars []rune
	Platform     string
	Suggestion   string
}

func (e *FilenameValidationError) Error() string {
	quoted := make([]string, 0, len(e.InvalidChars))
	for _, r := range e.InvalidChars {
		quoted = append(quoted, fmt.Sprintf("'%c' (%s)", r, describeRune(r)))
	}
	return fmt.Sprintf("invalid filename pattern %q: contains %s, not allowed on %s; try %q",
		e.Pattern, strings.Join(quoted, ", "), e.Platform, e.Suggestion)
}

// path separators are rejected everywhere; the rest only on Windows
var (
	universalInvalid = []rune{'/', '\\'}
	windowsInvalid   = []rune{':', '*', '?', '"', '<', '>', '|'}
)

// ValidateFilenamePattern checks that a log filename pattern yields a valid
// file name. An empty pattern is valid and means the default.
func ValidateFilenamePattern(pattern string) error {
	if pattern == "" {
		return nil
	}

	invalid := append([]rune{}, universalInvalid...)
	platform := "all platforms"
	if runtime.GOOS == "windows" {
		invalid = append(invalid, windowsInvalid...)
		platform = "Windows"
	}

	var found []rune
	for _, r := range pattern {
		for _, bad := range invalid {
			if r == bad {
				found = append(found, r)
				break
			}
		}
	}
	if len(found) == 0 {
		return nil
	}

	return &FilenameValidationError{
		Pattern:      pattern,
		InvalidChars: found,
		Platform:     platform,
		Suggestion:   suggestFilename(pattern, invalid),
	}
}

// GetSafeFilenamePatterns lists patterns valid on every platform
func GetSafeFilenamePatterns() []string {
	return []string{
		"skycast-YYYYMMDD.log",
		"skycast-YYYY-MM-DD.log",
		"skycast_YYYY_MM_DD.log",
		"skycast.YYYY.MM.DD.log",
		"skycast-YYYYMMDD-HH.log",
	}
}

func suggestFilename(pattern string, invalid []rune) string {
	return strings.Map(func(r rune) rune {
		for _, bad := range invalid {
			if r == bad {
				return '-'
			}
		}
		return r
	}, pattern)
}

func describeRune(r rune) string {
	switch r {
	case '/', '\\':
		return "path separator"
	case ':':
		return "colon"
	case '*':
		return "asterisk"
	case '?':
		return "question mark"
	case '"':
		return "quotes"
	case '<', '>':
		return "angle brackets"
	case '|':
		return "pipe"
	}
	return "reserved"
}
