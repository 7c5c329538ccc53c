// Package util provides string helpers for command arguments.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg trims surrounding whitespace and quotes and unescapes inner quotes.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// CleanArgs applies CleanArg to every element in place and returns data.
func CleanArgs(data []string) []string {
	for i, v := range data {
		data[i] = CleanArg(v)
	}
	return data
}

// TrimBrackets strips one pair of surrounding square brackets, as in "[1,2,3]".
func TrimBrackets(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	return strings.TrimSuffix(s, "]")
}

// SplitCommand splits a script line of the form "COMMAND|arg|arg" into the
// command and its arguments. Blank lines and lines starting with '#' yield
// ok == false.
func SplitCommand(line, sep string) (command string, args []string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil, false
	}
	parts := strings.Split(line, sep)
	command = strings.TrimSpace(parts[0])
	if command == "" {
		return "", nil, false
	}
	return command, parts[1:], true
}
