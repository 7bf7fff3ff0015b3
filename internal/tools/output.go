package tools

import (
	"fmt"
	"unicode/utf8"
)

// DefaultMaxOutputChars is the shared output ceiling for every tool result.
const DefaultMaxOutputChars = 30000

// ErrorPrefix marks tool results that describe a failed call.
const ErrorPrefix = "Error: "

const truncationMarkerPrefix = "\n[OUTPUT TRUNCATED: "

// TruncationMarker renders the marker appended to truncated output.
func TruncationMarker(omitted int) string {
	return fmt.Sprintf("%s%d characters omitted]", truncationMarkerPrefix, omitted)
}

// Truncate caps output at max characters and appends a marker naming the
// omitted length. Output at or under the ceiling is returned unchanged.
func Truncate(output string, max int) (string, bool) {
	if max <= 0 {
		return output, false
	}
	total := utf8.RuneCountInString(output)
	if total <= max {
		return output, false
	}
	cut := 0
	for i := range output {
		if cut == max {
			return output[:i] + TruncationMarker(total-max), true
		}
		cut++
	}
	return output, false
}

// FormatError renders an error as a tool result body.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return ErrorPrefix + err.Error()
}

// errorString formats errors for CallResult output.
func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
