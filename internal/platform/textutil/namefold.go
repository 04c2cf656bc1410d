package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldName canonicalises a display name for case-insensitive uniqueness
// checks: surrounding whitespace is trimmed, internal runs collapse to one
// space and the result is Unicode case-folded.
func FoldName(name string) string {
	collapsed := strings.Join(strings.Fields(name), " ")
	return cases.Fold().String(collapsed)
}
