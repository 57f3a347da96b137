package tokens

import (
	"strings"
	"unicode/utf8"
)

// Separator joins turn contents before they are counted.
const Separator = "\n\n"

// Estimate is the deterministic fallback: four characters per token, rounded down.
func Estimate(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// Join concatenates contents the way every counter sees them.
func Join(contents []string) string {
	return strings.Join(contents, Separator)
}
