package schema

import (
	"unicode"

	"github.com/jinzhu/inflection"
)

// DefaultPath returns the URL collection segment for a class name: the
// lower-camel plural, e.g. "LyphTemplate" becomes "lyphTemplates" and
// "ClinicalIndex" becomes "clinicalIndices".
func DefaultPath(className string) string {
	if className == "" {
		return ""
	}
	r := []rune(className)
	r[0] = unicode.ToLower(r[0])
	return inflection.Plural(string(r))
}
