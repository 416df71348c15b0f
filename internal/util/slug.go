package util

import (
	"regexp"
	"strings"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a display name into a lowercase ASCII topic key.
// Runs of anything that is not [a-z0-9] collapse into a single dash.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss").Replace(s)
	s = nonSlug.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}
