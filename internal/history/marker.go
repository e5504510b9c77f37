// Package history classifies wiki pages against their bot-managed history
// block and splices freshly rendered blocks into page text.
package history

import "regexp"

// Wikitext markers delimiting the bot-managed region.
const (
	Placeholder = "{{NAW Changelist}}"
	BeginMarker = "<!--BEGIN HISTORY-->"
	EndMarker   = "<!--END HISTORY-->"

	metaPrefix = "<!--HISTORY META: "
	metaSuffix = "-->"
)

// versionMarker matches the version comment written into every block:
//
//	<!--HISTORY META: <word chars><spaces>v<digits>.<digits>-->
var versionMarker = regexp.MustCompile(`<!--HISTORY META: (\w* *v\d+\.\d+)-->`)

// ParseVersionMarker returns the label recorded in text's first version marker.
func ParseVersionMarker(text string) (string, bool) {
	m := versionMarker.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FormatVersionMarker renders the version comment for label.
func FormatVersionMarker(label string) string {
	return metaPrefix + label + metaSuffix
}
