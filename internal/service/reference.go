package service

import (
	"regexp"
	"strings"
)

// correlationCodePattern matches booking codes such as BK-1700000000-ab12cd
// anywhere inside a bank transfer description.
var correlationCodePattern = regexp.MustCompile(`(?i)BK-(\d+)-([a-z0-9]+)`)

// ExtractReference returns the first correlation code found in text, in its
// canonical form (upper-case prefix, lower-case suffix), or "" if none.
func ExtractReference(text string) string {
	m := correlationCodePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return "BK-" + m[1] + "-" + strings.ToLower(m[2])
}
