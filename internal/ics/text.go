package ics

import "strings"

// RepairText resolves the two escapes that leak through into SUMMARY,
// DESCRIPTION and LOCATION: a literal `\n` becomes a newline and `\,`
// becomes a comma. Other escapes are left alone.
func RepairText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, `\n`, "\n")
	return strings.ReplaceAll(s, `\,`, ",")
}
