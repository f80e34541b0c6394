package models

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ReadableLayout renders e.g. "Wed, Jan 10, 9:00 AM".
const ReadableLayout = "Mon, Jan 2, 3:04 PM"

// ReadableTime formats t in loc for display.
func ReadableTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(ReadableLayout)
}

// TitleCaseSpecialty turns "general-physician" into "General Physician".
func TitleCaseSpecialty(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "-", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// OrPlaceholder returns s, or the placeholder when s is blank.
func OrPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}
