package util

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const snippetLen = 60

// RelativeTime renders t relative to now the way list views show it.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	mins := int(d / time.Minute)
	hours := int(d / time.Hour)
	days := int(d / (24 * time.Hour))
	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return plural(mins, "min")
	case hours < 24:
		return plural(hours, "hour")
	case days < 7:
		return plural(days, "day")
	}
	return t.Format("Jan 2, 2006")
}

func plural(n int, unit string) string {
	if n > 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}

// Snippet returns the first 60 characters of content, with "..." when cut.
func Snippet(content string) string {
	if utf8.RuneCountInString(content) <= snippetLen {
		return content
	}
	r := []rune(content)
	return string(r[:snippetLen]) + "..."
}
