// Package sanitize provides text sanitization utilities for outbound message text.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	// markdownEmphasisRegex matches bold/italic markers and inline code ticks
	markdownEmphasisRegex = regexp.MustCompile("(\\*\\*|__|`)")
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// SMS turns generated text into a plain single-paragraph SMS body: HTML and
// markdown emphasis are removed and whitespace runs collapse to one space.
func SMS(s string) string {
	result := StripHTML(s)
	result = markdownEmphasisRegex.ReplaceAllString(result, "")
	return strings.Join(strings.Fields(result), " ")
}

// Truncate cuts s to at most maxBytes bytes without splitting a rune.
func Truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := 0
	for i := range s {
		if i > maxBytes {
			break
		}
		cut = i
	}
	return s[:cut]
}
