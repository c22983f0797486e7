package ui

import (
	"strings"
	"unicode/utf8"
)

// TruncateSimple performs end truncation with "..." suffix. UTF-8 safe.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

// WrapText wraps text at word boundaries to fit within maxWidth, indenting
// continuation lines by indent. Preserves existing line breaks.
func WrapText(text string, maxWidth int, indent string) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, maxWidth, indent)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, maxWidth int, indent string) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}

	var result strings.Builder
	indentLen := utf8.RuneCountInString(indent)
	currentLen := 0
	for _, word := range strings.Fields(line) {
		wordLen := utf8.RuneCountInString(word)
		switch {
		case currentLen == 0:
			// First word on a line is written even if too long
			result.WriteString(word)
			currentLen = wordLen
		case currentLen+1+wordLen <= maxWidth:
			result.WriteString(" ")
			result.WriteString(word)
			currentLen += 1 + wordLen
		default:
			result.WriteString("\n")
			result.WriteString(indent)
			result.WriteString(word)
			currentLen = indentLen + wordLen
		}
	}
	return result.String()
}
