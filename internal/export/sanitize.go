package export

import (
	"fmt"
	"strings"
	"unicode"
)

// SanitizeName drops control characters and replaces anything outside a
// filename-safe set with an underscore.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// Filename builds the download name for a render's EDL.
func Filename(title, renderID string) string {
	base := strings.ReplaceAll(SanitizeName(title, 48), " ", "_")
	if base == "" {
		base = "supernova"
	}
	short := renderID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s.edl", base, short)
}
