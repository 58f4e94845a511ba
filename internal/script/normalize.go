package script

import (
	"regexp"
	"strings"
)

var (
	bracketTimestampRe  = regexp.MustCompile(`\[\d+:\d+-\d+:\d+\]`)
	presenterEmphasisRe = regexp.MustCompile(`(?i)\*\*Presenter\*\*`)
	presenterTimedRe    = regexp.MustCompile(`(?i)Presenter\s*\(\d+:\d+-\d+:\d+\)\s*:\s*`)
	parenTimestampRe    = regexp.MustCompile(`\(\d+:\d+-\d+:\d+\)\s*:\s*`)
	emphasisRe          = regexp.MustCompile(`\*\*(.*?)\*\*`)
	aRollLabelRe        = regexp.MustCompile(`(?i)A-ROLL[:\s]*`)
	bRollLabelRe        = regexp.MustCompile(`(?i)B-ROLL[:\s]*`)
	directionRe         = regexp.MustCompile(`\([^)]*\)`)
	blankRunRe          = regexp.MustCompile(`\n\s*\n`)
	whitespaceRe        = regexp.MustCompile(`\s+`)
)

// directionMarkers drop a whole line when found in it, case-insensitively.
var directionMarkers = []string{"b-roll", "a-roll", "medium shot", "close-up", "wide shot"}

// NormalizeForSpeech strips timestamps, speaker labels, emphasis markup and
// stage directions from a script, leaving only the words a voice should say.
// It returns "" when nothing speakable remains.
func NormalizeForSpeech(s string) string {
	out := normalizeOnce(s)
	// Removing one artifact can expose another, such as a timestamp nested
	// inside a timestamp. After the first pass the text is a single line and
	// every further pass that changes it is shorter, so this terminates.
	for {
		next := normalizeOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func normalizeOnce(s string) string {
	s = bracketTimestampRe.ReplaceAllString(s, "")
	s = presenterEmphasisRe.ReplaceAllString(s, "")
	s = presenterTimedRe.ReplaceAllString(s, "")
	s = parenTimestampRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "$1")
	s = aRollLabelRe.ReplaceAllString(s, "")
	s = bRollLabelRe.ReplaceAllString(s, "")
	s = directionRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, "\n")
	s = strings.TrimSpace(s)

	var kept []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if isSpokenLine(line) {
			kept = append(kept, line)
		}
	}

	joined := strings.Join(kept, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(joined, " "))
}

func isSpokenLine(line string) bool {
	if line == "" || strings.HasPrefix(line, "(") || strings.HasPrefix(line, "[") {
		return false
	}
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "presenter") {
		return false
	}
	for _, marker := range directionMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}
