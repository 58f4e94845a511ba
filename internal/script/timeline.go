package script

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var cueRe = regexp.MustCompile(`\[(\d+):(\d+)-(\d+):(\d+)\]`)

// ParseTimeline parses cue lines of the form "[m:ss-m:ss] A-ROLL: text" into
// segments sorted by start time. Lines without a bracketed time range are
// prose and are ignored. Cues that cannot become a segment are skipped and
// returned as *MalformedCueError values; they never abort the parse.
func ParseTimeline(raw string) ([]Segment, []error) {
	var segments []Segment
	var skipped []error

	for i, line := range strings.Split(raw, "\n") {
		loc := cueRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		groups := make([]string, 4)
		for g := 0; g < 4; g++ {
			groups[g] = line[loc[2+2*g]:loc[3+2*g]]
		}

		start, err1 := clockSeconds(groups[0], groups[1])
		end, err2 := clockSeconds(groups[2], groups[3])
		if err1 != nil || err2 != nil {
			skipped = append(skipped, &MalformedCueError{Line: i + 1, Text: line, Reason: "time range out of range"})
			continue
		}
		if end <= start {
			skipped = append(skipped, &MalformedCueError{
				Line:   i + 1,
				Text:   line,
				Reason: fmt.Sprintf("end %ds is not after start %ds", end, start),
			})
			continue
		}

		content := line[:loc[0]] + line[loc[1]:]
		lower := strings.ToLower(content)
		role := RoleARoll
		if !strings.Contains(lower, "a-roll") && strings.Contains(lower, "b-roll") {
			role = RoleBRoll
		}

		seg := Segment{
			Role:         role,
			Start:        start,
			End:          end,
			TimeRangeKey: groups[0] + ":" + groups[1] + "-" + groups[2] + ":" + groups[3],
		}

		switch role {
		case RoleARoll:
			seg.Text = strings.TrimSpace(aRollLabelRe.ReplaceAllString(content, ""))
			if seg.Text == "" {
				continue
			}
		case RoleBRoll:
			seg.RawDescription = strings.TrimSpace(bRollLabelRe.ReplaceAllString(content, ""))
		}

		segments = append(segments, seg)
	}

	sort.SliceStable(segments, func(a, b int) bool {
		return segments[a].Start < segments[b].Start
	})
	return segments, skipped
}

func clockSeconds(minutes, seconds string) (int, error) {
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, err
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, err
	}
	return 60*m + s, nil
}
