// Package script turns raw, timestamp-annotated video scripts into
// speakable text and an ordered timeline of A-roll and B-roll segments.
package script

// Role identifies whether a segment is spoken on camera or covered by footage.
type Role string

const (
	RoleARoll Role = "A_ROLL"
	RoleBRoll Role = "B_ROLL"
)

// Segment is one parsed cue line. Segments are created by ParseTimeline and
// are not modified afterwards.
type Segment struct {
	Role  Role `json:"role"`
	Start int  `json:"start_seconds"`
	End   int  `json:"end_seconds"`

	// Text is the spoken content. Always empty for B-roll.
	Text string `json:"text"`

	// RawDescription is the visual direction of a B-roll cue.
	RawDescription string `json:"raw_description,omitempty"`

	// TimeRangeKey reproduces the bracket digits as written, e.g. "0:05-0:12".
	TimeRangeKey string `json:"time_range_key"`
}

// Duration returns End - Start in seconds.
func (s Segment) Duration() int {
	return s.End - s.Start
}

// BRoll filters segments down to the B-roll ones, preserving order.
func BRoll(segments []Segment) []Segment {
	var out []Segment
	for _, s := range segments {
		if s.Role == RoleBRoll {
			out = append(out, s)
		}
	}
	return out
}
