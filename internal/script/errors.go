package script

import "fmt"

// MalformedCueError describes a cue line that carried a time range but
// could not become a segment. The parser skips such lines and reports them.
type MalformedCueError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedCueError) Error() string {
	return fmt.Sprintf("malformed cue on line %d: %s", e.Line, e.Reason)
}
