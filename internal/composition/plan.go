// Package composition plans which source plays during each window of the
// final video and runs the (simulated) render of that plan.
package composition

import (
	"errors"

	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/script"
)

type Kind string

const (
	KindAvatar Kind = "avatar"
	KindBRoll  Kind = "broll"
)

// ErrMissingAvatarSource is returned when a plan is requested before the
// avatar video has resolved to a URL.
var ErrMissingAvatarSource = errors.New("composition: avatar source is required")

// EmptyTimelineError is returned when there are no segments to plan.
type EmptyTimelineError struct{}

func (e *EmptyTimelineError) Error() string {
	return "composition: timeline has no segments"
}

type Trim struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Instruction says which source plays during one segment window.
type Instruction struct {
	Kind            Kind   `json:"kind"`
	StartSeconds    int    `json:"start_seconds"`
	DurationSeconds int    `json:"duration_seconds"`
	Source          string `json:"source"`
	Trim            *Trim  `json:"trim,omitempty"`
	Description     string `json:"description,omitempty"`
}

// Plan is the ordered render instructions for a video.
type Plan struct {
	Instructions  []Instruction `json:"instructions"`
	TotalDuration int           `json:"total_duration_seconds"`
}

// BuildPlan emits one instruction per segment, in segment order. A-roll
// segments and B-roll segments without a matched clip play the avatar video
// trimmed to the segment window. TotalDuration is the latest segment end.
func BuildPlan(segments []script.Segment, clips []broll.Clip, avatarSource string) (*Plan, error) {
	if len(segments) == 0 {
		return nil, &EmptyTimelineError{}
	}
	if avatarSource == "" {
		return nil, ErrMissingAvatarSource
	}

	byKey := make(map[string]broll.Clip, len(clips))
	for _, c := range clips {
		if c.VideoURL == "" {
			continue
		}
		// duplicate keys: first match wins
		if _, ok := byKey[c.TimeRangeKey]; !ok {
			byKey[c.TimeRangeKey] = c
		}
	}

	plan := &Plan{Instructions: make([]Instruction, 0, len(segments))}
	for _, seg := range segments {
		if seg.End > plan.TotalDuration {
			plan.TotalDuration = seg.End
		}

		if seg.Role == script.RoleBRoll {
			if clip, ok := byKey[seg.TimeRangeKey]; ok {
				plan.Instructions = append(plan.Instructions, Instruction{
					Kind:            KindBRoll,
					StartSeconds:    seg.Start,
					DurationSeconds: seg.Duration(),
					Source:          clip.VideoURL,
					Description:     clip.Description,
				})
				continue
			}
		}

		plan.Instructions = append(plan.Instructions, avatarInstruction(seg, avatarSource))
	}

	return plan, nil
}

func avatarInstruction(seg script.Segment, source string) Instruction {
	return Instruction{
		Kind:            KindAvatar,
		StartSeconds:    seg.Start,
		DurationSeconds: seg.Duration(),
		Source:          source,
		Trim:            &Trim{Start: seg.Start, End: seg.End},
	}
}

// BRollCount returns how many instructions play stock footage.
func (p *Plan) BRollCount() int {
	n := 0
	for _, in := range p.Instructions {
		if in.Kind == KindBRoll {
			n++
		}
	}
	return n
}
