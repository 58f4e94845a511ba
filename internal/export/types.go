package export

import (
	"strings"

	"github.com/supernova/supernova/internal/composition"
)

const avatarClipName = "AVATAR"

// ResolvedClip is one EDL event: a source window placed on the record
// timeline.
type ResolvedClip struct {
	Reel       string
	ClipName   string
	MediaPath  string
	StartMs    int
	EndMs      int
	RecordInMs int
}

// FromPlan maps plan instructions to EDL events in plan order. Avatar
// instructions cut their trim window out of the avatar video. Stock footage
// plays from its first frame.
func FromPlan(plan *composition.Plan) []ResolvedClip {
	if plan == nil {
		return nil
	}

	clips := make([]ResolvedClip, 0, len(plan.Instructions))
	for _, in := range plan.Instructions {
		durationMs := in.DurationSeconds * 1000
		clip := ResolvedClip{
			MediaPath:  in.Source,
			RecordInMs: in.StartSeconds * 1000,
		}

		switch in.Kind {
		case composition.KindAvatar:
			clip.Reel = "AX"
			clip.ClipName = avatarClipName
			if in.Trim != nil {
				clip.StartMs = in.Trim.Start * 1000
				clip.EndMs = in.Trim.End * 1000
			} else {
				clip.EndMs = durationMs
			}
		default:
			clip.Reel = "BL"
			clip.ClipName = clipName(in.Description)
			clip.EndMs = durationMs
		}
		clips = append(clips, clip)
	}
	return clips
}

func clipName(description string) string {
	name := SanitizeName(description, 60)
	if strings.TrimSpace(name) == "" {
		return "B-ROLL"
	}
	return name
}
