package composition

import (
	"errors"
	"testing"

	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/script"
)

func seg(role script.Role, start, end int, key string) script.Segment {
	s := script.Segment{Role: role, Start: start, End: end, TimeRangeKey: key}
	if role == script.RoleARoll {
		s.Text = "spoken"
	} else {
		s.RawDescription = "visual"
	}
	return s
}

func TestBuildPlan_EmptyTimeline(t *testing.T) {
	plan, err := BuildPlan(nil, nil, "avatar-url")
	if plan != nil {
		t.Errorf("expected nil plan, got %+v", plan)
	}
	var emptyErr *EmptyTimelineError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected *EmptyTimelineError, got %v", err)
	}
}

func TestBuildPlan_MissingAvatarSource(t *testing.T) {
	_, err := BuildPlan([]script.Segment{seg(script.RoleARoll, 0, 5, "0:00-0:05")}, nil, "")
	if !errors.Is(err, ErrMissingAvatarSource) {
		t.Fatalf("expected ErrMissingAvatarSource, got %v", err)
	}
}

func TestBuildPlan_FallbackToAvatar(t *testing.T) {
	segments := []script.Segment{
		seg(script.RoleARoll, 0, 5, "0:00-0:05"),
		seg(script.RoleBRoll, 5, 12, "0:05-0:12"),
		seg(script.RoleBRoll, 12, 16, "0:12-0:16"),
	}
	clips := []broll.Clip{
		{TimeRangeKey: "0:12-0:16", VideoURL: "https://footage/city.mp4", Description: "city"},
	}

	plan, err := BuildPlan(segments, clips, "https://avatar/video.mp4")
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if len(plan.Instructions) != 3 {
		t.Fatalf("instructions = %d, want 3", len(plan.Instructions))
	}

	fallback := plan.Instructions[1]
	if fallback.Kind != KindAvatar {
		t.Errorf("unmatched b-roll kind = %s, want avatar", fallback.Kind)
	}
	if fallback.Source != "https://avatar/video.mp4" {
		t.Errorf("fallback source = %q", fallback.Source)
	}
	if fallback.StartSeconds != 5 || fallback.DurationSeconds != 7 {
		t.Errorf("fallback window = %d+%d, want 5+7", fallback.StartSeconds, fallback.DurationSeconds)
	}
	if fallback.Trim == nil || fallback.Trim.Start != 5 || fallback.Trim.End != 12 {
		t.Errorf("fallback trim = %+v, want {5 12}", fallback.Trim)
	}

	matched := plan.Instructions[2]
	if matched.Kind != KindBRoll || matched.Source != "https://footage/city.mp4" {
		t.Errorf("matched = %+v, want broll city clip", matched)
	}
	if matched.Trim != nil {
		t.Errorf("broll instruction should carry no trim, got %+v", matched.Trim)
	}
	if matched.Description != "city" {
		t.Errorf("description = %q, want city", matched.Description)
	}

	for i, in := range plan.Instructions {
		if in.Source == "" {
			t.Errorf("instruction %d has empty source", i)
		}
	}
	if plan.BRollCount() != 1 {
		t.Errorf("BRollCount() = %d, want 1", plan.BRollCount())
	}
}

func TestBuildPlan_TotalDurationIsMaxEnd(t *testing.T) {
	segments := []script.Segment{
		seg(script.RoleARoll, 20, 30, "0:20-0:30"),
		seg(script.RoleARoll, 0, 5, "0:00-0:05"),
		seg(script.RoleBRoll, 3, 12, "0:03-0:12"),
	}

	plan, err := BuildPlan(segments, nil, "avatar")
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if plan.TotalDuration != 30 {
		t.Errorf("TotalDuration = %d, want 30", plan.TotalDuration)
	}
	if plan.Instructions[0].StartSeconds != 20 {
		t.Errorf("plan must keep segment order, first start = %d", plan.Instructions[0].StartSeconds)
	}
}

func TestBuildPlan_DuplicateKeyFirstWins(t *testing.T) {
	segments := []script.Segment{seg(script.RoleBRoll, 0, 4, "0:00-0:04")}
	clips := []broll.Clip{
		{TimeRangeKey: "0:00-0:04", VideoURL: "first.mp4"},
		{TimeRangeKey: "0:00-0:04", VideoURL: "second.mp4"},
	}

	plan, err := BuildPlan(segments, clips, "avatar")
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if plan.Instructions[0].Source != "first.mp4" {
		t.Errorf("source = %q, want first.mp4", plan.Instructions[0].Source)
	}
}

func TestBuildPlan_ClipWithoutURLFallsBack(t *testing.T) {
	segments := []script.Segment{seg(script.RoleBRoll, 0, 4, "0:00-0:04")}
	clips := []broll.Clip{{TimeRangeKey: "0:00-0:04", VideoURL: ""}}

	plan, err := BuildPlan(segments, clips, "avatar")
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if plan.Instructions[0].Kind != KindAvatar {
		t.Errorf("kind = %s, want avatar", plan.Instructions[0].Kind)
	}
}

func TestBuildPlan_OnlyBRoll(t *testing.T) {
	segments := []script.Segment{
		seg(script.RoleBRoll, 0, 4, "0:00-0:04"),
		seg(script.RoleBRoll, 2, 6, "0:02-0:06"),
	}
	plan, err := BuildPlan(segments, nil, "avatar")
	if err != nil {
		t.Fatalf("overlapping b-roll-only timeline must plan, got %v", err)
	}
	if len(plan.Instructions) != 2 || plan.TotalDuration != 6 {
		t.Errorf("plan = %d instructions / %ds, want 2 / 6s", len(plan.Instructions), plan.TotalDuration)
	}
}
