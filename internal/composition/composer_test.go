package composition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/script"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPlan() *Plan {
	return &Plan{
		Instructions: []Instruction{
			{Kind: KindAvatar, StartSeconds: 0, DurationSeconds: 5, Source: "a", Trim: &Trim{0, 5}},
			{Kind: KindBRoll, StartSeconds: 5, DurationSeconds: 7, Source: "b"},
		},
		TotalDuration: 12,
	}
}

func TestComposer_ProgressSequence(t *testing.T) {
	c := NewComposer(0, testLogger())
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }

	var percents []int
	var stages []string
	result, err := c.Compose(context.Background(), testPlan(), func(p int, s string) {
		percents = append(percents, p)
		stages = append(stages, s)
	})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	wantPercents := []int{17, 33, 50, 67, 83, 100}
	if len(percents) != len(wantPercents) {
		t.Fatalf("progress calls = %d, want %d", len(percents), len(wantPercents))
	}
	for i := range wantPercents {
		if percents[i] != wantPercents[i] {
			t.Errorf("percent[%d] = %d, want %d", i, percents[i], wantPercents[i])
		}
		if stages[i] != Stages[i] {
			t.Errorf("stage[%d] = %q, want %q", i, stages[i], Stages[i])
		}
	}

	if result.VideoURL != "/composed_video_1700000000000.mp4" {
		t.Errorf("video url = %q", result.VideoURL)
	}
	if result.DurationSeconds != 12 || result.SegmentCount != 2 {
		t.Errorf("result = %+v, want duration 12 and 2 segments", result)
	}
}

func TestComposer_CancelBetweenStages(t *testing.T) {
	c := NewComposer(0, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := c.Compose(ctx, testPlan(), func(p int, s string) {
		calls++
		if calls == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 2 {
		t.Errorf("progress calls = %d, want 2 (cancel takes effect at next stage)", calls)
	}
}

func TestComposer_RejectsEmptyPlan(t *testing.T) {
	_, err := NewComposer(0, testLogger()).Compose(context.Background(), &Plan{}, nil)
	var emptyErr *EmptyTimelineError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected *EmptyTimelineError, got %v", err)
	}
}

type staticSearcher map[string][]broll.Candidate

func (s staticSearcher) Search(ctx context.Context, query string, perPage int) ([]broll.Candidate, error) {
	return s[query], nil
}

func TestEndToEnd_ScriptToComposedVideo(t *testing.T) {
	raw := `[0:00-0:05] A-ROLL: Hey everyone, welcome back!
[0:05-0:12] B-ROLL: coding on a laptop in a startup office
[0:12-0:20] A-ROLL: Let's dive into today's topic.`

	segments, skipped := script.ParseTimeline(raw)
	if len(skipped) != 0 || len(segments) != 3 {
		t.Fatalf("segments = %d skipped = %d, want 3 / 0", len(segments), len(skipped))
	}

	keywords := broll.DefaultRules().ExtractKeywords(segments)
	wantKeyword := broll.Keyword{
		TimeRangeKey: "0:05-0:12",
		Keyword:      "programming code computer",
		Description:  "coding on a laptop in a startup office",
	}
	if len(keywords) != 1 || keywords[0] != wantKeyword {
		t.Fatalf("keywords = %+v, want [%+v]", keywords, wantKeyword)
	}

	searcher := staticSearcher{
		"programming code computer": {{
			PreviewImage: "thumb.jpg",
			Duration:     15,
			Renditions: []broll.Rendition{
				{Quality: "sd", Link: "https://footage/code-sd.mp4"},
				{Quality: "hd", Link: "https://footage/code-hd.mp4"},
			},
		}},
	}
	clips := broll.NewMatcher(searcher, 2, testLogger()).Match(context.Background(), keywords)

	plan, err := BuildPlan(segments, clips, "https://avatar/final.mp4")
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	if plan.TotalDuration != 20 {
		t.Errorf("TotalDuration = %d, want 20", plan.TotalDuration)
	}
	second := plan.Instructions[1]
	if second.Kind != KindBRoll || second.Source != "https://footage/code-hd.mp4" {
		t.Errorf("second instruction = %+v, want broll hd clip", second)
	}

	speech := script.NormalizeForSpeech("[0:00-0:05] A-ROLL: Hey everyone, welcome back!\n[0:12-0:20] A-ROLL: Let's dive into today's topic.")
	if speech != "Hey everyone, welcome back! Let's dive into today's topic." {
		t.Errorf("speech = %q", speech)
	}

	result, err := NewComposer(0, testLogger()).Compose(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if result.DurationSeconds != 20 || result.SegmentCount != 3 {
		t.Errorf("result = %+v", result)
	}
	if !strings.HasPrefix(result.VideoURL, "/composed_video_") {
		t.Errorf("video url = %q", result.VideoURL)
	}
}
