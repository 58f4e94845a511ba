package composition

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Stages are the render steps, run strictly in order.
var Stages = []string{
	"Downloading B-roll footage...",
	"Extracting avatar segments...",
	"Synchronizing audio tracks...",
	"Compositing video layers...",
	"Rendering final video...",
	"Optimizing for mobile...",
}

// ProgressFunc receives the percent complete (0-100) and the stage name.
type ProgressFunc func(percent int, stage string)

// Result describes the rendered video.
type Result struct {
	VideoURL        string `json:"video_url"`
	DurationSeconds int    `json:"duration_seconds"`
	SegmentCount    int    `json:"segment_count"`
}

// Composer walks a plan through the render stages. No media is encoded;
// each stage only waits StageDelay and reports progress.
type Composer struct {
	stageDelay time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewComposer(stageDelay time.Duration, logger *slog.Logger) *Composer {
	return &Composer{
		stageDelay: stageDelay,
		now:        time.Now,
		logger:     logger,
	}
}

// Compose runs every stage in order. Cancelling ctx stops the render at the
// next stage boundary; a stage in progress always finishes.
func (c *Composer) Compose(ctx context.Context, plan *Plan, emit ProgressFunc) (*Result, error) {
	if plan == nil || len(plan.Instructions) == 0 {
		return nil, &EmptyTimelineError{}
	}

	for i, stage := range Stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("compose cancelled before %q: %w", stage, err)
		}

		if c.stageDelay > 0 {
			time.Sleep(c.stageDelay)
		}

		percent := StagePercent(i)
		c.logger.Debug("compose stage", "stage", stage, "percent", percent)
		if emit != nil {
			emit(percent, stage)
		}
	}

	return &Result{
		VideoURL:        fmt.Sprintf("/composed_video_%d.mp4", c.now().UnixMilli()),
		DurationSeconds: plan.TotalDuration,
		SegmentCount:    len(plan.Instructions),
	}, nil
}

// StagePercent is the progress reported after stage index i completes.
func StagePercent(i int) int {
	return int(math.Round(100 * float64(i+1) / float64(len(Stages))))
}
