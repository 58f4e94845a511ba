package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/supernova/supernova/internal/avatar"
	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/composition"
	"github.com/supernova/supernova/internal/logging"
	"github.com/supernova/supernova/internal/progress"
	"github.com/supernova/supernova/internal/script"
)

// Progress budget of a render.
const (
	progressAvatarSubmitted = 5
	progressAvatarPolling   = 10
	progressAvatarMax       = 35
	progressAvatarDone      = 40
	progressFootageSearch   = 45
	progressFootageDone     = 60
	progressComposeSpan     = 40
)

// ErrNoSpokenContent fails a render whose A-roll normalizes to nothing.
var ErrNoSpokenContent = errors.New("no spoken content")

// Pipeline holds the stages a render passes through.
type Pipeline struct {
	Poller   *avatar.Poller
	Rules    *broll.RuleTable
	Matcher  *broll.Matcher
	Composer *composition.Composer
}

type Runner struct {
	repo         Repository
	pipeline     Pipeline
	hub          *progress.Hub
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
	active       atomic.Int32
}

func NewRunner(repo Repository, pipeline Pipeline, hub *progress.Hub, pollInterval time.Duration, logger *slog.Logger) *Runner {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Runner{
		repo:         repo,
		pipeline:     pipeline,
		hub:          hub,
		logger:       logging.WithComponent(logger, "runner"),
		pollInterval: pollInterval,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("render runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("render runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextRender(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("render runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("render runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// ActiveRenders is the number of renders currently being processed.
func (r *Runner) ActiveRenders() int {
	return int(r.active.Load())
}

// processNextRender runs the oldest pending render, if any. It reports
// whether a render was picked up.
func (r *Runner) processNextRender(ctx context.Context) bool {
	renders, err := r.repo.ListPendingRenders(ctx)
	if err != nil {
		r.logger.Error("failed to list pending renders", "error", err)
		return false
	}
	if len(renders) == 0 {
		return false
	}

	r.active.Add(1)
	defer r.active.Add(-1)

	rd := renders[0]
	r.process(ctx, rd)
	return true
}

func (r *Runner) process(ctx context.Context, rd *Render) {
	log := logging.WithProjectID(logging.WithRenderID(r.logger, rd.ID), rd.ProjectID)
	log.Info("processing render", "avatar_id", rd.AvatarID)
	started := time.Now()

	project, err := r.repo.GetProject(ctx, rd.ProjectID)
	if err != nil || project == nil {
		r.fail(ctx, rd, "project not found")
		return
	}

	if err := r.repo.UpdateRenderStatus(ctx, rd.ID, RenderStatusRunning, ""); err != nil {
		log.Error("failed to mark render running", "error", err)
		// a render left pending would be picked up again on every tick
		r.fail(ctx, rd, fmt.Sprintf("start render: %v", err))
		return
	}
	rd.Status = RenderStatusRunning

	spoken := script.NormalizeForSpeech(project.ARollScript)
	if spoken == "" {
		r.fail(ctx, rd, ErrNoSpokenContent.Error())
		return
	}

	r.advance(ctx, rd, StageAvatarSubmit, 0)
	outcome, err := r.pipeline.Poller.Render(ctx, rd.AvatarID, rd.VoiceID, spoken, func(tr avatar.Transition) {
		switch tr.State {
		case avatar.StateSubmitted:
			if err := r.repo.UpdateRenderAvatar(ctx, rd.ID, tr.VideoID, ""); err != nil {
				log.Warn("failed to store avatar video id", "error", err)
			}
			rd.AvatarVideoID = tr.VideoID
			r.advance(ctx, rd, StageAvatarWait, progressAvatarSubmitted)
		case avatar.StatePolling:
			r.advance(ctx, rd, StageAvatarWait, min(progressAvatarPolling+tr.Attempt, progressAvatarMax))
		}
	})
	if err != nil {
		log.Warn("avatar render failed", "error", err)
		r.fail(ctx, rd, err.Error())
		return
	}
	rd.AvatarURL = outcome.VideoURL
	if err := r.repo.UpdateRenderAvatar(ctx, rd.ID, outcome.VideoID, outcome.VideoURL); err != nil {
		log.Warn("failed to store avatar url", "error", err)
	}
	r.advance(ctx, rd, StageAvatarWait, progressAvatarDone)

	segments, skipped := script.ParseTimeline(project.BRollScript)
	if len(segments) == 0 {
		log.Info("b-roll script has no cues, using a-roll timeline")
		segments, skipped = script.ParseTimeline(project.ARollScript)
	}
	for _, cueErr := range skipped {
		log.Warn("skipped timeline cue", "error", cueErr)
	}

	r.advance(ctx, rd, StageFootageSearch, progressFootageSearch)
	keywords := r.pipeline.Rules.ExtractKeywords(segments)
	clips := r.pipeline.Matcher.Match(ctx, keywords)
	log.Info("footage matched", "keywords", len(keywords), "clips", len(clips))

	r.advance(ctx, rd, StagePlanning, progressFootageDone)
	plan, err := composition.BuildPlan(segments, clips, outcome.VideoURL)
	if err != nil {
		r.fail(ctx, rd, err.Error())
		return
	}

	result, err := r.pipeline.Composer.Compose(ctx, plan, func(percent int, stage string) {
		r.advance(ctx, rd, stage, progressFootageDone+percent*progressComposeSpan/100)
	})
	if err != nil {
		r.fail(ctx, rd, err.Error())
		return
	}

	rd.Status = RenderStatusCompleted
	rd.Stage = StageDone
	rd.Progress = 100
	rd.VideoURL = result.VideoURL
	rd.DurationSeconds = result.DurationSeconds
	rd.SegmentCount = result.SegmentCount
	rd.Plan = plan
	if err := r.repo.CompleteRender(context.WithoutCancel(ctx), rd); err != nil {
		log.Error("failed to store render result", "error", err)
		r.fail(ctx, rd, fmt.Sprintf("store result: %v", err))
		return
	}
	r.publish(rd, "")

	log.Info("render completed",
		"video_url", result.VideoURL,
		"segments", result.SegmentCount,
		"broll_clips", plan.BRollCount(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
}

// advance records a stage transition and publishes it.
func (r *Runner) advance(ctx context.Context, rd *Render, stage string, percent int) {
	rd.Stage = stage
	rd.Progress = percent
	if err := r.repo.UpdateRenderProgress(ctx, rd.ID, stage, percent); err != nil {
		r.logger.Warn("failed to update render progress", "render_id", rd.ID, "error", err)
	}
	r.publish(rd, "")
}

// fail marks the render failed. The write outlives ctx so a shutdown still
// records why the render stopped.
func (r *Runner) fail(ctx context.Context, rd *Render, reason string) {
	rd.Status = RenderStatusFailed
	rd.Error = reason
	if err := r.repo.UpdateRenderStatus(context.WithoutCancel(ctx), rd.ID, RenderStatusFailed, reason); err != nil {
		r.logger.Error("failed to mark render failed", "render_id", rd.ID, "error", err)
	}
	r.publish(rd, reason)
	r.logger.Warn("render failed", "render_id", rd.ID, "reason", reason)
}

func (r *Runner) publish(rd *Render, errMsg string) {
	if r.hub == nil {
		return
	}
	r.hub.Publish(progress.Event{
		RenderID: rd.ID,
		Percent:  rd.Progress,
		Stage:    rd.Stage,
		Status:   rd.Status,
		Error:    errMsg,
	})
}
