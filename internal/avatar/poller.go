package avatar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// State is a step of a render's lifecycle as seen by the poller.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 60
)

// ErrAvatarTimeout is returned when the render did not finish within the
// poll budget.
var ErrAvatarTimeout = errors.New("avatar render timed out")

// AvatarRenderFailure is returned when the service reports the render failed
// or completed without a usable video.
type AvatarRenderFailure struct {
	VideoID string
	Reason  string
}

func (e *AvatarRenderFailure) Error() string {
	return fmt.Sprintf("avatar render %s failed: %s", e.VideoID, e.Reason)
}

// Transition is reported to the caller each time the poller changes state
// or observes a new remote status.
type Transition struct {
	State        State
	VideoID      string
	Attempt      int
	RemoteStatus string
}

// Poller submits a render and waits for it to resolve.
type Poller struct {
	client   Client
	interval time.Duration
	maxPolls int
	logger   *slog.Logger
}

func NewPoller(client Client, interval time.Duration, maxPolls int, logger *slog.Logger) *Poller {
	if interval < 0 {
		interval = DefaultPollInterval
	}
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	return &Poller{
		client:   client,
		interval: interval,
		maxPolls: maxPolls,
		logger:   logger,
	}
}

// Outcome is a resolved render.
type Outcome struct {
	VideoID  string
	VideoURL string
}

// Render submits script and blocks until the render completes, fails, times
// out, or ctx is cancelled.
func (p *Poller) Render(ctx context.Context, avatarID, voiceID, script string, onTransition func(Transition)) (*Outcome, error) {
	videoID, err := p.client.Generate(ctx, avatarID, voiceID, script)
	if err != nil {
		return nil, fmt.Errorf("submit avatar render: %w", err)
	}
	url, err := p.Await(ctx, videoID, onTransition)
	if err != nil {
		return &Outcome{VideoID: videoID}, err
	}
	return &Outcome{VideoID: videoID, VideoURL: url}, nil
}

// Await polls videoID until it resolves and returns the video URL.
//
// Transitions: submitted -> polling -> completed | failed | timed_out.
// Retryable status errors count as an attempt and polling continues; other
// errors end the wait.
func (p *Poller) Await(ctx context.Context, videoID string, onTransition func(Transition)) (string, error) {
	emit := func(tr Transition) {
		tr.VideoID = videoID
		if onTransition != nil {
			onTransition(tr)
		}
	}

	emit(Transition{State: StateSubmitted})

	for attempt := 1; attempt <= p.maxPolls; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, p.interval); err != nil {
				return "", err
			}
		}

		status, err := p.client.Status(ctx, videoID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
				emit(Transition{State: StateFailed, Attempt: attempt})
				return "", &AvatarRenderFailure{VideoID: videoID, Reason: err.Error()}
			}
			p.logger.Warn("avatar status check failed, will retry",
				"video_id", videoID, "attempt", attempt, "error", err)
			continue
		}

		switch status.Status {
		case StatusCompleted:
			if status.VideoURL == "" {
				emit(Transition{State: StateFailed, Attempt: attempt, RemoteStatus: status.Status})
				return "", &AvatarRenderFailure{VideoID: videoID, Reason: "completed without a video url"}
			}
			emit(Transition{State: StateCompleted, Attempt: attempt, RemoteStatus: status.Status})
			return status.VideoURL, nil
		case StatusFailed:
			reason := status.Error
			if reason == "" {
				reason = "service reported failure"
			}
			emit(Transition{State: StateFailed, Attempt: attempt, RemoteStatus: status.Status})
			return "", &AvatarRenderFailure{VideoID: videoID, Reason: reason}
		default:
			emit(Transition{State: StatePolling, Attempt: attempt, RemoteStatus: status.Status})
		}
	}

	emit(Transition{State: StateTimedOut, Attempt: p.maxPolls})
	return "", fmt.Errorf("%w after %d polls", ErrAvatarTimeout, p.maxPolls)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
