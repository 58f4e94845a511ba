package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Training states of an uploaded avatar.
const (
	AvatarStatusProcessing = "processing"
	AvatarStatusReady      = "ready"
	AvatarStatusFailed     = "failed"
)

// Uploader creates custom avatars from a training video. The HTTP client
// and the offline stub both implement it.
type Uploader interface {
	UploadAvatar(ctx context.Context, filename string, video io.Reader) (string, error)
	AvatarStatus(ctx context.Context, avatarID string) (string, error)
}

// AvatarCreationFailure is returned when the service rejects an uploaded
// avatar during training.
type AvatarCreationFailure struct {
	AvatarID string
	Reason   string
}

func (e *AvatarCreationFailure) Error() string {
	return fmt.Sprintf("avatar %s creation failed: %s", e.AvatarID, e.Reason)
}

// UploadOutcome is the result of an upload. Ready is false when training
// was still running once the poll budget ran out; the id is usable either
// way.
type UploadOutcome struct {
	AvatarID string
	Ready    bool
}

// AvatarUploader uploads a video and waits for the avatar to finish
// training.
type AvatarUploader struct {
	uploader Uploader
	interval time.Duration
	maxPolls int
	logger   *slog.Logger
}

func NewAvatarUploader(uploader Uploader, interval time.Duration, maxPolls int, logger *slog.Logger) *AvatarUploader {
	if interval < 0 {
		interval = DefaultPollInterval
	}
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	return &AvatarUploader{
		uploader: uploader,
		interval: interval,
		maxPolls: maxPolls,
		logger:   logger,
	}
}

// Upload sends the video and polls the new avatar until it is ready, fails,
// or the poll budget runs out.
func (u *AvatarUploader) Upload(ctx context.Context, filename string, video io.Reader) (*UploadOutcome, error) {
	avatarID, err := u.uploader.UploadAvatar(ctx, filename, video)
	if err != nil {
		return nil, fmt.Errorf("upload avatar video: %w", err)
	}
	ready, err := u.AwaitAvatar(ctx, avatarID)
	if err != nil {
		return nil, err
	}
	return &UploadOutcome{AvatarID: avatarID, Ready: ready}, nil
}

// AwaitAvatar polls avatarID and reports whether training finished within
// the poll budget. Status errors other than non-retryable API errors are
// logged and polling continues.
func (u *AvatarUploader) AwaitAvatar(ctx context.Context, avatarID string) (bool, error) {
	for attempt := 1; attempt <= u.maxPolls; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, u.interval); err != nil {
				return false, err
			}
		}

		status, err := u.uploader.AvatarStatus(ctx, avatarID)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
				return false, &AvatarCreationFailure{AvatarID: avatarID, Reason: err.Error()}
			}
			u.logger.Warn("avatar training check failed, will retry",
				"avatar_id", avatarID, "attempt", attempt, "error", err)
			continue
		}

		switch status {
		case AvatarStatusReady:
			u.logger.Info("avatar ready", "avatar_id", avatarID, "attempts", attempt)
			return true, nil
		case AvatarStatusFailed:
			return false, &AvatarCreationFailure{AvatarID: avatarID, Reason: "service reported failure"}
		}
	}

	u.logger.Info("avatar still training after poll budget", "avatar_id", avatarID, "polls", u.maxPolls)
	return false, nil
}
