package avatar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PlaceholderVideoURL is what the stub client resolves every render to.
const PlaceholderVideoURL = "/placeholder.svg?width=360&height=640&text=Avatar+Video+Placeholder"

// StubClient is used when no avatar API key is configured. Renders complete
// on the first status check with a placeholder video.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (s *StubClient) Generate(ctx context.Context, avatarID, voiceID, script string) (string, error) {
	id := "stub-" + uuid.NewString()
	s.logger.Info("avatar stub: render requested (no API key configured)", "video_id", id, "avatar_id", avatarID)
	return id, nil
}

func (s *StubClient) Status(ctx context.Context, videoID string) (*VideoStatus, error) {
	return &VideoStatus{Status: StatusCompleted, VideoURL: PlaceholderVideoURL}, nil
}

func (s *StubClient) ListAvatars(ctx context.Context) ([]Avatar, error) {
	return []Avatar{{ID: "stub_avatar", Name: "Placeholder Presenter"}}, nil
}

func (s *StubClient) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{{ID: "stub_voice", Name: "Placeholder Voice", Language: "English"}}, nil
}

// UploadAvatar discards the video and returns a mock avatar id.
func (s *StubClient) UploadAvatar(ctx context.Context, filename string, video io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, video); err != nil {
		return "", fmt.Errorf("read video: %w", err)
	}
	id := fmt.Sprintf("mock_avatar_%d", time.Now().UnixMilli())
	s.logger.Info("avatar stub: upload accepted (no API key configured)", "avatar_id", id, "filename", filename)
	return id, nil
}

func (s *StubClient) AvatarStatus(ctx context.Context, avatarID string) (string, error) {
	return AvatarStatusReady, nil
}
