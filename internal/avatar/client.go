// Package avatar drives the talking-avatar video service. It submits
// scripts and polls the renders until they resolve, lists the avatars and
// voices a creator can pick from, and trains custom avatars from an
// uploaded video.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Remote render statuses reported by the service.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusWaiting    = "waiting"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	aspectPortrait  = "9:16"
	backgroundColor = "#ffffff"
)

// APIError represents a non-2xx response from the avatar service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("avatar service request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and rate limiting.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// VideoStatus is one status report for a submitted render.
type VideoStatus struct {
	Status       string `json:"status"`
	VideoURL     string `json:"video_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

type Avatar struct {
	ID              string `json:"avatar_id"`
	Name            string `json:"avatar_name"`
	Gender          string `json:"gender,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
	PreviewVideoURL string `json:"preview_video_url,omitempty"`
}

type Voice struct {
	ID           string `json:"voice_id"`
	Name         string `json:"name"`
	Language     string `json:"language,omitempty"`
	Gender       string `json:"gender,omitempty"`
	PreviewAudio string `json:"preview_audio,omitempty"`
}

// Client is implemented by the HTTP client and the offline stub.
type Client interface {
	Generate(ctx context.Context, avatarID, voiceID, script string) (string, error)
	Status(ctx context.Context, videoID string) (*VideoStatus, error)
	ListAvatars(ctx context.Context) ([]Avatar, error)
	ListVoices(ctx context.Context) ([]Voice, error)
}

// HTTPClient talks to the avatar service REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, apiKey string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type generateRequest struct {
	VideoInputs []videoInput `json:"video_inputs"`
	AspectRatio string       `json:"aspect_ratio"`
	Test        bool         `json:"test"`
}

type videoInput struct {
	Character struct {
		Type        string `json:"type"`
		AvatarID    string `json:"avatar_id"`
		AvatarStyle string `json:"avatar_style"`
	} `json:"character"`
	Voice struct {
		Type      string `json:"type"`
		InputText string `json:"input_text"`
		VoiceID   string `json:"voice_id"`
	} `json:"voice"`
	Background struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"background"`
}

// Generate submits a portrait render of script spoken by the given avatar
// and voice, and returns the service's video id.
func (c *HTTPClient) Generate(ctx context.Context, avatarID, voiceID, script string) (string, error) {
	var in videoInput
	in.Character.Type = "avatar"
	in.Character.AvatarID = avatarID
	in.Character.AvatarStyle = "normal"
	in.Voice.Type = "text"
	in.Voice.InputText = script
	in.Voice.VoiceID = voiceID
	in.Background.Type = "color"
	in.Background.Value = backgroundColor

	payload := generateRequest{
		VideoInputs: []videoInput{in},
		AspectRatio: aspectPortrait,
	}

	var resp struct {
		Data struct {
			VideoID string `json:"video_id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/video/generate", payload, &resp); err != nil {
		return "", err
	}
	if resp.Data.VideoID == "" {
		return "", fmt.Errorf("avatar service returned no video id")
	}

	c.logger.Info("avatar render submitted",
		"video_id", resp.Data.VideoID,
		"avatar_id", avatarID,
		"script_chars", len(script),
	)
	return resp.Data.VideoID, nil
}

// Status fetches the current state of a submitted render.
func (c *HTTPClient) Status(ctx context.Context, videoID string) (*VideoStatus, error) {
	var resp struct {
		Data struct {
			Status       string          `json:"status"`
			VideoURL     string          `json:"video_url"`
			ThumbnailURL string          `json:"thumbnail_url"`
			Error        json.RawMessage `json:"error"`
		} `json:"data"`
	}
	path := "/v1/video_status.get?video_id=" + url.QueryEscape(videoID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &VideoStatus{
		Status:       resp.Data.Status,
		VideoURL:     resp.Data.VideoURL,
		ThumbnailURL: resp.Data.ThumbnailURL,
		Error:        errorText(resp.Data.Error),
	}, nil
}

func (c *HTTPClient) ListAvatars(ctx context.Context) ([]Avatar, error) {
	var resp struct {
		Data struct {
			Avatars []Avatar `json:"avatars"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/avatars", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Avatars, nil
}

func (c *HTTPClient) ListVoices(ctx context.Context) ([]Voice, error) {
	var resp struct {
		Data struct {
			Voices []Voice `json:"voices"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/voices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Voices, nil
}

// UploadAvatar sends a training video for a custom avatar and returns the
// id the service assigned to it.
func (c *HTTPClient) UploadAvatar(ctx context.Context, filename string, video io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	size, err := io.Copy(part, video)
	if err != nil {
		return "", fmt.Errorf("read video: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	var resp struct {
		Data struct {
			AvatarID string `json:"avatar_id"`
		} `json:"data"`
	}
	if err := c.send(ctx, http.MethodPost, "/v1/avatar.upload", &buf, mw.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	if resp.Data.AvatarID == "" {
		return "", fmt.Errorf("avatar service returned no avatar id")
	}

	c.logger.Info("avatar video uploaded", "avatar_id", resp.Data.AvatarID, "bytes", size)
	return resp.Data.AvatarID, nil
}

// AvatarStatus reports the training state of an uploaded avatar.
func (c *HTTPClient) AvatarStatus(ctx context.Context, avatarID string) (string, error) {
	var resp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	path := "/v1/avatar.get?avatar_id=" + url.QueryEscape(avatarID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Data.Status, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	if body == nil {
		return c.send(ctx, method, path, nil, "", out)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.send(ctx, method, path, bytes.NewReader(data), "application/json", out)
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 4096)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorText flattens the service's error field, which is either a string
// or an object with a message.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && (obj.Message != "" || obj.Detail != "") {
		if obj.Detail != "" {
			return obj.Message + ": " + obj.Detail
		}
		return obj.Message
	}
	return string(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
