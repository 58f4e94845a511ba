// Package footage talks to the stock footage search service.
package footage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/logging"
)

const orientationLandscape = "landscape"

// APIError represents a non-2xx response from the footage service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("footage search failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and rate limiting.
// Other client errors (4xx) are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client is implemented by the HTTP client and the offline stub.
type Client interface {
	broll.Searcher
}

// HTTPClient searches the footage service over HTTP.
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
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

type searchResponse struct {
	Videos []struct {
		Image      string `json:"image"`
		Duration   int    `json:"duration"`
		VideoFiles []struct {
			Quality string `json:"quality"`
			Link    string `json:"link"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Search returns up to perPage landscape candidates for query.
func (c *HTTPClient) Search(ctx context.Context, query string, perPage int) ([]broll.Candidate, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("orientation", orientationLandscape)
	endpoint := fmt.Sprintf("%s/videos/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	c.logger.Debug("searching footage",
		"query", query,
		"per_page", perPage,
		"key", logging.SanitizeToken(c.apiKey),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode footage response: %w", err)
	}

	candidates := make([]broll.Candidate, 0, len(parsed.Videos))
	for _, v := range parsed.Videos {
		cand := broll.Candidate{PreviewImage: v.Image, Duration: v.Duration}
		for _, f := range v.VideoFiles {
			cand.Renditions = append(cand.Renditions, broll.Rendition{Quality: f.Quality, Link: f.Link})
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// StubClient is used when no footage API key is configured. It never finds
// footage, so every B-roll cue falls back to the avatar.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (s *StubClient) Search(ctx context.Context, query string, perPage int) ([]broll.Candidate, error) {
	s.logger.Debug("footage stub: search requested (no API key configured)", "query", query)
	return nil, nil
}
