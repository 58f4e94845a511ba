// Package creator gathers personalization context for script generation:
// a creator's YouTube channel profile and trending discussions on Reddit.
package creator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/supernova/supernova/internal/scriptgen"
)

const (
	defaultMaxVideos = 20
	topVideoCount    = 5
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrInvalidChannel  = errors.New("invalid channel reference")
)

var (
	channelIDRe   = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)
	channelPathRe = regexp.MustCompile(`/channel/([a-zA-Z0-9_-]+)`)
	handlePathRe  = regexp.MustCompile(`/@([a-zA-Z0-9_-]+)`)
	customPathRe  = regexp.MustCompile(`/c/([a-zA-Z0-9_-]+)`)
	userPathRe    = regexp.MustCompile(`/user/([a-zA-Z0-9_-]+)`)
	isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
)

// ChannelRef identifies a channel either directly by ID or by a handle
// that still has to be resolved.
type ChannelRef struct {
	ID     string
	Handle string
}

// ParseChannelRef accepts a raw UC… channel ID or any common channel URL
// form. Bare words are treated as handles.
func ParseChannelRef(input string) (ChannelRef, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return ChannelRef{}, ErrInvalidChannel
	}
	if channelIDRe.MatchString(input) {
		return ChannelRef{ID: input}, nil
	}

	raw := input
	if !strings.Contains(raw, "youtube.com") {
		raw = "https://youtube.com/" + strings.TrimPrefix(raw, "/")
	} else if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("%w: %v", ErrInvalidChannel, err)
	}

	if m := channelPathRe.FindStringSubmatch(u.Path); m != nil {
		return ChannelRef{ID: m[1]}, nil
	}
	for _, re := range []*regexp.Regexp{handlePathRe, customPathRe, userPathRe} {
		if m := re.FindStringSubmatch(u.Path); m != nil {
			return ChannelRef{Handle: m[1]}, nil
		}
	}

	handle := strings.NewReplacer("@", "", "/", "").Replace(input)
	if handle == "" {
		return ChannelRef{}, ErrInvalidChannel
	}
	return ChannelRef{Handle: handle}, nil
}

// ParseISODuration converts a YouTube content duration such as "PT4M13S"
// into seconds. Unrecognized values yield zero.
func ParseISODuration(d string) int {
	m := isoDurationRe.FindStringSubmatch(d)
	if m == nil {
		return 0
	}
	total := 0
	for i, mult := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, _ := strconv.Atoi(m[i+1])
		total += n * mult
	}
	return total
}

// EngagementRate is (likes+comments)/views as a percentage rounded to two
// decimals.
func EngagementRate(views, likes, comments uint64) float64 {
	if views == 0 {
		return 0
	}
	rate := float64(likes+comments) / float64(views) * 100
	return math.Round(rate*100) / 100
}

// YouTube builds creator profiles from the YouTube Data API.
type YouTube struct {
	svc       *youtube.Service
	maxVideos int64
	logger    *slog.Logger
}

// NewYouTube creates a client authenticated with an API key. A non-empty
// endpoint overrides the API base URL.
func NewYouTube(ctx context.Context, apiKey, endpoint string, logger *slog.Logger) (*YouTube, error) {
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &YouTube{svc: svc, maxVideos: defaultMaxVideos, logger: logger}, nil
}

// Analyze resolves the channel and summarizes its recent uploads.
func (y *YouTube) Analyze(ctx context.Context, input string) (*scriptgen.CreatorProfile, error) {
	ref, err := ParseChannelRef(input)
	if err != nil {
		return nil, err
	}

	channelID := ref.ID
	if channelID == "" {
		channelID, err = y.resolveHandle(ctx, ref.Handle)
		if err != nil {
			return nil, err
		}
	}

	resp, err := y.svc.Channels.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(channelID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list channel: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}
	ch := resp.Items[0]

	profile := &scriptgen.CreatorProfile{ChannelID: ch.Id}
	if ch.Snippet != nil {
		profile.Title = ch.Snippet.Title
		profile.Description = ch.Snippet.Description
	}
	if ch.Statistics != nil {
		profile.Subscribers = ch.Statistics.SubscriberCount
		profile.TotalViews = ch.Statistics.ViewCount
		profile.VideoCount = ch.Statistics.VideoCount
	}

	if ch.ContentDetails != nil && ch.ContentDetails.RelatedPlaylists != nil && ch.ContentDetails.RelatedPlaylists.Uploads != "" {
		videos, err := y.recentVideos(ctx, ch.ContentDetails.RelatedPlaylists.Uploads)
		if err != nil {
			return nil, err
		}
		summarize(profile, videos)
	}

	y.logger.Info("creator profile built",
		"channel_id", profile.ChannelID,
		"subscribers", profile.Subscribers,
		"videos_analyzed", len(profile.TopVideos),
	)
	return profile, nil
}

func (y *YouTube) resolveHandle(ctx context.Context, handle string) (string, error) {
	resp, err := y.svc.Search.List([]string{"snippet"}).
		Q(handle).Type("channel").MaxResults(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search channel %q: %w", handle, err)
	}
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.ChannelId != "" {
			return item.Id.ChannelId, nil
		}
		if item.Snippet != nil && item.Snippet.ChannelId != "" {
			return item.Snippet.ChannelId, nil
		}
	}
	return "", fmt.Errorf("%w: @%s", ErrChannelNotFound, handle)
}

func (y *YouTube) recentVideos(ctx context.Context, playlistID string) ([]scriptgen.VideoStat, error) {
	items, err := y.svc.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(playlistID).MaxResults(y.maxVideos).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	ids := make([]string, 0, len(items.Items))
	for _, item := range items.Items {
		if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
			ids = append(ids, item.ContentDetails.VideoId)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	resp, err := y.svc.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(ids...).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	stats := make([]scriptgen.VideoStat, 0, len(resp.Items))
	for _, v := range resp.Items {
		s := scriptgen.VideoStat{ID: v.Id}
		if v.Snippet != nil {
			s.Title = v.Snippet.Title
			s.PublishedAt = v.Snippet.PublishedAt
		}
		if v.Statistics != nil {
			s.Views = v.Statistics.ViewCount
			s.Likes = v.Statistics.LikeCount
			s.Comments = v.Statistics.CommentCount
		}
		if v.ContentDetails != nil {
			s.DurationSeconds = ParseISODuration(v.ContentDetails.Duration)
		}
		s.EngagementRate = EngagementRate(s.Views, s.Likes, s.Comments)
		stats = append(stats, s)
	}
	return stats, nil
}

// summarize fills the averages and top videos of profile from videos.
func summarize(profile *scriptgen.CreatorProfile, videos []scriptgen.VideoStat) {
	if len(videos) == 0 {
		return
	}

	var views uint64
	var engagement float64
	for _, v := range videos {
		views += v.Views
		engagement += v.EngagementRate
	}
	profile.AverageViews = views / uint64(len(videos))
	profile.AverageEngagement = math.Round(engagement/float64(len(videos))*100) / 100

	top := append([]scriptgen.VideoStat(nil), videos...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Views > top[j].Views })
	if len(top) > topVideoCount {
		top = top[:topVideoCount]
	}
	profile.TopVideos = top
}
