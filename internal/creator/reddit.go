package creator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"github.com/supernova/supernova/internal/scriptgen"
)

const (
	defaultTrendLimit = 10
	maxTrendLimit     = 50
)

// Reddit finds trending discussions about an idea through Reddit's public
// read-only search.
type Reddit struct {
	client    *reddit.Client
	subreddit string
	logger    *slog.Logger
}

// NewReddit creates a read-only client. A non-empty baseURL overrides the
// Reddit host. An empty subreddit searches all of Reddit.
func NewReddit(baseURL, subreddit string, logger *slog.Logger) (*Reddit, error) {
	var opts []reddit.Opt
	if baseURL != "" {
		opts = append(opts, reddit.WithBaseURL(baseURL))
	}
	client, err := reddit.NewReadonlyClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &Reddit{client: client, subreddit: subreddit, logger: logger}, nil
}

// Trends returns up to limit posts about query from the past week, highest
// score first.
func (r *Reddit) Trends(ctx context.Context, query string, limit int) ([]scriptgen.TrendSignal, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultTrendLimit
	}
	if limit > maxTrendLimit {
		limit = maxTrendLimit
	}

	opts := &reddit.ListPostSearchOptions{
		ListPostOptions: reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: limit},
			Time:        "week",
		},
		Sort: "top",
	}
	posts, _, err := r.client.Subreddit.SearchPosts(ctx, query, r.subreddit, opts)
	if err != nil {
		return nil, fmt.Errorf("reddit search: %w", err)
	}

	signals := make([]scriptgen.TrendSignal, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		link := p.URL
		if p.Permalink != "" {
			link = "https://www.reddit.com" + p.Permalink
		}
		signals = append(signals, scriptgen.TrendSignal{
			Source:    "reddit",
			Community: p.SubredditName,
			Title:     p.Title,
			Score:     p.Score,
			Comments:  p.NumberOfComments,
			URL:       link,
		})
	}
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].Score > signals[j].Score })
	if len(signals) > limit {
		signals = signals[:limit]
	}

	r.logger.Debug("reddit trends fetched", "query", query, "count", len(signals))
	return signals, nil
}
