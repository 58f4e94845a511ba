package broll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	// CandidatesPerKeyword is how many results each footage query asks for.
	CandidatesPerKeyword = 3

	DefaultConcurrency     = 4
	DefaultDurationSeconds = 10

	qualityHD = "hd"
)

// Rendition is one encoded variant of a stock video.
type Rendition struct {
	Quality string `json:"quality"`
	Link    string `json:"link"`
}

// Candidate is a stock video returned by the footage service.
type Candidate struct {
	PreviewImage string      `json:"preview_image"`
	Duration     int         `json:"duration"`
	Renditions   []Rendition `json:"renditions"`
}

// Clip is the footage chosen for one B-roll time range.
type Clip struct {
	TimeRangeKey    string `json:"time_range_key"`
	Keyword         string `json:"keyword"`
	Description     string `json:"description"`
	VideoURL        string `json:"video_url"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Searcher queries a stock footage service.
type Searcher interface {
	Search(ctx context.Context, query string, perPage int) ([]Candidate, error)
}

// FootageLookupFailure wraps an error from a single keyword lookup.
// Match logs it and treats the keyword as having no candidates.
type FootageLookupFailure struct {
	Keyword string
	Err     error
}

func (e *FootageLookupFailure) Error() string {
	return fmt.Sprintf("footage lookup for %q failed: %v", e.Keyword, e.Err)
}

func (e *FootageLookupFailure) Unwrap() error {
	return e.Err
}

// Matcher resolves keywords to clips with bounded concurrency.
type Matcher struct {
	searcher    Searcher
	concurrency int
	logger      *slog.Logger
}

func NewMatcher(searcher Searcher, concurrency int, logger *slog.Logger) *Matcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Matcher{
		searcher:    searcher,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Match looks up every keyword and returns the selected clips in keyword
// order. Keywords with no candidates, or whose lookup failed, produce no clip.
// A failed lookup never cancels the others.
func (m *Matcher) Match(ctx context.Context, keywords []Keyword) []Clip {
	results := make([]*Clip, len(keywords))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, kw := range keywords {
		i, kw := i, kw
		g.Go(func() error {
			clip, err := m.lookup(ctx, kw)
			if err != nil {
				m.logger.Warn("footage lookup failed, falling back to avatar",
					"time_range", kw.TimeRangeKey,
					"keyword", kw.Keyword,
					"error", err,
				)
				return nil
			}
			results[i] = clip
			return nil
		})
	}
	_ = g.Wait()

	var clips []Clip
	for _, c := range results {
		if c != nil {
			clips = append(clips, *c)
		}
	}
	return clips
}

func (m *Matcher) lookup(ctx context.Context, kw Keyword) (clip *Clip, err error) {
	defer func() {
		if r := recover(); r != nil {
			clip, err = nil, &FootageLookupFailure{Keyword: kw.Keyword, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	candidates, err := m.searcher.Search(ctx, kw.Keyword, CandidatesPerKeyword)
	if err != nil {
		return nil, &FootageLookupFailure{Keyword: kw.Keyword, Err: err}
	}
	if len(candidates) == 0 {
		m.logger.Debug("no footage candidates", "keyword", kw.Keyword)
		return nil, nil
	}

	chosen := SelectCandidate(candidates)
	rendition, ok := SelectRendition(chosen)
	if !ok {
		m.logger.Debug("footage candidate has no renditions", "keyword", kw.Keyword)
		return nil, nil
	}

	duration := chosen.Duration
	if duration <= 0 {
		duration = DefaultDurationSeconds
	}

	return &Clip{
		TimeRangeKey:    kw.TimeRangeKey,
		Keyword:         kw.Keyword,
		Description:     kw.Description,
		VideoURL:        rendition.Link,
		ThumbnailURL:    chosen.PreviewImage,
		DurationSeconds: duration,
	}, nil
}

// SelectCandidate prefers the first candidate offering an HD rendition and
// otherwise returns the first candidate. candidates must be non-empty.
func SelectCandidate(candidates []Candidate) Candidate {
	for _, c := range candidates {
		if hasHD(c) {
			return c
		}
	}
	return candidates[0]
}

// SelectRendition returns the HD rendition if present, else the first one.
func SelectRendition(c Candidate) (Rendition, bool) {
	if len(c.Renditions) == 0 {
		return Rendition{}, false
	}
	for _, r := range c.Renditions {
		if strings.EqualFold(r.Quality, qualityHD) {
			return r, true
		}
	}
	return c.Renditions[0], true
}

func hasHD(c Candidate) bool {
	for _, r := range c.Renditions {
		if strings.EqualFold(r.Quality, qualityHD) {
			return true
		}
	}
	return false
}
