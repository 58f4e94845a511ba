package broll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSearcher struct {
	calls atomic.Int32

	mu       sync.Mutex
	queries  []string
	perPages []int

	searchFn func(ctx context.Context, query string) ([]Candidate, error)
}

func (f *fakeSearcher) Search(ctx context.Context, query string, perPage int) ([]Candidate, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.perPages = append(f.perPages, perPage)
	f.mu.Unlock()
	return f.searchFn(ctx, query)
}

func candidate(link string, quality string, duration int) Candidate {
	return Candidate{
		PreviewImage: link + ".jpg",
		Duration:     duration,
		Renditions:   []Rendition{{Quality: quality, Link: link}},
	}
}

func TestMatcher_PrefersHD(t *testing.T) {
	searcher := &fakeSearcher{searchFn: func(ctx context.Context, query string) ([]Candidate, error) {
		return []Candidate{
			candidate("sd-first", "sd", 7),
			{
				PreviewImage: "hd.jpg",
				Duration:     14,
				Renditions: []Rendition{
					{Quality: "sd", Link: "hd-candidate-sd"},
					{Quality: "hd", Link: "hd-candidate-hd"},
				},
			},
		}, nil
	}}

	m := NewMatcher(searcher, 2, testLogger())
	clips := m.Match(context.Background(), []Keyword{{TimeRangeKey: "0:05-0:12", Keyword: "programming code computer", Description: "coding"}})

	if len(clips) != 1 {
		t.Fatalf("clips = %d, want 1", len(clips))
	}
	c := clips[0]
	if c.VideoURL != "hd-candidate-hd" {
		t.Errorf("video url = %q, want hd rendition", c.VideoURL)
	}
	if c.ThumbnailURL != "hd.jpg" || c.DurationSeconds != 14 {
		t.Errorf("thumbnail/duration = %q/%d, want hd.jpg/14", c.ThumbnailURL, c.DurationSeconds)
	}
	if c.Description != "coding" || c.TimeRangeKey != "0:05-0:12" {
		t.Errorf("clip metadata not carried: %+v", c)
	}
	if searcher.perPages[0] != CandidatesPerKeyword {
		t.Errorf("perPage = %d, want %d", searcher.perPages[0], CandidatesPerKeyword)
	}
}

func TestMatcher_FallsBackToFirstCandidate(t *testing.T) {
	searcher := &fakeSearcher{searchFn: func(ctx context.Context, query string) ([]Candidate, error) {
		return []Candidate{candidate("first", "sd", 0), candidate("second", "sd", 9)}, nil
	}}

	clips := NewMatcher(searcher, 1, testLogger()).Match(context.Background(), []Keyword{{TimeRangeKey: "k", Keyword: "q"}})
	if len(clips) != 1 {
		t.Fatalf("clips = %d, want 1", len(clips))
	}
	if clips[0].VideoURL != "first" {
		t.Errorf("video url = %q, want first", clips[0].VideoURL)
	}
	if clips[0].DurationSeconds != DefaultDurationSeconds {
		t.Errorf("duration = %d, want default %d", clips[0].DurationSeconds, DefaultDurationSeconds)
	}
}

func TestMatcher_NoCandidatesIsAbsence(t *testing.T) {
	searcher := &fakeSearcher{searchFn: func(ctx context.Context, query string) ([]Candidate, error) {
		return nil, nil
	}}

	clips := NewMatcher(searcher, 1, testLogger()).Match(context.Background(), []Keyword{{TimeRangeKey: "k", Keyword: "q"}})
	if len(clips) != 0 {
		t.Errorf("clips = %d, want 0", len(clips))
	}
}

func TestMatcher_IsolatesFailures(t *testing.T) {
	searcher := &fakeSearcher{searchFn: func(ctx context.Context, query string) ([]Candidate, error) {
		switch query {
		case "two":
			return nil, errors.New("upstream 503")
		case "three":
			panic("boom")
		}
		return []Candidate{candidate(query, "hd", 5)}, nil
	}}

	keywords := []Keyword{
		{TimeRangeKey: "a", Keyword: "one"},
		{TimeRangeKey: "b", Keyword: "two"},
		{TimeRangeKey: "c", Keyword: "three"},
		{TimeRangeKey: "d", Keyword: "four"},
	}
	clips := NewMatcher(searcher, 4, testLogger()).Match(context.Background(), keywords)

	if len(clips) != 2 {
		t.Fatalf("clips = %d, want 2", len(clips))
	}
	if clips[0].TimeRangeKey != "a" || clips[1].TimeRangeKey != "d" {
		t.Errorf("keys = [%s %s], want [a d]", clips[0].TimeRangeKey, clips[1].TimeRangeKey)
	}
	if got := searcher.calls.Load(); got != 4 {
		t.Errorf("search calls = %d, want 4", got)
	}
}

func TestMatcher_PreservesOrderRegardlessOfCompletion(t *testing.T) {
	delays := map[string]time.Duration{
		"slow":   30 * time.Millisecond,
		"medium": 15 * time.Millisecond,
		"fast":   0,
	}
	searcher := &fakeSearcher{searchFn: func(ctx context.Context, query string) ([]Candidate, error) {
		time.Sleep(delays[query])
		return []Candidate{candidate(query, "hd", 5)}, nil
	}}

	keywords := []Keyword{
		{TimeRangeKey: "0:00-0:05", Keyword: "slow"},
		{TimeRangeKey: "0:05-0:10", Keyword: "medium"},
		{TimeRangeKey: "0:10-0:15", Keyword: "fast"},
	}
	clips := NewMatcher(searcher, 3, testLogger()).Match(context.Background(), keywords)

	if len(clips) != 3 {
		t.Fatalf("clips = %d, want 3", len(clips))
	}
	for i, kw := range keywords {
		if clips[i].TimeRangeKey != kw.TimeRangeKey {
			t.Errorf("clip %d key = %s, want %s", i, clips[i].TimeRangeKey, kw.TimeRangeKey)
		}
	}
}

func TestMatcher_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	searcher := &fakeSearcher{searchFn: func(ctx context.Context, query string) ([]Candidate, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil, nil
	}}

	keywords := make([]Keyword, 10)
	for i := range keywords {
		keywords[i] = Keyword{Keyword: "q"}
	}
	NewMatcher(searcher, 2, testLogger()).Match(context.Background(), keywords)

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestSelectRendition_Empty(t *testing.T) {
	if _, ok := SelectRendition(Candidate{}); ok {
		t.Error("expected no rendition for empty candidate")
	}
}

func TestFootageLookupFailure_Unwrap(t *testing.T) {
	base := errors.New("timeout")
	err := error(&FootageLookupFailure{Keyword: "k", Err: base})
	if !errors.Is(err, base) {
		t.Error("FootageLookupFailure should unwrap to the search error")
	}
}
