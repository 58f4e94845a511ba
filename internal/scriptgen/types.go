// Package scriptgen produces A-roll and B-roll scripts, regenerates either
// half on request, and runs the market analysis that informs an idea.
package scriptgen

import (
	"context"
	"errors"
	"fmt"
)

// Kind selects which half of a script pair is regenerated.
type Kind string

const (
	KindARoll Kind = "a_roll"
	KindBRoll Kind = "b_roll"
)

// ParseKind accepts the API spellings of a script kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "a_roll", "aRoll", "a-roll":
		return KindARoll, nil
	case "b_roll", "bRoll", "b-roll":
		return KindBRoll, nil
	}
	return "", fmt.Errorf("unknown script kind %q", s)
}

// ErrEmptyIdea is returned when generation is requested without an idea.
var ErrEmptyIdea = errors.New("content idea is required")

// Scripts is a generated A-roll/B-roll pair. The JSON names match what the
// model is asked to return.
type Scripts struct {
	ARoll string `json:"aRollScript"`
	BRoll string `json:"bRollScript"`
}

// Complete reports whether both halves are present.
func (s Scripts) Complete() bool {
	return s.ARoll != "" && s.BRoll != ""
}

// VideoStat summarizes one upload of a creator's channel.
type VideoStat struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Views           uint64  `json:"views"`
	Likes           uint64  `json:"likes"`
	Comments        uint64  `json:"comments"`
	DurationSeconds int     `json:"duration_seconds"`
	EngagementRate  float64 `json:"engagement_rate"`
	PublishedAt     string  `json:"published_at"`
}

// CreatorProfile is the personalization context gathered from a creator's
// channel. A nil profile means generic generation.
type CreatorProfile struct {
	ChannelID         string      `json:"channel_id"`
	Title             string      `json:"title"`
	Description       string      `json:"description,omitempty"`
	Subscribers       uint64      `json:"subscribers"`
	TotalViews        uint64      `json:"total_views"`
	VideoCount        uint64      `json:"video_count"`
	AverageViews      uint64      `json:"average_views"`
	AverageEngagement float64     `json:"average_engagement"`
	TopVideos         []VideoStat `json:"top_videos,omitempty"`
}

// TrendSignal is one trending discussion pulled from a social source.
type TrendSignal struct {
	Source    string `json:"source"`
	Community string `json:"community"`
	Title     string `json:"title"`
	Score     int    `json:"score"`
	Comments  int    `json:"comments"`
	URL       string `json:"url"`
}

type MarketSummary struct {
	Trend             string `json:"trend"`
	AudienceSize      string `json:"audienceSize"`
	ViralPotential    string `json:"viralPotential"`
	CompetitionLevel  string `json:"competitionLevel"`
	PersonalAlignment string `json:"personalAlignment,omitempty"`
}

type Audience struct {
	PrimaryDemographic string   `json:"primaryDemographic"`
	Interests          []string `json:"interests"`
	Platforms          []string `json:"platforms"`
	BehaviorPatterns   string   `json:"behaviorPatterns"`
}

type Strategy struct {
	ContentType       string   `json:"contentType"`
	PostingTime       string   `json:"postingTime"`
	Hashtags          []string `json:"hashtags"`
	EngagementTactics string   `json:"engagementTactics"`
}

type Competitors struct {
	TopCompetitors             []string `json:"topCompetitors"`
	CompetitorStrategies       string   `json:"competitorStrategies"`
	DifferentiationOpportunity string   `json:"differentiationOpportunity"`
}

// MarketAnalysis is the structured analysis of a content idea. Note is set
// only on the canned fallback.
type MarketAnalysis struct {
	MarketSummary MarketSummary `json:"marketSummary"`
	Audience      Audience      `json:"audience"`
	Strategy      Strategy      `json:"strategy"`
	Opportunities []string      `json:"opportunities"`
	Insights      []string      `json:"insights"`
	Competitors   Competitors   `json:"competitors"`
	MarketTrends  []string      `json:"marketTrends"`
	RiskFactors   []string      `json:"riskFactors"`
	Note          string        `json:"analysisNote,omitempty"`
}

// Generator is the script generation boundary.
type Generator interface {
	Generate(ctx context.Context, idea string, profile *CreatorProfile) (Scripts, error)
	Regenerate(ctx context.Context, topic string, kind Kind, current string) (string, error)
	Analyze(ctx context.Context, idea string, profile *CreatorProfile, trends []TrendSignal) (*MarketAnalysis, error)
}
