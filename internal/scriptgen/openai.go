package scriptgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 15 * time.Second
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// ErrNoContent is returned when the model answers with an empty message.
var ErrNoContent = errors.New("no content generated")

const generateSystemPrompt = `You are a professional content creator specializing in viral short-form videos. Create engaging A-roll and B-roll scripts optimized for TikTok, Instagram Reels and YouTube Shorts.

Always respond with valid JSON in this exact format:
{
  "aRollScript": "the complete spoken script",
  "bRollScript": "the timed visual directions"
}

The A-roll script is spoken words only: a hook within the first 3 seconds, a clear value proposition, a natural conversational tone, 20-30 seconds when spoken. No presenter labels, timestamps or asterisk formatting.

The B-roll script is a timeline. Every line is one cue in exactly this form:
[M:SS-M:SS] A-ROLL: what the presenter says during this window
[M:SS-M:SS] B-ROLL: the footage shown during this window
Cues must cover the whole video without gaps and each window must end after it starts.`

const analysisSystemPrompt = "You are a professional social media marketing analyst. Respond only with valid JSON data as requested. No additional text, explanations, or formatting."

const aRollRegenerateSystemPrompt = `You are a professional content creator and scriptwriter. Write conversational scripts that sound natural when spoken aloud: hook the audience early, keep paragraphs short, and end with a strong call-to-action. Write in first person as the creator speaking to the audience. Return only the spoken words.

Create a DIFFERENT version from the previous script while keeping the same quality.`

const bRollRegenerateSystemPrompt = `You are a video production specialist writing B-roll instructions that complement spoken content. Every line is one cue in exactly this form:
[M:SS-M:SS] A-ROLL: what the presenter says
[M:SS-M:SS] B-ROLL: specific footage, shot type and movement

Create a DIFFERENT visual approach from the previous version.`

// OpenAIConfig configures an OpenAIGenerator. Zero values take defaults.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator generates scripts through the OpenAI chat completions API.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewOpenAIGenerator(cfg OpenAIConfig, logger *slog.Logger) *OpenAIGenerator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Generate asks the model for a script pair. Output that cannot be parsed
// is split in half rather than rejected.
func (g *OpenAIGenerator) Generate(ctx context.Context, idea string, profile *CreatorProfile) (Scripts, error) {
	if strings.TrimSpace(idea) == "" {
		return Scripts{}, ErrEmptyIdea
	}

	content, err := g.complete(ctx, generateSystemPrompt, generateUserPrompt(idea, profile))
	if err != nil {
		return Scripts{}, fmt.Errorf("generate scripts: %w", err)
	}

	result := ParseScripts(content)
	switch r := result.(type) {
	case Parsed:
		g.logger.Debug("scripts parsed", "method", r.Method)
	case ParseFailure:
		g.logger.Warn("model output not parseable, splitting in half", "length", len(r.Raw))
	}
	return Resolve(result), nil
}

// Regenerate writes a new version of one half of a script pair.
func (g *OpenAIGenerator) Regenerate(ctx context.Context, topic string, kind Kind, current string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", ErrEmptyIdea
	}

	var system, user string
	switch kind {
	case KindARoll:
		system = aRollRegenerateSystemPrompt
		user = fmt.Sprintf("Create a new, different version of a video script about: %q.\nHere is the previous version to avoid repeating:\n\n%s\n\nUse different examples, structure or approach while covering the same topic.", topic, current)
	case KindBRoll:
		system = bRollRegenerateSystemPrompt
		user = fmt.Sprintf("Create new, different B-roll instructions for a video about: %q.\nHere is the previous version:\n\n%s\n\nSuggest fresh shots while keeping the same timeline length.", topic, current)
	default:
		return "", fmt.Errorf("unknown script kind %q", kind)
	}

	content, err := g.complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("regenerate %s: %w", kind, err)
	}
	return content, nil
}

// Analyze runs the market analysis. A response that does not decode yields
// the fallback analysis, not an error.
func (g *OpenAIGenerator) Analyze(ctx context.Context, idea string, profile *CreatorProfile, trends []TrendSignal) (*MarketAnalysis, error) {
	if strings.TrimSpace(idea) == "" {
		return nil, ErrEmptyIdea
	}

	content, err := g.complete(ctx, analysisSystemPrompt, analysisUserPrompt(idea, profile, trends))
	if err != nil {
		return nil, fmt.Errorf("market analysis: %w", err)
	}

	analysis, err := ParseAnalysis(content)
	if err != nil {
		g.logger.Warn("market analysis not parseable, using fallback", "error", err)
		return FallbackAnalysis(), nil
	}
	if profile == nil && analysis.MarketSummary.PersonalAlignment == "" {
		analysis.MarketSummary.PersonalAlignment = "Not analyzed"
	}
	return analysis, nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoContent
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrNoContent
	}
	g.logger.Debug("chat completion finished",
		"model", g.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"tokens", resp.Usage.TotalTokens,
	)
	return content, nil
}

func generateUserPrompt(idea string, profile *CreatorProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create A-roll and B-roll scripts for: %q", idea)
	if profile != nil {
		b.WriteString("\n\nPersonalization Context:")
		fmt.Fprintf(&b, "\n- YouTube channel %q with %d subscribers", profile.Title, profile.Subscribers)
		fmt.Fprintf(&b, "\n- Average views per video: %d, average engagement: %.2f%%", profile.AverageViews, profile.AverageEngagement)
		for i, v := range profile.TopVideos {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "\n- Top video: %q (%d views)", v.Title, v.Views)
		}
	}
	b.WriteString("\n\nRespond ONLY with valid JSON in the format specified above.")
	return b.String()
}

func analysisUserPrompt(idea string, profile *CreatorProfile, trends []TrendSignal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following content idea for social media marketing and provide a comprehensive market analysis in VALID JSON format only.\n\nContent Idea: %q\n", idea)

	alignment := "Not analyzed"
	if profile != nil {
		alignment = "High/Medium/Low based on the creator profile"
		data, _ := json.Marshal(profile)
		fmt.Fprintf(&b, "\nCreator Profile: %s\nConsider this context when judging audience alignment.\n", data)
	}
	if len(trends) > 0 {
		b.WriteString("\nTrending discussions right now:\n")
		for _, t := range trends {
			fmt.Fprintf(&b, "- [%s/%s] %s (score %d, %d comments)\n", t.Source, t.Community, t.Title, t.Score, t.Comments)
		}
	}

	fmt.Fprintf(&b, `
Use this exact JSON structure:
{
  "marketSummary": {"trend": "Growing/Stable/Declining", "audienceSize": "Large/Medium/Small", "viralPotential": "High/Medium/Low", "competitionLevel": "High/Medium/Low", "personalAlignment": %q},
  "audience": {"primaryDemographic": "", "interests": [], "platforms": [], "behaviorPatterns": ""},
  "strategy": {"contentType": "", "postingTime": "", "hashtags": [], "engagementTactics": ""},
  "opportunities": [],
  "insights": [],
  "competitors": {"topCompetitors": [], "competitorStrategies": "", "differentiationOpportunity": ""},
  "marketTrends": [],
  "riskFactors": []
}

Return ONLY the JSON object.`, alignment)
	return b.String()
}
