package scriptgen

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Method records which strategy recovered the scripts from model output.
type Method string

const (
	MethodJSON     Method = "json"
	MethodSections Method = "sections"
)

// ParseResult is either Parsed or ParseFailure.
type ParseResult interface {
	parseResult()
}

// Parsed carries scripts recovered from model output.
type Parsed struct {
	Scripts Scripts
	Method  Method
}

// ParseFailure carries output no strategy could make sense of. Whether to
// fall back is the caller's decision.
type ParseFailure struct {
	Raw string
}

func (Parsed) parseResult()       {}
func (ParseFailure) parseResult() {}

var fenceRe = regexp.MustCompile("```(?:json)?\\s*")

const minSectionLineLen = 10

// ParseScripts recovers an A-roll/B-roll pair from free-form model output.
// It tries an embedded JSON object first, then labelled sections.
func ParseScripts(raw string) ParseResult {
	if s, ok := scriptsFromJSON(raw); ok {
		return Parsed{Scripts: s, Method: MethodJSON}
	}
	if s, ok := scriptsFromSections(raw); ok {
		return Parsed{Scripts: s, Method: MethodSections}
	}
	return ParseFailure{Raw: raw}
}

// FallbackSplit splits the non-blank lines of raw in half. A half that ends
// up empty is replaced with a placeholder so both scripts are always set.
func FallbackSplit(raw string) Scripts {
	lines := nonBlankLines(raw)
	mid := len(lines) / 2

	s := Scripts{
		ARoll: strings.TrimSpace(strings.Join(lines[:mid], "\n")),
		BRoll: strings.TrimSpace(strings.Join(lines[mid:], "\n")),
	}
	if s.ARoll == "" {
		s.ARoll = "Generated A-roll content"
	}
	if s.BRoll == "" {
		s.BRoll = "Generated B-roll content"
	}
	return s
}

// Resolve returns the scripts of a Parsed result, or the fallback split of
// a failure's raw text.
func Resolve(r ParseResult) Scripts {
	switch v := r.(type) {
	case Parsed:
		return v.Scripts
	case ParseFailure:
		return FallbackSplit(v.Raw)
	}
	return FallbackSplit("")
}

var errNoJSONObject = errors.New("no JSON object in response")

// extractObject strips code fences and returns the text between the first
// '{' and the last '}'.
func extractObject(raw string) (string, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return "", errNoJSONObject
	}
	return cleaned[start : end+1], nil
}

func scriptsFromJSON(raw string) (Scripts, bool) {
	obj, err := extractObject(raw)
	if err != nil {
		return Scripts{}, false
	}
	var s Scripts
	if err := json.Unmarshal([]byte(obj), &s); err != nil {
		return Scripts{}, false
	}
	return s, s.Complete()
}

func scriptsFromSections(raw string) (Scripts, bool) {
	var aRoll, bRoll strings.Builder
	section := ""

	for _, line := range nonBlankLines(raw) {
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "a-roll"), strings.Contains(lower, "aroll"), strings.Contains(lower, "spoken content"):
			section = "aroll"
			continue
		case strings.Contains(lower, "b-roll"), strings.Contains(lower, "broll"),
			strings.Contains(lower, "visual"), strings.Contains(lower, "directions"):
			section = "broll"
			continue
		}
		if strings.Contains(lower, "script") || len(strings.TrimSpace(line)) <= minSectionLineLen {
			continue
		}
		switch section {
		case "aroll":
			aRoll.WriteString(line + "\n")
		case "broll":
			bRoll.WriteString(line + "\n")
		}
	}

	s := Scripts{
		ARoll: strings.TrimSpace(aRoll.String()),
		BRoll: strings.TrimSpace(bRoll.String()),
	}
	return s, s.Complete()
}

func nonBlankLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// ParseAnalysis decodes a market analysis from model output.
func ParseAnalysis(raw string) (*MarketAnalysis, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return nil, err
	}
	var a MarketAnalysis
	if err := json.Unmarshal([]byte(obj), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// FallbackAnalysis is served when the model's analysis cannot be decoded.
func FallbackAnalysis() *MarketAnalysis {
	return &MarketAnalysis{
		MarketSummary: MarketSummary{
			Trend:            "Growing",
			AudienceSize:     "Large",
			ViralPotential:   "High",
			CompetitionLevel: "Medium",
		},
		Audience: Audience{
			PrimaryDemographic: "Young adults aged 18-35 interested in the topic",
			Interests:          []string{"trending topics", "social media", "entertainment"},
			Platforms:          []string{"TikTok", "Instagram", "YouTube"},
			BehaviorPatterns:   "Highly engaged with short-form video content",
		},
		Strategy: Strategy{
			ContentType:       "Short-form video with engaging visuals",
			PostingTime:       "Peak hours: 6-9 PM weekdays",
			Hashtags:          []string{"#trending", "#viral", "#content"},
			EngagementTactics: "Use trending sounds, interactive elements, and clear call-to-actions",
		},
		Opportunities: []string{
			"High engagement potential due to current market interest",
			"Opportunity to establish thought leadership in this space",
			"Potential for viral reach with proper execution",
		},
		Insights: []string{
			"Content in this category shows strong performance metrics",
			"Audience is highly receptive to authentic, relatable content",
			"Visual storytelling is key to success in this market",
		},
		Competitors: Competitors{
			TopCompetitors:             []string{"Major content creators in this niche"},
			CompetitorStrategies:       "Focus on trending topics with personal perspectives",
			DifferentiationOpportunity: "Unique angle or personal experience",
		},
		MarketTrends: []string{
			"Increasing demand for authentic content",
			"Short-form video continues to dominate",
			"Interactive content gaining traction",
		},
		RiskFactors: []string{
			"High competition in popular content categories",
			"Algorithm changes may affect reach",
		},
		Note: "This is a fallback analysis due to parsing issues. Please try again for more specific insights.",
	}
}
