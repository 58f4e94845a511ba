package scriptgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// StubGenerator is used when no OpenAI key is configured. Its output is
// deterministic and uses the cue-line timeline format so the render
// pipeline runs end to end offline.
type StubGenerator struct {
	logger *slog.Logger
}

func NewStubGenerator(logger *slog.Logger) *StubGenerator {
	return &StubGenerator{logger: logger}
}

func (s *StubGenerator) Generate(ctx context.Context, idea string, profile *CreatorProfile) (Scripts, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return Scripts{}, ErrEmptyIdea
	}
	s.logger.Info("script stub: generating placeholder scripts (no API key configured)")

	aRoll := fmt.Sprintf("Here is something nobody tells you about %s. "+
		"Most people start without a plan and give up in a week. "+
		"Start small, share your progress on social media, and keep showing up. "+
		"Follow for more.", idea)

	bRoll := strings.Join([]string{
		fmt.Sprintf("[0:00-0:05] A-ROLL: Here is something nobody tells you about %s.", idea),
		"[0:05-0:10] B-ROLL: Close-up of hands typing on a laptop in a bright workspace",
		"[0:10-0:15] A-ROLL: Most people start without a plan and give up in a week.",
		"[0:15-0:20] B-ROLL: Wide shot of a busy city street at golden hour",
		"[0:20-0:25] B-ROLL: Scrolling a social media feed on a phone",
		"[0:25-0:30] A-ROLL: Start small, keep showing up, and follow for more.",
	}, "\n")

	return Scripts{ARoll: aRoll, BRoll: bRoll}, nil
}

func (s *StubGenerator) Regenerate(ctx context.Context, topic string, kind Kind, current string) (string, error) {
	scripts, err := s.Generate(ctx, topic, nil)
	if err != nil {
		return "", err
	}
	switch kind {
	case KindARoll:
		return "Let me show you a different way to think about " + strings.TrimSpace(topic) + ". " +
			"Pick one habit, do it every day, and watch what happens in a month.", nil
	case KindBRoll:
		return scripts.BRoll, nil
	}
	return "", fmt.Errorf("unknown script kind %q", kind)
}

func (s *StubGenerator) Analyze(ctx context.Context, idea string, profile *CreatorProfile, trends []TrendSignal) (*MarketAnalysis, error) {
	if strings.TrimSpace(idea) == "" {
		return nil, ErrEmptyIdea
	}
	a := FallbackAnalysis()
	a.Note = "Generated without a language model. Configure an OpenAI key for a tailored analysis."
	for _, t := range trends {
		a.MarketTrends = append(a.MarketTrends, t.Title)
	}
	return a, nil
}
