package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/supernova/supernova/internal/config"
	"github.com/supernova/supernova/internal/scriptgen"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

const defaultTrendLimit = 10

// ProfileSource builds a creator profile from a channel reference.
type ProfileSource interface {
	Analyze(ctx context.Context, channel string) (*scriptgen.CreatorProfile, error)
}

// TrendSource returns trending discussions about a query.
type TrendSource interface {
	Trends(ctx context.Context, query string, limit int) ([]scriptgen.TrendSignal, error)
}

type CreateProjectInput struct {
	Idea           string
	Platform       string
	YouTubeChannel string
}

type AnalyzeInput struct {
	Idea           string
	YouTubeChannel string
	IncludeTrends  bool
}

type Service struct {
	repo      Repository
	generator scriptgen.Generator
	profiles  ProfileSource
	trends    TrendSource
	features  config.Features
	logger    *slog.Logger
}

// NewService wires the library. profiles and trends may be nil when the
// corresponding integrations are not configured.
func NewService(repo Repository, generator scriptgen.Generator, profiles ProfileSource, trends TrendSource, features config.Features, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		generator: generator,
		profiles:  profiles,
		trends:    trends,
		features:  features,
		logger:    logger,
	}
}

// CreateProject generates scripts for an idea and stores them as a new
// project.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (*Project, error) {
	idea := strings.TrimSpace(in.Idea)
	if idea == "" {
		return nil, fmt.Errorf("%w: idea is required", ErrInvalidInput)
	}
	platform := strings.TrimSpace(in.Platform)
	if !s.features.EnablePlatformSelection {
		platform = ""
	}

	profile := s.creatorProfile(ctx, in.YouTubeChannel)

	scripts, err := s.generator.Generate(ctx, idea, profile)
	if err != nil {
		return nil, fmt.Errorf("generate scripts: %w", err)
	}

	now := time.Now()
	project := &Project{
		ID:          NewID(),
		Idea:        idea,
		Platform:    platform,
		ARollScript: scripts.ARoll,
		BRollScript: scripts.BRoll,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project created", "project_id", project.ID, "personalized", profile != nil)
	return project, nil
}

// RegenerateScript replaces one half of a project's scripts with a fresh
// version.
func (s *Service) RegenerateScript(ctx context.Context, projectID string, kind scriptgen.Kind) (*Project, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	current := project.ARollScript
	if kind == scriptgen.KindBRoll {
		current = project.BRollScript
	}

	fresh, err := s.generator.Regenerate(ctx, project.Idea, kind, current)
	if err != nil {
		return nil, fmt.Errorf("regenerate script: %w", err)
	}

	switch kind {
	case scriptgen.KindARoll:
		project.ARollScript = fresh
	case scriptgen.KindBRoll:
		project.BRollScript = fresh
	}
	if err := s.repo.UpdateProjectScripts(ctx, project.ID, project.ARollScript, project.BRollScript); err != nil {
		return nil, err
	}
	project.UpdatedAt = time.Now()

	s.logger.Info("script regenerated", "project_id", project.ID, "kind", kind)
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return project, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx, 100)
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// SubmitRender queues a render of a project. The runner picks it up on its
// next tick.
func (s *Service) SubmitRender(ctx context.Context, projectID, avatarID, voiceID string) (*Render, error) {
	if strings.TrimSpace(avatarID) == "" || strings.TrimSpace(voiceID) == "" {
		return nil, fmt.Errorf("%w: avatar_id and voice_id are required", ErrInvalidInput)
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	now := time.Now()
	render := &Render{
		ID:        NewID(),
		ProjectID: projectID,
		AvatarID:  avatarID,
		VoiceID:   voiceID,
		Status:    RenderStatusPending,
		Stage:     StageQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateRender(ctx, render); err != nil {
		return nil, err
	}

	s.logger.Info("render queued", "render_id", render.ID, "project_id", projectID)
	return render, nil
}

func (s *Service) GetRender(ctx context.Context, id string) (*Render, error) {
	render, err := s.repo.GetRender(ctx, id)
	if err != nil {
		return nil, err
	}
	if render == nil {
		return nil, fmt.Errorf("render %s: %w", id, ErrNotFound)
	}
	return render, nil
}

func (s *Service) ListRenders(ctx context.Context, limit int) ([]*Render, error) {
	return s.repo.ListRenders(ctx, limit)
}

func (s *Service) ListProjectRenders(ctx context.Context, projectID string) ([]*Render, error) {
	return s.repo.ListRendersByProject(ctx, projectID)
}

func (s *Service) RenderCounts(ctx context.Context) (map[string]int, error) {
	return s.repo.CountRendersByStatus(ctx)
}

// Analyze runs the market analysis for an idea, personalized and enriched
// with live trends when those are available.
func (s *Service) Analyze(ctx context.Context, in AnalyzeInput) (*scriptgen.MarketAnalysis, error) {
	idea := strings.TrimSpace(in.Idea)
	if idea == "" {
		return nil, fmt.Errorf("%w: idea is required", ErrInvalidInput)
	}

	profile := s.creatorProfile(ctx, in.YouTubeChannel)

	var trends []scriptgen.TrendSignal
	if in.IncludeTrends && s.features.EnableTrends && s.trends != nil {
		var err error
		trends, err = s.trends.Trends(ctx, idea, defaultTrendLimit)
		if err != nil {
			s.logger.Warn("trend lookup failed, analyzing without trends", "error", err)
			trends = nil
		}
	}

	return s.generator.Analyze(ctx, idea, profile, trends)
}

// creatorProfile is best effort: a failed lookup degrades to generic
// generation.
func (s *Service) creatorProfile(ctx context.Context, channel string) *scriptgen.CreatorProfile {
	channel = strings.TrimSpace(channel)
	if channel == "" || s.profiles == nil {
		return nil
	}
	profile, err := s.profiles.Analyze(ctx, channel)
	if err != nil {
		s.logger.Warn("creator profile lookup failed", "channel", channel, "error", err)
		return nil
	}
	return profile
}
