package api

import (
	"time"

	"github.com/supernova/supernova/internal/avatar"
	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/composition"
	"github.com/supernova/supernova/internal/script"
	"github.com/supernova/supernova/internal/studio"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UptimeS   int64  `json:"uptime_s"`
	InstallID string `json:"install_id,omitempty"`
}

type StatusResponse struct {
	State            string          `json:"state"`
	LastError        string          `json:"last_error,omitempty"`
	RendersActive    int             `json:"renders_active"`
	RenderCounts     map[string]int  `json:"render_counts"`
	ActiveRender     *RenderResponse `json:"active_render,omitempty"`
	EventSubscribers int             `json:"event_subscribers"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type CreateProjectRequest struct {
	Idea           string `json:"idea"`
	Platform       string `json:"platform,omitempty"`
	YouTubeChannel string `json:"youtube_channel,omitempty"`
}

type RegenerateRequest struct {
	Kind string `json:"kind"`
}

type ProjectResponse struct {
	ID          string           `json:"id"`
	Idea        string           `json:"idea"`
	Platform    string           `json:"platform,omitempty"`
	ARollScript string           `json:"a_roll_script"`
	BRollScript string           `json:"b_roll_script"`
	Renders     []RenderResponse `json:"renders,omitempty"`
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type AnalysisRequest struct {
	Idea           string `json:"idea"`
	YouTubeChannel string `json:"youtube_channel,omitempty"`
	IncludeTrends  bool   `json:"include_trends"`
}

type ScriptRequest struct {
	Script string `json:"script"`
}

type TimelineResponse struct {
	Segments      []script.Segment `json:"segments"`
	Keywords      []broll.Keyword  `json:"keywords"`
	Skipped       []string         `json:"skipped"`
	TotalDuration int              `json:"total_duration_seconds"`
}

type NormalizeResponse struct {
	Text string `json:"text"`
}

type SubmitRenderRequest struct {
	AvatarID string `json:"avatar_id"`
	VoiceID  string `json:"voice_id"`
}

type RenderResponse struct {
	ID              string            `json:"id"`
	ProjectID       string            `json:"project_id"`
	AvatarID        string            `json:"avatar_id"`
	VoiceID         string            `json:"voice_id"`
	Status          string            `json:"status"`
	Stage           string            `json:"stage"`
	Progress        int               `json:"progress"`
	AvatarURL       string            `json:"avatar_url,omitempty"`
	VideoURL        string            `json:"video_url,omitempty"`
	DurationSeconds int               `json:"duration_seconds,omitempty"`
	SegmentCount    int               `json:"segment_count,omitempty"`
	BRollCount      int               `json:"broll_count,omitempty"`
	Plan            *composition.Plan `json:"plan,omitempty"`
	Error           string            `json:"error,omitempty"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

type RendersResponse struct {
	Renders []RenderResponse `json:"renders"`
}

type AvatarsResponse struct {
	Avatars   []avatar.Avatar `json:"avatars"`
	FetchedAt string          `json:"fetched_at"`
}

type UploadAvatarResponse struct {
	AvatarID string `json:"avatar_id"`
	Ready    bool   `json:"ready"`
	Message  string `json:"message"`
}

type VoicesResponse struct {
	Voices    []avatar.Voice `json:"voices"`
	FetchedAt string         `json:"fetched_at"`
}

type FootageResponse struct {
	Query      string            `json:"query"`
	Candidates []broll.Candidate `json:"candidates"`
}

func ProjectToResponse(p *studio.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Idea:        p.Idea,
		Platform:    p.Platform,
		ARollScript: p.ARollScript,
		BRollScript: p.BRollScript,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
}

func RenderToResponse(r *studio.Render) RenderResponse {
	resp := RenderResponse{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		AvatarID:        r.AvatarID,
		VoiceID:         r.VoiceID,
		Status:          r.Status,
		Stage:           r.Stage,
		Progress:        r.Progress,
		AvatarURL:       r.AvatarURL,
		VideoURL:        r.VideoURL,
		DurationSeconds: r.DurationSeconds,
		SegmentCount:    r.SegmentCount,
		Plan:            r.Plan,
		Error:           r.Error,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
	if r.Plan != nil {
		resp.BRollCount = r.Plan.BRollCount()
	}
	return resp
}

func RendersToResponse(renders []*studio.Render) []RenderResponse {
	out := make([]RenderResponse, len(renders))
	for i, r := range renders {
		out[i] = RenderToResponse(r)
	}
	return out
}
