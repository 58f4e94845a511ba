// Package studio is the content library: projects with their generated
// scripts, and the render jobs that turn a project into a video.
package studio

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/supernova/supernova/internal/composition"
)

type Project struct {
	ID          string    `json:"id"`
	Idea        string    `json:"idea"`
	Platform    string    `json:"platform,omitempty"`
	ARollScript string    `json:"a_roll_script"`
	BRollScript string    `json:"b_roll_script"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	RenderStatusPending   = "pending"
	RenderStatusRunning   = "running"
	RenderStatusCompleted = "completed"
	RenderStatusFailed    = "failed"
)

// Render stages outside the composer's own stage names.
const (
	StageQueued        = "Queued"
	StageAvatarSubmit  = "Submitting avatar render..."
	StageAvatarWait    = "Waiting for avatar video..."
	StageFootageSearch = "Finding B-roll footage..."
	StagePlanning      = "Planning composition..."
	StageDone          = "Done"
)

type Render struct {
	ID              string            `json:"id"`
	ProjectID       string            `json:"project_id"`
	AvatarID        string            `json:"avatar_id"`
	VoiceID         string            `json:"voice_id"`
	Status          string            `json:"status"`
	Stage           string            `json:"stage"`
	Progress        int               `json:"progress"`
	AvatarVideoID   string            `json:"avatar_video_id,omitempty"`
	AvatarURL       string            `json:"avatar_url,omitempty"`
	VideoURL        string            `json:"video_url,omitempty"`
	DurationSeconds int               `json:"duration_seconds"`
	SegmentCount    int               `json:"segment_count"`
	Plan            *composition.Plan `json:"plan,omitempty"`
	Error           string            `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Finished reports whether the render reached a terminal status.
func (r *Render) Finished() bool {
	return r.Status == RenderStatusCompleted || r.Status == RenderStatusFailed
}

func NewID() string {
	return uuid.NewString()
}

func encodePlan(p *composition.Plan) (string, error) {
	if p == nil {
		return "", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodePlan(s string) *composition.Plan {
	if s == "" {
		return nil
	}
	var p composition.Plan
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil
	}
	return &p
}
