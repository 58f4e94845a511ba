package studio

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Timestamps are stored with fixed-width fractional seconds so that
// ORDER BY created_at sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, limit int) ([]*Project, error)
	UpdateProjectScripts(ctx context.Context, id, aRoll, bRoll string) error
	DeleteProject(ctx context.Context, id string) error

	CreateRender(ctx context.Context, r *Render) error
	GetRender(ctx context.Context, id string) (*Render, error)
	ListRenders(ctx context.Context, limit int) ([]*Render, error)
	ListRendersByProject(ctx context.Context, projectID string) ([]*Render, error)
	ListPendingRenders(ctx context.Context) ([]*Render, error)
	UpdateRenderStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateRenderProgress(ctx context.Context, id, stage string, progress int) error
	UpdateRenderAvatar(ctx context.Context, id, videoID, url string) error
	CompleteRender(ctx context.Context, r *Render) error
	CountRendersByStatus(ctx context.Context) (map[string]int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, idea, platform, a_roll_script, b_roll_script, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Idea, p.Platform, p.ARollScript, p.BRollScript, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	return err
}

const projectColumns = `id, idea, platform, a_roll_script, b_roll_script, created_at, updated_at`

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *SQLiteRepository) ListProjects(ctx context.Context, limit int) ([]*Project, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Idea, &p.Platform, &p.ARollScript, &p.BRollScript, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) UpdateProjectScripts(ctx context.Context, id, aRoll, bRoll string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET a_roll_script = ?, b_roll_script = ?, updated_at = ? WHERE id = ?
	`, aRoll, bRoll, formatTime(time.Now()), id)
	return err
}

// DeleteProject removes the project; its renders go with it through the
// foreign key cascade.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CreateRender(ctx context.Context, rd *Render) error {
	plan, err := encodePlan(rd.Plan)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO renders (id, project_id, avatar_id, voice_id, status, stage, progress,
			avatar_video_id, avatar_url, video_url, duration_seconds, segment_count, plan, error,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rd.ID, rd.ProjectID, rd.AvatarID, rd.VoiceID, rd.Status, rd.Stage, rd.Progress,
		nullString(rd.AvatarVideoID), nullString(rd.AvatarURL), nullString(rd.VideoURL),
		rd.DurationSeconds, rd.SegmentCount, nullString(plan), nullString(rd.Error),
		formatTime(rd.CreatedAt), formatTime(rd.UpdatedAt))
	return err
}

const renderColumns = `id, project_id, avatar_id, voice_id, status, stage, progress,
	avatar_video_id, avatar_url, video_url, duration_seconds, segment_count, plan, error,
	created_at, updated_at`

func (r *SQLiteRepository) GetRender(ctx context.Context, id string) (*Render, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+renderColumns+` FROM renders WHERE id = ?`, id)
	rd, err := scanRender(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rd, err
}

func (r *SQLiteRepository) ListRenders(ctx context.Context, limit int) ([]*Render, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+renderColumns+` FROM renders ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRenders(rows)
}

func (r *SQLiteRepository) ListRendersByProject(ctx context.Context, projectID string) ([]*Render, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+renderColumns+` FROM renders WHERE project_id = ? ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRenders(rows)
}

func (r *SQLiteRepository) ListPendingRenders(ctx context.Context) ([]*Render, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+renderColumns+` FROM renders WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRenders(rows)
}

func scanRenders(rows *sql.Rows) ([]*Render, error) {
	var renders []*Render
	for rows.Next() {
		rd, err := scanRender(rows)
		if err != nil {
			return nil, err
		}
		renders = append(renders, rd)
	}
	return renders, rows.Err()
}

func scanRender(row rowScanner) (*Render, error) {
	var rd Render
	var avatarVideoID, avatarURL, videoURL, plan, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&rd.ID, &rd.ProjectID, &rd.AvatarID, &rd.VoiceID, &rd.Status, &rd.Stage, &rd.Progress,
		&avatarVideoID, &avatarURL, &videoURL, &rd.DurationSeconds, &rd.SegmentCount, &plan, &errMsg,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rd.AvatarVideoID = avatarVideoID.String
	rd.AvatarURL = avatarURL.String
	rd.VideoURL = videoURL.String
	rd.Plan = decodePlan(plan.String)
	rd.Error = errMsg.String
	rd.CreatedAt = parseTime(createdAt)
	rd.UpdatedAt = parseTime(updatedAt)
	return &rd, nil
}

func (r *SQLiteRepository) UpdateRenderStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE renders SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateRenderProgress(ctx context.Context, id, stage string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE renders SET stage = ?, progress = ?, updated_at = ? WHERE id = ?
	`, stage, progress, formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateRenderAvatar(ctx context.Context, id, videoID, url string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE renders SET avatar_video_id = ?, avatar_url = ?, updated_at = ? WHERE id = ?
	`, nullString(videoID), nullString(url), formatTime(time.Now()), id)
	return err
}

// CompleteRender stores the outcome of a successful render.
func (r *SQLiteRepository) CompleteRender(ctx context.Context, rd *Render) error {
	plan, err := encodePlan(rd.Plan)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE renders SET status = ?, stage = ?, progress = ?, video_url = ?, duration_seconds = ?,
			segment_count = ?, plan = ?, error = NULL, updated_at = ?
		WHERE id = ?
	`, RenderStatusCompleted, rd.Stage, rd.Progress, nullString(rd.VideoURL), rd.DurationSeconds,
		rd.SegmentCount, nullString(plan), formatTime(time.Now()), rd.ID)
	return err
}

func (r *SQLiteRepository) CountRendersByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM renders GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
