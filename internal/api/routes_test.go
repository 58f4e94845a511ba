package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/supernova/supernova/internal/avatar"
	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/composition"
	"github.com/supernova/supernova/internal/config"
	"github.com/supernova/supernova/internal/db"
	"github.com/supernova/supernova/internal/footage"
	"github.com/supernova/supernova/internal/progress"
	"github.com/supernova/supernova/internal/scriptgen"
	"github.com/supernova/supernova/internal/studio"
)

type fakeFootage struct {
	calls   atomic.Int32
	perPage atomic.Int32
	err     error
}

func (f *fakeFootage) Search(ctx context.Context, query string, perPage int) ([]broll.Candidate, error) {
	f.calls.Add(1)
	f.perPage.Store(int32(perPage))
	if f.err != nil {
		return nil, f.err
	}
	return []broll.Candidate{{
		PreviewImage: "https://img/" + query + ".jpg",
		Duration:     8,
		Renditions:   []broll.Rendition{{Quality: "hd", Link: "https://cdn/" + query + ".mp4"}},
	}}, nil
}

type testEnv struct {
	cfg     ServerConfig
	repo    studio.Repository
	footage *fakeFootage
	router  http.Handler
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()

	database, err := db.New(filepath.Join(t.TempDir(), "api.db"), logger)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	repo := studio.NewRepository(database.Conn())

	features := config.Features{EnablePlatformSelection: true, EnableTrends: true}
	service := studio.NewService(repo, scriptgen.NewStubGenerator(logger), nil, nil, features, logger)

	hub := progress.NewHub()
	t.Cleanup(hub.Close)

	avatarClient := avatar.NewStubClient(logger)
	searcher := &fakeFootage{}
	pipeline := studio.Pipeline{
		Poller:   avatar.NewPoller(avatarClient, 0, 3, logger),
		Rules:    broll.DefaultRules(),
		Matcher:  broll.NewMatcher(searcher, 2, logger),
		Composer: composition.NewComposer(0, logger),
	}

	cfg := ServerConfig{
		Port:      0,
		Service:   service,
		Runner:    studio.NewRunner(repo, pipeline, hub, time.Millisecond, logger),
		Hub:       hub,
		Catalog:   avatar.NewCachedCatalog(avatarClient, logger),
		Avatars:   avatar.NewAvatarUploader(avatarClient, 0, 3, logger),
		Footage:   searcher,
		Rules:     broll.DefaultRules(),
		Features:  features,
		Logger:    logger,
		StartTime: time.Now().Add(-5 * time.Second),
	}
	return &testEnv{cfg: cfg, repo: repo, footage: searcher, router: NewRouter(cfg)}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) createProject(t *testing.T, idea string) ProjectResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/projects", CreateProjectRequest{Idea: idea, Platform: "tiktok"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /projects status = %d, body %s", rr.Code, rr.Body.String())
	}
	var p ProjectResponse
	decodeInto(t, rr, &p)
	return p
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	return body
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response body: %v (%s)", err, rr.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	env := setupTestEnv(t)

	rr := env.do(t, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["version"] != version {
		t.Errorf("health body = %v", body)
	}
	if uptime, _ := body["uptime_s"].(float64); uptime < 5 {
		t.Errorf("uptime_s = %v, want >= 5", body["uptime_s"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestProjectLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	created := env.createProject(t, "remote work productivity")
	if created.ID == "" || created.ARollScript == "" || created.BRollScript == "" {
		t.Fatalf("created project = %+v", created)
	}
	if created.Platform != "tiktok" {
		t.Errorf("platform = %q, want tiktok", created.Platform)
	}

	rr := env.do(t, http.MethodGet, "/projects", nil)
	var list ProjectsResponse
	decodeInto(t, rr, &list)
	if len(list.Projects) != 1 || list.Projects[0].ID != created.ID {
		t.Fatalf("GET /projects = %+v", list)
	}

	rr = env.do(t, http.MethodPost, "/projects/"+created.ID+"/scripts/regenerate", RegenerateRequest{Kind: "a_roll"})
	if rr.Code != http.StatusOK {
		t.Fatalf("regenerate status = %d, body %s", rr.Code, rr.Body.String())
	}
	var regenerated ProjectResponse
	decodeInto(t, rr, &regenerated)
	if regenerated.ARollScript == created.ARollScript {
		t.Error("a-roll script should change after regeneration")
	}
	if regenerated.BRollScript != created.BRollScript {
		t.Error("b-roll script must be left alone when regenerating the a-roll")
	}

	rr = env.do(t, http.MethodDelete, "/projects/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/projects/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("GET deleted project status = %d, want 404", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "NOT_FOUND" {
		t.Errorf("error code = %v", body["code"])
	}
}

func TestCreateProject_Validation(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: "{"},
		{name: "empty idea", body: `{"idea":"   "}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(tc.body))
			env.router.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestRegenerate_InvalidKind(t *testing.T) {
	env := setupTestEnv(t)
	project := env.createProject(t, "home coffee")

	rr := env.do(t, http.MethodPost, "/projects/"+project.ID+"/scripts/regenerate", RegenerateRequest{Kind: "c_roll"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestSubmitRender(t *testing.T) {
	env := setupTestEnv(t)
	project := env.createProject(t, "remote work")

	rr := env.do(t, http.MethodPost, "/projects/"+project.ID+"/renders", SubmitRenderRequest{AvatarID: "a1"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing voice status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/projects/missing/renders", SubmitRenderRequest{AvatarID: "a1", VoiceID: "v1"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown project status = %d, want 404", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/projects/"+project.ID+"/renders", SubmitRenderRequest{AvatarID: "a1", VoiceID: "v1"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body %s", rr.Code, rr.Body.String())
	}
	var render RenderResponse
	decodeInto(t, rr, &render)
	if render.Status != studio.RenderStatusPending || render.Stage != studio.StageQueued {
		t.Errorf("render = %+v", render)
	}

	rr = env.do(t, http.MethodGet, "/renders/"+render.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET render status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/renders", nil)
	var list RendersResponse
	decodeInto(t, rr, &list)
	if len(list.Renders) != 1 {
		t.Errorf("GET /renders returned %d renders", len(list.Renders))
	}

	rr = env.do(t, http.MethodGet, "/projects/"+project.ID, nil)
	var withRenders ProjectResponse
	decodeInto(t, rr, &withRenders)
	if len(withRenders.Renders) != 1 || withRenders.Renders[0].ID != render.ID {
		t.Errorf("project renders = %+v", withRenders.Renders)
	}

	rr = env.do(t, http.MethodGet, "/renders?limit=zero", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rr.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	env := setupTestEnv(t)
	project := env.createProject(t, "remote work")
	env.do(t, http.MethodPost, "/projects/"+project.ID+"/renders", SubmitRenderRequest{AvatarID: "a1", VoiceID: "v1"})

	env.cfg.Runner.Pause()

	rr := env.do(t, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d", rr.Code)
	}
	var resp StatusResponse
	decodeInto(t, rr, &resp)
	if resp.State != "paused" {
		t.Errorf("state = %q, want paused", resp.State)
	}
	if resp.RenderCounts[studio.RenderStatusPending] != 1 {
		t.Errorf("render counts = %v", resp.RenderCounts)
	}
}

func TestStatusHandler_ReportsLastError(t *testing.T) {
	env := setupTestEnv(t)
	project := env.createProject(t, "remote work")

	rr := env.do(t, http.MethodPost, "/projects/"+project.ID+"/renders", SubmitRenderRequest{AvatarID: "a1", VoiceID: "v1"})
	var render RenderResponse
	decodeInto(t, rr, &render)
	if err := env.repo.UpdateRenderStatus(context.Background(), render.ID, studio.RenderStatusFailed, "avatar timed out"); err != nil {
		t.Fatalf("UpdateRenderStatus() error = %v", err)
	}

	var resp StatusResponse
	decodeInto(t, env.do(t, http.MethodGet, "/status", nil), &resp)
	if resp.State != "error" || resp.LastError != "avatar timed out" {
		t.Errorf("status = %q / %q", resp.State, resp.LastError)
	}
}

func TestParseTimelineHandler(t *testing.T) {
	env := setupTestEnv(t)

	raw := strings.Join([]string{
		"[0:00-0:05] A-ROLL: Hello there",
		"[0:05-0:10] B-ROLL: person typing on a laptop",
		"[0:12-0:10] B-ROLL: backwards cue",
	}, "\n")

	rr := env.do(t, http.MethodPost, "/timeline/parse", ScriptRequest{Script: raw})
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d", rr.Code)
	}

	var resp TimelineResponse
	decodeInto(t, rr, &resp)
	if len(resp.Segments) != 2 {
		t.Fatalf("segments = %+v", resp.Segments)
	}
	if len(resp.Keywords) != 1 || resp.Keywords[0].TimeRangeKey != "0:05-0:10" {
		t.Errorf("keywords = %+v", resp.Keywords)
	}
	if len(resp.Skipped) != 1 {
		t.Errorf("skipped = %v, want one malformed cue", resp.Skipped)
	}
	if resp.TotalDuration != 10 {
		t.Errorf("total duration = %d, want 10", resp.TotalDuration)
	}
}

func TestParseTimelineHandler_NoCues(t *testing.T) {
	env := setupTestEnv(t)

	rr := env.do(t, http.MethodPost, "/timeline/parse", ScriptRequest{Script: "just prose"})
	body := decodeJSONBody(t, rr)
	segments, ok := body["segments"].([]interface{})
	if !ok || len(segments) != 0 {
		t.Errorf("segments = %v, want an empty array", body["segments"])
	}
}

func TestNormalizeHandler(t *testing.T) {
	env := setupTestEnv(t)

	rr := env.do(t, http.MethodPost, "/speech/normalize", ScriptRequest{
		Script: "[0:00-0:05] A-ROLL: **Hello** there\n(smiles)\nWide shot of the desk",
	})
	var resp NormalizeResponse
	decodeInto(t, rr, &resp)
	if resp.Text != "Hello there" {
		t.Errorf("text = %q, want %q", resp.Text, "Hello there")
	}
}

func TestAnalysisHandler(t *testing.T) {
	env := setupTestEnv(t)

	rr := env.do(t, http.MethodPost, "/analysis", AnalysisRequest{Idea: "standing desks"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if _, ok := body["marketSummary"].(map[string]interface{}); !ok {
		t.Errorf("analysis body = %v", body)
	}

	rr = env.do(t, http.MethodPost, "/analysis", AnalysisRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty idea status = %d, want 400", rr.Code)
	}
}

func TestCatalogHandlers(t *testing.T) {
	env := setupTestEnv(t)

	var avatars AvatarsResponse
	decodeInto(t, env.do(t, http.MethodGet, "/avatars", nil), &avatars)
	if len(avatars.Avatars) != 1 || avatars.Avatars[0].ID != "stub_avatar" {
		t.Errorf("avatars = %+v", avatars)
	}

	rr := env.do(t, http.MethodGet, "/avatars?refresh=true", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("refresh status = %d", rr.Code)
	}

	var voices VoicesResponse
	decodeInto(t, env.do(t, http.MethodGet, "/voices", nil), &voices)
	if len(voices.Voices) != 1 || voices.Voices[0].ID != "stub_voice" {
		t.Errorf("voices = %+v", voices)
	}
}

func TestFootageSearchHandler(t *testing.T) {
	env := setupTestEnv(t)

	rr := env.do(t, http.MethodGet, "/footage/search", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing q status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/footage/search?q=city&per_page=100", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp FootageResponse
	decodeInto(t, rr, &resp)
	if resp.Query != "city" || len(resp.Candidates) != 1 {
		t.Errorf("footage = %+v", resp)
	}
	if got := env.footage.perPage.Load(); got != maxFootagePerPage {
		t.Errorf("per_page = %d, want it capped at %d", got, maxFootagePerPage)
	}
}

func TestFootageSearchHandler_UpstreamError(t *testing.T) {
	env := setupTestEnv(t)
	env.footage.err = fmt.Errorf("search: %w", &footage.APIError{StatusCode: 503, Body: "down"})

	rr := env.do(t, http.MethodGet, "/footage/search?q=city", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}

func TestFeaturesHandler(t *testing.T) {
	env := setupTestEnv(t)

	var features config.Features
	decodeInto(t, env.do(t, http.MethodGet, "/features", nil), &features)
	if !features.EnablePlatformSelection || !features.EnableTrends || features.EnableAttachments {
		t.Errorf("features = %+v", features)
	}
}

func TestWriteServiceError(t *testing.T) {
	cfg := ServerConfig{Logger: testLogger()}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid input", err: fmt.Errorf("%w: idea is required", studio.ErrInvalidInput), want: http.StatusBadRequest},
		{name: "empty idea", err: scriptgen.ErrEmptyIdea, want: http.StatusBadRequest},
		{name: "not found", err: fmt.Errorf("project x: %w", studio.ErrNotFound), want: http.StatusNotFound},
		{name: "empty timeline", err: &composition.EmptyTimelineError{}, want: http.StatusUnprocessableEntity},
		{name: "missing avatar source", err: composition.ErrMissingAvatarSource, want: http.StatusUnprocessableEntity},
		{name: "avatar api", err: &avatar.APIError{StatusCode: 500}, want: http.StatusBadGateway},
		{name: "openai api", err: fmt.Errorf("generate scripts: %w", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}), want: http.StatusBadGateway},
		{name: "no content", err: scriptgen.ErrNoContent, want: http.StatusBadGateway},
		{name: "unknown", err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeServiceError(rr, cfg, tc.err)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}
