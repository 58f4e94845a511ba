package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sashabaranov/go-openai"

	"github.com/supernova/supernova/internal/avatar"
	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/composition"
	"github.com/supernova/supernova/internal/creator"
	"github.com/supernova/supernova/internal/script"
	"github.com/supernova/supernova/internal/scriptgen"
	"github.com/supernova/supernova/internal/studio"
)

const (
	version               = "0.1.0"
	defaultFootagePerPage = 5
	maxFootagePerPage     = 20
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/status", statusHandler(cfg))
	r.Get("/features", featuresHandler(cfg))

	r.Post("/projects", createProjectHandler(cfg))
	r.Get("/projects", listProjectsHandler(cfg))
	r.Get("/projects/{id}", getProjectHandler(cfg))
	r.Delete("/projects/{id}", deleteProjectHandler(cfg))
	r.Post("/projects/{id}/scripts/regenerate", regenerateHandler(cfg))
	r.Post("/projects/{id}/renders", submitRenderHandler(cfg))

	r.Post("/analysis", analysisHandler(cfg))
	r.Post("/timeline/parse", parseTimelineHandler(cfg))
	r.Post("/speech/normalize", normalizeHandler(cfg))

	r.Get("/renders", listRendersHandler(cfg))
	r.Get("/renders/{id}", getRenderHandler(cfg))
	r.Get("/renders/{id}/events", renderEventsHandler(cfg))
	r.Get("/renders/{id}/export.edl", exportEDLHandler(cfg))

	r.Get("/avatars", listAvatarsHandler(cfg))
	r.Post("/avatars", uploadAvatarHandler(cfg))
	r.Get("/voices", listVoicesHandler(cfg))
	r.Get("/footage/search", footageSearchHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Version:   version,
			UptimeS:   uptime,
			InstallID: cfg.InstallID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		counts, err := cfg.Service.RenderCounts(ctx)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to count renders", "INTERNAL_ERROR")
			return
		}
		renders, _ := cfg.Service.ListRenders(ctx, 10)

		state := "idle"
		var activeRender *RenderResponse
		lastError := ""

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		for _, rd := range renders {
			if rd.Status == studio.RenderStatusRunning && activeRender == nil {
				state = "rendering"
				resp := RenderToResponse(rd)
				resp.Plan = nil
				activeRender = &resp
			}
			if rd.Status == studio.RenderStatusFailed && lastError == "" {
				lastError = rd.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		resp := StatusResponse{
			State:        state,
			LastError:    lastError,
			RenderCounts: counts,
			ActiveRender: activeRender,
		}
		if cfg.Runner != nil {
			resp.RendersActive = cfg.Runner.ActiveRenders()
		}
		if cfg.Hub != nil {
			resp.EventSubscribers = cfg.Hub.Subscribers()
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func featuresHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Features)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		project, err := cfg.Service.CreateProject(r.Context(), studio.CreateProjectInput{
			Idea:           req.Idea,
			Platform:       req.Platform,
			YouTubeChannel: req.YouTubeChannel,
		})
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusCreated, ProjectToResponse(project))
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Service.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		project, err := cfg.Service.GetProject(r.Context(), id)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		resp := ProjectToResponse(project)
		renders, err := cfg.Service.ListProjectRenders(r.Context(), id)
		if err != nil {
			cfg.Logger.Warn("failed to list project renders", "project_id", id, "error", err)
		}
		resp.Renders = RendersToResponse(renders)
		WriteJSON(w, http.StatusOK, resp)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func regenerateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		kind, err := scriptgen.ParseKind(req.Kind)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		project, err := cfg.Service.RegenerateScript(r.Context(), chi.URLParam(r, "id"), kind)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusOK, ProjectToResponse(project))
	}
}

func analysisHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		analysis, err := cfg.Service.Analyze(r.Context(), studio.AnalyzeInput{
			Idea:           req.Idea,
			YouTubeChannel: req.YouTubeChannel,
			IncludeTrends:  req.IncludeTrends,
		})
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusOK, analysis)
	}
}

func parseTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		segments, skipped := script.ParseTimeline(req.Script)

		resp := TimelineResponse{
			Segments: segments,
			Keywords: cfg.Rules.ExtractKeywords(segments),
			Skipped:  make([]string, len(skipped)),
		}
		if resp.Segments == nil {
			resp.Segments = []script.Segment{}
		}
		for i, e := range skipped {
			resp.Skipped[i] = e.Error()
		}
		for _, seg := range segments {
			resp.TotalDuration = max(resp.TotalDuration, seg.End)
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func normalizeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusOK, NormalizeResponse{Text: script.NormalizeForSpeech(req.Script)})
	}
}

func submitRenderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		render, err := cfg.Service.SubmitRender(r.Context(), chi.URLParam(r, "id"), req.AvatarID, req.VoiceID)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, RenderToResponse(render))
	}
}

func listRendersHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		renders, err := cfg.Service.ListRenders(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list renders", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, RendersResponse{Renders: RendersToResponse(renders)})
	}
}

func getRenderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render, err := cfg.Service.GetRender(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, RenderToResponse(render))
	}
}

func listAvatarsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("refresh") == "true" {
			cfg.Catalog.Invalidate()
		}
		cat, err := cfg.Catalog.Get(r.Context())
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, AvatarsResponse{
			Avatars:   cat.Avatars,
			FetchedAt: cat.FetchedAt.Format(time.RFC3339),
		})
	}
}

func listVoicesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat, err := cfg.Catalog.Get(r.Context())
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, VoicesResponse{
			Voices:    cat.Voices,
			FetchedAt: cat.FetchedAt.Format(time.RFC3339),
		})
	}
}

func footageSearchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			WriteError(w, http.StatusBadRequest, "q is required", "BAD_REQUEST")
			return
		}

		perPage := defaultFootagePerPage
		if v := r.URL.Query().Get("per_page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "per_page must be a positive integer", "BAD_REQUEST")
				return
			}
			perPage = min(n, maxFootagePerPage)
		}

		candidates, err := cfg.Footage.Search(r.Context(), query, perPage)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if candidates == nil {
			candidates = []broll.Candidate{}
		}

		WriteJSON(w, http.StatusOK, FootageResponse{Query: query, Candidates: candidates})
	}
}

// retryableError is implemented by the API errors of the upstream service
// clients.
type retryableError interface {
	error
	IsRetryable() bool
}

// writeServiceError maps domain and upstream errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, cfg ServerConfig, err error) {
	var (
		emptyTimeline *composition.EmptyTimelineError
		upstream      retryableError
		openaiErr     *openai.APIError
		openaiReq     *openai.RequestError
		avatarFailed  *avatar.AvatarCreationFailure
	)

	switch {
	case errors.Is(err, studio.ErrInvalidInput), errors.Is(err, scriptgen.ErrEmptyIdea),
		errors.Is(err, creator.ErrInvalidChannel):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, studio.ErrNotFound), errors.Is(err, creator.ErrChannelNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.As(err, &emptyTimeline), errors.Is(err, composition.ErrMissingAvatarSource):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "UNPROCESSABLE")
	case errors.As(err, &upstream), errors.As(err, &openaiErr), errors.As(err, &openaiReq),
		errors.As(err, &avatarFailed), errors.Is(err, scriptgen.ErrNoContent):
		cfg.Logger.Warn("upstream service error", "error", err)
		WriteError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_ERROR")
	default:
		cfg.Logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
