package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/supernova/supernova/internal/export"
	"github.com/supernova/supernova/internal/studio"
)

const defaultFrameRate = 30.0

// exportEDLHandler serves the composition plan of a completed render as an
// EDL attachment.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		render, err := cfg.Service.GetRender(ctx, chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if render.Status != studio.RenderStatusCompleted || render.Plan == nil {
			WriteError(w, http.StatusConflict, "render has no composition plan yet", "NOT_READY")
			return
		}

		frameRate := defaultFrameRate
		if v := r.URL.Query().Get("fps"); v != "" {
			fps, err := strconv.ParseFloat(v, 64)
			if err != nil || fps <= 0 || fps > 120 {
				WriteError(w, http.StatusBadRequest, "fps must be between 0 and 120", "BAD_REQUEST")
				return
			}
			frameRate = fps
		}

		title := render.ID
		if project, err := cfg.Service.GetProject(ctx, render.ProjectID); err == nil {
			title = project.Idea
		}
		title = export.SanitizeName(title, 120)

		clips := export.FromPlan(render.Plan)
		edl := export.GenerateEDL(clips, title, frameRate)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(title, render.ID)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(edl)); err != nil {
			cfg.Logger.Warn("failed to write edl", "render_id", render.ID, "error", err)
			return
		}

		cfg.Logger.Info("edl exported", "render_id", render.ID, "clips", len(clips), "frame_rate", frameRate)
	}
}
