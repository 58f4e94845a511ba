package api

import (
	"errors"
	"net/http"
)

const maxAvatarUploadBytes = 200 << 20

// uploadAvatarHandler accepts a multipart training video in the "video"
// field and creates a custom avatar from it. The request stays open while
// the avatar trains, up to the uploader's poll budget.
func uploadAvatarHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Avatars == nil {
			WriteError(w, http.StatusServiceUnavailable, "avatar upload is not available", "UNAVAILABLE")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxAvatarUploadBytes)
		file, header, err := r.FormFile("video")
		if err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				WriteError(w, http.StatusRequestEntityTooLarge, "video file is too large", "TOO_LARGE")
			case errors.Is(err, http.ErrMissingFile):
				WriteError(w, http.StatusBadRequest, "video file is required", "BAD_REQUEST")
			default:
				WriteError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			}
			return
		}
		defer file.Close()

		out, err := cfg.Avatars.Upload(r.Context(), header.Filename, file)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if cfg.Catalog != nil {
			cfg.Catalog.Invalidate()
		}

		message := "avatar is ready"
		if !out.Ready {
			message = "avatar uploaded and still processing, the id can already be used"
		}
		WriteJSON(w, http.StatusCreated, UploadAvatarResponse{
			AvatarID: out.AvatarID,
			Ready:    out.Ready,
			Message:  message,
		})
	}
}
