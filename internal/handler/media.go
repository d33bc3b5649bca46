package handler

import (
	"errors"
	"log"
	"net/http"

	"commentflow/internal/httputil"
	"commentflow/internal/model"
	"commentflow/internal/service"
	"commentflow/internal/transport/http/middleware"
)

type MediaHandler struct {
	mediaService *service.MediaService
	userService  *service.UserService
}

func NewMediaHandler(mediaService *service.MediaService, userService *service.UserService) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		userService:  userService,
	}
}

// UploadAvatar handles POST /me/avatar
// Accepts a multipart "avatar" file, normalizes it and records the new URL
// on the user. The previous avatar object is cleaned up best-effort.
func (h *MediaHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(model.MaxAvatarSizeBytes); err != nil {
		httputil.WriteBadRequest(w, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		httputil.WriteBadRequest(w, "Missing avatar file")
		return
	}
	defer file.Close()

	upload, err := h.mediaService.UploadAvatar(r.Context(), file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequest(w, "Avatar file too large")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequest(w, "Unsupported image type")
		default:
			log.Printf("[ERROR] Upload avatar handler: user=%s err=%v", userID, err)
			httputil.WriteInternalError(w, "Failed to upload avatar")
		}
		return
	}

	previousKey, err := h.userService.SetAvatar(r.Context(), userID, upload)
	if err != nil {
		log.Printf("[ERROR] Upload avatar handler: record avatar user=%s err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to save avatar")
		return
	}

	if previousKey != "" {
		_ = h.mediaService.DeleteObject(r.Context(), previousKey)
	}

	httputil.WriteJSON(w, http.StatusOK, upload)
}
