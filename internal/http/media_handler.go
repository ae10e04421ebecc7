package http

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/JUNGLI-STORE/jungli-store/internal/media"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type MediaOpener interface {
	Open(ctx context.Context, id string) (*media.Object, error)
}

type MediaHandler struct {
	store  MediaOpener
	logger *zap.Logger
}

func NewMediaHandler(store MediaOpener, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

// GET /api/v1/media/{id}
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	obj, err := h.store.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	// ids are immutable
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.Warn("media stream interrupted", zap.Error(err))
	}
}
