// Package health отдает состояние сервиса и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fulfillment-service/internal/http/response"
	"github.com/magabrotheeeer/fulfillment-service/internal/lib/sl"
)

// StorageChecker проверяет доступность основного хранилища.
type StorageChecker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Handler обрабатывает GET /health.
type Handler struct {
	log     *slog.Logger
	storage StorageChecker
}

// New создает новый Handler.
func New(log *slog.Logger, storage StorageChecker) *Handler {
	return &Handler{
		log:     log,
		storage: storage,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if err := h.storage.CheckDatabaseReady(r.Context()); err != nil {
		h.log.Error("database is not ready", slog.String("op", op), sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not ready"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status": "ok",
	}))
}
