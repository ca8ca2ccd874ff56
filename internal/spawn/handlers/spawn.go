package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"bases-server/internal/middleware"
	"bases-server/internal/shared/errors"
	"bases-server/internal/shared/response"
	"bases-server/internal/spawn"
)

type SpawnHandler struct {
	service *spawn.Service
}

func NewSpawnHandler(service *spawn.Service) *SpawnHandler {
	return &SpawnHandler{service: service}
}

// Select handles POST /api/spawn/select.
func (h *SpawnHandler) Select(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "select_spawn")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	player := middleware.PlayerFromContext(r)
	if player == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	var req spawn.SelectRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, logger, errors.Validation("invalid request body"))
			return
		}
	}

	res, err := h.service.Select(ctx, player.PlayerID, req)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, res)
}
