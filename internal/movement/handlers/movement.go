package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"bases-server/internal/geo"
	"bases-server/internal/middleware"
	"bases-server/internal/movement"
	"bases-server/internal/shared/errors"
	"bases-server/internal/shared/response"
)

type MovementHandler struct {
	service *movement.Service
}

func NewMovementHandler(service *movement.Service) *MovementHandler {
	return &MovementHandler{service: service}
}

type moveRequest struct {
	Coordinates *geo.Coordinates `json:"coordinates"`
	UseTeleport bool             `json:"use_teleport"`
}

// Move handles POST /api/bases/{id}/move.
func (h *MovementHandler) Move(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "move_base")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	player := middleware.PlayerFromContext(r)
	if player == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	baseID := r.PathValue("id")
	if baseID == "" {
		response.Error(w, r, logger, errors.Validation("base ID is required"))
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.Validation("invalid request body"))
		return
	}
	if req.Coordinates == nil {
		response.Error(w, r, logger, errors.Validation("destination coordinates are required"))
		return
	}

	b, err := h.service.Move(ctx, player.PlayerID, baseID, *req.Coordinates, req.UseTeleport)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, b)
}
