package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"bases-server/internal/middleware"
	"bases-server/internal/shared/errors"
	"bases-server/internal/shared/response"
	"bases-server/internal/upgrade"
)

type UpgradeHandler struct {
	service *upgrade.Service
}

func NewUpgradeHandler(service *upgrade.Service) *UpgradeHandler {
	return &UpgradeHandler{service: service}
}

type startUpgradeRequest struct {
	UpgradeType string `json:"upgrade_type"`
	SkipTime    bool   `json:"skip_time"`
}

// Start handles POST /api/bases/{id}/upgrade.
func (h *UpgradeHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "start_upgrade")

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

	var req startUpgradeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, r, logger, errors.Validation("invalid request body"))
			return
		}
	}

	u, err := h.service.Start(ctx, player.PlayerID, baseID, req.UpgradeType, req.SkipTime)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	status := http.StatusAccepted
	if u.Status == upgrade.StatusCompleted {
		status = http.StatusOK
	}
	response.Success(w, status, u)
}

// Get handles GET /api/upgrades/{id}.
func (h *UpgradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_upgrade")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	player := middleware.PlayerFromContext(r)
	if player == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	upgradeID := r.PathValue("id")
	if upgradeID == "" {
		response.Error(w, r, logger, errors.Validation("upgrade ID is required"))
		return
	}

	u, err := h.service.Get(ctx, player.PlayerID, upgradeID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, u)
}
