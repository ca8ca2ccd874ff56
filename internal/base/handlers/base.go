package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"bases-server/internal/base"
	"bases-server/internal/middleware"
	"bases-server/internal/shared/errors"
	"bases-server/internal/shared/response"
)

// UpgradeSettler persists elapsed upgrade completions. Reads go through it so
// a finished upgrade is visible on the base without waiting for the next
// upgrade call.
type UpgradeSettler interface {
	Settle(ctx context.Context, baseID string) error
	SettleOwned(ctx context.Context, playerID string) error
}

type BaseHandler struct {
	service  *base.Service
	upgrades UpgradeSettler
}

func NewBaseHandler(service *base.Service, upgrades UpgradeSettler) *BaseHandler {
	return &BaseHandler{service: service, upgrades: upgrades}
}

// Collection handles /api/bases: POST creates, GET lists the caller's bases.
func (h *BaseHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		logger := slog.With("handler", "bases")
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
	}
}

func (h *BaseHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "create_base")

	player := middleware.PlayerFromContext(r)
	if player == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	var req base.CreateBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.Validation("invalid request body"))
		return
	}
	req.PlayerID = player.PlayerID
	req.Subscriber = player.Subscriber

	b, err := h.service.Create(ctx, req)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, b)
}

func (h *BaseHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "list_bases")

	player := middleware.PlayerFromContext(r)
	if player == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	// Best effort; unsettled levels catch up on the next read either way.
	if err := h.upgrades.SettleOwned(ctx, player.PlayerID); err != nil {
		logger.Warn("Failed to settle upgrades before list", "player_id", player.PlayerID, "error", err)
	}

	bases, err := h.service.ListByPlayer(ctx, player.PlayerID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if bases == nil {
		bases = []base.Base{}
	}

	response.Success(w, http.StatusOK, bases)
}

// Get handles GET /api/bases/{id}.
func (h *BaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_base")

	if r.Method != http.MethodGet {
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

	// Best effort; the base read below derives the level either way.
	if err := h.upgrades.Settle(ctx, baseID); err != nil {
		logger.Warn("Failed to settle upgrades before read", "base_id", baseID, "error", err)
	}

	b, err := h.service.Get(ctx, player.PlayerID, baseID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, b)
}
