package handlers

import (
	"log/slog"
	"net/http"

	"bases-server/internal/base"
	"bases-server/internal/shared/errors"
	"bases-server/internal/shared/response"
	"bases-server/internal/template"
)

type TemplateHandler struct {
	repo *template.Repository
}

func NewTemplateHandler(repo *template.Repository) *TemplateHandler {
	return &TemplateHandler{repo: repo}
}

// ListByType handles GET /api/templates/{type}: the full level ladder for one
// base type.
func (h *TemplateHandler) ListByType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "list_templates")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	baseType := r.PathValue("type")
	if !base.IsValidBaseType(baseType) {
		response.Error(w, r, logger, errors.Validationf("unknown base type %q", baseType))
		return
	}

	templates, err := h.repo.ListByType(ctx, baseType)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if templates == nil {
		templates = []template.Template{}
	}

	response.Success(w, http.StatusOK, templates)
}
