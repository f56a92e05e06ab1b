package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/duonordic/sitedeck/internal/api/errors"
	"github.com/duonordic/sitedeck/internal/store"
	"github.com/duonordic/sitedeck/internal/store/postgres"
)

// TemplateHandler serves the published template catalog.
type TemplateHandler struct {
	templates store.TemplateStore
	logger    *slog.Logger
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(templates store.TemplateStore, logger *slog.Logger) *TemplateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateHandler{
		templates: templates,
		logger:    logger,
	}
}

// List handles GET /v1/templates.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	templates, err := h.templates.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing templates", "error", err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// Get handles GET /v1/templates/{idOrSlug}.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.templates.Get(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			WriteError(w, apierrors.NewNotFoundError("Template not found"))
			return
		}
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tmpl)
}

// queryInt reads an integer query parameter with bounds applied.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if name == "limit" && n > 200 {
		return 200
	}
	return n
}
