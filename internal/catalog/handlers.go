package catalog

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/common"
)

// Handler exposes admin catalog endpoints.
type Handler struct {
	service *Service
	tasks   Enqueuer
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	// Tasks, when set, makes refreshes asynchronous.
	Tasks Enqueuer
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, tasks: cfg.Tasks}
}

// Get handles GET /v1/admin/catalog.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	if _, err := h.service.Current(r.Context()); err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	snap, err := h.service.Snapshot()
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// Refresh handles POST /v1/admin/catalog/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	if h.tasks != nil {
		if err := EnqueueRefresh(r.Context(), h.tasks); err != nil {
			common.WriteError(w, mapError(err))
			return
		}
		common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]any{"queued": true}})
		return
	}
	cat, err := h.service.Refresh(r.Context())
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"queued": false, "count": cat.Len()}})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, bundle.ErrMalformedDefinition):
		return &common.AppError{Code: "CATALOG_REJECTED", Message: "catalog rejected", HTTPStatus: http.StatusUnprocessableEntity, Err: err, Details: map[string]any{"reason": err.Error()}}
	case errors.Is(err, ErrRefreshInProgress):
		return common.NewAppError("REFRESH_IN_PROGRESS", "catalog refresh already in progress", http.StatusConflict, err)
	case errors.Is(err, ErrNotLoaded), errors.Is(err, ErrStoreUnavailable):
		return common.NewAppError("CATALOG_UNAVAILABLE", "catalog unavailable", http.StatusServiceUnavailable, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}
