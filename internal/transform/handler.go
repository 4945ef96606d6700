package transform

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/toko-bundles/internal/common"
)

// Handler exposes the cart transform function over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Run handles POST /v1/cart-transform/run.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "transform service not configured", nil)
		return
	}
	var req Request
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var details any
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			details = map[string]any{"offset": syntaxErr.Offset}
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON payload", details)
		return
	}
	resp, err := h.service.Run(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, resp)
}
