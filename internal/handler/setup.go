package handler

import (
	"context"
	"net/http"

	"github.com/cosconsole/internal/service"
)

type setupService interface {
	Status(ctx context.Context) service.Status
	Initialize(ctx context.Context, req service.InitRequest) error
}

type SetupHandler struct {
	BaseHandler
	console setupService
}

func NewSetupHandler(console setupService) *SetupHandler {
	return &SetupHandler{console: console}
}

// Check reports whether first-time setup has completed.
func (h *SetupHandler) Check(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, "", h.console.Status(r.Context()))
}

// Initialize runs first-time setup.
func (h *SetupHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req service.InitRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.console.Initialize(r.Context(), req); err != nil {
		h.failure(w, r, err)
		return
	}
	h.ok(w, r, "initialization complete", nil)
}
