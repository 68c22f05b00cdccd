package handler

import (
	"context"
	"net/http"

	"github.com/cosconsole/internal/model"
	"github.com/cosconsole/internal/service"
)

type settingsService interface {
	Settings(ctx context.Context) model.SafeSettings
	UpdateSettings(ctx context.Context, req service.UpdateRequest) error
}

// SettingsHandler serves the masked settings view and applies updates.
type SettingsHandler struct {
	BaseHandler
	console settingsService
}

func NewSettingsHandler(console settingsService) *SettingsHandler {
	return &SettingsHandler{console: console}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, "", h.console.Settings(r.Context()))
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.console.UpdateSettings(r.Context(), req); err != nil {
		h.failure(w, r, err)
		return
	}
	h.ok(w, r, "settings saved", nil)
}
