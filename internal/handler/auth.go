package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cosconsole/internal/middleware"
)

type loginService interface {
	Login(ctx context.Context, password string) (string, error)
	TokenTTL() time.Duration
}

// AuthHandler issues and clears the session cookie.
type AuthHandler struct {
	BaseHandler
	console       loginService
	secureCookies bool
}

func NewAuthHandler(console loginService, secureCookies bool) *AuthHandler {
	return &AuthHandler{console: console, secureCookies: secureCookies}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login verifies the admin password and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.console.Login(r.Context(), req.Password)
	if err != nil {
		h.failure(w, r, err)
		return
	}

	ttl := h.console.TokenTTL()
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	})
	slog.Info("auth: admin logged in", "ip", r.RemoteAddr)
	h.ok(w, r, "login successful", nil)
}

// Logout clears the session cookie. The token itself stays valid until it
// expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	h.ok(w, r, "logged out", nil)
}
