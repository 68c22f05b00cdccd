package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cosconsole/internal/media"
	"github.com/cosconsole/internal/middleware"
	"github.com/cosconsole/internal/service"
	"github.com/cosconsole/internal/storage"
	"github.com/cosconsole/internal/store"
)

// failure translates an error from the service or storage layers into a
// response. Errors without a client-facing meaning become a 500.
func (h *BaseHandler) failure(w http.ResponseWriter, r *http.Request, err error) {
	var validation *service.ValidationError
	var readErr *store.ReadError

	switch {
	case errors.As(err, &validation):
		h.errorResponse(w, r, http.StatusBadRequest, validation.Message)
	case errors.Is(err, service.ErrInvalidPassword):
		h.errorResponse(w, r, http.StatusUnauthorized, "invalid password")
	case errors.Is(err, service.ErrNotInitialized):
		h.errorResponseWithData(w, r, http.StatusBadRequest, "console is not initialized",
			map[string]string{"redirect": middleware.SetupPath})
	case errors.Is(err, storage.ErrIncompleteCredentials):
		h.errorResponse(w, r, http.StatusBadRequest, "bucket configuration is incomplete")
	case errors.Is(err, storage.ErrEmptyKey),
		errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, storage.ErrSameKey):
		h.errorResponse(w, r, http.StatusBadRequest, errMessage(err))
	case errors.Is(err, storage.ErrObjectNotFound):
		h.errorResponse(w, r, http.StatusNotFound, "object not found")
	case errors.Is(err, media.ErrUnsupportedType):
		h.errorResponse(w, r, http.StatusBadRequest, "only image files are allowed")
	case errors.Is(err, media.ErrTooLarge):
		h.errorResponse(w, r, http.StatusBadRequest, "image dimensions are too large")
	case errors.As(err, &readErr):
		h.logError(r, err)
		h.errorResponse(w, r, http.StatusInternalServerError, "settings could not be read")
	default:
		h.serverErrorResponse(w, r, err)
	}
}

// errMessage drops the package prefix from a sentinel error's text.
func errMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "storage: ")
}
