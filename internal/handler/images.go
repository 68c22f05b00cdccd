package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cosconsole/internal/model"
)

const multipartOverhead = 1 << 20

type imageLibrary interface {
	ListImages(ctx context.Context, prefix string, maxKeys int) ([]model.Image, error)
	Upload(ctx context.Context, originalName string, data []byte) (model.Image, error)
	Delete(ctx context.Context, key string) error
	Rename(ctx context.Context, oldKey, newKey string) error
}

// ImagesHandler exposes the bucket's image library.
type ImagesHandler struct {
	BaseHandler
	library       imageLibrary
	maxUploadSize int64
}

func NewImagesHandler(library imageLibrary, maxUploadSize int64) *ImagesHandler {
	return &ImagesHandler{library: library, maxUploadSize: maxUploadSize}
}

// List returns the images under the optional "prefix" query parameter.
func (h *ImagesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxKeys := 0
	if v := q.Get("maxKeys"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.errorResponse(w, r, http.StatusBadRequest, "maxKeys must be a positive integer")
			return
		}
		maxKeys = n
	}

	images, err := h.library.ListImages(r.Context(), q.Get("prefix"), maxKeys)
	if err != nil {
		h.failure(w, r, err)
		return
	}
	total := len(images)
	if err := h.writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: images, Total: &total}, nil); err != nil {
		h.logError(r, err)
	}
}

type uploadResult struct {
	model.Image
	OriginalName string `json:"originalName"`
}

// Upload stores the multipart "file" field as a new image.
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			h.errorResponse(w, r, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
			return
		}
		h.errorResponse(w, r, http.StatusBadRequest, "request must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		h.errorResponse(w, r, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		h.serverErrorResponse(w, r, err)
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		h.errorResponse(w, r, http.StatusRequestEntityTooLarge, h.tooLargeMessage())
		return
	}

	img, err := h.library.Upload(r.Context(), header.Filename, data)
	if err != nil {
		h.failure(w, r, err)
		return
	}
	h.ok(w, r, "upload successful", uploadResult{Image: img, OriginalName: header.Filename})
}

func (h *ImagesHandler) tooLargeMessage() string {
	return fmt.Sprintf("file must not be larger than %d MB", h.maxUploadSize>>20)
}

type deleteRequest struct {
	Key string `json:"key"`
}

func (h *ImagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.library.Delete(r.Context(), req.Key); err != nil {
		h.failure(w, r, err)
		return
	}
	h.ok(w, r, "deleted", nil)
}

type renameRequest struct {
	OldKey string `json:"oldKey"`
	NewKey string `json:"newKey"`
}

func (h *ImagesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.library.Rename(r.Context(), req.OldKey, req.NewKey); err != nil {
		h.failure(w, r, err)
		return
	}
	h.ok(w, r, "renamed", nil)
}
