package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cosconsole/internal/media"
	"github.com/cosconsole/internal/middleware"
	"github.com/cosconsole/internal/model"
	"github.com/cosconsole/internal/service"
	"github.com/cosconsole/internal/storage"
	"github.com/cosconsole/internal/store"
)

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Total   *int            `json:"total"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type fakeConsole struct {
	status    service.Status
	initErr   error
	initReq   service.InitRequest
	loginErr  error
	settings  model.SafeSettings
	updateErr error
	updateReq service.UpdateRequest
}

func (f *fakeConsole) Status(context.Context) service.Status { return f.status }
func (f *fakeConsole) Initialize(_ context.Context, req service.InitRequest) error {
	f.initReq = req
	return f.initErr
}
func (f *fakeConsole) Login(_ context.Context, password string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "token-for-" + password, nil
}
func (f *fakeConsole) TokenTTL() time.Duration                     { return time.Hour }
func (f *fakeConsole) Settings(context.Context) model.SafeSettings { return f.settings }
func (f *fakeConsole) UpdateSettings(_ context.Context, req service.UpdateRequest) error {
	f.updateReq = req
	return f.updateErr
}

func TestLogin(t *testing.T) {
	t.Run("success sets cookie", func(t *testing.T) {
		h := NewAuthHandler(&fakeConsole{}, true)
		rr := httptest.NewRecorder()
		h.Login(rr, jsonRequest(http.MethodPost, "/api/login", `{"password":"hunter22"}`))

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		cookies := rr.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected one cookie, got %d", len(cookies))
		}
		c := cookies[0]
		if c.Name != middleware.AuthCookieName || c.Value != "token-for-hunter22" {
			t.Errorf("cookie = %s=%s", c.Name, c.Value)
		}
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode || c.MaxAge != 3600 {
			t.Errorf("cookie attributes wrong: %+v", c)
		}
		if !decode(t, rr).Success {
			t.Error("success = false")
		}
	})

	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"wrong password", `{"password":"nope"}`, service.ErrInvalidPassword, http.StatusUnauthorized},
		{"not initialized", `{"password":"x"}`, service.ErrNotInitialized, http.StatusBadRequest},
		{"validation", `{"password":""}`, &service.ValidationError{Message: "password is required"}, http.StatusBadRequest},
		{"bad json", `{"password":`, nil, http.StatusBadRequest},
		{"unknown field", `{"pass":"x"}`, nil, http.StatusBadRequest},
		{"unreadable settings", `{"password":"x"}`, &store.ReadError{Location: "f", Err: store.ErrCorrupt}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthHandler(&fakeConsole{loginErr: tc.err}, false)
			rr := httptest.NewRecorder()
			h.Login(rr, jsonRequest(http.MethodPost, "/api/login", tc.body))

			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			if len(rr.Result().Cookies()) != 0 {
				t.Error("cookie set on failed login")
			}
			if resp := decode(t, rr); resp.Success || resp.Message == "" {
				t.Errorf("unexpected body: %+v", resp)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	rr := httptest.NewRecorder()
	NewAuthHandler(&fakeConsole{}, false).Logout(rr, httptest.NewRequest(http.MethodPost, "/api/logout", nil))

	cookies := rr.Result().Cookies()
	if rr.Code != http.StatusOK || len(cookies) != 1 || cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
		t.Errorf("logout did not clear cookie: %d %+v", rr.Code, cookies)
	}
}

func TestSetup(t *testing.T) {
	t.Run("check", func(t *testing.T) {
		h := NewSetupHandler(&fakeConsole{status: service.Status{IsInitialized: true}})
		rr := httptest.NewRecorder()
		h.Check(rr, httptest.NewRequest(http.MethodGet, "/api/setup/check", nil))

		var status service.Status
		if err := json.Unmarshal(decode(t, rr).Data, &status); err != nil {
			t.Fatal(err)
		}
		if !status.IsInitialized {
			t.Error("isInitialized = false")
		}
	})

	t.Run("initialize", func(t *testing.T) {
		fc := &fakeConsole{}
		rr := httptest.NewRecorder()
		body := `{"password":"hunter22","customDomain":"img.example.com","useCustomDomain":true,
			"cosConfig":{"secretId":"AKID","secretKey":"k","bucket":"b-125","region":""}}`
		NewSetupHandler(fc).Initialize(rr, jsonRequest(http.MethodPost, "/api/setup/initialize", body))

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body)
		}
		if fc.initReq.COS.SecretID != "AKID" || !fc.initReq.UseCustomDomain {
			t.Errorf("request not passed through: %+v", fc.initReq)
		}
	})

	t.Run("already initialized", func(t *testing.T) {
		fc := &fakeConsole{initErr: &service.ValidationError{Message: "console is already initialized"}}
		rr := httptest.NewRecorder()
		NewSetupHandler(fc).Initialize(rr, jsonRequest(http.MethodPost, "/api/setup/initialize", `{"password":"x"}`))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rr.Code)
		}
		if msg := decode(t, rr).Message; msg != "console is already initialized" {
			t.Errorf("message = %q", msg)
		}
	})
}

func TestSettings(t *testing.T) {
	fc := &fakeConsole{settings: model.SafeSettings{
		CustomDomain: "img.example.com",
		COS:          model.SafeCOSConfig{SecretID: model.CredentialConfigured, Bucket: "b", Region: "ap-guangzhou"},
	}}
	h := NewSettingsHandler(fc)

	rr := httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	body := rr.Body.String()
	for _, forbidden := range []string{"password", "jwtSecret", "isInitialized"} {
		if strings.Contains(body, forbidden) {
			t.Errorf("settings response leaks %q: %s", forbidden, body)
		}
	}
	if !strings.Contains(body, `"secretId":"configured"`) {
		t.Errorf("missing presence marker: %s", body)
	}

	rr = httptest.NewRecorder()
	h.Update(rr, jsonRequest(http.MethodPost, "/api/settings", `{"customDomain":"cdn.example.com","currentPassword":"a","newPassword":"bbbbbb"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rr.Code, rr.Body)
	}
	if fc.updateReq.CustomDomain == nil || *fc.updateReq.CustomDomain != "cdn.example.com" || fc.updateReq.UseCustomDomain != nil {
		t.Errorf("partial update not preserved: %+v", fc.updateReq)
	}

	fc.updateErr = &service.ValidationError{Message: "current password is incorrect"}
	rr = httptest.NewRecorder()
	h.Update(rr, jsonRequest(http.MethodPost, "/api/settings", `{"currentPassword":"a","newPassword":"bbbbbb"}`))
	if rr.Code != http.StatusBadRequest || decode(t, rr).Message != "current password is incorrect" {
		t.Errorf("validation error not surfaced: %d", rr.Code)
	}
}

type fakeLibrary struct {
	images   []model.Image
	err      error
	prefix   string
	maxKeys  int
	uploaded []byte
	name     string
	deleted  string
	renamed  [2]string
}

func (f *fakeLibrary) ListImages(_ context.Context, prefix string, maxKeys int) ([]model.Image, error) {
	f.prefix, f.maxKeys = prefix, maxKeys
	return f.images, f.err
}
func (f *fakeLibrary) Upload(_ context.Context, name string, data []byte) (model.Image, error) {
	f.name, f.uploaded = name, data
	if f.err != nil {
		return model.Image{}, f.err
	}
	return model.Image{Key: "1-abc.png", URL: "https://x/1-abc.png"}, nil
}
func (f *fakeLibrary) Delete(_ context.Context, key string) error {
	f.deleted = key
	return f.err
}
func (f *fakeLibrary) Rename(_ context.Context, oldKey, newKey string) error {
	f.renamed = [2]string{oldKey, newKey}
	return f.err
}

func TestListImages(t *testing.T) {
	lib := &fakeLibrary{images: []model.Image{{Key: "a.png"}, {Key: "b.jpg"}}}
	h := NewImagesHandler(lib, 10<<20)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/cos/list?prefix=photos/&maxKeys=50", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode(t, rr)
	if resp.Total == nil || *resp.Total != 2 {
		t.Errorf("total = %v", resp.Total)
	}
	if lib.prefix != "photos/" || lib.maxKeys != 50 {
		t.Errorf("query not passed: %q %d", lib.prefix, lib.maxKeys)
	}

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/cos/list?maxKeys=lots", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad maxKeys: status = %d", rr.Code)
	}

	lib.err = storage.ErrIncompleteCredentials
	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/cos/list", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("incomplete credentials: status = %d", rr.Code)
	}

	lib.err = errors.New("connection reset")
	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/cos/list", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("provider failure: status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection reset") {
		t.Error("internal error text leaked to client")
	}
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		lib := &fakeLibrary{}
		body, ct := multipartBody(t, "file", "cat.png", []byte("pngdata"))
		req := httptest.NewRequest(http.MethodPost, "/api/cos/upload", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		NewImagesHandler(lib, 10<<20).Upload(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body)
		}
		if lib.name != "cat.png" || string(lib.uploaded) != "pngdata" {
			t.Errorf("library got %q %q", lib.name, lib.uploaded)
		}
		var result struct {
			Key          string `json:"key"`
			OriginalName string `json:"originalName"`
		}
		if err := json.Unmarshal(decode(t, rr).Data, &result); err != nil {
			t.Fatal(err)
		}
		if result.Key != "1-abc.png" || result.OriginalName != "cat.png" {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		body, ct := multipartBody(t, "other", "cat.png", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/api/cos/upload", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		NewImagesHandler(&fakeLibrary{}, 10<<20).Upload(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rr.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		lib := &fakeLibrary{}
		body, ct := multipartBody(t, "file", "big.png", bytes.Repeat([]byte("x"), 4096))
		req := httptest.NewRequest(http.MethodPost, "/api/cos/upload", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		NewImagesHandler(lib, 1024).Upload(rr, req)
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d", rr.Code)
		}
		if lib.uploaded != nil {
			t.Error("oversized file reached the library")
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NewImagesHandler(&fakeLibrary{}, 10<<20).Upload(rr, jsonRequest(http.MethodPost, "/api/cos/upload", `{}`))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rr.Code)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "notes.txt", []byte("hello"))
		req := httptest.NewRequest(http.MethodPost, "/api/cos/upload", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		NewImagesHandler(&fakeLibrary{err: media.ErrUnsupportedType}, 10<<20).Upload(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rr.Code)
		}
	})
}

func TestDeleteAndRename(t *testing.T) {
	lib := &fakeLibrary{}
	h := NewImagesHandler(lib, 10<<20)

	rr := httptest.NewRecorder()
	h.Delete(rr, jsonRequest(http.MethodDelete, "/api/cos/delete", `{"key":"a.png"}`))
	if rr.Code != http.StatusOK || lib.deleted != "a.png" {
		t.Errorf("delete: %d %q", rr.Code, lib.deleted)
	}

	rr = httptest.NewRecorder()
	h.Rename(rr, jsonRequest(http.MethodPut, "/api/cos/rename", `{"oldKey":"a.png","newKey":"b.png"}`))
	if rr.Code != http.StatusOK || lib.renamed != [2]string{"a.png", "b.png"} {
		t.Errorf("rename: %d %v", rr.Code, lib.renamed)
	}

	errCases := []struct {
		err    error
		status int
	}{
		{storage.ErrSameKey, http.StatusBadRequest},
		{storage.ErrEmptyKey, http.StatusBadRequest},
		{storage.ErrObjectNotFound, http.StatusNotFound},
	}
	for _, tc := range errCases {
		lib.err = tc.err
		rr = httptest.NewRecorder()
		h.Rename(rr, jsonRequest(http.MethodPut, "/api/cos/rename", `{"oldKey":"a.png","newKey":"a.png"}`))
		if rr.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, rr.Code, tc.status)
		}
	}

	lib.err = storage.ErrSameKey
	rr = httptest.NewRecorder()
	h.Rename(rr, jsonRequest(http.MethodPut, "/api/cos/rename", `{"oldKey":"a.png","newKey":"a.png"}`))
	if msg := decode(t, rr).Message; msg != "new key equals the old key" {
		t.Errorf("message = %q", msg)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }
func (f fakePinger) Location() string           { return "test" }

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(fakePinger{})(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("healthy: status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	Health(fakePinger{err: errors.New("down")})(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded: status = %d", rr.Code)
	}
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestHealthLogsWriteFailure(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	w := brokenWriter{httptest.NewRecorder()}
	Health(fakePinger{})(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if !strings.Contains(logs.String(), "connection reset") || !strings.Contains(logs.String(), "/api/health") {
		t.Errorf("write failure not logged: %q", logs.String())
	}
}
