// Package service implements the console operations behind the HTTP API and
// the operator CLI: setup, login, and settings management.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cosconsole/internal/auth"
	"github.com/cosconsole/internal/model"
)

const (
	// MinPasswordLength is the minimum admin password length in characters.
	MinPasswordLength = 6
	// MaxPasswordBytes is the longest password bcrypt accepts.
	MaxPasswordBytes = 72
)

var (
	// ErrInvalidPassword is returned when a supplied password does not match.
	ErrInvalidPassword = errors.New("service: invalid password")

	// ErrNotInitialized is returned by operations that need a completed setup.
	ErrNotInitialized = errors.New("service: console is not initialized")
)

// ValidationError carries a message that is safe to show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// SettingsStore is the subset of store.SettingsStore the console needs.
type SettingsStore interface {
	ReadRaw(ctx context.Context) (*model.Settings, error)
	Read(ctx context.Context) (*model.Settings, error)
	Update(ctx context.Context, fn func(*model.Settings) error) error
	Replace(ctx context.Context, fn func(current *model.Settings, readErr error) *model.Settings) error
}

type Console struct {
	store    SettingsStore
	tokenTTL time.Duration
	now      func() time.Time
}

func New(store SettingsStore, tokenTTL time.Duration) *Console {
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	return &Console{store: store, tokenTTL: tokenTTL, now: time.Now}
}

func (c *Console) TokenTTL() time.Duration { return c.tokenTTL }

type Status struct {
	IsInitialized bool `json:"isInitialized"`
}

// Status reports whether setup has completed. An unreadable record reports
// as uninitialized.
func (c *Console) Status(ctx context.Context) Status {
	s, _ := c.store.ReadRaw(ctx)
	return Status{IsInitialized: s.IsInitialized}
}

type InitRequest struct {
	Password        string          `json:"password"`
	ConfirmPassword string          `json:"confirmPassword"`
	CustomDomain    string          `json:"customDomain"`
	UseCustomDomain bool            `json:"useCustomDomain"`
	COS             model.COSConfig `json:"cosConfig"`
}

// Initialize runs first-time setup: it generates the signing secret, hashes
// the admin password and stores the bucket configuration. It fails once the
// console is initialized.
func (c *Console) Initialize(ctx context.Context, req InitRequest) error {
	cos := req.COS
	cos.SecretID = strings.TrimSpace(cos.SecretID)
	cos.SecretKey = strings.TrimSpace(cos.SecretKey)
	cos.Bucket = strings.TrimSpace(cos.Bucket)
	cos.Region = strings.TrimSpace(cos.Region)
	if cos.Region == "" {
		cos.Region = model.DefaultRegion
	}

	if req.Password == "" || cos.SecretID == "" || cos.SecretKey == "" || cos.Bucket == "" {
		return invalid("password, secretId, secretKey and bucket are required")
	}
	if err := checkNewPassword(req.Password, req.ConfirmPassword); err != nil {
		return err
	}

	hash, err := auth.Hash(req.Password)
	if err != nil {
		return err
	}
	secret, err := auth.GenerateSecret()
	if err != nil {
		return err
	}

	err = c.store.Update(ctx, func(s *model.Settings) error {
		if s.IsInitialized {
			return invalid("console is already initialized")
		}
		*s = model.Settings{
			CustomDomain:    strings.TrimSpace(req.CustomDomain),
			UseCustomDomain: req.UseCustomDomain,
			Password:        hash,
			JWTSecret:       secret,
			COS:             cos,
			IsInitialized:   true,
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("service: console initialized", "bucket", cos.Bucket, "region", cos.Region)
	return nil
}

// Login checks password against the stored hash and returns a signed
// session token.
func (c *Console) Login(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", invalid("password is required")
	}
	s, err := c.store.ReadRaw(ctx)
	if err != nil {
		return "", err
	}
	if !s.IsInitialized {
		return "", ErrNotInitialized
	}
	if !auth.Verify(s.Password, password) {
		return "", ErrInvalidPassword
	}
	return auth.IssueToken(s.JWTSecret, c.tokenTTL, c.now())
}

// Authenticate verifies a session token against the current signing secret.
func (c *Console) Authenticate(ctx context.Context, token string) error {
	s, _ := c.store.ReadRaw(ctx)
	return auth.VerifyToken(s.JWTSecret, token)
}

// Settings returns the client-facing view of the current record.
func (c *Console) Settings(ctx context.Context) model.SafeSettings {
	s, _ := c.store.Read(ctx)
	return s.Safe()
}

// COSUpdate holds bucket fields to change. Empty fields, and credential
// fields carrying the presence marker, keep their stored value.
type COSUpdate struct {
	SecretID  string `json:"secretId"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
}

type UpdateRequest struct {
	CustomDomain    *string    `json:"customDomain"`
	UseCustomDomain *bool      `json:"useCustomDomain"`
	COS             *COSUpdate `json:"cosConfig"`
	CurrentPassword string     `json:"currentPassword"`
	NewPassword     string     `json:"newPassword"`
	ConfirmPassword string     `json:"confirmPassword"`
}

// UpdateSettings merges req into the stored record. Changing the password
// requires the current one; the signing secret is never changed, so issued
// tokens stay valid until they expire.
func (c *Console) UpdateSettings(ctx context.Context, req UpdateRequest) error {
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			return invalid("current password is required")
		}
		if err := checkNewPassword(req.NewPassword, req.ConfirmPassword); err != nil {
			return err
		}
	}

	return c.store.Update(ctx, func(s *model.Settings) error {
		if !s.IsInitialized {
			return ErrNotInitialized
		}
		if req.CustomDomain != nil {
			s.CustomDomain = strings.TrimSpace(*req.CustomDomain)
		}
		if req.UseCustomDomain != nil {
			s.UseCustomDomain = *req.UseCustomDomain
		}
		if req.COS != nil {
			s.COS.SecretID = keepIfUnset(s.COS.SecretID, req.COS.SecretID)
			s.COS.SecretKey = keepIfUnset(s.COS.SecretKey, req.COS.SecretKey)
			s.COS.Bucket = keepIfUnset(s.COS.Bucket, req.COS.Bucket)
			s.COS.Region = keepIfUnset(s.COS.Region, req.COS.Region)
		}
		if req.NewPassword != "" {
			if !auth.Verify(s.Password, req.CurrentPassword) {
				return invalid("current password is incorrect")
			}
			hash, err := auth.Hash(req.NewPassword)
			if err != nil {
				return err
			}
			s.Password = hash
			slog.Info("service: admin password changed")
		}
		return nil
	})
}

// Reset returns the record to its uninitialized state so setup can run
// again, keeping the domain preferences. It is the recovery path for a lost
// or corrupt signing secret and overwrites a record that cannot be read.
func (c *Console) Reset(ctx context.Context) error {
	err := c.store.Replace(ctx, func(current *model.Settings, readErr error) *model.Settings {
		if readErr != nil {
			slog.Warn("service: resetting unreadable settings", "err", readErr)
		}
		fresh := model.DefaultSettings()
		fresh.CustomDomain = current.CustomDomain
		fresh.UseCustomDomain = current.UseCustomDomain
		return fresh
	})
	if err != nil {
		return err
	}
	slog.Warn("service: settings reset, setup must be run again")
	return nil
}

func checkNewPassword(password, confirm string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return invalid("password must be at least 6 characters")
	}
	if len(password) > MaxPasswordBytes {
		return invalid("password must be at most 72 bytes")
	}
	if confirm != "" && confirm != password {
		return invalid("passwords do not match")
	}
	return nil
}

func keepIfUnset(stored, incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" || incoming == model.CredentialConfigured {
		return stored
	}
	return incoming
}
