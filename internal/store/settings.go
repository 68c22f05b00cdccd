package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cosconsole/internal/crypto"
	"github.com/cosconsole/internal/metrics"
	"github.com/cosconsole/internal/model"
)

// SettingsStore reads and writes the settings record, encrypting the bucket
// credentials at rest. Writes from one process are serialized; concurrent
// writers in other processes are last-write-wins.
type SettingsStore struct {
	backend Backend
	codec   *crypto.Codec
	mu      sync.Mutex
}

func NewSettingsStore(backend Backend, codec *crypto.Codec) *SettingsStore {
	return &SettingsStore{backend: backend, codec: codec}
}

func (s *SettingsStore) Location() string { return s.backend.Location() }

func (s *SettingsStore) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

// ReadRaw returns the stored record merged over the defaults, without
// decrypting anything. It always returns a record: a missing record yields
// the defaults and a nil error, an unreadable or corrupt one yields the
// defaults and a *ReadError.
func (s *SettingsStore) ReadRaw(ctx context.Context) (*model.Settings, error) {
	metrics.SettingsReads.Inc()

	data, err := s.backend.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		metrics.SettingsDefaultsSubstituted.WithLabelValues("missing").Inc()
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return s.fallback("unreadable", err)
	}

	settings := model.DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return s.fallback("corrupt", fmt.Errorf("%w: %v", ErrCorrupt, err))
	}
	return settings, nil
}

func (s *SettingsStore) fallback(reason string, err error) (*model.Settings, error) {
	metrics.SettingsDefaultsSubstituted.WithLabelValues(reason).Inc()
	slog.Warn("store: settings "+reason+", using defaults", "location", s.backend.Location(), "err", err)
	return model.DefaultSettings(), &ReadError{Location: s.backend.Location(), Err: err}
}

// Read returns the record with the bucket credentials decrypted under the
// record's own signing secret. A credential that fails to decrypt is logged
// and kept in its stored form. Only a *ReadError from ReadRaw is returned.
func (s *SettingsStore) Read(ctx context.Context) (*model.Settings, error) {
	settings, _, err := s.read(ctx)
	return settings, err
}

// undecrypted holds the stored form of credentials that failed to decrypt.
type undecrypted struct {
	secretID, secretKey string
}

func (s *SettingsStore) read(ctx context.Context) (*model.Settings, undecrypted, error) {
	raw, readErr := s.ReadRaw(ctx)

	dec, err := s.codec.DecryptSensitiveFields(*raw, raw.JWTSecret)
	var kept undecrypted
	if err != nil {
		metrics.SettingsDecryptFailures.Inc()
		slog.Error("store: credential decryption failed", "location", s.backend.Location(), "err", err)
		if dec.COS.SecretID == raw.COS.SecretID && crypto.LooksEncrypted(raw.COS.SecretID) {
			kept.secretID = raw.COS.SecretID
		}
		if dec.COS.SecretKey == raw.COS.SecretKey && crypto.LooksEncrypted(raw.COS.SecretKey) {
			kept.secretKey = raw.COS.SecretKey
		}
	}
	return &dec, kept, readErr
}

// Write encrypts the bucket credentials with the record's signing secret and
// persists the record. settings is not modified.
func (s *SettingsStore) Write(ctx context.Context, settings *model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, settings, undecrypted{})
}

// Update applies fn to the current record and writes the result, holding the
// writer lock across the read and the write. It refuses to run over a record
// that could not be read, so a corrupt record is never replaced by defaults.
func (s *SettingsStore) Update(ctx context.Context, fn func(*model.Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, kept, err := s.read(ctx)
	if err != nil {
		return err
	}
	if err := fn(settings); err != nil {
		return err
	}
	return s.write(ctx, settings, kept)
}

// Replace writes the record returned by fn, holding the writer lock across
// the read and the write. Unlike Update it also runs over a record that could
// not be read: fn receives the defaults and the *ReadError.
func (s *SettingsStore) Replace(ctx context.Context, fn func(current *model.Settings, readErr error) *model.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, readErr := s.ReadRaw(ctx)
	return s.write(ctx, fn(current, readErr), undecrypted{})
}

func (s *SettingsStore) write(ctx context.Context, settings *model.Settings, kept undecrypted) error {
	loc := s.backend.Location()

	// Credentials that could not be decrypted and were left untouched are
	// written back in their stored form rather than encrypted a second time.
	plain := *settings
	if kept.secretID != "" && plain.COS.SecretID == kept.secretID {
		plain.COS.SecretID = ""
	}
	if kept.secretKey != "" && plain.COS.SecretKey == kept.secretKey {
		plain.COS.SecretKey = ""
	}

	enc, err := s.codec.EncryptSensitiveFields(plain, settings.JWTSecret)
	if err != nil {
		metrics.SettingsWrites.WithLabelValues("error").Inc()
		return &PersistenceError{Op: "encrypt", Location: loc, Err: err}
	}
	if enc.COS.SecretID == "" && kept.secretID != "" && settings.COS.SecretID == kept.secretID {
		enc.COS.SecretID = kept.secretID
	}
	if enc.COS.SecretKey == "" && kept.secretKey != "" && settings.COS.SecretKey == kept.secretKey {
		enc.COS.SecretKey = kept.secretKey
	}

	data, err := json.MarshalIndent(enc, "", "  ")
	if err != nil {
		metrics.SettingsWrites.WithLabelValues("error").Inc()
		return &PersistenceError{Op: "encode", Location: loc, Err: err}
	}
	if err := s.backend.Save(ctx, data); err != nil {
		metrics.SettingsWrites.WithLabelValues("error").Inc()
		slog.Error("store: save settings", "location", loc, "err", err)
		return &PersistenceError{Op: "save", Location: loc, Err: err}
	}

	metrics.SettingsWrites.WithLabelValues("ok").Inc()
	slog.Info("store: settings saved", "location", loc)
	return nil
}

// IsInitialized reports the stored initialization flag. An unreadable record
// counts as uninitialized.
func (s *SettingsStore) IsInitialized(ctx context.Context) bool {
	settings, _ := s.ReadRaw(ctx)
	return settings.IsInitialized
}

// ValidateCredentials reports whether cfg has everything needed to reach the
// bucket.
func ValidateCredentials(cfg model.COSConfig) bool {
	return cfg.Complete()
}
