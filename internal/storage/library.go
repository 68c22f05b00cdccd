package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/cosconsole/internal/media"
	"github.com/cosconsole/internal/metrics"
	"github.com/cosconsole/internal/model"
)

const (
	DefaultMaxKeys = 1000
	maxKeyLength   = 850
)

var (
	ErrEmptyKey   = errors.New("storage: object key is required")
	ErrInvalidKey = errors.New("storage: object key is invalid")
	ErrSameKey    = errors.New("storage: new key equals the old key")
)

// SettingsReader supplies the decrypted settings record.
type SettingsReader interface {
	Read(ctx context.Context) (*model.Settings, error)
}

// Library is the image view of the bucket configured in the settings record.
// Each operation reads the current settings, so credential changes take
// effect on the next request.
type Library struct {
	settings    SettingsReader
	newProvider Factory
	now         func() time.Time
}

func NewLibrary(settings SettingsReader, factory Factory) *Library {
	if factory == nil {
		factory = NewCOS
	}
	return &Library{settings: settings, newProvider: factory, now: time.Now}
}

func (l *Library) open(ctx context.Context) (*model.Settings, Provider, error) {
	s, err := l.settings.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !s.COS.Complete() {
		return nil, nil, ErrIncompleteCredentials
	}
	p, err := l.newProvider(s.COS)
	if err != nil {
		return nil, nil, err
	}
	return s, p, nil
}

// ListImages returns the image objects under prefix with their public and
// thumbnail URLs. Non-image objects are skipped.
func (l *Library) ListImages(ctx context.Context, prefix string, maxKeys int) ([]model.Image, error) {
	if maxKeys <= 0 || maxKeys > DefaultMaxKeys {
		maxKeys = DefaultMaxKeys
	}
	s, p, err := l.open(ctx)
	if err != nil {
		return nil, err
	}

	objects, err := p.List(ctx, prefix, maxKeys)
	metrics.StorageOperations.WithLabelValues("list", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	images := make([]model.Image, 0, len(objects))
	for _, o := range objects {
		if !IsImageKey(o.Key) {
			continue
		}
		url := ObjectURL(*s, o.Key)
		images = append(images, model.Image{
			Key:          o.Key,
			URL:          url,
			ThumbnailURL: ThumbnailURL(url, DefaultThumbnailSize),
			Size:         o.Size,
			LastModified: o.LastModified,
			ETag:         o.ETag,
		})
	}
	return images, nil
}

// Upload stores an image under a freshly generated key. The content type is
// sniffed from data and JPEG/PNG metadata is stripped before upload.
func (l *Library) Upload(ctx context.Context, originalName string, data []byte) (model.Image, error) {
	contentType, err := media.DetectImageType(data, originalName)
	if err != nil {
		return model.Image{}, err
	}
	data, err = media.StripMetadata(data, contentType)
	if err != nil {
		return model.Image{}, err
	}

	s, p, err := l.open(ctx)
	if err != nil {
		return model.Image{}, err
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(originalName), "."))
	if ext != media.Extension(contentType) && !(contentType == media.TypeJPEG && ext == "jpeg") {
		ext = media.Extension(contentType)
	}
	key := NewObjectKey(ext, l.now())

	etag, err := p.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	metrics.StorageOperations.WithLabelValues("put", metrics.Result(err)).Inc()
	if err != nil {
		return model.Image{}, err
	}
	slog.Info("storage: image uploaded", "key", key, "size", len(data), "type", contentType)

	url := ObjectURL(*s, key)
	return model.Image{
		Key:          key,
		URL:          url,
		ThumbnailURL: ThumbnailURL(url, DefaultThumbnailSize),
		Size:         int64(len(data)),
		ETag:         etag,
	}, nil
}

// Delete removes the object at key.
func (l *Library) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, p, err := l.open(ctx)
	if err != nil {
		return err
	}
	err = p.Delete(ctx, key)
	metrics.StorageOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	slog.Info("storage: object deleted", "key", key)
	return nil
}

// Rename copies oldKey to newKey and then deletes oldKey. If the delete
// fails the object exists under both keys.
func (l *Library) Rename(ctx context.Context, oldKey, newKey string) error {
	if err := validateKey(oldKey); err != nil {
		return err
	}
	if err := validateKey(newKey); err != nil {
		return err
	}
	if oldKey == newKey {
		return ErrSameKey
	}

	_, p, err := l.open(ctx)
	if err != nil {
		return err
	}
	err = p.Copy(ctx, newKey, oldKey)
	metrics.StorageOperations.WithLabelValues("copy", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	err = p.Delete(ctx, oldKey)
	metrics.StorageOperations.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		slog.Error("storage: rename left source behind", "old", oldKey, "new", newKey, "err", err)
		return err
	}
	slog.Info("storage: object renamed", "old", oldKey, "new", newKey)
	return nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if len(key) > maxKeyLength || strings.HasPrefix(key, "/") || strings.ContainsAny(key, "\x00\r\n") {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return ErrInvalidKey
		}
	}
	return nil
}
