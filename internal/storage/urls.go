package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cosconsole/internal/model"
)

// DefaultThumbnailSize is the edge length, in pixels, of listed thumbnails.
const DefaultThumbnailSize = 200

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".svg":  true,
}

// BaseURL returns the public origin for objects: the custom domain when it
// is enabled and set, the bucket's default domain otherwise.
func BaseURL(s model.Settings) string {
	if s.UseCustomDomain && s.CustomDomain != "" {
		domain := strings.TrimPrefix(strings.TrimPrefix(s.CustomDomain, "https://"), "http://")
		return "https://" + strings.TrimRight(domain, "/")
	}
	return fmt.Sprintf("https://%s.cos.%s.myqcloud.com", s.COS.Bucket, s.COS.Region)
}

// ObjectURL returns the public URL of key.
func ObjectURL(s model.Settings, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return BaseURL(s) + "/" + strings.Join(segments, "/")
}

// ThumbnailURL appends the bucket's image-processing query that crops the
// object to a size x size square.
func ThumbnailURL(objectURL string, size int) string {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	return fmt.Sprintf("%s?imageMogr2/thumbnail/!%dx%dr/gravity/center/crop/%dx%d", objectURL, size, size, size, size)
}

// IsImageKey reports whether key has an image file extension.
func IsImageKey(key string) bool {
	return imageExtensions[strings.ToLower(path.Ext(key))]
}

// NewObjectKey returns a collision-resistant key of the form
// "<unixMillis>-<random>.<ext>".
func NewObjectKey(ext string, now time.Time) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), id, ext)
}
