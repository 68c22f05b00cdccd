package media

import (
	"bytes"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypeGIF  = "image/gif"
	TypeWebP = "image/webp"
	TypeBMP  = "image/bmp"
	TypeSVG  = "image/svg+xml"
)

// ErrUnsupportedType is returned for uploads that are not an accepted image.
var ErrUnsupportedType = errors.New("media: unsupported image type")

var extensions = map[string]string{
	TypeJPEG: "jpg",
	TypePNG:  "png",
	TypeGIF:  "gif",
	TypeWebP: "webp",
	TypeBMP:  "bmp",
	TypeSVG:  "svg",
}

// DetectImageType sniffs the content type of data. SVG has no magic number,
// so it is accepted only when name ends in .svg and the document contains an
// <svg element near the start.
func DetectImageType(data []byte, name string) (string, error) {
	ct := http.DetectContentType(data)
	if _, ok := extensions[ct]; ok {
		return ct, nil
	}

	if strings.EqualFold(filepath.Ext(name), ".svg") {
		head := data
		if len(head) > 1024 {
			head = head[:1024]
		}
		if bytes.Contains(bytes.ToLower(head), []byte("<svg")) {
			return TypeSVG, nil
		}
	}
	return "", ErrUnsupportedType
}

// Extension returns the canonical file extension, without the dot, for an
// accepted content type.
func Extension(contentType string) string {
	return extensions[contentType]
}
