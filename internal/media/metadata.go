package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

// maxPixels bounds the decoded size of an image that gets re-encoded.
const maxPixels = 64 << 20

// ErrTooLarge is returned for images whose dimensions exceed maxPixels.
var ErrTooLarge = errors.New("media: image dimensions too large")

// StripMetadata re-encodes JPEG and PNG uploads so EXIF, GPS and other
// embedded metadata never reach the bucket. Other types are returned as-is.
func StripMetadata(data []byte, contentType string) ([]byte, error) {
	switch contentType {
	case TypeJPEG:
		return stripJPEG(data)
	case TypePNG:
		return stripPNG(data)
	default:
		return data, nil
	}
}

func checkDimensions(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if cfg.Width*cfg.Height > maxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

func stripJPEG(data []byte) ([]byte, error) {
	if err := checkDimensions(data); err != nil {
		return nil, fmt.Errorf("decoding jpeg: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func stripPNG(data []byte) ([]byte, error) {
	if err := checkDimensions(data); err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
