// Package imaging normalizes base64 image data URIs before they are
// persisted: constrain width, preserve aspect ratio, re-encode as JPEG.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// DataURIPrefix marks payload fields that carry an inline image.
	DataURIPrefix = "data:image"

	// DefaultMaxWidth is the widest an inline image is stored at.
	DefaultMaxWidth = 800

	// DefaultQuality is the fixed JPEG quality used on re-encode.
	DefaultQuality = 50
)

var ErrNotDataURI = errors.New("value is not an image data URI")

// IsDataURI reports whether s looks like an inline base64 image.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, DataURIPrefix)
}

// Normalize decodes an image data URI, scales it down to at most maxWidth
// pixels wide (aspect ratio preserved) and re-encodes it as a JPEG data URI
// at the given quality. Images narrower than maxWidth are still re-encoded,
// which is what keeps repeated saves from growing the stored payload.
func Normalize(dataURI string, maxWidth, quality int) (string, error) {
	raw, err := decodeDataURI(dataURI)
	if err != nil {
		return "", err
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	targetWidth := width
	if targetWidth > maxWidth {
		targetWidth = maxWidth
	}
	targetHeight := height * targetWidth / width

	resized := src
	if targetWidth != width {
		dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		resized = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("failed to encode jpeg: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeDataURI(dataURI string) ([]byte, error) {
	if !IsDataURI(dataURI) {
		return nil, ErrNotDataURI
	}

	idx := strings.Index(dataURI, ",")
	if idx < 0 {
		return nil, fmt.Errorf("malformed data URI: missing payload separator")
	}

	header := dataURI[:idx]
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("malformed data URI: unsupported encoding in %q", header)
	}

	raw, err := base64.StdEncoding.DecodeString(dataURI[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	return raw, nil
}
