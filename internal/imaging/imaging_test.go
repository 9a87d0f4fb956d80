package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func pngDataURI(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func decodeResult(t *testing.T, dataURI string) image.Image {
	t.Helper()

	if !strings.HasPrefix(dataURI, "data:image/jpeg;base64,") {
		t.Fatalf("normalized image is not a jpeg data URI: %q", dataURI[:32])
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, "data:image/jpeg;base64,"))
	if err != nil {
		t.Fatalf("failed to decode normalized payload: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("normalized payload is not a jpeg: %v", err)
	}
	return img
}

func TestNormalizeDownscalesWideImages(t *testing.T) {
	out, err := Normalize(pngDataURI(t, 1600, 400), DefaultMaxWidth, DefaultQuality)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	img := decodeResult(t, out)
	if got := img.Bounds().Dx(); got != 800 {
		t.Errorf("width = %d, want 800", got)
	}
	// Aspect ratio preserved: 1600x400 scaled to 800 wide is 200 tall.
	if got := img.Bounds().Dy(); got != 200 {
		t.Errorf("height = %d, want 200", got)
	}
}

func TestNormalizeKeepsNarrowImageDimensions(t *testing.T) {
	out, err := Normalize(pngDataURI(t, 300, 500), DefaultMaxWidth, DefaultQuality)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	img := decodeResult(t, out)
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 500 {
		t.Errorf("dimensions = %dx%d, want 300x500", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestNormalizeRejectsNonImageValues(t *testing.T) {
	cases := []string{
		"https://example.com/avatar.png",
		"data:image/png;base64",
		"data:image/png;base64,!!!not-base64!!!",
		"data:text/plain,hello",
	}

	for _, c := range cases {
		if _, err := Normalize(c, DefaultMaxWidth, DefaultQuality); err == nil {
			t.Errorf("Normalize(%q) succeeded, want error", c)
		}
	}
}

func TestIsDataURI(t *testing.T) {
	if !IsDataURI("data:image/png;base64,AAAA") {
		t.Error("expected data URI to be recognized")
	}
	if IsDataURI("https://example.com/a.png") {
		t.Error("plain URL should not be recognized as data URI")
	}
}
