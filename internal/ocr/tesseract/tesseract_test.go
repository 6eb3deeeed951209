package tesseract

import (
	"context"
	"image"
	"image/color"
	"os/exec"
	"slices"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/bubblegrade/internal/ocr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"spa"}, cfg.Languages)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "valid", config: Config{Languages: []string{"spa", "eng"}}},
		{name: "no languages", config: Config{}, wantErr: "at least one language"},
		{name: "empty language", config: Config{Languages: []string{"spa", ""}}, wantErr: "languages[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	_, err := NewEngine(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ocr config")
}

func TestRecognizeCancelledContext(t *testing.T) {
	engine, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Recognize(ctx, image.NewGray(image.Rect(0, 0, 10, 10)), ocr.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func skipWithoutTesseract(t *testing.T, lang string) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract binary not installed")
	}
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil || !slices.Contains(langs, lang) {
		t.Skipf("tesseract language %q not available", lang)
	}
}

func TestRecognizeSmoke(t *testing.T) {
	skipWithoutTesseract(t, "eng")

	engine, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	img := image.NewNRGBA(image.Rect(0, 0, 120, 24))
	for y := range 24 {
		for x := range 120 {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 16),
	}
	drawer.DrawString("HELLO")
	scaled := imaging.Resize(img, 480, 0, imaging.NearestNeighbor)

	result, err := engine.Recognize(context.Background(), scaled, ocr.Options{
		Languages:   []string{"eng"},
		PageSegMode: ocr.PSMSingleLine,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
}
