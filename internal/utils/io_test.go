package utils

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"scan.jpg", true},
		{"scan.JPEG", true},
		{"scan.png", true},
		{"scan.bmp", true},
		{"scan.pdf", false},
		{"scan.tiff", false},
		{"scan", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSupportedImage(tt.path), tt.path)
	}
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("sheet.pdf"))
	assert.True(t, IsPDF("sheet.PDF"))
	assert.False(t, IsPDF("sheet.png"))
}

func TestLoadImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.png")

	src := image.NewNRGBA(image.Rect(0, 0, 12, 8))
	for y := range 8 {
		for x := range 12 {
			src.Set(x, y, color.NRGBA{R: uint8(x * 20), G: 128, B: 64, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestLoadImageErrors(t *testing.T) {
	_, err := LoadImage("")
	require.Error(t, err)
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)

	_, err = LoadImage("missing.docx")
	require.Error(t, err)

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	require.NoError(t, SaveImage(img, path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	require.Error(t, SaveImage(nil, filepath.Join(dir, "nil.png")))
}
