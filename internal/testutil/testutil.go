// Package testutil generates synthetic exam sheet images for tests.
// Real photographs stay out of the repository; every test draws the
// sheet it needs.
package testutil

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// EncodePNG returns the image as PNG bytes, the format scan uploads
// arrive in.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SheetPNG renders the configured sheet and returns it PNG-encoded.
func SheetPNG(t *testing.T, config SheetConfig) []byte {
	t.Helper()

	data, err := EncodePNG(GenerateSheet(config))
	require.NoError(t, err)
	return data
}

// SaveImage writes an image to path as PNG.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	file, err := os.Create(path) //nolint:gosec // test file creation with controlled path
	require.NoError(t, err)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img))
}

// LoadImage reads and decodes an image from path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // test file reading with controlled path
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err)
	return img
}
