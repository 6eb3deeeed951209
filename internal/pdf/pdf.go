// Package pdf pulls the sheet photograph out of PDF uploads. Scanner
// apps commonly wrap the photo in a single-page PDF; the pipeline
// accepts those by extracting the largest image embedded on the first
// page and processing it like a direct image upload.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNoScanImage reports a PDF whose first page carries no extractable image.
var ErrNoScanImage = errors.New("no scan image on the first page")

var pdfHeader = []byte("%PDF-")

// IsPDF reports whether the uploaded bytes look like a PDF document.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfHeader)
}

// ExtractScanImage extracts the sheet photograph from a PDF upload:
// the largest image embedded on the first page. pdfcpu's extractor
// works on files, so the upload is staged through a temp file and the
// extracted images through a temp directory.
func ExtractScanImage(data []byte) (image.Image, error) {
	if !IsPDF(data) {
		return nil, errors.New("not a PDF document")
	}

	tempFile, err := os.CreateTemp("", "bubblegrade-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tempFile.Name()) }()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return nil, fmt.Errorf("failed to stage PDF upload: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to stage PDF upload: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "bubblegrade-extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(tempFile.Name(), tempDir, []string{"1"}, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	img, err := largestExtractedImage(tempDir)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNoScanImage
	}
	return img, nil
}

// largestExtractedImage loads every image pdfcpu wrote into dir and
// returns the one covering the most pixels. Unreadable files are
// skipped.
func largestExtractedImage(dir string) (image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction directory: %w", err)
	}

	var best image.Image
	bestArea := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		img, err := loadImageFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		area := img.Bounds().Dx() * img.Bounds().Dy()
		if area > bestArea {
			best, bestArea = img, area
		}
	}
	return best, nil
}

// loadImageFile loads an image from a file path.
func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: reading files pdfcpu just wrote
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}
