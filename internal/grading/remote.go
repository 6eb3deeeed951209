package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/MeKo-Tech/bubblegrade/internal/fields"
	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// BackendUnavailableError reports a failed call to a delegated grading
// or OCR service, including timeouts and protocol errors.
type BackendUnavailableError struct {
	Service string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend %s unavailable: %v", e.Service, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// RemoteConfig holds the endpoints of the delegated services.
type RemoteConfig struct {
	OMRURL  string        `mapstructure:"omr_url" yaml:"omr_url" json:"omr_url"`
	OCRURL  string        `mapstructure:"ocr_url" yaml:"ocr_url" json:"ocr_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// DefaultRemoteConfig returns the fixed per-call timeout; endpoints
// must be supplied by the deployment.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{Timeout: 60 * time.Second}
}

// Validate checks the configuration for consistency.
func (c RemoteConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	for name, raw := range map[string]string{"omr_url": c.OMRURL, "ocr_url": c.OCRURL} {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must use http or https, got %q", name, u.Scheme)
		}
	}
	return nil
}

// ocrRequest is the metadata part sent alongside the region image.
type ocrRequest struct {
	Region        string        `json:"region"`
	BoundingBox   boundingBox   `json:"boundingBox"`
	Preprocessing preprocessing `json:"preprocessing"`
}

type boundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type preprocessing struct {
	Denoise    bool    `json:"denoise"`
	Sharpen    bool    `json:"sharpen"`
	Contrast   float64 `json:"contrast"`
	Brightness float64 `json:"brightness"`
}

// defaultPreprocessing mirrors the preprocessing the services apply to
// camera captures.
var defaultPreprocessing = preprocessing{Denoise: true, Sharpen: true, Contrast: 1.0, Brightness: 0}

type omrResponse struct {
	Score   int    `json:"score"`
	Answers []bool `json:"answers"`
	Total   int    `json:"total"`
}

type ocrResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Remote delegates grading and field extraction to networked services.
// A timeout or non-success response fails the call; there is no
// partial-credit path.
type Remote struct {
	config RemoteConfig
	client *http.Client
	log    zerolog.Logger
}

// NewRemote creates a backend that calls the configured services.
func NewRemote(config RemoteConfig) (*Remote, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid remote backend config: %w", err)
	}
	return &Remote{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		log:    logging.WithComponent("grading"),
	}, nil
}

// GradeOMR posts the cropped bubble region to the grading service.
func (r *Remote) GradeOMR(ctx context.Context, img image.Image, roi scan.Region) (*scan.OMRResult, error) {
	body, contentType, err := encodeRegionForm(img, roi, nil)
	if err != nil {
		return nil, err
	}

	var payload omrResponse
	if err := r.post(ctx, "omr", r.config.OMRURL, body, contentType, &payload); err != nil {
		return nil, err
	}
	return &scan.OMRResult{Score: payload.Score, Answers: payload.Answers, Total: payload.Total}, nil
}

// ExtractField posts the cropped field region to the OCR service. The
// CURP format invariant holds regardless of where recognition ran: a
// mismatch zeroes the confidence.
func (r *Remote) ExtractField(ctx context.Context, img image.Image, roi scan.Region, field scan.Field) (*scan.FieldResult, error) {
	meta := &ocrRequest{
		Region: string(field),
		BoundingBox: boundingBox{
			X:      roi.X,
			Y:      roi.Y,
			Width:  roi.Width,
			Height: roi.Height,
		},
		Preprocessing: defaultPreprocessing,
	}
	body, contentType, err := encodeRegionForm(img, roi, meta)
	if err != nil {
		return nil, err
	}

	var payload ocrResponse
	if err := r.post(ctx, "ocr", r.config.OCRURL, body, contentType, &payload); err != nil {
		return nil, err
	}

	result := &scan.FieldResult{Confidence: payload.Confidence}
	switch field {
	case scan.FieldCURP:
		result.Text = fields.NormalizeCURP(payload.Text)
		if !fields.ValidCURP(result.Text) {
			result.Confidence = 0
		}
	default:
		result.Text = fields.NormalizeName(payload.Text)
	}
	return result, nil
}

// encodeRegionForm crops roi out of img and builds a multipart body
// with the PNG image and, when given, a JSON request part.
func encodeRegionForm(img image.Image, roi scan.Region, meta *ocrRequest) (*bytes.Buffer, string, error) {
	if img == nil {
		return nil, "", fmt.Errorf("encode region: nil image")
	}
	cropped := utils.CropImageRect(img, roi.Rect())
	if cropped.Bounds().Empty() {
		return nil, "", fmt.Errorf("encode region: empty region %dx%d", roi.Width, roi.Height)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("image", "region.png")
	if err != nil {
		return nil, "", fmt.Errorf("encode region: %w", err)
	}
	if err := png.Encode(fw, cropped); err != nil {
		return nil, "", fmt.Errorf("encode region: %w", err)
	}

	if meta != nil {
		data, err := json.Marshal(meta)
		if err != nil {
			return nil, "", fmt.Errorf("encode region: %w", err)
		}
		field, err := mw.CreateFormField("request")
		if err != nil {
			return nil, "", fmt.Errorf("encode region: %w", err)
		}
		if _, err := field.Write(data); err != nil {
			return nil, "", fmt.Errorf("encode region: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("encode region: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// post sends the form and decodes the JSON response. Transport
// failures, non-success statuses, and undecodable responses all map to
// BackendUnavailableError.
func (r *Remote) post(ctx context.Context, service, endpoint string, body *bytes.Buffer, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return &BackendUnavailableError{Service: service, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return &BackendUnavailableError{Service: service, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &BackendUnavailableError{
			Service: service,
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &BackendUnavailableError{Service: service, Err: fmt.Errorf("invalid response: %w", err)}
	}

	r.log.Debug().
		Str("service", service).
		Dur("duration", time.Since(start)).
		Msg("backend call finished")
	return nil
}
