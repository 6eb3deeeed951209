package grading

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
)

func remoteConfigFor(serverURL string) RemoteConfig {
	return RemoteConfig{
		OMRURL:  serverURL + "/grade",
		OCRURL:  serverURL + "/extract",
		Timeout: 5 * time.Second,
	}
}

func TestDefaultRemoteConfig(t *testing.T) {
	cfg := DefaultRemoteConfig()
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestRemoteConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RemoteConfig
		wantErr string
	}{
		{
			name:   "valid",
			config: RemoteConfig{OMRURL: "http://omr:8081/grade", OCRURL: "https://ocr:8082/extract", Timeout: time.Minute},
		},
		{
			name:    "zero timeout",
			config:  RemoteConfig{OMRURL: "http://a", OCRURL: "http://b"},
			wantErr: "timeout",
		},
		{
			name:    "missing omr url",
			config:  RemoteConfig{OCRURL: "http://b", Timeout: time.Minute},
			wantErr: "omr_url is required",
		},
		{
			name:    "bad scheme",
			config:  RemoteConfig{OMRURL: "ftp://a", OCRURL: "http://b", Timeout: time.Minute},
			wantErr: "http or https",
		},
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

func TestGradeOMRRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/grade", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(10<<20))

		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		img, err := png.Decode(file)
		require.NoError(t, err)
		assert.Equal(t, 60, img.Bounds().Dx())
		assert.Equal(t, 40, img.Bounds().Dy())

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"score":   7,
			"answers": []bool{true, true, false, true, true, true, true, true},
			"total":   8,
			"quality": map[string]any{"clarity": 120.5},
		})
	}))
	defer server.Close()

	backend, err := NewRemote(remoteConfigFor(server.URL))
	require.NoError(t, err)

	result, err := backend.GradeOMR(context.Background(), testBackendImage(), scan.Region{X: 10, Y: 20, Width: 60, Height: 40})
	require.NoError(t, err)
	assert.Equal(t, 7, result.Score)
	assert.Equal(t, 8, result.Total)
	assert.Len(t, result.Answers, 8)
}

func TestExtractFieldRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/extract", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(10<<20))

		var meta ocrRequest
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("request")), &meta))
		assert.Equal(t, "nombre", meta.Region)
		assert.Equal(t, boundingBox{X: 5, Y: 10, Width: 80, Height: 30}, meta.BoundingBox)
		assert.True(t, meta.Preprocessing.Denoise)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":       "  Juan  López ",
			"confidence": 0.93,
		})
	}))
	defer server.Close()

	backend, err := NewRemote(remoteConfigFor(server.URL))
	require.NoError(t, err)

	result, err := backend.ExtractField(context.Background(), testBackendImage(), scan.Region{X: 5, Y: 10, Width: 80, Height: 30}, scan.FieldNombre)
	require.NoError(t, err)
	assert.Equal(t, "Juan López", result.Text)
	assert.InDelta(t, 0.93, result.Confidence, 1e-9)
}

func TestExtractFieldRemoteCURP(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		confidence     float64
		wantText       string
		wantConfidence float64
	}{
		{
			name:           "valid code keeps confidence",
			text:           "PEGJ 850315 HJCRRN09",
			confidence:     0.97,
			wantText:       "PEGJ850315HJCRRN09",
			wantConfidence: 0.97,
		},
		{
			name:           "invalid format zeroes confidence",
			text:           "GARBLED",
			confidence:     0.99,
			wantText:       "GARBLED",
			wantConfidence: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"text": tt.text, "confidence": tt.confidence})
			}))
			defer server.Close()

			backend, err := NewRemote(remoteConfigFor(server.URL))
			require.NoError(t, err)

			result, err := backend.ExtractField(context.Background(), testBackendImage(), scan.Region{Width: 80, Height: 30}, scan.FieldCURP)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, result.Text)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 1e-9)
		})
	}
}

func TestRemoteNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	backend, err := NewRemote(remoteConfigFor(server.URL))
	require.NoError(t, err)

	_, err = backend.GradeOMR(context.Background(), testBackendImage(), scan.Region{Width: 50, Height: 50})
	var unavailable *BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "omr", unavailable.Service)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestRemoteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	cfg := remoteConfigFor(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	backend, err := NewRemote(cfg)
	require.NoError(t, err)

	_, err = backend.ExtractField(context.Background(), testBackendImage(), scan.Region{Width: 50, Height: 50}, scan.FieldCURP)
	var unavailable *BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "ocr", unavailable.Service)
}

func TestRemoteConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	cfg := remoteConfigFor(server.URL)
	server.Close()

	backend, err := NewRemote(cfg)
	require.NoError(t, err)

	_, err = backend.GradeOMR(context.Background(), testBackendImage(), scan.Region{Width: 50, Height: 50})
	var unavailable *BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestRemoteInvalidResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	backend, err := NewRemote(remoteConfigFor(server.URL))
	require.NoError(t, err)

	_, err = backend.GradeOMR(context.Background(), testBackendImage(), scan.Region{Width: 50, Height: 50})
	var unavailable *BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, err.Error(), "invalid response")
}
