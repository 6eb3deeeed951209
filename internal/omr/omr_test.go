package omr

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

var (
	paper = color.NRGBA{R: 245, G: 245, B: 245, A: 255}
	ink   = color.NRGBA{R: 40, G: 40, B: 40, A: 255}
)

func paperImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, paper)
		}
	}
	return img
}

func drawDisk(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

func drawRing(img *image.NRGBA, cx, cy, r int, c color.NRGBA) {
	for dy := -r - 1; dy <= r+1; dy++ {
		for dx := -r - 1; dx <= r+1; dx++ {
			d := math.Hypot(float64(dx), float64(dy))
			if d >= float64(r)-1 && d <= float64(r)+1 {
				img.SetNRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

func fullRegion(img image.Image) scan.Region {
	b := img.Bounds()
	return scan.Region{X: 0, Y: 0, Width: b.Dx(), Height: b.Dy()}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 1.2, cfg.AccumulatorScale, 1e-9)
	assert.InDelta(t, 20.0, cfg.MinDistance, 1e-9)
	assert.InDelta(t, 50.0, cfg.CannyThreshold, 1e-9)
	assert.Equal(t, 30, cfg.AccumulatorThreshold)
	assert.Equal(t, 10, cfg.MinRadius)
	assert.Equal(t, 20, cfg.MaxRadius)
	assert.Empty(t, cfg.AnswerKey)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "scale below one",
			mutate:  func(c *Config) { c.AccumulatorScale = 0.5 },
			wantErr: "accumulator_scale",
		},
		{
			name:    "negative distance",
			mutate:  func(c *Config) { c.MinDistance = -1 },
			wantErr: "min_distance",
		},
		{
			name:    "inverted radius range",
			mutate:  func(c *Config) { c.MinRadius, c.MaxRadius = 20, 10 },
			wantErr: "radius range",
		},
		{
			name:    "bad key entry",
			mutate:  func(c *Config) { c.AnswerKey = []string{"A", "BB"} },
			wantErr: "answer_key[1]",
		},
		{
			name:    "lowercase key entry",
			mutate:  func(c *Config) { c.AnswerKey = []string{"a"} },
			wantErr: "answer_key[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNewGraderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRadius = 0
	_, err := NewGrader(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid omr config")
}

func TestGradeNilImage(t *testing.T) {
	g, err := NewGrader(DefaultConfig())
	require.NoError(t, err)
	_, err = g.Grade(nil, scan.Region{Width: 10, Height: 10})
	assert.Error(t, err)
}

func TestGradeCountsMarks(t *testing.T) {
	g, err := NewGrader(DefaultConfig())
	require.NoError(t, err)

	img := paperImage(320, 200)
	centers := [][2]int{{50, 50}, {120, 50}, {190, 50}, {260, 50}, {50, 130}}
	for _, c := range centers {
		drawDisk(img, c[0], c[1], 15, ink)
	}

	result, err := g.Grade(img, fullRegion(img))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Score)
	assert.Equal(t, 5, result.Total)
	require.Len(t, result.Answers, 5)
	for _, a := range result.Answers {
		assert.True(t, a)
	}
}

func TestGradeBlankRegion(t *testing.T) {
	g, err := NewGrader(DefaultConfig())
	require.NoError(t, err)

	result, err := g.Grade(paperImage(200, 200), scan.Region{X: 0, Y: 0, Width: 200, Height: 200})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.Total)
	assert.Empty(t, result.Answers)
}

func TestGradeHonorsRegion(t *testing.T) {
	g, err := NewGrader(DefaultConfig())
	require.NoError(t, err)

	img := paperImage(300, 120)
	drawDisk(img, 50, 60, 15, ink)  // inside the region
	drawDisk(img, 220, 60, 15, ink) // outside the region

	result, err := g.Grade(img, scan.Region{X: 0, Y: 0, Width: 120, Height: 120})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
}

func TestGradeAgainstAnswerKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnswerKey = []string{"B", "A", "C", "A"}
	g, err := NewGrader(cfg)
	require.NoError(t, err)

	img := paperImage(260, 320)
	optionX := []int{50, 130, 210}
	rowY := []int{40, 115, 190, 265}
	for _, y := range rowY {
		for _, x := range optionX {
			drawRing(img, x, y, 15, ink)
		}
	}
	drawDisk(img, optionX[1], rowY[0], 13, ink) // row 1: B, matches key
	drawDisk(img, optionX[2], rowY[1], 13, ink) // row 2: C, key wants A
	// row 3: left blank
	drawDisk(img, optionX[0], rowY[3], 13, ink) // row 4: double mark
	drawDisk(img, optionX[1], rowY[3], 13, ink)

	result, err := g.Grade(img, fullRegion(img))
	require.NoError(t, err)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, []bool{true, false, false, false}, result.Answers)
}

func TestClusterRows(t *testing.T) {
	circles := []Circle{
		{X: 200, Y: 52, R: 14},
		{X: 40, Y: 50, R: 14},
		{X: 120, Y: 51, R: 14},
		{X: 40, Y: 120, R: 14},
		{X: 120, Y: 121, R: 14},
	}
	rows := clusterRows(circles)
	require.Len(t, rows, 2)
	require.Len(t, rows[0], 3)
	require.Len(t, rows[1], 2)
	assert.InDelta(t, 40.0, rows[0][0].X, 1e-9)
	assert.InDelta(t, 120.0, rows[0][1].X, 1e-9)
	assert.InDelta(t, 200.0, rows[0][2].X, 1e-9)
}

func TestDetectCirclesSingleDisk(t *testing.T) {
	img := paperImage(120, 120)
	drawDisk(img, 60, 60, 15, ink)

	circles := detectCircles(utils.ToGray(img), houghParams{
		accumScale:     1.2,
		minDist:        20,
		cannyThreshold: 50,
		accumThreshold: 30,
		minRadius:      10,
		maxRadius:      20,
	})
	require.Len(t, circles, 1)
	assert.InDelta(t, 60.0, circles[0].X, 3)
	assert.InDelta(t, 60.0, circles[0].Y, 3)
	assert.InDelta(t, 15.0, circles[0].R, 3)
}

func TestSelectedOption(t *testing.T) {
	img := paperImage(200, 60)
	drawRing(img, 40, 30, 15, ink)
	drawRing(img, 100, 30, 15, ink)
	drawRing(img, 160, 30, 15, ink)
	drawDisk(img, 100, 30, 13, ink)

	row := []Circle{
		{X: 40, Y: 30, R: 15},
		{X: 100, Y: 30, R: 15},
		{X: 160, Y: 30, R: 15},
	}
	assert.Equal(t, "B", selectedOption(utils.ToGray(img), row, 128))

	// A second filled bubble voids the row.
	drawDisk(img, 160, 30, 13, ink)
	assert.Equal(t, "", selectedOption(utils.ToGray(img), row, 128))
}
