// Package omr grades the bubble-mark region of a scanned answer sheet.
// Detected circular marks are either counted directly or, when an
// answer key is configured, clustered into question rows and compared
// against the key.
package omr

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/MeKo-Tech/bubblegrade/internal/logging"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// Config controls circle detection and grading.
type Config struct {
	AccumulatorScale     float64  `mapstructure:"accumulator_scale" yaml:"accumulator_scale" json:"accumulator_scale"`
	MinDistance          float64  `mapstructure:"min_distance" yaml:"min_distance" json:"min_distance"`
	CannyThreshold       float64  `mapstructure:"canny_threshold" yaml:"canny_threshold" json:"canny_threshold"`
	AccumulatorThreshold int      `mapstructure:"accumulator_threshold" yaml:"accumulator_threshold" json:"accumulator_threshold"`
	MinRadius            int      `mapstructure:"min_radius" yaml:"min_radius" json:"min_radius"`
	MaxRadius            int      `mapstructure:"max_radius" yaml:"max_radius" json:"max_radius"`
	MarkThreshold        float64  `mapstructure:"mark_threshold" yaml:"mark_threshold" json:"mark_threshold"`
	AnswerKey            []string `mapstructure:"answer_key" yaml:"answer_key" json:"answer_key"`
}

// DefaultConfig returns detection settings tuned for bubble marks of
// the standard sheet. The answer key is empty, so every detected mark
// counts as a correct answer.
func DefaultConfig() Config {
	return Config{
		AccumulatorScale:     1.2,
		MinDistance:          20,
		CannyThreshold:       50,
		AccumulatorThreshold: 30,
		MinRadius:            10,
		MaxRadius:            20,
		MarkThreshold:        128,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.AccumulatorScale < 1 {
		return fmt.Errorf("accumulator_scale must be >= 1, got %g", c.AccumulatorScale)
	}
	if c.MinDistance <= 0 {
		return fmt.Errorf("min_distance must be positive, got %g", c.MinDistance)
	}
	if c.CannyThreshold <= 0 {
		return fmt.Errorf("canny_threshold must be positive, got %g", c.CannyThreshold)
	}
	if c.AccumulatorThreshold <= 0 {
		return fmt.Errorf("accumulator_threshold must be positive, got %d", c.AccumulatorThreshold)
	}
	if c.MinRadius <= 0 || c.MaxRadius < c.MinRadius {
		return fmt.Errorf("invalid radius range [%d, %d]", c.MinRadius, c.MaxRadius)
	}
	if c.MarkThreshold <= 0 || c.MarkThreshold >= 255 {
		return fmt.Errorf("mark_threshold must be in (0, 255), got %g", c.MarkThreshold)
	}
	for i, a := range c.AnswerKey {
		if len(a) != 1 || a[0] < 'A' || a[0] > 'Z' {
			return fmt.Errorf("answer_key[%d] must be a single letter A-Z, got %q", i, a)
		}
	}
	return nil
}

// Grader detects and scores bubble marks.
type Grader struct {
	config Config
	log    zerolog.Logger
}

// NewGrader creates a grader with the given configuration.
func NewGrader(config Config) (*Grader, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid omr config: %w", err)
	}
	return &Grader{
		config: config,
		log:    logging.WithComponent("omr"),
	}, nil
}

// Grade crops the bubble region from img and scores the marks found in
// it. Without an answer key every detected circle counts: score and
// total both equal the detection count.
func (g *Grader) Grade(img image.Image, roi scan.Region) (*scan.OMRResult, error) {
	if img == nil {
		return nil, fmt.Errorf("grade omr: nil image")
	}
	cropped := utils.CropImageRect(img, roi.Rect())
	if cropped.Bounds().Empty() {
		return nil, fmt.Errorf("grade omr: empty region %dx%d", roi.Width, roi.Height)
	}

	gray := utils.ToGray(cropped)
	blurred := utils.GaussianBlur5(gray)
	circles := detectCircles(blurred, houghParams{
		accumScale:     g.config.AccumulatorScale,
		minDist:        g.config.MinDistance,
		cannyThreshold: g.config.CannyThreshold,
		accumThreshold: g.config.AccumulatorThreshold,
		minRadius:      g.config.MinRadius,
		maxRadius:      g.config.MaxRadius,
	})

	var result *scan.OMRResult
	if len(g.config.AnswerKey) == 0 {
		result = countMarks(circles)
	} else {
		result = g.gradeAgainstKey(gray, circles)
	}

	g.log.Debug().
		Int("circles", len(circles)).
		Int("score", result.Score).
		Int("total", result.Total).
		Msg("omr region graded")
	return result, nil
}

// countMarks treats every detected circle as a correct answer.
func countMarks(circles []Circle) *scan.OMRResult {
	answers := make([]bool, len(circles))
	for i := range answers {
		answers[i] = true
	}
	return &scan.OMRResult{Score: len(circles), Answers: answers, Total: len(circles)}
}

// gradeAgainstKey clusters circles into question rows, picks the filled
// option per row, and compares it with the configured key. Rows with no
// filled bubble or more than one count as incorrect.
func (g *Grader) gradeAgainstKey(gray *image.Gray, circles []Circle) *scan.OMRResult {
	key := g.config.AnswerKey
	rows := clusterRows(circles)

	answers := make([]bool, len(key))
	score := 0
	for i, want := range key {
		if i >= len(rows) {
			break
		}
		if selectedOption(gray, rows[i], g.config.MarkThreshold) == want {
			answers[i] = true
			score++
		}
	}
	return &scan.OMRResult{Score: score, Answers: answers, Total: len(key)}
}

// clusterRows groups circles into horizontal rows ordered top to
// bottom, each row ordered left to right. Circles within one mean
// radius vertically belong to the same row.
func clusterRows(circles []Circle) [][]Circle {
	if len(circles) == 0 {
		return nil
	}
	sorted := append([]Circle(nil), circles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	meanR := 0.0
	for _, c := range sorted {
		meanR += c.R
	}
	meanR /= float64(len(sorted))

	var rows [][]Circle
	current := []Circle{sorted[0]}
	for _, c := range sorted[1:] {
		if c.Y-current[len(current)-1].Y > meanR {
			rows = append(rows, current)
			current = []Circle{c}
			continue
		}
		current = append(current, c)
	}
	rows = append(rows, current)

	for _, row := range rows {
		sort.Slice(row, func(i, j int) bool { return row[i].X < row[j].X })
	}
	return rows
}

// selectedOption returns the option letter of the single filled bubble
// in a row, or "" when none or several are filled.
func selectedOption(gray *image.Gray, row []Circle, markThreshold float64) string {
	selected := -1
	for i, c := range row {
		if meanIntensity(gray, c) >= markThreshold {
			continue
		}
		if selected != -1 {
			return ""
		}
		selected = i
	}
	if selected == -1 {
		return ""
	}
	return string(rune('A' + selected))
}

// meanIntensity samples the inner disk of a circle, staying clear of
// the printed outline.
func meanIntensity(gray *image.Gray, c Circle) float64 {
	bounds := gray.Bounds()
	inner := int(c.R * 0.7)
	if inner < 1 {
		inner = 1
	}
	sum, n := 0.0, 0
	for dy := -inner; dy <= inner; dy++ {
		for dx := -inner; dx <= inner; dx++ {
			if dx*dx+dy*dy > inner*inner {
				continue
			}
			x := bounds.Min.X + int(math.Round(c.X)) + dx
			y := bounds.Min.Y + int(math.Round(c.Y)) + dy
			if !image.Pt(x, y).In(bounds) {
				continue
			}
			sum += float64(gray.GrayAt(x, y).Y)
			n++
		}
	}
	if n == 0 {
		return 255
	}
	return sum / float64(n)
}
