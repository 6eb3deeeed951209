package enhance

import (
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// houghLineVotes is the minimum accumulator count for a line to count
// toward the skew estimate.
const houghLineVotes = 100

// AnalyzeQuality measures resolution, clarity and skew of a sheet image.
// Clarity is the variance of the Laplacian; blurry captures score low.
// Skew is the mean angle of near-horizontal line structure in degrees.
func AnalyzeQuality(img image.Image) *scan.Quality {
	bounds := img.Bounds()
	gray := utils.ToGray(img)
	return &scan.Quality{
		Resolution: fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
		Clarity:    laplacianVariance(gray),
		SkewAngle:  estimateSkew(gray),
	}
}

// laplacianVariance convolves with the 4-neighbor Laplacian kernel and
// returns the response variance.
func laplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	n := 0
	mean := 0.0
	m2 := 0.0
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			c := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			up := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y-1).Y)
			down := float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y+1).Y)
			left := float64(gray.GrayAt(bounds.Min.X+x-1, bounds.Min.Y+y).Y)
			right := float64(gray.GrayAt(bounds.Min.X+x+1, bounds.Min.Y+y).Y)
			v := up + down + left + right - 4*c

			// Welford running variance.
			n++
			delta := v - mean
			mean += delta / float64(n)
			m2 += delta * (v - mean)
		}
	}
	if n < 2 {
		return 0
	}
	return m2 / float64(n)
}

// estimateSkew runs a standard Hough line transform over the edge map
// and averages the angles of strong lines within 45 degrees of
// horizontal. Returns 0 when no such line is found.
func estimateSkew(gray *image.Gray) float64 {
	blurred := utils.GaussianBlur5(gray)
	edges := utils.Canny(blurred, 50, 150)

	bounds := edges.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	maxRho := int(math.Ceil(math.Hypot(float64(width), float64(height))))
	const thetaSteps = 180

	// Accumulator indexed by (rho + maxRho, thetaStep).
	acc := make([]int, (2*maxRho+1)*thetaSteps)
	sinT := make([]float64, thetaSteps)
	cosT := make([]float64, thetaSteps)
	for t := range thetaSteps {
		theta := float64(t) * math.Pi / float64(thetaSteps)
		sinT[t] = math.Sin(theta)
		cosT[t] = math.Cos(theta)
	}

	for y := range height {
		for x := range width {
			if edges.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y == 0 {
				continue
			}
			for t := range thetaSteps {
				rho := int(math.Round(float64(x)*cosT[t] + float64(y)*sinT[t]))
				acc[(rho+maxRho)*thetaSteps+t]++
			}
		}
	}

	sum := 0.0
	count := 0
	for i, votes := range acc {
		if votes < houghLineVotes {
			continue
		}
		t := i % thetaSteps
		angle := float64(t)*180.0/float64(thetaSteps) - 90.0
		if math.Abs(angle) < 45 {
			sum += angle
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
