package omr

import (
	"image"
	"math"
	"sort"

	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// Circle is one detected circular mark, in region-local pixel
// coordinates.
type Circle struct {
	X float64
	Y float64
	R float64
}

// houghParams bundles the tuning values of the gradient circle
// transform.
type houghParams struct {
	accumScale     float64 // accumulator downscale factor
	minDist        float64 // minimum distance between centers
	cannyThreshold float64 // high hysteresis threshold, low is half
	accumThreshold int     // center and radius support threshold
	minRadius      int
	maxRadius      int
}

type edgePoint struct {
	x int
	y int
}

// detectCircles finds circles in a pre-smoothed grayscale image using a
// two-stage gradient Hough transform: edge pixels vote for centers along
// their gradient direction, then each center candidate picks the radius
// with the strongest edge support.
func detectCircles(gray *image.Gray, p houghParams) []Circle {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	grads := utils.Sobel(gray)
	edgeMap := utils.Canny(gray, p.cannyThreshold/2, p.cannyThreshold)

	accW := int(math.Ceil(float64(w) / p.accumScale))
	accH := int(math.Ceil(float64(h) / p.accumScale))
	if accW == 0 || accH == 0 {
		return nil
	}
	acc := make([]int, accW*accH)

	var edges []edgePoint
	for y := range h {
		for x := range w {
			idx := y*w + x
			if edgeMap.Pix[idx] == 0 {
				continue
			}
			mag := grads.Mag[idx]
			if mag == 0 {
				continue
			}
			edges = append(edges, edgePoint{x: x, y: y})

			vx := grads.GX[idx] / mag
			vy := grads.GY[idx] / mag
			for r := p.minRadius; r <= p.maxRadius; r++ {
				for _, sign := range [2]float64{1, -1} {
					cx := float64(x) + sign*vx*float64(r)
					cy := float64(y) + sign*vy*float64(r)
					ax := int(cx/p.accumScale + 0.5)
					ay := int(cy/p.accumScale + 0.5)
					if ax < 0 || ay < 0 || ax >= accW || ay >= accH {
						continue
					}
					acc[ay*accW+ax]++
				}
			}
		}
	}

	candidates := centerCandidates(acc, accW, accH, p.accumThreshold)
	return resolveRadii(candidates, edges, p, accW)
}

type centerCandidate struct {
	idx   int
	votes int
}

// centerCandidates returns accumulator cells above threshold that are
// local maxima against their four direct neighbors, strongest first.
func centerCandidates(acc []int, accW, accH, threshold int) []centerCandidate {
	var out []centerCandidate
	for y := 1; y < accH-1; y++ {
		for x := 1; x < accW-1; x++ {
			idx := y*accW + x
			v := acc[idx]
			if v < threshold {
				continue
			}
			if v > acc[idx-1] && v >= acc[idx+1] && v > acc[idx-accW] && v >= acc[idx+accW] {
				out = append(out, centerCandidate{idx: idx, votes: v})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].votes > out[j].votes })
	return out
}

// resolveRadii estimates the best radius per candidate center and keeps
// circles whose edge support clears the accumulator threshold, spacing
// accepted centers at least minDist apart.
func resolveRadii(candidates []centerCandidate, edges []edgePoint, p houghParams, accW int) []Circle {
	var circles []Circle
	bins := p.maxRadius - p.minRadius + 1
	hist := make([]int, bins)

	for _, cand := range candidates {
		cx := (float64(cand.idx%accW) + 0.5) * p.accumScale
		cy := (float64(cand.idx/accW) + 0.5) * p.accumScale

		tooClose := false
		for _, c := range circles {
			if math.Hypot(c.X-cx, c.Y-cy) < p.minDist {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		for i := range hist {
			hist[i] = 0
		}
		for _, e := range edges {
			d := math.Hypot(float64(e.x)-cx, float64(e.y)-cy)
			bin := int(d+0.5) - p.minRadius
			if bin >= 0 && bin < bins {
				hist[bin]++
			}
		}

		bestBin, bestSupport := 0, -1
		for i := range bins {
			support := hist[i]
			if i > 0 {
				support += hist[i-1]
			}
			if i < bins-1 {
				support += hist[i+1]
			}
			if support > bestSupport {
				bestBin, bestSupport = i, support
			}
		}
		if bestSupport < p.accumThreshold {
			continue
		}
		circles = append(circles, Circle{X: cx, Y: cy, R: float64(p.minRadius + bestBin)})
	}
	return circles
}
