package layout

import (
	"container/list"
	"image"
	"math"

	"github.com/MeKo-Tech/bubblegrade/internal/utils"
)

// component holds pixel statistics for one connected group of edge pixels.
type component struct {
	label int
	count int
	minX  int
	minY  int
	maxX  int
	maxY  int
}

// edgeComponents labels 8-connected components in a binary edge map.
// Edge curves are thin and frequently touch diagonally, so 4-connectivity
// would shatter them.
func edgeComponents(edges *image.Gray) ([]component, []int) {
	bounds := edges.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	labels := make([]int, w*h)
	var comps []component
	label := 1

	edgeAt := func(x, y int) bool {
		return edges.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y != 0
	}

	for y := range h {
		for x := range w {
			if !edgeAt(x, y) || labels[y*w+x] != 0 {
				continue
			}
			comps = append(comps, componentBFS(edgeAt, labels, w, h, x, y, label))
			label++
		}
	}
	return comps, labels
}

func componentBFS(edgeAt func(x, y int) bool, labels []int, w, h, startX, startY, label int) component {
	idx := func(x, y int) int { return y*w + x }
	st := component{label: label, minX: startX, minY: startY, maxX: startX, maxY: startY}

	q := list.New()
	q.PushBack(idx(startX, startY))
	labels[idx(startX, startY)] = label

	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		ci, ok := e.Value.(int)
		if !ok {
			continue
		}
		cx, cy := ci%w, ci/w

		st.count++
		if cx < st.minX {
			st.minX = cx
		}
		if cy < st.minY {
			st.minY = cy
		}
		if cx > st.maxX {
			st.maxX = cx
		}
		if cy > st.maxY {
			st.maxY = cy
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := cx+dx, cy+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := idx(nx, ny)
				if edgeAt(nx, ny) && labels[ni] == 0 {
					labels[ni] = label
					q.PushBack(ni)
				}
			}
		}
	}
	return st
}

// traceBoundary extracts the outer boundary polygon of a labeled
// component using Moore-neighbor tracing. Collinear intermediate points
// are dropped as the trace proceeds.
func traceBoundary(labels []int, w, h int, comp component) []utils.Point {
	sx, sy := startingBoundaryPixel(labels, w, h, comp)
	if sx == -1 {
		return nil
	}

	pts := make([]utils.Point, 0, 64)
	addPoint := func(x, y int) {
		p := utils.Point{X: float64(x), Y: float64(y)}
		n := len(pts)
		if n >= 2 {
			a := pts[n-2]
			b := pts[n-1]
			cross := (b.X-a.X)*(p.Y-b.Y) - (b.Y-a.Y)*(p.X-b.X)
			if cross == 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}

	cx, cy := sx, sy
	bx, by := sx-1, sy
	addPoint(cx, cy)

	startCx, startCy := cx, cy
	startBx, startBy := bx, by
	// Each boundary pixel is entered a bounded number of times; open
	// curves never satisfy the stop criterion and rely on this cap.
	maxSteps := comp.count*8 + 8

	for steps := 0; steps < maxSteps; steps++ {
		nx, ny, nbx, nby, found := nextBoundaryPixel(labels, w, h, comp.label, cx, cy, bx, by)
		if !found {
			break
		}
		bx, by = nbx, nby
		cx, cy = nx, ny

		if len(pts) == 0 || pts[len(pts)-1].X != float64(cx) || pts[len(pts)-1].Y != float64(cy) {
			addPoint(cx, cy)
		}
		if cx == startCx && cy == startCy && bx == startBx && by == startBy {
			break
		}
	}

	if len(pts) >= 2 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

func startingBoundaryPixel(labels []int, w, h int, comp component) (int, int) {
	for y := comp.minY; y <= comp.maxY; y++ {
		for x := comp.minX; x <= comp.maxX; x++ {
			if labelAt(labels, w, h, x, y) == comp.label {
				return x, y
			}
		}
	}
	return -1, -1
}

func labelAt(labels []int, w, h, x, y int) int {
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0
	}
	return labels[y*w+x]
}

// nextBoundaryPixel scans the Moore neighborhood clockwise starting from
// the backtrack position and returns the next component pixel.
func nextBoundaryPixel(labels []int, w, h, label, cx, cy, bx, by int) (int, int, int, int, bool) {
	// 8-neighborhood clockwise order: E, SE, S, SW, W, NW, N, NE
	ndx := [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy := [8]int{0, 1, 1, 1, 0, -1, -1, -1}

	dirIndex := func(dx, dy int) int {
		for i := range 8 {
			if ndx[i] == dx && ndy[i] == dy {
				return i
			}
		}
		return 0
	}

	start := (dirIndex(bx-cx, by-cy) + 1) % 8
	pbx, pby := bx, by
	for k := range 8 {
		i := (start + k) % 8
		tx, ty := cx+ndx[i], cy+ndy[i]
		if labelAt(labels, w, h, tx, ty) == label {
			return tx, ty, pbx, pby, true
		}
		pbx, pby = tx, ty
	}
	return 0, 0, pbx, pby, false
}

// polygonArea returns the absolute shoelace area of a closed polygon.
// Thin open curves traced out-and-back enclose nothing and score near
// zero, which keeps them from beating a closed document outline.
func polygonArea(pts []utils.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(sum) / 2
}

// largestContour returns the boundary polygon with the greatest enclosed
// area, or nil when the edge map holds no usable contour.
func largestContour(edges *image.Gray) []utils.Point {
	bounds := edges.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	comps, labels := edgeComponents(edges)

	var best []utils.Point
	bestArea := 0.0
	for _, comp := range comps {
		if comp.count < 4 {
			continue
		}
		pts := traceBoundary(labels, w, h, comp)
		area := polygonArea(pts)
		if area > bestArea {
			bestArea = area
			best = pts
		}
	}
	return best
}
