package facematch

import "fmt"

// Region is a face bounding box in normalized image coordinates: X, Y,
// Width and Height are all in [0, 1] relative to the image size.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the normalized area of the region
func (r Region) Area() float64 {
	return r.Width * r.Height
}

// RegionFromPixelBBox converts a pixel bbox [x1, y1, x2, y2] to a normalized
// Region. Coordinates outside the image are clamped to its edges.
func RegionFromPixelBBox(bbox []float64, width, height int) (Region, error) {
	if len(bbox) != 4 {
		return Region{}, fmt.Errorf("bbox must have 4 values, got %d", len(bbox))
	}
	if width <= 0 || height <= 0 {
		return Region{}, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	x1 := clamp01(bbox[0] / float64(width))
	y1 := clamp01(bbox[1] / float64(height))
	x2 := clamp01(bbox[2] / float64(width))
	y2 := clamp01(bbox[3] / float64(height))
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}

	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, nil
}

// ComputeIoU calculates Intersection over Union between two regions.
func ComputeIoU(a, b Region) float64 {
	// Calculate intersection.
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)

	if x2 <= x1 || y2 <= y1 {
		return 0 // No intersection
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
