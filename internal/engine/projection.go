package engine

import (
	"math"

	"github.com/paulmach/orb"
)

// Reference frame of the geographic feeders: the lon/lat box of the reference
// feeder maps onto a 136x114 unit local grid.
const (
	geoLonOrigin = -77.0292
	geoLatOrigin = 38.8762
	geoLonSpan   = -76.9712 - geoLonOrigin
	geoLatSpan   = 38.9185 - geoLatOrigin
	geoWidth     = 136.0
	geoHeight    = 114.0

	canvasMargin = 10.0

	legacyInvertedMarker = "ieee8500"
)

// Extent returns the bounding box of every node's primary model coordinate.
func Extent(t *Topology) (orb.Bound, bool) {
	first := true
	var b orb.Bound
	for _, n := range t.Nodes {
		p := orb.Point{n.X1, n.Y1}
		if first {
			b = orb.Bound{Min: p, Max: p}
			first = false
			continue
		}
		b = b.Extend(p)
	}
	return b, !first
}

// IsGeographic reports whether the node coordinates look like lon/lat: the
// x extent of the whole set is at most one unit.
func IsGeographic(t *Topology) bool {
	b, ok := Extent(t)
	if !ok {
		return false
	}
	return b.Max[0]-b.Min[0] <= 1
}

// ConvertGeographic maps a lon/lat pair onto the local grid.
func ConvertGeographic(lon, lat float64) (float64, float64) {
	return geoWidth * (lon - geoLonOrigin) / geoLonSpan, geoHeight * (lat - geoLatOrigin) / geoLatSpan
}

// Normalize converts geographic coordinates (once: converted coordinates no
// longer pass the detection rule) and truncates every coordinate to an integer.
// It reports whether a conversion happened.
func Normalize(t *Topology) bool {
	geographic := IsGeographic(t)
	for _, n := range t.Nodes {
		if geographic {
			n.X1, n.Y1 = ConvertGeographic(n.X1, n.Y1)
		}
		n.X1, n.Y1 = math.Trunc(n.X1), math.Trunc(n.Y1)

		if x2, y2, ok := n.secondary(); ok {
			if geographic {
				*x2, *y2 = ConvertGeographic(*x2, *y2)
			}
			*x2, *y2 = math.Trunc(*x2), math.Trunc(*y2)
		}
	}
	return geographic
}

// FixLegacyOrientation flips the legacy feeder family about the vertical
// midpoint of its domain. It applies at most once per topology.
func FixLegacyOrientation(t *Topology) bool {
	if t.Inverted || !containsFold(t.Name, legacyInvertedMarker) {
		return false
	}
	b, ok := Extent(t)
	if !ok {
		t.Inverted = true
		return true
	}
	sum := b.Min[1] + b.Max[1]
	for _, n := range t.Nodes {
		n.Y1 = sum - n.Y1
		if _, y2, ok := n.secondary(); ok {
			*y2 = sum - *y2
		}
	}
	t.Inverted = true
	return true
}

// LinearScale maps a continuous domain onto a continuous range.
type LinearScale struct {
	D0, D1 float64
	R0, R1 float64
}

func (s LinearScale) Apply(v float64) float64 {
	if s.D1 == s.D0 {
		return (s.R0 + s.R1) / 2
	}
	return s.R0 + (v-s.D0)*(s.R1-s.R0)/(s.D1-s.D0)
}

// Projector maps model space onto the canvas with a fixed margin on every side.
type Projector struct {
	X LinearScale
	Y LinearScale
}

// NewProjector builds the screen projection for a topology and canvas size.
func NewProjector(t *Topology, width, height float64) Projector {
	b, _ := Extent(t)
	return Projector{
		X: LinearScale{D0: b.Min[0], D1: b.Max[0], R0: canvasMargin, R1: width - canvasMargin},
		Y: LinearScale{D0: b.Min[1], D1: b.Max[1], R0: canvasMargin, R1: height - canvasMargin},
	}
}

func (p Projector) Project(x, y float64) (float64, float64) {
	return p.X.Apply(x), p.Y.Apply(y)
}
