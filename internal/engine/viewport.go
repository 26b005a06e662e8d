package engine

import "time"

// Level-of-detail thresholds: symbols replace dots once the zoom factor
// exceeds the threshold for the topology's size.
const (
	lodSmallModelNodes = 200
	lodSmallThreshold  = 1.5
	lodLargeThreshold  = 2.5
)

// LODThreshold returns the zoom factor above which symbols are shown.
func LODThreshold(nodeCount int) float64 {
	if nodeCount <= lodSmallModelNodes {
		return lodSmallThreshold
	}
	return lodLargeThreshold
}

type zoomAnimation struct {
	from     Matrix2D
	to       Matrix2D
	start    time.Time
	duration time.Duration
	done     func()
}

// Viewport owns the pan/zoom transform of the rendering surface. The
// transform is always a translation combined with a uniform scale.
type Viewport struct {
	width     float64
	height    float64
	transform Matrix2D
	threshold float64
	detailed  bool

	anim      *zoomAnimation
	onChange  listeners[Matrix2D]
	onDetails func(detailed bool)
}

func NewViewport(width, height float64, nodeCount int) *Viewport {
	return &Viewport{
		width:     width,
		height:    height,
		transform: Identity(),
		threshold: LODThreshold(nodeCount),
	}
}

func (v *Viewport) Transform() Matrix2D { return v.transform }

// Scale returns the current zoom factor.
func (v *Viewport) Scale() float64 { return v.transform.ScaleFactor() }

// Detailed reports whether symbols (rather than dots) are currently shown.
func (v *Viewport) Detailed() bool { return v.detailed }

func (v *Viewport) Threshold() float64 { return v.threshold }

// Animating reports whether a zoom-to animation is in flight.
func (v *Viewport) Animating() bool { return v.anim != nil }

// SetSize updates the canvas size used for centring.
func (v *Viewport) SetSize(width, height float64) {
	v.width, v.height = width, height
}

// Subscribe registers fn for every transform change.
func (v *Viewport) Subscribe(fn func(Matrix2D)) *Subscription {
	return v.onChange.add(fn)
}

// OnLevelOfDetail sets the callback run when the symbol/dot swap flips.
func (v *Viewport) OnLevelOfDetail(fn func(detailed bool)) {
	v.onDetails = fn
}

// Reset returns to the identity transform and cancels any animation.
func (v *Viewport) Reset() {
	v.anim = nil
	v.set(Identity())
}

// SetZoom scales to k about the canvas centre.
func (v *Viewport) SetZoom(k float64) {
	if k <= 0 {
		return
	}
	cur := v.Scale()
	if cur == 0 {
		cur = 1
	}
	cx, cy := v.width/2, v.height/2
	v.anim = nil
	v.set(Translate(cx, cy).Multiply(Scale(k/cur, k/cur)).Multiply(Translate(-cx, -cy)).Multiply(v.transform))
}

// Pan shifts the view by a screen-space offset.
func (v *Viewport) Pan(dx, dy float64) {
	v.anim = nil
	v.set(Translate(dx, dy).Multiply(v.transform))
}

// ZoomTo animates towards the transform that centres scene point (x, y) at
// zoom k. done runs once the animation completes; an animation superseded by
// a later ZoomTo, Reset, SetZoom or Pan never calls its done.
func (v *Viewport) ZoomTo(x, y, k float64, d time.Duration, now time.Time, done func()) {
	target := Translate(v.width/2-k*x, v.height/2-k*y).Multiply(Scale(k, k))
	if d <= 0 {
		v.anim = nil
		v.set(target)
		if done != nil {
			done()
		}
		return
	}
	v.anim = &zoomAnimation{from: v.transform, to: target, start: now, duration: d, done: done}
}

// Tick advances an in-flight animation. It reports whether one was running.
func (v *Viewport) Tick(now time.Time) bool {
	a := v.anim
	if a == nil {
		return false
	}
	t := float64(now.Sub(a.start)) / float64(a.duration)
	if t >= 1 {
		v.anim = nil
		v.set(a.to)
		if a.done != nil {
			a.done()
		}
		return true
	}
	v.set(a.from.Lerp(a.to, t))
	return true
}

// ScreenToWorld maps a canvas point back into scene coordinates.
func (v *Viewport) ScreenToWorld(x, y float64) (float64, float64) {
	return v.transform.Invert().TransformPoint(x, y)
}

func (v *Viewport) set(m Matrix2D) {
	if m == v.transform {
		return
	}
	v.transform = m

	if detailed := m.ScaleFactor() > v.threshold; detailed != v.detailed {
		v.detailed = detailed
		if v.onDetails != nil {
			v.onDetails(detailed)
		}
	}
	v.onChange.notify(m)
}
