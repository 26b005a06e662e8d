package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLODThreshold(t *testing.T) {
	assert.Equal(t, 1.5, LODThreshold(50))
	assert.Equal(t, 1.5, LODThreshold(200))
	assert.Equal(t, 2.5, LODThreshold(201))
	assert.Equal(t, 2.5, LODThreshold(5000))
}

func TestViewport_LevelOfDetailBySize(t *testing.T) {
	small := NewViewport(800, 600, 50)
	small.SetZoom(2)
	assert.True(t, small.Detailed())

	large := NewViewport(800, 600, 5000)
	large.SetZoom(2)
	assert.False(t, large.Detailed())
	large.SetZoom(3)
	assert.True(t, large.Detailed())
}

func TestViewport_SwapOnlyOnFlip(t *testing.T) {
	v := NewViewport(800, 600, 50)
	var flips []bool
	v.OnLevelOfDetail(func(d bool) { flips = append(flips, d) })

	v.SetZoom(1.2)
	v.SetZoom(2)
	v.SetZoom(4)
	v.Pan(10, 10)
	v.Reset()

	assert.Equal(t, []bool{true, false}, flips)
}

func TestViewport_SetZoomKeepsCentre(t *testing.T) {
	v := NewViewport(800, 600, 10)
	v.Pan(30, -20)
	v.SetZoom(3)

	assert.InDelta(t, 3, v.Scale(), 1e-9)
	x, y := v.ScreenToWorld(400, 300)
	sx, sy := v.Transform().TransformPoint(x, y)
	assert.InDelta(t, 400, sx, 1e-9)
	assert.InDelta(t, 300, sy, 1e-9)
}

func TestViewport_ZoomToAnimates(t *testing.T) {
	v := NewViewport(800, 600, 10)
	start := time.Unix(100, 0)
	doneCalls := 0

	v.ZoomTo(100, 50, 2, time.Second, start, func() { doneCalls++ })
	assert.True(t, v.Animating())
	assert.True(t, v.Transform().IsIdentity())

	require.True(t, v.Tick(start.Add(500*time.Millisecond)))
	assert.InDelta(t, 1.5, v.Scale(), 1e-9)
	assert.Equal(t, 0, doneCalls)

	require.True(t, v.Tick(start.Add(time.Second)))
	assert.Equal(t, 1, doneCalls)
	assert.False(t, v.Animating())
	assert.False(t, v.Tick(start.Add(2*time.Second)))

	x, y := v.Transform().TransformPoint(100, 50)
	assert.InDelta(t, 400, x, 1e-9)
	assert.InDelta(t, 300, y, 1e-9)
}

func TestViewport_ZoomToSuperseded(t *testing.T) {
	v := NewViewport(800, 600, 10)
	now := time.Unix(0, 0)
	first, second := false, false

	v.ZoomTo(10, 10, 2, time.Second, now, func() { first = true })
	v.Tick(now.Add(100 * time.Millisecond))
	v.ZoomTo(20, 20, 4, time.Second, now.Add(100*time.Millisecond), func() { second = true })
	v.Tick(now.Add(5 * time.Second))

	assert.False(t, first)
	assert.True(t, second)
	assert.InDelta(t, 4, v.Scale(), 1e-9)
}

func TestViewport_ZoomToImmediate(t *testing.T) {
	v := NewViewport(800, 600, 10)
	done := false
	v.ZoomTo(0, 0, 2, 0, time.Now(), func() { done = true })
	assert.True(t, done)
	assert.Equal(t, Matrix2D{2, 0, 0, 2, 400, 300}, v.Transform())
}

func TestViewport_Subscriptions(t *testing.T) {
	v := NewViewport(800, 600, 10)
	var seen []Matrix2D
	sub := v.Subscribe(func(m Matrix2D) { seen = append(seen, m) })

	v.Pan(5, 0)
	v.Pan(0, 0)
	require.Len(t, seen, 1)
	assert.Equal(t, Translate(5, 0), seen[0])

	sub.Unsubscribe()
	sub.Unsubscribe()
	v.Reset()
	assert.Len(t, seen, 1)

	var nilSub *Subscription
	assert.NotPanics(t, nilSub.Unsubscribe)
}
