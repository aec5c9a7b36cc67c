package geom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEdges(t *testing.T) {
	r := MakeRect(10, 20, 5, 6)
	require.Equal(t, 14, r.Right())
	require.Equal(t, 25, r.Bottom())
	require.Equal(t, r, RectFromEdges(r.X, r.Y, r.Right(), r.Bottom()))

	// Zero sized rectangles survive the round trip too
	z := MakeRect(3, 3, 0, 0)
	require.Equal(t, z, RectFromEdges(z.X, z.Y, z.Right(), z.Bottom()))
}

func TestContains(t *testing.T) {
	r := MakeRect(0, 0, 10, 10)
	require.True(t, r.Contains(Point{0, 0}))
	require.True(t, r.Contains(Point{9, 9}))
	require.False(t, r.Contains(Point{10, 5}))
	require.False(t, r.Contains(Point{-1, 5}))
}

func TestIOU(t *testing.T) {
	a := MakeRect(0, 0, 10, 10)
	b := MakeRect(5, 0, 10, 10)
	require.InDelta(t, 50.0/150.0, a.IOU(b), 1e-6)
	require.Equal(t, float32(0), Rect{}.IOU(Rect{}))
	require.InDelta(t, 5.0, a.Center().Distance(b.Center()), 1e-6)
}

func TestLerp(t *testing.T) {
	a := MakeRect(0, 0, 10, 10)
	b := MakeRect(10, 10, 20, 20)
	require.Equal(t, a, Lerp(a, b, 0))
	require.Equal(t, b, Lerp(a, b, 1))
	require.Equal(t, MakeRect(5, 5, 15, 15), Lerp(a, b, 0.5))
	// Halves round up, on both sides of zero
	require.Equal(t, MakeRect(1, 1, 10, 10), Lerp(MakeRect(0, 0, 10, 10), MakeRect(1, 1, 10, 10), 0.5))
	require.Equal(t, MakeRect(0, 0, 10, 10), Lerp(MakeRect(0, 0, 10, 10), MakeRect(-1, -1, 10, 10), 0.5))
	require.Equal(t, MakeRect(-1, -1, 10, 10), Lerp(MakeRect(-1, -1, 10, 10), MakeRect(-2, -2, 10, 10), 0.5))
}
