package geom

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Distance(b Point) float32 {
	return math32.Sqrt(float32((p.X-b.X)*(p.X-b.X) + (p.Y-b.Y)*(p.Y-b.Y)))
}

// Rect is an integer pixel rectangle.
// A rectangle covers the pixels X..X+Width-1 and Y..Y+Height-1.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func MakeRect(x, y, width, height int) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// RectFromEdges builds a rectangle from inclusive edges, where right = x+width-1
// and bottom = y+height-1. This is how the BTD format stores rectangles.
func RectFromEdges(left, top, right, bottom int) Rect {
	return Rect{
		X:      left,
		Y:      top,
		Width:  right - left + 1,
		Height: bottom - top + 1,
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("%v,%v %vx%v", r.X, r.Y, r.Width, r.Height)
}

// Inclusive right edge
func (r Rect) Right() int {
	return r.X + r.Width - 1
}

// Inclusive bottom edge
func (r Rect) Bottom() int {
	return r.Y + r.Height - 1
}

// Exclusive right edge
func (r Rect) X2() int {
	return r.X + r.Width
}

// Exclusive bottom edge
func (r Rect) Y2() int {
	return r.Y + r.Height
}

func (r Rect) Area() int {
	return r.Width * r.Height
}

func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X2() && p.Y >= r.Y && p.Y < r.Y2()
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.X, b.X)
	y1 := max(r.Y, b.Y)
	x2 := min(r.X2(), b.X2())
	y2 := min(r.Y2(), b.Y2())
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  max(0, x2-x1),
		Height: max(0, y2-y1),
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	union := r.Area() + b.Area() - r.Intersection(b).Area()
	if union <= 0 {
		return 0
	}
	return float32(r.Intersection(b).Area()) / float32(union)
}

func (r Rect) Center() Point {
	return Point{
		X: r.X + r.Width/2,
		Y: r.Y + r.Height/2,
	}
}

// Lerp blends a and b, with weight (1-beta) on a and beta on b.
// Every field is rounded independently, with halves rounded up (towards +inf), so
// -0.5 becomes 0 and 0.5 becomes 1.
func Lerp(a, b Rect, beta float64) Rect {
	alpha := 1 - beta
	mix := func(u, v int) int {
		return int(math.Floor(alpha*float64(u) + beta*float64(v) + 0.5))
	}
	return Rect{
		X:      mix(a.X, b.X),
		Y:      mix(a.Y, b.Y),
		Width:  mix(a.Width, b.Width),
		Height: mix(a.Height, b.Height),
	}
}
