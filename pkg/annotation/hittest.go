package annotation

import (
	"fmt"
	"slices"

	"github.com/bmharper/flatbush-go"
	"github.com/cyclopcam/groundtruth/pkg/geom"
)

// visibleIndex returns the visible boxes at 'frame', and a spatial index over them.
// Returns a nil index if nothing is visible.
func (d *Document) visibleIndex(frame int) ([]Box, *flatbush.Flatbush[int32]) {
	boxes := d.VisibleBoxes(frame)
	if len(boxes) == 0 {
		return nil, nil
	}
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(boxes))
	for _, b := range boxes {
		fb.Add(int32(b.Rect.X), int32(b.Rect.Y), int32(b.Rect.X2()), int32(b.Rect.Y2()))
	}
	fb.Finish()
	return boxes, fb
}

// HitTest finds the topmost visible box at 'frame' that contains p.
// Boxes later in VisibleBoxes order are drawn on top, so they win.
func (d *Document) HitTest(frame int, p geom.Point) (Box, bool) {
	boxes, fb := d.visibleIndex(frame)
	if fb == nil {
		return Box{}, false
	}
	best := -1
	for _, i := range fb.Search(int32(p.X), int32(p.Y), int32(p.X), int32(p.Y)) {
		if i > best && boxes[i].Rect.Contains(p) {
			best = i
		}
	}
	if best < 0 {
		return Box{}, false
	}
	return boxes[best], true
}

// Nearest finds the visible box at 'frame' whose centre is closest to p, considering only
// boxes whose edges are within 'radius' of p. Ties go to the topmost box.
func (d *Document) Nearest(frame int, p geom.Point, radius int) (Box, bool) {
	boxes, fb := d.visibleIndex(frame)
	if fb == nil {
		return Box{}, false
	}
	r := int32(radius)
	best := -1
	bestDist := float32(0)
	for _, i := range fb.Search(int32(p.X)-r, int32(p.Y)-r, int32(p.X)+r, int32(p.Y)+r) {
		dist := boxes[i].Rect.Center().Distance(p)
		if best < 0 || dist < bestDist || (dist == bestDist && i > best) {
			best = i
			bestDist = dist
		}
	}
	if best < 0 {
		return Box{}, false
	}
	return boxes[best], true
}

// Overlap is a pair of visible boxes that cover much of the same area.
// On a ground truth frame, this usually means an object was labelled twice.
type Overlap struct {
	A   Box     `json:"a"`
	B   Box     `json:"b"`
	IOU float32 `json:"iou"`
}

// Overlaps lists every pair of visible boxes at 'frame' whose IoU is at least minIOU.
// A is always the box that comes first in VisibleBoxes order.
func (d *Document) Overlaps(frame int, minIOU float32) []Overlap {
	boxes, fb := d.visibleIndex(frame)
	if fb == nil {
		return nil
	}
	var out []Overlap
	var near []int
	for i, a := range boxes {
		near = fb.SearchFast(int32(a.Rect.X), int32(a.Rect.Y), int32(a.Rect.X2()), int32(a.Rect.Y2()), near[:0])
		slices.Sort(near)
		for _, j := range near {
			if j <= i {
				continue
			}
			if iou := a.Rect.IOU(boxes[j].Rect); iou > 0 && iou >= minIOU {
				out = append(out, Overlap{A: a, B: boxes[j], IOU: iou})
			}
		}
	}
	return out
}

// HitArea is the part of a box that a point lands on.
// Corners and edge midpoints have square grab handles.
type HitArea int

const (
	HitNone HitArea = iota
	HitTopLeft
	HitTopRight
	HitBottomLeft
	HitBottomRight
	HitTop
	HitLeft
	HitRight
	HitBottom
	HitCenter
)

var hitAreaNames = [...]string{"none", "topLeft", "topRight", "bottomLeft", "bottomRight", "top", "left", "right", "bottom", "center"}

func (h HitArea) String() string {
	return hitAreaNames[h]
}

func (h HitArea) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HitArea) UnmarshalText(b []byte) error {
	for i, name := range hitAreaNames {
		if name == string(b) {
			*h = HitArea(i)
			return nil
		}
	}
	return fmt.Errorf("Unknown hit area '%v'", string(b))
}

// ClassifyHit determines which handle of r (if any) contains p.
// handleSize is the width of the square handle, in the same units as r.
// Handles are checked before the interior, corners first.
func ClassifyHit(r geom.Rect, p geom.Point, handleSize int) HitArea {
	handle := func(cx, cy int) bool {
		half := (handleSize - 1) / 2
		h := geom.MakeRect(cx-half, cy-half, handleSize, handleSize)
		return h.Contains(p)
	}
	cx := r.X + (r.Width-1)/2
	cy := r.Y + (r.Height-1)/2
	switch {
	case handle(r.X, r.Y):
		return HitTopLeft
	case handle(r.Right(), r.Y):
		return HitTopRight
	case handle(r.X, r.Bottom()):
		return HitBottomLeft
	case handle(r.Right(), r.Bottom()):
		return HitBottomRight
	case handle(cx, r.Y):
		return HitTop
	case handle(r.X, cy):
		return HitLeft
	case handle(r.Right(), cy):
		return HitRight
	case handle(cx, r.Bottom()):
		return HitBottom
	case r.Contains(p):
		return HitCenter
	}
	return HitNone
}
