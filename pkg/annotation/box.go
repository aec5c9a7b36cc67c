package annotation

import (
	"fmt"

	"github.com/cyclopcam/groundtruth/pkg/geom"
)

// BoxType is persisted as a single byte in BTD files, so the numeric values are fixed.
type BoxType uint8

const (
	BoxNull    BoxType = 0 // No box on this frame
	BoxSingle  BoxType = 1 // A user-placed box that does not participate in interpolation as an endpoint
	BoxKey     BoxType = 2 // A user-placed box that is interpolated towards from the previous stored box
	BoxVirtual BoxType = 3 // Computed on demand, never stored
)

func (t BoxType) String() string {
	switch t {
	case BoxNull:
		return "null"
	case BoxSingle:
		return "single"
	case BoxKey:
		return "key"
	case BoxVirtual:
		return "virtual"
	}
	return fmt.Sprintf("BoxType(%d)", uint8(t))
}

// IsStorable is true for the types that a track may hold in its keyframe map
func (t BoxType) IsStorable() bool {
	return t == BoxSingle || t == BoxKey
}

// Box is the state of one track on one frame
type Box struct {
	Type    BoxType   `json:"type"`
	Frame   int       `json:"frame"`
	Rect    geom.Rect `json:"rect"`
	TrackID int       `json:"trackID"`
}

func NullBox(frame, trackID int) Box {
	return Box{Type: BoxNull, Frame: frame, TrackID: trackID}
}

func (b Box) IsNull() bool {
	return b.Type == BoxNull
}

func (b Box) String() string {
	return fmt.Sprintf("%v@%v[%v,%v %vx%v]", b.Type, b.Frame, b.Rect.X, b.Rect.Y, b.Rect.Width, b.Rect.Height)
}

// Interpolate produces the virtual box for 'frame' between a and b.
// a.Frame < frame < b.Frame is expected. The result belongs to a's track.
func Interpolate(frame int, a, b Box) Box {
	out := Box{
		Type:    BoxVirtual,
		Frame:   frame,
		TrackID: a.TrackID,
	}
	if b.Frame == a.Frame {
		out.Rect = a.Rect
		return out
	}
	beta := float64(frame-a.Frame) / float64(b.Frame-a.Frame)
	out.Rect = geom.Lerp(a.Rect, b.Rect, beta)
	return out
}

// InterpolateRange returns the virtual boxes for every frame strictly between a and b.
func InterpolateRange(a, b Box) []Box {
	if b.Frame-a.Frame <= 1 {
		return nil
	}
	out := make([]Box, 0, b.Frame-a.Frame-1)
	for f := a.Frame + 1; f < b.Frame; f++ {
		out = append(out, Interpolate(f, a, b))
	}
	return out
}
