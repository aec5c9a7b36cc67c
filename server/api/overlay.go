package api

import (
	"bytes"
	"net/http"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/www"
	"github.com/fogleman/gg"
	"github.com/julienschmidt/httprouter"
)

// Box outline colors, assigned to categories in order
var palette = [][3]float64{
	{0.9, 0.1, 0.1},
	{0.1, 0.7, 0.1},
	{0.1, 0.3, 0.9},
	{0.9, 0.7, 0.0},
	{0.8, 0.1, 0.8},
	{0.0, 0.7, 0.8},
}

// Largest overlay we'll render, in either dimension
const maxOverlaySize = 8192

// renderOverlay draws the boxes visible at 'frame' onto a transparent image of the given size.
// Interpolated boxes are drawn with a thinner line.
func renderOverlay(doc *annotation.Document, frame, width, height int) *gg.Context {
	dc := gg.NewContext(width, height)
	for ci, c := range doc.Categories {
		col := palette[ci%len(palette)]
		dc.SetRGBA(col[0], col[1], col[2], 1)
		for _, b := range c.VisibleBoxes(frame) {
			lineWidth := 2.0
			if b.Type == annotation.BoxVirtual {
				lineWidth = 1
			}
			dc.SetLineWidth(lineWidth)
			dc.DrawRectangle(float64(b.Rect.X)+0.5, float64(b.Rect.Y)+0.5, float64(b.Rect.Width-1), float64(b.Rect.Height-1))
			dc.Stroke()
			dc.DrawString(c.Name, float64(b.Rect.X+2), float64(b.Rect.Y-3))
		}
	}
	return dc
}

// Example: /api/frame/10/overlay.png?width=1280&height=720
// Width and height default to the video's frame size.
func (s *Server) httpFrameOverlay(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	frame := parseFrame(params.ByName("frame"))
	width := www.QueryInt(r, "width")
	height := www.QueryInt(r, "height")
	buf := bytes.Buffer{}
	s.Project.View(func(doc *annotation.Document) {
		if width <= 0 || height <= 0 {
			width, height = doc.Video.Width, doc.Video.Height
		}
		if width <= 0 || height <= 0 || width > maxOverlaySize || height > maxOverlaySize {
			www.PanicBadRequestf("Overlay size %v x %v is invalid. Specify width and height, or set the video size", width, height)
		}
		www.Check(renderOverlay(doc, frame, width, height).EncodePNG(&buf))
	})
	w.Header().Set("Content-Type", "image/png")
	www.CacheNever(w)
	w.Write(buf.Bytes())
}
