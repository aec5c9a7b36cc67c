package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/geom"
	"github.com/cyclopcam/groundtruth/server/project"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// Default size of the resize handles used by the hit endpoint, in pixels
const defaultHandleSize = 7

// Default IoU above which two boxes on a frame are reported as overlapping
const defaultOverlapIOU = 0.5

type trackJSON struct {
	ID    int              `json:"id"`
	Boxes []annotation.Box `json:"boxes"` // Stored boxes only
}

type categoryJSON struct {
	Name   string      `json:"name"`
	Tracks []trackJSON `json:"tracks"`
}

type documentJSON struct {
	Video      annotation.VideoInfo `json:"video"`
	NextID     int                  `json:"nextID"`
	FrameSpan  int                  `json:"frameSpan"`
	Categories []categoryJSON       `json:"categories"`
}

type frameBoxJSON struct {
	annotation.Box
	Category string `json:"category"`
}

// If Hit is false but Box is set, then the point missed every box, and Box is the nearest one
type hitJSON struct {
	Hit  bool               `json:"hit"`
	Box  *frameBoxJSON      `json:"box,omitempty"`
	Area annotation.HitArea `json:"area"`
}

type keyBoxJSON struct {
	Found bool            `json:"found"`
	Box   *annotation.Box `json:"box,omitempty"`
}

func toDocumentJSON(doc *annotation.Document) *documentJSON {
	j := &documentJSON{
		Video:      doc.Video,
		NextID:     doc.IDs.Peek(),
		FrameSpan:  doc.FrameSpan(),
		Categories: []categoryJSON{},
	}
	for _, c := range doc.Categories {
		cj := categoryJSON{Name: c.Name, Tracks: []trackJSON{}}
		for _, t := range c.Tracks() {
			cj.Tracks = append(cj.Tracks, trackJSON{ID: t.ID(), Boxes: t.Keyframes()})
		}
		j.Categories = append(j.Categories, cj)
	}
	return j
}

func parseFrame(s string) int {
	frame, err := strconv.Atoi(s)
	if err != nil || frame < 0 {
		www.PanicBadRequestf("Invalid frame '%v'", s)
	}
	return frame
}

func parseTrackID(s string) int {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		www.PanicBadRequestf("Invalid track id '%v'", s)
	}
	return id
}

// frameBoxes returns the visible boxes at 'frame', labelled with their category, in drawing order
func frameBoxes(doc *annotation.Document, frame int) []frameBoxJSON {
	out := []frameBoxJSON{}
	for _, c := range doc.Categories {
		for _, b := range c.VisibleBoxes(frame) {
			out = append(out, frameBoxJSON{Box: b, Category: c.Name})
		}
	}
	return out
}

func (s *Server) httpGetDocument(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var j *documentJSON
	s.Project.View(func(doc *annotation.Document) {
		j = toDocumentJSON(doc)
	})
	www.SendJSON(w, j)
}

func (s *Server) httpFrameBoxes(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	frame := parseFrame(params.ByName("frame"))
	var boxes []frameBoxJSON
	s.Project.View(func(doc *annotation.Document) {
		boxes = frameBoxes(doc, frame)
	})
	www.SendJSON(w, boxes)
}

func categoryOf(doc *annotation.Document, trackID int) string {
	ci, _ := doc.FindTrack(trackID)
	if ci < 0 {
		return ""
	}
	return doc.Categories[ci].Name
}

// Example: /api/frame/12/hit?x=100&y=50&handle=9&radius=20
// When radius is given, and the point misses every box, the nearest box within radius is returned.
func (s *Server) httpFrameHit(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	frame := parseFrame(params.ByName("frame"))
	p := geom.Point{X: www.RequiredQueryInt(r, "x"), Y: www.RequiredQueryInt(r, "y")}
	handleSize := www.QueryInt(r, "handle")
	if handleSize <= 0 {
		handleSize = defaultHandleSize
	}
	radius := www.QueryInt(r, "radius")
	res := hitJSON{}
	s.Project.View(func(doc *annotation.Document) {
		if box, ok := doc.HitTest(frame, p); ok {
			res.Hit = true
			res.Box = &frameBoxJSON{Box: box, Category: categoryOf(doc, box.TrackID)}
			res.Area = annotation.ClassifyHit(box.Rect, p, handleSize)
		} else if radius > 0 {
			if box, ok := doc.Nearest(frame, p, radius); ok {
				res.Box = &frameBoxJSON{Box: box, Category: categoryOf(doc, box.TrackID)}
			}
		}
	})
	www.SendJSON(w, &res)
}

// Example: /api/frame/12/overlaps?minIOU=0.7
func (s *Server) httpFrameOverlaps(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	frame := parseFrame(params.ByName("frame"))
	minIOU := float32(defaultOverlapIOU)
	if _, ok := www.QueryValueEx(r, "minIOU"); ok {
		minIOU = float32(www.QueryFloat64(r, "minIOU"))
	}
	if minIOU < 0 || minIOU > 1 {
		www.PanicBadRequestf("minIOU must be between 0 and 1")
	}
	overlaps := []annotation.Overlap{}
	s.Project.View(func(doc *annotation.Document) {
		overlaps = append(overlaps, doc.Overlaps(frame, minIOU)...)
	})
	www.SendJSON(w, overlaps)
}

// Example: /api/track/3/keybox?frame=40&dir=prev
// For dir=next, an optional 'limit' frame stops the search.
func (s *Server) httpTrackKeyBox(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := parseTrackID(params.ByName("id"))
	frame := www.RequiredQueryInt(r, "frame")
	dir := www.QueryValue(r, "dir")
	if dir != "next" && dir != "prev" {
		www.PanicBadRequestf("Invalid direction '%v'. Valid values are 'next' and 'prev'", dir)
	}
	limit := www.QueryInt(r, "limit")
	res := keyBoxJSON{}
	var err error
	s.Project.View(func(doc *annotation.Document) {
		_, track := doc.FindTrack(id)
		if track == nil {
			err = fmt.Errorf("%w: %v", annotation.ErrTrackNotFound, id)
			return
		}
		var box annotation.Box
		if dir == "next" {
			box, res.Found = track.NextKeyBox(frame, limit)
		} else {
			box, res.Found = track.PrevKeyBox(frame)
		}
		if res.Found {
			res.Box = &box
		}
	})
	check(err)
	www.SendJSON(w, &res)
}

func (s *Server) httpSetVideo(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	video := annotation.VideoInfo{}
	www.ReadJSON(w, r, &video, 64*1024)
	if video.FrameCount < 0 || video.Width < 0 || video.Height < 0 {
		www.PanicBadRequestf("Invalid video properties")
	}
	events := s.Project.SetVideo(video)
	if events == nil {
		events = []project.ChangeEvent{}
	}
	www.SendJSON(w, &changesJSON{Changes: events})
}
