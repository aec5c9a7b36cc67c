package api

import (
	"net/http"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/geom"
	"github.com/cyclopcam/groundtruth/server/project"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

type boxRequestJSON struct {
	Frame  int  `json:"frame"`
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Key    bool `json:"key"` // Interpolate towards this box from the previous stored box
}

type nameJSON struct {
	Name string `json:"name"`
}

type addCategoryJSON struct {
	Name       string `json:"name"`
	StartTrack bool   `json:"startTrack"` // Create the category with one empty track, ready for drawing
}

type deleteBoxesJSON struct {
	Cells []annotation.Cell `json:"cells"`
}

type moveRequestJSON struct {
	Tracks []int  `json:"tracks"`
	To     string `json:"to"`
}

type changesJSON struct {
	Changes []project.ChangeEvent `json:"changes"`
}

type newTrackJSON struct {
	ID      int                   `json:"id"`
	Changes []project.ChangeEvent `json:"changes"`
}

const maxEditBodyBytes = 1024 * 1024

// categoryIndex panics with a 404 if the category doesn't exist
func categoryIndex(doc *annotation.Document, name string) int {
	i := doc.CategoryIndex(name)
	if i < 0 {
		www.Panic(http.StatusNotFound, "Category not found: '"+name+"'")
	}
	return i
}

// mutate applies f to the project's document, and sends the resulting changes
func (s *Server) mutate(w http.ResponseWriter, f func(doc *annotation.Document) ([]annotation.Change, error)) {
	events, err := s.Project.Mutate(f)
	check(err)
	if events == nil {
		events = []project.ChangeEvent{}
	}
	www.SendJSON(w, &changesJSON{Changes: events})
}

func (s *Server) httpUpsertBox(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := parseTrackID(params.ByName("id"))
	req := boxRequestJSON{}
	www.ReadJSON(w, r, &req, maxEditBodyBytes)
	if req.Frame < 0 || req.Width <= 0 || req.Height <= 0 {
		www.PanicBadRequestf("Invalid box: frame %v, size %v x %v", req.Frame, req.Width, req.Height)
	}
	box := annotation.Box{
		Type:  annotation.BoxSingle,
		Frame: req.Frame,
		Rect:  geom.MakeRect(req.X, req.Y, req.Width, req.Height),
	}
	if req.Key {
		box.Type = annotation.BoxKey
	}
	s.mutate(w, func(doc *annotation.Document) ([]annotation.Change, error) {
		ch, err := doc.Upsert(id, box)
		return []annotation.Change{ch}, err
	})
}

func (s *Server) httpDeleteBox(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := parseTrackID(params.ByName("id"))
	frame := parseFrame(params.ByName("frame"))
	s.mutate(w, func(doc *annotation.Document) ([]annotation.Change, error) {
		ch, err := doc.DeleteBox(id, frame)
		return []annotation.Change{ch}, err
	})
}

func (s *Server) httpDeleteTrack(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := parseTrackID(params.ByName("id"))
	s.mutate(w, func(doc *annotation.Document) ([]annotation.Change, error) {
		ch := doc.RemoveTrack(id)
		if !ch.Changed() {
			return nil, annotation.ErrTrackNotFound
		}
		return []annotation.Change{ch}, nil
	})
}

func (s *Server) httpAddCategory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := addCategoryJSON{}
	www.ReadJSON(w, r, &req, maxEditBodyBytes)
	if req.Name == "" {
		req.Name = s.cfg.DefaultCategory
	}
	s.mutate(w, func(doc *annotation.Document) ([]annotation.Change, error) {
		if req.StartTrack {
			_, _, changes, err := doc.StartCategory(req.Name)
			return changes, err
		}
		_, ch, err := doc.AddCategory(req.Name)
		return []annotation.Change{ch}, err
	})
}

// Deletes a selection of stored boxes from the tracks of one category
func (s *Server) httpDeleteBoxes(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := deleteBoxesJSON{}
	www.ReadJSON(w, r, &req, maxEditBodyBytes)
	s.mutate(w, func(doc *annotation.Document) ([]annotation.Change, error) {
		cat := doc.Categories[categoryIndex(doc, params.ByName("name"))]
		return cat.DeleteBoxes(req.Cells), nil
	})
}

func (s *Server) httpAddTrack(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name := params.ByName("name")
	id := 0
	events, err := s.Project.Mutate(func(doc *annotation.Document) ([]annotation.Change, error) {
		cat := doc.Categories[categoryIndex(doc, name)]
		t, ch := doc.NewTrack(cat)
		id = t.ID()
		return []annotation.Change{ch}, nil
	})
	check(err)
	www.SendJSON(w, &newTrackJSON{ID: id, Changes: events})
}

func (s *Server) httpRenameCategory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := nameJSON{}
	www.ReadJSON(w, r, &req, maxEditBodyBytes)
	if req.Name == "" {
		www.PanicBadRequestf("Category name may not be empty")
	}
	s.mutate(w, func(doc *annotation.Document) ([]annotation.Change, error) {
		ch, err := doc.RenameCategory(categoryIndex(doc, params.ByName("name")), req.Name)
		return []annotation.Change{ch}, err
	})
}

func (s *Server) httpMoveTracks(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := moveRequestJSON{}
	www.ReadJSON(w, r, &req, maxEditBodyBytes)
	s.mutate(w, func(doc *annotation.Document) ([]annotation.Change, error) {
		return doc.MoveTracks(categoryIndex(doc, params.ByName("name")), req.Tracks, categoryIndex(doc, req.To))
	})
}

// Example: /api/category/car/sort?by=frame
func (s *Server) httpSortCategory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	by := www.QueryValue(r, "by")
	s.mutate(w, func(doc *annotation.Document) ([]annotation.Change, error) {
		cat := doc.Categories[categoryIndex(doc, params.ByName("name"))]
		switch by {
		case "", "id":
			return []annotation.Change{cat.SortByID()}, nil
		case "frame":
			return []annotation.Change{cat.SortByFrame()}, nil
		}
		www.PanicBadRequestf("Invalid sort order '%v'. Valid values are 'id' and 'frame'", by)
		return nil, nil
	})
}

func (s *Server) httpDeleteCategory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.mutate(w, func(doc *annotation.Document) ([]annotation.Change, error) {
		return []annotation.Change{doc.DeleteCategory(categoryIndex(doc, params.ByName("name")))}, nil
	})
}
