package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/pkg/progress"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// Number of bytes given to labelformat.Sniff
const sniffSize = 64

// Example: curl --data-binary @labels.xml localhost:8090/api/import/auto
func (s *Server) httpImport(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	body := www.ReadLimited(w, r, s.cfg.MaxUploadBytes())
	var format labelformat.Format
	var err error
	if name := params.ByName("format"); name == "auto" {
		format, err = labelformat.Sniff(body[:min(len(body), sniffSize)])
	} else {
		format, err = labelformat.ParseFormat(name)
	}
	check(err)

	// If the client goes away, the import stops at the next track
	res, err := s.Project.Import(bytes.NewReader(body), format, progress.NewTracker(r.Context()))
	check(err)
	www.SendJSON(w, &res)
}

func (s *Server) httpExport(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	format, err := labelformat.ParseFormat(params.ByName("format"))
	check(err)
	buf := bytes.Buffer{}
	check(s.Project.Export(&buf, format, progress.NewTracker(r.Context())))
	www.CacheNever(w)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="labels%v"`, format.Extension()))
	w.Write(buf.Bytes())
}

type saveJSON struct {
	ID      int64 `json:"id"`
	Created bool  `json:"created"` // False if nothing changed since the previous revision
}

// Example: curl -X POST localhost:8090/api/save?message=checkpoint
func (s *Server) httpSave(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	message := www.QueryValue(r, "message")
	if message == "" {
		message = "save"
	}
	rev, created, err := s.Project.Save(message)
	check(err)
	www.SendJSON(w, &saveJSON{ID: rev.ID, Created: created})
}

func (s *Server) httpListRevisions(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	revs, err := s.Project.DB.List(www.QueryInt(r, "limit"))
	check(err)
	www.SendJSON(w, revs)
}

func (s *Server) httpRestoreRevision(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := www.ParseID(params.ByName("id"))
	if id <= 0 {
		www.PanicBadRequestf("Invalid revision id '%v'", params.ByName("id"))
	}
	check(s.Project.Restore(id))
	www.SendOK(w)
}
