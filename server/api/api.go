package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/cyclopcam/groundtruth/pkg/annotation"
	"github.com/cyclopcam/groundtruth/pkg/labelformat"
	"github.com/cyclopcam/groundtruth/server/config"
	"github.com/cyclopcam/groundtruth/server/labeldb"
	"github.com/cyclopcam/groundtruth/server/project"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Server exposes a Project over HTTP
type Server struct {
	Log     logs.Log
	Project *project.Project

	cfg        *config.Config
	router     *httprouter.Router
	wsUpgrader websocket.Upgrader
	httpServer *http.Server
}

func NewServer(logger logs.Log, cfg *config.Config, proj *project.Project) *Server {
	s := &Server{
		Log:     logs.NewPrefixLogger(logger, "HTTP"),
		Project: proj,
		cfg:     cfg,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.setupHttpRoutes()
	return s
}

func (s *Server) setupHttpRoutes() {
	router := httprouter.New()

	// A single limiter is shared by all mutating endpoints, so that a client can't get around
	// the limit by spreading its requests.
	var limiter func(http.Handler) http.Handler
	if s.cfg.MutationsPerSec > 0 {
		limiter = httprate.Limit(int(math.Ceil(s.cfg.MutationsPerSec)), time.Second, httprate.WithKeyFuncs(httprate.KeyByIP))
	}

	read := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	mutate := func(method, route string, handle httprouter.Handle) {
		if limiter == nil {
			www.Handle(s.Log, router, method, route, handle)
			return
		}
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	read("GET", "/api/document", s.httpGetDocument)
	read("GET", "/api/frame/:frame/boxes", s.httpFrameBoxes)
	read("GET", "/api/frame/:frame/hit", s.httpFrameHit)
	read("GET", "/api/frame/:frame/overlay.png", s.httpFrameOverlay)
	read("GET", "/api/frame/:frame/overlaps", s.httpFrameOverlaps)
	read("GET", "/api/track/:id/keybox", s.httpTrackKeyBox)
	read("GET", "/api/export/:format", s.httpExport)
	read("GET", "/api/revisions", s.httpListRevisions)
	read("GET", "/api/changes", s.httpChanges)

	mutate("PUT", "/api/video", s.httpSetVideo)
	mutate("POST", "/api/track/:id/box", s.httpUpsertBox)
	mutate("DELETE", "/api/track/:id/box/:frame", s.httpDeleteBox)
	mutate("DELETE", "/api/track/:id", s.httpDeleteTrack)
	mutate("POST", "/api/category", s.httpAddCategory)
	mutate("POST", "/api/category/:name/track", s.httpAddTrack)
	mutate("POST", "/api/category/:name/rename", s.httpRenameCategory)
	mutate("POST", "/api/category/:name/move", s.httpMoveTracks)
	mutate("POST", "/api/category/:name/sort", s.httpSortCategory)
	mutate("POST", "/api/category/:name/boxes/delete", s.httpDeleteBoxes)
	mutate("DELETE", "/api/category/:name", s.httpDeleteCategory)
	mutate("POST", "/api/import/:format", s.httpImport)
	mutate("POST", "/api/save", s.httpSave)
	mutate("POST", "/api/revisions/:id/restore", s.httpRestoreRevision)

	s.router = router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server is shut down
func (s *Server) ListenAndServe() error {
	s.Log.Infof("Listening on %v", s.cfg.ListenAddr)
	s.httpServer = &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.router,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// check panics with an HTTP status that matches err
func check(err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, annotation.ErrTrackNotFound),
		errors.Is(err, annotation.ErrCategoryNotFound),
		errors.Is(err, labeldb.ErrRevisionNotFound):
		www.Panic(http.StatusNotFound, err.Error())
	case errors.Is(err, annotation.ErrCategoryExists):
		www.Panic(http.StatusConflict, err.Error())
	case errors.Is(err, labelformat.ErrParse),
		errors.Is(err, labelformat.ErrSchemaViolation),
		errors.Is(err, labelformat.ErrMalformedHeader),
		errors.Is(err, labelformat.ErrUnexpectedEOF),
		errors.Is(err, labelformat.ErrUnknownFormat):
		www.Panic(http.StatusBadRequest, err.Error())
	}
	www.Check(err)
}
