package api

import (
	"net/http"
	"time"

	"github.com/cyclopcam/groundtruth/server/project"
	"github.com/cyclopcam/www"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const changeFeedPingInterval = 30 * time.Second

// Message sent on the change feed websocket.
// When Reset is true, the client has missed changes and must re-fetch the document.
type changeFeedMsg struct {
	Reset   bool                  `json:"reset,omitempty"`
	Changes []project.ChangeEvent `json:"changes,omitempty"`
}

// Example: ws://localhost:8090/api/changes?since=123
// The backlog of changes after 'since' is sent first, followed by live changes.
func (s *Server) httpChanges(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	since := www.QueryInt64(r, "since")

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("Change feed websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe before reading the backlog, so that nothing falls between the two.
	// Anything that appears in both is filtered out by sequence number.
	subID, live := s.Project.Subscribe()
	defer s.Project.Unsubscribe(subID)

	backlog, lastSent, complete := s.Project.ChangesSince(since)
	first := changeFeedMsg{Reset: !complete, Changes: backlog}
	if err := conn.WriteJSON(&first); err != nil {
		return
	}

	// We don't expect anything from the client, but we must read in order to notice when it goes away
	closed := make(chan bool)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		close(closed)
	}()

	ping := time.NewTicker(changeFeedPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case ev, more := <-live:
			if !more {
				return
			}
			if ev.Seq <= lastSent {
				continue
			}
			msg := changeFeedMsg{Changes: []project.ChangeEvent{ev}}
			if ev.Seq != lastSent+1 {
				// The subscriber queue overflowed
				msg.Reset = true
			}
			lastSent = ev.Seq
			if err := conn.WriteJSON(&msg); err != nil {
				s.Log.Infof("Change feed closed: %v", err)
				return
			}
		}
	}
}
