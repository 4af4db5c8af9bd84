// Package relaytest provides an in-process fake relay for tests: it speaks
// just enough of the wire protocol (REQ/EVENT/EOSE/OK/CLOSE) to exercise the
// client packages against real websocket traffic. Published events are added
// to the stored set and broadcast to open subscriptions, so request/response
// flows between two connections work.
package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
)

// Server is a fake relay. Configure its stored events and publish behavior
// before dialing it.
type Server struct {
	// URL is the ws:// endpoint to dial.
	URL string

	// Reject, when non-empty, makes every publish fail with this reason.
	Reject string

	// Mute suppresses EOSE and OK replies so clients run into their
	// timeouts.
	Mute bool

	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu        sync.Mutex
	stored    []nostr.Event
	published []nostr.Event
	subs      []*subscription
}

type subscription struct {
	id  string
	ws  *websocket.Conn
	wmu *sync.Mutex
}

// New starts a fake relay holding the given stored events and registers its
// shutdown with the test cleanup.
func New(t *testing.T, stored ...nostr.Event) *Server {
	t.Helper()

	s := &Server{stored: stored}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.handle))
	s.URL = "ws" + strings.TrimPrefix(s.httpServer.URL, "http")
	t.Cleanup(s.httpServer.Close)
	return s
}

// Published returns the events the fake relay accepted, in arrival order.
func (s *Server) Published() []nostr.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]nostr.Event, len(s.published))
	copy(out, s.published)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	defer s.dropConn(ws)

	wmu := &sync.Mutex{}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil || len(parts) < 2 {
			continue
		}
		var label string
		if err := json.Unmarshal(parts[0], &label); err != nil {
			continue
		}

		switch label {
		case "REQ":
			var sub string
			if err := json.Unmarshal(parts[1], &sub); err != nil {
				continue
			}
			s.mu.Lock()
			replay := make([]nostr.Event, len(s.stored))
			copy(replay, s.stored)
			s.subs = append(s.subs, &subscription{id: sub, ws: ws, wmu: wmu})
			s.mu.Unlock()

			for i := range replay {
				if !send(ws, wmu, []any{"EVENT", sub, replay[i]}) {
					return
				}
			}
			if !s.Mute && !send(ws, wmu, []any{"EOSE", sub}) {
				return
			}
		case "CLOSE":
			var sub string
			if err := json.Unmarshal(parts[1], &sub); err != nil {
				continue
			}
			s.mu.Lock()
			for i, registered := range s.subs {
				if registered.ws == ws && registered.id == sub {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		case "EVENT":
			var ev nostr.Event
			if err := json.Unmarshal(parts[1], &ev); err != nil {
				continue
			}

			s.mu.Lock()
			s.published = append(s.published, ev)
			accepted := s.Reject == ""
			if accepted {
				s.stored = append(s.stored, ev)
			}
			listeners := make([]*subscription, len(s.subs))
			copy(listeners, s.subs)
			s.mu.Unlock()

			if accepted {
				for _, listener := range listeners {
					if listener.ws == ws {
						continue
					}
					send(listener.ws, listener.wmu, []any{"EVENT", listener.id, ev})
				}
			}
			if s.Mute {
				continue
			}
			if !send(ws, wmu, []any{"OK", ev.ID, accepted, s.Reject}) {
				return
			}
		}
	}
}

func (s *Server) dropConn(ws *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.ws != ws {
			kept = append(kept, sub)
		}
	}
	s.subs = kept
}

func send(ws *websocket.Conn, wmu *sync.Mutex, msg []any) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	wmu.Lock()
	defer wmu.Unlock()
	return ws.WriteMessage(websocket.TextMessage, data) == nil
}

// SignedEvent builds and signs a test event with a throwaway key.
func SignedEvent(t *testing.T, kind int, createdAt nostr.Timestamp, tags nostr.Tags, content string) nostr.Event {
	t.Helper()

	ev := nostr.Event{
		Kind:      kind,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   content,
	}
	if err := ev.Sign(nostr.GeneratePrivateKey()); err != nil {
		t.Fatalf("signing test event: %v", err)
	}
	return ev
}
