package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"farm-ledger/internal/domain"
	"farm-ledger/internal/observability"
)

const (
	streamBuffer   = 256
	pingInterval   = 30 * time.Second
	pongWait       = 2 * pingInterval
	writeWait      = 10 * time.Second
	maxEventWindow = 30 * 24 * 60 * 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func parseSince(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid since %q", raw)
	}
	return seq, nil
}

// handleEvents returns recent events from the bus history, or a time range
// from the event store when from and to are given.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) (int, error) {
	q := r.URL.Query()
	if q.Has("from") || q.Has("to") {
		return s.eventRange(w, r)
	}
	since, err := parseSince(r)
	if err != nil {
		return 0, err
	}
	evs := s.node.Bus().Since(since)
	out := make([]eventView, 0, len(evs))
	for _, ev := range evs {
		out = append(out, newEventView(ev))
	}
	return respond(w, out)
}

func (s *Server) eventRange(w http.ResponseWriter, r *http.Request) (int, error) {
	if s.events == nil {
		return 0, errNoEventStore
	}
	q := r.URL.Query()
	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if err != nil {
		return 0, badRequest("invalid from %q", q.Get("from"))
	}
	to, err := strconv.ParseInt(q.Get("to"), 10, 64)
	if err != nil {
		return 0, badRequest("invalid to %q", q.Get("to"))
	}
	if to < from || to-from > maxEventWindow {
		return 0, badRequest("range must be ascending and at most %d seconds", maxEventWindow)
	}
	evs, err := s.events.GetByTimeRange(r.Context(), from, to)
	if err != nil {
		return 0, err
	}
	return respond(w, eventViews(evs))
}

func (s *Server) handleHolderEvents(w http.ResponseWriter, r *http.Request) (int, error) {
	if s.events == nil {
		return 0, errNoEventStore
	}
	holder, err := parseAddress("holder", r.PathValue("holder"))
	if err != nil {
		return 0, err
	}
	evs, err := s.events.GetByHolder(r.Context(), holder)
	if err != nil {
		return 0, err
	}
	return respond(w, eventViews(evs))
}

func (s *Server) handlePoolEvents(w http.ResponseWriter, r *http.Request) (int, error) {
	if s.events == nil {
		return 0, errNoEventStore
	}
	pid, err := parsePID(r)
	if err != nil {
		return 0, err
	}
	evs, err := s.events.GetByPool(r.Context(), pid)
	if err != nil {
		return 0, err
	}
	return respond(w, eventViews(evs))
}

// handleStream upgrades to a websocket and pushes events as JSON messages.
// ?since=<seq> replays retained history after seq first. A client that falls behind
// loses events rather than stalling the ledger.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	feed := make(chan domain.Event, streamBuffer)
	sub := s.node.Bus().Subscribe(feed)
	defer sub.Unsubscribe()

	out := make(chan domain.Event, streamBuffer)
	done := make(chan struct{})
	defer close(done)
	go relay(feed, out, done)

	closed := make(chan struct{})
	go readPump(conn, closed)

	// Replay after subscribing so nothing falls in the gap; duplicates are
	// filtered by seq below.
	last := since
	if r.URL.Query().Has("since") {
		for _, ev := range s.node.Bus().Since(since) {
			if err := writeEvent(conn, ev); err != nil {
				return
			}
			last = ev.Seq
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case ev := <-out:
			if ev.Seq <= last {
				continue
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
			last = ev.Seq
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Err():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// relay moves events from the bus subscription to the writer without ever
// blocking the bus.
func relay(in <-chan domain.Event, out chan<- domain.Event, done <-chan struct{}) {
	for {
		select {
		case ev := <-in:
			select {
			case out <- ev:
			default:
				observability.RecordEventDropped()
			}
		case <-done:
			return
		}
	}
}

func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev domain.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(newEventView(ev))
}
