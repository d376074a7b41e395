package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ssfxx0923/Learning-Studio/internal/indexsync"
)

const (
	eventWriteTimeout = 5 * time.Second
	eventPingInterval = 30 * time.Second
	hubBufferSize     = 32
)

// Hub fans index-change events out to connected websocket clients. Clients
// that fall behind lose events rather than stall the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan indexsync.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[chan indexsync.Event]struct{}{}}
}

func (h *Hub) Publish(ev indexsync.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() (<-chan indexsync.Event, func()) {
	ch := make(chan indexsync.Event, hubBufferSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

type eventMessage struct {
	Type string `json:"type"`
	indexsync.Event
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, correlationID string) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "change feed is not enabled", correlationID)
		return
	}
	opts := &websocket.AcceptOptions{}
	if s.cfg.CORSOrigin == "*" {
		opts.InsecureSkipVerify = true
	} else if u, err := url.Parse(s.cfg.CORSOrigin); err == nil && u.Host != "" {
		opts.OriginPatterns = []string{u.Host}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Warn("websocket accept failed", "correlationId", correlationID, "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	events, unsubscribe := s.hub.subscribe()
	defer unsubscribe()
	ctx := conn.CloseRead(r.Context())

	if err := writeEvent(ctx, conn, eventMessage{Type: "hello"}); err != nil {
		return
	}
	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			if err := writeEvent(ctx, conn, eventMessage{Type: "index.changed", Event: ev}); err != nil {
				s.logger.Debug("websocket write failed", "correlationId", correlationID, "err", err)
				return
			}
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, msg eventMessage) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
