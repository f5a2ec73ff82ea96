package devtools

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

const (
	// liveSendBuffer is how many flush events a subscriber may lag before
	// being dropped.
	liveSendBuffer = 64

	liveWriteTimeout = 5 * time.Second
	livePingInterval = 30 * time.Second
)

// flushEvent is the wire form of one flush on the /live stream.
type flushEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	DurationMicros int64     `json:"duration_us"`
	Iterations     int       `json:"iterations"`
	ViewsRefreshed int       `json:"views_refreshed"`
	EffectsRun     int       `json:"effects_run"`
	EffectsSkipped int       `json:"effects_skipped"`
	EffectErrors   int       `json:"effect_errors"`
}

// liveClient is one /live subscriber. Writes go through a buffered channel
// so the flush path never blocks on a slow socket.
type liveClient struct {
	conn     *websocket.Conn
	send     chan flushEvent
	closeOne sync.Once
	done     chan struct{}
}

func (c *liveClient) close() {
	c.closeOne.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// FlushStart implements reactive.FlushObserver.
func (s *Server) FlushStart() {}

// FlushEnd implements reactive.FlushObserver. It fans the flush stats out to
// all live subscribers, dropping any whose buffer is full.
func (s *Server) FlushEnd(stats reactive.FlushStats) {
	ev := flushEvent{
		Timestamp:      time.Now(),
		DurationMicros: stats.Duration.Microseconds(),
		Iterations:     stats.Iterations,
		ViewsRefreshed: stats.ViewsRefreshed,
		EffectsRun:     stats.EffectsRun,
		EffectsSkipped: stats.EffectsSkipped,
		EffectErrors:   stats.EffectErrors,
	}

	s.mu.Lock()
	var dropped []*liveClient
	for c := range s.clients {
		select {
		case c.send <- ev:
		default:
			dropped = append(dropped, c)
			delete(s.clients, c)
		}
	}
	s.mu.Unlock()

	for _, c := range dropped {
		s.logger.Warn("dropping slow live subscriber")
		c.close()
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &liveClient{
		conn: conn,
		send: make(chan flushEvent, liveSendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop drains inbound frames so pings and close handshakes are
// processed. The stream is one-way; any payload is ignored.
func (s *Server) readLoop(c *liveClient) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.close()
	}()

	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("live read error", "error", err)
			}
			return
		}
	}
}

func (s *Server) writeLoop(c *liveClient) {
	ping := time.NewTicker(livePingInterval)
	defer ping.Stop()

	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.close()
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			return
		}
	}
}
