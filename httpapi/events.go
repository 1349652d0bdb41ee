package httpapi

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// handleEvents streams session notices as JSON text frames.
// ?kind=high_risk,security_event narrows the stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.notices == nil {
		writeError(w, ErrServiceUnavailable.WithMessage("event stream is not configured"))
		return
	}

	var kinds []session.NoticeKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		for k := range strings.SplitSeq(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, session.NoticeKind(k))
			}
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.DebugContext(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := s.notices.Subscribe(ctx)
	defer func() { _ = sub.Close() }()

	// Reader: handles pongs and notices client close.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	msgs := sub.Receive(ctx)
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case msg, ok := <-msgs:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
				return
			}
			if len(kinds) > 0 && !slices.Contains(kinds, msg.Data.Kind) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg.Data); err != nil {
				s.logger.DebugContext(ctx, "websocket write failed", logger.Error(err))
				return
			}
		}
	}
}
