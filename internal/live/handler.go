package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/statsquest/internal/progress"
)

const writeTimeout = 5 * time.Second

// Message types sent to clients.
const (
	TypeSummary = "summary"
	TypeUpdate  = "update"
)

// Message is the envelope for every frame.
type Message[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// Handler serves the progress feed over WebSocket. It sends the current
// summary on connect and then every update until the client goes away.
type Handler struct {
	hub     *Hub
	summary func() progress.Summary
	origins []string
}

// NewHandler creates a feed handler. origins lists extra allowed Origin host
// patterns; same-origin requests are always accepted.
func NewHandler(hub *Hub, summary func() progress.Summary, origins ...string) *Handler {
	return &Handler{hub: hub, summary: summary, origins: origins}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// Subscribe before taking the summary so no update falls in between.
	updates, cancel := h.hub.Subscribe()
	defer cancel()

	// The feed is write-only; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())

	if err := write(ctx, conn, Message[progress.Summary]{Type: TypeSummary, Payload: h.summary()}); err != nil {
		return
	}

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := write(ctx, conn, Message[progress.Update]{Type: TypeUpdate, Payload: u}); err != nil {
				return
			}
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err := wsjson.Write(ctx, conn, msg)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("websocket write failed", "error", err)
	}
	return err
}
