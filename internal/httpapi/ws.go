package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// progressWS streams progress snapshots for a running review and closes
// normally when the run ends. Subscribing happens before the upgrade so
// an idle game still gets a JSON 404.
func (s *Server) progressWS(w http.ResponseWriter, r *http.Request, gameID string) {
	ch, stop, err := s.reviews.Subscribe(gameID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "no_active_review", "no review is running for this game")
		return
	}
	defer stop()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	// The client never sends application data; CloseRead surfaces its
	// disconnect through the returned context.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "review finished")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, toDTOProgress(gameID, p))
			cancel()
			if err != nil {
				return
			}
		}
	}
}
