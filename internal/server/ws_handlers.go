package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"

	"github.com/scriptorium-app/scriptorium/internal/hub"
)

const wsWriteTimeout = 10 * time.Second

// StreamAssetUpdates pushes every asset event to the connection, except
// reservation_obtained events caused by this session's own acquire: the
// acquirer already knows from the HTTP response.
func (s *Server) StreamAssetUpdates(ctx echo.Context) error {
	conn, err := websocket.Accept(ctx.Response(), ctx.Request(), &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	token := s.sessionToken(ctx)
	reqCtx := ctx.Request().Context()

	events := make(chan hub.Envelope, 32)
	s.hub.Subscribe(events)
	defer s.hub.Unsubscribe(events)

	s.logger.Info("ws: subscriber connected", slog.String("session", token))

	// The protocol is push-only; the read loop exists to notice the peer
	// going away.
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		for {
			if _, _, err := conn.Read(reqCtx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-reqCtx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return nil
		case <-readClosed:
			s.logger.Info("ws: subscriber disconnected", slog.String("session", token))
			return nil
		case env := <-events:
			if env.Message.Type == hub.TypeReservationObtained && env.Message.Holder == token {
				continue
			}
			wctx, cancel := context.WithTimeout(reqCtx, wsWriteTimeout)
			err := wsjson.Write(wctx, conn, env)
			cancel()
			if err != nil {
				s.logger.Warn("ws: write failed, dropping subscriber",
					slog.String("session", token),
					slog.String("err", err.Error()))
				return nil
			}
		}
	}
}
