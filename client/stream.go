package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Reconnects use a fixed delay rather than backoff: connectivity is assumed
// eventually restored, and the gap is bounded staleness corrected by the
// next full list refresh.
const reconnectDelay = time.Second

// Stream keeps one websocket subscription to the asset updates topic alive,
// feeding every frame to the sync engine. Events published while
// disconnected are not replayed.
type Stream struct {
	url    string
	engine *SyncEngine
	logger *slog.Logger
}

func NewStream(url string, engine *SyncEngine, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{url: url, engine: engine, logger: logger}
}

// Run dials, reads until failure and redials until the context ends.
func (s *Stream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.Dial(ctx, s.url, nil)
		if err != nil {
			s.logger.Warn("stream: dial failed, retrying",
				slog.String("url", s.url),
				slog.String("err", err.Error()))
			if !sleep(ctx, reconnectDelay) {
				return
			}
			continue
		}

		s.logger.Info("stream: connected", slog.String("url", s.url))
		s.readLoop(ctx, conn)
		conn.Close(websocket.StatusNormalClosure, "")

		if !sleep(ctx, reconnectDelay) {
			return
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("stream: read failed, reconnecting",
					slog.String("err", err.Error()))
			}
			return
		}
		s.engine.Dispatch(env)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
