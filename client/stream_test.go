package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestStream_DispatchesAndReconnects(t *testing.T) {
	var conns atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := conns.Add(1)
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		// one frame per connection, then drop it so the client redials
		env := Envelope{
			Sent: time.Now().UTC(),
			Message: Message{
				Type:    TypeAssetUpdate,
				AssetID: "a" + strconv.FormatInt(n, 10),
				Status:  "in_progress",
			},
		}
		if err := wsjson.Write(r.Context(), conn, env); err != nil {
			return
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	engine := NewSyncEngine(nil, nil)
	stream := NewStream(wsURL, engine, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go engine.Run(ctx)
	go stream.Run(ctx)

	// the second connection's frame arriving proves the redial
	for {
		if _, ok := engine.AssetByID("a2"); ok {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("stream never reconnected")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if rec, ok := engine.AssetByID("a1"); !ok || rec.Status != "in_progress" {
		t.Errorf("first connection's frame lost: %+v", rec)
	}
}
