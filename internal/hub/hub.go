package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the single logical topic all asset events flow through.
const Channel = "scriptorium:asset-updates"

// Message types carried on the asset updates topic.
const (
	TypeAssetUpdate         = "asset_update"
	TypeReservationObtained = "reservation_obtained"
	TypeReservationReleased = "reservation_released"
)

type TranscriptionRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Message is the inner payload of an asset event. Fields beyond Type and
// AssetID are populated per message type: Holder for reservation_obtained,
// the volatile asset fields for asset_update.
type Message struct {
	Type                string            `json:"type"`
	AssetID             string            `json:"asset_id"`
	Holder              string            `json:"holder,omitempty"`
	Status              string            `json:"status,omitempty"`
	Difficulty          *float64          `json:"difficulty,omitempty"`
	SubmittedBy         *string           `json:"submitted_by,omitempty"`
	LatestTranscription *TranscriptionRef `json:"latest_transcription,omitempty"`
}

// Envelope wraps a Message with the producer-assigned sent timestamp that
// subscribers use to resolve out-of-order delivery.
type Envelope struct {
	Sent    time.Time `json:"sent"`
	Message Message   `json:"message"`
}

// Hub fans out asset events to local subscribers. When constructed with a
// Redis client, publishes go through a Redis pub/sub channel so that every
// process (API instances, workers) sees events produced by any of them;
// without Redis the hub degrades to in-process fan-out.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan<- Envelope]struct{}

	rdb    *redis.Client
	pubsub *redis.PubSub
	logger *slog.Logger
	cancel context.CancelFunc
}

func New(rdb *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		subscribers: make(map[chan<- Envelope]struct{}),
		rdb:         rdb,
		logger:      logger,
	}
	if rdb != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		h.pubsub = rdb.Subscribe(ctx, Channel)
		go h.relay(ctx)
	}
	return h
}

// Publish sends the envelope to every subscriber. With Redis attached the
// envelope makes a round trip through the pub/sub channel; local fan-out
// happens when the relay receives it back.
func (h *Hub) Publish(ctx context.Context, env Envelope) error {
	if h.rdb == nil {
		h.fanout(env)
		return nil
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := h.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", Channel, err)
	}
	return nil
}

func (h *Hub) relay(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-h.pubsub.Channel():
			if !ok {
				return
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Error("hub: dropping malformed event",
					slog.String("err", err.Error()))
				continue
			}
			h.fanout(env)
		}
	}
}

func (h *Hub) fanout(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- env:
		default:
			// Slow subscriber; skipped events are corrected by the
			// client's next full list refresh.
			h.logger.Warn("hub: subscriber channel full, skipping event",
				slog.String("type", env.Message.Type),
				slog.String("asset_id", env.Message.AssetID))
		}
	}
}

func (h *Hub) Subscribe(ch chan<- Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[ch] = struct{}{}
}

func (h *Hub) Unsubscribe(ch chan<- Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, ch)
}

func (h *Hub) Close() error {
	if h.cancel != nil {
		h.cancel()
	}
	if h.pubsub != nil {
		return h.pubsub.Close()
	}
	return nil
}
