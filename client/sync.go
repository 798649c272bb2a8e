package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// AssetRecord is the engine's merged view of one asset: the highest-sent
// snapshot for the stable fields plus the highest-sent value of the volatile
// group, tracked separately so a partial stream delta never clobbers fields
// it did not carry.
type AssetRecord struct {
	Asset
	// VolatileSent is the largest sent observed for the volatile group
	// {status, difficulty, submitted_by, latest_transcription}.
	VolatileSent time.Time
	// SnapshotSent is the largest sent of any full snapshot merged in.
	SnapshotSent time.Time
}

// AssetDelta is one unit of reconciliation input, built either from a
// streamed asset_update or from a list-page snapshot.
type AssetDelta struct {
	Sent                time.Time
	Status              string
	Difficulty          *float64
	SubmittedBy         *string
	LatestTranscription *TranscriptionRef
	// Snapshot, when set, also refreshes the non-volatile fields.
	Snapshot *Asset
}

func snapshotDelta(a Asset) AssetDelta {
	difficulty := a.Difficulty
	return AssetDelta{
		Sent:                a.Sent,
		Status:              a.Status,
		Difficulty:          &difficulty,
		SubmittedBy:         a.SubmittedBy,
		LatestTranscription: a.LatestTranscription,
		Snapshot:            &a,
	}
}

// SyncEngine owns the client-side caches of assets, items, projects and
// campaigns, and reconciles REST snapshots with streamed deltas. It replaces
// any notion of page-global state: create one per mounted view, close it on
// teardown.
type SyncEngine struct {
	client *Client
	logger *slog.Logger

	mu        sync.RWMutex
	assets    map[string]*AssetRecord
	items     map[string]Ref
	projects  map[string]Ref
	campaigns map[string]Campaign

	group singleflight.Group

	inbound  chan Envelope
	handlers []func(Envelope)
}

func NewSyncEngine(c *Client, logger *slog.Logger) *SyncEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncEngine{
		client:    c,
		logger:    logger,
		assets:    make(map[string]*AssetRecord),
		items:     make(map[string]Ref),
		projects:  make(map[string]Ref),
		campaigns: make(map[string]Campaign),
		inbound:   make(chan Envelope, 64),
	}
}

// OnEvent registers a handler invoked for every processed stream event, on
// the engine's single processing goroutine. Register before Run.
func (e *SyncEngine) OnEvent(fn func(Envelope)) {
	e.handlers = append(e.handlers, fn)
}

// Dispatch queues one stream frame for processing in arrival order.
func (e *SyncEngine) Dispatch(env Envelope) {
	e.inbound <- env
}

// Run processes stream frames one at a time until the context ends. A
// single goroutine consumes the queue, so handlers observe events in a
// fixed order; only sent values establish cross-source ordering.
func (e *SyncEngine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-e.inbound:
			e.handle(env)
		}
	}
}

func (e *SyncEngine) handle(env Envelope) {
	m := env.Message
	switch m.Type {
	case TypeAssetUpdate:
		e.MergeAssetUpdate(m.AssetID, AssetDelta{
			Sent:                env.Sent,
			Status:              m.Status,
			Difficulty:          m.Difficulty,
			SubmittedBy:         m.SubmittedBy,
			LatestTranscription: m.LatestTranscription,
		})
	case TypeReservationObtained, TypeReservationReleased:
		// No cache mutation; availability is a view concern.
	default:
		e.logger.Warn("sync: ignoring unknown message type",
			slog.String("type", m.Type))
		return
	}
	for _, fn := range e.handlers {
		fn(env)
	}
}

// MergeAssetUpdate reconciles a delta into the cached record. The volatile
// group wins or loses as a group on sent; equal or older deltas change
// nothing, which makes duplicate and out-of-order delivery harmless.
func (e *SyncEngine) MergeAssetUpdate(id string, delta AssetDelta) AssetRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.assets[id]
	if !ok {
		rec = &AssetRecord{Asset: Asset{ID: id}}
		e.assets[id] = rec
	}

	if delta.Snapshot != nil && delta.Sent.After(rec.SnapshotSent) {
		s := *delta.Snapshot
		rec.Sequence = s.Sequence
		rec.Title = s.Title
		rec.Item = s.Item
		rec.Project = s.Project
		rec.Campaign = s.Campaign
		rec.ImageURL = s.ImageURL
		rec.ThumbnailURL = s.ThumbnailURL
		rec.ResourceURL = s.ResourceURL
		rec.SnapshotSent = delta.Sent
	}

	if delta.Sent.After(rec.VolatileSent) {
		if delta.Status != "" {
			rec.Status = delta.Status
		}
		if delta.Difficulty != nil {
			rec.Difficulty = *delta.Difficulty
		}
		rec.SubmittedBy = delta.SubmittedBy
		rec.LatestTranscription = delta.LatestTranscription
		rec.VolatileSent = delta.Sent
	}

	rec.Sent = rec.VolatileSent
	return *rec
}

// MergePage merges every asset of a fetched list page as a full snapshot.
func (e *SyncEngine) MergePage(page AssetPage) []AssetRecord {
	merged := make([]AssetRecord, 0, len(page.Objects))
	for _, a := range page.Objects {
		if a.Sent.IsZero() {
			a.Sent = page.Sent
		}
		merged = append(merged, e.MergeAssetUpdate(a.ID, snapshotDelta(a)))
	}
	return merged
}

// AssetByID returns the merged record, if any.
func (e *SyncEngine) AssetByID(id string) (AssetRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.assets[id]
	if !ok {
		return AssetRecord{}, false
	}
	return *rec, true
}

// CachedItem returns the item ref from cache, fetching ref.URL on a miss.
// Concurrent callers for the same uncached id share one in-flight fetch.
func (e *SyncEngine) CachedItem(ctx context.Context, ref Ref) (Ref, error) {
	e.mu.RLock()
	cached, ok := e.items[ref.ID]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := e.group.Do("item:"+ref.ID, func() (any, error) {
		var out Ref
		if err := e.client.fetchObject(ctx, ref.URL, &out); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.items[out.ID] = out
		e.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return Ref{}, err
	}
	return v.(Ref), nil
}

func (e *SyncEngine) CachedProject(ctx context.Context, ref Ref) (Ref, error) {
	e.mu.RLock()
	cached, ok := e.projects[ref.ID]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := e.group.Do("project:"+ref.ID, func() (any, error) {
		var out Ref
		if err := e.client.fetchObject(ctx, ref.URL, &out); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.projects[out.ID] = out
		e.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return Ref{}, err
	}
	return v.(Ref), nil
}

func (e *SyncEngine) CachedCampaign(ctx context.Context, ref Ref) (Campaign, error) {
	e.mu.RLock()
	cached, ok := e.campaigns[ref.ID]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := e.group.Do("campaign:"+ref.ID, func() (any, error) {
		var out Campaign
		if err := e.client.fetchObject(ctx, ref.URL, &out); err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.campaigns[out.ID] = out
		e.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return Campaign{}, err
	}
	return v.(Campaign), nil
}
