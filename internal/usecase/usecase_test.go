package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scriptorium-app/scriptorium/internal/hub"
)

// fakeRepo mirrors the database layer's semantics in memory: one lock
// standing in for the per-row locks, guarded status transitions, reservation
// rows keyed by asset id.
type fakeRepo struct {
	mu             sync.Mutex
	assets         map[uuid.UUID]*Asset
	transcriptions map[uuid.UUID]*Transcription
	reservations   map[uuid.UUID]*Reservation
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		assets:         make(map[uuid.UUID]*Asset),
		transcriptions: make(map[uuid.UUID]*Transcription),
		reservations:   make(map[uuid.UUID]*Reservation),
	}
}

func (f *fakeRepo) addAsset(status Status) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.assets[id] = &Asset{ID: id, Status: status, Title: "page"}
	return id
}

func (f *fakeRepo) Health() map[string]string { return map[string]string{"status": "up"} }
func (f *fakeRepo) Close() error              { return nil }

func (f *fakeRepo) ListAssets(_ context.Context, opt ListAssetsOption) ([]Asset, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Asset
	for _, a := range f.assets {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (f *fakeRepo) GetAssetByID(_ context.Context, id uuid.UUID) (Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return Asset{}, ErrNotFound
	}
	out := *a
	if a.LatestTranscriptionID != nil {
		if t, ok := f.transcriptions[*a.LatestTranscriptionID]; ok {
			tr := *t
			out.LatestTranscription = &tr
		}
	}
	return out, nil
}

func (f *fakeRepo) ListCampaigns(context.Context, ListCampaignsOption) ([]Campaign, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) GetCampaignByID(context.Context, uuid.UUID) (Campaign, error) {
	return Campaign{}, ErrNotFound
}

func (f *fakeRepo) GetProjectByID(context.Context, uuid.UUID) (Project, error) {
	return Project{}, ErrNotFound
}

func (f *fakeRepo) GetItemByID(context.Context, uuid.UUID) (Item, error) {
	return Item{}, ErrNotFound
}

func (f *fakeRepo) AcquireReservation(_ context.Context, assetID uuid.UUID, holder string, ttl time.Duration) (Reservation, AcquireOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()

	var outcome AcquireOutcome
	r, ok := f.reservations[assetID]
	switch {
	case !ok:
		r = &Reservation{AssetID: assetID, Holder: holder, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
		f.reservations[assetID] = r
		outcome = AcquiredNew
	case r.Holder == holder:
		r.ExpiresAt = now.Add(ttl)
		outcome = AcquiredRenewal
	case r.Expired(now):
		r.Holder = holder
		r.AcquiredAt = now
		r.ExpiresAt = now.Add(ttl)
		outcome = AcquiredTakeover
	default:
		return Reservation{}, 0, ErrReservationConflict
	}
	return *r, outcome, nil
}

func (f *fakeRepo) ReleaseReservation(_ context.Context, assetID uuid.UUID, holder string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[assetID]
	if !ok || r.Holder != holder {
		return false, nil
	}
	delete(f.reservations, assetID)
	return true, nil
}

func (f *fakeRepo) GetReservation(_ context.Context, assetID uuid.UUID) (Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[assetID]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return *r, nil
}

func (f *fakeRepo) ExpireReservations(_ context.Context, now time.Time) ([]Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []Reservation
	for id, r := range f.reservations {
		if r.Expired(now) {
			expired = append(expired, *r)
			delete(f.reservations, id)
		}
	}
	return expired, nil
}

func (f *fakeRepo) SaveTranscription(_ context.Context, tr Transcription) (Transcription, Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[tr.AssetID]
	if !ok {
		return Transcription{}, Asset{}, ErrNotFound
	}
	if a.Status != StatusNotStarted && a.Status != StatusInProgress {
		return Transcription{}, Asset{}, ErrInvalidTransition
	}
	tr.CreatedAt = time.Now().UTC()
	saved := tr
	f.transcriptions[tr.ID] = &saved
	a.Status = StatusInProgress
	id := tr.ID
	a.LatestTranscriptionID = &id
	return saved, *a, nil
}

func (f *fakeRepo) GetTranscriptionByID(_ context.Context, id uuid.UUID) (Transcription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transcriptions[id]
	if !ok {
		return Transcription{}, ErrNotFound
	}
	return *t, nil
}

func (f *fakeRepo) SubmitAsset(_ context.Context, assetID uuid.UUID, holder string) (Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[assetID]
	if !ok {
		return Asset{}, ErrNotFound
	}
	if a.Status != StatusInProgress || a.LatestTranscriptionID == nil {
		return Asset{}, ErrInvalidTransition
	}
	a.Status = StatusSubmitted
	h := holder
	a.SubmittedBy = &h
	return *a, nil
}

func (f *fakeRepo) AcceptTranscription(_ context.Context, trID uuid.UUID, reviewer string) (Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transcriptions[trID]
	if !ok {
		return Asset{}, ErrNotFound
	}
	a := f.assets[t.AssetID]
	if a.Status != StatusSubmitted || a.LatestTranscriptionID == nil || *a.LatestTranscriptionID != trID {
		return Asset{}, ErrInvalidTransition
	}
	a.Status = StatusCompleted
	t.Accepted = true
	r := reviewer
	t.ReviewedBy = &r
	return *a, nil
}

func (f *fakeRepo) RejectTranscription(_ context.Context, trID uuid.UUID, reviewer string, feedback string) (Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transcriptions[trID]
	if !ok {
		return Asset{}, ErrNotFound
	}
	a := f.assets[t.AssetID]
	if a.Status != StatusSubmitted || a.LatestTranscriptionID == nil || *a.LatestTranscriptionID != trID {
		return Asset{}, ErrInvalidTransition
	}
	a.Status = StatusInProgress
	a.SubmittedBy = nil
	r := reviewer
	t.ReviewedBy = &r
	fb := feedback
	t.Feedback = &fb
	return *a, nil
}

// fakeBroadcaster records everything published, in order.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []hub.Envelope
}

func (b *fakeBroadcaster) Publish(_ context.Context, env hub.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, env)
	return nil
}

func (b *fakeBroadcaster) byType(t string) []hub.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []hub.Envelope
	for _, e := range b.events {
		if e.Message.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (b *fakeBroadcaster) all() []hub.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]hub.Envelope, len(b.events))
	copy(out, b.events)
	return out
}

func newTestUsecase(lease time.Duration) (Usecase, *fakeRepo, *fakeBroadcaster) {
	repo := newFakeRepo()
	events := &fakeBroadcaster{}
	return New(repo, events, lease, nil), repo, events
}
