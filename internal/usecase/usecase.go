package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scriptorium-app/scriptorium/internal/hub"
)

// Status is an asset's position in the transcription workflow.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusCompleted  Status = "completed"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrReservationConflict = errors.New("asset is reserved by another session")
	ErrInvalidTransition   = errors.New("invalid workflow transition")
	ErrSelfReview          = errors.New("submitter cannot review their own transcription")
	ErrConfirmRequired     = errors.New("discarding existing draft text requires confirmation")
)

type Campaign struct {
	ID         uuid.UUID
	Title      string
	Slug       string
	AssetStats json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Project struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Campaign *Campaign
}

type Item struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Project *Project
}

type Asset struct {
	ID           uuid.UUID
	ItemID       uuid.UUID
	Sequence     int
	Title        string
	Status       Status
	Difficulty   float64
	ImageURL     string
	ThumbnailURL string
	SubmittedBy  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	LatestTranscriptionID *uuid.UUID
	LatestTranscription   *Transcription

	Item     *Item
	Project  *Project
	Campaign *Campaign
}

// Transcription is immutable once written; edits create a new row that
// supersedes the previous one.
type Transcription struct {
	ID           uuid.UUID
	AssetID      uuid.UUID
	Text         string
	Author       string
	SupersedesID *uuid.UUID
	Accepted     bool
	ReviewedBy   *string
	Feedback     *string
	CreatedAt    time.Time
}

// Reservation is a time-leased exclusive editing claim on one asset. The
// holder is an authenticated user id or an anonymous session token.
type Reservation struct {
	AssetID    uuid.UUID
	Holder     string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// AcquireOutcome classifies a successful acquire.
type AcquireOutcome int

const (
	// AcquiredNew claimed a previously unreserved asset.
	AcquiredNew AcquireOutcome = iota
	// AcquiredRenewal extended the caller's existing claim.
	AcquiredRenewal
	// AcquiredTakeover replaced an expired claim the sweep had not
	// reclaimed yet.
	AcquiredTakeover
)

type ListAssetsOption struct {
	Skip       int
	Limit      int
	CampaignID *uuid.UUID
	ItemID     *uuid.UUID
	Status     *Status
}

type ListCampaignsOption struct {
	Skip  int
	Limit int
}

type Repository interface {
	Health() map[string]string
	Close() error

	ListAssets(context.Context, ListAssetsOption) ([]Asset, int, error)
	GetAssetByID(context.Context, uuid.UUID) (Asset, error)
	ListCampaigns(context.Context, ListCampaignsOption) ([]Campaign, int, error)
	GetCampaignByID(context.Context, uuid.UUID) (Campaign, error)
	GetProjectByID(context.Context, uuid.UUID) (Project, error)
	GetItemByID(context.Context, uuid.UUID) (Item, error)

	// AcquireReservation atomically claims or renews the asset's
	// reservation, returning ErrReservationConflict when a different
	// unexpired holder owns it. The outcome tells the caller which
	// events are due: none for a renewal, obtained for a new claim, and
	// released+obtained for taking over an expired claim the sweep had
	// not reclaimed yet.
	AcquireReservation(ctx context.Context, assetID uuid.UUID, holder string, ttl time.Duration) (Reservation, AcquireOutcome, error)
	// ReleaseReservation reports false when nothing was held by this
	// holder; that is a no-op, not an error.
	ReleaseReservation(ctx context.Context, assetID uuid.UUID, holder string) (bool, error)
	GetReservation(ctx context.Context, assetID uuid.UUID) (Reservation, error)
	ExpireReservations(ctx context.Context, now time.Time) ([]Reservation, error)

	SaveTranscription(context.Context, Transcription) (Transcription, Asset, error)
	GetTranscriptionByID(context.Context, uuid.UUID) (Transcription, error)
	SubmitAsset(ctx context.Context, assetID uuid.UUID, holder string) (Asset, error)
	AcceptTranscription(ctx context.Context, transcriptionID uuid.UUID, reviewer string) (Asset, error)
	RejectTranscription(ctx context.Context, transcriptionID uuid.UUID, reviewer string, feedback string) (Asset, error)
}

// Broadcaster is the event fan-out the usecase publishes to; satisfied by
// *hub.Hub.
type Broadcaster interface {
	Publish(context.Context, hub.Envelope) error
}

type Usecase struct {
	repo   Repository
	events Broadcaster
	lease  time.Duration
	logger *slog.Logger
}

func New(repo Repository, events Broadcaster, lease time.Duration, logger *slog.Logger) Usecase {
	if lease <= 0 {
		lease = DefaultLeaseDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Usecase{repo: repo, events: events, lease: lease, logger: logger}
}

func (u Usecase) Health() map[string]string {
	return u.repo.Health()
}

func (u Usecase) Close() error {
	return u.repo.Close()
}

func (u Usecase) publish(ctx context.Context, m hub.Message) {
	env := hub.Envelope{Sent: time.Now().UTC(), Message: m}
	if err := u.events.Publish(ctx, env); err != nil {
		u.logger.Error("publish event",
			slog.String("type", m.Type),
			slog.String("asset_id", m.AssetID),
			slog.String("err", err.Error()))
	}
}
