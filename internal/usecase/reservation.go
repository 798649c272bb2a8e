package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scriptorium-app/scriptorium/internal/hub"
)

// DefaultLeaseDuration bounds a single editing session between heartbeats.
// Clients renew by re-acquiring well under this; an editor left idle for the
// full lease loses its claim to the expiry sweep.
const DefaultLeaseDuration = 5 * time.Minute

// AcquireReservation grants or renews the exclusive editing claim on an
// asset. Subscribers other than the acquirer learn about the claim through a
// reservation_obtained event; the acquirer already knows from the response.
// Renewals stay silent, keeping obtained/released strictly alternating per
// asset for every subscriber.
func (u Usecase) AcquireReservation(ctx context.Context, assetID uuid.UUID, holder string) (Reservation, error) {
	if holder == "" {
		return Reservation{}, fmt.Errorf("reservation holder must not be empty")
	}
	r, outcome, err := u.repo.AcquireReservation(ctx, assetID, holder, u.lease)
	if err != nil {
		return Reservation{}, err
	}
	switch outcome {
	case AcquiredTakeover:
		// the lapsed claim never got its released event
		u.publish(ctx, hub.Message{
			Type:    hub.TypeReservationReleased,
			AssetID: assetID.String(),
		})
		fallthrough
	case AcquiredNew:
		u.publish(ctx, hub.Message{
			Type:    hub.TypeReservationObtained,
			AssetID: assetID.String(),
			Holder:  holder,
		})
	}
	return r, nil
}

// ReleaseReservation gives up the claim. Releasing an asset not held by this
// holder is a reported no-op: released is false and no event goes out.
func (u Usecase) ReleaseReservation(ctx context.Context, assetID uuid.UUID, holder string) (bool, error) {
	released, err := u.repo.ReleaseReservation(ctx, assetID, holder)
	if err != nil {
		return false, err
	}
	if released {
		u.publish(ctx, hub.Message{
			Type:    hub.TypeReservationReleased,
			AssetID: assetID.String(),
		})
	}
	return released, nil
}

// SweepExpiredReservations reclaims every reservation past its lease and
// emits reservation_released for each, indistinguishable from an explicit
// release. Run periodically from the worker.
func (u Usecase) SweepExpiredReservations(ctx context.Context) (int, error) {
	expired, err := u.repo.ExpireReservations(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire reservations: %w", err)
	}
	for _, r := range expired {
		u.logger.Info("reservation expired",
			slog.String("asset_id", r.AssetID.String()),
			slog.Time("expired_at", r.ExpiresAt))
		u.publish(ctx, hub.Message{
			Type:    hub.TypeReservationReleased,
			AssetID: r.AssetID.String(),
		})
	}
	return len(expired), nil
}

// requireReservation rejects workflow writes from callers without a live
// claim. The reservation row is the sole authoritative lock; whatever the
// client believed when it sent the request is irrelevant here.
func (u Usecase) requireReservation(ctx context.Context, assetID uuid.UUID, holder string) error {
	r, err := u.repo.GetReservation(ctx, assetID)
	if err != nil {
		if err == ErrNotFound {
			return ErrReservationConflict
		}
		return err
	}
	if r.Holder != holder || r.Expired(time.Now().UTC()) {
		return ErrReservationConflict
	}
	return nil
}
