package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scriptorium-app/scriptorium/internal/usecase"
)

// Reservation is the sole authoritative editing lock. One row per asset;
// the primary key doubles as the mutual-exclusion constraint, so a lost
// insert race surfaces as a unique violation rather than a second claim.
type Reservation struct {
	AssetID    uuid.UUID `gorm:"column:asset_id;primaryKey;type:uuid"`
	Holder     string    `gorm:"column:holder"`
	AcquiredAt time.Time `gorm:"column:acquired_at"`
	ExpiresAt  time.Time `gorm:"column:expires_at;index"`
}

func (Reservation) TableName() string {
	return "reservations"
}

func (r Reservation) ConvertToUsecase() usecase.Reservation {
	return usecase.Reservation{
		AssetID:    r.AssetID,
		Holder:     r.Holder,
		AcquiredAt: r.AcquiredAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// AcquireReservation locks the reservation row for the asset (FOR UPDATE)
// and decides under that lock: create, renew for the same holder, take over
// an expired claim, or conflict. Rows of different assets never contend.
func (s *service) AcquireReservation(ctx context.Context, assetID uuid.UUID, holder string, ttl time.Duration) (usecase.Reservation, usecase.AcquireOutcome, error) {
	var (
		out     usecase.Reservation
		outcome usecase.AcquireOutcome
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var row Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "asset_id = ?", assetID).
			Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = Reservation{
				AssetID:    assetID,
				Holder:     holder,
				AcquiredAt: now,
				ExpiresAt:  now.Add(ttl),
			}
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return usecase.ErrReservationConflict
				}
				return err
			}
			outcome = usecase.AcquiredNew

		case err != nil:
			return err

		case row.Holder == holder:
			// renewal keeps acquired_at
			row.ExpiresAt = now.Add(ttl)
			if err := tx.Model(&row).Update("expires_at", row.ExpiresAt).Error; err != nil {
				return err
			}
			outcome = usecase.AcquiredRenewal

		case !row.ExpiresAt.After(now):
			// expired claim not yet swept; take it over
			row.Holder = holder
			row.AcquiredAt = now
			row.ExpiresAt = now.Add(ttl)
			if err := tx.Model(&row).Updates(map[string]any{
				"holder":      row.Holder,
				"acquired_at": row.AcquiredAt,
				"expires_at":  row.ExpiresAt,
			}).Error; err != nil {
				return err
			}
			outcome = usecase.AcquiredTakeover

		default:
			return usecase.ErrReservationConflict
		}

		out = row.ConvertToUsecase()
		return nil
	})
	if err != nil {
		return usecase.Reservation{}, 0, err
	}
	return out, outcome, nil
}

func (s *service) ReleaseReservation(ctx context.Context, assetID uuid.UUID, holder string) (bool, error) {
	var released bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "asset_id = ?", assetID).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if row.Holder != holder {
			return nil
		}
		if err := tx.Delete(&row).Error; err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

func (s *service) GetReservation(ctx context.Context, assetID uuid.UUID) (usecase.Reservation, error) {
	var row Reservation
	err := s.db.WithContext(ctx).First(&row, "asset_id = ?", assetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.Reservation{}, usecase.ErrNotFound
	}
	if err != nil {
		return usecase.Reservation{}, err
	}
	return row.ConvertToUsecase(), nil
}

func (s *service) ExpireReservations(ctx context.Context, now time.Time) ([]usecase.Reservation, error) {
	var rows []Reservation
	err := s.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("expires_at < ?", now).
		Delete(&rows).
		Error
	if err != nil {
		return nil, err
	}

	expired := make([]usecase.Reservation, 0, len(rows))
	for _, r := range rows {
		expired = append(expired, r.ConvertToUsecase())
	}
	return expired, nil
}
