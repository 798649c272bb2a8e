package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scriptorium-app/scriptorium/internal/usecase"
)

type Transcription struct {
	ID           uuid.UUID  `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	AssetID      uuid.UUID  `gorm:"column:asset_id;type:uuid;index"`
	Text         string     `gorm:"column:text"`
	Author       string     `gorm:"column:author"`
	SupersedesID *uuid.UUID `gorm:"column:supersedes_id;type:uuid"`
	Accepted     bool       `gorm:"column:accepted;default:false"`
	ReviewedBy   *string    `gorm:"column:reviewed_by"`
	Feedback     *string    `gorm:"column:feedback"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
}

func (Transcription) TableName() string {
	return "transcriptions"
}

func (t Transcription) ConvertToUsecase() usecase.Transcription {
	return usecase.Transcription{
		ID:           t.ID,
		AssetID:      t.AssetID,
		Text:         t.Text,
		Author:       t.Author,
		SupersedesID: t.SupersedesID,
		Accepted:     t.Accepted,
		ReviewedBy:   t.ReviewedBy,
		Feedback:     t.Feedback,
		CreatedAt:    t.CreatedAt,
	}
}

func (s *service) GetTranscriptionByID(ctx context.Context, id uuid.UUID) (usecase.Transcription, error) {
	var t Transcription
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.Transcription{}, usecase.ErrNotFound
	}
	if err != nil {
		return usecase.Transcription{}, err
	}
	return t.ConvertToUsecase(), nil
}

// SaveTranscription inserts the new head of the supersedes chain and points
// the asset at it, moving the asset to in_progress. The guarded update keeps
// concurrent writers from resurrecting a submitted or completed asset.
func (s *service) SaveTranscription(ctx context.Context, tr usecase.Transcription) (usecase.Transcription, usecase.Asset, error) {
	row := Transcription{
		ID:           tr.ID,
		AssetID:      tr.AssetID,
		Text:         tr.Text,
		Author:       tr.Author,
		SupersedesID: tr.SupersedesID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		res := tx.Model(&Asset{}).
			Where("id = ? AND status IN ?", tr.AssetID,
				[]string{string(usecase.StatusNotStarted), string(usecase.StatusInProgress)}).
			Updates(map[string]any{
				"status":                  string(usecase.StatusInProgress),
				"latest_transcription_id": row.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return usecase.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return usecase.Transcription{}, usecase.Asset{}, err
	}

	asset, err := s.GetAssetByID(ctx, tr.AssetID)
	if err != nil {
		return usecase.Transcription{}, usecase.Asset{}, err
	}
	return row.ConvertToUsecase(), asset, nil
}

func (s *service) SubmitAsset(ctx context.Context, assetID uuid.UUID, holder string) (usecase.Asset, error) {
	res := s.db.WithContext(ctx).Model(&Asset{}).
		Where("id = ? AND status = ? AND latest_transcription_id IS NOT NULL",
			assetID, string(usecase.StatusInProgress)).
		Updates(map[string]any{
			"status":       string(usecase.StatusSubmitted),
			"submitted_by": holder,
		})
	if res.Error != nil {
		return usecase.Asset{}, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetAssetByID(ctx, assetID); err != nil {
			return usecase.Asset{}, err
		}
		return usecase.Asset{}, usecase.ErrInvalidTransition
	}
	return s.GetAssetByID(ctx, assetID)
}

func (s *service) AcceptTranscription(ctx context.Context, transcriptionID uuid.UUID, reviewer string) (usecase.Asset, error) {
	var assetID uuid.UUID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t Transcription
		if err := tx.First(&t, "id = ?", transcriptionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return usecase.ErrNotFound
			}
			return err
		}
		assetID = t.AssetID

		res := tx.Model(&Asset{}).
			Where("id = ? AND status = ? AND latest_transcription_id = ?",
				t.AssetID, string(usecase.StatusSubmitted), transcriptionID).
			Update("status", string(usecase.StatusCompleted))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return usecase.ErrInvalidTransition
		}

		return tx.Model(&Transcription{}).
			Where("id = ?", transcriptionID).
			Updates(map[string]any{
				"accepted":    true,
				"reviewed_by": reviewer,
			}).Error
	})
	if err != nil {
		return usecase.Asset{}, err
	}
	return s.GetAssetByID(ctx, assetID)
}

func (s *service) RejectTranscription(ctx context.Context, transcriptionID uuid.UUID, reviewer string, feedback string) (usecase.Asset, error) {
	var assetID uuid.UUID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t Transcription
		if err := tx.First(&t, "id = ?", transcriptionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return usecase.ErrNotFound
			}
			return err
		}
		assetID = t.AssetID

		res := tx.Model(&Asset{}).
			Where("id = ? AND status = ? AND latest_transcription_id = ?",
				t.AssetID, string(usecase.StatusSubmitted), transcriptionID).
			Updates(map[string]any{
				"status":       string(usecase.StatusInProgress),
				"submitted_by": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return usecase.ErrInvalidTransition
		}

		return tx.Model(&Transcription{}).
			Where("id = ?", transcriptionID).
			Updates(map[string]any{
				"reviewed_by": reviewer,
				"feedback":    feedback,
			}).Error
	})
	if err != nil {
		return usecase.Asset{}, err
	}
	return s.GetAssetByID(ctx, assetID)
}
