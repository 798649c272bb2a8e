package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/scriptorium-app/scriptorium/internal/usecase"
)

type Campaign struct {
	ID         uuid.UUID      `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	Title      string         `gorm:"column:title"`
	Slug       string         `gorm:"column:slug;uniqueIndex"`
	AssetStats datatypes.JSON `gorm:"column:asset_stats"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

func (c Campaign) ConvertToUsecase() usecase.Campaign {
	return usecase.Campaign{
		ID:         c.ID,
		Title:      c.Title,
		Slug:       c.Slug,
		AssetStats: json.RawMessage(c.AssetStats),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

type Project struct {
	ID         uuid.UUID `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	CampaignID uuid.UUID `gorm:"column:campaign_id;type:uuid;index"`
	Campaign   *Campaign `gorm:"foreignKey:CampaignID;references:ID"`
	Title      string    `gorm:"column:title"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

func (p Project) ConvertToUsecase() usecase.Project {
	return usecase.Project{
		ID:         p.ID,
		CampaignID: p.CampaignID,
		Title:      p.Title,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type Item struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	ProjectID uuid.UUID `gorm:"column:project_id;type:uuid;index"`
	Project   *Project  `gorm:"foreignKey:ProjectID;references:ID"`
	Title     string    `gorm:"column:title"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Item) TableName() string {
	return "items"
}

func (i Item) ConvertToUsecase() usecase.Item {
	return usecase.Item{
		ID:        i.ID,
		ProjectID: i.ProjectID,
		Title:     i.Title,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

type Asset struct {
	ID       uuid.UUID `gorm:"column:id;primaryKey;type:uuid;default:uuid_generate_v4()"`
	ItemID   uuid.UUID `gorm:"column:item_id;type:uuid;index"`
	Item     *Item     `gorm:"foreignKey:ItemID;references:ID"`
	Sequence int       `gorm:"column:sequence"`
	Title    string    `gorm:"column:title"`
	Status   string    `gorm:"column:status;default:not_started;index"`

	// Denormalized by the import pipeline so campaign filtering does not
	// join through items and projects.
	ProjectID  uuid.UUID `gorm:"column:project_id;type:uuid;index"`
	Project    *Project  `gorm:"foreignKey:ProjectID;references:ID"`
	CampaignID uuid.UUID `gorm:"column:campaign_id;type:uuid;index"`
	Campaign   *Campaign `gorm:"foreignKey:CampaignID;references:ID"`

	Difficulty   float64 `gorm:"column:difficulty"`
	ImageURL     string  `gorm:"column:image_url"`
	ThumbnailURL string  `gorm:"column:thumbnail_url"`
	SubmittedBy  *string `gorm:"column:submitted_by"`

	LatestTranscriptionID *uuid.UUID     `gorm:"column:latest_transcription_id;type:uuid"`
	LatestTranscription   *Transcription `gorm:"foreignKey:LatestTranscriptionID;references:ID"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Asset) TableName() string {
	return "assets"
}

func (a Asset) ConvertToUsecase() usecase.Asset {
	return usecase.Asset{
		ID:                    a.ID,
		ItemID:                a.ItemID,
		Sequence:              a.Sequence,
		Title:                 a.Title,
		Status:                usecase.Status(a.Status),
		Difficulty:            a.Difficulty,
		ImageURL:              a.ImageURL,
		ThumbnailURL:          a.ThumbnailURL,
		SubmittedBy:           a.SubmittedBy,
		LatestTranscriptionID: a.LatestTranscriptionID,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

func convertAsset(a Asset) usecase.Asset {
	ua := a.ConvertToUsecase()
	if a.Item != nil {
		item := a.Item.ConvertToUsecase()
		ua.Item = &item
	}
	if a.Project != nil {
		project := a.Project.ConvertToUsecase()
		ua.Project = &project
	}
	if a.Campaign != nil {
		campaign := a.Campaign.ConvertToUsecase()
		ua.Campaign = &campaign
	}
	if a.LatestTranscription != nil {
		tr := a.LatestTranscription.ConvertToUsecase()
		ua.LatestTranscription = &tr
	}
	return ua
}

func (s *service) ListAssets(ctx context.Context, opt usecase.ListAssetsOption) ([]usecase.Asset, int, error) {
	var (
		assets []Asset
		count  int64
	)

	db := s.db.Model([]Asset{}).WithContext(ctx)

	if opt.CampaignID != nil {
		db = db.Where("campaign_id = ?", *opt.CampaignID)
	}
	if opt.ItemID != nil {
		db = db.Where("item_id = ?", *opt.ItemID)
	}
	if opt.Status != nil {
		db = db.Where("status = ?", string(*opt.Status))
	}

	err := db.
		Preload("Item").
		Preload("Project").
		Preload("Campaign").
		Preload("LatestTranscription").
		Count(&count).
		Order("sequence ASC, id ASC").
		Limit(opt.Limit).
		Offset(opt.Skip).
		Find(&assets).
		Error
	if err != nil {
		return nil, 0, err
	}

	list := make([]usecase.Asset, 0, len(assets))
	for _, a := range assets {
		list = append(list, convertAsset(a))
	}
	return list, int(count), nil
}

func (s *service) GetAssetByID(ctx context.Context, id uuid.UUID) (usecase.Asset, error) {
	var a Asset
	err := s.db.WithContext(ctx).
		Preload("Item").
		Preload("Project").
		Preload("Campaign").
		Preload("LatestTranscription").
		First(&a, "id = ?", id).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.Asset{}, usecase.ErrNotFound
	}
	if err != nil {
		return usecase.Asset{}, err
	}
	return convertAsset(a), nil
}

func (s *service) ListCampaigns(ctx context.Context, opt usecase.ListCampaignsOption) ([]usecase.Campaign, int, error) {
	var (
		campaigns []Campaign
		count     int64
	)
	err := s.db.Model([]Campaign{}).WithContext(ctx).
		Count(&count).
		Order("title ASC").
		Limit(opt.Limit).
		Offset(opt.Skip).
		Find(&campaigns).
		Error
	if err != nil {
		return nil, 0, err
	}

	list := make([]usecase.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		list = append(list, c.ConvertToUsecase())
	}
	return list, int(count), nil
}

func (s *service) GetCampaignByID(ctx context.Context, id uuid.UUID) (usecase.Campaign, error) {
	var c Campaign
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.Campaign{}, usecase.ErrNotFound
	}
	if err != nil {
		return usecase.Campaign{}, err
	}
	return c.ConvertToUsecase(), nil
}

func (s *service) GetProjectByID(ctx context.Context, id uuid.UUID) (usecase.Project, error) {
	var p Project
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.Project{}, usecase.ErrNotFound
	}
	if err != nil {
		return usecase.Project{}, err
	}
	return p.ConvertToUsecase(), nil
}

func (s *service) GetItemByID(ctx context.Context, id uuid.UUID) (usecase.Item, error) {
	var i Item
	err := s.db.WithContext(ctx).First(&i, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return usecase.Item{}, usecase.ErrNotFound
	}
	if err != nil {
		return usecase.Item{}, err
	}
	return i.ConvertToUsecase(), nil
}
