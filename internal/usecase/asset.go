package usecase

import (
	"context"

	"github.com/google/uuid"
)

func (u Usecase) ListAssets(ctx context.Context, opt ListAssetsOption) ([]Asset, int, error) {
	if opt.Limit <= 0 {
		opt.Limit = 100
	}
	return u.repo.ListAssets(ctx, opt)
}

func (u Usecase) GetAssetByID(ctx context.Context, id uuid.UUID) (Asset, error) {
	return u.repo.GetAssetByID(ctx, id)
}

func (u Usecase) ListCampaigns(ctx context.Context, opt ListCampaignsOption) ([]Campaign, int, error) {
	if opt.Limit <= 0 {
		opt.Limit = 100
	}
	return u.repo.ListCampaigns(ctx, opt)
}

func (u Usecase) GetCampaignByID(ctx context.Context, id uuid.UUID) (Campaign, error) {
	return u.repo.GetCampaignByID(ctx, id)
}

func (u Usecase) GetProjectByID(ctx context.Context, id uuid.UUID) (Project, error) {
	return u.repo.GetProjectByID(ctx, id)
}

func (u Usecase) GetItemByID(ctx context.Context, id uuid.UUID) (Item, error) {
	return u.repo.GetItemByID(ctx, id)
}
