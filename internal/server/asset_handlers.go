package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scriptorium-app/scriptorium/internal/usecase"
)

type Ref struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type TranscriptionRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Asset struct {
	ID                  string            `json:"id"`
	Sequence            int               `json:"sequence"`
	Title               string            `json:"title"`
	Status              string            `json:"status"`
	Difficulty          float64           `json:"difficulty"`
	Item                *Ref              `json:"item,omitempty"`
	Project             *Ref              `json:"project,omitempty"`
	Campaign            *Ref              `json:"campaign,omitempty"`
	LatestTranscription *TranscriptionRef `json:"latest_transcription,omitempty"`
	SubmittedBy         *string           `json:"submitted_by,omitempty"`
	ImageURL            string            `json:"image_url"`
	ThumbnailURL        string            `json:"thumbnail_url"`
	ResourceURL         string            `json:"resource_url"`
	Sent                string            `json:"sent"`
}

type Pagination struct {
	Next *string `json:"next"`
}

// AssetPage is the paginated list contract: clients merge Objects into their
// cache keyed on Sent and follow Pagination.Next until it is null.
type AssetPage struct {
	Objects    []Asset    `json:"objects"`
	Pagination Pagination `json:"pagination"`
	Sent       string     `json:"sent"`
}

func convertAsset(a usecase.Asset, sent string) Asset {
	out := Asset{
		ID:           a.ID.String(),
		Sequence:     a.Sequence,
		Title:        a.Title,
		Status:       string(a.Status),
		Difficulty:   a.Difficulty,
		SubmittedBy:  a.SubmittedBy,
		ImageURL:     a.ImageURL,
		ThumbnailURL: a.ThumbnailURL,
		ResourceURL:  fmt.Sprintf("/api/v1/assets/%s", a.ID),
		Sent:         sent,
	}
	if a.Item != nil {
		out.Item = &Ref{
			ID:    a.Item.ID.String(),
			URL:   fmt.Sprintf("/api/v1/items/%s", a.Item.ID),
			Title: a.Item.Title,
		}
	}
	if a.Project != nil {
		out.Project = &Ref{
			ID:    a.Project.ID.String(),
			URL:   fmt.Sprintf("/api/v1/projects/%s", a.Project.ID),
			Title: a.Project.Title,
		}
	}
	if a.Campaign != nil {
		out.Campaign = &Ref{
			ID:    a.Campaign.ID.String(),
			URL:   fmt.Sprintf("/api/v1/campaigns/%s", a.Campaign.ID),
			Title: a.Campaign.Title,
		}
	}
	if a.LatestTranscriptionID != nil {
		out.LatestTranscription = &TranscriptionRef{
			ID:  a.LatestTranscriptionID.String(),
			URL: fmt.Sprintf("/api/v1/transcriptions/%s", a.LatestTranscriptionID),
		}
	}
	return out
}

type ListAssetsRequest struct {
	Skip     int    `query:"skip"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=500"`
	Campaign string `query:"campaign" validate:"omitempty,uuid"`
	Item     string `query:"item" validate:"omitempty,uuid"`
	Status   string `query:"status" validate:"omitempty,oneof=not_started in_progress submitted completed"`
}

func (s *Server) ListAssets(ctx echo.Context) error {
	var req ListAssetsRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	if req.Limit == 0 {
		req.Limit = 100
	}

	opt := usecase.ListAssetsOption{
		Skip:  req.Skip,
		Limit: req.Limit,
	}
	if req.Campaign != "" {
		id, _ := uuid.Parse(req.Campaign)
		opt.CampaignID = &id
	}
	if req.Item != "" {
		id, _ := uuid.Parse(req.Item)
		opt.ItemID = &id
	}
	if req.Status != "" {
		st := usecase.Status(req.Status)
		opt.Status = &st
	}

	assets, total, err := s.server.ListAssets(ctx.Request().Context(), opt)
	if err != nil {
		return ctx.JSON(500, Res{Error: err.Error()})
	}

	sent := time.Now().UTC().Format(time.RFC3339Nano)

	objects := make([]Asset, 0, len(assets))
	for _, a := range assets {
		objects = append(objects, convertAsset(a, sent))
	}

	page := AssetPage{
		Objects: objects,
		Sent:    sent,
	}
	if req.Skip+len(assets) < total {
		next := nextPageURL(ctx.Request().URL, req.Skip+req.Limit, req.Limit)
		page.Pagination.Next = &next
	}

	return ctx.JSON(200, page)
}

func nextPageURL(u *url.URL, skip, limit int) string {
	next := *u
	q := next.Query()
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	next.RawQuery = q.Encode()
	return next.String()
}

type GetAssetRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

func (s *Server) GetAssetByID(ctx echo.Context) error {
	var req GetAssetRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	id, _ := uuid.Parse(req.ID)

	asset, err := s.server.GetAssetByID(ctx.Request().Context(), id)
	if errors.Is(err, usecase.ErrNotFound) {
		return ctx.JSON(404, Res{Error: "asset not found"})
	}
	if err != nil {
		return ctx.JSON(500, Res{Error: err.Error()})
	}

	sent := time.Now().UTC().Format(time.RFC3339Nano)
	return ctx.JSON(200, map[string]any{"object": convertAsset(asset, sent)})
}

type Campaign struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Slug       string          `json:"slug"`
	AssetStats json.RawMessage `json:"asset_stats,omitempty"`
}

func convertCampaign(c usecase.Campaign) Campaign {
	return Campaign{
		ID:         c.ID.String(),
		Title:      c.Title,
		Slug:       c.Slug,
		AssetStats: c.AssetStats,
	}
}

type ListCampaignsRequest struct {
	Skip  int `query:"skip"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
}

func (s *Server) ListCampaigns(ctx echo.Context) error {
	var req ListCampaignsRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}

	campaigns, total, err := s.server.ListCampaigns(ctx.Request().Context(), usecase.ListCampaignsOption{
		Skip:  req.Skip,
		Limit: req.Limit,
	})
	if err != nil {
		return ctx.JSON(500, Res{Error: err.Error()})
	}

	objects := make([]Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		objects = append(objects, convertCampaign(c))
	}

	return ctx.JSON(200, map[string]any{
		"objects": objects,
		"meta":    Meta{Total: total, Skip: req.Skip, Limit: req.Limit},
	})
}

type GetByIDRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

func (s *Server) GetCampaignByID(ctx echo.Context) error {
	var req GetByIDRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	id, _ := uuid.Parse(req.ID)

	c, err := s.server.GetCampaignByID(ctx.Request().Context(), id)
	if errors.Is(err, usecase.ErrNotFound) {
		return ctx.JSON(404, Res{Error: "campaign not found"})
	}
	if err != nil {
		return ctx.JSON(500, Res{Error: err.Error()})
	}
	return ctx.JSON(200, map[string]any{"object": convertCampaign(c)})
}

func (s *Server) GetProjectByID(ctx echo.Context) error {
	var req GetByIDRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	id, _ := uuid.Parse(req.ID)

	p, err := s.server.GetProjectByID(ctx.Request().Context(), id)
	if errors.Is(err, usecase.ErrNotFound) {
		return ctx.JSON(404, Res{Error: "project not found"})
	}
	if err != nil {
		return ctx.JSON(500, Res{Error: err.Error()})
	}
	return ctx.JSON(200, map[string]any{"object": Ref{
		ID:    p.ID.String(),
		URL:   fmt.Sprintf("/api/v1/projects/%s", p.ID),
		Title: p.Title,
	}})
}

func (s *Server) GetItemByID(ctx echo.Context) error {
	var req GetByIDRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	id, _ := uuid.Parse(req.ID)

	i, err := s.server.GetItemByID(ctx.Request().Context(), id)
	if errors.Is(err, usecase.ErrNotFound) {
		return ctx.JSON(404, Res{Error: "item not found"})
	}
	if err != nil {
		return ctx.JSON(500, Res{Error: err.Error()})
	}
	return ctx.JSON(200, map[string]any{"object": Ref{
		ID:    i.ID.String(),
		URL:   fmt.Sprintf("/api/v1/items/%s", i.ID),
		Title: i.Title,
	}})
}
