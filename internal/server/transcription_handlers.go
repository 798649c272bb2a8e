package server

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scriptorium-app/scriptorium/internal/usecase"
)

type Transcription struct {
	ID         string  `json:"id"`
	AssetID    string  `json:"asset_id"`
	Text       string  `json:"text"`
	Author     string  `json:"author"`
	Supersedes *string `json:"supersedes,omitempty"`
	Accepted   bool    `json:"accepted"`
	ReviewedBy *string `json:"reviewed_by,omitempty"`
	Feedback   *string `json:"feedback,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func convertTranscription(t usecase.Transcription) Transcription {
	out := Transcription{
		ID:         t.ID.String(),
		AssetID:    t.AssetID.String(),
		Text:       t.Text,
		Author:     t.Author,
		Accepted:   t.Accepted,
		ReviewedBy: t.ReviewedBy,
		Feedback:   t.Feedback,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
	}
	if t.SupersedesID != nil {
		id := t.SupersedesID.String()
		out.Supersedes = &id
	}
	return out
}

func workflowError(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrReservationConflict):
		return ctx.JSON(409, Res{Error: "reservation required; re-acquire and retry"})
	case errors.Is(err, usecase.ErrInvalidTransition):
		return ctx.JSON(409, Res{Error: "workflow state does not allow this action"})
	case errors.Is(err, usecase.ErrSelfReview):
		return ctx.JSON(403, Res{Error: "submitter cannot review their own transcription"})
	case errors.Is(err, usecase.ErrConfirmRequired):
		return ctx.JSON(400, Res{Error: "existing draft text; set confirm to discard it"})
	case errors.Is(err, usecase.ErrNotFound):
		return ctx.JSON(404, Res{Error: "record not found"})
	default:
		return ctx.JSON(500, Res{Error: err.Error()})
	}
}

type SaveTranscriptionRequest struct {
	ID      string `param:"id" validate:"required,uuid"`
	Text    string `json:"text"`
	Confirm bool   `json:"confirm"`
}

func (s *Server) SaveTranscription(ctx echo.Context) error {
	var req SaveTranscriptionRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	id, _ := uuid.Parse(req.ID)

	tr, asset, err := s.server.SaveTranscription(ctx.Request().Context(), usecase.SaveTranscriptionOption{
		AssetID: id,
		Holder:  s.sessionToken(ctx),
		Text:    req.Text,
		Confirm: req.Confirm,
	})
	if err != nil {
		return workflowError(ctx, err)
	}

	sent := time.Now().UTC().Format(time.RFC3339Nano)
	return ctx.JSON(200, map[string]any{
		"transcription": convertTranscription(tr),
		"asset":         convertAsset(asset, sent),
	})
}

type SubmitAssetRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

func (s *Server) SubmitAsset(ctx echo.Context) error {
	var req SubmitAssetRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	id, _ := uuid.Parse(req.ID)

	asset, err := s.server.SubmitAsset(ctx.Request().Context(), usecase.SubmitAssetOption{
		AssetID: id,
		Holder:  s.sessionToken(ctx),
	})
	if err != nil {
		return workflowError(ctx, err)
	}

	sent := time.Now().UTC().Format(time.RFC3339Nano)
	return ctx.JSON(200, map[string]any{"asset": convertAsset(asset, sent)})
}

type ReviewTranscriptionRequest struct {
	ID       string `param:"id" validate:"required,uuid"`
	Action   string `json:"action" validate:"required,oneof=accept reject"`
	Feedback string `json:"feedback"`
}

func (s *Server) ReviewTranscription(ctx echo.Context) error {
	var req ReviewTranscriptionRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	id, _ := uuid.Parse(req.ID)

	asset, err := s.server.ReviewTranscription(ctx.Request().Context(), usecase.ReviewTranscriptionOption{
		TranscriptionID: id,
		Reviewer:        s.sessionToken(ctx),
		Accept:          req.Action == "accept",
		Feedback:        req.Feedback,
	})
	if err != nil {
		return workflowError(ctx, err)
	}

	sent := time.Now().UTC().Format(time.RFC3339Nano)
	return ctx.JSON(200, map[string]any{"asset": convertAsset(asset, sent)})
}
