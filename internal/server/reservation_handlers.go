package server

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scriptorium-app/scriptorium/internal/usecase"
)

type Reservation struct {
	AssetID    string `json:"asset_id"`
	Holder     string `json:"holder"`
	AcquiredAt string `json:"acquired_at"`
	ExpiresAt  string `json:"expires_at"`
}

type ReserveAssetRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

// ReserveAsset grants or renews the caller's editing claim. A 409 means a
// different session holds the asset; clients wait for reservation_released
// rather than retrying in a loop.
func (s *Server) ReserveAsset(ctx echo.Context) error {
	var req ReserveAssetRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	id, _ := uuid.Parse(req.ID)

	r, err := s.server.AcquireReservation(ctx.Request().Context(), id, s.sessionToken(ctx))
	if errors.Is(err, usecase.ErrReservationConflict) {
		return ctx.JSON(409, Res{Error: "asset is reserved by another session"})
	}
	if err != nil {
		return ctx.JSON(500, Res{Error: err.Error()})
	}

	return ctx.JSON(200, Res{Data: Reservation{
		AssetID:    r.AssetID.String(),
		Holder:     r.Holder,
		AcquiredAt: r.AcquiredAt.Format(time.RFC3339Nano),
		ExpiresAt:  r.ExpiresAt.Format(time.RFC3339Nano),
	}})
}

type ReleaseAssetRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

// ReleaseAsset is idempotent; releasing an asset this session does not hold
// reports not_held rather than failing.
func (s *Server) ReleaseAsset(ctx echo.Context) error {
	var req ReleaseAssetRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(400, Res{Error: err.Error()})
	}
	if err := s.validator.Struct(req); err != nil {
		return ctx.JSON(422, Res{Error: err.Error()})
	}
	id, _ := uuid.Parse(req.ID)

	released, err := s.server.ReleaseReservation(ctx.Request().Context(), id, s.sessionToken(ctx))
	if err != nil {
		return ctx.JSON(500, Res{Error: err.Error()})
	}

	if !released {
		return ctx.JSON(200, Res{Message: "not_held"})
	}
	return ctx.JSON(200, Res{Message: "released"})
}
