package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandleExpireReservations reclaims reservations past their lease. Each
// reclaimed asset produces a reservation_released event identical to an
// explicit release, so clients never need to tell the two apart.
func (h *Handlers) HandleExpireReservations(ctx context.Context, t *asynq.Task) error {
	n, err := h.usecase.SweepExpiredReservations(ctx)
	if err != nil {
		h.logger.Error("expire reservations", slog.String("err", err.Error()))
		return err
	}
	if n > 0 {
		h.logger.Info("reservations reclaimed", slog.Int("count", n))
	}
	return nil
}
