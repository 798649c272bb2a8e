package handlers

import (
	"log/slog"

	"github.com/scriptorium-app/scriptorium/internal/usecase"
)

// Task type names registered with asynq.
const (
	TaskExpireReservations = "reservation:expire"
)

type Handlers struct {
	usecase usecase.Usecase
	logger  *slog.Logger
}

func NewHandlers(uc usecase.Usecase, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		usecase: uc,
		logger:  logger,
	}
}
