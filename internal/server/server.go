package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/scriptorium-app/scriptorium/internal/config"
	"github.com/scriptorium-app/scriptorium/internal/database"
	"github.com/scriptorium-app/scriptorium/internal/hub"
	"github.com/scriptorium-app/scriptorium/internal/usecase"
)

// Service is the surface the handlers need from the usecase layer.
type Service interface {
	Health() map[string]string
	Close() error

	ListAssets(context.Context, usecase.ListAssetsOption) ([]usecase.Asset, int, error)
	GetAssetByID(context.Context, uuid.UUID) (usecase.Asset, error)
	ListCampaigns(context.Context, usecase.ListCampaignsOption) ([]usecase.Campaign, int, error)
	GetCampaignByID(context.Context, uuid.UUID) (usecase.Campaign, error)
	GetProjectByID(context.Context, uuid.UUID) (usecase.Project, error)
	GetItemByID(context.Context, uuid.UUID) (usecase.Item, error)

	AcquireReservation(ctx context.Context, assetID uuid.UUID, holder string) (usecase.Reservation, error)
	ReleaseReservation(ctx context.Context, assetID uuid.UUID, holder string) (bool, error)

	SaveTranscription(context.Context, usecase.SaveTranscriptionOption) (usecase.Transcription, usecase.Asset, error)
	SubmitAsset(context.Context, usecase.SubmitAssetOption) (usecase.Asset, error)
	ReviewTranscription(context.Context, usecase.ReviewTranscriptionOption) (usecase.Asset, error)
}

type Server struct {
	port int

	server    Service
	validator *validator.Validate
	hub       *hub.Hub
	logger    *slog.Logger
}

// App owns the HTTP server plus the shared resources that need an explicit
// shutdown order: hub before redis, repo last.
type App struct {
	httpServer *http.Server
	hub        *hub.Hub
	rdb        *redis.Client
	service    Service
	logger     *slog.Logger
}

func NewApp(logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := database.New()
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s",
			os.Getenv(config.ENV_KEY_REDIS_HOST),
			os.Getenv(config.ENV_KEY_REDIS_PORT),
		),
		Password: os.Getenv(config.ENV_KEY_REDIS_PASSWORD),
	})

	h := hub.New(rdb, logger)

	lease := usecase.DefaultLeaseDuration
	if v, err := strconv.Atoi(os.Getenv(config.ENV_KEY_RESERVATION_LEASE_SECONDS)); err == nil && v > 0 {
		lease = time.Duration(v) * time.Second
	}
	uc := usecase.New(repo, h, lease, logger)

	port, _ := strconv.Atoi(os.Getenv(config.ENV_KEY_PORT))
	sv := &Server{
		port:      port,
		server:    uc,
		validator: validator.New(),
		hub:       h,
		logger:    logger,
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", sv.port),
		Handler:      sv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return &App{
		httpServer: httpServer,
		hub:        h,
		rdb:        rdb,
		service:    uc,
		logger:     logger,
	}, nil
}

func (a *App) Addr() string {
	return a.httpServer.Addr
}

func (a *App) ListenAndServe() error {
	return a.httpServer.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if err := a.hub.Close(); err != nil {
		a.logger.Error("close hub", slog.String("err", err.Error()))
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("close redis", slog.String("err", err.Error()))
	}
	return a.service.Close()
}
