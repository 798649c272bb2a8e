package queue

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/scriptorium-app/scriptorium/internal/config"
	"github.com/scriptorium-app/scriptorium/internal/database"
	"github.com/scriptorium-app/scriptorium/internal/hub"
	"github.com/scriptorium-app/scriptorium/internal/queue/handlers"
	"github.com/scriptorium-app/scriptorium/internal/usecase"
)

// How often the sweep looks for reservations past their lease. Short against
// the 5 minute lease so takeover latency after an abandoned session stays
// tolerable.
const expireSweepInterval = "@every 30s"

func redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr: fmt.Sprintf("%s:%s",
			os.Getenv(config.ENV_KEY_REDIS_HOST),
			os.Getenv(config.ENV_KEY_REDIS_PORT),
		),
		Password: os.Getenv(config.ENV_KEY_REDIS_PASSWORD),
	}
}

// Server wraps asynq.Server for processing tasks
type Server struct {
	asynqServer *asynq.Server
	mux         *asynq.ServeMux
	repo        interface{ Close() error }
	rdb         *redis.Client
	hub         *hub.Hub
	logger      *slog.Logger
}

// Worker represents a worker application with all its dependencies
type Worker struct {
	server *Server
}

// NewWorker creates a fully configured worker. The worker carries its own
// hub over the shared Redis channel, so reservation_released events from the
// sweep reach API subscribers in every process.
func NewWorker(logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Initializing worker dependencies...")

	repo, err := database.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	opt := redisOpt()
	rdb := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
	})
	h := hub.New(rdb, logger)

	lease := usecase.DefaultLeaseDuration
	if v := os.Getenv(config.ENV_KEY_RESERVATION_LEASE_SECONDS); v != "" {
		var secs int
		if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs > 0 {
			lease = time.Duration(secs) * time.Second
		}
	}
	uc := usecase.New(repo, h, lease, logger)

	workerConcurrency := 10
	if wc := os.Getenv(config.ENV_KEY_WORKER_CONCURRENCY); wc != "" {
		var n int
		if _, err := fmt.Sscanf(wc, "%d", &n); err == nil && n > 0 {
			workerConcurrency = n
		}
	}

	asynqServer := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: workerConcurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	mux := asynq.NewServeMux()

	h2 := handlers.NewHandlers(uc, logger)
	mux.HandleFunc(handlers.TaskExpireReservations, h2.HandleExpireReservations)

	logger.Info("Worker registered handlers",
		slog.String("task", handlers.TaskExpireReservations))

	server := &Server{
		asynqServer: asynqServer,
		mux:         mux,
		repo:        repo,
		rdb:         rdb,
		hub:         h,
		logger:      logger,
	}

	return &Worker{
		server: server,
	}, nil
}

// Start starts the worker server
func (w *Worker) Start() error {
	w.server.logger.Info("Worker started successfully")
	return w.server.asynqServer.Start(w.server.mux)
}

// Stop stops the worker server gracefully
func (w *Worker) Stop() {
	w.server.logger.Info("Stopping worker...")
	w.server.asynqServer.Shutdown()

	if err := w.server.hub.Close(); err != nil {
		w.server.logger.Error("Error closing hub", slog.String("err", err.Error()))
	}
	if err := w.server.rdb.Close(); err != nil {
		w.server.logger.Error("Error closing redis", slog.String("err", err.Error()))
	}
	if err := w.server.repo.Close(); err != nil {
		w.server.logger.Error("Error closing database", slog.String("err", err.Error()))
	}
}

// Scheduler enqueues the periodic tasks.
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	scheduler := asynq.NewScheduler(redisOpt(), &asynq.SchedulerOpts{})

	if _, err := scheduler.Register(
		expireSweepInterval,
		asynq.NewTask(handlers.TaskExpireReservations, nil),
	); err != nil {
		return nil, fmt.Errorf("register %s: %w", handlers.TaskExpireReservations, err)
	}

	logger.Info("Scheduler registered tasks",
		slog.String("task", handlers.TaskExpireReservations),
		slog.String("interval", expireSweepInterval))

	return &Scheduler{scheduler: scheduler, logger: logger}, nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler...")
	s.scheduler.Shutdown()
}
