package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tdhoang/Talaria/config"
	agentctrl "github.com/tdhoang/Talaria/internal/controller/agent"
	"github.com/tdhoang/Talaria/internal/database"
	"github.com/tdhoang/Talaria/internal/logger"
	"github.com/tdhoang/Talaria/internal/model"
	"github.com/tdhoang/Talaria/internal/repository"
	"github.com/tdhoang/Talaria/internal/service"
	syncpkg "github.com/tdhoang/Talaria/internal/sync"
)

func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			NewCandidateDatabase,
			NewGinEngine,
		),

		fx.Provide(
			func(db *gorm.DB, cfg *config.Config) repository.StoreRepository {
				return repository.NewStoreRepository(db, cfg.Sync.MaxAttempts)
			},
			service.NewSessionService,
			NewSyncClient,
			func(store repository.StoreRepository, client *syncpkg.Client, cfg *config.Config) *syncpkg.Worker {
				return syncpkg.NewWorker(store, client, cfg.Sync.Interval, cfg.Sync.BatchSize)
			},
			agentctrl.NewAgentController,
		),

		fx.Invoke(MigrateDB),
		fx.Invoke(StartSyncWorker),
		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start candidate agent")
	}

	<-app.Done()
	log.Info().Msg("Candidate agent shutting down gracefully...")
}

func NewCandidateDatabase(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg.Agent.DatabasePath)
}

// NewSyncClient builds the transport client, preferring the persisted
// per-device server URL over the configured default.
func NewSyncClient(store repository.StoreRepository, cfg *config.Config) *syncpkg.Client {
	url, err := store.Setting(model.SettingServerURL)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn().Err(err).Msg("Failed to read persisted server URL, using configured default")
		}
		url = cfg.Sync.ServerURL
	}
	return syncpkg.NewClient(url, cfg.Sync.HTTPTimeout)
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())
	return r
}

// StartSyncWorker ties the worker's lifetime to the fx application. Shutdown
// cancels the loop between cycles; an in-flight cycle finishes first.
func StartSyncWorker(lc fx.Lifecycle, worker *syncpkg.Worker) {
	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				worker.Run(workerCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	agentCtrl *agentctrl.AgentController,
) {
	agentCtrl.RegisterRoutes(router)

	server := &http.Server{
		Addr:    "127.0.0.1:" + cfg.Agent.Port, // local control surface only
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Candidate agent API starting on port %s", cfg.Agent.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Agent ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func MigrateDB(db *gorm.DB) error {
	if err := database.MigrateCandidate(db); err != nil {
		log.Error().Err(err).Msg("Candidate database migration failed")
		return err
	}
	log.Info().Msg("Candidate database migration completed")
	return nil
}
