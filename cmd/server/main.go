package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tdhoang/Talaria/config"
	ingestctrl "github.com/tdhoang/Talaria/internal/controller/ingest"
	"github.com/tdhoang/Talaria/internal/database"
	"github.com/tdhoang/Talaria/internal/logger"
	"github.com/tdhoang/Talaria/internal/repository"
	"github.com/tdhoang/Talaria/internal/service"
)

func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			NewAdminDatabase,
			NewGinEngine,
		),

		// Repositories
		fx.Provide(
			repository.NewEventRepository,
			repository.NewResultRepository,
			repository.NewSyncLogRepository,
			repository.NewRecordingRepository,
		),

		// Services
		fx.Provide(
			func(
				eventRepo repository.EventRepository,
				resultRepo repository.ResultRepository,
				syncLogRepo repository.SyncLogRepository,
				recordingRepo repository.RecordingRepository,
				cfg *config.Config,
			) service.IngestService {
				return service.NewIngestService(eventRepo, resultRepo, syncLogRepo, recordingRepo, cfg.Server.RecordingsDir)
			},
			service.NewReviewService,
		),

		// Controllers
		fx.Provide(ingestctrl.NewIngestController),

		fx.Invoke(MigrateDB),
		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start admin server")
	}

	<-app.Done()
	log.Info().Msg("Admin server shutting down gracefully...")
}

func NewAdminDatabase(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg.Server.DatabasePath)
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	// Candidate devices connect from arbitrary local-network addresses.
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	return r
}

func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	ingestCtrl *ingestctrl.IngestController,
) {
	ingestCtrl.RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Admin ingestion server starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func MigrateDB(db *gorm.DB) error {
	if err := database.MigrateAdmin(db); err != nil {
		log.Error().Err(err).Msg("Admin database migration failed")
		return err
	}
	log.Info().Msg("Admin database migration completed")
	return nil
}
