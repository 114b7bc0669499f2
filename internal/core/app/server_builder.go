package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/curalab/fedbench/internal/api"
	"github.com/curalab/fedbench/internal/api/handlers"
	"github.com/curalab/fedbench/internal/core/config"
	"github.com/curalab/fedbench/internal/core/ports"
	"github.com/curalab/fedbench/internal/core/services"
	"github.com/curalab/fedbench/internal/database/repositories"
	"github.com/curalab/fedbench/internal/storage/db"
	"github.com/curalab/fedbench/pkg/logger"
)

type Server struct {
	Config            *config.Config
	HttpServer        *http.Server
	DBManager         *db.DBManager
	EvaluationService *services.EvaluationService
	MonitorService    *services.RunMonitorService
	EvaluationHandler *handlers.EvaluationHandler
}

func (s *Server) Shutdown(ctx context.Context) {
	log := logger.Get()

	serverShutdownCtx, serverShutdownCancel := context.WithTimeout(ctx, 15*time.Second)
	defer serverShutdownCancel()

	s.MonitorService.Stop()

	shutdownStart := time.Now()
	if err := s.HttpServer.Shutdown(serverShutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		if err == context.DeadlineExceeded {
			log.Warn().Msg("Server shutdown deadline exceeded, forcing immediate shutdown")
		}
	} else {
		log.Info().Dur("duration_ms", time.Since(shutdownStart)).Msg("Server HTTP connections gracefully closed")
	}

	if err := s.DBManager.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	} else {
		log.Info().Msg("Database connection closed")
	}

	log.Info().Msg("Shutdown complete")
}

type ServerBuilder struct {
	config            *config.Config
	dbManager         *db.DBManager
	runRepo           ports.EvaluationRunRepository
	foldRepo          ports.FoldResultRepository
	s3Service         *services.S3Service
	datasetService    *services.DatasetService
	evaluationService *services.EvaluationService
	monitorService    *services.RunMonitorService
	evaluationHandler *handlers.EvaluationHandler
	httpServer        *http.Server
	err               error
}

func NewServerBuilder(cfg *config.Config) *ServerBuilder {
	return &ServerBuilder{
		config: cfg,
	}
}

func (sb *ServerBuilder) InitDatabase() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sb.dbManager = db.NewDBManager()
	if err := sb.dbManager.Connect(ctx, sb.config.Database.GetConnectionURL()); err != nil {
		sb.err = fmt.Errorf("failed to connect to database: %w", err)
		return sb
	}

	log.Info().Msg("Successfully connected to database")
	return sb
}

func (sb *ServerBuilder) InitRepositories() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	gormDB := sb.dbManager.GetDB()
	sb.runRepo = repositories.NewEvaluationRunRepository(gormDB)
	sb.foldRepo = repositories.NewFoldResultRepository(gormDB)

	return sb
}

func (sb *ServerBuilder) InitServices() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	log := logger.Get()

	// S3 is optional: without credentials the server still evaluates local
	// and synthetic datasets.
	s3Service, err := services.NewS3Service(sb.config)
	if err != nil {
		log.Warn().Err(err).Msg("S3 storage not configured, s3:// datasets disabled")
	} else {
		sb.s3Service = s3Service
	}

	sb.datasetService = services.NewDatasetService(sb.s3Service)
	sb.evaluationService = services.NewEvaluationService(
		sb.runRepo,
		sb.foldRepo,
		sb.datasetService,
		services.NewModelFactory(),
		services.EvaluationDefaultsFromConfig(sb.config.Evaluation),
	)

	return sb
}

func (sb *ServerBuilder) InitRunMonitor() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	sb.monitorService = services.NewRunMonitorService(sb.runRepo)

	if sb.config.Scheduler.Interval > 0 {
		sb.monitorService.SetCheckInterval(time.Duration(sb.config.Scheduler.Interval) * time.Second)
	}
	if sb.config.Scheduler.RunTimeout > 0 {
		sb.monitorService.SetRunTimeout(time.Duration(sb.config.Scheduler.RunTimeout) * time.Second)
	}

	if err := sb.monitorService.Start(); err != nil {
		sb.err = fmt.Errorf("failed to start run monitor: %w", err)
	}
	return sb
}

func (sb *ServerBuilder) InitRouter() *ServerBuilder {
	if sb.err != nil {
		return sb
	}

	sb.evaluationHandler = handlers.NewEvaluationHandler(sb.evaluationService)
	router := api.NewRouter(sb.evaluationHandler, sb.config.Server.Endpoint)

	sb.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", sb.config.Server.Host, sb.config.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return sb
}

func (sb *ServerBuilder) Build() (*Server, error) {
	if sb.err != nil {
		return nil, sb.err
	}

	return &Server{
		Config:            sb.config,
		HttpServer:        sb.httpServer,
		DBManager:         sb.dbManager,
		EvaluationService: sb.evaluationService,
		MonitorService:    sb.monitorService,
		EvaluationHandler: sb.evaluationHandler,
	}, nil
}
