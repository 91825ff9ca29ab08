package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/apexlend/docpipeline/internal/config"
	v1 "github.com/apexlend/docpipeline/internal/controller/http/v1"
	"github.com/apexlend/docpipeline/internal/infrastructure/objectstore"
	"github.com/apexlend/docpipeline/internal/infrastructure/ocr"
	"github.com/apexlend/docpipeline/internal/infrastructure/report_generator"
	"github.com/apexlend/docpipeline/internal/pipeline"
	"github.com/apexlend/docpipeline/internal/repository/postgresql"
)

const (
	extractionsBuffer = 100
	analysesBuffer    = 50
)

type App struct {
	log *slog.Logger
	cfg *config.Config
}

func New(log *slog.Logger, cfg *config.Config) *App {
	return &App{
		log: log,
		cfg: cfg,
	}
}

func (a *App) Run(ctx context.Context) error {
	a.log.InfoContext(ctx, "starting app",
		slog.Int("extraction_workers", a.cfg.App.ExtractionWorkers),
		slog.Int("analysis_workers", a.cfg.App.AnalysisWorkers),
		slog.Duration("retry_scan_interval", a.cfg.App.RetryScanInterval),
		slog.Duration("sweep_interval", a.cfg.App.SweepInterval),
	)

	a.log.InfoContext(ctx, "establishing postgresql connection",
		slog.String("postgresql_host", a.cfg.PostgreSQL.Host),
		slog.String("postgresql_port", a.cfg.PostgreSQL.Port),
		slog.String("postgresql_dbname", a.cfg.PostgreSQL.DBName),
	)

	pool, err := postgresql.NewConnection(ctx, a.log, a.cfg.PostgreSQL)
	if err != nil {
		return fmt.Errorf("failed to create db connection: %w", err)
	}
	defer pool.Close()

	applicationsRepo := postgresql.NewApplicationsRepository(pool)
	documentsRepo := postgresql.NewDocumentsRepository(pool)
	analysesRepo := postgresql.NewAnalysesRepository(pool)
	retentionRepo := postgresql.NewRetentionRepository(pool)
	txManager := postgresql.NewTxManager(pool)

	// Extractions interrupted by the previous shutdown go back to retryable.
	reset, err := documentsRepo.ResetInFlight(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset in-flight extractions: %w", err)
	}

	if reset > 0 {
		a.log.InfoContext(ctx, "reset interrupted extractions", slog.Int64("count", reset))
	}

	store, err := a.buildObjectStore(ctx)
	if err != nil {
		return err
	}

	provider := a.buildProvider()

	return a.startPipeline(ctx, pipelineDeps{
		applications: applicationsRepo,
		documents:    documentsRepo,
		analyses:     analysesRepo,
		retention:    retentionRepo,
		txm:          txManager,
		store:        store,
		provider:     provider,
	})
}

func (a *App) buildObjectStore(ctx context.Context) (objectstore.Store, error) {
	if a.cfg.Storage.Bucket == "" {
		a.log.WarnContext(ctx, "no storage bucket configured, using in-memory object store")
		return objectstore.NewMemory(), nil
	}

	store, err := objectstore.NewGCS(ctx, a.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	a.log.InfoContext(ctx, "object store ready", slog.String("bucket", a.cfg.Storage.Bucket))

	return store, nil
}

func (a *App) buildProvider() ocr.Provider {
	if a.cfg.OCR.FixtureDir != "" {
		a.log.Warn("using fixture ocr provider", slog.String("dir", a.cfg.OCR.FixtureDir))
		return ocr.NewFixture(a.cfg.OCR.FixtureDir)
	}

	return ocr.NewClient(a.cfg.OCR)
}

type pipelineDeps struct {
	applications *postgresql.ApplicationsRepository
	documents    *postgresql.DocumentsRepository
	analyses     *postgresql.AnalysesRepository
	retention    *postgresql.RetentionRepository
	txm          *postgresql.TxManager
	store        objectstore.Store
	provider     ocr.Provider
}

func (a *App) startPipeline(ctx context.Context, deps pipelineDeps) error {
	extractions := make(chan uuid.UUID, extractionsBuffer)
	analyses := make(chan uuid.UUID, analysesBuffer)

	ingestor := pipeline.NewIngestor(a.log, deps.applications, deps.documents, deps.store, extractions)
	extractor := pipeline.NewExtractor(
		a.log,
		deps.documents,
		deps.provider,
		extractions,
		analyses,
		a.cfg.App.ExtractionWorkers,
		a.cfg.OCR.MaxAttempts,
		a.cfg.OCR.RetryBackoff,
	)
	deriver := pipeline.NewDeriver(
		a.log,
		deps.documents,
		deps.analyses,
		deps.txm,
		analyses,
		a.cfg.App.AnalysisWorkers,
		pipeline.DefaultScoreWeights(),
	)
	scanner := pipeline.NewRetryScanner(a.log, deps.documents, a.cfg.App.RetryScanInterval, extractions)
	auditor := pipeline.NewAuditor(a.log, deps.applications, deps.documents, deps.store)
	sweeper := pipeline.NewSweeper(
		a.log,
		deps.retention,
		deps.retention,
		a.cfg.App.SweepInterval,
		a.cfg.App.PolicyTimeout,
	)

	handler := v1.NewHandler(
		ingestor,
		deps.applications,
		extractor,
		deriver,
		deps.documents,
		deps.analyses,
		auditor,
		sweeper,
		deps.retention,
		report_generator.New(),
	)
	server := v1.NewServer(a.cfg.HTTP, handler)

	erg, ctx := errgroup.WithContext(ctx)

	erg.Go(func() error {
		a.log.InfoContext(ctx, "extractor started")
		return extractor.Run(ctx)
	})

	erg.Go(func() error {
		a.log.InfoContext(ctx, "deriver started")
		return deriver.Run(ctx)
	})

	erg.Go(func() error {
		a.log.InfoContext(ctx, "retry scanner started")
		return scanner.Run(ctx)
	})

	erg.Go(func() error {
		a.log.InfoContext(ctx, "retention sweeper started")
		return sweeper.Run(ctx)
	})

	erg.Go(func() error {
		a.log.InfoContext(ctx, "starting http server",
			slog.String("addr", net.JoinHostPort(a.cfg.HTTP.Host, a.cfg.HTTP.Port)),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}

		return nil
	})

	erg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	a.log.InfoContext(ctx, "all components started")

	if err := erg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.log.ErrorContext(ctx, "pipeline stopped with error", slog.String("err", err.Error()))

		return err
	}

	a.log.InfoContext(ctx, "pipeline stopped gracefully")

	return nil
}
