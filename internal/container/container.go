package container

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Suryanandx/2d-code-verifier/internal/analyzer"
	"github.com/Suryanandx/2d-code-verifier/internal/config"
	"github.com/Suryanandx/2d-code-verifier/internal/decoder"
	"github.com/Suryanandx/2d-code-verifier/internal/logger"
	"github.com/Suryanandx/2d-code-verifier/internal/observer"
	"github.com/Suryanandx/2d-code-verifier/internal/repository"
	"github.com/Suryanandx/2d-code-verifier/internal/service"
	"github.com/Suryanandx/2d-code-verifier/internal/storage"
	"github.com/Suryanandx/2d-code-verifier/internal/transport"
	"github.com/Suryanandx/2d-code-verifier/pkg/grading"
	"github.com/Suryanandx/2d-code-verifier/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config  *config.Config
	pool    *analyzer.WorkerPool
	reports repository.ReportRepository
	events  observer.Subject
	metrics *observer.MetricsObserver
	decoder decoder.Decoder
	service service.VerificationService
	handler http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	opts, err := cfg.AnalysisOptions()
	if err != nil {
		return nil, err
	}

	tables := grading.DefaultTables()
	if cfg.GradeTablesPath != "" {
		if tables, err = grading.LoadTables(cfg.GradeTablesPath); err != nil {
			return nil, fmt.Errorf("failed to load grade tables: %w", err)
		}
	}

	dec, err := decoder.New(cfg.Decoder, cfg.DecoderCommand, storage.LoadImageFile)
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}

	var archiver storage.BlobArchiver
	if cfg.UploadRetention == storage.RetentionArchive {
		if archiver, err = storage.NewAzureArchiver(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer); err != nil {
			return nil, fmt.Errorf("failed to create azure archiver: %w", err)
		}
	}
	uploads, err := storage.NewUploadStore(cfg.UploadDir, cfg.UploadRetention, archiver)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload store: %w", err)
	}

	validator := validation.NewURLValidatorWithOptions([]string{"http", "https"}, cfg.AllowedImageHosts)
	if cfg.BlockPrivateURLs {
		validator = validator.BlockPrivateNetworks()
	}
	fetcher := storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize)
	images := repository.NewHTTPImageRepository(fetcher, validator)

	var reports repository.ReportRepository
	if cfg.ReportsDBPath != "" {
		bolt, err := repository.NewBoltReportRepository(cfg.ReportsDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open report repository: %w", err)
		}
		reports = bolt
	}

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	pool := analyzer.NewWorkerPool(cfg.MaxConcurrent)
	pool.Start()

	svc := service.NewVerificationService(service.Dependencies{
		Analyzer:        analyzer.NewSymbolAnalyzer(),
		Grader:          grading.NewEngine(tables),
		Decoder:         dec,
		Uploads:         uploads,
		Images:          images,
		Reports:         reports,
		Pool:            pool,
		Events:          events,
		Defaults:        opts,
		AnalysisTimeout: cfg.AnalysisTimeout,
		DecodeTimeout:   cfg.DecodeTimeout,
		FetchTimeout:    cfg.ImageFetchTimeout,
	})

	handler := transport.NewHandler(svc, transport.Options{
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RequestTimeout:     cfg.RequestTimeout,
		CORSAllowOrigin:    cfg.CORSAllowOrigin,
		DecoderName:        dec.Name(),
		Metrics:            metrics,
		Pool:               pool,
	})

	logger.WithFields(logrus.Fields{
		"decoder":     dec.Name(),
		"workers":     cfg.MaxConcurrent,
		"retention":   uploads.Retention(),
		"reports_db":  cfg.ReportsDBPath,
		"grade_table": cfg.GradeTablesPath,
	}).Info("Verifier initialized")

	return &Container{
		config:  cfg,
		pool:    pool,
		reports: reports,
		events:  events,
		metrics: metrics,
		decoder: dec,
		service: svc,
		handler: handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the verification service
func (c *Container) Service() service.VerificationService {
	return c.service
}

// Metrics returns the verification counters
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}

// Close drains the request queue and pending events, then closes the report store
func (c *Container) Close() error {
	c.pool.Close()
	c.pool.Wait()
	c.events.Wait()
	if c.reports != nil {
		return c.reports.Close()
	}
	return nil
}
