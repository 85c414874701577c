package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Suryanandx/2d-code-verifier/internal/analyzer"
	"github.com/Suryanandx/2d-code-verifier/internal/decoder"
	apperrors "github.com/Suryanandx/2d-code-verifier/internal/errors"
	"github.com/Suryanandx/2d-code-verifier/internal/logger"
	"github.com/Suryanandx/2d-code-verifier/internal/observer"
	"github.com/Suryanandx/2d-code-verifier/internal/repository"
	"github.com/Suryanandx/2d-code-verifier/internal/storage"
	"github.com/Suryanandx/2d-code-verifier/pkg/grading"
	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// UploadRequest is one image submitted directly by a client
type UploadRequest struct {
	FileName     string
	ContentType  string
	Data         []byte
	ExpectedData string
	Overrides    *models.AnalysisOverrides
	// ImageRef is recorded as the result's image path when the image has a
	// durable location of its own, such as a file the CLI was pointed at.
	// Empty means the stored upload path.
	ImageRef     string
}

// VerificationService grades symbol images and keeps their reports
type VerificationService interface {
	VerifyUpload(ctx context.Context, req UploadRequest) (*models.VerificationResult, error)
	VerifyURL(ctx context.Context, req models.VerifyURLRequest) (*models.VerificationResult, error)
	GetReport(ctx context.Context, id string) (*models.VerificationResult, error)
	ListReports(ctx context.Context, limit int) ([]*models.VerificationResult, error)
}

// Dependencies wires a VerificationService. Images, Reports, Pool and
// Events are optional.
type Dependencies struct {
	Analyzer analyzer.SymbolAnalyzer
	Grader   grading.Grader
	Decoder  decoder.Decoder
	Uploads  storage.UploadStore
	Images   repository.ImageRepository
	Reports  repository.ReportRepository
	Pool     *analyzer.WorkerPool
	Events   observer.Subject

	Defaults        analyzer.AnalysisOptions
	AnalysisTimeout time.Duration
	DecodeTimeout   time.Duration
	FetchTimeout    time.Duration

	// Now overrides the clock for timestamps
	Now func() time.Time
}

type verificationService struct {
	deps Dependencies
}

// NewVerificationService creates a verification service
func NewVerificationService(deps Dependencies) VerificationService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Decoder == nil {
		deps.Decoder = decoder.Disabled()
	}
	return &verificationService{deps: deps}
}

// VerifyUpload grades an uploaded image. The upload is persisted for the
// duration of the request and released on every exit path.
func (s *verificationService) VerifyUpload(ctx context.Context, req UploadRequest) (*models.VerificationResult, error) {
	ref := req.ImageRef
	if ref == "" {
		ref = req.FileName
	}
	run := s.begin(ctx, "upload", ref)
	if len(req.Data) == 0 {
		return nil, run.fail(apperrors.NewValidationError("uploaded file is empty", nil))
	}
	return s.process(ctx, run, req.FileName, req.Data, req.ContentType, req.ExpectedData, req.Overrides, req.ImageRef)
}

// VerifyURL fetches an image over HTTP and grades it like an upload
func (s *verificationService) VerifyURL(ctx context.Context, req models.VerifyURLRequest) (*models.VerificationResult, error) {
	run := s.begin(ctx, "url", req.URL)
	if s.deps.Images == nil {
		return nil, run.fail(apperrors.NewUnavailableError("remote verification is not configured", nil))
	}
	if err := s.deps.Images.ValidateImageURL(req.URL); err != nil {
		return nil, run.fail(apperrors.NewValidationError("invalid image URL", err))
	}

	fetchCtx, cancel := withTimeout(ctx, s.deps.FetchTimeout)
	fetched, err := s.deps.Images.FetchImage(fetchCtx, req.URL)
	cancel()
	if err != nil {
		s.notify(ctx, observer.VerificationEvent{EventType: observer.ImageFetchFailed, RequestID: run.id, Source: run.source, ImageRef: req.URL, ErrorMessage: err.Error()})
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, run.fail(apperrors.NewTimeoutError("image fetch timed out", err))
		}
		return nil, run.fail(apperrors.NewNetworkError("failed to fetch image", err))
	}
	s.notify(ctx, observer.VerificationEvent{EventType: observer.ImageFetched, RequestID: run.id, Source: run.source, ImageRef: req.URL, Success: true})

	return s.process(ctx, run, req.URL, fetched.Data, fetched.ContentType, req.ExpectedData, req.Options, req.URL)
}

func (s *verificationService) GetReport(ctx context.Context, id string) (*models.VerificationResult, error) {
	if s.deps.Reports == nil {
		return nil, apperrors.NewUnavailableError("report storage is disabled", nil)
	}
	report, err := s.deps.Reports.GetReport(ctx, id)
	if err != nil {
		return nil, repositoryError(err)
	}
	return report, nil
}

func (s *verificationService) ListReports(ctx context.Context, limit int) ([]*models.VerificationResult, error) {
	if s.deps.Reports == nil {
		return nil, apperrors.NewUnavailableError("report storage is disabled", nil)
	}
	reports, err := s.deps.Reports.ListReports(ctx, limit)
	if err != nil {
		return nil, repositoryError(err)
	}
	return reports, nil
}

// process decodes, persists and verifies one image. imageRef overrides the
// stored path in the result when the image came from elsewhere.
func (s *verificationService) process(ctx context.Context, run *verificationRun, name string, data []byte, contentType, expected string, overrides *models.AnalysisOverrides, imageRef string) (*models.VerificationResult, error) {
	opts, err := applyOverrides(s.deps.Defaults, overrides)
	if err != nil {
		return nil, run.fail(apperrors.NewValidationError("invalid analysis options", err))
	}

	img, format, err := storage.DecodeImage(data, contentType)
	if err != nil {
		return nil, run.fail(apperrors.NewProcessingError("invalid image", err).WithDetails(err.Error()))
	}

	upload, err := s.deps.Uploads.Save(ctx, name, data)
	if err != nil {
		return nil, run.fail(apperrors.NewInternalError("failed to store upload", err))
	}
	defer s.release(ctx, run, upload)
	if imageRef == "" {
		imageRef = upload.Path
	}

	var (
		measurements *analyzer.Measurements
		decoded      decodeOutcome
		verifyErr    error
	)
	err = s.submit(ctx, func() {
		measurements, decoded, verifyErr = s.verify(ctx, img, upload.Path, opts)
	})
	if err == nil {
		err = verifyErr
	}
	if err != nil {
		return nil, run.fail(analysisError(err))
	}

	report := s.deps.Grader.Evaluate(gradingInputs(measurements))
	result := buildResult(run.id, imageRef, s.deps.Now().UTC(), time.Since(run.started), measurements, report, decoded, expected)

	if s.deps.Reports != nil {
		if err := s.deps.Reports.SaveReport(ctx, result); err != nil {
			logger.WithError(err).WithField("request_id", run.id).Warn("Failed to persist verification report")
		}
	}

	run.complete(result, format)
	return result, nil
}

// verify runs the analysis and decode tracks concurrently and joins them.
// Each track has its own timeout; a decode failure never fails the group.
func (s *verificationService) verify(ctx context.Context, img image.Image, imagePath string, opts analyzer.AnalysisOptions) (*analyzer.Measurements, decodeOutcome, error) {
	var (
		measurements *analyzer.Measurements
		decoded      decodeOutcome
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		actx, cancel := withTimeout(gctx, s.deps.AnalysisTimeout)
		defer cancel()
		m, err := s.deps.Analyzer.Analyze(actx, img, opts)
		if err != nil {
			return err
		}
		measurements = m
		return nil
	})
	g.Go(func() error {
		dctx, cancel := withTimeout(gctx, s.deps.DecodeTimeout)
		defer cancel()
		decoded.payload, decoded.err = s.deps.Decoder.Decode(dctx, imagePath)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, decodeOutcome{}, err
	}
	return measurements, decoded, nil
}

// submit runs job on the request queue, or inline without one
func (s *verificationService) submit(ctx context.Context, job func()) error {
	if s.deps.Pool == nil {
		job()
		return nil
	}
	done := make(chan struct{})
	if err := s.deps.Pool.Submit(ctx, func() {
		defer close(done)
		job()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *verificationService) release(ctx context.Context, run *verificationRun, upload *storage.StoredUpload) {
	if err := s.deps.Uploads.Release(context.WithoutCancel(ctx), upload); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": run.id,
			"upload":     upload.Name,
			"retention":  s.deps.Uploads.Retention(),
		}).Warn("Failed to release upload")
	}
}

func (s *verificationService) notify(ctx context.Context, event observer.VerificationEvent) {
	if s.deps.Events != nil {
		s.deps.Events.NotifyObservers(ctx, event)
	}
}

// verificationRun tracks one request for logging and events
type verificationRun struct {
	s        *verificationService
	ctx      context.Context
	id       string
	source   string
	imageRef string
	started  time.Time
}

func (s *verificationService) begin(ctx context.Context, source, imageRef string) *verificationRun {
	run := &verificationRun{s: s, ctx: ctx, id: uuid.NewString(), source: source, imageRef: imageRef, started: time.Now()}
	s.notify(ctx, observer.VerificationEvent{EventType: observer.VerificationStarted, RequestID: run.id, Source: source, ImageRef: imageRef})
	return run
}

func (r *verificationRun) fail(err error) error {
	r.s.notify(r.ctx, observer.VerificationEvent{
		EventType:      observer.VerificationFailed,
		RequestID:      r.id,
		Source:         r.source,
		ImageRef:       r.imageRef,
		ProcessingTime: time.Since(r.started),
		ErrorMessage:   err.Error(),
	})
	return err
}

func (r *verificationRun) complete(result *models.VerificationResult, format string) {
	r.s.notify(r.ctx, observer.VerificationEvent{
		EventType:      observer.VerificationCompleted,
		RequestID:      r.id,
		Source:         r.source,
		ImageRef:       r.imageRef,
		ProcessingTime: time.Since(r.started),
		Success:        true,
		OverallGrade:   result.OverallGrade,
		DecodeStatus:   result.Decode.Status,
		Metadata:       map[string]interface{}{"format": format, "conditions": len(result.Conditions)},
	})
}

func analysisError(err error) error {
	switch {
	case errors.Is(err, analyzer.ErrPoolClosed):
		return apperrors.NewUnavailableError("verifier is shutting down", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("verification timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("verification cancelled", err)
	case errors.Is(err, analyzer.ErrInvalidImage):
		return apperrors.NewProcessingError("invalid image", err)
	case errors.Is(err, analyzer.ErrInvalidTraversal):
		return apperrors.NewValidationError("scan path outside the image", err)
	}
	return apperrors.NewInternalError("verification failed", err)
}

func repositoryError(err error) error {
	switch {
	case errors.Is(err, repository.ErrReportNotFound):
		return apperrors.NewNotFoundError("report not found", err)
	case errors.Is(err, repository.ErrRepositoryUnavailable):
		return apperrors.NewUnavailableError("report storage unavailable", err)
	}
	return apperrors.NewInternalError("report lookup failed", err)
}

// applyOverrides layers per-request settings over the configured defaults
func applyOverrides(base analyzer.AnalysisOptions, o *models.AnalysisOverrides) (analyzer.AnalysisOptions, error) {
	opts := base
	if o == nil {
		return opts, opts.Validate()
	}
	if o.Threshold != nil {
		if *o.Threshold < 0 || *o.Threshold > analyzer.MaxIntensity {
			return opts, fmt.Errorf("threshold must be within [0, 255] (got %d)", *o.Threshold)
		}
		opts = opts.WithThreshold(uint8(*o.Threshold))
	}
	if o.GridSize != nil {
		opts = opts.WithGridSize(*o.GridSize)
	}
	if o.Channel != nil {
		channel, err := analyzer.ParseChannel(*o.Channel)
		if err != nil {
			return opts, err
		}
		opts = opts.WithChannel(channel)
	}
	if o.Axis != nil {
		axis, err := analyzer.ParseAxis(*o.Axis)
		if err != nil {
			return opts, err
		}
		opts = opts.WithAxis(axis)
	}
	if o.ScanMode != nil {
		mode, err := analyzer.ParseScanMode(*o.ScanMode)
		if err != nil {
			return opts, err
		}
		opts.ScanMode = mode
	}
	return opts, opts.Validate()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
