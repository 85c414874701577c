package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Suryanandx/2d-code-verifier/internal/analyzer"
	apperrors "github.com/Suryanandx/2d-code-verifier/internal/errors"
	"github.com/Suryanandx/2d-code-verifier/internal/logger"
	"github.com/Suryanandx/2d-code-verifier/internal/observer"
	"github.com/Suryanandx/2d-code-verifier/internal/service"
	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

const (
	version = "1.0.0"

	defaultReportLimit = 50
	maxReportLimit     = 500
)

// Options configures the HTTP surface. Metrics and Pool are optional.
type Options struct {
	MaxRequestBodySize int64
	RequestTimeout     time.Duration
	CORSAllowOrigin    string
	DecoderName        string

	Metrics *observer.MetricsObserver
	Pool    *analyzer.WorkerPool
}

func NewHandler(svc service.VerificationService, opts Options) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		cors(opts.CORSAllowOrigin),
		requestSizeLimiter(opts.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck(opts.DecoderName))
	r.GET("/metrics", metrics(opts.Metrics, opts.Pool))
	r.POST("/upload-image", uploadImage(svc, opts.RequestTimeout))
	r.POST("/verify-url", verifyURL(svc, opts.RequestTimeout))
	r.GET("/reports", listReports(svc))
	r.GET("/reports/:id", getReport(svc))

	return r
}

func uploadImage(svc service.VerificationService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, timeout)
		defer cancel()

		fileHeader, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(c, apperrors.NewRequestTooLargeError("upload exceeds the request size limit", err))
				return
			}
			respondError(c, apperrors.NewValidationError("No file uploaded", err))
			return
		}

		overrides, err := formOverrides(c)
		if err != nil {
			respondError(c, apperrors.NewValidationError("invalid analysis options", err))
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, apperrors.NewValidationError("uploaded file is unreadable", err))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			respondError(c, apperrors.NewValidationError("uploaded file is unreadable", err))
			return
		}

		logger.WithFields(logrus.Fields{
			"file":         fileHeader.Filename,
			"size":         fileHeader.Size,
			"content_type": fileHeader.Header.Get("Content-Type"),
		}).Debug("Upload received")

		result, err := svc.VerifyUpload(ctx, service.UploadRequest{
			FileName:     fileHeader.Filename,
			ContentType:  fileHeader.Header.Get("Content-Type"),
			Data:         data,
			ExpectedData: c.PostForm("expected_data"),
			Overrides:    overrides,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func verifyURL(svc service.VerificationService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c, timeout)
		defer cancel()

		var req models.VerifyURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(c, apperrors.NewRequestTooLargeError("request body exceeds the size limit", err))
				return
			}
			respondError(c, apperrors.NewValidationError("invalid request format", err))
			return
		}

		result, err := svc.VerifyURL(ctx, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listReports(svc service.VerificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultReportLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				respondError(c, apperrors.NewValidationError("limit must be a positive integer", err))
				return
			}
			limit = min(n, maxReportLimit)
		}

		reports, err := svc.ListReports(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		if reports == nil {
			reports = []*models.VerificationResult{}
		}
		c.JSON(http.StatusOK, models.ReportList{Reports: reports, Count: len(reports)})
	}
}

func getReport(svc service.VerificationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.GetReport(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func metrics(counters *observer.MetricsObserver, pool *analyzer.WorkerPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{}
		if counters != nil {
			body["verifications"] = counters.GetMetrics()
		}
		if pool != nil {
			body["queue"] = pool.GetStats()
		}
		c.JSON(http.StatusOK, body)
	}
}

func healthCheck(decoderName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "available",
			"version": version,
			"decoder": decoderName,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// formOverrides reads the optional analysis fields of an upload form
func formOverrides(c *gin.Context) (*models.AnalysisOverrides, error) {
	var (
		o   models.AnalysisOverrides
		set bool
	)
	if raw := strings.TrimSpace(c.PostForm("threshold")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("threshold must be an integer")
		}
		o.Threshold, set = &n, true
	}
	if raw := strings.TrimSpace(c.PostForm("grid_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("grid_size must be an integer")
		}
		o.GridSize, set = &n, true
	}
	for field, dst := range map[string]**string{
		"channel":   &o.Channel,
		"axis":      &o.Axis,
		"scan_mode": &o.ScanMode,
	} {
		if raw := strings.TrimSpace(c.PostForm(field)); raw != "" {
			*dst, set = &raw, true
		}
	}
	if !set {
		return nil, nil
	}
	return &o, nil
}

func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":             c.Request.Method,
			"path":               c.FullPath(),
			"status":             c.Writer.Status(),
			"ip":                 c.ClientIP(),
			"user_agent":         c.Request.UserAgent(),
			"processing_time_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Request completed")
			return
		}
		entry.Info("Request completed")
	}
}

func cors(allowOrigin string) gin.HandlerFunc {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	message := http.StatusText(code)
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.Message
		if appErr.Details != "" {
			message += ": " + appErr.Details
		}
	}

	// Log the error with context
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}
