package repository

import (
	"context"

	"github.com/Suryanandx/2d-code-verifier/internal/storage"
	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

// ImageRepository defines the interface for remote image access
type ImageRepository interface {
	// FetchImage validates imageURL and downloads its bytes
	FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// ReportRepository stores completed verification results
type ReportRepository interface {
	// SaveReport stores a result, assigning an ID if it has none
	SaveReport(ctx context.Context, report *models.VerificationResult) error

	// GetReport returns ErrReportNotFound for unknown IDs
	GetReport(ctx context.Context, id string) (*models.VerificationResult, error)

	// ListReports returns the newest reports first. limit <= 0 means all.
	ListReports(ctx context.Context, limit int) ([]*models.VerificationResult, error)

	Close() error
}
