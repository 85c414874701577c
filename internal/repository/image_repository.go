package repository

import (
	"context"
	"fmt"

	"github.com/Suryanandx/2d-code-verifier/internal/storage"
)

// URLValidator checks whether an image URL may be fetched
type URLValidator interface {
	ValidateImageURL(imageURL string) error
}

// HTTPImageRepository implements ImageRepository using HTTP storage
type HTTPImageRepository struct {
	fetcher   storage.ImageFetcher
	validator URLValidator
}

// NewHTTPImageRepository creates a new HTTP-based image repository
func NewHTTPImageRepository(fetcher storage.ImageFetcher, validator URLValidator) ImageRepository {
	return &HTTPImageRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

// FetchImage validates the URL before any network access
func (r *HTTPImageRepository) FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	return r.fetcher.FetchImage(ctx, imageURL)
}

// ValidateImageURL wraps validator failures so callers can match ErrInvalidImageURL
func (r *HTTPImageRepository) ValidateImageURL(imageURL string) error {
	if imageURL == "" {
		return ErrInvalidImageURL
	}
	if r.validator == nil {
		return nil
	}
	if err := r.validator.ValidateImageURL(imageURL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImageURL, err)
	}
	return nil
}
