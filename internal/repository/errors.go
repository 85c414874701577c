package repository

import "errors"

var (
	// ErrInvalidImageURL indicates an invalid image URL
	ErrInvalidImageURL = errors.New("invalid image URL")

	// ErrReportNotFound indicates no verification report has the requested ID
	ErrReportNotFound = errors.New("verification report not found")

	// ErrRepositoryUnavailable indicates the repository is closed or unreachable
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
