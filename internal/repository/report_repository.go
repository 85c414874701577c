package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/Suryanandx/2d-code-verifier/pkg/models"
)

const reportsBucket = "verification_reports"

// BoltReportRepository implements ReportRepository on a local BoltDB file
type BoltReportRepository struct {
	db *bbolt.DB
}

// NewBoltReportRepository opens (or creates) the database at path
func NewBoltReportRepository(path string) (*BoltReportRepository, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(reportsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltReportRepository{db: db}, nil
}

func (r *BoltReportRepository) SaveReport(ctx context.Context, report *models.VerificationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("saving report: nil report")
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	err = r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(reportsBucket)).Put([]byte(report.ID), data)
	})
	return r.wrap(err)
}

func (r *BoltReportRepository) GetReport(ctx context.Context, id string) (*models.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var report *models.VerificationResult
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(reportsBucket)).Get([]byte(strings.TrimSpace(id)))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrReportNotFound, id)
		}
		return json.Unmarshal(data, &report)
	})
	if err != nil {
		return nil, r.wrap(err)
	}
	return report, nil
}

func (r *BoltReportRepository) ListReports(ctx context.Context, limit int) ([]*models.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reports := make([]*models.VerificationResult, 0)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(reportsBucket)).ForEach(func(k, v []byte) error {
			var report models.VerificationResult
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("unmarshaling report %s: %w", k, err)
			}
			reports = append(reports, &report)
			return nil
		})
	})
	if err != nil {
		return nil, r.wrap(err)
	}

	slices.SortFunc(reports, func(a, b *models.VerificationResult) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// Close closes the database connection
func (r *BoltReportRepository) Close() error {
	return r.db.Close()
}

func (r *BoltReportRepository) wrap(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}
	return err
}
