package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AdmissionNumberRepository hands out per-year admission sequence values.
type AdmissionNumberRepository struct {
	db *sqlx.DB
}

// NewAdmissionNumberRepository constructs the repository.
func NewAdmissionNumberRepository(db *sqlx.DB) *AdmissionNumberRepository {
	return &AdmissionNumberRepository{db: db}
}

// Next atomically increments and returns the sequence value for year, starting at 1.
// The upsert holds a row lock, so concurrent callers never receive the same value.
func (r *AdmissionNumberRepository) Next(ctx context.Context, year int) (int, error) {
	const query = `INSERT INTO admission_sequences (year, last_value) VALUES ($1, 1)
ON CONFLICT (year) DO UPDATE SET last_value = admission_sequences.last_value + 1, updated_at = NOW()
RETURNING last_value`
	var value int
	if err := r.db.GetContext(ctx, &value, query, year); err != nil {
		return 0, fmt.Errorf("next admission sequence: %w", err)
	}
	return value, nil
}
