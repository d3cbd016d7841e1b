package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ims-console-api/internal/models"
)

const conversionColumns = `id, enquiry_id, enquiry_no, admission_id, admission_no, mode, reconcile_status, reconcile_error, actor_id, created_at, reconciled_at`

// ConversionRepository persists the conversion ledger.
type ConversionRepository struct {
	db *sqlx.DB
}

// NewConversionRepository constructs the repository.
func NewConversionRepository(db *sqlx.DB) *ConversionRepository {
	return &ConversionRepository{db: db}
}

// Create inserts a ledger row, filling id, status and timestamps when empty.
func (r *ConversionRepository) Create(ctx context.Context, record *models.ConversionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ReconcileStatus == "" {
		record.ReconcileStatus = models.ReconcileStatusPending
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO conversion_records (` + conversionColumns + `)
VALUES (:id, :enquiry_id, :enquiry_no, :admission_id, :admission_no, :mode, :reconcile_status, :reconcile_error, :actor_id, :created_at, :reconciled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create conversion record: %w", err)
	}
	return nil
}

// UpdateReconcile records the outcome of marking the enquiry converted.
func (r *ConversionRepository) UpdateReconcile(ctx context.Context, id string, status models.ReconcileStatus, reconcileErr string, at *time.Time) error {
	const query = `UPDATE conversion_records SET reconcile_status = $1, reconcile_error = $2, reconciled_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, status, reconcileErr, at, id); err != nil {
		return fmt.Errorf("update conversion record: %w", err)
	}
	return nil
}

// List returns ledger rows newest first with the total matching count.
func (r *ConversionRepository) List(ctx context.Context, filter models.ConversionFilter) ([]models.ConversionRecord, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if filter.EnquiryID != "" {
		args = append(args, filter.EnquiryID)
		conditions = append(conditions, fmt.Sprintf("enquiry_id = $%d", len(args)))
	}
	if filter.Mode != "" {
		args = append(args, filter.Mode)
		conditions = append(conditions, fmt.Sprintf("mode = $%d", len(args)))
	}
	if filter.ReconcileStatus != "" {
		args = append(args, filter.ReconcileStatus)
		conditions = append(conditions, fmt.Sprintf("reconcile_status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM conversion_records"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count conversion records: %w", err)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf("SELECT %s FROM conversion_records%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		conversionColumns, where, len(args)-1, len(args))

	var records []models.ConversionRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list conversion records: %w", err)
	}
	return records, total, nil
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
