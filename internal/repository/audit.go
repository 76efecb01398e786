// Package repository persists analysis audit rows in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/domain"
)

const defaultRecentLimit = 50

// AuditRepository handles analysis audit persistence
type AuditRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *pgxpool.Pool, logger *logrus.Logger) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a new audit row. Missing ID and CreatedAt are filled in.
func (r *AuditRepository) Create(ctx context.Context, audit *domain.AnalysisAudit) error {
	if audit.RequestID == "" {
		return domain.NewValidationError("request_id", "is required", audit.RequestID)
	}
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO analysis_audits (
			id, request_id, categories, critical_categories,
			abnormal_rows, total_rows, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.db.Exec(ctx, query,
		audit.ID,
		audit.RequestID,
		keysToStrings(audit.Categories),
		keysToStrings(audit.CriticalCategories),
		audit.AbnormalRows,
		audit.TotalRows,
		audit.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"audit_id":   audit.ID,
			"request_id": audit.RequestID,
			"error":      err,
		}).Error("Failed to create analysis audit")
		return fmt.Errorf("creating analysis audit: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"audit_id":      audit.ID,
		"request_id":    audit.RequestID,
		"categories":    len(audit.Categories),
		"abnormal_rows": audit.AbnormalRows,
	}).Debug("Analysis audit created")

	return nil
}

// GetByRequestID retrieves the audit row written for a request
func (r *AuditRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.AnalysisAudit, error) {
	query := `
		SELECT id::text, request_id, categories, critical_categories,
			   abnormal_rows, total_rows, created_at
		FROM analysis_audits
		WHERE request_id = $1`

	audit, err := scanAudit(r.db.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("analysis audit not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err,
		}).Error("Failed to get analysis audit")
		return nil, fmt.Errorf("getting analysis audit: %w", err)
	}

	return audit, nil
}

// ListRecent returns the newest audit rows first
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*domain.AnalysisAudit, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	query := `
		SELECT id::text, request_id, categories, critical_categories,
			   abnormal_rows, total_rows, created_at
		FROM analysis_audits
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.WithError(err).Error("Failed to list analysis audits")
		return nil, fmt.Errorf("listing analysis audits: %w", err)
	}
	defer rows.Close()

	audits := []*domain.AnalysisAudit{}
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning analysis audit row: %w", err)
		}
		audits = append(audits, audit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating analysis audit rows: %w", err)
	}

	return audits, nil
}

func scanAudit(row pgx.Row) (*domain.AnalysisAudit, error) {
	var audit domain.AnalysisAudit
	var categories, critical []string

	err := row.Scan(
		&audit.ID,
		&audit.RequestID,
		&categories,
		&critical,
		&audit.AbnormalRows,
		&audit.TotalRows,
		&audit.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	audit.Categories = stringsToKeys(categories)
	audit.CriticalCategories = stringsToKeys(critical)
	return &audit, nil
}

func keysToStrings(keys []domain.CategoryKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

func stringsToKeys(values []string) []domain.CategoryKey {
	out := make([]domain.CategoryKey, len(values))
	for i, v := range values {
		out[i] = domain.CategoryKey(v)
	}
	return out
}
