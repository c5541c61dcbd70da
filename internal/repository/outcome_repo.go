package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
	"go.uber.org/zap"
)

// ErrOutcomeNotFound is returned when no outcome exists for an ID.
var ErrOutcomeNotFound = errors.New("extraction outcome not found")

// OutcomeRepository persists extraction outcomes. Nested records are stored
// as JSON columns; the relational surface is only what queries need.
type OutcomeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOutcomeRepository creates a new outcome repository
func NewOutcomeRepository(db *sql.DB, logger *zap.Logger) *OutcomeRepository {
	return &OutcomeRepository{db: db, logger: logger}
}

// Create inserts one extraction outcome
func (r *OutcomeRepository) Create(ctx context.Context, outcome *entity.ExtractionOutcome) error {
	canonical, err := json.Marshal(outcome.Canonical)
	if err != nil {
		return fmt.Errorf("failed to encode canonical fields: %w", err)
	}
	normalized, err := json.Marshal(outcome.Normalized)
	if err != nil {
		return fmt.Errorf("failed to encode normalized fields: %w", err)
	}
	mapped, err := json.Marshal(outcome.MappedFields)
	if err != nil {
		return fmt.Errorf("failed to encode mapped fields: %w", err)
	}
	missing, err := json.Marshal(outcome.MissingRequiredFields)
	if err != nil {
		return fmt.Errorf("failed to encode missing fields: %w", err)
	}
	validation, err := json.Marshal(outcome.TableValidation)
	if err != nil {
		return fmt.Errorf("failed to encode table validation: %w", err)
	}

	query := `
		INSERT INTO extraction_outcomes (
			id, insurer_key, insurer_display_name, config_version,
			canonical_fields, normalized_fields, mapped_fields,
			missing_required_fields, extraction_complete,
			table_validation, model, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		outcome.ID,
		outcome.InsurerKey,
		outcome.InsurerDisplayName,
		outcome.ConfigVersion,
		string(canonical),
		string(normalized),
		string(mapped),
		string(missing),
		outcome.Success,
		string(validation),
		outcome.Model,
		outcome.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create outcome", zap.Error(err))
		return fmt.Errorf("failed to create outcome: %w", err)
	}
	return nil
}

// GetByID retrieves one extraction outcome
func (r *OutcomeRepository) GetByID(ctx context.Context, id string) (*entity.ExtractionOutcome, error) {
	query := `
		SELECT id, insurer_key, insurer_display_name, config_version,
			canonical_fields, normalized_fields, mapped_fields,
			missing_required_fields, extraction_complete,
			table_validation, model, created_at
		FROM extraction_outcomes WHERE id = ?
	`
	return r.scanOutcome(r.db.QueryRowContext(ctx, query, id))
}

// ListRecent returns the most recent outcomes, newest first
func (r *OutcomeRepository) ListRecent(ctx context.Context, limit int) ([]*entity.ExtractionOutcome, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, insurer_key, insurer_display_name, config_version,
			canonical_fields, normalized_fields, mapped_fields,
			missing_required_fields, extraction_complete,
			table_validation, model, created_at
		FROM extraction_outcomes ORDER BY created_at DESC LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*entity.ExtractionOutcome
	for rows.Next() {
		outcome, err := r.scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *OutcomeRepository) scanOutcome(row rowScanner) (*entity.ExtractionOutcome, error) {
	var o entity.ExtractionOutcome
	var canonical, normalized, mapped, missing, validation string

	err := row.Scan(
		&o.ID, &o.InsurerKey, &o.InsurerDisplayName, &o.ConfigVersion,
		&canonical, &normalized, &mapped, &missing, &o.Success,
		&validation, &o.Model, &o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOutcomeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}

	if err := json.Unmarshal([]byte(canonical), &o.Canonical); err != nil {
		return nil, fmt.Errorf("failed to decode canonical fields: %w", err)
	}
	if err := json.Unmarshal([]byte(normalized), &o.Normalized); err != nil {
		return nil, fmt.Errorf("failed to decode normalized fields: %w", err)
	}
	if err := json.Unmarshal([]byte(mapped), &o.MappedFields); err != nil {
		return nil, fmt.Errorf("failed to decode mapped fields: %w", err)
	}
	if err := json.Unmarshal([]byte(missing), &o.MissingRequiredFields); err != nil {
		return nil, fmt.Errorf("failed to decode missing fields: %w", err)
	}
	if err := json.Unmarshal([]byte(validation), &o.TableValidation); err != nil {
		return nil, fmt.Errorf("failed to decode table validation: %w", err)
	}

	return &o, nil
}
