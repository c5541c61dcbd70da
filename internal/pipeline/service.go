// Package pipeline composes extraction, normalization and insurer mapping
// into one request-scoped unit of work.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
	"github.com/Dee-Olulo/OCR-system/internal/extraction"
	"github.com/Dee-Olulo/OCR-system/internal/insurer"
	"github.com/Dee-Olulo/OCR-system/internal/normalize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoInsurerDetected is returned when no insurer key was supplied and
// none could be detected from the document.
var ErrNoInsurerDetected = errors.New("could not detect insurer from document or extracted fields")

// Service runs the full document pipeline: extract to canonical, detect the
// insurer, normalize, map to the insurer schema and validate. Extraction
// failures degrade to empty fields; only the caller-visible conditions
// (no insurer, unknown insurer, broken config store) surface as errors.
type Service struct {
	extractor *extraction.Orchestrator
	mapper    *insurer.Mapper
	model     string
	logger    *zap.Logger
}

// NewService creates a pipeline service.
func NewService(extractor *extraction.Orchestrator, mapper *insurer.Mapper, model string, logger *zap.Logger) *Service {
	return &Service{
		extractor: extractor,
		mapper:    mapper,
		model:     model,
		logger:    logger,
	}
}

// Process runs one document through the pipeline. insurerKey may be empty,
// in which case the insurer is detected from the extracted fields.
func (s *Service) Process(ctx context.Context, rawText, insurerKey string) (*entity.ExtractionOutcome, error) {
	s.logger.Info("Extraction pipeline started",
		zap.Int("text_chars", len(rawText)),
		zap.String("insurer_hint", insurerKey))

	aliasMap := s.mapper.AliasMap()
	canonical, validation := s.extractor.Extract(ctx, rawText, aliasMap)

	key := strings.ToLower(strings.TrimSpace(insurerKey))
	if key == "" {
		key = s.mapper.DetectInsurer(canonical)
	}
	if key == "" {
		return nil, ErrNoInsurerDetected
	}

	cfg, err := s.mapper.LoadConfig(key)
	if err != nil {
		return nil, err
	}

	dateLayout := cfg.DateFormat
	if dateLayout == "" {
		dateLayout = normalize.DefaultDateLayout
	}
	normalized := normalize.Canonical(canonical, dateLayout)

	result, err := s.mapper.Process(normalized, key)
	if err != nil {
		return nil, err
	}

	outcome := &entity.ExtractionOutcome{
		ID:                    uuid.NewString(),
		InsurerKey:            key,
		InsurerDisplayName:    result.DisplayName,
		ConfigVersion:         result.ConfigVersion,
		Canonical:             canonical,
		Normalized:            normalized,
		MappedFields:          result.MappedFields,
		MissingRequiredFields: result.MissingFields,
		Success:               result.Success,
		TableValidation:       validation,
		Model:                 s.model,
		CreatedAt:             time.Now().UTC(),
	}

	s.logger.Info("Extraction pipeline finished",
		zap.String("outcome_id", outcome.ID),
		zap.String("insurer", key),
		zap.Bool("complete", outcome.Success),
		zap.Strings("missing_fields", outcome.MissingRequiredFields))

	return outcome, nil
}
