package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
	"github.com/Dee-Olulo/OCR-system/pkg/database"
)

func newTestRepo(t *testing.T) *OutcomeRepository {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations("../../migrations"))
	return NewOutcomeRepository(db.DB, logger)
}

func testOutcome(id string, createdAt time.Time) *entity.ExtractionOutcome {
	canonical := entity.NewCanonicalRecord()
	canonical.PatientName = entity.Str("John Banda")
	canonical.TotalAmount = entity.Num(500)
	canonical.LineItems = []entity.LineItem{
		{Description: entity.Str("Consultation"), Amount: entity.Num(500)},
	}

	return &entity.ExtractionOutcome{
		ID:                    id,
		InsurerKey:            "abc",
		InsurerDisplayName:    "ABC Medical Fund",
		ConfigVersion:         "1.0",
		Canonical:             canonical,
		Normalized:            canonical,
		MappedFields:          map[string]any{"member_name": "John Banda", "claim_total": 500.0},
		MissingRequiredFields: []string{},
		Success:               true,
		TableValidation: entity.TableValidation{
			TotalMatch:      true,
			TableConfidence: 1.0,
			Discrepancies:   []string{},
		},
		Model:     "test-model",
		CreatedAt: createdAt,
	}
}

func TestOutcomeRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	outcome := testOutcome("o-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, repo.Create(ctx, outcome))

	got, err := repo.GetByID(ctx, "o-1")
	require.NoError(t, err)

	assert.Equal(t, outcome.ID, got.ID)
	assert.Equal(t, outcome.InsurerKey, got.InsurerKey)
	assert.Equal(t, outcome.InsurerDisplayName, got.InsurerDisplayName)
	assert.True(t, got.Success)
	assert.Equal(t, "test-model", got.Model)

	require.NotNil(t, got.Canonical)
	require.NotNil(t, got.Canonical.PatientName)
	assert.Equal(t, "John Banda", *got.Canonical.PatientName)
	require.Len(t, got.Canonical.LineItems, 1)

	assert.Equal(t, "John Banda", got.MappedFields["member_name"])
	assert.Equal(t, 500.0, got.MappedFields["claim_total"])
	assert.True(t, got.TableValidation.TotalMatch)
	assert.Equal(t, 1.0, got.TableValidation.TableConfidence)
}

func TestOutcomeRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrOutcomeNotFound)
}

func TestOutcomeRepository_ListRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Create(ctx, testOutcome("o-old", base.Add(-2*time.Hour))))
	require.NoError(t, repo.Create(ctx, testOutcome("o-mid", base.Add(-1*time.Hour))))
	require.NoError(t, repo.Create(ctx, testOutcome("o-new", base)))

	outcomes, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "o-new", outcomes[0].ID)
	assert.Equal(t, "o-mid", outcomes[1].ID)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
