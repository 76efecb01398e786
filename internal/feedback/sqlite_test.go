package feedback

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-analysis-engine/internal/domain"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "feedback-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestNew_DerivesFields(t *testing.T) {
	fb := New("  Hemoglobina   Glicada ", domain.CategoryHematology, domain.CategoryMetabolic, "HbA1c is metabolic")

	assert.Equal(t, "Hemoglobina   Glicada", fb.TestName)
	assert.Equal(t, "hemoglobina glicada", fb.NormalizedName)
	assert.False(t, fb.UserAgreed)

	agreed := New("TGO", domain.CategoryHepatic, domain.CategoryHepatic, "")
	assert.True(t, agreed.UserAgreed)
}

func TestFeedback_Validate(t *testing.T) {
	tests := []struct {
		name    string
		fb      *Feedback
		wantErr error
	}{
		{"Valid", New("TGO", domain.CategoryHepatic, domain.CategoryHepatic, ""), nil},
		{"Invalid suggested", New("TGO", "liver", domain.CategoryHepatic, ""), domain.ErrInvalidCategory},
		{"Invalid user", New("TGO", domain.CategoryHepatic, "other", ""), domain.ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fb.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	var validationErr *domain.ValidationError
	err := New("   ", domain.CategoryHepatic, domain.CategoryHepatic, "").Validate()
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "test_name", validationErr.Field)
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	fb := New("Hemoglobina Glicada", domain.CategoryHematology, domain.CategoryMetabolic, "Glycated hemoglobin belongs to diabetes follow-up")

	err := store.Save(ctx, fb)

	require.NoError(t, err)
	assert.NotZero(t, fb.ID, "ID should be assigned")
	assert.False(t, fb.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, fb.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func TestSQLiteStore_Save_Invalid(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	err := store.Save(context.Background(), New("TGO", "liver", domain.CategoryHepatic, ""))

	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	fb := New("PCR", domain.CategoryInflammation, domain.CategoryMicrobiology, "")
	require.NoError(t, store.Save(ctx, fb))
	originalID := fb.ID

	// Same name, different spelling, resolves to the same entry
	update := New("pcr ", domain.CategoryInflammation, domain.CategoryInflammation, "Reviewed: C-reactive protein")
	require.NoError(t, store.Save(ctx, update))

	assert.Equal(t, originalID, update.ID, "Should update existing entry")

	retrieved, err := store.Get(ctx, "pcr")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, domain.CategoryInflammation, retrieved.UserCategory)
	assert.True(t, retrieved.UserAgreed)
	assert.Equal(t, "Reviewed: C-reactive protein", retrieved.Notes)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	retrieved, err := store.Get(context.Background(), "zinco")

	assert.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_List_Pagination(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for _, name := range []string{"TGO", "TGP", "GGT", "INR", "TTPA"} {
		require.NoError(t, store.Save(ctx, New(name, domain.CategoryHepatic, domain.CategoryHepatic, "")))
	}

	page1, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page3, err := store.List(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page3, 1)

	beyond, err := store.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.NotNil(t, beyond)
	assert.Empty(t, beyond)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	fb := New("Lipase", domain.CategoryPancreatic, domain.CategoryPancreatic, "")
	require.NoError(t, store.Save(ctx, fb))

	require.NoError(t, store.Delete(ctx, fb.ID))

	retrieved, err := store.Get(ctx, "lipase")
	assert.NoError(t, err)
	assert.Nil(t, retrieved)

	err = store.Delete(ctx, fb.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, New("Cálcio iônico", domain.CategoryElectrolytes, domain.CategoryElectrolytes, "Well-characterized")))

	var buf bytes.Buffer
	err := store.ExportJSON(ctx, &buf)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "cálcio iônico")
	assert.Contains(t, buf.String(), "Well-characterized")
	assert.Contains(t, buf.String(), `"version"`)
	assert.Contains(t, buf.String(), `"count": 1`)
}

func TestSQLiteStore_ImportJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	jsonData := `{
		"version": "1.0",
		"exported_at": "2026-01-17T10:00:00Z",
		"count": 3,
		"feedback": [
			{
				"test_name": "Hemoglobina Glicada",
				"normalized_name": "hemoglobina glicada",
				"suggested_category": "hematology",
				"user_category": "metabolic",
				"user_agreed": false,
				"notes": "Diabetes marker"
			},
			{
				"test_name": "TGO",
				"suggested_category": "hepatic",
				"user_category": "hepatic",
				"user_agreed": true
			},
			{
				"test_name": "Broken",
				"suggested_category": "liver",
				"user_category": "hepatic"
			}
		]
	}`

	imported, skipped, err := store.ImportJSON(ctx, bytes.NewReader([]byte(jsonData)))

	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, skipped)

	hba1c, err := store.Get(ctx, "hemoglobina glicada")
	require.NoError(t, err)
	require.NotNil(t, hba1c)
	assert.Equal(t, domain.CategoryMetabolic, hba1c.UserCategory)
	assert.Equal(t, "Diabetes marker", hba1c.Notes)

	tgo, err := store.Get(ctx, "tgo")
	require.NoError(t, err)
	require.NotNil(t, tgo, "normalized name should be derived on import")
}

func TestSQLiteStore_ImportJSON_SkipDuplicates(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, New("INR", domain.CategoryCoagulation, domain.CategoryCoagulation, "")))

	jsonData := `{
		"version": "1.0",
		"count": 2,
		"feedback": [
			{"test_name": "INR", "normalized_name": "inr", "suggested_category": "coagulation", "user_category": "hepatic"},
			{"test_name": "TTPA", "normalized_name": "ttpa", "suggested_category": "coagulation", "user_category": "coagulation", "user_agreed": true}
		]
	}`

	imported, skipped, err := store.ImportJSON(ctx, bytes.NewReader([]byte(jsonData)))

	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	inr, _ := store.Get(ctx, "inr")
	assert.Equal(t, domain.CategoryCoagulation, inr.UserCategory, "Existing should not be overwritten")
}

func TestSQLiteStore_ImportJSON_BadDocument(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	_, _, err := store.ImportJSON(context.Background(), bytes.NewReader([]byte("{not json")))
	assert.Error(t, err)
}

// Helper function to create a test store
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "feedback-test-*")
	require.NoError(t, err)

	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	return store
}
