package feedback

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-analysis-engine/internal/domain"
)

var feedbackColumns = []string{
	"id", "test_name", "normalized_name", "suggested_category",
	"user_category", "user_agreed", "notes", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing()
	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save_Mock(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO category_feedback")).
		WithArgs("Hemoglobina Glicada", "hemoglobina glicada", "hematology", "metabolic", false, "note", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

	fb := New("Hemoglobina Glicada", domain.CategoryHematology, domain.CategoryMetabolic, "note")
	err := store.Save(context.Background(), fb)

	require.NoError(t, err)
	assert.Equal(t, int64(7), fb.ID)
	assert.Equal(t, created, fb.CreatedAt)
	assert.False(t, fb.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Invalid(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.Save(context.Background(), New("TGO", "liver", domain.CategoryHepatic, ""))

	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_Mock(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM category_feedback")).
		WithArgs("tgo").
		WillReturnRows(sqlmock.NewRows(feedbackColumns).
			AddRow(int64(1), "TGO", "tgo", "hepatic", "hepatic", true, "", now, now))

	fb, err := store.Get(context.Background(), "tgo")

	require.NoError(t, err)
	require.NotNil(t, fb)
	assert.Equal(t, domain.CategoryHepatic, fb.UserCategory)
	assert.True(t, fb.UserAgreed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM category_feedback")).
		WithArgs("zinco").
		WillReturnError(sql.ErrNoRows)

	fb, err := store.Get(context.Background(), "zinco")

	assert.NoError(t, err)
	assert.Nil(t, fb)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List_Mock(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(feedbackColumns).
			AddRow(int64(2), "INR", "inr", "coagulation", "hepatic", false, "", now, now).
			AddRow(int64(1), "TGO", "tgo", "hepatic", "hepatic", true, "", now, now))

	list, err := store.List(context.Background(), 10, 0)

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "INR", list[0].TestName)
	assert.Equal(t, domain.CategoryCoagulation, list[0].SuggestedCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count_Mock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM category_feedback")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := store.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestPostgresStore_Delete_Mock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM category_feedback WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM category_feedback WHERE id = $1")).
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Delete(context.Background(), 5))
	assert.ErrorIs(t, store.Delete(context.Background(), 6), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExportJSON_Mock(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(maxExportLimit, 0).
		WillReturnRows(sqlmock.NewRows(feedbackColumns).
			AddRow(int64(1), "TGO", "tgo", "hepatic", "hepatic", true, "ok", now, now))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(context.Background(), &buf))

	assert.Contains(t, buf.String(), `"normalized_name": "tgo"`)
	assert.Contains(t, buf.String(), `"count": 1`)
}

// getTestDB returns a database connection for testing.
// Skip test if TEST_DATABASE_URL is not set.
func getTestDB(t *testing.T) *sql.DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS category_feedback (
			id BIGSERIAL PRIMARY KEY,
			test_name TEXT NOT NULL,
			normalized_name TEXT NOT NULL UNIQUE,
			suggested_category TEXT NOT NULL,
			user_category TEXT NOT NULL,
			user_agreed BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM category_feedback")
	require.NoError(t, err)

	return db
}

func TestPostgresStore_SaveUpdate(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	fb := New("PCR", domain.CategoryInflammation, domain.CategoryMicrobiology, "")
	require.NoError(t, store.Save(ctx, fb))
	originalID := fb.ID

	update := New("PCR", domain.CategoryInflammation, domain.CategoryInflammation, "Updated after review")
	require.NoError(t, store.Save(ctx, update))

	assert.Equal(t, originalID, update.ID)

	retrieved, err := store.Get(ctx, "pcr")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryInflammation, retrieved.UserCategory)
	assert.True(t, retrieved.UserAgreed)
	assert.Equal(t, "Updated after review", retrieved.Notes)
}
