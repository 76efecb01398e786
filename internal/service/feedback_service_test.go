package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/internal/feedback"
)

func newTestFeedbackService(t *testing.T) *FeedbackService {
	t.Helper()

	store, err := feedback.NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger, _ := test.NewNullLogger()
	return NewFeedbackService(logger, store)
}

func TestFeedbackService_Submit(t *testing.T) {
	svc := newTestFeedbackService(t)
	ctx := context.Background()

	fb, err := svc.Submit(ctx, "Hemoglobina Glicada", domain.CategoryMetabolic, "  diabetes follow-up ")

	require.NoError(t, err)
	assert.NotZero(t, fb.ID)
	assert.Equal(t, domain.CategoryHematology, fb.SuggestedCategory)
	assert.Equal(t, domain.CategoryMetabolic, fb.UserCategory)
	assert.False(t, fb.UserAgreed)
	assert.Equal(t, "diabetes follow-up", fb.Notes)

	agreed, err := svc.Submit(ctx, "TGO", domain.CategoryHepatic, "")
	require.NoError(t, err)
	assert.True(t, agreed.UserAgreed)
}

func TestFeedbackService_Submit_Invalid(t *testing.T) {
	svc := newTestFeedbackService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "  ", domain.CategoryHepatic, "")
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.Submit(ctx, "TGO", "liver", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestFeedbackService_GetAndDelete(t *testing.T) {
	svc := newTestFeedbackService(t)
	ctx := context.Background()

	fb, err := svc.Submit(ctx, "PCR", domain.CategoryInflammation, "")
	require.NoError(t, err)

	got, err := svc.Get(ctx, "  pcr ")
	require.NoError(t, err)
	assert.Equal(t, fb.ID, got.ID)

	require.NoError(t, svc.Delete(ctx, fb.ID))

	_, err = svc.Get(ctx, "PCR")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, fb.ID), domain.ErrNotFound)
}

func TestFeedbackService_List(t *testing.T) {
	svc := newTestFeedbackService(t)
	ctx := context.Background()

	for _, name := range []string{"TGO", "TGP", "INR"} {
		_, err := svc.Submit(ctx, name, domain.CategoryHepatic, "")
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Total)

	page, err = svc.List(ctx, 0, -5)
	require.NoError(t, err)
	assert.Equal(t, defaultFeedbackPageSize, page.Limit)
	assert.Equal(t, 0, page.Offset)

	page, err = svc.List(ctx, 10000, 0)
	require.NoError(t, err)
	assert.Equal(t, maxFeedbackPageSize, page.Limit)
}

func TestFeedbackService_ExportImport(t *testing.T) {
	source := newTestFeedbackService(t)
	target := newTestFeedbackService(t)
	ctx := context.Background()

	_, err := source.Submit(ctx, "Lipase", domain.CategoryPancreatic, "")
	require.NoError(t, err)
	_, err = source.Submit(ctx, "Amilase", domain.CategoryPancreatic, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, source.Export(ctx, &buf))

	imported, skipped, err := target.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, skipped)

	got, err := target.Get(ctx, "lipase")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryPancreatic, got.UserCategory)
}
