package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pockett/agreementflow/internal/models"
)

func newTestStore() *MemoryStore {
	tick := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return NewMemoryStore().WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
}

func TestGetOrInit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	doc, err := s.GetOrInit(ctx, "loan-1", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "loan-1", doc.LoanID)
	assert.Equal(t, "user-1", doc.OwnerID)
	assert.Equal(t, models.StateNoDocument, doc.State())
	assert.False(t, doc.IsSigned)
	assert.Empty(t, doc.Versions)

	// Idempotent: a second call returns the same record.
	again, err := s.GetOrInit(ctx, "loan-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)

	t.Run("Empty loan ID", func(t *testing.T) {
		_, err := s.GetOrInit(ctx, "", "user-1")
		assert.True(t, models.IsValidation(err))
	})
}

func TestGetMissing(t *testing.T) {
	_, err := newTestStore().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRecordGenerated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	_, err := s.GetOrInit(ctx, "loan-1", "user-1")
	require.NoError(t, err)

	doc, err := s.RecordGenerated(ctx, "loan-1", "agreements/unsigned/loan_loan-1_1.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.StateUnsigned, doc.State())
	assert.Equal(t, "agreements/unsigned/loan_loan-1_1.pdf", doc.UnsignedPath)
	require.Len(t, doc.Versions, 1)
	assert.False(t, doc.Versions[0].Signed)

	t.Run("Unknown loan", func(t *testing.T) {
		_, err := s.RecordGenerated(ctx, "nope", "p")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestSigningLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.GetOrInit(ctx, "loan-1", "user-1")
	require.NoError(t, err)
	_, err = s.RecordGenerated(ctx, "loan-1", "agreements/unsigned/loan_loan-1_1.pdf")
	require.NoError(t, err)

	doc, err := s.RecordSignatureUploaded(ctx, "loan-1", "signatures/loan-1_2.png")
	require.NoError(t, err)
	assert.Equal(t, "signatures/loan-1_2.png", doc.SignatureImagePath)
	assert.Equal(t, models.StateUnsigned, doc.State())

	doc, err = s.RecordSigned(ctx, "loan-1", SignedRecord{
		SignedPath:    "agreements/signed/loan_loan-1_3_signed.pdf",
		SigningIP:     "203.0.113.7",
		SigningDevice: "test-agent",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StateSigned, doc.State())
	assert.True(t, doc.IsSigned)
	require.NotNil(t, doc.SignedAt)
	assert.Equal(t, "203.0.113.7", doc.SigningIP)
	assert.Equal(t, "test-agent", doc.SigningDevice)
	require.Len(t, doc.Versions, 2)
	assert.True(t, doc.Versions[1].Signed)

	t.Run("Second sign conflicts", func(t *testing.T) {
		_, err := s.RecordSigned(ctx, "loan-1", SignedRecord{SignedPath: "other"})
		assert.ErrorIs(t, err, models.ErrAlreadySigned)
	})

	t.Run("Upload after signing conflicts", func(t *testing.T) {
		_, err := s.RecordSignatureUploaded(ctx, "loan-1", "signatures/late.png")
		assert.ErrorIs(t, err, models.ErrAlreadySigned)
	})
}

func TestRegenerateResetsSignedState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.GetOrInit(ctx, "loan-1", "user-1")
	require.NoError(t, err)
	_, err = s.RecordGenerated(ctx, "loan-1", "agreements/unsigned/loan_loan-1_1.pdf")
	require.NoError(t, err)
	_, err = s.RecordSignatureUploaded(ctx, "loan-1", "signatures/loan-1_2.png")
	require.NoError(t, err)
	_, err = s.RecordSigned(ctx, "loan-1", SignedRecord{SignedPath: "agreements/signed/loan_loan-1_3_signed.pdf"})
	require.NoError(t, err)

	doc, err := s.RecordGenerated(ctx, "loan-1", "agreements/unsigned/loan_loan-1_4.pdf")
	require.NoError(t, err)

	assert.Equal(t, models.StateUnsigned, doc.State())
	assert.False(t, doc.IsSigned)
	assert.Empty(t, doc.SignedPath)
	assert.Empty(t, doc.SignatureImagePath)
	assert.Nil(t, doc.SignedAt)
	assert.Empty(t, doc.SigningIP)
	assert.Equal(t, "agreements/unsigned/loan_loan-1_4.pdf", doc.UnsignedPath)
	// The versions history survives the reset.
	require.Len(t, doc.Versions, 3)

	// The record can be signed again after regeneration.
	_, err = s.RecordSignatureUploaded(ctx, "loan-1", "signatures/loan-1_5.png")
	require.NoError(t, err)
	_, err = s.RecordSigned(ctx, "loan-1", SignedRecord{SignedPath: "agreements/signed/loan_loan-1_6_signed.pdf"})
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.GetOrInit(ctx, "loan-1", "user-1")
	require.NoError(t, err)
	_, err = s.RecordGenerated(ctx, "loan-1", "agreements/unsigned/loan_loan-1_1.pdf")
	require.NoError(t, err)

	doc, err := s.Delete(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, "agreements/unsigned/loan_loan-1_1.pdf", doc.UnsignedPath)

	_, err = s.Get(ctx, "loan-1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.Delete(ctx, "loan-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteReturnsDetachedCopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.GetOrInit(ctx, "loan-1", "user-1")
	require.NoError(t, err)
	_, err = s.RecordGenerated(ctx, "loan-1", "p1")
	require.NoError(t, err)

	doc, err := s.Delete(ctx, "loan-1")
	require.NoError(t, err)

	// The returned record is a copy like every other method's result; a
	// caller mutating it must not see shared state with the store.
	doc.Versions[0].Signed = true
	doc.IsSigned = true

	fresh, err := s.GetOrInit(ctx, "loan-1", "user-1")
	require.NoError(t, err)
	assert.False(t, fresh.IsSigned)
	assert.Empty(t, fresh.Versions)
}

func TestCloneIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	_, err := s.GetOrInit(ctx, "loan-1", "user-1")
	require.NoError(t, err)
	doc, err := s.RecordGenerated(ctx, "loan-1", "p1")
	require.NoError(t, err)

	// Mutating a returned document must not leak into the store.
	doc.IsSigned = true
	doc.Versions[0].Signed = true

	fresh, err := s.Get(ctx, "loan-1")
	require.NoError(t, err)
	assert.False(t, fresh.IsSigned)
	assert.False(t, fresh.Versions[0].Signed)
}
