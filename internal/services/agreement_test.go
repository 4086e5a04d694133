package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pockett/agreementflow/internal/cache"
	"github.com/pockett/agreementflow/internal/compose"
	"github.com/pockett/agreementflow/internal/contentstore"
	"github.com/pockett/agreementflow/internal/directory"
	"github.com/pockett/agreementflow/internal/events"
	"github.com/pockett/agreementflow/internal/models"
	"github.com/pockett/agreementflow/internal/render"
	"github.com/pockett/agreementflow/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	service   *AgreementService
	content   contentstore.Store
	tracking  *store.MemoryStore
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := directory.NewMemoryDirectory()
	dir.PutLoan(models.Loan{
		ID: "loan-1", UserID: "user-1", ProductType: "personal",
		Amount: 1000, InterestRate: 12, TermMonths: 12, Status: "approved",
	})
	dir.PutUser(models.User{
		ID: "user-1", FirstName: "Jane", LastName: "Doe",
		Email: "jane@example.com", Phone: "555-0100", Address: "1 Main St",
	})

	tick := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	content, err := contentstore.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	tracking := store.NewMemoryStore().WithClock(clock)
	publisher := &recordingPublisher{}

	service := NewAgreementService(
		dir,
		tracking,
		content,
		render.NewRenderer(content, render.Config{Now: clock}),
		compose.NewCompositor(content, compose.Config{}),
		cache.NoopStatusCache{},
		publisher,
	).WithClock(clock)

	return &fixture{service: service, content: content, tracking: tracking, publisher: publisher}
}

func signatureImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 40))
	for x := 10; x < 110; x++ {
		img.Set(x, 20, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAgreementLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gen, err := f.service.GenerateAgreement(ctx, "loan-1")
	require.NoError(t, err)
	assert.NotEmpty(t, gen.DocumentID)
	assert.Equal(t, "loan-1", gen.LoanID)

	exists, err := f.content.Exists(ctx, gen.UnsignedPath)
	require.NoError(t, err)
	assert.True(t, exists)

	status, err := f.service.GetStatus(ctx, "loan-1")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.Equal(t, models.StateUnsigned, status.Status)
	assert.False(t, status.IsSigned)

	upload, err := f.service.UploadSignature(ctx, "loan-1", "image/png", signatureImage(t))
	require.NoError(t, err)
	assert.Contains(t, upload.SignatureImagePath, "signatures/loan-1_")

	unsignedBefore, err := f.content.Read(ctx, gen.UnsignedPath)
	require.NoError(t, err)

	signed, err := f.service.SignAgreement(ctx, "loan-1", "203.0.113.7", "test-agent")
	require.NoError(t, err)
	require.NotNil(t, signed.SignedAt)

	// The unsigned source survives signing untouched.
	unsignedAfter, err := f.content.Read(ctx, gen.UnsignedPath)
	require.NoError(t, err)
	assert.Equal(t, unsignedBefore, unsignedAfter)

	exists, err = f.content.Exists(ctx, signed.SignedPath)
	require.NoError(t, err)
	assert.True(t, exists)

	doc, err := f.tracking.Get(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", doc.SigningIP)
	assert.Equal(t, "test-agent", doc.SigningDevice)

	status, err = f.service.GetStatus(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateSigned, status.Status)
	assert.True(t, status.IsSigned)

	_, err = f.service.SignAgreement(ctx, "loan-1", "203.0.113.8", "other-agent")
	assert.ErrorIs(t, err, models.ErrAlreadySigned)

	assert.Equal(t, []string{
		events.TypeGenerated,
		events.TypeSignatureUploaded,
		events.TypeSigned,
	}, f.publisher.types())
}

func TestGenerateUnknownLoan(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.GenerateAgreement(context.Background(), "no-such-loan")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegenerateAfterSigning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.GenerateAgreement(ctx, "loan-1")
	require.NoError(t, err)
	_, err = f.service.UploadSignature(ctx, "loan-1", "image/png", signatureImage(t))
	require.NoError(t, err)
	_, err = f.service.SignAgreement(ctx, "loan-1", "203.0.113.7", "test-agent")
	require.NoError(t, err)

	gen, err := f.service.GenerateAgreement(ctx, "loan-1")
	require.NoError(t, err)

	status, err := f.service.GetStatus(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateUnsigned, status.Status)
	assert.False(t, status.IsSigned)
	assert.Equal(t, gen.UnsignedPath, status.UnsignedPath)

	// Signing is possible again after a fresh upload.
	_, err = f.service.UploadSignature(ctx, "loan-1", "image/png", signatureImage(t))
	require.NoError(t, err)
	_, err = f.service.SignAgreement(ctx, "loan-1", "203.0.113.9", "test-agent")
	require.NoError(t, err)
}

func TestSignWithoutSignatureUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.GenerateAgreement(ctx, "loan-1")
	require.NoError(t, err)

	before, err := f.tracking.Get(ctx, "loan-1")
	require.NoError(t, err)

	_, err = f.service.SignAgreement(ctx, "loan-1", "203.0.113.7", "test-agent")
	assert.ErrorIs(t, err, models.ErrMissingSignature)

	// The failed sign leaves the record unchanged.
	after, err := f.tracking.Get(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUploadSignatureRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.service.GenerateAgreement(ctx, "loan-1")
	require.NoError(t, err)

	t.Run("Unsupported content type", func(t *testing.T) {
		_, err := f.service.UploadSignature(ctx, "loan-1", "image/gif", signatureImage(t))
		assert.ErrorIs(t, err, models.ErrUnsupportedImageFormat)
	})

	t.Run("Empty payload", func(t *testing.T) {
		_, err := f.service.UploadSignature(ctx, "loan-1", "image/png", nil)
		require.Error(t, err)
		assert.True(t, models.IsValidation(err))
	})

	t.Run("Oversized payload", func(t *testing.T) {
		_, err := f.service.UploadSignature(ctx, "loan-1", "image/png", make([]byte, compose.MaxSignatureImageBytes+1))
		require.Error(t, err)
		assert.True(t, models.IsValidation(err))
	})

	t.Run("Unknown loan", func(t *testing.T) {
		_, err := f.service.UploadSignature(ctx, "other-loan", "image/png", signatureImage(t))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestGetStatusAbsentLoan(t *testing.T) {
	f := newFixture(t)
	status, err := f.service.GetStatus(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.False(t, status.Exists)
	assert.Equal(t, models.StateNoDocument, status.Status)
}

func TestGetArtifact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gen, err := f.service.GenerateAgreement(ctx, "loan-1")
	require.NoError(t, err)

	t.Run("Unsigned", func(t *testing.T) {
		data, path, err := f.service.GetArtifact(ctx, "loan-1", ArtifactUnsigned)
		require.NoError(t, err)
		assert.Equal(t, gen.UnsignedPath, path)
		assert.NotEmpty(t, data)
	})

	t.Run("Signed before signing", func(t *testing.T) {
		_, _, err := f.service.GetArtifact(ctx, "loan-1", ArtifactSigned)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("Current falls back to unsigned", func(t *testing.T) {
		_, path, err := f.service.GetArtifact(ctx, "loan-1", ArtifactCurrent)
		require.NoError(t, err)
		assert.Equal(t, gen.UnsignedPath, path)
	})

	_, err = f.service.UploadSignature(ctx, "loan-1", "image/png", signatureImage(t))
	require.NoError(t, err)
	signed, err := f.service.SignAgreement(ctx, "loan-1", "203.0.113.7", "test-agent")
	require.NoError(t, err)

	t.Run("Current prefers signed", func(t *testing.T) {
		_, path, err := f.service.GetArtifact(ctx, "loan-1", ArtifactCurrent)
		require.NoError(t, err)
		assert.Equal(t, signed.SignedPath, path)
	})

	t.Run("Unknown kind", func(t *testing.T) {
		_, _, err := f.service.GetArtifact(ctx, "loan-1", ArtifactKind("bogus"))
		require.Error(t, err)
		assert.True(t, models.IsValidation(err))
	})
}

func TestDeleteAgreement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gen, err := f.service.GenerateAgreement(ctx, "loan-1")
	require.NoError(t, err)
	upload, err := f.service.UploadSignature(ctx, "loan-1", "image/png", signatureImage(t))
	require.NoError(t, err)
	signed, err := f.service.SignAgreement(ctx, "loan-1", "203.0.113.7", "test-agent")
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteAgreement(ctx, "loan-1"))

	for _, p := range []string{gen.UnsignedPath, upload.SignatureImagePath, signed.SignedPath} {
		exists, err := f.content.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, exists, "artifact %s should be gone", p)
	}

	status, err := f.service.GetStatus(ctx, "loan-1")
	require.NoError(t, err)
	assert.False(t, status.Exists)

	assert.ErrorIs(t, f.service.DeleteAgreement(ctx, "loan-1"), models.ErrNotFound)
}
