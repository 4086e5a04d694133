package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pockett/agreementflow/internal/cache"
	"github.com/pockett/agreementflow/internal/compose"
	"github.com/pockett/agreementflow/internal/contentstore"
	"github.com/pockett/agreementflow/internal/directory"
	"github.com/pockett/agreementflow/internal/events"
	"github.com/pockett/agreementflow/internal/logger"
	"github.com/pockett/agreementflow/internal/models"
	"github.com/pockett/agreementflow/internal/render"
	"github.com/pockett/agreementflow/internal/store"
)

// ArtifactKind selects which stored agreement document to fetch.
type ArtifactKind string

const (
	ArtifactUnsigned ArtifactKind = "unsigned"
	ArtifactSigned   ArtifactKind = "signed"
	// ArtifactCurrent resolves to the signed document when one exists and
	// falls back to the unsigned one otherwise.
	ArtifactCurrent ArtifactKind = "current"
)

var extByContentType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// AgreementService orchestrates rendering, signature handling and state
// tracking for loan agreements. The tracking store is authoritative; the
// status cache and event publisher are best effort.
type AgreementService struct {
	directory  directory.Directory
	tracking   store.TrackingStore
	content    contentstore.Store
	renderer   *render.Renderer
	compositor *compose.Compositor
	cache      cache.StatusCache
	publisher  events.Publisher
	now        func() time.Time
}

func NewAgreementService(
	dir directory.Directory,
	tracking store.TrackingStore,
	content contentstore.Store,
	renderer *render.Renderer,
	compositor *compose.Compositor,
	statusCache cache.StatusCache,
	publisher events.Publisher,
) *AgreementService {
	return &AgreementService{
		directory:  dir,
		tracking:   tracking,
		content:    content,
		renderer:   renderer,
		compositor: compositor,
		cache:      statusCache,
		publisher:  publisher,
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *AgreementService) WithClock(now func() time.Time) *AgreementService {
	s.now = now
	return s
}

// GenerateAgreement renders a fresh unsigned agreement for the loan and
// records it. Regeneration is always allowed: a new unsigned document
// replaces the previous epoch and resets any prior signature.
func (s *AgreementService) GenerateAgreement(ctx context.Context, loanID string) (*models.GenerateResponse, error) {
	loan, err := s.directory.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	user, err := s.directory.GetUser(ctx, loan.UserID)
	if err != nil {
		return nil, err
	}

	doc, err := s.tracking.GetOrInit(ctx, loanID, loan.UserID)
	if err != nil {
		return nil, err
	}

	unsignedPath, err := s.renderer.Render(ctx, loan, user)
	if err != nil {
		return nil, err
	}

	doc, err = s.tracking.RecordGenerated(ctx, loanID, unsignedPath)
	if err != nil {
		// The rendered file is orphaned; the sweeper reclaims it.
		return nil, err
	}

	s.invalidate(ctx, loanID)
	s.publish(ctx, events.Event{
		Type: events.TypeGenerated, LoanID: loanID, DocumentID: doc.ID, Path: unsignedPath, At: s.now(),
	})
	logger.CtxInfo(ctx, "Generated agreement.", "loanId", loanID, "path", unsignedPath)

	return &models.GenerateResponse{
		DocumentID:   doc.ID,
		LoanID:       loanID,
		UnsignedPath: unsignedPath,
	}, nil
}

// UploadSignature validates and stores a borrower signature image, then
// records its path. Rejected with ErrAlreadySigned once the agreement is
// signed; regenerate first to re-sign.
func (s *AgreementService) UploadSignature(ctx context.Context, loanID, contentType string, data []byte) (*models.UploadSignatureResponse, error) {
	ext, ok := extByContentType[contentType]
	if !ok {
		return nil, fmt.Errorf("%s: %w", contentType, models.ErrUnsupportedImageFormat)
	}
	if len(data) == 0 {
		return nil, models.NewValidationError("signature", "file is empty")
	}
	if len(data) > compose.MaxSignatureImageBytes {
		return nil, models.NewValidationError("signature", "image exceeds 2 MiB")
	}

	// Fail fast before touching storage so a signed record never accretes
	// orphaned signature files. The tracking update below re-checks.
	doc, err := s.tracking.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if doc.IsSigned {
		return nil, models.ErrAlreadySigned
	}

	sigPath := contentstore.SignaturePath(loanID, ext, s.now())
	if err := s.content.Write(ctx, sigPath, data); err != nil {
		return nil, err
	}

	if _, err := s.tracking.RecordSignatureUploaded(ctx, loanID, sigPath); err != nil {
		if removeErr := s.content.Remove(ctx, sigPath); removeErr != nil {
			logger.CtxWarn(ctx, "Failed to remove rejected signature image.", "path", sigPath, "error", removeErr)
		}
		return nil, err
	}

	s.invalidate(ctx, loanID)
	s.publish(ctx, events.Event{
		Type: events.TypeSignatureUploaded, LoanID: loanID, Path: sigPath, At: s.now(),
	})
	logger.CtxInfo(ctx, "Stored signature image.", "loanId", loanID, "path", sigPath)

	return &models.UploadSignatureResponse{LoanID: loanID, SignatureImagePath: sigPath}, nil
}

// SignAgreement composes the uploaded signature onto the current unsigned
// agreement and flips the record to signed. The signing IP and device are
// captured with the flip.
func (s *AgreementService) SignAgreement(ctx context.Context, loanID, signingIP, signingDevice string) (*models.SignResponse, error) {
	doc, err := s.tracking.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if doc.IsSigned {
		return nil, models.ErrAlreadySigned
	}
	if doc.UnsignedPath == "" {
		return nil, models.ErrNotFound
	}
	if doc.SignatureImagePath == "" {
		return nil, models.ErrMissingSignature
	}

	signedPath := contentstore.SignedPath(loanID, s.now())
	if _, err := s.compositor.Sign(ctx, doc.UnsignedPath, doc.SignatureImagePath, signedPath); err != nil {
		return nil, err
	}

	doc, err = s.tracking.RecordSigned(ctx, loanID, store.SignedRecord{
		SignedPath:    signedPath,
		SigningIP:     signingIP,
		SigningDevice: signingDevice,
	})
	if err != nil {
		// Lost the race to a concurrent sign; drop our composed artifact.
		if removeErr := s.content.Remove(ctx, signedPath); removeErr != nil {
			logger.CtxWarn(ctx, "Failed to remove superseded signed artifact.", "path", signedPath, "error", removeErr)
		}
		return nil, err
	}

	s.invalidate(ctx, loanID)
	s.publish(ctx, events.Event{
		Type: events.TypeSigned, LoanID: loanID, DocumentID: doc.ID, Path: signedPath, At: s.now(),
	})
	logger.CtxInfo(ctx, "Signed agreement.", "loanId", loanID, "path", signedPath, "ip", signingIP)

	return &models.SignResponse{LoanID: loanID, SignedPath: signedPath, SignedAt: doc.SignedAt}, nil
}

// GetStatus reports the loan's signing state. An absent record is a valid
// answer, never an error.
func (s *AgreementService) GetStatus(ctx context.Context, loanID string) (*models.StatusResponse, error) {
	if cached, err := s.cache.Get(ctx, loanID); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.CtxWarn(ctx, "Status cache read failed, falling through.", "loanId", loanID, "error", err)
	}

	doc, err := s.tracking.Get(ctx, loanID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.StatusResponse{Exists: false, Status: models.StateNoDocument}, nil
	}
	if err != nil {
		return nil, err
	}

	status := &models.StatusResponse{
		Exists:       true,
		Status:       doc.State(),
		IsSigned:     doc.IsSigned,
		SignedAt:     doc.SignedAt,
		UnsignedPath: doc.UnsignedPath,
		SignedPath:   doc.SignedPath,
	}
	if err := s.cache.Set(ctx, loanID, status); err != nil {
		logger.CtxWarn(ctx, "Status cache write failed.", "loanId", loanID, "error", err)
	}
	return status, nil
}

// GetArtifact returns the bytes of the requested agreement document together
// with the storage path it came from.
func (s *AgreementService) GetArtifact(ctx context.Context, loanID string, kind ArtifactKind) ([]byte, string, error) {
	doc, err := s.tracking.Get(ctx, loanID)
	if err != nil {
		return nil, "", err
	}

	var artifactPath string
	switch kind {
	case ArtifactUnsigned:
		artifactPath = doc.UnsignedPath
	case ArtifactSigned:
		artifactPath = doc.SignedPath
	case ArtifactCurrent:
		artifactPath = doc.SignedPath
		if artifactPath == "" {
			artifactPath = doc.UnsignedPath
		}
	default:
		return nil, "", models.NewValidationError("kind", fmt.Sprintf("unknown artifact kind %q", kind))
	}
	if artifactPath == "" {
		return nil, "", models.ErrNotFound
	}

	data, err := s.content.Read(ctx, artifactPath)
	if err != nil {
		return nil, "", err
	}
	return data, artifactPath, nil
}

// DeleteAgreement removes the tracking record and every file it references.
// File removals run concurrently and are idempotent.
func (s *AgreementService) DeleteAgreement(ctx context.Context, loanID string) error {
	doc, err := s.tracking.Delete(ctx, loanID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range []string{doc.UnsignedPath, doc.SignedPath, doc.SignatureImagePath} {
		if p == "" {
			continue
		}
		g.Go(func() error {
			return s.content.Remove(gctx, p)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to remove agreement artifacts for loan %s: %w", loanID, err)
	}

	s.invalidate(ctx, loanID)
	s.publish(ctx, events.Event{Type: events.TypeDeleted, LoanID: loanID, DocumentID: doc.ID, At: s.now()})
	logger.CtxInfo(ctx, "Deleted agreement.", "loanId", loanID)
	return nil
}

func (s *AgreementService) invalidate(ctx context.Context, loanID string) {
	if err := s.cache.Invalidate(ctx, loanID); err != nil {
		logger.CtxWarn(ctx, "Status cache invalidation failed.", "loanId", loanID, "error", err)
	}
}

func (s *AgreementService) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		logger.CtxWarn(ctx, "Failed to publish lifecycle event.", "eventType", ev.Type, "loanId", ev.LoanID, "error", err)
	}
}
