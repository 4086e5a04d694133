package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pockett/agreementflow/internal/models"
)

// MemoryStore is an in-process TrackingStore for tests and local
// development. A single mutex serializes all mutations, which satisfies the
// single-writer-per-loan discipline trivially.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]*models.AgreementDocument
	now  func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*models.AgreementDocument),
		now:  time.Now,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func clone(d *models.AgreementDocument) *models.AgreementDocument {
	out := *d
	out.Versions = append([]models.DocumentVersion(nil), d.Versions...)
	if d.SignedAt != nil {
		t := *d.SignedAt
		out.SignedAt = &t
	}
	return &out
}

func (s *MemoryStore) GetOrInit(ctx context.Context, loanID, ownerID string) (*models.AgreementDocument, error) {
	if loanID == "" {
		return nil, models.NewValidationError("loanId", "must be provided")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.docs[loanID]; ok {
		return clone(doc), nil
	}
	now := s.now()
	doc := &models.AgreementDocument{
		ID:        primitive.NewObjectID().Hex(),
		LoanID:    loanID,
		OwnerID:   ownerID,
		Versions:  []models.DocumentVersion{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.docs[loanID] = doc
	return clone(doc), nil
}

func (s *MemoryStore) Get(ctx context.Context, loanID string) (*models.AgreementDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[loanID]
	if !ok {
		return nil, fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
	}
	return clone(doc), nil
}

func (s *MemoryStore) RecordGenerated(ctx context.Context, loanID, unsignedPath string) (*models.AgreementDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[loanID]
	if !ok {
		return nil, fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
	}
	now := s.now()
	doc.UnsignedPath = unsignedPath
	doc.IsSigned = false
	doc.SignedPath = ""
	doc.SignatureImagePath = ""
	doc.SignedAt = nil
	doc.SigningIP = ""
	doc.SigningDevice = ""
	doc.UpdatedAt = now
	doc.Versions = append(doc.Versions, models.DocumentVersion{
		Path:      unsignedPath,
		Signed:    false,
		CreatedAt: now,
	})
	return clone(doc), nil
}

func (s *MemoryStore) RecordSignatureUploaded(ctx context.Context, loanID, signatureImagePath string) (*models.AgreementDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[loanID]
	if !ok {
		return nil, fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
	}
	if doc.IsSigned {
		return nil, models.ErrAlreadySigned
	}
	doc.SignatureImagePath = signatureImagePath
	doc.UpdatedAt = s.now()
	return clone(doc), nil
}

func (s *MemoryStore) RecordSigned(ctx context.Context, loanID string, rec SignedRecord) (*models.AgreementDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[loanID]
	if !ok {
		return nil, fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
	}
	if doc.IsSigned {
		return nil, models.ErrAlreadySigned
	}
	now := s.now()
	doc.IsSigned = true
	doc.SignedPath = rec.SignedPath
	doc.SignedAt = &now
	doc.SigningIP = rec.SigningIP
	doc.SigningDevice = rec.SigningDevice
	doc.UpdatedAt = now
	doc.Versions = append(doc.Versions, models.DocumentVersion{
		Path:      rec.SignedPath,
		Signed:    true,
		CreatedAt: now,
	})
	return clone(doc), nil
}

func (s *MemoryStore) Delete(ctx context.Context, loanID string) (*models.AgreementDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[loanID]
	if !ok {
		return nil, fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
	}
	delete(s.docs, loanID)
	return clone(doc), nil
}
