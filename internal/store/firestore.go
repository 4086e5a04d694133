package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pockett/agreementflow/internal/models"
)

// NewFirestoreClient creates a Firestore client for the given project ID.
// Centralizes client creation for the firestore-backed tracking store.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// FirestoreStore persists tracking records in Firestore, one document per
// loan keyed by the loan ID. Guards run inside transactions, which gives the
// same read-check-write atomicity as the Mongo conditional updates.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

// NewFirestoreStore wraps an existing client.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = CollectionName
	}
	return &FirestoreStore{client: client, collection: collection, now: time.Now}
}

func (s *FirestoreStore) ref(loanID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(loanID)
}

func isFirestoreNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *FirestoreStore) GetOrInit(ctx context.Context, loanID, ownerID string) (*models.AgreementDocument, error) {
	if loanID == "" {
		return nil, models.NewValidationError("loanId", "must be provided")
	}
	var out models.AgreementDocument
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.ref(loanID))
		if err == nil {
			return snap.DataTo(&out)
		}
		if !isFirestoreNotFound(err) {
			return err
		}
		now := s.now()
		out = models.AgreementDocument{
			ID:        primitive.NewObjectID().Hex(),
			LoanID:    loanID,
			OwnerID:   ownerID,
			Versions:  []models.DocumentVersion{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Set(s.ref(loanID), out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init tracking record: %w", err)
	}
	return &out, nil
}

func (s *FirestoreStore) Get(ctx context.Context, loanID string) (*models.AgreementDocument, error) {
	snap, err := s.ref(loanID).Get(ctx)
	if isFirestoreNotFound(err) {
		return nil, fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking record: %w", err)
	}
	var doc models.AgreementDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode tracking record: %w", err)
	}
	return &doc, nil
}

// mutate runs fn against the current record inside a transaction and writes
// the result back. fn may return a domain error to abort.
func (s *FirestoreStore) mutate(ctx context.Context, loanID string, fn func(doc *models.AgreementDocument) error) (*models.AgreementDocument, error) {
	var out models.AgreementDocument
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.ref(loanID))
		if isFirestoreNotFound(err) {
			return fmt.Errorf("tracking record for loan %s: %w", loanID, models.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := snap.DataTo(&out); err != nil {
			return err
		}
		if err := fn(&out); err != nil {
			return err
		}
		return tx.Set(s.ref(loanID), out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *FirestoreStore) RecordGenerated(ctx context.Context, loanID, unsignedPath string) (*models.AgreementDocument, error) {
	now := s.now()
	return s.mutate(ctx, loanID, func(doc *models.AgreementDocument) error {
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
		return nil
	})
}

func (s *FirestoreStore) RecordSignatureUploaded(ctx context.Context, loanID, signatureImagePath string) (*models.AgreementDocument, error) {
	now := s.now()
	return s.mutate(ctx, loanID, func(doc *models.AgreementDocument) error {
		if doc.IsSigned {
			return models.ErrAlreadySigned
		}
		doc.SignatureImagePath = signatureImagePath
		doc.UpdatedAt = now
		return nil
	})
}

func (s *FirestoreStore) RecordSigned(ctx context.Context, loanID string, rec SignedRecord) (*models.AgreementDocument, error) {
	now := s.now()
	return s.mutate(ctx, loanID, func(doc *models.AgreementDocument) error {
		if doc.IsSigned {
			return models.ErrAlreadySigned
		}
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
		return nil
	})
}

func (s *FirestoreStore) Delete(ctx context.Context, loanID string) (*models.AgreementDocument, error) {
	doc, err := s.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ref(loanID).Delete(ctx); err != nil {
		return nil, fmt.Errorf("failed to delete tracking record: %w", err)
	}
	return doc, nil
}
