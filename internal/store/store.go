package store

import (
	"context"

	"github.com/pockett/agreementflow/internal/models"
)

// SignedRecord carries the metadata captured at signing time. All of it is
// written together with the isSigned flip in one atomic update.
type SignedRecord struct {
	SignedPath    string
	SigningIP     string
	SigningDevice string
}

// TrackingStore is the authoritative state machine for agreement documents.
// Implementations must apply every guard as a single conditional update
// against persisted state: two concurrent signs for the same loan must never
// both succeed.
type TrackingStore interface {
	// GetOrInit returns the loan's record, creating an unsigned-default one
	// if absent. Idempotent.
	GetOrInit(ctx context.Context, loanID, ownerID string) (*models.AgreementDocument, error)

	// Get returns the record or models.ErrNotFound.
	Get(ctx context.Context, loanID string) (*models.AgreementDocument, error)

	// RecordGenerated sets the unsigned path, resets all signed fields to
	// their defaults and appends an unsigned version entry. This is the one
	// intentional SIGNED -> UNSIGNED transition: a new unsigned document
	// invalidates any prior signature.
	RecordGenerated(ctx context.Context, loanID, unsignedPath string) (*models.AgreementDocument, error)

	// RecordSignatureUploaded sets the signature image path. Fails with
	// models.ErrAlreadySigned once the record is signed.
	RecordSignatureUploaded(ctx context.Context, loanID, signatureImagePath string) (*models.AgreementDocument, error)

	// RecordSigned flips the record to signed, sets the signing metadata and
	// appends a signed version entry. Fails with models.ErrAlreadySigned if
	// the record is already signed.
	RecordSigned(ctx context.Context, loanID string, rec SignedRecord) (*models.AgreementDocument, error)

	// Delete removes the record and returns its last state so callers can
	// clean up referenced files. Fails with models.ErrNotFound when absent.
	Delete(ctx context.Context, loanID string) (*models.AgreementDocument, error)
}
