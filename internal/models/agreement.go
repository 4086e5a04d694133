package models

import "time"

// AgreementState describes where a loan's agreement sits in its lifecycle.
type AgreementState string

const (
	StateNoDocument AgreementState = "NO_DOCUMENT"
	StateUnsigned   AgreementState = "UNSIGNED"
	StateSigned     AgreementState = "SIGNED"
)

// DocumentVersion is one entry of the append-only audit log kept on the
// tracking record. A new entry is written for every generation and every
// signing event, even when the current paths are overwritten.
type DocumentVersion struct {
	Path      string    `bson:"docPath" firestore:"docPath" json:"path"`
	Signed    bool      `bson:"signed" firestore:"signed" json:"signed"`
	CreatedAt time.Time `bson:"createdAt" firestore:"createdAt" json:"createdAt"`
}

// AgreementDocument is the per-loan tracking record for the agreement PDF.
// It is the authoritative signing state machine: there is exactly one record
// per loan, and the signed fields flip together in a single update.
type AgreementDocument struct {
	ID                 string            `bson:"_id,omitempty" firestore:"documentId" json:"documentId"`
	LoanID             string            `bson:"loanId" firestore:"loanId" json:"loanId"`
	OwnerID            string            `bson:"ownerId" firestore:"ownerId" json:"ownerId"`
	UnsignedPath       string            `bson:"unsignedDocPath,omitempty" firestore:"unsignedDocPath,omitempty" json:"unsignedPath,omitempty"`
	SignedPath         string            `bson:"signedDocPath,omitempty" firestore:"signedDocPath,omitempty" json:"signedPath,omitempty"`
	SignatureImagePath string            `bson:"signaturePath,omitempty" firestore:"signaturePath,omitempty" json:"signatureImagePath,omitempty"`
	IsSigned           bool              `bson:"isSigned" firestore:"isSigned" json:"isSigned"`
	SignedAt           *time.Time        `bson:"signedAt,omitempty" firestore:"signedAt,omitempty" json:"signedAt,omitempty"`
	SigningIP          string            `bson:"signingIP,omitempty" firestore:"signingIP,omitempty" json:"signingIP,omitempty"`
	SigningDevice      string            `bson:"signingDevice,omitempty" firestore:"signingDevice,omitempty" json:"signingDevice,omitempty"`
	Versions           []DocumentVersion `bson:"versions" firestore:"versions" json:"versions"`
	CreatedAt          time.Time         `bson:"createdAt" firestore:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time         `bson:"updatedAt" firestore:"updatedAt" json:"updatedAt"`
}

// State derives the lifecycle state from the record fields.
func (d *AgreementDocument) State() AgreementState {
	if d == nil {
		return StateNoDocument
	}
	if d.IsSigned {
		return StateSigned
	}
	if d.UnsignedPath != "" {
		return StateUnsigned
	}
	return StateNoDocument
}
