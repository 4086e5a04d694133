package models

import "time"

// These structs define the JSON payloads exchanged between the HTTP layer
// and its clients.

// GenerateResponse is returned after an agreement was rendered.
type GenerateResponse struct {
	DocumentID   string `json:"documentId"`
	LoanID       string `json:"loanId"`
	UnsignedPath string `json:"unsignedPath"`
}

// UploadSignatureResponse is returned after a signature image was stored.
type UploadSignatureResponse struct {
	LoanID             string `json:"loanId"`
	SignatureImagePath string `json:"signatureImagePath"`
}

// SignResponse is returned after a successful signing operation.
type SignResponse struct {
	LoanID     string     `json:"loanId"`
	SignedPath string     `json:"signedPath"`
	SignedAt   *time.Time `json:"signedAt,omitempty"`
}

// StatusResponse describes the current signing state of a loan's agreement.
// Absent records are reported with Exists=false, never as an error.
type StatusResponse struct {
	Exists       bool           `json:"exists"`
	Status       AgreementState `json:"status"`
	IsSigned     bool           `json:"isSigned"`
	SignedAt     *time.Time     `json:"signedAt,omitempty"`
	UnsignedPath string         `json:"unsignedPath,omitempty"`
	SignedPath   string         `json:"signedPath,omitempty"`
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
