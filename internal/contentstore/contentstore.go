package contentstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// Artifact kind roots. Signed and unsigned agreements never share a prefix,
// so a path alone is enough to tell them apart.
const (
	UnsignedRoot  = "agreements/unsigned"
	SignedRoot    = "agreements/signed"
	SignatureRoot = "signatures"
)

// ObjectInfo describes one stored object, as returned by List.
type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store is path-addressable file storage with read-after-write consistency
// for a single process. Implementations must make Write an atomic replace:
// a reader never observes a partially written object.
type Store interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// UnsignedPath builds the storage path for a freshly rendered agreement.
// The generation timestamp keeps every epoch's artifact distinct so the
// versions log stays meaningful after regeneration.
func UnsignedPath(loanID string, at time.Time) string {
	return fmt.Sprintf("%s/loan_%s_%d.pdf", UnsignedRoot, loanID, at.UnixNano())
}

// SignedPath builds the storage path for a signed agreement.
func SignedPath(loanID string, at time.Time) string {
	return fmt.Sprintf("%s/loan_%s_%d_signed.pdf", SignedRoot, loanID, at.UnixNano())
}

// SignaturePath builds the storage path for an uploaded signature image.
// ext must include the leading dot.
func SignaturePath(loanID, ext string, at time.Time) string {
	return fmt.Sprintf("%s/%s_%d%s", SignatureRoot, loanID, at.UnixNano(), ext)
}

// LoanIDFromArtifactPath recovers the loan identifier embedded in an
// agreement artifact path. Returns "" when the name does not match the
// loan_<id>_<timestamp> layout.
func LoanIDFromArtifactPath(p string) string {
	base := path.Base(p)
	base = strings.TrimSuffix(base, ".pdf")
	if !strings.HasPrefix(base, "loan_") {
		return ""
	}
	base = strings.TrimPrefix(base, "loan_")
	base = strings.TrimSuffix(base, "_signed")
	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return ""
	}
	return base[:i]
}
