package compose

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/pockett/agreementflow/internal/contentstore"
	"github.com/pockett/agreementflow/internal/models"
)

// MaxSignatureImageBytes is the upload limit for signature images. The HTTP
// layer enforces it at upload time; the compositor re-validates.
const MaxSignatureImageBytes = 2 << 20

// Stamp regions on the last page of the agreement, matching the two-column
// signature block: borrower bottom right, lender bottom left.
const (
	borrowerStampDesc = "pos:br, off:-25 28, scale:0.18 abs, rot:0"
	lenderStampDesc   = "pos:bl, off:25 28, scale:0.18 abs, rot:0"
)

// Config holds the compositor's static inputs.
type Config struct {
	// LenderSignatureAssetPath points at a pre-provisioned lender signature
	// image on local disk. Empty disables the lender overlay.
	LenderSignatureAssetPath string
}

// Compositor overlays signature images onto an existing agreement PDF. The
// source object is never mutated; the composed result is built fully in
// memory and written once.
type Compositor struct {
	store  contentstore.Store
	config Config
}

// NewCompositor wires the compositor against a content store.
func NewCompositor(store contentstore.Store, config Config) *Compositor {
	return &Compositor{store: store, config: config}
}

// ValidateImageExt checks that ext (with leading dot) is a supported
// signature image format.
func ValidateImageExt(ext string) error {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg":
		return nil
	default:
		return fmt.Errorf("%s: %w", ext, models.ErrUnsupportedImageFormat)
	}
}

// Sign reads the source PDF and the borrower signature image from the
// content store, stamps the borrower region on the last page, optionally
// stamps the configured lender signature, and writes the result to
// outputPath. Returns outputPath.
func (c *Compositor) Sign(ctx context.Context, sourcePDFPath, signatureImagePath, outputPath string) (string, error) {
	if err := ValidateImageExt(filepath.Ext(signatureImagePath)); err != nil {
		return "", err
	}

	srcBytes, err := c.store.Read(ctx, sourcePDFPath)
	if err != nil {
		return "", err
	}
	sigBytes, err := c.store.Read(ctx, signatureImagePath)
	if err != nil {
		return "", err
	}
	if len(sigBytes) > MaxSignatureImageBytes {
		return "", models.NewValidationError("signature", "image exceeds 2 MiB")
	}

	// pdfcpu stamps images by file name, so materialize the inputs in a
	// per-job temp directory.
	tempDir, err := os.MkdirTemp("", "agreement-sign-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sigFile := filepath.Join(tempDir, "signature"+strings.ToLower(filepath.Ext(signatureImagePath)))
	if err := os.WriteFile(sigFile, sigBytes, 0o600); err != nil {
		return "", fmt.Errorf("failed to stage signature image: %w", err)
	}

	composed, err := stampLastPage(srcBytes, sigFile, borrowerStampDesc)
	if err != nil {
		return "", fmt.Errorf("failed to stamp borrower signature: %w", err)
	}

	if c.config.LenderSignatureAssetPath != "" {
		if _, statErr := os.Stat(c.config.LenderSignatureAssetPath); statErr == nil {
			composed, err = stampLastPage(composed, c.config.LenderSignatureAssetPath, lenderStampDesc)
			if err != nil {
				return "", fmt.Errorf("failed to stamp lender signature: %w", err)
			}
		} else {
			slog.Warn("Lender signature asset not readable, skipping overlay.",
				"path", c.config.LenderSignatureAssetPath, "error", statErr)
		}
	}

	if err := c.store.Write(ctx, outputPath, composed); err != nil {
		return "", err
	}
	slog.Info("Composed signed agreement.", "source", sourcePDFPath, "output", outputPath)
	return outputPath, nil
}

// stampLastPage overlays the image at imageFile onto the last page of the
// PDF in src and returns the composed bytes.
func stampLastPage(src []byte, imageFile, desc string) ([]byte, error) {
	wm, err := api.ImageWatermark(imageFile, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("invalid stamp description: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var buf bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(src), &buf, []string{"l"}, wm, conf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
