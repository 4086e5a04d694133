package handlers

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/pockett/agreementflow/internal/compose"
	"github.com/pockett/agreementflow/internal/logger"
	"github.com/pockett/agreementflow/internal/models"
	"github.com/pockett/agreementflow/internal/services"
)

// AgreementHandler exposes the agreement lifecycle over HTTP.
type AgreementHandler struct {
	service *services.AgreementService
}

func NewAgreementHandler(service *services.AgreementService) *AgreementHandler {
	return &AgreementHandler{service: service}
}

// Generate renders an unsigned agreement for the loan.
// POST /api/loans/:loanId/agreement/generate
func (h *AgreementHandler) Generate(c *gin.Context) {
	resp, err := h.service.GenerateAgreement(c.Request.Context(), c.Param("loanId"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// UploadSignature accepts a multipart signature image under field "signature".
// POST /api/loans/:loanId/agreement/signature
func (h *AgreementHandler) UploadSignature(c *gin.Context) {
	file, err := c.FormFile("signature")
	if err != nil {
		h.renderError(c, models.NewValidationError("signature", "multipart field is required"))
		return
	}
	if file.Size > compose.MaxSignatureImageBytes {
		h.renderError(c, models.NewValidationError("signature", "image exceeds 2 MiB"))
		return
	}

	src, err := file.Open()
	if err != nil {
		h.renderError(c, err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, compose.MaxSignatureImageBytes+1))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if len(data) > compose.MaxSignatureImageBytes {
		h.renderError(c, models.NewValidationError("signature", "image exceeds 2 MiB"))
		return
	}

	resp, err := h.service.UploadSignature(c.Request.Context(), c.Param("loanId"), file.Header.Get("Content-Type"), data)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Sign composes the uploaded signature onto the agreement.
// POST /api/loans/:loanId/agreement/sign
func (h *AgreementHandler) Sign(c *gin.Context) {
	resp, err := h.service.SignAgreement(c.Request.Context(), c.Param("loanId"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Status reports the agreement's signing state.
// GET /api/loans/:loanId/agreement/status
func (h *AgreementHandler) Status(c *gin.Context) {
	resp, err := h.service.GetStatus(c.Request.Context(), c.Param("loanId"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Unsigned serves the current unsigned agreement PDF.
// GET /api/loans/:loanId/agreement/unsigned
func (h *AgreementHandler) Unsigned(c *gin.Context) {
	h.serveArtifact(c, services.ArtifactUnsigned)
}

// Signed serves the signed agreement PDF.
// GET /api/loans/:loanId/agreement/signed
func (h *AgreementHandler) Signed(c *gin.Context) {
	h.serveArtifact(c, services.ArtifactSigned)
}

// Document serves the signed agreement when available, the unsigned one
// otherwise. Kept for clients predating the split endpoints.
// GET /api/loans/:loanId/agreement/document
func (h *AgreementHandler) Document(c *gin.Context) {
	h.serveArtifact(c, services.ArtifactCurrent)
}

// Delete removes the tracking record and all stored artifacts.
// DELETE /api/loans/:loanId/agreement
func (h *AgreementHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteAgreement(c.Request.Context(), c.Param("loanId")); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AgreementHandler) serveArtifact(c *gin.Context, kind services.ArtifactKind) {
	data, artifactPath, err := h.service.GetArtifact(c.Request.Context(), c.Param("loanId"), kind)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+path.Base(artifactPath)+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *AgreementHandler) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case models.IsValidation(err),
		errors.Is(err, models.ErrMissingSignature),
		errors.Is(err, models.ErrUnsupportedImageFormat):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrAlreadySigned):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "Request failed.", err, "path", c.FullPath())
	} else {
		logger.CtxWarn(c.Request.Context(), "Request rejected.", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, models.ErrorResponse{Success: false, Message: err.Error()})
}
