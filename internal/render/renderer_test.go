package render

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pockett/agreementflow/internal/contentstore"
	"github.com/pockett/agreementflow/internal/models"
)

func testLoan() *models.Loan {
	return &models.Loan{
		ID:           "loan-1",
		UserID:       "user-1",
		ProductType:  "personal",
		Amount:       1000,
		InterestRate: 12,
		TermMonths:   12,
		Status:       "approved",
	}
}

func testUser() *models.User {
	return &models.User{
		ID:        "user-1",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Phone:     "555-0100",
		Address:   "1 Main St",
	}
}

func TestMonthlyPayment(t *testing.T) {
	t.Run("Amortizing", func(t *testing.T) {
		// 1000 at 12% p.a. over 12 months.
		assert.InDelta(t, 88.85, MonthlyPayment(1000, 12, 12), 0.01)
	})

	t.Run("Zero rate is straight line", func(t *testing.T) {
		assert.InDelta(t, 100, MonthlyPayment(1200, 0, 12), 0.001)
	})

	t.Run("Zero term", func(t *testing.T) {
		assert.Zero(t, MonthlyPayment(1000, 12, 0))
	})
}

func TestBuildContentValidation(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(loan *models.Loan, user *models.User)
	}{
		{"Zero amount", func(l *models.Loan, u *models.User) { l.Amount = 0 }},
		{"Negative amount", func(l *models.Loan, u *models.User) { l.Amount = -50 }},
		{"Zero term", func(l *models.Loan, u *models.User) { l.TermMonths = 0 }},
		{"Negative rate", func(l *models.Loan, u *models.User) { l.InterestRate = -1 }},
		{"Empty borrower name", func(l *models.Loan, u *models.User) { u.FirstName, u.LastName = "", "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan, user := testLoan(), testUser()
			tt.mutate(loan, user)
			_, err := BuildContent(loan, user, "Pockett Loan", now)
			require.Error(t, err)
			assert.True(t, models.IsValidation(err))
		})
	}

	t.Run("Nil loan", func(t *testing.T) {
		_, err := BuildContent(nil, testUser(), "Pockett Loan", now)
		assert.True(t, models.IsValidation(err))
	})
}

func TestBuildContent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Complete inputs", func(t *testing.T) {
		content, err := BuildContent(testLoan(), testUser(), "Pockett Loan", now)
		require.NoError(t, err)

		assert.Equal(t, "LOAN AGREEMENT", content.Title)
		assert.Equal(t, "March 1, 2026", content.GeneratedDate)
		assert.Equal(t, "Jane Doe", content.BorrowerName)
		assert.Len(t, content.Clauses, 3)

		var labels []string
		for _, row := range content.Terms {
			labels = append(labels, row.Label+"="+row.Value)
		}
		joined := strings.Join(labels, ";")
		assert.Contains(t, joined, "Principal Amount=$1000.00")
		assert.Contains(t, joined, "Term=12 months")
		assert.Contains(t, joined, "Interest Rate=12.00% per annum")
		assert.Contains(t, joined, "Monthly Payment=$88.85")
		assert.Contains(t, joined, "Total Repayment=$1066.19")
	})

	t.Run("Missing contact fields render as placeholder", func(t *testing.T) {
		user := testUser()
		user.Email, user.Phone, user.Address = "", "", ""
		content, err := BuildContent(testLoan(), user, "Pockett Loan", now)
		require.NoError(t, err)

		assert.Contains(t, content.BorrowerLines, "Email: Not provided")
		assert.Contains(t, content.BorrowerLines, "Phone: Not provided")
		assert.Contains(t, content.BorrowerLines, "Address: Not provided")
	})

	t.Run("Deterministic for fixed date", func(t *testing.T) {
		a, err := BuildContent(testLoan(), testUser(), "Pockett Loan", now)
		require.NoError(t, err)
		b, err := BuildContent(testLoan(), testUser(), "Pockett Loan", now)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestRenderWritesValidPDF(t *testing.T) {
	root := t.TempDir()
	store, err := contentstore.NewFilesystemStore(root)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewRenderer(store, Config{Now: func() time.Time { return now }})

	path, err := r.Render(context.Background(), testLoan(), testUser())
	require.NoError(t, err)
	assert.Equal(t, contentstore.UnsignedPath("loan-1", now), path)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	onDisk := filepath.Join(root, filepath.FromSlash(path))
	require.NoError(t, api.ValidateFile(onDisk, conf))

	pages, err := api.PageCountFile(onDisk)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pages, 1)
}

func TestRenderRejectsInvalidLoan(t *testing.T) {
	store, err := contentstore.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	loan := testLoan()
	loan.Amount = -1
	_, err = NewRenderer(store, Config{}).Render(context.Background(), loan, testUser())
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	// Nothing may be written for rejected input.
	objects, listErr := store.List(context.Background(), contentstore.UnsignedRoot)
	require.NoError(t, listErr)
	assert.Empty(t, objects)
}
