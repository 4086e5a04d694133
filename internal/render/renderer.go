package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/pockett/agreementflow/internal/contentstore"
	"github.com/pockett/agreementflow/internal/models"
)

const notProvided = "Not provided"

// Config carries the static inputs of the renderer. Asset locations are
// explicit configuration, never probed from candidate directories.
type Config struct {
	LenderName        string
	BrandingAssetPath string
	// Now is the clock used for the generation date and artifact naming.
	// Defaults to time.Now.
	Now func() time.Time
}

// Renderer turns a (Loan, User) pair into the unsigned agreement PDF and
// persists it to the content store.
type Renderer struct {
	store  contentstore.Store
	config Config
}

// NewRenderer wires the renderer against a content store.
func NewRenderer(store contentstore.Store, config Config) *Renderer {
	if config.LenderName == "" {
		config.LenderName = "Pockett Loan"
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Renderer{store: store, config: config}
}

// Clause is a headed block of agreement text.
type Clause struct {
	Heading string
	Body    string
}

// TermRow is one label/value row of the loan-terms table.
type TermRow struct {
	Label string
	Value string
}

// Content is the full textual content of an agreement, built before any PDF
// drawing happens. For a fixed date it is a pure function of its inputs.
type Content struct {
	Title         string
	GeneratedDate string
	LenderName    string
	BorrowerName  string
	BorrowerLines []string
	Terms         []TermRow
	Clauses       []Clause
}

// MonthlyPayment computes the amortizing monthly installment for principal p,
// annual interest rate (percent) and term in months. A zero rate degrades to
// straight-line repayment.
func MonthlyPayment(p, annualRatePct float64, months int) float64 {
	if months <= 0 {
		return 0
	}
	r := annualRatePct / 100 / 12
	if r == 0 {
		return p / float64(months)
	}
	return p * r / (1 - math.Pow(1+r, -float64(months)))
}

// BuildContent validates the inputs and assembles the agreement text.
// Missing optional borrower fields render as an explicit placeholder;
// missing required loan fields fail with a ValidationError.
func BuildContent(loan *models.Loan, user *models.User, lenderName string, now time.Time) (*Content, error) {
	if loan == nil {
		return nil, models.NewValidationError("loan", "must be provided")
	}
	if user == nil {
		return nil, models.NewValidationError("user", "must be provided")
	}
	if loan.Amount <= 0 {
		return nil, models.NewValidationError("loan.amount", "must be a positive amount")
	}
	if loan.TermMonths <= 0 {
		return nil, models.NewValidationError("loan.term", "must be a positive number of months")
	}
	if loan.InterestRate < 0 {
		return nil, models.NewValidationError("loan.interestRate", "must not be negative")
	}
	borrower := user.FullName()
	if borrower == "" {
		return nil, models.NewValidationError("user.name", "borrower name must be provided")
	}

	monthly := MonthlyPayment(loan.Amount, loan.InterestRate, loan.TermMonths)
	total := monthly * float64(loan.TermMonths)

	orPlaceholder := func(v string) string {
		if v == "" {
			return notProvided
		}
		return v
	}

	return &Content{
		Title:         "LOAN AGREEMENT",
		GeneratedDate: now.Format("January 2, 2006"),
		LenderName:    lenderName,
		BorrowerName:  borrower,
		BorrowerLines: []string{
			borrower,
			"Email: " + orPlaceholder(user.Email),
			"Phone: " + orPlaceholder(user.Phone),
			"Address: " + orPlaceholder(user.Address),
		},
		Terms: []TermRow{
			{Label: "Principal Amount", Value: fmt.Sprintf("$%.2f", loan.Amount)},
			{Label: "Term", Value: fmt.Sprintf("%d months", loan.TermMonths)},
			{Label: "Interest Rate", Value: fmt.Sprintf("%.2f%% per annum", loan.InterestRate)},
			{Label: "Monthly Payment", Value: fmt.Sprintf("$%.2f", monthly)},
			{Label: "Total Repayment", Value: fmt.Sprintf("$%.2f", total)},
			{Label: "Repayment Schedule", Value: "Monthly installments"},
		},
		Clauses: []Clause{
			{
				Heading: "BORROWER OBLIGATIONS",
				Body: "The Borrower agrees to repay the Loan in full according to the repayment schedule. " +
					"Late or missed payments may result in penalties as provided by law.",
			},
			{
				Heading: "DEFAULT",
				Body: "In the event of default, the Lender may demand immediate repayment of the outstanding " +
					"balance, and take necessary legal action.",
			},
			{
				Heading: "GOVERNING LAW",
				Body: "This Agreement shall be governed by and construed in accordance with the laws of the " +
					"jurisdiction in which the Lender operates.",
			},
		},
	}, nil
}

// Render builds the unsigned agreement and writes it to the content store.
// Returns the store path of the artifact. No tracking state is touched here.
func (r *Renderer) Render(ctx context.Context, loan *models.Loan, user *models.User) (string, error) {
	now := r.config.Now()

	content, err := BuildContent(loan, user, r.config.LenderName, now)
	if err != nil {
		return "", err
	}

	pdfBytes, err := r.compose(content)
	if err != nil {
		return "", fmt.Errorf("failed to compose agreement PDF: %w", err)
	}

	path := contentstore.UnsignedPath(loan.ID, now)
	if err := r.store.Write(ctx, path, pdfBytes); err != nil {
		return "", err
	}
	slog.Info("Rendered unsigned agreement.", "loanId", loan.ID, "path", path, "bytes", len(pdfBytes))
	return path, nil
}

func (r *Renderer) compose(content *Content) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 15, 20)
	pdf.AddPage()

	if r.config.BrandingAssetPath != "" {
		if _, err := os.Stat(r.config.BrandingAssetPath); err == nil {
			pageW, _ := pdf.GetPageSize()
			pdf.ImageOptions(r.config.BrandingAssetPath, (pageW-40)/2, 15, 40, 0, false,
				fpdf.ImageOptions{ReadDpi: true}, 0, "")
			pdf.SetY(40)
		}
	}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, content.Title, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, "Date: "+content.GeneratedDate, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	sectionHeader := func(text string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, text, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}

	sectionHeader("LENDER")
	pdf.CellFormat(0, 6, content.LenderName, "", 1, "L", false, 0, "")
	pdf.Ln(3)

	sectionHeader("BORROWER")
	for _, line := range content.BorrowerLines {
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	sectionHeader("LOAN DETAILS")
	for _, row := range content.Terms {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(60, 7, row.Label, "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, row.Value, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	for _, clause := range content.Clauses {
		sectionHeader(clause.Heading)
		pdf.MultiCell(0, 5, clause.Body, "", "L", false)
		pdf.Ln(3)
	}

	// Two-column signature block on the last page: lender left, borrower
	// right. The compositor later stamps images over these regions.
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	colW := 85.0
	pdf.CellFormat(colW, 6, "__________________________", "", 0, "C", false, 0, "")
	pdf.CellFormat(colW, 6, "__________________________", "", 1, "C", false, 0, "")
	pdf.CellFormat(colW, 6, "Lender Representative", "", 0, "C", false, 0, "")
	pdf.CellFormat(colW, 6, "Borrower: "+content.BorrowerName, "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.CellFormat(0, 6, "Date: ________________________", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
