package infra

// receipt_pdf.go - PDF payment receipt for a verification artifact, rendered
// with go-pdf/fpdf on a receipt-printer sized page:
//   - Issuer header
//   - Vehicle plate and tax year
//   - Amount and payment channel
//   - Verification code and URL

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// ReceiptData is everything printed on a receipt.
type ReceiptData struct {
	ArtifactID   string
	ArtifactCode string
	Plate        string
	OwnerName    string
	TaxYear      int
	Amount       decimal.Decimal
	Method       string
	Reference    string
	PaidAt       time.Time
	VerifyURL    string
}

// GenerateReceiptPDF writes receipt_{code}.pdf under storagePath (created if
// needed) and returns the file path.
func GenerateReceiptPDF(r ReceiptData, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("receipt_%s.pdf", r.ArtifactCode))

	// 80mm × 120mm - close to receipt printer paper
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: 120},
	})
	pdf.SetMargins(5, 5, 5)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 10
	labelW := contentW * 0.42
	valueW := contentW - labelW

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, "Vehicle Tax Receipt", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Annual vehicle tax - proof of payment", "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.Line(5, pdf.GetY(), pageW-5, pdf.GetY())
	pdf.Ln(2)

	// ── Details ──────────────────────────────────────────────────────────────
	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(labelW, 5, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(valueW, 5, value, "", 1, "R", false, 0, "")
	}
	row("Plate", r.Plate)
	if r.OwnerName != "" {
		row("Owner", r.OwnerName)
	}
	row("Tax year", fmt.Sprintf("%d", r.TaxYear))
	row("Channel", r.Method)
	if r.Reference != "" {
		row("Reference", r.Reference)
	}
	row("Paid at", r.PaidAt.UTC().Format("02/01/2006 15:04 UTC"))

	pdf.Ln(2)
	pdf.Line(5, pdf.GetY(), pageW-5, pdf.GetY())
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(labelW, 7, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(valueW, 7, r.Amount.StringFixed(2)+" MGA", "", 1, "R", false, 0, "")

	// ── Verification ─────────────────────────────────────────────────────────
	pdf.Ln(3)
	pdf.SetFont("Courier", "B", 10)
	pdf.CellFormat(contentW, 6, r.ArtifactCode, "1", 1, "C", false, 0, "")
	if r.VerifyURL != "" {
		pdf.SetFont("Helvetica", "I", 6)
		pdf.MultiCell(contentW, 3, "Verify at "+r.VerifyURL, "", "C", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
