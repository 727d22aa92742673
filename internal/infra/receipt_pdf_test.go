package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReceiptPDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "receipts")

	path, err := GenerateReceiptPDF(ReceiptData{
		ArtifactCode: "0123456789ABCDEF0123",
		Plate:        "1234TAA",
		OwnerName:    "Rakoto",
		TaxYear:      2026,
		Amount:       decimal.RequireFromString("100000"),
		Method:       "cash",
		Reference:    "CASH-1",
		PaidAt:       time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC),
		VerifyURL:    "https://verify.example.mg/v/0123456789ABCDEF0123",
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "receipt_0123456789ABCDEF0123.pdf"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(raw[:4]))
}
