package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxAssessment is the answer of the external tax-rate service.
type TaxAssessment struct {
	Amount   decimal.Decimal `json:"amount"`
	IsExempt bool            `json:"is_exempt"`
	Currency string          `json:"currency"`
}

// GatewayConfirmationRequest is posted by the MVola/Stripe callback adapters
// once the gateway reports a settled payment.
type GatewayConfirmationRequest struct {
	VehicleID string          `json:"vehicle_id" validate:"required,uuid"`
	TaxYear   int             `json:"tax_year"   validate:"required,min=1990,max=2100"`
	Amount    decimal.Decimal `json:"amount"     validate:"gt=0"`
	Method    string          `json:"method"     validate:"required,oneof=mvola stripe"`
	Reference string          `json:"reference"  validate:"required,max=120"`
}

type ArtifactResponse struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	VehicleID string    `json:"vehicle_id"`
	TaxYear   int       `json:"tax_year"`
	Code      string    `json:"code"`
	VerifyURL string    `json:"verify_url"`
	IssuedAt  time.Time `json:"issued_at"`
}
