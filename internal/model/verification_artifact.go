package model

import (
	"time"

	"github.com/google/uuid"
)

// VerificationArtifact is the proof-of-payment (QR code payload) shown at
// roadside checks. Exactly one active artifact per (vehicle_id, tax_year).
type VerificationArtifact struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PaymentID uuid.UUID `gorm:"type:uuid;not null;index"`
	VehicleID uuid.UUID `gorm:"type:uuid;not null"`
	TaxYear   int       `gorm:"not null"`
	Code      string    `gorm:"uniqueIndex;not null"`
	IssuedAt  time.Time `gorm:"not null"`
	RevokedAt *time.Time
	// ReceiptPath is filled by the receipt worker once the PDF is rendered.
	ReceiptPath *string
}
