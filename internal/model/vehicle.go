package model

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle is the taxable asset. Registration and rate data are owned by the
// administrative side of the platform; this service only reads it.
type Vehicle struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Plate        string     `gorm:"uniqueIndex;not null"`
	Category     string     `gorm:"type:varchar(40);not null"`
	EngineCC     int        `gorm:"not null;default:0"`
	FirstUseYear int        `gorm:"not null"`
	OwnerName    string     `gorm:"not null"`
	OwnerID      *uuid.UUID `gorm:"type:uuid"`
	TaxExempt    bool       `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
