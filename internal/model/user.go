package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User roles.
const (
	RoleCollector  = "collector"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// User stores field agents and back-office staff.
// Role: "collector" | "supervisor" | "admin"
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	FullName     string    `gorm:"not null"`
	Email        *string
	Phone        *string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:varchar(20);not null"`
	// CommissionRate overrides the system default for this collector; nil = use default.
	CommissionRate *decimal.Decimal `gorm:"type:decimal(5,2)"`
	Active         bool             `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
