package dto

import "github.com/shopspring/decimal"

type UpdateSystemConfigRequest struct {
	DefaultCommissionRate     *decimal.Decimal `json:"default_commission_rate"     validate:"omitempty,min=0,max=100"`
	DualVerificationThreshold *decimal.Decimal `json:"dual_verification_threshold" validate:"omitempty,gt=0"`
	ReconciliationTolerance   *decimal.Decimal `json:"reconciliation_tolerance"    validate:"omitempty,min=0"`
	SessionTimeoutHours       *int             `json:"session_timeout_hours"       validate:"omitempty,min=1,max=72"`
	VoidTimeLimitMinutes      *int             `json:"void_time_limit_minutes"     validate:"omitempty,min=1,max=1440"`
}

type SystemConfigResponse struct {
	DefaultCommissionRate     decimal.Decimal `json:"default_commission_rate"`
	DualVerificationThreshold decimal.Decimal `json:"dual_verification_threshold"`
	ReconciliationTolerance   decimal.Decimal `json:"reconciliation_tolerance"`
	SessionTimeoutHours       int             `json:"session_timeout_hours"`
	VoidTimeLimitMinutes      int             `json:"void_time_limit_minutes"`
}
