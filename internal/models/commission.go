package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Commission types
const (
	CommissionFlat       = "FLAT"
	CommissionPercentage = "PERCENTAGE"
)

// Earning statuses
const (
	EarningPending   = "PENDING"
	EarningProcessed = "PROCESSED"
	EarningFailed    = "FAILED"
	EarningCancelled = "CANCELLED"
)

// CommissionEarning is the beneficiary side of a commission split. The
// platform's mirrored cut lives in RootCommissionEarning.
type CommissionEarning struct {
	ID                   uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID        uint            `gorm:"column:transaction_id;not null;index" json:"transaction_id"`
	UserId               int             `gorm:"column:user_id;not null;index" json:"user_id"`
	FromUserId           int             `gorm:"column:from_user_id;not null" json:"from_user_id"`
	Amount               decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	CommissionAmount     decimal.Decimal `gorm:"column:commission_amount;type:decimal(20,2);not null" json:"commission_amount"`
	RootCommissionAmount decimal.Decimal `gorm:"column:root_commission_amount;type:decimal(20,2);default:0.00" json:"root_commission_amount"`
	CommissionType       string          `gorm:"column:commission_type;size:20;not null" json:"commission_type"`
	TdsAmount            decimal.Decimal `gorm:"column:tds_amount;type:decimal(20,2);default:0.00" json:"tds_amount"`
	GstAmount            decimal.Decimal `gorm:"column:gst_amount;type:decimal(20,2);default:0.00" json:"gst_amount"`
	NetAmount            decimal.Decimal `gorm:"column:net_amount;type:decimal(20,2);not null" json:"net_amount"`
	Status               string          `gorm:"column:status;size:20;not null;default:PENDING" json:"status"`
	FailureReason        string          `gorm:"column:failure_reason;size:500" json:"failure_reason,omitempty"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CommissionEarning) TableName() string {
	return "commission_earnings"
}

// RootCommissionEarning mirrors a CommissionEarning for the platform root.
type RootCommissionEarning struct {
	ID                   uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID        uint            `gorm:"column:transaction_id;not null;index" json:"transaction_id"`
	RootId               int             `gorm:"column:root_id;not null;index" json:"root_id"`
	FromUserId           int             `gorm:"column:from_user_id;not null" json:"from_user_id"`
	Amount               decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	CommissionAmount     decimal.Decimal `gorm:"column:commission_amount;type:decimal(20,2);not null" json:"commission_amount"`
	RootCommissionAmount decimal.Decimal `gorm:"column:root_commission_amount;type:decimal(20,2);default:0.00" json:"root_commission_amount"`
	CommissionType       string          `gorm:"column:commission_type;size:20;not null" json:"commission_type"`
	TdsAmount            decimal.Decimal `gorm:"column:tds_amount;type:decimal(20,2);default:0.00" json:"tds_amount"`
	GstAmount            decimal.Decimal `gorm:"column:gst_amount;type:decimal(20,2);default:0.00" json:"gst_amount"`
	NetAmount            decimal.Decimal `gorm:"column:net_amount;type:decimal(20,2);not null" json:"net_amount"`
	Status               string          `gorm:"column:status;size:20;not null;default:PENDING" json:"status"`
	FailureReason        string          `gorm:"column:failure_reason;size:500" json:"failure_reason,omitempty"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (RootCommissionEarning) TableName() string {
	return "root_commission_earnings"
}

// Validate checks the earning invariants: the commission never exceeds the
// transaction amount and the net payout never goes negative.
func (c *CommissionEarning) Validate() error {
	if c.CommissionAmount.GreaterThan(c.Amount) {
		return NewValidationError("commission amount exceeds transaction amount")
	}
	if c.NetAmount.IsNegative() {
		return NewValidationError("earning net amount is negative")
	}
	expected := decimal.Max(decimal.Zero,
		c.CommissionAmount.Add(c.RootCommissionAmount).Sub(c.TdsAmount.Add(c.GstAmount)))
	if !c.NetAmount.Equal(expected) {
		return NewValidationError("earning net amount does not reconcile")
	}
	return nil
}

func earningTransition(entity, from, to string) error {
	allowed := map[string][]string{
		EarningPending: {EarningProcessed, EarningFailed, EarningCancelled},
		EarningFailed:  {EarningProcessed, EarningCancelled},
	}
	for _, s := range allowed[from] {
		if s == to {
			return nil
		}
	}
	return &StateTransitionError{Entity: entity, From: from, To: to}
}

func (c *CommissionEarning) MarkProcessed() error {
	if err := earningTransition("commission earning", c.Status, EarningProcessed); err != nil {
		return err
	}
	c.Status = EarningProcessed
	c.FailureReason = ""
	return nil
}

func (c *CommissionEarning) MarkFailed(reason string) error {
	if err := earningTransition("commission earning", c.Status, EarningFailed); err != nil {
		return err
	}
	c.Status = EarningFailed
	c.FailureReason = reason
	return nil
}

func (r *RootCommissionEarning) MarkProcessed() error {
	if err := earningTransition("root commission earning", r.Status, EarningProcessed); err != nil {
		return err
	}
	r.Status = EarningProcessed
	r.FailureReason = ""
	return nil
}

func (r *RootCommissionEarning) MarkFailed(reason string) error {
	if err := earningTransition("root commission earning", r.Status, EarningFailed); err != nil {
		return err
	}
	r.Status = EarningFailed
	r.FailureReason = reason
	return nil
}

// CommissionConfig is the rate card resolved for a settled transaction.
// A row with UserId set is a user-specific override and wins over a row
// carrying only Role. Service scopes the config to one provider/service.
type CommissionConfig struct {
	ID                    uint             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId                *int             `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Role                  *string          `gorm:"column:role;size:50;index" json:"role,omitempty"`
	Service               *string          `gorm:"column:service;size:50" json:"service,omitempty"`
	CommissionType        string           `gorm:"column:commission_type;size:20;not null" json:"commission_type"`
	Value                 decimal.Decimal  `gorm:"column:value;type:decimal(20,4);not null" json:"value"`
	MinAmount             *decimal.Decimal `gorm:"column:min_amount;type:decimal(20,2)" json:"min_amount,omitempty"`
	MaxAmount             *decimal.Decimal `gorm:"column:max_amount;type:decimal(20,2)" json:"max_amount,omitempty"`
	ApplyTds              bool             `gorm:"column:apply_tds;default:false" json:"apply_tds"`
	TdsPercent            decimal.Decimal  `gorm:"column:tds_percent;type:decimal(10,4);default:0" json:"tds_percent"`
	ApplyGst              bool             `gorm:"column:apply_gst;default:false" json:"apply_gst"`
	GstPercent            decimal.Decimal  `gorm:"column:gst_percent;type:decimal(10,4);default:0" json:"gst_percent"`
	RootCommissionPercent decimal.Decimal  `gorm:"column:root_commission_percent;type:decimal(10,4);default:0" json:"root_commission_percent"`
	IsActive              bool             `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt             time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CommissionConfig) TableName() string {
	return "commission_configs"
}

// AppliesTo reports whether amount falls inside the config's slab.
func (c *CommissionConfig) AppliesTo(amount decimal.Decimal) bool {
	if c.MinAmount != nil && amount.LessThan(*c.MinAmount) {
		return false
	}
	if c.MaxAmount != nil && amount.GreaterThan(*c.MaxAmount) {
		return false
	}
	return true
}
