package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	PlanTierFree = "free"
	PlanTierPro  = "pro"
	PlanTierTeam = "team"
)

// UserPlan tracks subscription tier and usage counters. Counters are
// reconciled against billing webhook events, not computed locally.
type UserPlan struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User                 *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Tier                 string    `gorm:"column:tier;not null;default:'free'" json:"tier"`
	StripeCustomerID     string    `gorm:"column:stripe_customer_id;index" json:"stripe_customer_id"`
	StripeSubscriptionID string    `gorm:"column:stripe_subscription_id" json:"stripe_subscription_id"`
	MinutesUsed          int       `gorm:"column:minutes_used;not null;default:0" json:"minutes_used"`
	MinutesLimit         int       `gorm:"column:minutes_limit;not null;default:30" json:"minutes_limit"`
	PhoneNumberCount     int       `gorm:"column:phone_number_count;not null;default:0" json:"phone_number_count"`
	PhoneNumberLimit     int       `gorm:"column:phone_number_limit;not null;default:1" json:"phone_number_limit"`
	CreatedAt            time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time `gorm:"not null" json:"updated_at"`
}

func (UserPlan) TableName() string { return "user_plan" }
