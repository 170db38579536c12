package types

import (
	"time"

	"github.com/google/uuid"
)

// PhoneNumber is a provisioned telephony resource. project_id is null while
// the number sits in the unassigned pool.
type PhoneNumber struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User              *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ProjectID         *uuid.UUID `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Project           *Project   `gorm:"constraint:OnDelete:SET NULL;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	Number            string     `gorm:"column:number;uniqueIndex;not null" json:"number"`
	ProviderSID       string     `gorm:"column:provider_sid" json:"provider_sid"`
	VoiceAgentEnabled bool       `gorm:"column:voice_agent_enabled;not null;default:false" json:"voice_agent_enabled"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`
}

func (PhoneNumber) TableName() string { return "phone_number" }
