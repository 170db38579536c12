package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProjectData is one immutable configuration version of an agent. Rows are
// only ever inserted; an update deactivates the current row and inserts the
// successor with version = max(version)+1. Exactly one row per project has
// is_active = true.
type ProjectData struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index:idx_project_data_project;index:idx_project_data_active" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	Version   int       `gorm:"column:version;not null;index:idx_project_data_project" json:"version"`
	IsActive  bool      `gorm:"column:is_active;not null;default:false;index:idx_project_data_active" json:"is_active"`

	Prompt         string  `gorm:"column:prompt;type:text" json:"prompt"`
	LLMProvider    string  `gorm:"column:llm_provider" json:"llm_provider"`
	LLMModel       string  `gorm:"column:llm_model" json:"llm_model"`
	Temperature    float64 `gorm:"column:temperature" json:"temperature"`
	ResponseLength string  `gorm:"column:response_length" json:"response_length"`

	STTProvider string `gorm:"column:stt_provider" json:"stt_provider"`
	STTLanguage string `gorm:"column:stt_language" json:"stt_language"`
	STTQuality  string `gorm:"column:stt_quality" json:"stt_quality"`

	TTSProvider string `gorm:"column:tts_provider" json:"tts_provider"`
	TTSVoice    string `gorm:"column:tts_voice" json:"tts_voice"`

	VoiceEnabled bool `gorm:"column:voice_enabled;not null;default:false" json:"voice_enabled"`
	RecordCalls  bool `gorm:"column:record_calls;not null;default:false" json:"record_calls"`

	KnowledgeFiles datatypes.JSON `gorm:"column:knowledge_files;type:jsonb" json:"knowledge_files"`
	Functions      datatypes.JSON `gorm:"column:functions;type:jsonb" json:"functions"`
	Webhook        datatypes.JSON `gorm:"column:webhook;type:jsonb" json:"webhook"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ProjectData) TableName() string { return "project_data" }
