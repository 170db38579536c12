package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/catalog"
	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/httpx"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/repos"
	"github.com/voxlane/voxlane-backend/internal/types"
)

// ConfigInput is a partial configuration. Nil fields mean "keep the previous
// value"; for a first version they fall back to the catalog defaults. The
// same resolution order applies to every field: supplied value, then previous
// active value, then catalog default.
type ConfigInput struct {
	Prompt         *string  `json:"prompt,omitempty"`
	LLMProvider    *string  `json:"llm_provider,omitempty"`
	LLMModel       *string  `json:"llm_model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ResponseLength *string  `json:"response_length,omitempty"`

	STTProvider *string `json:"stt_provider,omitempty"`
	STTLanguage *string `json:"stt_language,omitempty"`
	STTQuality  *string `json:"stt_quality,omitempty"`

	TTSProvider *string `json:"tts_provider,omitempty"`
	TTSVoice    *string `json:"tts_voice,omitempty"`

	VoiceEnabled *bool `json:"voice_enabled,omitempty"`
	RecordCalls  *bool `json:"record_calls,omitempty"`

	KnowledgeFiles *[]types.KnowledgeFile `json:"knowledge_files,omitempty"`
	Functions      *[]types.FunctionSpec  `json:"functions,omitempty"`
	Webhook        *types.WebhookSettings `json:"webhook,omitempty"`
}

// ProjectConfigService owns the versioned configuration rows. Versions are
// immutable; an update deactivates the current row and inserts version
// max+1 inside one transaction, so readers never observe a project without
// exactly one active version (and GetActive repairs the two crash states
// where they could).
type ProjectConfigService interface {
	Create(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, in ConfigInput) (*types.ProjectData, error)
	GetActive(ctx context.Context, projectID uuid.UUID) (*types.ProjectData, error)
	Update(ctx context.Context, projectID uuid.UUID, in ConfigInput) (*types.ProjectData, error)
	History(ctx context.Context, projectID uuid.UUID) ([]*types.ProjectData, error)
	Revert(ctx context.Context, projectID uuid.UUID, version int) (*types.ProjectData, error)
}

const maxStoreRetries = 3

type projectConfigService struct {
	db              *gorm.DB
	log             *logger.Logger
	projectRepo     repos.ProjectRepo
	projectDataRepo repos.ProjectDataRepo
	cat             *catalog.Catalog
	notifier        Notifier
}

func NewProjectConfigService(
	db *gorm.DB,
	log *logger.Logger,
	projectRepo repos.ProjectRepo,
	projectDataRepo repos.ProjectDataRepo,
	cat *catalog.Catalog,
	notifier Notifier,
) ProjectConfigService {
	serviceLog := log.With("service", "ProjectConfigService")
	return &projectConfigService{
		db:              db,
		log:             serviceLog,
		projectRepo:     projectRepo,
		projectDataRepo: projectDataRepo,
		cat:             cat,
		notifier:        notifier,
	}
}

// withRetry retries fn on transient storage failures with exponential backoff
// and jitter. Constraint violations and not-found are returned immediately.
func (s *projectConfigService) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := 100 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !apperr.IsRetryableStore(err) || attempt >= maxStoreRetries {
			return err
		}
		sleepFor := httpx.JitterSleep(backoff)
		s.log.Warn("Transient storage error, retrying",
			"op", op,
			"attempt", attempt+1,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return err
		}
		backoff *= 2
	}
}

func (s *projectConfigService) Create(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, in ConfigInput) (*types.ProjectData, error) {
	row, err := s.merge(projectID, nil, in)
	if err != nil {
		return nil, err
	}
	row.Version = 1
	row.IsActive = true

	if err := s.validate(row); err != nil {
		return nil, err
	}

	var created []*types.ProjectData
	err = s.withRetry(ctx, "config.create", func() error {
		var cErr error
		created, cErr = s.projectDataRepo.Create(ctx, tx, []*types.ProjectData{row})
		return cErr
	})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *projectConfigService) GetActive(ctx context.Context, projectID uuid.UUID) (*types.ProjectData, error) {
	var out *types.ProjectData
	err := s.withRetry(ctx, "config.get_active", func() error {
		rows, rErr := s.projectDataRepo.GetActive(ctx, nil, projectID)
		if rErr != nil {
			return rErr
		}
		switch len(rows) {
		case 1:
			out = rows[0]
			return nil
		case 0:
			return s.repairZeroActive(ctx, projectID, &out)
		default:
			out = rows[0]
			s.repairMultiActive(ctx, projectID, rows)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// repairZeroActive reactivates the highest version after a crash left no row
// flagged active. A project with no versions at all is simply not found.
func (s *projectConfigService) repairZeroActive(ctx context.Context, projectID uuid.UUID, out **types.ProjectData) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		maxV, mErr := s.projectDataRepo.MaxVersion(ctx, tx, projectID)
		if mErr != nil {
			return mErr
		}
		if maxV == 0 {
			return apperr.ClassifyStore("config.get_active", gorm.ErrRecordNotFound)
		}
		s.log.Warn("No active config row found, reactivating highest version",
			"project_id", projectID, "version", maxV)
		if aErr := s.projectDataRepo.ActivateVersion(ctx, tx, projectID, maxV); aErr != nil {
			return aErr
		}
		row, gErr := s.projectDataRepo.GetByVersion(ctx, tx, projectID, maxV)
		if gErr != nil {
			return gErr
		}
		*out = row
		return nil
	})
}

// repairMultiActive demotes all but the highest version. The read already
// succeeded, so a repair failure is logged rather than surfaced.
func (s *projectConfigService) repairMultiActive(ctx context.Context, projectID uuid.UUID, rows []*types.ProjectData) {
	top := rows[0]
	s.log.Warn("Multiple active config rows found, repairing",
		"project_id", projectID, "count", len(rows), "keeping_version", top.Version)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := s.projectDataRepo.DeactivateAll(ctx, tx, projectID); dErr != nil {
			return dErr
		}
		return s.projectDataRepo.ActivateVersion(ctx, tx, projectID, top.Version)
	})
	if err != nil {
		s.log.Error("Failed to repair multi-active config state", "project_id", projectID, "error", err)
	}
}

func (s *projectConfigService) Update(ctx context.Context, projectID uuid.UUID, in ConfigInput) (*types.ProjectData, error) {
	var out *types.ProjectData
	err := s.withRetry(ctx, "config.update", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			rows, rErr := s.projectDataRepo.GetActive(ctx, tx, projectID)
			if rErr != nil {
				return rErr
			}
			var base *types.ProjectData
			if len(rows) > 0 {
				base = rows[0]
			}
			maxV, mErr := s.projectDataRepo.MaxVersion(ctx, tx, projectID)
			if mErr != nil {
				return mErr
			}
			if maxV == 0 {
				return apperr.ClassifyStore("config.update", gorm.ErrRecordNotFound)
			}
			if base == nil {
				// Crash state: versions exist but none active. Merge against
				// the highest version instead.
				highest, gErr := s.projectDataRepo.GetByVersion(ctx, tx, projectID, maxV)
				if gErr != nil {
					return gErr
				}
				base = highest
			}

			row, bErr := s.merge(projectID, base, in)
			if bErr != nil {
				return bErr
			}
			row.Version = maxV + 1
			row.IsActive = true
			if vErr := s.validate(row); vErr != nil {
				return vErr
			}

			if dErr := s.projectDataRepo.DeactivateAll(ctx, tx, projectID); dErr != nil {
				return dErr
			}
			created, cErr := s.projectDataRepo.Create(ctx, tx, []*types.ProjectData{row})
			if cErr != nil {
				return cErr
			}
			out = created[0]
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if project, pErr := s.projectRepo.GetByID(ctx, nil, projectID); pErr == nil {
			s.notifier.ProjectConfigSaved(ctx, project.UserID, projectID, out.Version)
		}
	}
	return out, nil
}

func (s *projectConfigService) History(ctx context.Context, projectID uuid.UUID) ([]*types.ProjectData, error) {
	var out []*types.ProjectData
	err := s.withRetry(ctx, "config.history", func() error {
		rows, rErr := s.projectDataRepo.ListByProject(ctx, nil, projectID)
		if rErr != nil {
			return rErr
		}
		out = rows
		return nil
	})
	return out, err
}

// Revert records an old version's full config as a brand-new version. History
// stays append-only: reverting never flips old rows back to active directly.
func (s *projectConfigService) Revert(ctx context.Context, projectID uuid.UUID, version int) (*types.ProjectData, error) {
	old, err := s.projectDataRepo.GetByVersion(ctx, nil, projectID, version)
	if err != nil {
		return nil, err
	}
	in, err := inputFromRow(old)
	if err != nil {
		return nil, fmt.Errorf("failed to decode version %d: %w", version, err)
	}
	return s.Update(ctx, projectID, in)
}

// -------------------- merge + validation --------------------

func resolveStr(in *string, base string, def string) string {
	if in != nil && strings.TrimSpace(*in) != "" {
		return strings.TrimSpace(*in)
	}
	if base != "" {
		return base
	}
	return def
}

func (s *projectConfigService) merge(projectID uuid.UUID, base *types.ProjectData, in ConfigInput) (*types.ProjectData, error) {
	def := s.cat.Defaults
	if base == nil {
		base = &types.ProjectData{}
	}

	row := &types.ProjectData{
		ID:        uuid.New(),
		ProjectID: projectID,

		Prompt:         resolveStr(in.Prompt, base.Prompt, def.Prompt),
		LLMProvider:    resolveStr(in.LLMProvider, base.LLMProvider, def.LLMProvider),
		LLMModel:       resolveStr(in.LLMModel, base.LLMModel, def.LLMModel),
		ResponseLength: resolveStr(in.ResponseLength, base.ResponseLength, def.ResponseLength),

		STTProvider: resolveStr(in.STTProvider, base.STTProvider, def.STTProvider),
		STTLanguage: resolveStr(in.STTLanguage, base.STTLanguage, def.STTLanguage),
		STTQuality:  resolveStr(in.STTQuality, base.STTQuality, def.STTQuality),

		TTSProvider: resolveStr(in.TTSProvider, base.TTSProvider, def.TTSProvider),
		TTSVoice:    resolveStr(in.TTSVoice, base.TTSVoice, def.TTSVoice),
	}

	switch {
	case in.Temperature != nil:
		row.Temperature = *in.Temperature
	case base.Temperature != 0:
		row.Temperature = base.Temperature
	default:
		row.Temperature = def.Temperature
	}

	if in.VoiceEnabled != nil {
		row.VoiceEnabled = *in.VoiceEnabled
	} else {
		row.VoiceEnabled = base.VoiceEnabled
	}
	if in.RecordCalls != nil {
		row.RecordCalls = *in.RecordCalls
	} else {
		row.RecordCalls = base.RecordCalls
	}

	if in.KnowledgeFiles != nil {
		b, err := json.Marshal(*in.KnowledgeFiles)
		if err != nil {
			return nil, fmt.Errorf("%w: bad knowledge_files: %v", apperr.ErrInvalidArgument, err)
		}
		row.KnowledgeFiles = datatypes.JSON(b)
	} else {
		row.KnowledgeFiles = base.KnowledgeFiles
	}
	if in.Functions != nil {
		b, err := json.Marshal(*in.Functions)
		if err != nil {
			return nil, fmt.Errorf("%w: bad functions: %v", apperr.ErrInvalidArgument, err)
		}
		row.Functions = datatypes.JSON(b)
	} else {
		row.Functions = base.Functions
	}
	if in.Webhook != nil {
		b, err := json.Marshal(*in.Webhook)
		if err != nil {
			return nil, fmt.Errorf("%w: bad webhook: %v", apperr.ErrInvalidArgument, err)
		}
		row.Webhook = datatypes.JSON(b)
	} else {
		row.Webhook = base.Webhook
	}

	return row, nil
}

func (s *projectConfigService) validate(row *types.ProjectData) error {
	if !s.cat.HasLLM(row.LLMProvider, row.LLMModel) {
		return fmt.Errorf("%w: unknown llm provider/model %q/%q", apperr.ErrInvalidArgument, row.LLMProvider, row.LLMModel)
	}
	if !s.cat.HasSTT(row.STTProvider) {
		return fmt.Errorf("%w: unknown stt provider %q", apperr.ErrInvalidArgument, row.STTProvider)
	}
	if !s.cat.HasTTS(row.TTSProvider, row.TTSVoice) {
		return fmt.Errorf("%w: unknown tts provider/voice %q/%q", apperr.ErrInvalidArgument, row.TTSProvider, row.TTSVoice)
	}
	if row.Temperature < 0 || row.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v out of range [0, 2]", apperr.ErrInvalidArgument, row.Temperature)
	}
	return nil
}

func inputFromRow(row *types.ProjectData) (ConfigInput, error) {
	in := ConfigInput{
		Prompt:         &row.Prompt,
		LLMProvider:    &row.LLMProvider,
		LLMModel:       &row.LLMModel,
		Temperature:    &row.Temperature,
		ResponseLength: &row.ResponseLength,
		STTProvider:    &row.STTProvider,
		STTLanguage:    &row.STTLanguage,
		STTQuality:     &row.STTQuality,
		TTSProvider:    &row.TTSProvider,
		TTSVoice:       &row.TTSVoice,
		VoiceEnabled:   &row.VoiceEnabled,
		RecordCalls:    &row.RecordCalls,
	}
	// JSON fields are always set explicitly, including empty ones: a revert
	// must restore the old version exactly, not inherit the current one.
	files := []types.KnowledgeFile{}
	if len(row.KnowledgeFiles) > 0 {
		if err := json.Unmarshal(row.KnowledgeFiles, &files); err != nil {
			return in, err
		}
	}
	in.KnowledgeFiles = &files

	fns := []types.FunctionSpec{}
	if len(row.Functions) > 0 {
		if err := json.Unmarshal(row.Functions, &fns); err != nil {
			return in, err
		}
	}
	in.Functions = &fns

	var wh types.WebhookSettings
	if len(row.Webhook) > 0 {
		if err := json.Unmarshal(row.Webhook, &wh); err != nil {
			return in, err
		}
	}
	in.Webhook = &wh
	return in, nil
}
