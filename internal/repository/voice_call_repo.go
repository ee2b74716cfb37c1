package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remodely/crm-voice-service/internal/domain"
	"gorm.io/gorm"
)

// HistoryFilter narrows a call-history query. Zero values mean "any".
type HistoryFilter struct {
	ClientID  string
	Status    domain.CallStatus
	Purpose   domain.CallPurpose
	StartDate *time.Time
	EndDate   *time.Time
}

// CallUpdates carries the optional fields written alongside a status change.
// Nil fields are left untouched.
type CallUpdates struct {
	Duration   *int
	Transcript *string
	Result     *domain.CallResult
	Notes      *string
	EndedAt    *time.Time
}

// VoiceCallRepository defines persistence for voice call records.
//
// UpdateStatusIf is the atomicity primitive the lifecycle manager relies on:
// it writes the new status (and any terminal fields) in a single statement
// conditional on the expected current status, and reports whether the row was
// actually updated. Concurrent or duplicate events for the same call resolve
// through this compare-and-set rather than a lock.
type VoiceCallRepository interface {
	Create(ctx context.Context, call *domain.VoiceCall) error
	GetByID(ctx context.Context, id string) (*domain.VoiceCall, error)
	UpdateStatusIf(ctx context.Context, id string, from, to domain.CallStatus, updates CallUpdates) (bool, error)
	SetProviderCallID(ctx context.Context, id, providerCallID string) error
	MarkSimulated(ctx context.Context, id string) error
	MarkPipelineDispatched(ctx context.Context, id string) (bool, error)
	AppendNotes(ctx context.Context, id, notes string) error
	FindByWorkspace(ctx context.Context, workspaceID string, filter HistoryFilter) ([]*domain.VoiceCall, error)
}

// GormVoiceCallRepository is the Postgres-backed implementation.
type GormVoiceCallRepository struct {
	db *gorm.DB
}

// NewGormVoiceCallRepository creates a new GORM voice call repository.
func NewGormVoiceCallRepository(db *gorm.DB) *GormVoiceCallRepository {
	return &GormVoiceCallRepository{db: db}
}

// Create creates a new voice call record.
func (r *GormVoiceCallRepository) Create(ctx context.Context, call *domain.VoiceCall) error {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	now := time.Now()
	if call.CreatedAt.IsZero() {
		call.CreatedAt = now
	}
	if call.StartedAt.IsZero() {
		call.StartedAt = now
	}
	call.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("failed to create voice call: %w", err)
	}
	return nil
}

// GetByID retrieves a voice call by ID.
func (r *GormVoiceCallRepository) GetByID(ctx context.Context, id string) (*domain.VoiceCall, error) {
	var call domain.VoiceCall
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&call).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrCallNotFound
		}
		return nil, fmt.Errorf("failed to get voice call: %w", err)
	}
	return &call, nil
}

// UpdateStatusIf conditionally moves a call from one status to another.
func (r *GormVoiceCallRepository) UpdateStatusIf(ctx context.Context, id string, from, to domain.CallStatus, updates CallUpdates) (bool, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if updates.Duration != nil {
		values["duration"] = *updates.Duration
	}
	if updates.Transcript != nil {
		values["transcript"] = *updates.Transcript
	}
	if updates.Result != nil {
		values["call_result"] = updates.Result
	}
	if updates.Notes != nil {
		values["notes"] = *updates.Notes
	}
	if updates.EndedAt != nil {
		values["ended_at"] = *updates.EndedAt
	}

	res := r.db.WithContext(ctx).Model(&domain.VoiceCall{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update voice call status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SetProviderCallID records the provider's call identifier once the telephony
// provider accepts the call.
func (r *GormVoiceCallRepository) SetProviderCallID(ctx context.Context, id, providerCallID string) error {
	res := r.db.WithContext(ctx).Model(&domain.VoiceCall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"provider_call_id": providerCallID,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to set provider call id: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCallNotFound
	}
	return nil
}

// MarkSimulated flags a call as handled by the simulation fallback.
func (r *GormVoiceCallRepository) MarkSimulated(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&domain.VoiceCall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"simulated":  true,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark call simulated: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCallNotFound
	}
	return nil
}

// MarkPipelineDispatched flips the dispatch guard. It returns true only for
// the first caller; later callers get false and must not run the pipeline.
func (r *GormVoiceCallRepository) MarkPipelineDispatched(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.VoiceCall{}).
		Where("id = ? AND pipeline_dispatched = ?", id, false).
		Updates(map[string]interface{}{
			"pipeline_dispatched": true,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark pipeline dispatched: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AppendNotes adds a line to the free-text notes on a call record, keeping
// whatever is already there.
func (r *GormVoiceCallRepository) AppendNotes(ctx context.Context, id, notes string) error {
	res := r.db.WithContext(ctx).Model(&domain.VoiceCall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"notes":      gorm.Expr("CASE WHEN notes = '' THEN ? ELSE notes || E'\\n' || ? END", notes, notes),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update voice call notes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrCallNotFound
	}
	return nil
}

// FindByWorkspace returns a workspace's calls newest-first with optional filters.
func (r *GormVoiceCallRepository) FindByWorkspace(ctx context.Context, workspaceID string, filter HistoryFilter) ([]*domain.VoiceCall, error) {
	query := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Purpose != "" {
		query = query.Where("call_purpose = ?", filter.Purpose)
	}
	if filter.StartDate != nil {
		query = query.Where("started_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("started_at <= ?", *filter.EndDate)
	}
	query = query.Order("started_at DESC")

	var calls []*domain.VoiceCall
	if err := query.Find(&calls).Error; err != nil {
		return nil, fmt.Errorf("failed to query call history: %w", err)
	}
	return calls, nil
}
