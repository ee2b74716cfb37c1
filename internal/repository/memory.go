package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/remodely/crm-voice-service/internal/domain"
)

// MemoryVoiceCallRepository is an in-memory VoiceCallRepository. It backs
// tests and demo environments where no database is configured, with the same
// compare-and-set semantics as the Postgres implementation.
type MemoryVoiceCallRepository struct {
	mu    sync.Mutex
	calls map[string]*domain.VoiceCall
}

// NewMemoryVoiceCallRepository creates an empty in-memory repository.
func NewMemoryVoiceCallRepository() *MemoryVoiceCallRepository {
	return &MemoryVoiceCallRepository{calls: make(map[string]*domain.VoiceCall)}
}

func (r *MemoryVoiceCallRepository) Create(ctx context.Context, call *domain.VoiceCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	stored := *call
	r.calls[call.ID] = &stored
	return nil
}

func (r *MemoryVoiceCallRepository) GetByID(ctx context.Context, id string) (*domain.VoiceCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[id]
	if !ok {
		return nil, domain.ErrCallNotFound
	}
	copied := *call
	return &copied, nil
}

func (r *MemoryVoiceCallRepository) UpdateStatusIf(ctx context.Context, id string, from, to domain.CallStatus, updates CallUpdates) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[id]
	if !ok || call.Status != from {
		return false, nil
	}

	call.Status = to
	call.UpdatedAt = time.Now()
	if updates.Duration != nil {
		call.Duration = *updates.Duration
	}
	if updates.Transcript != nil {
		call.Transcript = *updates.Transcript
	}
	if updates.Result != nil {
		call.CallResult = updates.Result
	}
	if updates.Notes != nil {
		call.Notes = *updates.Notes
	}
	if updates.EndedAt != nil {
		endedAt := *updates.EndedAt
		call.EndedAt = &endedAt
	}
	return true, nil
}

func (r *MemoryVoiceCallRepository) SetProviderCallID(ctx context.Context, id, providerCallID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[id]
	if !ok {
		return domain.ErrCallNotFound
	}
	call.ProviderCallID = providerCallID
	call.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryVoiceCallRepository) MarkSimulated(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[id]
	if !ok {
		return domain.ErrCallNotFound
	}
	call.Simulated = true
	call.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryVoiceCallRepository) MarkPipelineDispatched(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[id]
	if !ok || call.PipelineDispatched {
		return false, nil
	}
	call.PipelineDispatched = true
	call.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryVoiceCallRepository) AppendNotes(ctx context.Context, id, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[id]
	if !ok {
		return domain.ErrCallNotFound
	}
	if call.Notes == "" {
		call.Notes = notes
	} else {
		call.Notes = call.Notes + "\n" + notes
	}
	call.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryVoiceCallRepository) FindByWorkspace(ctx context.Context, workspaceID string, filter HistoryFilter) ([]*domain.VoiceCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var calls []*domain.VoiceCall
	for _, call := range r.calls {
		if call.WorkspaceID != workspaceID {
			continue
		}
		if filter.ClientID != "" && call.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && call.Status != filter.Status {
			continue
		}
		if filter.Purpose != "" && call.CallPurpose != filter.Purpose {
			continue
		}
		if filter.StartDate != nil && call.StartedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && call.StartedAt.After(*filter.EndDate) {
			continue
		}
		copied := *call
		calls = append(calls, &copied)
	}

	sort.Slice(calls, func(i, j int) bool {
		return calls[i].StartedAt.After(calls[j].StartedAt)
	})
	return calls, nil
}

// MemoryRepositoryManager is a RepositoryManager over in-memory stores.
type MemoryRepositoryManager struct {
	voiceCallRepo *MemoryVoiceCallRepository
}

// NewMemoryRepositoryManager creates an in-memory repository manager.
func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{voiceCallRepo: NewMemoryVoiceCallRepository()}
}

func (m *MemoryRepositoryManager) VoiceCall() VoiceCallRepository { return m.voiceCallRepo }

func (m *MemoryRepositoryManager) Ping(ctx context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close() error { return nil }
