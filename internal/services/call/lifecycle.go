package call

import (
	"context"
	"time"

	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/internal/repository"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// pipelineTimeout bounds one post-call pipeline invocation.
const pipelineTimeout = 60 * time.Second

// PipelineRunner reacts to a call reaching a terminal state. It must swallow
// its own failures; the lifecycle manager fires it at most once per call.
type PipelineRunner interface {
	Run(ctx context.Context, call *domain.VoiceCall)
}

// TransitionPayload carries the optional fields written with a transition.
// Terminal fields (duration, result, transcript) are only meaningful on a
// transition into a terminal state.
type TransitionPayload struct {
	Duration   *int
	Transcript *string
	Result     *domain.CallResult
	Notes      *string
}

// Lifecycle owns every VoiceCall status mutation. Transitions are validated
// against the call's current persisted state and written with a conditional
// update, so concurrent or duplicate events self-resolve without a lock.
type Lifecycle struct {
	repo     repository.VoiceCallRepository
	pipeline PipelineRunner
}

// NewLifecycle creates the lifecycle manager. pipeline may be nil, in which
// case terminal transitions produce no side effects.
func NewLifecycle(repo repository.VoiceCallRepository, pipeline PipelineRunner) *Lifecycle {
	return &Lifecycle{repo: repo, pipeline: pipeline}
}

// ApplyTransition moves a call to newStatus if the transition table permits
// it from the call's current state. A transition into a terminal state writes
// status, endedAt and the payload's terminal fields in a single update, then
// dispatches the post-call pipeline at most once for this call id.
func (l *Lifecycle) ApplyTransition(ctx context.Context, callID string, newStatus domain.CallStatus, payload TransitionPayload) (*domain.VoiceCall, error) {
	if !newStatus.IsValid() {
		return nil, &domain.InvalidTransitionError{CallID: callID, To: newStatus}
	}

	current, err := l.repo.GetByID(ctx, callID)
	if err != nil {
		return nil, err
	}

	from := current.Status
	if !from.CanTransition(newStatus) {
		return nil, &domain.InvalidTransitionError{CallID: callID, From: from, To: newStatus}
	}

	updates := repository.CallUpdates{
		Transcript: payload.Transcript,
		Result:     payload.Result,
		Notes:      payload.Notes,
		Duration:   payload.Duration,
	}
	if newStatus.IsTerminal() {
		now := time.Now()
		updates.EndedAt = &now
		if updates.Duration == nil {
			seconds := int(now.Sub(current.StartedAt).Seconds())
			if seconds < 0 {
				seconds = 0
			}
			updates.Duration = &seconds
		}
	}

	applied, err := l.repo.UpdateStatusIf(ctx, callID, from, newStatus, updates)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent event won the compare-and-set. Report against the
		// state that actually stuck.
		latest, getErr := l.repo.GetByID(ctx, callID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &domain.InvalidTransitionError{CallID: callID, From: latest.Status, To: newStatus}
	}

	updated, err := l.repo.GetByID(ctx, callID)
	if err != nil {
		return nil, err
	}

	logger.Base().Info("call transition applied",
		zap.String("call_id", callID),
		zap.String("from", string(from)),
		zap.String("to", string(newStatus)),
	)

	if newStatus.IsTerminal() {
		l.dispatchPipeline(updated)
	}
	return updated, nil
}

// dispatchPipeline fires the post-call pipeline for a terminal call. The
// dispatch guard is a conditional flag flip keyed on the call id, so even
// racing terminal events trigger at most one run.
func (l *Lifecycle) dispatchPipeline(call *domain.VoiceCall) {
	if l.pipeline == nil {
		return
	}

	// Detached from the request context: the caller never waits on the
	// pipeline and a canceled request must not skip side effects.
	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)

	first, err := l.repo.MarkPipelineDispatched(ctx, call.ID)
	if err != nil {
		cancel()
		logger.Base().Error("pipeline dispatch guard failed",
			zap.String("call_id", call.ID),
			zap.Error(err),
		)
		return
	}
	if !first {
		cancel()
		logger.Base().Info("pipeline already dispatched, skipping",
			zap.String("call_id", call.ID),
		)
		return
	}

	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Base().Error("pipeline run panicked",
					zap.String("call_id", call.ID),
					zap.Any("panic", r),
				)
			}
		}()
		l.pipeline.Run(ctx, call)
	}()
}
