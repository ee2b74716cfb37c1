package call

import (
	"context"
	"fmt"
	"net/url"

	"github.com/remodely/crm-voice-service/internal/config"
	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/internal/repository"
	"github.com/remodely/crm-voice-service/internal/services/pipeline"
	"github.com/remodely/crm-voice-service/internal/voicesynth"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"github.com/remodely/crm-voice-service/pkg/twilio"
	"go.uber.org/zap"
)

// Service orchestrates outbound voice calls: it creates the call record,
// tries the real providers in order, and falls back to simulation so a call
// request never hard-fails on provider availability.
type Service struct {
	cfg       *config.Config
	repo      repository.VoiceCallRepository
	lifecycle *Lifecycle
	clients   pipeline.ClientDirectory
	telephony *twilio.CallService
	synth     *voicesynth.Negotiator
	simulator *Simulator
}

// NewService wires the call orchestrator. clients may be nil when no CRM
// backend is configured; callers must then provide phone numbers explicitly.
func NewService(
	cfg *config.Config,
	repo repository.VoiceCallRepository,
	lifecycle *Lifecycle,
	clients pipeline.ClientDirectory,
	telephony *twilio.CallService,
	synth *voicesynth.Negotiator,
	simulator *Simulator,
) *Service {
	return &Service{
		cfg:       cfg,
		repo:      repo,
		lifecycle: lifecycle,
		clients:   clients,
		telephony: telephony,
		synth:     synth,
		simulator: simulator,
	}
}

// Lifecycle exposes the lifecycle manager for the webhook path.
func (s *Service) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// PlaceOutboundCall places a call for a client. Provider order is
// voice-synthesis conversation first, then plain telephony; if neither is
// available the call is simulated. The returned handle reports which path won.
func (s *Service) PlaceOutboundCall(ctx context.Context, req PlaceCallRequest) (*CallHandle, error) {
	if req.ClientID == "" || req.WorkspaceID == "" {
		return nil, fmt.Errorf("client id and workspace id are required")
	}
	if req.Purpose == "" {
		req.Purpose = domain.CallPurposeGeneral
	}

	phone := req.PhoneNumber
	clientName := ""
	if s.clients != nil {
		client, err := s.clients.GetClient(ctx, req.ClientID, req.WorkspaceID)
		if err != nil {
			logger.Base().Warn("client lookup failed before call placement",
				zap.String("client_id", req.ClientID),
				zap.Error(err),
			)
		} else if client != nil {
			clientName = client.FullName()
			if phone == "" {
				phone = client.Phone
			}
		}
	}
	if phone == "" {
		return nil, fmt.Errorf("no phone number for client %s", req.ClientID)
	}

	record := &domain.VoiceCall{
		WorkspaceID: req.WorkspaceID,
		ClientID:    req.ClientID,
		PhoneNumber: phone,
		Direction:   domain.CallDirectionOutbound,
		Status:      domain.CallStatusInitiated,
		CallPurpose: req.Purpose,
		AgentID:     req.AgentID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create call record: %w", err)
	}

	handle := &CallHandle{CallID: record.ID, Status: record.Status}

	convReq := voicesynth.ConversationRequest{
		PhoneNumber: phone,
		ClientName:  clientName,
		ClientID:    req.ClientID,
		WorkspaceID: req.WorkspaceID,
		Purpose:     string(req.Purpose),
		Context:     req.Context,
		AgentID:     req.AgentID,
	}

	if s.synth != nil && s.synth.IsConfigured() {
		result, err := s.synth.Negotiate(ctx, convReq)
		if err == nil {
			handle.Provider = "elevenlabs"
			handle.ProviderCallID = result.ConversationID
			handle.Attempts = result.Attempts
			s.recordProviderAccepted(ctx, record.ID, result.ConversationID, handle)
			return handle, nil
		}

		logger.Base().Warn("conversation negotiation failed, trying telephony",
			zap.String("call_id", record.ID),
			zap.Error(err),
		)
		if negErr, ok := err.(*domain.NegotiationError); ok {
			handle.Attempts = negErr.Attempts
		}
	}

	if s.telephony != nil && s.telephony.IsConfigured() {
		voiceURL, statusURL := s.callbackURLs(record.ID, record.CallPurpose)

		sid, err := s.telephony.PlaceCall(ctx, phone, voiceURL, statusURL)
		if err == nil {
			handle.Provider = "twilio"
			handle.ProviderCallID = sid
			s.recordProviderAccepted(ctx, record.ID, sid, handle)
			return handle, nil
		}
		logger.Base().Warn("telephony call placement failed, falling back to simulation",
			zap.String("call_id", record.ID),
			zap.Error(err),
		)
	}

	return s.simulate(ctx, record, convReq, handle)
}

// callbackURLs builds the provider-facing webhook URLs. Both embed the call
// id and purpose so callbacks identify the call without a lookup by provider
// call id.
func (s *Service) callbackURLs(callID string, purpose domain.CallPurpose) (voiceURL, statusURL string) {
	query := url.Values{}
	query.Set("callId", callID)
	query.Set("purpose", string(purpose))
	encoded := query.Encode()

	voiceURL = fmt.Sprintf("%s/api/voice-agent/webhook/voice?%s", s.cfg.CallbackBaseURL, encoded)
	statusURL = fmt.Sprintf("%s/api/voice-agent/webhook/call-status?%s", s.cfg.CallbackBaseURL, encoded)
	return voiceURL, statusURL
}

// recordProviderAccepted stores the provider call id and moves the call to
// ringing. A provider webhook delivering the same progress later resolves as
// a rejected duplicate, which is fine.
func (s *Service) recordProviderAccepted(ctx context.Context, callID, providerCallID string, handle *CallHandle) {
	if err := s.repo.SetProviderCallID(ctx, callID, providerCallID); err != nil {
		logger.Base().Error("failed to record provider call id",
			zap.String("call_id", callID),
			zap.Error(err),
		)
	}
	updated, err := s.lifecycle.ApplyTransition(ctx, callID, domain.CallStatusRinging, TransitionPayload{})
	if err != nil {
		logger.Base().Warn("failed to mark call ringing after provider accept",
			zap.String("call_id", callID),
			zap.Error(err),
		)
		return
	}
	handle.Status = updated.Status
}

// simulate marks the call simulated and schedules its deterministic
// completion. If a voice-synthesis agent is configured, manual batch-calling
// instructions are included so an operator can still place the real call.
func (s *Service) simulate(ctx context.Context, record *domain.VoiceCall, convReq voicesynth.ConversationRequest, handle *CallHandle) (*CallHandle, error) {
	if err := s.repo.MarkSimulated(ctx, record.ID); err != nil {
		return nil, fmt.Errorf("mark call simulated: %w", err)
	}

	handle.Simulated = true
	handle.Provider = "simulation"
	if s.synth != nil && s.synth.DefaultAgentID() != "" {
		handle.Instructions = voicesynth.BuildSetupInstructions(convReq, s.synth.DefaultAgentID())
	}

	s.simulator.ScheduleCompletion(record)

	logger.Base().Info("call placed in simulation mode",
		zap.String("call_id", record.ID),
		zap.String("purpose", string(record.CallPurpose)),
	)
	return handle, nil
}

// ScheduleAppointmentCall places an outbound call whose goal is booking an
// appointment.
func (s *Service) ScheduleAppointmentCall(ctx context.Context, req PlaceCallRequest) (*CallHandle, error) {
	req.Purpose = domain.CallPurposeAppointmentScheduling
	if req.Context == "" {
		req.Context = "Call the client to schedule an appointment for their project."
	}
	return s.PlaceOutboundCall(ctx, req)
}

// EstimateFollowUpCall places an outbound call following up on an estimate.
func (s *Service) EstimateFollowUpCall(ctx context.Context, req PlaceCallRequest) (*CallHandle, error) {
	req.Purpose = domain.CallPurposeEstimateFollowUp
	if req.Context == "" {
		req.Context = "Call the client to follow up on the estimate we sent."
	}
	return s.PlaceOutboundCall(ctx, req)
}

// GeneralFollowUpCall places a general check-in call.
func (s *Service) GeneralFollowUpCall(ctx context.Context, req PlaceCallRequest) (*CallHandle, error) {
	req.Purpose = domain.CallPurposeFollowUp
	if req.Context == "" {
		req.Context = "Call the client for a general follow-up on their project."
	}
	return s.PlaceOutboundCall(ctx, req)
}

// UpdateCallStatus applies a manual status change, with the same transition
// rules as provider webhooks.
func (s *Service) UpdateCallStatus(ctx context.Context, callID string, status domain.CallStatus, payload TransitionPayload) (*domain.VoiceCall, error) {
	return s.lifecycle.ApplyTransition(ctx, callID, status, payload)
}

// GetCall returns one call record.
func (s *Service) GetCall(ctx context.Context, callID string) (*domain.VoiceCall, error) {
	return s.repo.GetByID(ctx, callID)
}

// CallHistory returns a workspace's calls newest-first.
func (s *Service) CallHistory(ctx context.Context, workspaceID string, filter repository.HistoryFilter) ([]*domain.VoiceCall, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace id is required")
	}
	return s.repo.FindByWorkspace(ctx, workspaceID, filter)
}
