package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/internal/repository"
	"github.com/remodely/crm-voice-service/internal/services/call"
	"github.com/remodely/crm-voice-service/internal/storage"
	"github.com/remodely/crm-voice-service/internal/voicesynth"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"github.com/remodely/crm-voice-service/pkg/twilio"
	"go.uber.org/zap"
)

// VoiceCallHandler serves the voice-agent API: call placement, history,
// manual status updates and service status.
type VoiceCallHandler struct {
	service   *call.Service
	telephony *twilio.CallService
	synth     *voicesynth.Negotiator
}

// NewVoiceCallHandler creates the voice call handler.
func NewVoiceCallHandler(service *call.Service, telephony *twilio.CallService, synth *voicesynth.Negotiator) *VoiceCallHandler {
	return &VoiceCallHandler{service: service, telephony: telephony, synth: synth}
}

type apiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Message: message})
}

// HandleCRMCall places an outbound call with an explicit purpose.
// POST /api/voice-agent/crm-call
func (h *VoiceCallHandler) HandleCRMCall(w http.ResponseWriter, r *http.Request) {
	h.placeCall(w, r, h.service.PlaceOutboundCall)
}

// HandleScheduleAppointmentCall places an appointment-scheduling call.
// POST /api/voice-agent/schedule-appointment-call
func (h *VoiceCallHandler) HandleScheduleAppointmentCall(w http.ResponseWriter, r *http.Request) {
	h.placeCall(w, r, h.service.ScheduleAppointmentCall)
}

// HandleEstimateFollowUpCall places an estimate follow-up call.
// POST /api/voice-agent/estimate-follow-up-call
func (h *VoiceCallHandler) HandleEstimateFollowUpCall(w http.ResponseWriter, r *http.Request) {
	h.placeCall(w, r, h.service.EstimateFollowUpCall)
}

// HandleGeneralFollowUpCall places a general follow-up call.
// POST /api/voice-agent/general-follow-up-call
func (h *VoiceCallHandler) HandleGeneralFollowUpCall(w http.ResponseWriter, r *http.Request) {
	h.placeCall(w, r, h.service.GeneralFollowUpCall)
}

func (h *VoiceCallHandler) placeCall(w http.ResponseWriter, r *http.Request, place func(ctx context.Context, req call.PlaceCallRequest) (*call.CallHandle, error)) {
	var req call.PlaceCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	handle, err := place(r.Context(), req)
	if err != nil {
		logger.Base().Error("call placement failed",
			zap.String("client_id", req.ClientID),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: handle})
}

// updateCallStatusRequest is the manual status update body.
type updateCallStatusRequest struct {
	Status     domain.CallStatus  `json:"status"`
	Duration   *int               `json:"duration,omitempty"`
	Transcript *string            `json:"transcript,omitempty"`
	CallResult *domain.CallResult `json:"call_result,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
}

// HandleUpdateCallStatus applies a manual status change to a call.
// PUT /api/voice-agent/update-call-status/{callId}
func (h *VoiceCallHandler) HandleUpdateCallStatus(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["callId"]

	var req updateCallStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	updated, err := h.service.UpdateCallStatus(r.Context(), callID, req.Status, call.TransitionPayload{
		Duration:   req.Duration,
		Transcript: req.Transcript,
		Result:     req.CallResult,
		Notes:      req.Notes,
	})
	if err != nil {
		var invalid *domain.InvalidTransitionError
		switch {
		case errors.Is(err, domain.ErrCallNotFound):
			writeError(w, http.StatusNotFound, "call not found")
		case errors.As(err, &invalid):
			writeError(w, http.StatusConflict, invalid.Error())
		default:
			logger.Base().Error("status update failed", zap.String("call_id", callID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update call status")
		}
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: updated})
}

// HandleGetCall returns one call record.
// GET /api/voice-agent/call/{callId}
func (h *VoiceCallHandler) HandleGetCall(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["callId"]

	record, err := h.service.GetCall(r.Context(), callID)
	if err != nil {
		if errors.Is(err, domain.ErrCallNotFound) {
			writeError(w, http.StatusNotFound, "call not found")
			return
		}
		logger.Base().Error("call lookup failed", zap.String("call_id", callID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load call")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: record})
}

// HandleCallHistory returns a workspace's calls newest-first.
// GET /api/voice-agent/call-history/{workspaceId}
func (h *VoiceCallHandler) HandleCallHistory(w http.ResponseWriter, r *http.Request) {
	workspaceID := mux.Vars(r)["workspaceId"]

	filter := repository.HistoryFilter{
		ClientID: r.URL.Query().Get("clientId"),
		Status:   domain.CallStatus(r.URL.Query().Get("status")),
		Purpose:  domain.CallPurpose(r.URL.Query().Get("purpose")),
	}
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "startDate must be RFC3339")
			return
		}
		filter.StartDate = &t
	}
	if raw := r.URL.Query().Get("endDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "endDate must be RFC3339")
			return
		}
		filter.EndDate = &t
	}

	calls, err := h.service.CallHistory(r.Context(), workspaceID, filter)
	if err != nil {
		logger.Base().Error("call history query failed",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load call history")
		return
	}
	if calls == nil {
		calls = []*domain.VoiceCall{}
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: calls})
}

// HandleCallSummaryPDF streams a PDF summary of one call.
// GET /api/voice-agent/call/{callId}/summary.pdf
func (h *VoiceCallHandler) HandleCallSummaryPDF(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["callId"]

	record, err := h.service.GetCall(r.Context(), callID)
	if err != nil {
		if errors.Is(err, domain.ErrCallNotFound) {
			writeError(w, http.StatusNotFound, "call not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load call")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=call-%s.pdf", record.ID))
	if err := storage.WriteCallSummaryPDF(record, w); err != nil {
		logger.Base().Error("call summary pdf failed", zap.String("call_id", callID), zap.Error(err))
	}
}

// HandleElevenLabsCall starts a conversation directly through the
// voice-synthesis provider without creating a call record. On total failure it
// returns manual batch-calling instructions instead of an error.
// POST /api/voice-agent/elevenlabs-call
func (h *VoiceCallHandler) HandleElevenLabsCall(w http.ResponseWriter, r *http.Request) {
	var req voicesynth.ConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	result, err := h.synth.Negotiate(r.Context(), req)
	if err != nil {
		var negErr *domain.NegotiationError
		if errors.As(err, &negErr) {
			agentID := req.AgentID
			if agentID == "" {
				agentID = h.synth.DefaultAgentID()
			}
			writeJSON(w, http.StatusOK, apiResponse{
				Success: false,
				Message: "all API endpoints failed, manual setup required",
				Data: map[string]interface{}{
					"attempts":     negErr.Attempts,
					"instructions": voicesynth.BuildSetupInstructions(req, agentID),
				},
			})
			return
		}
		if errors.Is(err, domain.ErrProviderUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "voice synthesis provider not configured")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: result})
}

// HandleStatus reports provider availability.
// GET /api/voice-agent/status
func (h *VoiceCallHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	telephonyReady := h.telephony != nil && h.telephony.IsConfigured()
	synthReady := h.synth != nil && h.synth.IsConfigured()

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]interface{}{
		"service":                "crm-voice-service",
		"telephony_configured":   telephonyReady,
		"voice_synth_configured": synthReady,
		"simulation_mode":        !telephonyReady && !synthReady,
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
	}})
}
