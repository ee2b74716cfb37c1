package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/internal/services/call"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// WebhookHandler ingests telephony provider callbacks. The provider retries
// non-2xx responses, so every recognized request is acked even when the event
// is rejected by the transition rules.
type WebhookHandler struct {
	lifecycle *call.Lifecycle
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(lifecycle *call.Lifecycle) *WebhookHandler {
	return &WebhookHandler{lifecycle: lifecycle}
}

// providerStatus maps the provider's call progress vocabulary onto the
// internal lifecycle states. Unknown values map to empty.
func providerStatus(raw string) domain.CallStatus {
	switch raw {
	case "queued", "initiated", "ringing":
		return domain.CallStatusRinging
	case "in-progress", "answered":
		return domain.CallStatusAnswered
	case "completed":
		return domain.CallStatusCompleted
	case "busy":
		return domain.CallStatusBusy
	case "no-answer":
		return domain.CallStatusNoAnswer
	case "failed", "canceled":
		return domain.CallStatusFailed
	}
	return ""
}

// HandleCallStatus processes a call progress event.
// POST /api/voice-agent/webhook/call-status?callId=...
func (h *WebhookHandler) HandleCallStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		// Malformed body, nothing to retry.
		w.WriteHeader(http.StatusOK)
		return
	}

	callID := r.URL.Query().Get("callId")
	if callID == "" {
		callID = r.FormValue("callId")
	}
	rawStatus := r.FormValue("CallStatus")

	if callID == "" || rawStatus == "" {
		logger.Base().Warn("webhook missing call id or status",
			zap.String("call_id", callID),
			zap.String("raw_status", rawStatus),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	status := providerStatus(rawStatus)
	if status == "" {
		logger.Base().Warn("webhook with unknown call status",
			zap.String("call_id", callID),
			zap.String("raw_status", rawStatus),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	payload := call.TransitionPayload{}
	if raw := r.FormValue("CallDuration"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil {
			payload.Duration = &seconds
		}
	}

	_, err := h.lifecycle.ApplyTransition(r.Context(), callID, status, payload)
	if err != nil {
		var invalid *domain.InvalidTransitionError
		switch {
		case errors.As(err, &invalid):
			// Late or duplicate delivery. Acked so the provider stops retrying.
			logger.Base().Info("webhook event rejected by transition rules",
				zap.String("call_id", callID),
				zap.String("from", string(invalid.From)),
				zap.String("to", string(invalid.To)),
			)
		case errors.Is(err, domain.ErrCallNotFound):
			logger.Base().Warn("webhook for unknown call", zap.String("call_id", callID))
		default:
			logger.Base().Error("webhook processing failed",
				zap.String("call_id", callID),
				zap.Error(err),
			)
		}
	}

	w.WriteHeader(http.StatusOK)
}

// HandleVoice serves the call content document the provider fetches when the
// callee answers.
// POST /api/voice-agent/webhook/voice?callId=...
func (h *WebhookHandler) HandleVoice(w http.ResponseWriter, r *http.Request) {
	twiml := `<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Say voice="Polly.Joanna">Hello, this is an automated call from your contractor. Please hold while we connect you.</Say>
    <Pause length="1"/>
</Response>`

	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, twiml)
}
