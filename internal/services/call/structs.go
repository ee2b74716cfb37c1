package call

import (
	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/internal/voicesynth"
)

// PlaceCallRequest asks the service to place an outbound call to a CRM client.
// PhoneNumber is optional; when empty the client's phone on file is used.
type PlaceCallRequest struct {
	ClientID    string             `json:"client_id"`
	WorkspaceID string             `json:"workspace_id"`
	PhoneNumber string             `json:"phone_number,omitempty"`
	Purpose     domain.CallPurpose `json:"call_purpose"`
	Context     string             `json:"context,omitempty"`
	AgentID     string             `json:"agent_id,omitempty"`
}

// CallHandle is the caller-facing echo of a placed call. Attempts and
// Instructions are only populated when provider negotiation was involved.
type CallHandle struct {
	CallID         string                        `json:"call_id"`
	ProviderCallID string                        `json:"provider_call_id,omitempty"`
	Status         domain.CallStatus             `json:"status"`
	Simulated      bool                          `json:"simulated"`
	Provider       string                        `json:"provider,omitempty"`
	Attempts       []domain.EndpointAttempt      `json:"endpoint_attempts,omitempty"`
	Instructions   *voicesynth.SetupInstructions `json:"setup_instructions,omitempty"`
}
