package voicesynth

import (
	"time"
)

// ConversationRequest carries the intent behind a conversation-start attempt.
// The same request is rendered into different payload shapes per candidate.
type ConversationRequest struct {
	PhoneNumber string
	ClientName  string
	ClientID    string
	WorkspaceID string
	Purpose     string
	Context     string
	AgentID     string
}

// Candidate describes one API shape for starting an outbound AI conversation.
// The provider's endpoints are versioned inconsistently, so the negotiator
// tries candidates in order instead of hardcoding a single URL. Adding or
// removing a shape is a one-entry change here.
type Candidate struct {
	Name         string
	Path         string
	Timeout      time.Duration
	BuildPayload func(req ConversationRequest) map[string]interface{}
}

// DefaultCandidateTimeout bounds each attempt so an unreachable endpoint
// cannot stall the ordered fallback.
const DefaultCandidateTimeout = 10 * time.Second

// DefaultCandidates returns the known conversation-start shapes, most likely
// to succeed first.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{
			Name:    "Conversational AI Outbound",
			Path:    "/v1/convai/conversations/phone/outbound",
			Timeout: DefaultCandidateTimeout,
			BuildPayload: func(req ConversationRequest) map[string]interface{} {
				return map[string]interface{}{
					"agent_id":              req.AgentID,
					"customer_phone_number": req.PhoneNumber,
					"customer_name":         orDefault(req.ClientName, "Customer"),
					"metadata": map[string]interface{}{
						"client_id":    req.ClientID,
						"workspace_id": req.WorkspaceID,
						"purpose":      req.Purpose,
						"context":      req.Context,
						"source":       "remodely_crm",
						"timestamp":    time.Now().UTC().Format(time.RFC3339),
					},
				}
			},
		},
		{
			Name:    "Phone Conversation",
			Path:    "/v1/convai/conversation/phone",
			Timeout: DefaultCandidateTimeout,
			BuildPayload: func(req ConversationRequest) map[string]interface{} {
				return map[string]interface{}{
					"agent_id":              req.AgentID,
					"customer_phone_number": req.PhoneNumber,
					"customer_name":         orDefault(req.ClientName, "Customer"),
				}
			},
		},
		{
			Name:    "Direct Conversations",
			Path:    "/v1/conversations",
			Timeout: DefaultCandidateTimeout,
			BuildPayload: func(req ConversationRequest) map[string]interface{} {
				return map[string]interface{}{
					"agent_id":     req.AgentID,
					"phone_number": req.PhoneNumber,
					"mode":         "outbound_call",
					"customer_data": map[string]interface{}{
						"name":  orDefault(req.ClientName, "Customer"),
						"phone": req.PhoneNumber,
						"metadata": map[string]interface{}{
							"purpose":      req.Purpose,
							"context":      req.Context,
							"client_id":    req.ClientID,
							"workspace_id": req.WorkspaceID,
						},
					},
				}
			},
		},
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
