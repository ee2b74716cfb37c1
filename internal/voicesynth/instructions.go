package voicesynth

import (
	"fmt"
	"time"
)

// SetupInstructions is the manual fallback returned when every candidate
// endpoint failed: the provider's batch-calling dashboard always works, so
// the caller gets concrete steps instead of a bare error.
type SetupInstructions struct {
	BatchID      string   `json:"batch_id"`
	Steps        []string `json:"steps"`
	BatchCallURL string   `json:"batch_call_url"`
	AgentURL     string   `json:"agent_url"`
}

const batchCallURL = "https://elevenlabs.io/app/conversational-ai/batch-calling/create"

// BuildSetupInstructions renders manual batch-calling steps for one contact.
func BuildSetupInstructions(req ConversationRequest, agentID string) *SetupInstructions {
	contactContext := req.Context
	if contactContext == "" {
		contactContext = "No additional context"
	}

	return &SetupInstructions{
		BatchID:      fmt.Sprintf("crm_batch_%d", time.Now().UnixMilli()),
		BatchCallURL: batchCallURL,
		AgentURL:     fmt.Sprintf("https://elevenlabs.io/app/talk-to?agent_id=%s", agentID),
		Steps: []string{
			fmt.Sprintf("Open the batch calling dashboard: %s", batchCallURL),
			fmt.Sprintf("Select agent: %s", agentID),
			fmt.Sprintf("Add contact: %s - %s", orDefault(req.ClientName, "Customer"), req.PhoneNumber),
			fmt.Sprintf("Purpose: %s", req.Purpose),
			fmt.Sprintf("Context: %s", contactContext),
			"Click \"Start Batch Call\"",
		},
	}
}
