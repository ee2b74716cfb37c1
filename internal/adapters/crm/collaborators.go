package crm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/remodely/crm-voice-service/internal/services/pipeline"
)

// GetClient looks up a client's contact details.
func (c *Client) GetClient(ctx context.Context, clientID, workspaceID string) (*pipeline.ClientProfile, error) {
	var profile pipeline.ClientProfile
	path := fmt.Sprintf("/api/workspaces/%s/clients/%s", workspaceID, clientID)
	if err := c.do(ctx, http.MethodGet, path, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateFromVoiceCall records a call-summary note on the client.
func (c *Client) CreateFromVoiceCall(ctx context.Context, req pipeline.NoteRequest) error {
	path := fmt.Sprintf("/api/workspaces/%s/clients/%s/notes", req.WorkspaceID, req.ClientID)
	return c.do(ctx, http.MethodPost, path, req, nil)
}

// AddFollowUpNote records a dated follow-up reminder on the client.
func (c *Client) AddFollowUpNote(ctx context.Context, req pipeline.NoteRequest) error {
	path := fmt.Sprintf("/api/workspaces/%s/clients/%s/follow-ups", req.WorkspaceID, req.ClientID)
	return c.do(ctx, http.MethodPost, path, req, nil)
}

// ScheduleFromVoiceCall creates the appointment agreed during a call.
func (c *Client) ScheduleFromVoiceCall(ctx context.Context, req pipeline.AppointmentRequest) (*pipeline.Appointment, error) {
	var appointment pipeline.Appointment
	path := fmt.Sprintf("/api/workspaces/%s/appointments", req.WorkspaceID)
	if err := c.do(ctx, http.MethodPost, path, req, &appointment); err != nil {
		return nil, err
	}
	return &appointment, nil
}

// SendConfirmationEmail asks the CRM to email an appointment confirmation.
func (c *Client) SendConfirmationEmail(ctx context.Context, appointment *pipeline.Appointment, client *pipeline.ClientProfile) (bool, error) {
	payload := map[string]interface{}{
		"appointment_id": appointment.ID,
		"client_id":      client.ID,
		"email":          client.Email,
	}
	path := fmt.Sprintf("/api/appointments/%s/confirmation-email", appointment.ID)
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return false, err
	}
	return true, nil
}

// SendEstimateFollowUp sends an estimate follow-up email.
func (c *Client) SendEstimateFollowUp(ctx context.Context, req pipeline.EmailRequest) (bool, error) {
	path := fmt.Sprintf("/api/workspaces/%s/emails/estimate-follow-up", req.WorkspaceID)
	if err := c.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return false, err
	}
	return true, nil
}

// SendGeneralFollowUp sends a general follow-up email.
func (c *Client) SendGeneralFollowUp(ctx context.Context, req pipeline.EmailRequest) (bool, error) {
	path := fmt.Sprintf("/api/workspaces/%s/emails/follow-up", req.WorkspaceID)
	if err := c.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return false, err
	}
	return true, nil
}

// LatestForClient returns the client's most recent estimate, nil when none.
func (c *Client) LatestForClient(ctx context.Context, clientID, workspaceID string) (*pipeline.Estimate, error) {
	var estimates []pipeline.Estimate
	path := fmt.Sprintf("/api/workspaces/%s/clients/%s/estimates?limit=1&sort=created_at:desc", workspaceID, clientID)
	if err := c.do(ctx, http.MethodGet, path, nil, &estimates); err != nil {
		return nil, err
	}
	if len(estimates) == 0 {
		return nil, nil
	}
	return &estimates[0], nil
}
