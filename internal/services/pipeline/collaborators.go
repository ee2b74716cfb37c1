package pipeline

import (
	"context"
	"time"
)

// ClientProfile is the slice of a CRM client this service needs.
type ClientProfile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// FullName returns the client's display name.
func (c *ClientProfile) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Appointment is the created-appointment echo from the appointments service.
type Appointment struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	AppointmentType string    `json:"appointment_type"`
	Duration        int       `json:"duration"`
}

// Estimate is the slice of a CRM estimate used for follow-up emails.
type Estimate struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Title     string    `json:"title"`
	Total     float64   `json:"total"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteRequest carries the fields for a call-summary or follow-up note.
type NoteRequest struct {
	ClientID    string     `json:"client_id"`
	WorkspaceID string     `json:"workspace_id"`
	VoiceCallID string     `json:"voice_call_id"`
	Content     string     `json:"content"`
	ActionItem  string     `json:"action_item,omitempty"`
	FollowUpAt  *time.Time `json:"follow_up_at,omitempty"`
}

// AppointmentRequest asks the appointments service to create an appointment
// that references the originating voice call.
type AppointmentRequest struct {
	ClientID        string    `json:"client_id"`
	WorkspaceID     string    `json:"workspace_id"`
	VoiceCallID     string    `json:"voice_call_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	AppointmentType string    `json:"appointment_type"`
	Duration        int       `json:"duration"`
	Notes           string    `json:"notes,omitempty"`
}

// EmailRequest carries a follow-up email for a client.
type EmailRequest struct {
	ClientID    string `json:"client_id"`
	WorkspaceID string `json:"workspace_id"`
	Email       string `json:"email"`
	ClientName  string `json:"client_name"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	EstimateID  string `json:"estimate_id,omitempty"`
}

// The pipeline talks to the CRM through these narrow interfaces. Their
// implementations live in internal/adapters/crm; tests substitute fakes.

// ClientDirectory looks up client contact details.
type ClientDirectory interface {
	GetClient(ctx context.Context, clientID, workspaceID string) (*ClientProfile, error)
}

// NoteWriter creates CRM notes.
type NoteWriter interface {
	CreateFromVoiceCall(ctx context.Context, req NoteRequest) error
	AddFollowUpNote(ctx context.Context, req NoteRequest) error
}

// AppointmentScheduler creates appointments and confirmation emails.
type AppointmentScheduler interface {
	ScheduleFromVoiceCall(ctx context.Context, req AppointmentRequest) (*Appointment, error)
	SendConfirmationEmail(ctx context.Context, appointment *Appointment, client *ClientProfile) (bool, error)
}

// EmailSender delivers follow-up emails.
type EmailSender interface {
	SendEstimateFollowUp(ctx context.Context, req EmailRequest) (bool, error)
	SendGeneralFollowUp(ctx context.Context, req EmailRequest) (bool, error)
}

// EstimateFinder retrieves a client's most recent estimate.
type EstimateFinder interface {
	LatestForClient(ctx context.Context, clientID, workspaceID string) (*Estimate, error)
}

// CallRecorder appends a processing record to the call's own notes field.
// The voice-call repository satisfies this.
type CallRecorder interface {
	AppendNotes(ctx context.Context, id, notes string) error
}
