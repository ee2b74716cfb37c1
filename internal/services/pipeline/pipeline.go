package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// defaultAppointmentDuration is the booked length when the call result does
// not carry one.
const defaultAppointmentDuration = 60

// Pipeline converts a finished call into CRM side effects. It runs at most
// once per call (the lifecycle manager guards dispatch) and favors
// best-effort over all-or-nothing: every step is attempted regardless of
// sibling failures, and no failure escapes Run.
type Pipeline struct {
	clients      ClientDirectory
	notes        NoteWriter
	appointments AppointmentScheduler
	email        EmailSender
	estimates    EstimateFinder
	record       CallRecorder
}

// New creates a post-call pipeline over the CRM collaborators. record may be
// nil; the disposition write-back is then skipped.
func New(clients ClientDirectory, notes NoteWriter, appointments AppointmentScheduler, email EmailSender, estimates EstimateFinder, record CallRecorder) *Pipeline {
	return &Pipeline{
		clients:      clients,
		notes:        notes,
		appointments: appointments,
		email:        email,
		estimates:    estimates,
		record:       record,
	}
}

// Run executes the four side-effect steps for a terminal call.
func (p *Pipeline) Run(ctx context.Context, call *domain.VoiceCall) {
	logger.Base().Info("post-call pipeline started",
		zap.String("call_id", call.ID),
		zap.String("purpose", string(call.CallPurpose)),
		zap.String("status", string(call.Status)),
	)

	// The client profile is shared input, not a step: steps that need an
	// email address skip quietly when it is unavailable.
	client, err := p.clients.GetClient(ctx, call.ClientID, call.WorkspaceID)
	if err != nil {
		logger.Base().Warn("client lookup failed, continuing with call data only",
			zap.String("call_id", call.ID),
			zap.Error(err),
		)
		client = nil
	}

	confirmationSent := false

	p.runStep(call.ID, "call_note", func() error {
		return p.createCallNote(ctx, call)
	})
	p.runStep(call.ID, "appointment", func() error {
		sent, err := p.scheduleAppointment(ctx, call, client)
		confirmationSent = sent
		return err
	})
	p.runStep(call.ID, "follow_up_email", func() error {
		return p.sendFollowUpEmail(ctx, call, client, confirmationSent)
	})
	p.runStep(call.ID, "follow_up_note", func() error {
		return p.createFollowUpNote(ctx, call)
	})

	p.recordDisposition(ctx, call, confirmationSent)

	logger.Base().Info("post-call pipeline finished", zap.String("call_id", call.ID))
}

// recordDisposition appends a processing record to the call itself, so call
// history shows the pipeline ran without consulting the CRM.
func (p *Pipeline) recordDisposition(ctx context.Context, call *domain.VoiceCall, confirmationSent bool) {
	if p.record == nil {
		return
	}
	disposition := "Post-call processing complete."
	if confirmationSent {
		disposition += " Appointment confirmation emailed."
	}
	if err := p.record.AppendNotes(ctx, call.ID, disposition); err != nil {
		logger.Base().Warn("failed to record pipeline disposition",
			zap.String("call_id", call.ID),
			zap.Error(err),
		)
	}
}

// runStep isolates one step: errors and panics are logged with the call id
// and step name, never propagated, and never re-queue the pipeline.
func (p *Pipeline) runStep(callID, step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Base().Error("pipeline step panicked",
				zap.String("call_id", callID),
				zap.String("step", step),
				zap.Any("panic", r),
			)
		}
	}()

	if err := fn(); err != nil {
		var conflict *domain.SchedulingConflictError
		if errors.As(err, &conflict) {
			logger.Base().Warn("pipeline step hit scheduling conflict",
				zap.String("call_id", callID),
				zap.String("step", step),
				zap.Error(err),
			)
			return
		}
		logger.Base().Error("pipeline step failed",
			zap.String("call_id", callID),
			zap.String("step", step),
			zap.Error(err),
		)
	}
}

// createCallNote always records a summary note for the call.
func (p *Pipeline) createCallNote(ctx context.Context, call *domain.VoiceCall) error {
	content := ""
	switch {
	case call.CallResult != nil && call.CallResult.Notes != "":
		content = call.CallResult.Notes
	case call.Transcript != "":
		content = call.Transcript
	default:
		content = "AI voice call completed. No summary was captured."
	}

	outcome := string(call.Status)
	if call.CallResult != nil {
		outcome = fmt.Sprintf("%s, %s sentiment", outcome, call.CallResult.Sentiment)
	}
	content = fmt.Sprintf("%s\n\nCall duration: %ds. Outcome: %s.", content, call.Duration, outcome)

	req := NoteRequest{
		ClientID:    call.ClientID,
		WorkspaceID: call.WorkspaceID,
		VoiceCallID: call.ID,
		Content:     content,
	}
	if call.CallResult != nil && call.CallResult.NextAction != "" {
		req.ActionItem = call.CallResult.NextAction
	}
	return p.notes.CreateFromVoiceCall(ctx, req)
}

// scheduleAppointment creates the appointment promised during the call, if
// any, and reports whether a confirmation email went out.
func (p *Pipeline) scheduleAppointment(ctx context.Context, call *domain.VoiceCall, client *ClientProfile) (bool, error) {
	result := call.CallResult
	if result == nil || !result.AppointmentScheduled || result.AppointmentDate == nil {
		return false, nil
	}

	appointmentType := result.AppointmentType
	if appointmentType == "" {
		appointmentType = "consultation"
	}

	appointment, err := p.appointments.ScheduleFromVoiceCall(ctx, AppointmentRequest{
		ClientID:        call.ClientID,
		WorkspaceID:     call.WorkspaceID,
		VoiceCallID:     call.ID,
		AppointmentDate: *result.AppointmentDate,
		AppointmentType: appointmentType,
		Duration:        defaultAppointmentDuration,
		Notes:           fmt.Sprintf("Scheduled during AI voice call %s", call.ID),
	})
	if err != nil {
		return false, err
	}

	if client == nil || client.Email == "" {
		return false, nil
	}
	sent, err := p.appointments.SendConfirmationEmail(ctx, appointment, client)
	if err != nil {
		logger.Base().Warn("confirmation email failed",
			zap.String("call_id", call.ID),
			zap.String("appointment_id", appointment.ID),
			zap.Error(err),
		)
		return false, nil
	}
	return sent, nil
}

// sendFollowUpEmail sends the purpose-specific follow-up, unless the client
// was already contacted with an appointment confirmation for a scheduling
// call, or has no email on file.
func (p *Pipeline) sendFollowUpEmail(ctx context.Context, call *domain.VoiceCall, client *ClientProfile, confirmationSent bool) error {
	if client == nil || client.Email == "" {
		return nil
	}
	if confirmationSent && call.CallPurpose == domain.CallPurposeAppointmentScheduling {
		return nil
	}

	req := EmailRequest{
		ClientID:    call.ClientID,
		WorkspaceID: call.WorkspaceID,
		Email:       client.Email,
		ClientName:  client.FullName(),
	}

	switch call.CallPurpose {
	case domain.CallPurposeEstimateFollowUp:
		estimate, err := p.estimates.LatestForClient(ctx, call.ClientID, call.WorkspaceID)
		if err != nil {
			return fmt.Errorf("latest estimate lookup: %w", err)
		}
		if estimate == nil {
			logger.Base().Info("no estimate on file, skipping follow-up email",
				zap.String("call_id", call.ID),
				zap.String("client_id", call.ClientID),
			)
			return nil
		}
		req.EstimateID = estimate.ID
		req.Subject = "Following up on your estimate"
		req.Body = fmt.Sprintf("Hi %s, thanks for speaking with us today about your estimate \"%s\". Let us know if you have any questions.", client.FirstName, estimate.Title)
		_, err = p.email.SendEstimateFollowUp(ctx, req)
		return err

	case domain.CallPurposeAppointmentScheduling:
		req.Subject = "We'll follow up with appointment times"
		req.Body = fmt.Sprintf("Hi %s, thanks for your time today. Our team will follow up shortly with available appointment times.", client.FirstName)
		_, err := p.email.SendGeneralFollowUp(ctx, req)
		return err

	default:
		req.Subject = "Thanks for speaking with us"
		req.Body = fmt.Sprintf("Hi %s, thank you for taking our call today. We'll be in touch with next steps soon.", client.FirstName)
		_, err := p.email.SendGeneralFollowUp(ctx, req)
		return err
	}
}

// createFollowUpNote schedules a dated follow-up reminder, independent of the
// summary note.
func (p *Pipeline) createFollowUpNote(ctx context.Context, call *domain.VoiceCall) error {
	result := call.CallResult
	if result == nil || !result.FollowUpRequired || result.FollowUpDate == nil {
		return nil
	}

	followUpAt := *result.FollowUpDate
	return p.notes.AddFollowUpNote(ctx, NoteRequest{
		ClientID:    call.ClientID,
		WorkspaceID: call.WorkspaceID,
		VoiceCallID: call.ID,
		Content:     fmt.Sprintf("Follow up with client on %s (from AI voice call).", followUpAt.Format("Jan 2, 2006")),
		FollowUpAt:  &followUpAt,
	})
}
