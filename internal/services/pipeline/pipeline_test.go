package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCRM struct {
	client    *ClientProfile
	clientErr error

	noteErr      error
	notes        []NoteRequest
	followUps    []NoteRequest
	appointments []AppointmentRequest
	scheduleErr  error

	confirmErr   error
	confirmCount int

	estimateEmails []EmailRequest
	generalEmails  []EmailRequest
	emailErr       error

	estimate    *Estimate
	estimateErr error

	dispositions []string
}

func (f *fakeCRM) GetClient(ctx context.Context, clientID, workspaceID string) (*ClientProfile, error) {
	if f.clientErr != nil {
		return nil, f.clientErr
	}
	return f.client, nil
}

func (f *fakeCRM) CreateFromVoiceCall(ctx context.Context, req NoteRequest) error {
	f.notes = append(f.notes, req)
	return f.noteErr
}

func (f *fakeCRM) AddFollowUpNote(ctx context.Context, req NoteRequest) error {
	f.followUps = append(f.followUps, req)
	return nil
}

func (f *fakeCRM) ScheduleFromVoiceCall(ctx context.Context, req AppointmentRequest) (*Appointment, error) {
	f.appointments = append(f.appointments, req)
	if f.scheduleErr != nil {
		return nil, f.scheduleErr
	}
	return &Appointment{
		ID:              "appt-1",
		ClientID:        req.ClientID,
		AppointmentDate: req.AppointmentDate,
		AppointmentType: req.AppointmentType,
		Duration:        req.Duration,
	}, nil
}

func (f *fakeCRM) SendConfirmationEmail(ctx context.Context, appointment *Appointment, client *ClientProfile) (bool, error) {
	f.confirmCount++
	if f.confirmErr != nil {
		return false, f.confirmErr
	}
	return true, nil
}

func (f *fakeCRM) SendEstimateFollowUp(ctx context.Context, req EmailRequest) (bool, error) {
	f.estimateEmails = append(f.estimateEmails, req)
	return f.emailErr == nil, f.emailErr
}

func (f *fakeCRM) SendGeneralFollowUp(ctx context.Context, req EmailRequest) (bool, error) {
	f.generalEmails = append(f.generalEmails, req)
	return f.emailErr == nil, f.emailErr
}

func (f *fakeCRM) LatestForClient(ctx context.Context, clientID, workspaceID string) (*Estimate, error) {
	if f.estimateErr != nil {
		return nil, f.estimateErr
	}
	return f.estimate, nil
}

func (f *fakeCRM) AppendNotes(ctx context.Context, id, notes string) error {
	f.dispositions = append(f.dispositions, notes)
	return nil
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		client: &ClientProfile{
			ID:        "client-1",
			FirstName: "Dana",
			LastName:  "Reyes",
			Phone:     "+15551234567",
			Email:     "dana@example.com",
		},
	}
}

func newPipeline(f *fakeCRM) *Pipeline {
	return New(f, f, f, f, f, f)
}

func completedCall(purpose domain.CallPurpose, result *domain.CallResult) *domain.VoiceCall {
	return &domain.VoiceCall{
		ID:          "call-1",
		WorkspaceID: "ws-1",
		ClientID:    "client-1",
		PhoneNumber: "+15551234567",
		Direction:   domain.CallDirectionOutbound,
		Status:      domain.CallStatusCompleted,
		CallPurpose: purpose,
		Duration:    90,
		CallResult:  result,
		StartedAt:   time.Now().Add(-2 * time.Minute),
	}
}

func TestRunCreatesCallNote(t *testing.T) {
	f := newFakeCRM()
	p := newPipeline(f)

	call := completedCall(domain.CallPurposeGeneral, &domain.CallResult{
		Sentiment:  domain.SentimentPositive,
		Notes:      "Client happy with progress.",
		NextAction: "Send invoice",
	})
	p.Run(context.Background(), call)

	require.Len(t, f.notes, 1)
	assert.Equal(t, "call-1", f.notes[0].VoiceCallID)
	assert.Contains(t, f.notes[0].Content, "Client happy with progress.")
	assert.Contains(t, f.notes[0].Content, "90s")
	assert.Equal(t, "Send invoice", f.notes[0].ActionItem)
}

func TestRunCallNoteFallsBackToTranscript(t *testing.T) {
	f := newFakeCRM()
	p := newPipeline(f)

	call := completedCall(domain.CallPurposeGeneral, nil)
	call.Transcript = "full transcript text"
	p.Run(context.Background(), call)

	require.Len(t, f.notes, 1)
	assert.Contains(t, f.notes[0].Content, "full transcript text")
}

func TestRunSchedulesAppointmentAndSkipsFollowUpEmail(t *testing.T) {
	f := newFakeCRM()
	p := newPipeline(f)

	appointmentDate := time.Now().AddDate(0, 0, 3)
	call := completedCall(domain.CallPurposeAppointmentScheduling, &domain.CallResult{
		Sentiment:            domain.SentimentPositive,
		Notes:                "Booked.",
		AppointmentScheduled: true,
		AppointmentDate:      &appointmentDate,
		AppointmentType:      "site_visit",
	})
	p.Run(context.Background(), call)

	require.Len(t, f.appointments, 1)
	assert.Equal(t, "site_visit", f.appointments[0].AppointmentType)
	assert.Equal(t, "call-1", f.appointments[0].VoiceCallID)
	assert.Equal(t, 1, f.confirmCount)

	// The confirmation email already reached the client.
	assert.Empty(t, f.generalEmails)
	assert.Empty(t, f.estimateEmails)
}

func TestRunFollowUpEmailWhenConfirmationFails(t *testing.T) {
	f := newFakeCRM()
	f.confirmErr = errors.New("smtp down")
	p := newPipeline(f)

	appointmentDate := time.Now().AddDate(0, 0, 3)
	call := completedCall(domain.CallPurposeAppointmentScheduling, &domain.CallResult{
		AppointmentScheduled: true,
		AppointmentDate:      &appointmentDate,
	})
	p.Run(context.Background(), call)

	require.Len(t, f.appointments, 1)
	require.Len(t, f.generalEmails, 1)
	assert.Contains(t, f.generalEmails[0].Subject, "appointment times")
}

func TestRunAppointmentSkippedWithoutDate(t *testing.T) {
	f := newFakeCRM()
	p := newPipeline(f)

	call := completedCall(domain.CallPurposeAppointmentScheduling, &domain.CallResult{
		AppointmentScheduled: true,
	})
	p.Run(context.Background(), call)

	assert.Empty(t, f.appointments)
	require.Len(t, f.generalEmails, 1)
}

func TestRunEstimateFollowUpEmail(t *testing.T) {
	f := newFakeCRM()
	f.estimate = &Estimate{ID: "est-1", ClientID: "client-1", Title: "Kitchen remodel", Total: 24000}
	p := newPipeline(f)

	call := completedCall(domain.CallPurposeEstimateFollowUp, &domain.CallResult{
		Sentiment: domain.SentimentPositive,
	})
	p.Run(context.Background(), call)

	require.Len(t, f.estimateEmails, 1)
	assert.Equal(t, "est-1", f.estimateEmails[0].EstimateID)
	assert.Contains(t, f.estimateEmails[0].Body, "Kitchen remodel")
	assert.Empty(t, f.generalEmails)
}

func TestRunEstimateFollowUpSkippedWithoutEstimate(t *testing.T) {
	f := newFakeCRM()
	f.estimate = nil
	p := newPipeline(f)

	call := completedCall(domain.CallPurposeEstimateFollowUp, nil)
	p.Run(context.Background(), call)

	assert.Empty(t, f.estimateEmails)
	assert.Empty(t, f.generalEmails)
}

func TestRunNoEmailsWithoutClientEmail(t *testing.T) {
	f := newFakeCRM()
	f.client.Email = ""
	p := newPipeline(f)

	call := completedCall(domain.CallPurposeGeneral, nil)
	p.Run(context.Background(), call)

	require.Len(t, f.notes, 1)
	assert.Empty(t, f.generalEmails)
	assert.Empty(t, f.estimateEmails)
	assert.Equal(t, 0, f.confirmCount)
}

func TestRunCreatesFollowUpNote(t *testing.T) {
	f := newFakeCRM()
	p := newPipeline(f)

	followUpDate := time.Now().AddDate(0, 0, 7)
	call := completedCall(domain.CallPurposeFollowUp, &domain.CallResult{
		FollowUpRequired: true,
		FollowUpDate:     &followUpDate,
	})
	p.Run(context.Background(), call)

	require.Len(t, f.followUps, 1)
	require.NotNil(t, f.followUps[0].FollowUpAt)
	assert.Equal(t, followUpDate.Format("Jan 2, 2006"), f.followUps[0].FollowUpAt.Format("Jan 2, 2006"))
}

func TestRunStepsIsolatedFromFailures(t *testing.T) {
	f := newFakeCRM()
	f.noteErr = errors.New("notes service down")
	p := newPipeline(f)

	appointmentDate := time.Now().AddDate(0, 0, 3)
	followUpDate := time.Now().AddDate(0, 0, 7)
	call := completedCall(domain.CallPurposeAppointmentScheduling, &domain.CallResult{
		AppointmentScheduled: true,
		AppointmentDate:      &appointmentDate,
		FollowUpRequired:     true,
		FollowUpDate:         &followUpDate,
	})
	p.Run(context.Background(), call)

	// The failed note step must not block the other three.
	require.Len(t, f.notes, 1)
	require.Len(t, f.appointments, 1)
	require.Len(t, f.followUps, 1)
}

func TestRunSchedulingConflictIsNonFatal(t *testing.T) {
	f := newFakeCRM()
	f.scheduleErr = &domain.SchedulingConflictError{Detail: "slot taken"}
	p := newPipeline(f)

	appointmentDate := time.Now().AddDate(0, 0, 3)
	call := completedCall(domain.CallPurposeAppointmentScheduling, &domain.CallResult{
		AppointmentScheduled: true,
		AppointmentDate:      &appointmentDate,
	})

	assert.NotPanics(t, func() { p.Run(context.Background(), call) })

	// No confirmation could be sent, so the follow-up email still goes out.
	require.Len(t, f.generalEmails, 1)
}

func TestRunRecordsDispositionOnCall(t *testing.T) {
	f := newFakeCRM()
	p := newPipeline(f)

	appointmentDate := time.Now().AddDate(0, 0, 3)
	call := completedCall(domain.CallPurposeAppointmentScheduling, &domain.CallResult{
		Sentiment:            domain.SentimentPositive,
		AppointmentScheduled: true,
		AppointmentDate:      &appointmentDate,
	})
	p.Run(context.Background(), call)

	require.Len(t, f.dispositions, 1)
	assert.Contains(t, f.dispositions[0], "Post-call processing complete")
	assert.Contains(t, f.dispositions[0], "confirmation emailed")
}

func TestRunWithoutRecorderSkipsDisposition(t *testing.T) {
	f := newFakeCRM()
	p := New(f, f, f, f, f, nil)

	call := completedCall(domain.CallPurposeGeneral, nil)
	assert.NotPanics(t, func() { p.Run(context.Background(), call) })
	assert.Empty(t, f.dispositions)
}

func TestRunContinuesWhenClientLookupFails(t *testing.T) {
	f := newFakeCRM()
	f.clientErr = errors.New("crm unreachable")
	p := newPipeline(f)

	call := completedCall(domain.CallPurposeGeneral, &domain.CallResult{Notes: "ok"})
	p.Run(context.Background(), call)

	require.Len(t, f.notes, 1)
	assert.Empty(t, f.generalEmails)
}
