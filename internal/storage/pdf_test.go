package storage

import (
	"bytes"
	"testing"
	"time"

	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCallSummaryPDF(t *testing.T) {
	endedAt := time.Now()
	appointmentDate := endedAt.AddDate(0, 0, 3)
	call := &domain.VoiceCall{
		ID:          "call-1",
		WorkspaceID: "ws-1",
		ClientID:    "client-1",
		PhoneNumber: "+15551234567",
		Direction:   domain.CallDirectionOutbound,
		Status:      domain.CallStatusCompleted,
		CallPurpose: domain.CallPurposeAppointmentScheduling,
		Duration:    90,
		Transcript:  "Agent: hello. Client: hi.",
		Simulated:   true,
		StartedAt:   endedAt.Add(-90 * time.Second),
		EndedAt:     &endedAt,
		CallResult: &domain.CallResult{
			Sentiment:            domain.SentimentPositive,
			Notes:                "Appointment booked.",
			NextAction:           "Confirm details",
			AppointmentScheduled: true,
			AppointmentDate:      &appointmentDate,
			AppointmentType:      "consultation",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCallSummaryPDF(call, &buf))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 500)
}

func TestWriteCallSummaryPDFMinimalCall(t *testing.T) {
	call := &domain.VoiceCall{
		ID:          "call-2",
		WorkspaceID: "ws-1",
		ClientID:    "client-1",
		PhoneNumber: "+15551234567",
		Status:      domain.CallStatusFailed,
		CallPurpose: domain.CallPurposeGeneral,
		StartedAt:   time.Now(),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCallSummaryPDF(call, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}
