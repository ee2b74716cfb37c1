package call

import (
	"context"
	"testing"
	"time"

	"github.com/remodely/crm-voice-service/internal/config"
	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSimulationConfig() config.SimulationConfig {
	return config.SimulationConfig{
		Delay:               3 * time.Second,
		AppointmentLeadDays: 3,
		FollowUpLeadDays:    7,
		AppointmentType:     "consultation",
	}
}

func TestManualSchedulerAdvance(t *testing.T) {
	scheduler := NewManualScheduler()

	fired := 0
	scheduler.AfterFunc(2*time.Second, func() { fired++ })
	scheduler.AfterFunc(5*time.Second, func() { fired++ })

	scheduler.Advance(1 * time.Second)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 2, scheduler.Pending())

	scheduler.Advance(1 * time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, scheduler.Pending())

	scheduler.Advance(10 * time.Second)
	assert.Equal(t, 2, fired)
	assert.Equal(t, 0, scheduler.Pending())
}

func TestScheduleCompletionCompletesAfterDelay(t *testing.T) {
	repo := repository.NewMemoryVoiceCallRepository()
	runner := newRecordingPipeline()
	lifecycle := NewLifecycle(repo, runner)
	scheduler := NewManualScheduler()
	simulator := NewSimulator(testSimulationConfig(), scheduler, lifecycle)

	record := seedCall(t, repo, domain.CallStatusInitiated)
	record.CallPurpose = domain.CallPurposeAppointmentScheduling

	simulator.ScheduleCompletion(record)

	// Before the delay elapses the call is untouched.
	stored, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusInitiated, stored.Status)

	scheduler.Advance(3 * time.Second)

	stored, err = repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, stored.Status)
	assert.Equal(t, simulatedCallDuration, stored.Duration)
	assert.NotEmpty(t, stored.Transcript)
	require.NotNil(t, stored.CallResult)
	assert.True(t, stored.CallResult.AppointmentScheduled)
	require.NotNil(t, stored.EndedAt)

	runner.waitForRun(t)
}

func TestOutcomeAppointmentScheduling(t *testing.T) {
	simulator := NewSimulator(testSimulationConfig(), NewManualScheduler(), nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	result := simulator.Outcome(domain.CallPurposeAppointmentScheduling, now)

	assert.Equal(t, domain.SentimentPositive, result.Sentiment)
	assert.True(t, result.AppointmentScheduled)
	require.NotNil(t, result.AppointmentDate)
	assert.Equal(t, now.AddDate(0, 0, 3), *result.AppointmentDate)
	assert.Equal(t, "consultation", result.AppointmentType)
	assert.False(t, result.FollowUpRequired)
}

func TestOutcomeEstimateFollowUp(t *testing.T) {
	simulator := NewSimulator(testSimulationConfig(), NewManualScheduler(), nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	result := simulator.Outcome(domain.CallPurposeEstimateFollowUp, now)

	assert.Equal(t, domain.SentimentNeutral, result.Sentiment)
	assert.Equal(t, "under_review", result.EstimateStatus)
	assert.True(t, result.FollowUpRequired)
	require.NotNil(t, result.FollowUpDate)
	assert.Equal(t, now.AddDate(0, 0, 7), *result.FollowUpDate)
	assert.False(t, result.AppointmentScheduled)
}

func TestOutcomeFollowUp(t *testing.T) {
	simulator := NewSimulator(testSimulationConfig(), NewManualScheduler(), nil)

	result := simulator.Outcome(domain.CallPurposeFollowUp, time.Now())

	assert.Equal(t, domain.SentimentPositive, result.Sentiment)
	assert.False(t, result.FollowUpRequired)
	assert.Nil(t, result.FollowUpDate)
	assert.False(t, result.AppointmentScheduled)
}

func TestOutcomeDefaultPurpose(t *testing.T) {
	simulator := NewSimulator(testSimulationConfig(), NewManualScheduler(), nil)

	result := simulator.Outcome(domain.CallPurposeGeneral, time.Now())

	assert.Equal(t, domain.SentimentNeutral, result.Sentiment)
	assert.NotEmpty(t, result.Notes)
	assert.False(t, result.FollowUpRequired)
	assert.Nil(t, result.FollowUpDate)
	assert.False(t, result.AppointmentScheduled)
}

func TestOutcomeIsDeterministic(t *testing.T) {
	simulator := NewSimulator(testSimulationConfig(), NewManualScheduler(), nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	first := simulator.Outcome(domain.CallPurposeEstimateFollowUp, now)
	second := simulator.Outcome(domain.CallPurposeEstimateFollowUp, now)
	assert.Equal(t, first, second)
}

func TestNewSimulatorAppliesDefaults(t *testing.T) {
	simulator := NewSimulator(config.SimulationConfig{}, NewManualScheduler(), nil)

	result := simulator.Outcome(domain.CallPurposeAppointmentScheduling, time.Now())
	assert.Equal(t, "consultation", result.AppointmentType)
	require.NotNil(t, result.AppointmentDate)
}
