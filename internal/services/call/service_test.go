package call

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/remodely/crm-voice-service/internal/config"
	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/internal/repository"
	"github.com/remodely/crm-voice-service/internal/services/pipeline"
	"github.com/remodely/crm-voice-service/internal/voicesynth"
	"github.com/remodely/crm-voice-service/pkg/twilio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	profile *pipeline.ClientProfile
	err     error
}

func (d *fakeDirectory) GetClient(ctx context.Context, clientID, workspaceID string) (*pipeline.ClientProfile, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.profile, nil
}

type serviceFixture struct {
	service   *Service
	repo      *repository.MemoryVoiceCallRepository
	scheduler *ManualScheduler
	runner    *recordingPipeline
}

// newServiceFixture builds a service with no providers configured, so every
// placement goes through the simulation fallback.
func newServiceFixture(t *testing.T, directory pipeline.ClientDirectory) *serviceFixture {
	t.Helper()

	repo := repository.NewMemoryVoiceCallRepository()
	runner := newRecordingPipeline()
	lifecycle := NewLifecycle(repo, runner)
	scheduler := NewManualScheduler()
	simulator := NewSimulator(testSimulationConfig(), scheduler, lifecycle)

	cfg := &config.Config{
		Port:            "8082",
		CallbackBaseURL: "http://localhost:8082",
		Simulation:      testSimulationConfig(),
	}

	telephony := twilio.NewCallService("", "", "", 0)
	synth := voicesynth.NewNegotiator(voicesynth.Config{}, nil)

	return &serviceFixture{
		service:   NewService(cfg, repo, lifecycle, directory, telephony, synth, simulator),
		repo:      repo,
		scheduler: scheduler,
		runner:    runner,
	}
}

func TestCallbackURLsEmbedCallIDAndPurpose(t *testing.T) {
	fx := newServiceFixture(t, nil)

	voiceURL, statusURL := fx.service.callbackURLs("call-1", domain.CallPurposeAppointmentScheduling)

	for _, raw := range []string{voiceURL, statusURL} {
		parsed, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "call-1", parsed.Query().Get("callId"))
		assert.Equal(t, string(domain.CallPurposeAppointmentScheduling), parsed.Query().Get("purpose"))
	}
	assert.Contains(t, voiceURL, "/api/voice-agent/webhook/voice?")
	assert.Contains(t, statusURL, "/api/voice-agent/webhook/call-status?")
}

func TestPlaceOutboundCallFallsBackToSimulation(t *testing.T) {
	directory := &fakeDirectory{profile: &pipeline.ClientProfile{
		ID:        "client-1",
		FirstName: "Dana",
		LastName:  "Reyes",
		Phone:     "+15559876543",
		Email:     "dana@example.com",
	}}
	fx := newServiceFixture(t, directory)

	handle, err := fx.service.PlaceOutboundCall(context.Background(), PlaceCallRequest{
		ClientID:    "client-1",
		WorkspaceID: "ws-1",
		Purpose:     domain.CallPurposeGeneral,
	})
	require.NoError(t, err)

	assert.True(t, handle.Simulated)
	assert.Equal(t, "simulation", handle.Provider)
	assert.NotEmpty(t, handle.CallID)
	assert.Equal(t, domain.CallStatusInitiated, handle.Status)

	stored, err := fx.repo.GetByID(context.Background(), handle.CallID)
	require.NoError(t, err)
	assert.True(t, stored.Simulated)
	assert.Equal(t, "+15559876543", stored.PhoneNumber, "phone resolved from client profile")
	assert.Equal(t, domain.CallDirectionOutbound, stored.Direction)

	// The simulated call completes once the delay elapses, and the post-call
	// pipeline fires.
	fx.scheduler.Advance(3 * time.Second)

	stored, err = fx.repo.GetByID(context.Background(), handle.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, stored.Status)
	fx.runner.waitForRun(t)
}

func TestPlaceOutboundCallExplicitPhoneWins(t *testing.T) {
	directory := &fakeDirectory{profile: &pipeline.ClientProfile{ID: "client-1", Phone: "+15550000000"}}
	fx := newServiceFixture(t, directory)

	handle, err := fx.service.PlaceOutboundCall(context.Background(), PlaceCallRequest{
		ClientID:    "client-1",
		WorkspaceID: "ws-1",
		PhoneNumber: "+15551112222",
	})
	require.NoError(t, err)

	stored, err := fx.repo.GetByID(context.Background(), handle.CallID)
	require.NoError(t, err)
	assert.Equal(t, "+15551112222", stored.PhoneNumber)
}

func TestPlaceOutboundCallRequiresPhone(t *testing.T) {
	fx := newServiceFixture(t, nil)

	_, err := fx.service.PlaceOutboundCall(context.Background(), PlaceCallRequest{
		ClientID:    "client-1",
		WorkspaceID: "ws-1",
	})
	assert.Error(t, err)
}

func TestPlaceOutboundCallRequiresIdentifiers(t *testing.T) {
	fx := newServiceFixture(t, nil)

	_, err := fx.service.PlaceOutboundCall(context.Background(), PlaceCallRequest{WorkspaceID: "ws-1"})
	assert.Error(t, err)

	_, err = fx.service.PlaceOutboundCall(context.Background(), PlaceCallRequest{ClientID: "client-1"})
	assert.Error(t, err)
}

func TestPurposeWrappersSetPurpose(t *testing.T) {
	tests := []struct {
		name    string
		place   func(fx *serviceFixture) (*CallHandle, error)
		purpose domain.CallPurpose
	}{
		{
			name: "schedule appointment",
			place: func(fx *serviceFixture) (*CallHandle, error) {
				return fx.service.ScheduleAppointmentCall(context.Background(), PlaceCallRequest{
					ClientID: "client-1", WorkspaceID: "ws-1", PhoneNumber: "+15551234567",
				})
			},
			purpose: domain.CallPurposeAppointmentScheduling,
		},
		{
			name: "estimate follow up",
			place: func(fx *serviceFixture) (*CallHandle, error) {
				return fx.service.EstimateFollowUpCall(context.Background(), PlaceCallRequest{
					ClientID: "client-1", WorkspaceID: "ws-1", PhoneNumber: "+15551234567",
				})
			},
			purpose: domain.CallPurposeEstimateFollowUp,
		},
		{
			name: "general follow up",
			place: func(fx *serviceFixture) (*CallHandle, error) {
				return fx.service.GeneralFollowUpCall(context.Background(), PlaceCallRequest{
					ClientID: "client-1", WorkspaceID: "ws-1", PhoneNumber: "+15551234567",
				})
			},
			purpose: domain.CallPurposeFollowUp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newServiceFixture(t, nil)
			handle, err := tt.place(fx)
			require.NoError(t, err)

			stored, err := fx.repo.GetByID(context.Background(), handle.CallID)
			require.NoError(t, err)
			assert.Equal(t, tt.purpose, stored.CallPurpose)
		})
	}
}

func TestDefaultPurposeIsGeneral(t *testing.T) {
	fx := newServiceFixture(t, nil)

	handle, err := fx.service.PlaceOutboundCall(context.Background(), PlaceCallRequest{
		ClientID: "client-1", WorkspaceID: "ws-1", PhoneNumber: "+15551234567",
	})
	require.NoError(t, err)

	stored, err := fx.repo.GetByID(context.Background(), handle.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallPurposeGeneral, stored.CallPurpose)
}

func TestUpdateCallStatusGoesThroughLifecycle(t *testing.T) {
	fx := newServiceFixture(t, nil)
	record := seedCall(t, fx.repo, domain.CallStatusRinging)

	updated, err := fx.service.UpdateCallStatus(context.Background(), record.ID, domain.CallStatusAnswered, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusAnswered, updated.Status)

	_, err = fx.service.UpdateCallStatus(context.Background(), record.ID, domain.CallStatusRinging, TransitionPayload{})
	var invalid *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestCallHistoryRequiresWorkspace(t *testing.T) {
	fx := newServiceFixture(t, nil)

	_, err := fx.service.CallHistory(context.Background(), "", repository.HistoryFilter{})
	assert.Error(t, err)
}
