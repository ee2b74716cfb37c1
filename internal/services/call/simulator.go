package call

import (
	"context"
	"fmt"
	"time"

	"github.com/remodely/crm-voice-service/internal/config"
	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// simulatedCallDuration is the duration recorded for simulated calls.
const simulatedCallDuration = 45

// Simulator produces call outcomes when no real provider is available, so the
// rest of the product keeps working against realistic data. Outcomes are
// deterministic per purpose; the values come from configuration.
type Simulator struct {
	cfg       config.SimulationConfig
	scheduler Scheduler
	lifecycle *Lifecycle
}

// NewSimulator creates the simulation fallback.
func NewSimulator(cfg config.SimulationConfig, scheduler Scheduler, lifecycle *Lifecycle) *Simulator {
	if cfg.Delay <= 0 {
		cfg.Delay = 3 * time.Second
	}
	if cfg.AppointmentLeadDays <= 0 {
		cfg.AppointmentLeadDays = 3
	}
	if cfg.FollowUpLeadDays <= 0 {
		cfg.FollowUpLeadDays = 7
	}
	if cfg.AppointmentType == "" {
		cfg.AppointmentType = "consultation"
	}
	return &Simulator{cfg: cfg, scheduler: scheduler, lifecycle: lifecycle}
}

// ScheduleCompletion completes the call after the configured delay with the
// canonical outcome for its purpose. The completion goes through the normal
// lifecycle transition, so the post-call pipeline fires exactly as it would
// for a real call.
func (s *Simulator) ScheduleCompletion(call *domain.VoiceCall) {
	callID := call.ID
	purpose := call.CallPurpose

	s.scheduler.AfterFunc(s.cfg.Delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result := s.Outcome(purpose, time.Now())
		duration := simulatedCallDuration
		transcript := simulatedTranscript(purpose)

		_, err := s.lifecycle.ApplyTransition(ctx, callID, domain.CallStatusCompleted, TransitionPayload{
			Duration:   &duration,
			Transcript: &transcript,
			Result:     result,
		})
		if err != nil {
			logger.Base().Error("simulated completion failed",
				zap.String("call_id", callID),
				zap.Error(err),
			)
			return
		}
		logger.Base().Info("simulated call completed",
			zap.String("call_id", callID),
			zap.String("purpose", string(purpose)),
		)
	})
}

// Outcome builds the canonical simulated result for a purpose as of now.
func (s *Simulator) Outcome(purpose domain.CallPurpose, now time.Time) *domain.CallResult {
	switch purpose {
	case domain.CallPurposeAppointmentScheduling:
		appointmentDate := now.AddDate(0, 0, s.cfg.AppointmentLeadDays)
		return &domain.CallResult{
			Sentiment:            domain.SentimentPositive,
			Notes:                "Client agreed to schedule an appointment during the call.",
			NextAction:           "Confirm appointment details",
			AppointmentScheduled: true,
			AppointmentDate:      &appointmentDate,
			AppointmentType:      s.cfg.AppointmentType,
		}

	case domain.CallPurposeEstimateFollowUp:
		followUpDate := now.AddDate(0, 0, s.cfg.FollowUpLeadDays)
		return &domain.CallResult{
			Sentiment:        domain.SentimentNeutral,
			Notes:            "Client is still reviewing the estimate.",
			NextAction:       "Send estimate follow-up email",
			EstimateStatus:   "under_review",
			FollowUpRequired: true,
			FollowUpDate:     &followUpDate,
		}

	case domain.CallPurposeFollowUp:
		return &domain.CallResult{
			Sentiment:  domain.SentimentPositive,
			Notes:      "Client is happy with progress. No open items.",
			NextAction: "None",
		}

	default:
		return &domain.CallResult{
			Sentiment: domain.SentimentNeutral,
			Notes:     "Spoke with the client and shared project updates.",
		}
	}
}

func simulatedTranscript(purpose domain.CallPurpose) string {
	return fmt.Sprintf("[simulated %s call] Agent introduced the company, confirmed the client's availability, and wrapped up with agreed next steps.", purpose)
}
