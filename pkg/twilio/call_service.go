package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"

	"github.com/remodely/crm-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when the service has no Twilio credentials.
var ErrNotConfigured = errors.New("twilio credentials not configured")

// statusCallbackEvents are the call progress events Twilio reports back.
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// CallService places outbound calls through the Twilio REST API.
// If credentials are missing the service is disabled and every PlaceCall
// returns ErrNotConfigured, which callers treat as a fallback signal.
type CallService struct {
	client  *twilio.RestClient
	limiter *rate.Limiter
	enabled bool
	from    string
}

// NewCallService creates a new Twilio call service. If accountSID or authToken
// is empty the service is disabled rather than failing construction.
func NewCallService(accountSID, authToken, fromNumber string, callsPerSecond float64) *CallService {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		logger.Base().Info("Twilio credentials not provided, telephony disabled")
		return &CallService{enabled: false}
	}

	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}

	return &CallService{
		client:  twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}),
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), 1),
		enabled: true,
		from:    fromNumber,
	}
}

// IsConfigured reports whether the service can place real calls.
func (s *CallService) IsConfigured() bool {
	return s.enabled
}

// From returns the configured caller number, empty when disabled.
func (s *CallService) From() string {
	return s.from
}

// PlaceCall asks Twilio to dial toNumber. voiceURL serves the call content
// (TwiML) and statusCallbackURL receives asynchronous call progress events.
// On success the provider's call SID is returned.
func (s *CallService) PlaceCall(ctx context.Context, toNumber, voiceURL, statusCallbackURL string) (string, error) {
	if !s.enabled {
		return "", ErrNotConfigured
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}

	params := &api.CreateCallParams{}
	params.SetTo(toNumber)
	params.SetFrom(s.from)
	params.SetUrl(voiceURL)
	params.SetStatusCallback(statusCallbackURL)
	params.SetStatusCallbackEvent(statusCallbackEvents)
	params.SetStatusCallbackMethod("POST")

	resp, err := s.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio create call: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("twilio create call: response missing sid")
	}

	logger.Base().Info("Twilio call placed",
		zap.String("to", toNumber),
		zap.String("provider_call_id", *resp.Sid),
	)
	return *resp.Sid, nil
}
