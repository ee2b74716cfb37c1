package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/remodely/crm-voice-service/internal/config"
	"github.com/remodely/crm-voice-service/internal/domain"
	"github.com/remodely/crm-voice-service/internal/services/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.CRMConfig{
		BaseURL:     serverURL,
		JWTSecret:   "test-secret",
		ServiceName: "crm-voice-service",
	})
}

func TestNewClientDisabledWithoutBaseURL(t *testing.T) {
	assert.Nil(t, NewClient(config.CRMConfig{}))
}

func TestGetClientDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/workspaces/ws-1/clients/client-1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]string{
				"id":         "client-1",
				"first_name": "Dana",
				"last_name":  "Reyes",
				"phone":      "+15551234567",
				"email":      "dana@example.com",
			},
		})
	}))
	t.Cleanup(server.Close)

	profile, err := newTestClient(server.URL).GetClient(context.Background(), "client-1", "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", profile.FullName())
	assert.Equal(t, "+15551234567", profile.Phone)
}

func TestRequestsCarrySignedServiceToken(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	t.Cleanup(server.Close)

	err := newTestClient(server.URL).CreateFromVoiceCall(context.Background(), pipeline.NoteRequest{
		ClientID: "client-1", WorkspaceID: "ws-1", VoiceCallID: "call-1", Content: "note",
	})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(authHeader, "Bearer "))
	raw := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "crm-voice-service", claims["iss"])
}

func TestConflictMapsToSchedulingConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "slot already booked",
		})
	}))
	t.Cleanup(server.Close)

	_, err := newTestClient(server.URL).ScheduleFromVoiceCall(context.Background(), pipeline.AppointmentRequest{
		ClientID: "client-1", WorkspaceID: "ws-1", VoiceCallID: "call-1",
		AppointmentDate: time.Now(), AppointmentType: "consultation", Duration: 60,
	})

	var conflict *domain.SchedulingConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Detail, "slot already booked")
}

func TestServerErrorSurfacesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "database unavailable",
		})
	}))
	t.Cleanup(server.Close)

	_, err := newTestClient(server.URL).GetClient(context.Background(), "client-1", "ws-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.Contains(t, err.Error(), "500")
}

func TestLatestForClientEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    []interface{}{},
		})
	}))
	t.Cleanup(server.Close)

	estimate, err := newTestClient(server.URL).LatestForClient(context.Background(), "client-1", "ws-1")
	require.NoError(t, err)
	assert.Nil(t, estimate)
}

func TestSendFollowUpEmails(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	t.Cleanup(server.Close)

	c := newTestClient(server.URL)
	req := pipeline.EmailRequest{ClientID: "client-1", WorkspaceID: "ws-1", Email: "dana@example.com"}

	sent, err := c.SendEstimateFollowUp(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = c.SendGeneralFollowUp(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, sent)

	require.Len(t, paths, 2)
	assert.Equal(t, "/api/workspaces/ws-1/emails/estimate-follow-up", paths[0])
	assert.Equal(t, "/api/workspaces/ws-1/emails/follow-up", paths[1])
}
