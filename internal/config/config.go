package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TelephonyConfig holds the telephony provider credentials. An empty account
// SID or auth token means the provider is unconfigured and call placement
// degrades to the simulation fallback.
type TelephonyConfig struct {
	AccountSID     string
	AuthToken      string
	FromNumber     string
	CallsPerSecond float64
}

// VoiceSynthConfig holds the voice-synthesis provider credentials.
type VoiceSynthConfig struct {
	BaseURL        string
	APIKey         string
	DefaultAgentID string
}

// SimulationConfig controls the simulated call outcomes. The exact values are
// a product decision, so they are configuration rather than hardcoded.
type SimulationConfig struct {
	Delay               time.Duration
	AppointmentLeadDays int
	FollowUpLeadDays    int
	AppointmentType     string
}

// CRMConfig holds the settings for the CRM backend API this service calls
// into for notes, appointments, emails and lookups.
type CRMConfig struct {
	BaseURL     string
	JWTSecret   string
	ServiceName string
}

// RedisConfig holds optional cache settings. An empty host disables caching.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Config is the top-level service configuration, injected explicitly at
// construction. Orchestration code never reads the environment directly.
type Config struct {
	Port            string
	CallbackBaseURL string
	EnableCORS      bool

	Telephony  TelephonyConfig
	VoiceSynth VoiceSynthConfig
	Simulation SimulationConfig
	CRM        CRMConfig
	Redis      RedisConfig
}

// LoadFromEnv builds the configuration from environment variables.
func LoadFromEnv() *Config {
	port := getEnvOrDefault("PORT", "8082")

	return &Config{
		Port:            port,
		CallbackBaseURL: getEnvOrDefault("CALLBACK_BASE_URL", fmt.Sprintf("http://localhost:%s", port)),
		EnableCORS:      getEnvAsBoolOrDefault("ENABLE_CORS", true),

		Telephony: TelephonyConfig{
			AccountSID:     getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
			AuthToken:      getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
			FromNumber:     getEnvOrDefault("TWILIO_FROM_NUMBER", ""),
			CallsPerSecond: getEnvAsFloatOrDefault("TWILIO_CALLS_PER_SECOND", 1),
		},

		VoiceSynth: VoiceSynthConfig{
			BaseURL:        getEnvOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
			APIKey:         getEnvOrDefault("ELEVENLABS_API_KEY", ""),
			DefaultAgentID: getEnvOrDefault("ELEVENLABS_AGENT_ID", ""),
		},

		Simulation: SimulationConfig{
			Delay:               getEnvAsDurationOrDefault("SIMULATION_DELAY", 3*time.Second),
			AppointmentLeadDays: getEnvAsIntOrDefault("SIMULATION_APPOINTMENT_LEAD_DAYS", 3),
			FollowUpLeadDays:    getEnvAsIntOrDefault("SIMULATION_FOLLOW_UP_LEAD_DAYS", 7),
			AppointmentType:     getEnvOrDefault("SIMULATION_APPOINTMENT_TYPE", "consultation"),
		},

		CRM: CRMConfig{
			BaseURL:     getEnvOrDefault("CRM_API_BASE_URL", ""),
			JWTSecret:   getEnvOrDefault("CRM_API_JWT_SECRET", ""),
			ServiceName: getEnvOrDefault("CRM_API_SERVICE_NAME", "crm-voice-service"),
		},

		Redis: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", ""),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvAsIntOrDefault("REDIS_DB", 0),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
