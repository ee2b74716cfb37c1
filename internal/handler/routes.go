package handler

import (
	"os"

	"github.com/gorilla/mux"
	"github.com/remodely/crm-voice-service/internal/adapters/crm"
	"github.com/remodely/crm-voice-service/internal/cache"
	"github.com/remodely/crm-voice-service/internal/config"
	"github.com/remodely/crm-voice-service/internal/repository"
	"github.com/remodely/crm-voice-service/internal/services/call"
	"github.com/remodely/crm-voice-service/internal/services/pipeline"
	"github.com/remodely/crm-voice-service/internal/voicesynth"
	"github.com/remodely/crm-voice-service/pkg/logger"
	"github.com/remodely/crm-voice-service/pkg/redis"
	"github.com/remodely/crm-voice-service/pkg/twilio"
	"go.uber.org/zap"
)

// HandlerManager wires configuration into repositories, services and
// handlers, and owns route registration.
type HandlerManager struct {
	config      *config.Config
	repoManager repository.RepositoryManager
	service     *call.Service
	redisSvc    *redis.Service

	voiceCallHandler *VoiceCallHandler
	webhookHandler   *WebhookHandler
}

// NewHandlerManager creates and initializes all handlers and services.
func NewHandlerManager(cfg *config.Config) (*HandlerManager, error) {
	// Postgres when configured, in-memory otherwise. The in-memory store keeps
	// demo environments working with zero external services.
	var repoManager repository.RepositoryManager
	if os.Getenv("DB_HOST") != "" {
		manager, err := repository.NewRepositoryManager()
		if err != nil {
			logger.Base().Error("failed to connect to database", zap.Error(err))
			return nil, err
		}
		repoManager = manager
	} else {
		logger.Base().Warn("DB_HOST not set, using in-memory call store")
		repoManager = repository.NewMemoryRepositoryManager()
	}

	var redisSvc *redis.Service
	if cfg.Redis.Host != "" {
		svc, err := redis.NewService(&redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize redis, running without cache", zap.Error(err))
		} else {
			redisSvc = svc
		}
	}

	crmClient := crm.NewClient(cfg.CRM)
	repo := repoManager.VoiceCall()

	var clients pipeline.ClientDirectory
	var postCall *pipeline.Pipeline
	if crmClient != nil {
		if redisSvc != nil {
			clients = cache.NewCachedClientDirectory(crmClient, redisSvc)
		} else {
			clients = crmClient
		}
		postCall = pipeline.New(clients, crmClient, crmClient, crmClient, crmClient, repo)
	}

	telephony := twilio.NewCallService(
		cfg.Telephony.AccountSID,
		cfg.Telephony.AuthToken,
		cfg.Telephony.FromNumber,
		cfg.Telephony.CallsPerSecond,
	)
	synth := voicesynth.NewNegotiator(voicesynth.Config{
		BaseURL:        cfg.VoiceSynth.BaseURL,
		APIKey:         cfg.VoiceSynth.APIKey,
		DefaultAgentID: cfg.VoiceSynth.DefaultAgentID,
	}, nil)

	var lifecycle *call.Lifecycle
	if postCall != nil {
		lifecycle = call.NewLifecycle(repo, postCall)
	} else {
		lifecycle = call.NewLifecycle(repo, nil)
	}

	simulator := call.NewSimulator(cfg.Simulation, call.NewTimerScheduler(), lifecycle)
	service := call.NewService(cfg, repo, lifecycle, clients, telephony, synth, simulator)

	return &HandlerManager{
		config:           cfg,
		repoManager:      repoManager,
		service:          service,
		redisSvc:         redisSvc,
		voiceCallHandler: NewVoiceCallHandler(service, telephony, synth),
		webhookHandler:   NewWebhookHandler(lifecycle),
	}, nil
}

// SetupAllRoutes registers every route on the router.
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	if hm.config.EnableCORS {
		router.Use(CORSMiddleware)
	}

	api := router.PathPrefix("/api/voice-agent").Subrouter()
	api.Use(LoggingMiddleware)
	api.Use(ValidationMiddleware)

	api.HandleFunc("/crm-call", hm.voiceCallHandler.HandleCRMCall).Methods("POST")
	api.HandleFunc("/schedule-appointment-call", hm.voiceCallHandler.HandleScheduleAppointmentCall).Methods("POST")
	api.HandleFunc("/estimate-follow-up-call", hm.voiceCallHandler.HandleEstimateFollowUpCall).Methods("POST")
	api.HandleFunc("/general-follow-up-call", hm.voiceCallHandler.HandleGeneralFollowUpCall).Methods("POST")
	api.HandleFunc("/elevenlabs-call", hm.voiceCallHandler.HandleElevenLabsCall).Methods("POST")

	api.HandleFunc("/update-call-status/{callId}", hm.voiceCallHandler.HandleUpdateCallStatus).Methods("PUT", "POST")
	api.HandleFunc("/call/{callId}", hm.voiceCallHandler.HandleGetCall).Methods("GET")
	api.HandleFunc("/call/{callId}/summary.pdf", hm.voiceCallHandler.HandleCallSummaryPDF).Methods("GET")
	api.HandleFunc("/call-history/{workspaceId}", hm.voiceCallHandler.HandleCallHistory).Methods("GET")
	api.HandleFunc("/status", hm.voiceCallHandler.HandleStatus).Methods("GET")

	api.HandleFunc("/webhook/call-status", hm.webhookHandler.HandleCallStatus).Methods("POST")
	api.HandleFunc("/webhook/voice", hm.webhookHandler.HandleVoice).Methods("POST", "GET")
}

// GetService returns the call service, for health checks and tests.
func (hm *HandlerManager) GetService() *call.Service {
	return hm.service
}

// Close releases external connections.
func (hm *HandlerManager) Close() {
	if hm.repoManager != nil {
		if err := hm.repoManager.Close(); err != nil {
			logger.Base().Warn("failed to close repository manager", zap.Error(err))
		}
	}
	if hm.redisSvc != nil {
		if err := hm.redisSvc.Close(); err != nil {
			logger.Base().Warn("failed to close redis", zap.Error(err))
		}
	}
}
