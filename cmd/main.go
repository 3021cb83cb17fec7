package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"use60backend/clients"
	anthropicclient "use60backend/clients/anthropic"
	justcallclient "use60backend/clients/justcall"
	slackclient "use60backend/clients/slack"
	"use60backend/clock"
	"use60backend/config"
	"use60backend/db"
	"use60backend/engagement"
	"use60backend/handlers"
	"use60backend/middleware"
	"use60backend/opsalert"
	"use60backend/services/activity"
	"use60backend/services/crmview"
	"use60backend/services/featuresettings"
	"use60backend/services/inapp"
	"use60backend/services/notifications"
	"use60backend/services/organizations"
	"use60backend/services/recipients"
	"use60backend/services/reengagement"
	"use60backend/services/transcripts"
	"use60backend/services/txmanager"
	"use60backend/services/usermetrics"
	"use60backend/services/users"
	"use60backend/usecases/dispatch"
	"use60backend/usecases/ingest"
	"use60backend/usecases/jobs"
	transcriptworker "use60backend/usecases/transcripts"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	// Initialize error alert middleware and the ops alerter
	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.SlackAlertConfig{
		WebhookURL:  cfg.AlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     "use60backend",
		LogsURL:     cfg.ServerLogsURL,
	})
	opsalert.Init(cfg.AlertWebhookURL, cfg.Environment)

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Initialize repositories with shared connection
	organizationsRepo := db.NewPostgresOrganizationsRepository(dbConn, cfg.DatabaseSchema)
	usersRepo := db.NewPostgresUsersRepository(dbConn, cfg.DatabaseSchema)
	userMetricsRepo := db.NewPostgresUserMetricsRepository(dbConn, cfg.DatabaseSchema)
	featureSettingsRepo := db.NewPostgresFeatureSettingsRepository(dbConn, cfg.DatabaseSchema)
	recipientsRepo := db.NewPostgresRecipientsRepository(dbConn, cfg.DatabaseSchema)
	sentLogRepo := db.NewPostgresSentLogRepository(dbConn, cfg.DatabaseSchema)
	queuedNotificationsRepo := db.NewPostgresQueuedNotificationsRepository(dbConn, cfg.DatabaseSchema)
	inAppNotificationsRepo := db.NewPostgresInAppNotificationsRepository(dbConn, cfg.DatabaseSchema)
	interactionsRepo := db.NewPostgresInteractionsRepository(dbConn, cfg.DatabaseSchema)
	activityRepo := db.NewPostgresActivityRepository(dbConn, cfg.DatabaseSchema)
	crmRepo := db.NewPostgresCRMRepository(dbConn, cfg.DatabaseSchema)
	callsRepo := db.NewPostgresCallsRepository(dbConn, cfg.DatabaseSchema)
	transcriptQueueRepo := db.NewPostgresTranscriptQueueRepository(dbConn, cfg.DatabaseSchema)
	reengagementRepo := db.NewPostgresReengagementRepository(dbConn, cfg.DatabaseSchema)

	// Initialize transaction manager
	txManager := txmanager.NewTransactionManager(dbConn)

	engagementCfg := engagement.DefaultConfig()
	clk := clock.SystemClock{}

	// Initialize services
	organizationsService := organizations.NewOrganizationsService(organizationsRepo)
	usersService := users.NewUsersService(usersRepo)
	recipientsService := recipients.NewRecipientsService(recipientsRepo)
	featureSettingsService := featuresettings.NewFeatureSettingsService(featureSettingsRepo)
	userMetricsService := usermetrics.NewUserMetricsService(
		userMetricsRepo,
		activityRepo,
		interactionsRepo,
		usersService,
		engagementCfg,
		clk.Now,
	)
	notificationsService := notifications.NewNotificationsService(sentLogRepo, queuedNotificationsRepo)
	inAppService := inapp.NewInAppNotificationsService(inAppNotificationsRepo)
	activityService := activity.NewActivityService(activityRepo, interactionsRepo, recipientsService)
	crmViewService := crmview.NewCRMViewService(crmRepo, clk.Now)
	transcriptsService := transcripts.NewTranscriptsService(callsRepo, transcriptQueueRepo, txManager)
	reengagementService := reengagement.NewReengagementService(reengagementRepo)

	// Initialize provider clients
	var insightClient clients.InsightClient
	if cfg.AnthropicConfig.IsConfigured() {
		insightClient = anthropicclient.NewAnthropicClient(cfg.AnthropicConfig.APIKey)
	}
	if !cfg.TelephonyConfig.CanFetchTranscripts() {
		log.Printf("⚠️ Telephony API credentials not set - transcript fetches will fail until configured")
	}
	transcriptClient := justcallclient.NewJustCallClient(
		cfg.TelephonyConfig.APIKey,
		cfg.TelephonyConfig.APISecret,
	)

	// Initialize usecases
	dispatchUseCase := dispatch.NewDispatchUseCase(
		organizationsService,
		usersService,
		featureSettingsService,
		recipientsService,
		userMetricsService,
		notificationsService,
		activityService,
		inAppService,
		slackclient.NewSlackClient,
		engagementCfg,
		clk,
	)
	jobsUseCase := jobs.NewJobsUseCase(
		organizationsService,
		usersService,
		featureSettingsService,
		recipientsService,
		userMetricsService,
		crmViewService,
		reengagementService,
		dispatchUseCase,
		engagementCfg,
		clk,
		cfg.SiteURL,
	)
	ingestUseCase := ingest.NewIngestUseCase(
		organizationsService,
		usersService,
		activityService,
		transcriptsService,
		cfg.TelephonyConfig,
		clk,
	)
	transcriptWorker := transcriptworker.NewWorkerUseCase(
		transcriptsService,
		transcriptClient,
		insightClient,
		dispatchUseCase,
		clk,
		cfg.SiteURL,
	)

	cronAuth := middleware.NewCronAuthMiddleware(cfg.CronSecret)
	cronHandler := handlers.NewCronHandler(jobsUseCase, dispatchUseCase, transcriptWorker)
	webhooksHandler := handlers.NewWebhooksHandler(
		cfg.SlackConfig.SigningSecret,
		ingestUseCase,
		organizationsService,
		activityService,
	)

	// Create a new router
	router := mux.NewRouter()

	// Setup endpoints with the new router
	cronHandler.SetupEndpoints(router, cronAuth)
	webhooksHandler.SetupEndpoints(router)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")

	// Start periodic draining of the notification queue and the transcript
	// fetch queue. The cron endpoints cover externally scheduled deployments;
	// this ticker keeps a standalone deployment moving on its own.
	drainTicker := time.NewTicker(1 * time.Minute)
	go func() {
		for range drainTicker.C {
			_ = alertMiddleware.WrapBackgroundTask("DrainDueNotifications", func() error {
				_, err := dispatchUseCase.DrainDueNotifications(context.Background())
				return err
			})()
			_ = alertMiddleware.WrapBackgroundTask("TranscriptWorkerTick", func() error {
				_, err := transcriptWorker.RunTick(context.Background())
				return err
			})()
		}
	}()
	defer drainTicker.Stop()

	// Setup CORS middleware
	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Setup and handle graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

func handleGracefulShutdown(server *http.Server) error {
	// Channel to listen for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown server gracefully
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
		return err
	}

	log.Printf("✅ Server stopped gracefully")
	return nil
}
