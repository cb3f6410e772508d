package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"searchbot/internal/config"
	"searchbot/internal/handlers"
	slackbot "searchbot/internal/integrations/slack"
	"searchbot/internal/logging"
	"searchbot/internal/middleware"
	"searchbot/internal/services"
	"searchbot/internal/vectara"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"
)

type ServiceBundle struct {
	Config        *config.Config
	Vectara       *vectara.Client
	SearchService *services.SearchService
	IndexService  *services.IndexService
	SlackClient   *slack.Client
	SlackListener *slackbot.Listener
	QueryHandler  *handlers.QueryHandler
}

func initializeServices(ctx context.Context, cfg *config.Config) (*ServiceBundle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Initializing services...", "environment", cfg.Environment)

	vectaraClient := vectara.NewClient(vectara.Config{
		AppID:       cfg.VectaraAppID,
		AppSecret:   cfg.VectaraAppSecret,
		CustomerID:  cfg.CustomerID(),
		CorpusID:    cfg.CorpusID(),
		AuthURL:     cfg.VectaraAuthURL,
		ServingURL:  cfg.VectaraServingURL,
		IndexingURL: cfg.VectaraIndexingURL,
		RerankerID:  cfg.RerankerID(),
		Timeout:     cfg.VectaraTimeout,
	})

	searchService := services.NewSearchService(vectaraClient, cfg.VectaraUseReranker)
	indexService := services.NewIndexService(vectaraClient, cfg.CustomerID(), cfg.CorpusID(), cfg.SlackWorkspaceSubdomain)

	slackClient := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	authCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	botUserID, err := slackbot.BotUserID(authCtx, slackClient)
	if err != nil {
		return nil, err
	}
	slog.Info("Bot user ID retrieved", "bot_user_id", botUserID)

	messenger := slackbot.NewAPIMessenger(slackClient, &http.Client{Timeout: cfg.VectaraTimeout})
	handler := slackbot.NewHandler(messenger, searchService, indexService, botUserID, cfg.SlashCommand)

	slog.Info("All services initialized successfully")

	return &ServiceBundle{
		Config:        cfg,
		Vectara:       vectaraClient,
		SearchService: searchService,
		IndexService:  indexService,
		SlackClient:   slackClient,
		SlackListener: slackbot.NewListener(slackClient, handler, cfg.SlackEventTimeout),
		QueryHandler:  handlers.NewQueryHandler(searchService, cfg.SlackEventTimeout),
	}, nil
}

func main() {
	cfg := config.Load()

	// Setup structured logging
	logging.SetupLogger(cfg.LogLevel, cfg.LogFormat, cfg.IsDevelopment())

	slog.Info("Starting searchbot", slog.String("version", "1.0.0"))

	// Create context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := services.SlackListener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Slack socket mode stopped", "error", err)
			cancel()
		}
	}()

	// Setup HTTP server with middleware
	router := mux.NewRouter()

	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.MetricsMiddleware)

	// API routes with rate limiting
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.APIRateLimitMiddleware())
	apiRouter.HandleFunc("/query", services.QueryHandler.HandleQuery).Methods("POST")

	// System routes
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !services.SlackListener.Connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Slack socket mode not connected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ready"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:         ":" + services.Config.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: services.Config.SlackEventTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		slog.Info("Server starting", slog.String("port", services.Config.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("Server shutting down...")

	// Shutdown server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully")
}
