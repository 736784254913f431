package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sitebuilder/app/config"
	"sitebuilder/app/usecase"
	"sitebuilder/internal/domain/repository"
	"sitebuilder/internal/infrastructure/github"
	"sitebuilder/internal/infrastructure/gitrepo"
	"sitebuilder/internal/infrastructure/llm"
	"sitebuilder/internal/infrastructure/metrics"
	"sitebuilder/internal/infrastructure/store/filesystem"
	"sitebuilder/internal/infrastructure/store/memory"
	mongorepo "sitebuilder/internal/infrastructure/store/mongodb"
	"sitebuilder/internal/infrastructure/transport"
	"sitebuilder/internal/infrastructure/validator"
)

func main() {
	// load config
	cfg := config.Load()

	// logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if cfg.Server.Secret == "" {
		logger.Warn("SERVER_SECRET is not set, every task request will be rejected")
	}
	if cfg.GitHub.User == "" || cfg.GitHub.Token == "" {
		logger.Warn("GITHUB_USER / GITHUB_TOKEN not set, rounds will fail at repository sync")
	}

	// Round history: MongoDB when configured, memory otherwise.
	var rounds repository.RoundRepository
	var mongoClient *mongo.Client
	if cfg.Mongo.URI != "" {
		mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 30*time.Second)
		client, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			mongoCancel()
			logger.Error("mongo connect failed", "err", err)
			log.Fatalf("mongo connect: %v", err)
		}
		if err := client.Ping(mongoCtx, nil); err != nil {
			mongoCancel()
			logger.Error("mongo ping failed", "err", err)
			log.Fatalf("mongo ping: %v", err)
		}
		logger.Info("connected to mongo", "database", cfg.Mongo.Database)
		mongoClient = client
		rounds = mongorepo.NewMongoRoundRepo(mongoCtx, client.Database(cfg.Mongo.Database), logger)
		mongoCancel()
	} else {
		logger.Info("MONGO_URI not set, keeping round history in memory")
		rounds = memory.NewRoundRepo()
	}

	workspace, err := filesystem.NewWorkspace(cfg.Workspace.Root)
	if err != nil {
		logger.Error("init workspace failed", "root", cfg.Workspace.Root, "err", err)
		os.Exit(1)
	}

	// External collaborators
	llmClient := llm.NewOpenAIGenerator(
		cfg.LLM.APIKey,
		cfg.LLM.BaseURL,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.Timeout,
		logger,
	)
	ghClient := github.NewClient(cfg.GitHub.APIURL, cfg.GitHub.Token, cfg.GitHub.Timeout, logger)
	git := gitrepo.NewExecRunner(cfg.Workspace.GitBin, cfg.Workspace.GitTimeout, cfg.GitHub.Token)

	// Usecases / services
	artifacts := usecase.NewArtifactService(llmClient, validator.NewArtifactAnalyzer(), workspace, logger)
	hub := transport.NewHub(logger)
	taskSvc := usecase.NewTaskService(
		usecase.NewSecretVerifier(cfg.Server.Secret),
		gitrepo.NewSynchronizer(git, ghClient, cfg.GitHub.User, cfg.GitHub.Token, cfg.GitHub.Host, logger),
		artifacts,
		workspace,
		ghClient,
		gitrepo.NewPublisher(git, logger),
		rounds,
		hub,
		usecase.NewNotifier(cfg.Notify.MaxTries, cfg.Notify.InitialDelay, cfg.Notify.Timeout),
		usecase.TaskServiceConfig{
			Owner:            cfg.GitHub.User,
			Host:             cfg.GitHub.Host,
			NotifyEvaluation: cfg.Notify.Enabled,
		},
		logger,
	)

	// Transport (HTTP handlers)
	handler := transport.NewTaskHandler(taskSvc, hub, logger)

	// Router and server
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(corsHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      recovered,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go func() {
			logger.Info("starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.StartMetricsServer(cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", "addr", addr, "work_root", workspace.GetBasePath())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "err", err)
			cancel()
		}
	}()

	// OS signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	// Shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	logger.Info("waiting for evaluation callbacks")
	taskSvc.Wait()

	if mongoClient != nil {
		logger.Info("disconnecting mongo")
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.Error("mongo disconnect error", "err", err)
		}
	}

	logger.Info("service stopped")
}
