package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"splitledger/internal/config"
	"splitledger/internal/database"
	"splitledger/internal/events"
	"splitledger/internal/ledger"
	"splitledger/internal/logger"
	"splitledger/internal/metrics"
	"splitledger/internal/reminders"
	"splitledger/internal/router"
	"splitledger/internal/validator"
)

// @title           splitledger API
// @version         1.0
// @description     Shared expense tracking for groups: record who paid, see who owes whom, settle with the fewest transfers.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey InternalAPIKey
// @in header
// @name X-API-Key

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	reg := metrics.New()
	svc := router.NewServices(dbManager.DB(), ledger.New(appConfig.LedgerEpsilon), reg)
	if err := svc.Categories.EnsureDefaultCategories(); err != nil {
		return fmt.Errorf("failed to seed default categories: %w", err)
	}

	publisher, err := newPublisher(appConfig)
	if err != nil {
		return err
	}
	defer publisher.Close()

	reminderService := reminders.NewService(svc.Balances, svc.Users, newMailer(appConfig), reg)
	var scheduler *reminders.Scheduler
	if appConfig.RemindersEnabled() {
		scheduler, err = reminders.NewScheduler(reminderService, appConfig.ReminderSchedule)
		if err != nil {
			return err
		}
		scheduler.Start()
		log.Infof("Settlement reminders scheduled (%s), next run at %s", appConfig.ReminderSchedule, scheduler.NextRun().Format(time.RFC3339))
	}

	handler := router.New(svc, router.Options{
		Publisher:      publisher,
		Metrics:        reg,
		Reminders:      reminderService,
		InternalAPIKey: appConfig.InternalAPIKey,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting splitledger server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		logger.Get().Info("AMQP_URL not set, ledger events are not published")
		return events.NopPublisher{}, nil
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to message broker: %w", err)
	}
	return pub, nil
}

func newMailer(cfg *config.Config) reminders.Mailer {
	if cfg.SMTPHost == "" {
		return reminders.LogMailer{}
	}
	return reminders.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
}
