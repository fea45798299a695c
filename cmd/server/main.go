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

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pulse/internal/assistant"
	"pulse/internal/config"
	apphttp "pulse/internal/http"
	"pulse/internal/llm"
	"pulse/internal/notify"
	"pulse/internal/publisher"
	"pulse/internal/repository/sqlite"
	"pulse/internal/service"
	"pulse/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "HR self-service portal and back-office",
	Long: `Pulse serves the employee portal (vacations, payslips, time tracking,
benefits and the HR assistant) and the admin back-office.

Running pulse without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, createAdminCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	repos := sqlite.NewRepositories(db)
	if err := repos.Init(ctx); err != nil {
		return fmt.Errorf("init repositories: %w", err)
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	users := service.NewUserService(repos.Users, repos.Vacation, cfg.Vacation.DefaultDays)
	tokens := service.NewTokenService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	vacations := service.NewVacationService(repos.Vacation, repos.Holidays, repos.Users)
	payroll := service.NewPayrollService(repos.Payslips, repos.Users, service.DocumentConfig{
		Storage: storageSvc,
		Bucket:  cfg.Storage.Bucket,
		URLTTL:  time.Duration(cfg.Storage.URLTTLMinutes) * time.Minute,
	})
	times := service.NewTimeService(repos.Time)
	benefits := service.NewBenefitService(repos.Benefits, repos.Users)
	loader := service.NewContextLoader(repos.Users, vacations, payroll, benefits, times)

	client, err := buildLLM(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setup llm: %w", err)
	}
	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup notifier: %w", err)
	}
	rules, err := assistant.LoadRules(cfg.Chat.RulesFile)
	if err != nil {
		return fmt.Errorf("load escalation rules: %w", err)
	}
	chat := service.NewChatService(repos.Chat, loader, client, assistant.NewDetector(rules), notifier, service.ChatConfig{
		HistoryLimit: cfg.LLM.HistoryLimit,
		Logger:       logger,
	})
	logger.Infof("assistant model: %s, %d escalation rules", client.Name(), len(rules))

	var pub publisher.Manager
	if storageSvc != nil {
		pub = publisher.NewManager(publisher.Config{
			Bucket:        cfg.Storage.Bucket,
			KeyPrefix:     cfg.Storage.KeyPrefix,
			MaxConcurrent: cfg.Publisher.MaxConcurrent,
			Logger:        logger,
		}, payroll, users, storageSvc)
		if err := pub.Start(ctx); err != nil {
			return fmt.Errorf("start publisher: %w", err)
		}
		if err := pub.Resume(ctx); err != nil {
			logger.Warnf("resume payslip publishing: %v", err)
		}
		defer pub.Shutdown()
	} else {
		logger.Warn("no storage bucket configured, payslip documents will not be published")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Services{
		Users:     users,
		Tokens:    tokens,
		Vacations: vacations,
		Payroll:   payroll,
		Time:      times,
		Benefits:  benefits,
		Chat:      chat,
		Dashboard: loader,
		Overview:  service.NewOverviewService(repos.Users, repos.Vacation, repos.Chat),
		Publisher: pub,
		Storage:   storageSvc,
		Bucket:    cfg.Storage.Bucket,
		Logger:    logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
	return nil
}

// buildStorage returns nil when no bucket is configured; documents are then disabled.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	if cfg.LLM.Provider == config.LLMProviderGenAI {
		return llm.NewGenAIClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxOutputTokens)
	}
	return llm.NewStaticClient(""), nil
}

func buildNotifier(cfg config.Config, logger *logrus.Logger) (notify.Notifier, error) {
	if cfg.Telegram.Token == "" {
		return notify.NewLogNotifier(logger), nil
	}
	return notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
}
