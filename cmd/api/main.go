package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	// Application Layer
	appService "medreminder/internal/application/service"
	"medreminder/internal/domain/repository"

	// Infrastructure Layer
	"medreminder/internal/infrastructure/database/redisstore"
	"medreminder/internal/infrastructure/database/sqlite"
	lineClient "medreminder/internal/infrastructure/line"
	"medreminder/internal/infrastructure/metrics"
	"medreminder/internal/infrastructure/notification"
	"medreminder/internal/infrastructure/scheduler"

	// Interfaces Layer
	"medreminder/internal/interfaces/api/handler"
	"medreminder/internal/interfaces/api/router"

	// Packages
	"medreminder/internal/pkg/config"
	appLogger "medreminder/internal/pkg/logger"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	configPath string
	portFlag   int
)

var rootCmd = &cobra.Command{
	Use:   "medreminder",
	Short: "Medication reminder API and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := appLogger.New(cfg.LogLevel)
		db, err := sqlite.NewDB(cfg.Database)
		if err != nil {
			return err
		}
		log.Info(fmt.Sprintf("Schema migrated (%s).", cfg.Database.Driver))
		return sqlite.CloseDB(db)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "HTTP port (overrides PORT)")
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig() (*config.Config, error) {
	if portFlag != 0 {
		os.Setenv("PORT", fmt.Sprint(portFlag))
	}
	return config.Load(configPath)
}

type app struct {
	server       *http.Server
	cron         *scheduler.Scheduler
	schedulerSvc appService.SchedulerService
	db           *gorm.DB
	redis        *redis.Client
	log          appLogger.Logger
	shutdownWait time.Duration
}

func gracefulShutdown(ctx context.Context, a *app) error {
	// Listen for the interrupt signal.
	<-ctx.Done()

	a.log.Info("Shutting down gracefully, press Ctrl+C again to force")

	// Hold due jobs before draining HTTP; anything left pending is restored on the next start.
	a.cron.Pause()

	// Stop accepting requests so no new jobs get armed.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownWait)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Server forced to shutdown", err)
	}

	// Stop the scheduler and let in-flight reminders finish
	a.log.Info("Stopping scheduler...")
	a.schedulerSvc.Stop()
	a.log.Info("Scheduler stopped.")

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("Error closing redis client", err)
		}
	}

	// Close database connection
	a.log.Info("Closing database connection...")
	if err := sqlite.CloseDB(a.db); err != nil {
		a.log.Error("Error closing database", err)
	} else {
		a.log.Info("Database connection closed.")
	}
	return nil
}

func serve(cfg *config.Config) error {
	// --- Initialization ---
	appLog := appLogger.New(cfg.LogLevel)
	appLog.Info("Logger initialized.")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---
	db, err := sqlite.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	userRepo := sqlite.NewUserRepository(db)
	medicationRepo := sqlite.NewMedicationRepository(db)

	var (
		jobRepo     repository.JobRepository
		redisClient *redis.Client
	)
	switch strings.ToLower(cfg.JobStore.Backend) {
	case "redis":
		redisClient, err = redisstore.NewClient(ctx, cfg.JobStore.RedisURL)
		if err != nil {
			return err
		}
		jobRepo = redisstore.NewJobRepository(redisClient)
	default:
		jobRepo = sqlite.NewJobRepository(db)
	}
	appLog.Info(fmt.Sprintf("Database and repositories initialized (db=%s, jobs=%s).", cfg.Database.Driver, cfg.JobStore.Backend))

	var line *lineClient.Client
	if cfg.Line.ChannelSecret != "" && cfg.Line.ChannelToken != "" {
		line, err = lineClient.NewClient(cfg.Line.ChannelSecret, cfg.Line.ChannelToken, appLog)
		if err != nil {
			return err
		}
	}
	var notifier appService.Notifier
	if strings.ToLower(cfg.Notify.Backend) == "line" {
		notifier = line
	} else {
		notifier = notification.NewLogNotifier(appLog)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	cronScheduler := scheduler.NewScheduler(appLog, loc)

	// --- Application Services ---
	// Initialize services (order matters for dependency injection workaround)
	clock := clockwork.NewRealClock()
	schedulerSvc := appService.NewSchedulerService(cronScheduler, jobRepo, collector, appLog)
	userSvc := appService.NewUserService(userRepo, appLog)
	dispatcher := appService.NewReminderDispatcher(medicationRepo, jobRepo, userSvc, notifier, collector, clock, appService.DispatchConfig{
		SendTimeout:  cfg.Notify.Timeout,
		MaxAttempts:  cfg.Notify.MaxAttempts,
		RetryBackoff: cfg.Notify.RetryBackoff,
	}, appLog)
	medicationSvc := appService.NewMedicationService(medicationRepo, schedulerSvc, dispatcher, clock, loc, appLog)
	appLog.Info("Application services initialized.")

	// --- Initialize Schedules ---
	cronScheduler.Start()
	appLog.Info("Initializing reminder schedules...")
	if err := medicationSvc.InitializeSchedules(ctx); err != nil {
		// Log the error but continue starting the server
		appLog.Error("Failed to initialize schedules on startup", err)
	}

	// --- API Handlers ---
	routerCfg := &router.Config{
		MedicationHandler: handler.NewMedicationHandler(medicationSvc, appLog),
		UserHandler:       handler.NewUserHandler(userSvc, appLog),
		Authenticator:     userSvc,
		MetricsHandler:    collector.Handler(),
		Logger:            appLog,
	}
	if line != nil {
		routerCfg.LineHandler = handler.NewLineHandler(line, appLog)
	}
	echoRouter := router.NewRouter(routerCfg)

	// --- HTTP Server ---
	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      echoRouter,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// --- Start Server & Shutdown Handling ---
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info(fmt.Sprintf("Server starting on port %d", cfg.Port))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return gracefulShutdown(gctx, &app{
			server:       apiServer,
			cron:         cronScheduler,
			schedulerSvc: schedulerSvc,
			db:           db,
			redis:        redisClient,
			log:          appLog,
			shutdownWait: cfg.ShutdownTimeout,
		})
	})

	if err := g.Wait(); err != nil {
		appLog.Error("Server stopped with error", err)
		return err
	}
	appLog.Info("Graceful shutdown complete.")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
