package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"color-quiz-service/internal/allocator"
	"color-quiz-service/internal/app"
	"color-quiz-service/internal/config"
	"color-quiz-service/internal/infra/memory"
	"color-quiz-service/internal/infra/postgres"
	redisinfra "color-quiz-service/internal/infra/redis"
	"color-quiz-service/internal/infra/sqlite"
	"color-quiz-service/internal/logger"
	"color-quiz-service/internal/metrics"
	transport "color-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores groups the attempt persistence chosen by config.
type stores struct {
	attempts app.AttemptStore
	orders   app.OptionOrderStore
	pingers  []transport.Pinger
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := logger.New(cfg)
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	st, err := openStores(ctx, cfg, pool, redisClient, log)
	if err != nil {
		return err
	}
	defer st.close()

	bank, err := openBank(cfg, pool, redisClient)
	if err != nil {
		return err
	}

	categories, err := cfg.CategorySet()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	shuffler := app.NewRandShuffler()
	service := app.NewAttemptService(app.ServiceConfig{
		QuestionCount: cfg.Quiz.QuestionCount,
		Categories:    categories,
		Shuffler:      shuffler,
		Feeds:         memory.NewFeedStore(),
		Telemetry:     m,
	}, st.attempts, st.orders, bank, allocator.NewBalanced(bank, shuffler), log)

	router := transport.NewRouter(transport.RouterConfig{
		Attempts:       transport.NewAttemptHandler(service, log),
		WS:             transport.NewWSHandler(service, log),
		Metrics:        m,
		Health:         transport.HealthHandler(log, st.pingers...),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz service", zap.String("port", finalPort), zap.String("store", cfg.Driver()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, log *zap.Logger) (*stores, error) {
	st := &stores{}
	switch cfg.Driver() {
	case config.DriverPostgres:
		store := postgres.NewAttemptStore(pool)
		st.attempts, st.orders = store, store
		st.pingers = append(st.pingers, store)
	case config.DriverSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			path = "color-quiz.db"
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		st.closers = append(st.closers, func() { closeDB(db, log) })
		store := sqlite.NewAttemptStore(db)
		st.attempts, st.orders = store, store
		st.pingers = append(st.pingers, store)
	default:
		store := memory.NewAttemptStore()
		st.attempts, st.orders = store, store
		st.pingers = append(st.pingers, store)
	}

	if redisClient != nil {
		// the attempt store stays authoritative; Redis only serves repeat reads
		orders := redisinfra.NewOptionOrderCache(redisClient, st.orders, config.TTLDuration(cfg.Redis.TTL, time.Hour))
		st.orders = orders
		st.pingers = append(st.pingers, orders)
	}
	return st, nil
}

func openBank(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (app.QuestionBank, error) {
	var source app.QuestionBank
	switch cfg.BankSource() {
	case config.BankPostgres:
		source = postgres.NewQuestionBank(pool)
	default:
		path := cfg.Quiz.BankFile
		if path == "" {
			path = "config/questions.yaml"
		}
		bank, err := memory.LoadBankFile(path)
		if err != nil {
			return nil, fmt.Errorf("load question bank: %w", err)
		}
		source = bank
	}

	ttl := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	if redisClient != nil {
		return redisinfra.NewQuestionCache(redisClient, source, ttl), nil
	}
	return memory.NewQuestionCache(source, ttl), nil
}

func closeDB(db *sql.DB, log *zap.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}
