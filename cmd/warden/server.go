package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/iris-chat/warden/automod"
	"github.com/iris-chat/warden/automod/auditlog"
	"github.com/iris-chat/warden/automod/cachestore"
	"github.com/iris-chat/warden/automod/consumer"
	"github.com/iris-chat/warden/automod/filterstore"
	"github.com/iris-chat/warden/automod/floodstore"
	"github.com/iris-chat/warden/automod/maintenance"
	"github.com/iris-chat/warden/automod/platform/telegram"
	"github.com/iris-chat/warden/automod/restriction"
	"github.com/iris-chat/warden/automod/rules"
	"github.com/iris-chat/warden/automod/settings"
	"github.com/iris-chat/warden/automod/strikestore"
	"github.com/iris-chat/warden/util"
	"github.com/iris-chat/warden/util/cliutil"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Server struct {
	logger          *slog.Logger
	engine          *automod.Engine
	consumer        *consumer.UpdateConsumer
	sweeper         *maintenance.Sweeper
	maintenanceCron string
	rdb             *redis.Client
}

type Config struct {
	TelegramToken    string
	TelegramEndpoint string
	BotID            int64
	DatabaseURL      string
	MaxDBConnections int
	RedisURL         string
	SlackWebhookURL  string
	Workers          int
	MaxQueue         int
	MaintenanceCron  string
	Logger           *slog.Logger
}

func NewServer(ctx context.Context, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if err := maintenance.ValidateSchedule(config.MaintenanceCron); err != nil {
		return nil, err
	}

	var (
		policies     settings.PolicyStore
		strikes      strikestore.StrikeStore
		filters      filterstore.Store
		restrictions restriction.Store
		audit        auditlog.AuditLog
	)
	if config.DatabaseURL != "" {
		db, err := cliutil.SetupDatabase(config.DatabaseURL, config.MaxDBConnections)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, err
		}
		if policies, err = settings.NewGormPolicyStore(db); err != nil {
			return nil, fmt.Errorf("initializing policy store: %w", err)
		}
		if strikes, err = strikestore.NewGormStrikeStore(db); err != nil {
			return nil, fmt.Errorf("initializing strike store: %w", err)
		}
		if filters, err = filterstore.NewGormStore(db); err != nil {
			return nil, fmt.Errorf("initializing filter store: %w", err)
		}
		if restrictions, err = restriction.NewGormStore(db); err != nil {
			return nil, fmt.Errorf("initializing restriction store: %w", err)
		}
		if audit, err = auditlog.NewGormAuditLog(db); err != nil {
			return nil, fmt.Errorf("initializing audit log: %w", err)
		}
	} else {
		logger.Warn("no database configured, all state is in-process and lost on restart")
		policies = settings.NewMemPolicyStore()
		strikes = strikestore.NewMemStrikeStore()
		filters = filterstore.NewMemStore()
		restrictions = restriction.NewMemStore()
		audit = auditlog.NewMemAuditLog()
	}

	var cache cachestore.CacheStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		var err error
		rdb, err = cliutil.SetupRedis(ctx, config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		// strike counters live in redis whenever it is configured
		strikes = strikestore.NewRedisStrikeStore(rdb)
		cache = cachestore.NewRedisCacheStore(rdb, 30*time.Minute)
	} else {
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
	}

	tg, err := telegram.NewClient(config.TelegramToken, config.TelegramEndpoint, logger)
	if err != nil {
		return nil, err
	}
	botID := tg.BotID()
	if botID == 0 {
		botID = config.BotID
	}

	clock := clockwork.NewRealClock()
	mgr := restriction.NewManager(restrictions, clock, logger)
	engine := automod.Engine{
		Logger:       logger,
		Rules:        rules.DefaultRules(),
		Policies:     &settings.CachedPolicyStore{Inner: policies, Cache: cache},
		Strikes:      strikes,
		Flood:        floodstore.NewDetector(),
		Duplicates:   floodstore.NewDuplicateDetector(),
		Filters:      filters,
		Matcher:      filterstore.NewMatcher(1_000),
		Restrictions: mgr,
		Audit:        audit,
		Platform:     tg,
		Clock:        clock,
		BotID:        botID,
	}
	mgr.OnAutoUnlock = engine.HandleAutoUnlock
	if config.SlackWebhookURL != "" {
		engine.Notifier = &automod.SlackNotifier{
			SlackWebhookURL: config.SlackWebhookURL,
			Client:          util.RobustHTTPClient(15 * time.Second),
		}
	}

	s := &Server{
		logger: logger,
		engine: &engine,
		consumer: &consumer.UpdateConsumer{
			Parallelism: config.Workers,
			MaxQueue:    config.MaxQueue,
			PollTimeout: 30,
			Logger:      logger.With("system", "consumer"),
			RedisClient: rdb,
			Engine:      &engine,
			Source:      tg,
		},
		sweeper: &maintenance.Sweeper{
			Engine: &engine,
			Logger: logger.With("system", "maintenance"),
		},
		maintenanceCron: config.MaintenanceCron,
		rdb:             rdb,
	}
	return s, nil
}

// Runs until ctx is cancelled (or the update source fails).
func (s *Server) Run(ctx context.Context) error {
	if err := s.engine.Restrictions.Rehydrate(ctx); err != nil {
		return fmt.Errorf("re-arming chat lock timers: %w", err)
	}
	defer s.engine.Restrictions.Close()
	if s.rdb != nil {
		defer s.rdb.Close()
	}

	sched, err := s.sweeper.Start(ctx, s.maintenanceCron)
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			s.logger.Error("failed to stop maintenance scheduler", "err", err)
		}
	}()

	s.logger.Info("warden starting", "botID", s.engine.BotID)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.consumer.RunPersistOffset(ctx)
	})
	eg.Go(func() error {
		// the offset writer exits once polling stops
		defer cancel()
		return s.consumer.Run(ctx)
	})
	return eg.Wait()
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}
