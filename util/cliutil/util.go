package cliutil

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type DatabaseTarget struct {
	// "sqlite" or "postgres"
	Driver string
	DSN    string
}

func (t DatabaseTarget) InMemory() bool {
	return t.Driver == "sqlite" && strings.HasPrefix(t.DSN, ":memory:")
}

// Accepted forms are "sqlite://<path>" (including "sqlite://:memory:"), "postgres://...", "postgresql://..." and "postgres=<dsn>".
func ParseDatabaseURL(dburl string) (DatabaseTarget, error) {
	switch {
	case strings.HasPrefix(dburl, "sqlite://"):
		path := strings.TrimPrefix(dburl, "sqlite://")
		if path == "" {
			return DatabaseTarget{}, fmt.Errorf("sqlite database url has no path")
		}
		return DatabaseTarget{Driver: "sqlite", DSN: path}, nil
	case strings.HasPrefix(dburl, "postgresql://"), strings.HasPrefix(dburl, "postgres://"):
		return DatabaseTarget{Driver: "postgres", DSN: dburl}, nil
	case strings.HasPrefix(dburl, "postgres="):
		return DatabaseTarget{Driver: "postgres", DSN: strings.TrimPrefix(dburl, "postgres=")}, nil
	}
	return DatabaseTarget{}, fmt.Errorf("unsupported database url scheme: %q", dburl)
}

// Opens the moderation database. gorm statements are logged through the default slog logger.
func SetupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	target, err := ParseDatabaseURL(dburl)
	if err != nil {
		return nil, err
	}

	var dial gorm.Dialector
	openConns := maxConnections
	switch target.Driver {
	case "sqlite":
		if !target.InMemory() {
			if err := os.MkdirAll(filepath.Dir(target.DSN), os.ModePerm); err != nil {
				return nil, fmt.Errorf("creating sqlite directory: %w", err)
			}
		}
		dial = sqlite.Open(target.DSN)
		// ":memory:" databases are per-connection, and files hit SQLITE_BUSY with concurrent writers
		openConns = 1
	case "postgres":
		dial = postgres.Open(target.DSN)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(slogGorm.WithLogger(slog.Default().With("system", "gorm"))),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", target.Driver, err)
	}
	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	if openConns <= 0 {
		openConns = 10
	}
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetMaxIdleConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if target.Driver == "sqlite" && !target.InMemory() {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=normal;"} {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
			}
		}
	}
	return db, nil
}

// Parses a redis URL and checks the connection.
func SetupRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

type LogOptions struct {
	// text|json
	LogFormat string

	// debug|info|warn|error
	LogLevel string
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

// Builds the process logger and installs it as the slog default.
//
// Empty options fall back to WARDEN_LOG_LEVEL (or LOG_LEVEL) and WARDEN_LOG_FMT, then to "info" and "json".
func SetupSlog(out io.Writer, options LogOptions) (*slog.Logger, error) {
	if options.LogLevel == "" {
		options.LogLevel = cmp.Or(os.Getenv("WARDEN_LOG_LEVEL"), os.Getenv("LOG_LEVEL"))
	}
	if options.LogFormat == "" {
		options.LogFormat = os.Getenv("WARDEN_LOG_FMT")
	}
	level, err := ParseLevel(options.LogLevel)
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(options.LogFormat) {
	case "", "json":
		handler = slog.NewJSONHandler(out, hopts)
	case "text":
		handler = slog.NewTextHandler(out, hopts)
	default:
		return nil, fmt.Errorf("unknown log format: %q", options.LogFormat)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

