package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iris-chat/warden/automod/maintenance"
	"github.com/iris-chat/warden/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "group chat moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"WARDEN_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: json or text",
			Value:   "json",
			EnvVars: []string{"WARDEN_LOG_FMT", "LOG_FORMAT"},
		},
		&cli.IntFlag{
			Name:    "max-metadb-connections",
			EnvVars: []string{"MAX_METADB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		checkScheduleCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "telegram-token",
			Usage:   "bot API token; when empty, the bot runs in dry mode and takes no actions",
			EnvVars: []string{"WARDEN_TELEGRAM_TOKEN", "TELEGRAM_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "telegram-api-endpoint",
			Usage:   "bot API endpoint format string, for self-hosted API servers",
			EnvVars: []string{"WARDEN_TELEGRAM_API_ENDPOINT"},
		},
		&cli.Int64Flag{
			Name:    "bot-id",
			Usage:   "account ID of the bot; only needed in dry mode, otherwise discovered from the API",
			EnvVars: []string{"WARDEN_BOT_ID"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "sqlite:// or postgres:// URL for persistent state; in-memory state when empty",
			Value:   "sqlite://data/warden/warden.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis server URL, for strike counts, policy caching, and the update offset",
			EnvVars: []string{"WARDEN_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook, for escalation notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "number of events processed in parallel",
			Value:   8,
			EnvVars: []string{"WARDEN_WORKERS"},
		},
		&cli.IntFlag{
			Name:    "max-queue",
			Usage:   "max pending events per sender; further events are dropped (0 for unbounded)",
			Value:   100,
			EnvVars: []string{"WARDEN_MAX_QUEUE"},
		},
		&cli.StringFlag{
			Name:    "maintenance-cron",
			Usage:   "cron schedule for retention and cleanup jobs",
			Value:   maintenance.DefaultSchedule,
			EnvVars: []string{"WARDEN_MAINTENANCE_CRON"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := cliutil.SetupSlog(os.Stdout, cliutil.LogOptions{
			LogFormat: cctx.String("log-format"),
			LogLevel:  cctx.String("log-level"),
		})
		if err != nil {
			return err
		}

		shutdownOTEL := configOTEL("warden")
		defer shutdownOTEL()

		srv, err := NewServer(ctx, Config{
			TelegramToken:    cctx.String("telegram-token"),
			TelegramEndpoint: cctx.String("telegram-api-endpoint"),
			BotID:            cctx.Int64("bot-id"),
			DatabaseURL:      cctx.String("database-url"),
			MaxDBConnections: cctx.Int("max-metadb-connections"),
			RedisURL:         cctx.String("redis-url"),
			SlackWebhookURL:  cctx.String("slack-webhook-url"),
			Workers:          cctx.Int("workers"),
			MaxQueue:         cctx.Int("max-queue"),
			MaintenanceCron:  cctx.String("maintenance-cron"),
			Logger:           logger,
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run warden service: %w", err)
		}
		return nil
	},
}

var checkScheduleCmd = &cli.Command{
	Name:      "check-schedule",
	Usage:     "validate a maintenance cron expression",
	ArgsUsage: "<cron-expression>",
	Action: func(cctx *cli.Context) error {
		expr := cctx.Args().First()
		if expr == "" {
			return fmt.Errorf("need a cron expression as an argument")
		}
		if err := maintenance.ValidateSchedule(expr); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}
