package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/operand/pkg/cmd"
	"github.com/dukex/operand/pkg/log"
	"github.com/dukex/operand/pkg/otelhelper"
	"github.com/dukex/operand/pkg/runner"
	"github.com/dukex/operand/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "operand-runner",
		EnableShellCompletion: true,
		Usage:                 "Start the runner daemon that drives workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "runner-id",
				Aliases: []string{"id"},
				Usage:   "Custom runner ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("RUNNER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "plugins-path",
				Usage:    "Path to the directory containing action plugins",
				Value:    "",
				Required: false,
				Sources:  cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often the runner polls for active runs and due schedules",
				Value:   time.Second,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent",
				Usage:   "Maximum number of runs processed concurrently",
				Value:   4,
				Sources: cli.EnvVars("MAX_CONCURRENT"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis address for cross-runner run locks (disabled if empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces via OTLP/HTTP",
				Value:   false,
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			runnerID := command.String("runner-id")
			if runnerID == "" {
				runnerID = "runner-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("operand-runner").With("runnerId", runnerID)

			logger.InfoContext(ctx, "Initializing Operand Runner")

			if command.Bool("tracing") {
				shutdown, err := otelhelper.Setup(ctx, "operand-runner")
				if err != nil {
					return err
				}

				defer func() {
					if err := shutdown(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to shut down tracer", "error", err)
					}
				}()
			}

			registry := cmd.NewRegistry(logger, command.String("plugins-path"))

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var locker runner.RunLocker = runner.NoopLocker{}

			if addr := command.String("redis-url"); addr != "" {
				redisLocker, err := runner.NewRedisLocker(ctx, addr, runnerID)
				if err != nil {
					return err
				}

				locker = redisLocker
			}

			driver := workflow.NewDriver(persistence, registry, eventBus, logger)
			manager := workflow.NewManager(persistence, eventBus, logger)

			r := runner.New(
				runner.Config{
					RunnerID:      runnerID,
					PollInterval:  command.Duration("poll-interval"),
					MaxConcurrent: command.Int("max-concurrent"),
				},
				persistence,
				driver,
				manager,
				locker,
				eventBus,
				logger,
			)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				sig := <-signals
				logger.Info("Received signal, shutting down gracefully", "signal", sig)
				cancel()
			}()

			err = r.Start(runCtx)
			if err != nil {
				logger.ErrorContext(ctx, "Runner stopped with error", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
