package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spinforge/aleatest/internal/harness"
	"github.com/spinforge/aleatest/internal/infra"
	"github.com/spinforge/aleatest/internal/report"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("conformance run failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	scenarios, err := harness.LoadScenarios(cfg.FixturePath)
	if err != nil {
		return fmt.Errorf("load scenarios: %w", err)
	}
	logger.Info("scenarios loaded", "count", len(scenarios), "fixture", cfg.FixturePath)

	// Optional run-result store.
	var store *report.Store
	if cfg.DatabaseURL != "" {
		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		store = report.NewStore(pool)
		logger.Info("run-result store enabled")
	}

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	publisher := report.NewPublisher(producer, cfg.KafkaTopic)

	client := harness.NewClient(cfg.BaseURL, cfg.SigningSecret, cfg.BrandID, nil, logger)
	builder := harness.NewBuilder(cfg.HarnessDefaults())
	runner := harness.NewRunner(client, builder, logger)

	failures := 0
	for i := range scenarios {
		sc := &scenarios[i]
		result := runner.RunScenario(ctx, sc)

		run := &report.ScenarioRun{
			Scenario:   result.Scenario,
			Target:     cfg.BaseURL,
			Passed:     result.Passed(),
			StepsTotal: len(sc.Steps),
			StepsRun:   len(result.Steps),
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
		}
		if result.Err != nil {
			failures++
			run.Failure = result.Err.Error()
			logger.Error("scenario failed",
				"scenario", result.Scenario,
				"error", result.Err)
		}

		if store != nil {
			if err := store.SaveRun(ctx, run); err != nil {
				logger.Error("save run", "scenario", run.Scenario, "error", err)
			}
		}
		if err := publisher.RunFinished(ctx, run); err != nil {
			logger.Error("publish run event", "scenario", run.Scenario, "error", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	logger.Info("conformance run finished",
		"scenarios", len(scenarios),
		"failed", failures)
	if failures > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failures, len(scenarios))
	}
	return nil
}
