package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/eventops/flow/internal/broker"
	"github.com/eventops/flow/internal/config"
	"github.com/eventops/flow/internal/db"
	"github.com/eventops/flow/internal/engine"
	"github.com/eventops/flow/internal/handler"
	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/retry"
	"github.com/eventops/flow/internal/service"
	"github.com/eventops/flow/internal/sink"
)

var rulesPath string

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Run the windowed feature & alerting engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rulesPath == "" {
			rulesPath = cfg.Engine.RulesPath
		}
		rules, err := config.LoadRules(rulesPath)
		if err != nil {
			return err
		}
		logger.Info("[Engine] rules loaded: window=%d max_keys=%d thresholds=%d webhooks=%d",
			rules.WindowSize, rules.MaxKeys, len(rules.Thresholds), len(rules.Webhooks))

		ctx, stop := signalContext()
		defer stop()

		pg, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()

		writer := sink.NewWriter(pg, sink.Options{
			QueueSize: cfg.Sink.QueueSize,
			Retry: retry.Policy{
				Attempts: cfg.Sink.RetryAttempts,
				Initial:  cfg.Sink.RetryBackoff,
				Max:      16 * cfg.Sink.RetryBackoff,
			},
			WriteTimeout:     cfg.Sink.WriteTimeout,
			FailureThreshold: cfg.Sink.FailureThreshold,
		})

		bb, err := broker.Open(cfg.Broker)
		if err != nil {
			return err
		}
		defer bb.Close()
		pub, err := bb.Publisher(true)
		if err != nil {
			return err
		}

		hooks := service.NewWebhookDeliveryService(rules.Webhooks, 0)

		proc, err := service.NewProcessorService(
			engine.Config{
				WindowSize:      rules.WindowSize,
				MaxKeys:         rules.MaxKeys,
				Thresholds:      rules.Thresholds,
				MessageTemplate: rules.MessageTemplate,
			},
			service.ProcessorOptions{
				Shards:          cfg.Engine.Shards,
				QueueSize:       cfg.Engine.QueueSize,
				AlertTopic:      cfg.Topics.Alert,
				DeadLetterTopic: cfg.Topics.DeadLetter,
			},
			writer, pub, hooks,
		)
		if err != nil {
			return err
		}

		health := handler.NewHealthRouter(
			func(context.Context) error { return writer.Healthy() },
			pg.Ping,
		)
		go func() {
			if err := serveHTTP(ctx, cfg.Engine.HealthAddr, health); err != nil {
				logger.Error("[Engine] health server: %v", err)
			}
		}()

		consumeErr := runStage(ctx, bb, cfg.Topics.Enriched, "engine", proc.Handle)

		// 종료 순서: pool drain -> webhook drain -> sink drain -> producer flush
		proc.Close()
		hooks.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := writer.Close(shutdownCtx); err != nil {
			logger.Warn("[Engine] sink did not drain: %v", err)
		}
		if err := pub.Close(); err != nil {
			logger.Warn("[Engine] close publisher: %v", err)
		}

		s, ps := writer.Stats(), proc.Stats()
		logger.Info("[Engine] stopped: processed=%d alerts=%d malformed=%d written=%d dropped=%d failed=%d",
			ps.Processed, ps.Alerts, ps.Malformed, s.Written, s.Dropped, s.Failed)

		if consumeErr != nil && !errors.Is(consumeErr, context.Canceled) {
			return consumeErr
		}
		return nil
	},
}

func init() {
	engineCmd.Flags().StringVar(&rulesPath, "rules", "", "rules file (default: $RULES_PATH or configs/rules.yaml)")
	rootCmd.AddCommand(engineCmd)
}
