package cli

import (
	"github.com/spf13/cobra"

	"github.com/eventops/flow/internal/broker"
	"github.com/eventops/flow/internal/enrich"
	"github.com/eventops/flow/internal/normalize"
	"github.com/eventops/flow/internal/service"
)

var normalizerCmd = &cobra.Command{
	Use:   "normalizer",
	Short: "Normalize raw agent payloads into canonical envelopes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		bb, err := broker.Open(cfg.Broker)
		if err != nil {
			return err
		}
		defer bb.Close()
		pub, err := bb.Publisher(false)
		if err != nil {
			return err
		}
		defer pub.Close()

		svc := service.NewNormalizerService(normalize.New(), pub, cfg.Topics.Metric, cfg.Topics.DeadLetter)
		return runStage(ctx, bb, cfg.Topics.Raw, "normalizer", svc.Handle)
	},
}

var enricherCmd = &cobra.Command{
	Use:   "enricher",
	Short: "Join envelopes with reference (CMDB) tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		ref, err := enrich.LoadReference(cfg.Enricher.ReferencePath)
		if err != nil {
			return err
		}

		bb, err := broker.Open(cfg.Broker)
		if err != nil {
			return err
		}
		defer bb.Close()
		pub, err := bb.Publisher(false)
		if err != nil {
			return err
		}
		defer pub.Close()

		svc := service.NewEnricherService(ref, pub, cfg.Topics.Enriched, cfg.Topics.DeadLetter)
		return runStage(ctx, bb, cfg.Topics.Metric, "enricher", svc.Handle)
	},
}

func init() {
	rootCmd.AddCommand(normalizerCmd, enricherCmd)
}
