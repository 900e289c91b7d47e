package cli

import (
	"github.com/spf13/cobra"

	"github.com/eventops/flow/internal/db"
	"github.com/eventops/flow/internal/export"
	"github.com/eventops/flow/internal/logger"
)

var exportOnce bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored metrics and alerts as partitioned Parquet files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		pg, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()

		if cfg.Export.SettleLag <= cfg.Sink.WriteTimeout {
			logger.Warn("[Export] EXPORT_SETTLE_LAG (%v) should exceed SINK_WRITE_TIMEOUT (%v); late commits may be skipped",
				cfg.Export.SettleLag, cfg.Sink.WriteTimeout)
		}
		exp := export.New(pg, cfg.Export.DataDir, cfg.Export.BatchSize, cfg.Export.SettleLag)
		if !exportOnce {
			return exp.Run(ctx, cfg.Export.Interval)
		}
		res, err := exp.RunOnce(ctx)
		if err != nil {
			return err
		}
		logger.Info("[Export] metrics=%d alerts=%d files=%d", res.Metrics, res.Alerts, res.Files)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the Postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		pg, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		pg.Close()
		logger.Info("[Migrate] schema is up to date")
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportOnce, "once", false, "export one pass and exit")
	rootCmd.AddCommand(exportCmd, migrateCmd)
}
