package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eventops/flow/internal/config"
	"github.com/eventops/flow/internal/logger"
)

var (
	appVersion = "dev"
	appCommit  = "none"
)

// SetVersionInfo - ldflags로 주입된 버전 정보
func SetVersionInfo(version, commit string) {
	appVersion = version
	appCommit = commit
}

// cfg - PersistentPreRun에서 한 번 로드
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "eventops",
	Short: "Telemetry pipeline with windowed threshold alerting",
	Long: `eventops runs one stage of the telemetry pipeline per process:

  normalizer  ingest.raw.agent    -> signals.metric.v1
  enricher    signals.metric.v1   -> signals.enriched.v1
  engine      signals.enriched.v1 -> Postgres rows + ops.alert.v1
  api         historical queries and live alert streaming
  export      Postgres rows -> partitioned Parquet files`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.SetLevel(cfg.Log.Level)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "eventops %s (commit %s)\n", appVersion, appCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
