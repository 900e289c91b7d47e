package cli

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/eventops/flow/internal/broker"
	"github.com/eventops/flow/internal/db"
	"github.com/eventops/flow/internal/handler"
	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/service"
	"github.com/eventops/flow/internal/stream"
)

var apiAddr string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve historical queries and live alert streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		if apiAddr == "" {
			apiAddr = cfg.API.Addr
		}
		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signalContext()
		defer stop()

		pg, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()

		hub := stream.NewHub(0)
		go hub.Run(ctx)

		bb, err := broker.Open(cfg.Broker)
		if err != nil {
			return err
		}
		defer bb.Close()

		feed := service.NewAlertFeedService(hub)

		routerCfg := handler.RouterConfig{
			Query:       service.NewQueryService(pg),
			Hub:         hub,
			CORSOrigins: cfg.API.CORSOrigins,
			Health:      []handler.HealthCheck{pg.Ping},
		}
		if cfg.API.JWTSecret != "" {
			tokens, err := service.NewTokenService(cfg.API.JWTSecret)
			if err != nil {
				return err
			}
			routerCfg.Tokens = tokens
		} else {
			logger.Warn("[API] API_JWT_SECRET is empty, tenant scoping relies on query parameters only")
		}

		router := handler.NewRouter(routerCfg)

		// live feed가 끊기면 프로세스를 종료한다 (broker 연결 손실은 fatal)
		return serveWithFeed(ctx,
			func(ctx context.Context) error {
				return runAlertFeed(ctx, bb, cfg.Topics.Alert, cfg.Broker.GroupID(feedStage()), feed.Handle)
			},
			func(ctx context.Context) error {
				return serveHTTP(ctx, apiAddr, router)
			},
		)
	},
}

// feedStage - api-<hostname> 형태의 consumer group 이름
func feedStage() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return "api-" + host
}

func init() {
	apiCmd.Flags().StringVar(&apiAddr, "addr", "", "listen address (default: $API_ADDR or :8080)")
	rootCmd.AddCommand(apiCmd)
}
