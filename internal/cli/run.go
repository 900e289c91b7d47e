package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventops/flow/internal/broker"
	"github.com/eventops/flow/internal/logger"
)

const shutdownTimeout = 15 * time.Second

// signalContext - SIGINT/SIGTERM에서 취소되는 context
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runStage - topic을 consume하여 ctx가 끝날 때까지 handle 호출
func runStage(ctx context.Context, bb broker.Backbone, topic, stage string, handle broker.Handler) error {
	consumer, err := bb.Consumer(topic, cfg.Broker.GroupID(stage))
	if err != nil {
		return err
	}
	defer consumer.Close()

	logger.Info("[%s] consuming %s (broker=%s)", stage, topic, cfg.Broker.Kind)
	if err := consumer.Consume(ctx, handle); err != nil {
		return err
	}
	logger.Info("[%s] shutting down", stage)
	return nil
}

// runAlertFeed - 과거 alert를 재생하지 않도록 tail consumer로 topic을 읽는다
func runAlertFeed(ctx context.Context, bb broker.Backbone, topic, group string, handle broker.Handler) error {
	consumer, err := bb.Tail(topic, group)
	if err != nil {
		return err
	}
	defer consumer.Close()

	logger.Info("[API] tailing %s (group=%s)", topic, group)
	return consumer.Consume(ctx, handle)
}

// serveWithFeed - feed가 실패하면 서버를 내리고 feed 에러를 반환한다
func serveWithFeed(parent context.Context, feed, serve func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	feedErr := make(chan error, 1)
	go func() {
		err := feed(ctx)
		if err != nil {
			cancel()
		}
		feedErr <- err
	}()

	serveErr := serve(ctx)
	cancel()
	if err := <-feedErr; err != nil {
		return fmt.Errorf("alert feed: %w", err)
	}
	return serveErr
}

// serveHTTP - ctx가 끝나면 graceful shutdown
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[HTTP] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
