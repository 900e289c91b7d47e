package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eventops/flow/internal/broker"
)

// stubConsumer - Consume가 즉시 err를 반환
type stubConsumer struct {
	err    error
	closed bool
}

func (c *stubConsumer) Consume(context.Context, broker.Handler) error { return c.err }
func (c *stubConsumer) Close() error {
	c.closed = true
	return nil
}

// fakeBackbone - 어떤 consumer 생성 메서드가 호출됐는지 기록
type fakeBackbone struct {
	consumer      *stubConsumer
	tailTopic     string
	tailGroup     string
	consumerCalls int
}

func (b *fakeBackbone) Consumer(string, string) (broker.Consumer, error) {
	b.consumerCalls++
	return b.consumer, nil
}

func (b *fakeBackbone) Tail(topic, group string) (broker.Consumer, error) {
	b.tailTopic, b.tailGroup = topic, group
	return b.consumer, nil
}

func (b *fakeBackbone) Publisher(bool) (broker.Publisher, error) { return nil, errors.New("not used") }
func (b *fakeBackbone) Close() error                             { return nil }

func noopHandle(context.Context, broker.Message) error { return nil }

func TestRunAlertFeedUsesTailConsumer(t *testing.T) {
	bb := &fakeBackbone{consumer: &stubConsumer{}}

	if err := runAlertFeed(context.Background(), bb, "ops.alert.v1", "eventops-api-h1", noopHandle); err != nil {
		t.Fatalf("runAlertFeed: %v", err)
	}
	if bb.consumerCalls != 0 {
		t.Fatalf("live feed must not use a replaying group consumer (calls=%d)", bb.consumerCalls)
	}
	if bb.tailTopic != "ops.alert.v1" || bb.tailGroup != "eventops-api-h1" {
		t.Fatalf("Tail(%q, %q)", bb.tailTopic, bb.tailGroup)
	}
	if !bb.consumer.closed {
		t.Fatal("consumer was not closed")
	}
}

func TestServeWithFeedStopsServerWhenFeedFails(t *testing.T) {
	brokerDown := errors.New("broker connection lost")
	bb := &fakeBackbone{consumer: &stubConsumer{err: brokerDown}}

	serverStopped := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- serveWithFeed(context.Background(),
			func(ctx context.Context) error {
				return runAlertFeed(ctx, bb, "ops.alert.v1", "g", noopHandle)
			},
			func(ctx context.Context) error {
				<-ctx.Done()
				close(serverStopped)
				return nil
			},
		)
	}()

	select {
	case err := <-done:
		if !errors.Is(err, brokerDown) {
			t.Fatalf("serveWithFeed() = %v, want %v", err, brokerDown)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server kept running after the alert feed failed")
	}
	select {
	case <-serverStopped:
	default:
		t.Fatal("server context was not cancelled")
	}
}

func TestServeWithFeedReturnsServeError(t *testing.T) {
	listenErr := errors.New("address already in use")
	feedStopped := make(chan struct{})

	err := serveWithFeed(context.Background(),
		func(ctx context.Context) error {
			<-ctx.Done()
			close(feedStopped)
			return nil
		},
		func(context.Context) error { return listenErr },
	)
	if !errors.Is(err, listenErr) {
		t.Fatalf("serveWithFeed() = %v, want %v", err, listenErr)
	}
	select {
	case <-feedStopped:
	default:
		t.Fatal("feed was not stopped")
	}
}

func TestServeWithFeedCleanShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wait := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}
	if err := serveWithFeed(ctx, wait, wait); err != nil {
		t.Fatalf("serveWithFeed() = %v", err)
	}
}
