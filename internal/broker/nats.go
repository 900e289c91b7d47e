package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/eventops/flow/internal/logger"
)

const keyHeader = "Eventops-Key"

// NATS - core NATS 기반 backbone. consumer group은 queue group으로 매핑된다.
type NATS struct {
	nc *nats.Conn
}

func NewNATS(url string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("eventops"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("[NATS] disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("[NATS] reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return &NATS{nc: nc}, nil
}

func (n *NATS) Consumer(topic, group string) (Consumer, error) {
	return &natsConsumer{nc: n.nc, subject: topic, queue: group}, nil
}

// Tail - queue group 없이 구독하여 인스턴스마다 모든 메시지를 받는다.
// core NATS는 과거 메시지를 보관하지 않으므로 항상 구독 이후 메시지만 온다.
func (n *NATS) Tail(topic, _ string) (Consumer, error) {
	return &natsConsumer{nc: n.nc, subject: topic}, nil
}

// Publisher - NATS publish는 항상 비동기 버퍼링되므로 async 인자는 무시한다
func (n *NATS) Publisher(bool) (Publisher, error) {
	return &natsPublisher{nc: n.nc}, nil
}

func (n *NATS) Close() error {
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
		return err
	}
	return nil
}

type natsConsumer struct {
	nc      *nats.Conn
	subject string
	queue   string
}

// Consume - 메시지를 한 goroutine에서 순서대로 처리한다
func (c *natsConsumer) Consume(ctx context.Context, handle Handler) error {
	ch := make(chan *nats.Msg, 1024)
	var (
		sub *nats.Subscription
		err error
	)
	if c.queue == "" {
		sub, err = c.nc.ChanSubscribe(c.subject, ch)
	} else {
		sub, err = c.nc.ChanQueueSubscribe(c.subject, c.queue, ch)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", c.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			logger.Debug("[NATS] unsubscribe %s: %v", c.subject, err)
		}
	}()
	logger.Info("[NATS] consuming subject=%s queue=%s", c.subject, c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-ch:
			msg := Message{Topic: m.Subject, Value: m.Data, Time: time.Now()}
			if m.Header != nil {
				msg.Key = []byte(m.Header.Get(keyHeader))
			}
			if err := handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (c *natsConsumer) Close() error { return nil }

type natsPublisher struct {
	nc *nats.Conn
}

func (p *natsPublisher) Publish(_ context.Context, topic string, key, value []byte) error {
	msg := nats.NewMsg(topic)
	msg.Data = value
	if len(key) > 0 {
		msg.Header.Set(keyHeader, string(key))
	}
	return p.nc.PublishMsg(msg)
}

func (p *natsPublisher) Close() error {
	return p.nc.Flush()
}
