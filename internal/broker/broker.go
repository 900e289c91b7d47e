// Package broker abstracts the partitioned message backbone (Kafka or NATS).
//
// 모든 메시지는 tenant_id를 key로 발행된다. Consumer는 handler가 nil을 반환한 뒤에만
// 메시지를 commit하므로 전달 보장은 at-least-once이다 (NATS core는 at-most-once).
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/eventops/flow/internal/config"
)

// Message - 백본에서 수신한 메시지
type Message struct {
	Topic string
	Key   []byte
	Value []byte
	Time  time.Time
}

// Handler - 메시지 1건 처리. 에러를 반환하면 consume loop가 멈추고 commit하지 않는다.
type Handler func(ctx context.Context, msg Message) error

type Consumer interface {
	// Consume - ctx가 취소될 때까지 블로킹. 정상 종료 시 nil.
	Consume(ctx context.Context, handle Handler) error
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

// Backbone - 설정된 broker 종류에 맞는 consumer/publisher 생성기
type Backbone interface {
	Consumer(topic, group string) (Consumer, error)
	// Tail - 구독 시점 이후 메시지만 받는 consumer. 과거 메시지를 재생하지 않고 offset도 commit하지 않는다.
	Tail(topic, group string) (Consumer, error)
	Publisher(async bool) (Publisher, error)
	Close() error
}

// Open - BROKER 설정에 따라 Kafka 또는 NATS backbone 연결
func Open(cfg config.BrokerConfig) (Backbone, error) {
	switch cfg.Kind {
	case "", "kafka":
		return NewKafka(cfg.KafkaBrokers), nil
	case "nats":
		return NewNATS(cfg.NATSURL)
	default:
		return nil, fmt.Errorf("unknown broker %q (want kafka or nats)", cfg.Kind)
	}
}
