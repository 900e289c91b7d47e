package broker

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/eventops/flow/internal/logger"
)

const commitTimeout = 5 * time.Second

// Kafka - segmentio/kafka-go 기반 backbone
type Kafka struct {
	brokers []string
}

func NewKafka(brokers []string) *Kafka {
	return &Kafka{brokers: brokers}
}

func (k *Kafka) Consumer(topic, group string) (Consumer, error) {
	if len(k.brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	reader := kafka.NewReader(readerConfig(k.brokers, topic, group, false))
	return &kafkaConsumer{reader: reader, topic: topic, commit: true}, nil
}

// Tail - 최신 offset부터 읽고 commit하지 않으므로 재시작해도 항상 최신부터 시작한다
func (k *Kafka) Tail(topic, group string) (Consumer, error) {
	if len(k.brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	reader := kafka.NewReader(readerConfig(k.brokers, topic, group, true))
	return &kafkaConsumer{reader: reader, topic: topic}, nil
}

func readerConfig(brokers []string, topic, group string, tail bool) kafka.ReaderConfig {
	start := kafka.FirstOffset
	if tail {
		start = kafka.LastOffset
	}
	return kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     group,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: start,
	}
}

// Publisher - tenant key 해시로 파티션을 고른다 (같은 tenant는 같은 파티션)
// async=true이면 WriteMessages가 즉시 반환되고 실패는 로그만 남긴다.
func (k *Kafka) Publisher(async bool) (Publisher, error) {
	if len(k.brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  async,
		BatchTimeout:           10 * time.Millisecond,
	}
	if async {
		w.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("[Kafka] async publish failed (messages=%d): %v", len(messages), err)
			}
		}
	}
	return &kafkaPublisher{writer: w}, nil
}

func (k *Kafka) Close() error { return nil }

type kafkaConsumer struct {
	reader *kafka.Reader
	topic  string
	commit bool
}

func (c *kafkaConsumer) Consume(ctx context.Context, handle Handler) error {
	logger.Info("[Kafka] consuming topic=%s", c.topic)
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := handle(ctx, Message{Topic: m.Topic, Key: m.Key, Value: m.Value, Time: m.Time}); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !c.commit {
			continue
		}

		// 종료 중이어도 이미 넘겨준 메시지의 offset은 commit한다
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		err = c.reader.CommitMessages(commitCtx, m)
		cancel()
		if err != nil {
			logger.Warn("[Kafka] commit failed topic=%s partition=%d offset=%d: %v", m.Topic, m.Partition, m.Offset, err)
		}
	}
}

func (c *kafkaConsumer) Close() error {
	return c.reader.Close()
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
