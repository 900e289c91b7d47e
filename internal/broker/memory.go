package broker

import (
	"context"
	"sync"
	"time"
)

// Memory - 프로세스 내부 backbone. 테스트와 단일 프로세스 실행에 사용한다.
// topic마다 버퍼 채널 하나를 두므로 같은 topic의 consumer들은 메시지를 나눠 가진다.
type Memory struct {
	mu     sync.Mutex
	topics map[string]chan Message
	buffer int
}

func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Memory{topics: make(map[string]chan Message), buffer: buffer}
}

func (m *Memory) topic(name string) chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.topics[name]
	if !ok {
		ch = make(chan Message, m.buffer)
		m.topics[name] = ch
	}
	return ch
}

func (m *Memory) Consumer(topic, _ string) (Consumer, error) {
	return &memoryConsumer{ch: m.topic(topic)}, nil
}

// Tail - 메모리 backbone에는 보관된 이력이 없으므로 Consumer와 같다
func (m *Memory) Tail(topic, group string) (Consumer, error) {
	return m.Consumer(topic, group)
}

func (m *Memory) Publisher(bool) (Publisher, error) {
	return m, nil
}

// Publish - topic 버퍼가 가득 차면 ctx가 끝날 때까지 블로킹
func (m *Memory) Publish(ctx context.Context, topic string, key, value []byte) error {
	msg := Message{Topic: topic, Key: key, Value: value, Time: time.Now()}
	select {
	case m.topic(topic) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending - topic에 쌓여 있는 메시지 수
func (m *Memory) Pending(topic string) int {
	return len(m.topic(topic))
}

func (m *Memory) Close() error { return nil }

type memoryConsumer struct {
	ch chan Message
}

func (c *memoryConsumer) Consume(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.ch:
			if err := handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (c *memoryConsumer) Close() error { return nil }
