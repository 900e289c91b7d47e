package engine

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/eventops/flow/internal/model"
)

// Handler - shard goroutine에서 Process 결과마다 호출된다.
// 같은 키에 대해서는 도착 순서대로 호출되므로 오래 블로킹하면 안 된다.
type Handler func(env model.Envelope, res Result, err error)

// Pool - 그룹 키 해시로 이벤트를 shard에 분배
// shard마다 전용 goroutine과 Engine(윈도우 map)을 가지므로 락 없이 키 단위 순서가 보장된다.
type Pool struct {
	shards []chan model.Envelope
	handle Handler
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool - shards개의 Engine을 만들고 처리 goroutine을 시작
// MaxKeys는 shard 수로 나누어 각 Engine에 배분한다.
func NewPool(cfg Config, shards, queueSize int, handle Handler) (*Pool, error) {
	if shards <= 0 {
		shards = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	shardCfg := cfg
	shardCfg.MaxKeys = (maxKeys + shards - 1) / shards

	engines := make([]*Engine, shards)
	for i := range engines {
		eng, err := New(shardCfg)
		if err != nil {
			return nil, err
		}
		engines[i] = eng
	}

	p := &Pool{
		shards: make([]chan model.Envelope, shards),
		handle: handle,
	}
	for i, eng := range engines {
		ch := make(chan model.Envelope, queueSize)
		p.shards[i] = ch
		p.wg.Add(1)
		go p.run(eng, ch)
	}
	return p, nil
}

func (p *Pool) run(eng *Engine, in <-chan model.Envelope) {
	defer p.wg.Done()
	for env := range in {
		res, err := eng.Process(env)
		if p.handle != nil {
			p.handle(env, res, err)
		}
	}
}

// Submit - 키에 해당하는 shard 큐에 이벤트를 넣는다. 큐가 가득 차면 블로킹(backpressure).
func (p *Pool) Submit(ctx context.Context, env model.Envelope) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	ch := p.shards[ShardFor(KeyOf(env), len(p.shards))]
	select {
	case ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close - 새 이벤트 수신을 멈추고 큐에 남은 이벤트를 모두 처리한 뒤 반환
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, ch := range p.shards {
		close(ch)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Shards - shard 수
func (p *Pool) Shards() int {
	return len(p.shards)
}

// ShardFor - FNV-1a(tenant, source_id, metric) % n
func ShardFor(key Key, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key.Tenant))
	h.Write([]byte{0})
	h.Write([]byte(key.SourceID))
	h.Write([]byte{0})
	h.Write([]byte(key.Metric))
	return int(h.Sum32() % uint32(n))
}
