package retry

import (
	"context"
	"time"

	"github.com/eventops/flow/internal/logger"
)

// Policy - 재시도 횟수와 지수 backoff 범위
type Policy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultPolicy - 5회, 500ms부터 두 배씩 (최대 10s)
func DefaultPolicy() Policy {
	return Policy{Attempts: 5, Initial: 500 * time.Millisecond, Max: 10 * time.Second}
}

// Execute - op가 성공하거나 시도 횟수를 모두 소진할 때까지 재시도
// 마지막 에러를 반환하며, ctx가 취소되면 즉시 ctx.Err()를 반환한다.
func Execute(ctx context.Context, p Policy, name string, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := p.Initial

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		logger.Warn("[Retry] %s failed (attempt=%d/%d), retrying in %s: %v", name, attempt, attempts, backoff, err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if p.Max > 0 && backoff > p.Max {
			backoff = p.Max
		}
	}
	return err
}
