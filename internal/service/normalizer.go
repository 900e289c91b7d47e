package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eventops/flow/internal/broker"
	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/normalize"
)

// NormalizerService - ingest.raw.agent -> signals.metric.v1
type NormalizerService struct {
	normalizer *normalize.Normalizer
	pub        broker.Publisher
	outTopic   string
	dead       deadLetterer
}

func NewNormalizerService(n *normalize.Normalizer, pub broker.Publisher, outTopic, deadLetterTopic string) *NormalizerService {
	return &NormalizerService{
		normalizer: n,
		pub:        pub,
		outTopic:   outTopic,
		dead:       deadLetterer{pub: pub, topic: deadLetterTopic, stage: "normalizer"},
	}
}

// Handle - raw payload 1건 처리. 디코딩 실패는 건너뛰고, 발행 실패만 에러로 반환한다.
func (s *NormalizerService) Handle(ctx context.Context, msg broker.Message) error {
	raw, err := normalize.Decode(msg.Value)
	if err != nil {
		logger.Warn("[Normalizer] skip undecodable payload (topic=%s): %v", msg.Topic, err)
		s.dead.send(msg.Topic, msg.Key, msg.Value, err.Error())
		return nil
	}

	env := s.normalizer.Normalize(raw)
	data, err := json.Marshal(env)
	if err != nil {
		logger.Warn("[Normalizer] skip event_id=%s: %v", env.EventID, err)
		return nil
	}
	if err := s.pub.Publish(ctx, s.outTopic, []byte(env.TenantID), data); err != nil {
		return fmt.Errorf("publish %s: %w", s.outTopic, err)
	}
	logger.Debug("[Normalizer] event_id=%s tenant=%s source=%s metric=%s", env.EventID, env.TenantID, env.SourceID, env.Metric)
	return nil
}
