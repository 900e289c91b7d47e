package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eventops/flow/internal/broker"
	"github.com/eventops/flow/internal/enrich"
	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
)

// EnricherService - signals.metric.v1 -> signals.enriched.v1
type EnricherService struct {
	ref      *enrich.Reference
	pub      broker.Publisher
	outTopic string
	dead     deadLetterer
}

func NewEnricherService(ref *enrich.Reference, pub broker.Publisher, outTopic, deadLetterTopic string) *EnricherService {
	return &EnricherService{
		ref:      ref,
		pub:      pub,
		outTopic: outTopic,
		dead:     deadLetterer{pub: pub, topic: deadLetterTopic, stage: "enricher"},
	}
}

func (s *EnricherService) Handle(ctx context.Context, msg broker.Message) error {
	var env model.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		logger.Warn("[Enricher] skip undecodable envelope (topic=%s): %v", msg.Topic, err)
		s.dead.send(msg.Topic, msg.Key, msg.Value, err.Error())
		return nil
	}

	out := s.ref.Enrich(env)
	data, err := json.Marshal(out)
	if err != nil {
		logger.Warn("[Enricher] skip event_id=%s: %v", env.EventID, err)
		return nil
	}
	if err := s.pub.Publish(ctx, s.outTopic, []byte(out.TenantID), data); err != nil {
		return fmt.Errorf("publish %s: %w", s.outTopic, err)
	}
	return nil
}
