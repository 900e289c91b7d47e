package service

import (
	"context"
	"encoding/json"

	"github.com/eventops/flow/internal/broker"
	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
)

// Broadcaster - stream.Hub가 구현
type Broadcaster interface {
	Broadcast(alert model.AlertRow)
}

// AlertFeedService - ops.alert.v1을 구독하여 실시간 구독자에게 전달
type AlertFeedService struct {
	hub Broadcaster
}

func NewAlertFeedService(hub Broadcaster) *AlertFeedService {
	return &AlertFeedService{hub: hub}
}

func (s *AlertFeedService) Handle(_ context.Context, msg broker.Message) error {
	var alert model.AlertRow
	if err := json.Unmarshal(msg.Value, &alert); err != nil {
		logger.Warn("[AlertFeed] skip undecodable alert: %v", err)
		return nil
	}
	s.hub.Broadcast(alert)
	return nil
}
