package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eventops/flow/internal/broker"
	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
)

const publishTimeout = 5 * time.Second

// deadLetterer - topic이 비어 있으면 아무것도 하지 않는다
type deadLetterer struct {
	pub   broker.Publisher
	topic string
	stage string
}

func (d deadLetterer) send(source string, key, payload []byte, reason string) {
	if d.pub == nil || d.topic == "" {
		return
	}
	data, err := json.Marshal(model.NewDeadLetter(d.stage, source, reason, payload, time.Now().UTC()))
	if err != nil {
		logger.Error("[DeadLetter] marshal: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := d.pub.Publish(ctx, d.topic, key, data); err != nil {
		logger.Warn("[DeadLetter] publish to %s failed: %v", d.topic, err)
	}
}
