package model

import (
	"encoding/json"
	"time"
)

// DeadLetter - 처리할 수 없었던 입력 메시지와 사유
// Payload는 원본 바이트가 유효한 JSON이면 그대로, 아니면 문자열로 담긴다.
type DeadLetter struct {
	Stage   string          `json:"stage"`
	Topic   string          `json:"topic"`
	Reason  string          `json:"reason"`
	Payload json.RawMessage `json:"payload"`
	Ts      time.Time       `json:"ts"`
}

// NewDeadLetter - payload가 JSON이 아니면 JSON 문자열로 감싼다
func NewDeadLetter(stage, topic, reason string, payload []byte, ts time.Time) DeadLetter {
	raw := json.RawMessage(payload)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(string(payload))
		raw = quoted
	}
	return DeadLetter{Stage: stage, Topic: topic, Reason: reason, Payload: raw, Ts: ts}
}
