// Package stream fans live alerts out to SSE and WebSocket subscribers.
package stream

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
)

const defaultSendBuffer = 64

// Subscriber - 실시간 alert 수신자 (SSE 요청 1개 또는 WebSocket 연결 1개)
// Tenant가 비어 있으면 모든 tenant의 alert를 받는다.
// Send는 hub가 닫는다 (구독 해제, 느린 소비자 제거, hub 종료 시).
type Subscriber struct {
	Tenant string
	Send   chan []byte
}

func (s *Subscriber) accepts(alert model.AlertRow) bool {
	return s.Tenant == "" || s.Tenant == alert.Tenant
}

// Hub - 구독자 집합을 관리하는 단일 goroutine
type Hub struct {
	clients    map[*Subscriber]struct{}
	broadcast  chan model.AlertRow
	register   chan *Subscriber
	unregister chan *Subscriber
	done       chan struct{}

	sendBuffer int
	count      atomic.Int64
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{
		clients:    make(map[*Subscriber]struct{}),
		broadcast:  make(chan model.AlertRow, 256),
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		done:       make(chan struct{}),
		sendBuffer: sendBuffer,
	}
}

// Run - ctx가 끝날 때까지 이벤트 루프 실행. 종료 시 모든 구독자의 Send를 닫는다.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for sub := range h.clients {
			close(sub.Send)
			delete(h.clients, sub)
		}
		h.count.Store(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-h.register:
			h.clients[sub] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			logger.Debug("[Stream] subscriber registered tenant=%q (total=%d)", sub.Tenant, len(h.clients))

		case sub := <-h.unregister:
			h.remove(sub)

		case alert := <-h.broadcast:
			msg, err := json.Marshal(model.StreamMessage{Type: "alert", Payload: alert})
			if err != nil {
				logger.Error("[Stream] marshal alert: %v", err)
				continue
			}
			for sub := range h.clients {
				if !sub.accepts(alert) {
					continue
				}
				select {
				case sub.Send <- msg:
				default:
					logger.Warn("[Stream] subscriber too slow, dropping (tenant=%q)", sub.Tenant)
					h.remove(sub)
				}
			}
		}
	}
}

func (h *Hub) remove(sub *Subscriber) {
	if _, ok := h.clients[sub]; !ok {
		return
	}
	delete(h.clients, sub)
	close(sub.Send)
	h.count.Store(int64(len(h.clients)))
}

// Subscribe - 새 구독자 등록. hub가 이미 종료됐으면 Send가 닫힌 구독자를 반환한다.
func (h *Hub) Subscribe(tenant string) *Subscriber {
	sub := &Subscriber{Tenant: tenant, Send: make(chan []byte, h.sendBuffer)}
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.Send)
	}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Broadcast - alert를 구독자에게 전달. hub가 종료됐으면 버린다.
func (h *Hub) Broadcast(alert model.AlertRow) {
	select {
	case h.broadcast <- alert:
	case <-h.done:
	}
}

// Subscribers - 현재 구독자 수
func (h *Hub) Subscribers() int {
	return int(h.count.Load())
}
