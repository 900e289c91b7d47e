package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/eventops/flow/internal/logger"
	"github.com/eventops/flow/internal/model"
	"github.com/eventops/flow/internal/stream"
)

const sseKeepAlive = 15 * time.Second

type alertQuerier interface {
	ListAlerts(ctx context.Context, tenant, metric string, limit int) ([]model.AlertRow, error)
}

// AlertHandler - alert 이력 조회와 실시간 push (SSE, WebSocket)
type AlertHandler struct {
	svc      alertQuerier
	hub      *stream.Hub
	upgrader websocket.Upgrader
}

func NewAlertHandler(svc alertQuerier, hub *stream.Hub, allowedOrigins []string) *AlertHandler {
	return &AlertHandler{
		svc: svc,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// List - GET /api/v1/alerts?tenant=&metric=&limit=
func (h *AlertHandler) List(c *gin.Context) {
	tenant, ok := tenantOrAbort(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	alerts, err := h.svc.ListAlerts(c.Request.Context(), tenant, c.Query("metric"), limit)
	if err != nil {
		respondQueryError(c, "alerts", err)
		return
	}
	c.JSON(http.StatusOK, model.AlertListResponse{Status: "success", Data: alerts})
}

// Stream - GET /api/v1/alerts/stream (Server-Sent Events, event: alert)
// tenant를 생략하면 (토큰이 없을 때) 모든 tenant의 alert를 받는다.
func (h *AlertHandler) Stream(c *gin.Context) {
	tenant, err := resolveTenant(c)
	if err != nil {
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: "forbidden"})
		return
	}

	sub := h.hub.Subscribe(tenant)
	defer h.hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-sub.Send:
			if !ok {
				return false
			}
			c.SSEvent("alert", string(msg))
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		}
	})
}

// WebSocket - GET /api/v1/alerts/ws
func (h *AlertHandler) WebSocket(c *gin.Context) {
	tenant, err := resolveTenant(c)
	if err != nil {
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: "forbidden"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("[API] websocket upgrade failed: %v", err)
		return
	}
	stream.NewClient(h.hub, conn, tenant).Serve()
}
