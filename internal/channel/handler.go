// Package channel exposes message channels over HTTP: send, long-history
// poll and a websocket subscription.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jwalitptl/telehealth-admin/pkg/logger"
	"github.com/jwalitptl/telehealth-admin/pkg/messaging"
	"github.com/jwalitptl/telehealth-admin/pkg/metrics"
)

const (
	StatusSent  = "sent"
	StatusOK    = "ok"
	StatusError = "error"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type SendRequest struct {
	Type    string          `json:"type" binding:"required,max=100"`
	Payload json.RawMessage `json:"payload"`
}

type SendResponse struct {
	Status  string             `json:"status"`
	Message *messaging.Message `json:"message"`
}

type PollResponse struct {
	Status   string              `json:"status"`
	Messages []messaging.Message `json:"messages"`
	Cursor   int64               `json:"cursor"`
}

type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type Handler struct {
	broker   messaging.Broker
	logger   *logger.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewHandler(broker messaging.Broker, l *logger.Logger, m *metrics.Metrics, allowedOrigins []string) *Handler {
	if l == nil {
		l = logger.Nop()
	}
	return &Handler{
		broker:  broker,
		logger:  l.With("channel"),
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	channels := r.Group("/channels/:channel")
	{
		channels.POST("/send", h.Send)
		channels.GET("/poll", h.Poll)
		channels.GET("/subscribe", h.Subscribe)
	}
}

func (h *Handler) Send(c *gin.Context) {
	name := c.Param("channel")
	if !messaging.ValidChannel(name) {
		h.fail(c, http.StatusBadRequest, "invalid channel name")
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload interface{}
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	msg, err := h.broker.Publish(c.Request.Context(), name, req.Type, payload)
	if err != nil {
		if errors.Is(err, messaging.ErrInvalidChannel) {
			h.fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error(err, "failed to publish message", "channel", name)
		h.fail(c, http.StatusInternalServerError, "failed to send message")
		return
	}
	h.metrics.ChannelMessage("sent")

	c.JSON(http.StatusOK, SendResponse{Status: StatusSent, Message: msg})
}

// Poll returns messages after ?since (default 0), at most ?limit of them.
// The cursor is the last returned seq, or since when nothing is new.
func (h *Handler) Poll(c *gin.Context) {
	name := c.Param("channel")
	if !messaging.ValidChannel(name) {
		h.fail(c, http.StatusBadRequest, "invalid channel name")
		return
	}
	since, err := queryInt(c, "since", 0)
	if err != nil || since < 0 {
		h.fail(c, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}
	limit, err := queryInt(c, "limit", messaging.DefaultHistory)
	if err != nil || limit <= 0 {
		h.fail(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > messaging.DefaultHistory {
		limit = messaging.DefaultHistory
	}

	msgs, err := h.broker.Poll(c.Request.Context(), name, since, int(limit))
	if err != nil {
		h.logger.Error(err, "failed to poll channel", "channel", name)
		h.fail(c, http.StatusInternalServerError, "failed to poll channel")
		return
	}

	cursor := since
	if len(msgs) > 0 {
		cursor = msgs[len(msgs)-1].Seq
	}
	for range msgs {
		h.metrics.ChannelMessage("polled")
	}
	c.JSON(http.StatusOK, PollResponse{Status: StatusOK, Messages: msgs, Cursor: cursor})
}

// Subscribe upgrades to a websocket and streams every message published to
// the channel. With ?since the retained history after that seq is sent
// first.
func (h *Handler) Subscribe(c *gin.Context) {
	name := c.Param("channel")
	if !messaging.ValidChannel(name) {
		h.fail(c, http.StatusBadRequest, "invalid channel name")
		return
	}
	since, err := queryInt(c, "since", -1)
	if err != nil {
		h.fail(c, http.StatusBadRequest, "since must be an integer")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live, err := h.broker.Subscribe(ctx, name)
	if err != nil {
		h.logger.Error(err, "failed to subscribe", "channel", name)
		h.fail(c, http.StatusInternalServerError, "failed to subscribe")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Warn("websocket upgrade failed", "channel", name, "error", err.Error())
		return
	}
	defer conn.Close()

	h.metrics.ChannelSubscriberDelta(1)
	defer h.metrics.ChannelSubscriberDelta(-1)

	var last int64
	if since >= 0 {
		backlog, err := h.broker.Poll(ctx, name, since, 0)
		if err != nil {
			h.logger.Error(err, "failed to load backlog", "channel", name)
		}
		for _, msg := range backlog {
			if err := h.write(conn, msg); err != nil {
				return
			}
			last = msg.Seq
		}
	}

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-live:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "channel closed"),
					time.Now().Add(writeWait))
				return
			}
			if msg.Seq <= last {
				continue
			}
			if err := h.write(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and cancels the subscription once the
// client goes away.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, msg messaging.Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	h.metrics.ChannelMessage("delivered")
	return nil
}

func (h *Handler) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Status: StatusError, Error: msg})
}

func queryInt(c *gin.Context, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// originChecker allows same-host requests, and any origin in allowed ("*"
// allows everything).
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
