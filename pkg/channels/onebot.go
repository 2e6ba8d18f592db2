package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amer-bots/amerlink/pkg/bus"
	"github.com/amer-bots/amerlink/pkg/config"
	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/platform"
)

// OneBotChannel bridges QQ groups over a OneBot v11 forward websocket. It
// dials the configured endpoint, republishes group message events to the
// bus, and sends outbound text with send_group_msg actions.
type OneBotChannel struct {
	*BaseChannel
	cfg config.OneBotConfig

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewOneBotChannel(cfg config.OneBotConfig, mb *bus.MessageBus) *OneBotChannel {
	return &OneBotChannel{
		BaseChannel: NewBaseChannel("onebot", platform.QQ, mb),
		cfg:         cfg,
	}
}

type onebotEvent struct {
	PostType    string `json:"post_type"`
	MessageType string `json:"message_type"`
	GroupID     int64  `json:"group_id"`
	UserID      int64  `json:"user_id"`
	RawMessage  string `json:"raw_message"`
	MessageID   int64  `json:"message_id"`
	Sender      struct {
		Nickname string `json:"nickname"`
		Card     string `json:"card"`
	} `json:"sender"`
}

type onebotAction struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Echo   string         `json:"echo,omitempty"`
}

func (c *OneBotChannel) Start(ctx context.Context) error {
	c.SetRunning(true)
	go c.readLoop(ctx)
	return nil
}

func (c *OneBotChannel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

// readLoop keeps a connection alive, redialing after the configured
// interval on any failure.
func (c *OneBotChannel) readLoop(ctx context.Context) {
	interval := time.Duration(c.cfg.ReconnectInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	for c.IsRunning() {
		if err := c.connectAndRead(ctx); err != nil {
			logger.WarnCF("onebot", "connection lost", map[string]any{"error": err.Error()})
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (c *OneBotChannel) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	if c.cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.WSUrl, header)
	if err != nil {
		return fmt.Errorf("dial onebot: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	logger.InfoCF("onebot", "connected", map[string]any{"url": c.cfg.WSUrl})

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev onebotEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.PostType != "message" || ev.MessageType != "group" {
			continue
		}
		name := ev.Sender.Card
		if name == "" {
			name = ev.Sender.Nickname
		}
		c.HandleMessage(ctx,
			strconv.FormatInt(ev.GroupID, 10),
			strconv.FormatInt(ev.UserID, 10),
			name,
			"text",
			ev.RawMessage,
			strconv.FormatInt(ev.MessageID, 10),
		)
	}
}

func (c *OneBotChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	groupID, err := strconv.ParseInt(msg.TargetID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad qq group id %q: %w", msg.TargetID, err)
	}
	action := onebotAction{
		Action: "send_group_msg",
		Params: map[string]any{
			"group_id": groupID,
			"message":  msg.Content,
		},
	}
	data, err := json.Marshal(action)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("onebot not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
