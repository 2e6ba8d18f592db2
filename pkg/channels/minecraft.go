package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/amer-bots/amerlink/pkg/bus"
	"github.com/amer-bots/amerlink/pkg/config"
	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/platform"
)

// MinecraftChannel is a websocket hub for server-side plugins. Each server
// connects with its id, pushes player chat as JSON frames, and receives
// relayed messages the same way.
type MinecraftChannel struct {
	*BaseChannel
	cfg config.MinecraftConfig

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

var mcUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func NewMinecraftChannel(cfg config.MinecraftConfig, mb *bus.MessageBus) *MinecraftChannel {
	return &MinecraftChannel{
		BaseChannel: NewBaseChannel("minecraft", platform.Minecraft, mb),
		cfg:         cfg,
		conns:       map[string]*websocket.Conn{},
	}
}

func (c *MinecraftChannel) Start(ctx context.Context) error {
	c.SetRunning(true)
	return nil
}

func (c *MinecraftChannel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, conn := range c.conns {
		conn.Close()
		delete(c.conns, id)
	}
	return nil
}

type mcFrame struct {
	Type     string `json:"type"`
	Player   string `json:"player"`
	PlayerID string `json:"player_id"`
	Message  string `json:"message"`
	MsgID    string `json:"msg_id,omitempty"`
}

// WSHandler upgrades a plugin connection. The server identifies itself
// with the server_id query parameter; a reconnect replaces the previous
// connection.
func (c *MinecraftChannel) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serverID := r.URL.Query().Get("server_id")
		if serverID == "" {
			http.Error(w, "server_id required", http.StatusBadRequest)
			return
		}
		conn, err := mcUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c.mu.Lock()
		if old, found := c.conns[serverID]; found {
			old.Close()
		}
		c.conns[serverID] = conn
		c.mu.Unlock()
		logger.InfoCF("minecraft", "server connected", map[string]any{"server": serverID})

		go c.readLoop(r.Context(), serverID, conn)
	}
}

func (c *MinecraftChannel) readLoop(ctx context.Context, serverID string, conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conns[serverID] == conn {
			delete(c.conns, serverID)
		}
		c.mu.Unlock()
		conn.Close()
		logger.InfoCF("minecraft", "server disconnected", map[string]any{"server": serverID})
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame mcFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Type != "chat" || frame.Message == "" {
			continue
		}
		senderID := frame.PlayerID
		if senderID == "" {
			senderID = frame.Player
		}
		c.HandleMessage(ctx, serverID, senderID, frame.Player, "text", frame.Message, frame.MsgID)
	}
}

func (c *MinecraftChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	conn, found := c.conns[msg.TargetID]
	c.mu.Unlock()
	if !found {
		return fmt.Errorf("minecraft server %s not connected", msg.TargetID)
	}

	data, err := json.Marshal(mcFrame{Type: "chat", Message: msg.Content})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}
