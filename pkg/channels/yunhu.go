package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amer-bots/amerlink/pkg/bus"
	"github.com/amer-bots/amerlink/pkg/config"
	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/platform"
)

// YunhuChannel bridges Yunhu group chats. Outbound goes through the bot
// send API; inbound arrives on a webhook the gateway mounts.
type YunhuChannel struct {
	*BaseChannel
	cfg    config.YunhuConfig
	client *http.Client
}

func NewYunhuChannel(cfg config.YunhuConfig, mb *bus.MessageBus) *YunhuChannel {
	return &YunhuChannel{
		BaseChannel: NewBaseChannel("yunhu", platform.Yunhu, mb),
		cfg:         cfg,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *YunhuChannel) Start(ctx context.Context) error {
	c.SetRunning(true)
	return nil
}

func (c *YunhuChannel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	return nil
}

type yunhuSendRequest struct {
	RecvID      string            `json:"recvId"`
	RecvType    string            `json:"recvType"`
	ContentType string            `json:"contentType"`
	Content     map[string]string `json:"content"`
}

type yunhuSendResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (c *YunhuChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	contentType := msg.ContentType
	if contentType == "" {
		contentType = "text"
	}
	body, err := json.Marshal(yunhuSendRequest{
		RecvID:      msg.TargetID,
		RecvType:    "group",
		ContentType: contentType,
		Content:     map[string]string{"text": msg.Content},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/bot/send?token=%s", c.cfg.APIBase, c.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("yunhu send: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yunhu send: http %d", resp.StatusCode)
	}
	var sr yunhuSendResponse
	if err := json.Unmarshal(data, &sr); err == nil && sr.Code != 1 && sr.Code != 0 {
		return fmt.Errorf("yunhu send: code %d %s", sr.Code, sr.Msg)
	}
	return nil
}

type yunhuEvent struct {
	Header struct {
		EventType string `json:"eventType"`
	} `json:"header"`
	Event struct {
		Sender struct {
			SenderID       string `json:"senderId"`
			SenderNickname string `json:"senderNickname"`
		} `json:"sender"`
		Message struct {
			MsgID       string `json:"msgId"`
			ChatID      string `json:"chatId"`
			ChatType    string `json:"chatType"`
			ContentType string `json:"contentType"`
			Content     struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
	} `json:"event"`
}

// WebhookHandler decodes Yunhu push events and republishes normal group
// messages to the bus. Non-message events are acknowledged and dropped.
func (c *YunhuChannel) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var ev yunhuEvent
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&ev); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)

		if ev.Header.EventType != "message.receive.normal" {
			return
		}
		msg := ev.Event.Message
		if msg.ChatType != "group" || msg.Content.Text == "" {
			return
		}
		logger.DebugCF("yunhu", "webhook message", map[string]any{
			"chat": msg.ChatID, "sender": ev.Event.Sender.SenderID,
		})
		c.HandleMessage(r.Context(),
			msg.ChatID,
			ev.Event.Sender.SenderID,
			ev.Event.Sender.SenderNickname,
			"text",
			msg.Content.Text,
			msg.MsgID,
		)
	}
}
