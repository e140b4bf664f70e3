package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/amelnyk/slotly-notify/internal/db"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender posts Markdown-formatted messages to the Telegram Bot API
// using the user's stored chat id.
type TelegramSender struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewTelegramSender creates a sender for the given bot token.
func NewTelegramSender(token string, logger *zap.Logger) *TelegramSender {
	return &TelegramSender{
		token:   token,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (s *TelegramSender) Channel() string {
	return db.ChannelTelegram
}

type telegramSendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send posts the message to /bot{token}/sendMessage and treats any
// non-200 response as a failure.
func (s *TelegramSender) Send(ctx context.Context, d *Delivery) error {
	if d.User.TelegramID == "" {
		return fmt.Errorf("delivery missing telegram chat id")
	}

	body, err := json.Marshal(telegramSendMessage{
		ChatID:    d.User.TelegramID,
		Text:      composeTelegramText(d),
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}

	s.logger.Info("telegram message sent",
		zap.String("notification_id", d.NotificationID.String()),
		zap.String("chat_id", d.User.TelegramID),
	)

	return nil
}

func composeTelegramText(d *Delivery) string {
	text := fmt.Sprintf("*%s*\n\n%s", d.Title, d.Message)

	if service, ok := d.Details["service"]; ok {
		text += fmt.Sprintf("\n\n_%s_", service)
	}
	if date, ok := d.Details["date"]; ok {
		text += fmt.Sprintf("\n%s", date)
	}

	return text
}
