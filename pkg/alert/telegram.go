package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stock-news/pkg/domain"
	"stock-news/pkg/httpclient"
)

const (
	DefaultTelegramBaseURL = "https://api.telegram.org"
	telegramTimeout        = 5 * time.Second
)

// TelegramSender posts alerts to a chat through the Bot API.
type TelegramSender struct {
	token   string
	chatID  string
	baseURL string
	client  *httpclient.HTTPClient
}

// NewTelegramSender creates a sender. An empty baseURL uses the public API.
func NewTelegramSender(token, chatID, baseURL string) *TelegramSender {
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		baseURL: baseURL,
		client:  httpclient.NewClientWithTimeout(httpclient.CloudflareClient, telegramTimeout),
	}
}

func (s *TelegramSender) Name() string { return "telegram" }

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send posts the alert message. Anything but 200 is an error.
func (s *TelegramSender) Send(ctx context.Context, record *domain.NewsRecord) error {
	if s.token == "" {
		return fmt.Errorf("telegram bot token not configured")
	}
	if s.chatID == "" {
		return fmt.Errorf("telegram chat id not configured")
	}

	payload, err := json.Marshal(telegramMessage{
		ChatID:    s.chatID,
		Text:      Message(record),
		ParseMode: "Markdown",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}
