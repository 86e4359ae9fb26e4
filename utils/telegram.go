package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramAPI is the slice of the Bot API the service needs. Behind an
// interface so the transport can be exercised in tests without the network.
type TelegramAPI interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	GetChatMember(ctx context.Context, chat string, userID int64) (string, error)
	SetWebhook(ctx context.Context, url, secretToken string) error
}

// TelegramClient talks to api.telegram.org over HTTP.
type TelegramClient struct {
	token  string
	client *http.Client
	base   string
}

// NewTelegramClient creates a Bot API client for the given bot token.
func NewTelegramClient(token string) *TelegramClient {
	return &TelegramClient{
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
		base:   "https://api.telegram.org",
	}
}

// NewTelegramClientWithBase overrides the API host; used by tests.
func NewTelegramClientWithBase(token, base string) *TelegramClient {
	c := NewTelegramClient(token)
	c.base = base
	return c
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *TelegramClient) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !tr.OK {
		return fmt.Errorf("telegram %s: %s", method, tr.Description)
	}
	if out != nil {
		return json.Unmarshal(tr.Result, out)
	}
	return nil
}

// SendMessage posts a text message to a chat.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]interface{}{"chat_id": chatID, "text": text}
	return c.call(ctx, "sendMessage", payload, nil)
}

// GetChatMember returns the membership status ("member", "administrator",
// "creator", "left", ...) of a user in a chat.
func (c *TelegramClient) GetChatMember(ctx context.Context, chat string, userID int64) (string, error) {
	payload := map[string]interface{}{"chat_id": chat, "user_id": userID}
	var result struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, "getChatMember", payload, &result); err != nil {
		return "", err
	}
	return result.Status, nil
}

// SetWebhook registers the webhook URL with Telegram, including the secret
// token echoed back in the X-Telegram-Bot-Api-Secret-Token header.
func (c *TelegramClient) SetWebhook(ctx context.Context, url, secretToken string) error {
	payload := map[string]interface{}{"url": url}
	if secretToken != "" {
		payload["secret_token"] = secretToken
	}
	return c.call(ctx, "setWebhook", payload, nil)
}
