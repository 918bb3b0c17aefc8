package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/config"
)

const defaultAPIURL = "https://api.telegram.org"

// BotClient is a minimal Bot API client for outbound messages.
type BotClient struct {
	client  *http.Client
	baseURL string
	token   string
}

func NewBotClient(token string) *BotClient {
	return &BotClient{
		client:  &http.Client{Timeout: config.TelegramAPITimeout},
		baseURL: defaultAPIURL,
		token:   token,
	}
}

func (c *BotClient) WithBaseURL(baseURL string) *BotClient {
	c.baseURL = baseURL
	return c
}

type sendMessageRequest struct {
	ChatID      string                `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
}

func (c *BotClient) SendMessage(ctx context.Context, chatID string, text string, markup *InlineKeyboardMarkup) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text, ReplyMarkup: markup})
}

// SendText satisfies the payment notifier.
func (c *BotClient) SendText(ctx context.Context, chatID string, text string) error {
	return c.SendMessage(ctx, chatID, text, nil)
}

func (c *BotClient) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID, Text: text})
}

func (c *BotClient) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("method", method).Dur("elapsed", elapsed).Msg("telegram request error")
		return fmt.Errorf("telegram %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !result.OK {
		log.Error().
			Str("method", method).
			Int("status", resp.StatusCode).
			Str("description", result.Description).
			Dur("elapsed", elapsed).
			Msg("telegram request rejected")
		return fmt.Errorf("telegram %s: %d %s", method, result.ErrorCode, result.Description)
	}

	log.Debug().Str("method", method).Dur("elapsed", elapsed).Msg("telegram request ok")
	return nil
}
