package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrDelivery 表示消息未能送达；调用方记录日志后继续。
var ErrDelivery = errors.New("delivery error")

// Notifier 定义告警输送接口。Send 总是返回消息摘要，即使投递失败或投递被禁用。
type Notifier interface {
	Send(ctx context.Context, text string) (string, error)
}

// TelegramOptions configure the Telegram Bot API sink.
type TelegramOptions struct {
	Enabled   bool
	BotToken  string
	ChatID    string
	BaseURL   string
	ParseMode string
	Timeout   time.Duration
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	enabled   bool
	botToken  string
	chatID    string
	baseURL   string
	parseMode string
	client    *http.Client
	logger    zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(opts TelegramOptions, logger zerolog.Logger) *TelegramNotifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	parseMode := opts.ParseMode
	if parseMode == "" {
		parseMode = "HTML"
	}

	return &TelegramNotifier{
		enabled:   opts.Enabled,
		botToken:  opts.BotToken,
		chatID:    opts.ChatID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		parseMode: parseMode,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Send 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Send(ctx context.Context, text string) (string, error) {
	hash := Digest(text)
	if !n.enabled {
		n.logger.Debug().Str("hash", hash).Msg("telegram delivery disabled, message dropped")
		return hash, nil
	}

	if err := n.post(ctx, text); err != nil {
		return hash, fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	n.logger.Info().Str("hash", hash).Msg("告警已发送 (Telegram)")
	return hash, nil
}

func (n *TelegramNotifier) post(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id":    n.chatID,
		"text":       text,
		"parse_mode": n.parseMode,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false: %s", result.Description)
		}
	}
	return nil
}

// LogNotifier writes alerts to the log only. Used when no sink is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-only sink.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Send logs text and returns its digest.
func (n *LogNotifier) Send(_ context.Context, text string) (string, error) {
	hash := Digest(text)
	n.logger.Info().Str("hash", hash).Str("text", text).Msg("alert")
	return hash, nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
