// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// FitLine is one fitted model in a dataset report.
type FitLine struct {
	Model     string
	Params    map[string]float64
	Loss      float64
	Projected float64 // retention at the report horizon
	Degraded  bool    // projected retention fell below the alert threshold
}

// Report summarizes one fit cycle's results for a dataset.
type Report struct {
	Dataset string
	Horizon int
	Fits    []FitLine
	Failed  []string // model names that failed to converge
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a fit-cycle error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Fit cycle error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Fit cycle recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// Send sends one dataset's fit report.
func (c *Client) Send(report Report) error {
	return c.sendMarkdownV2(c.formatMessage(report))
}

// paramOrder is the display order for model parameters.
var paramOrder = []string{"alpha", "beta", "c"}

// formatMessage formats a fit report into a Telegram MarkdownV2 message.
func (c *Client) formatMessage(report Report) string {
	message := fmt.Sprintf("📊 *Retention fit: %s*\n\n", escapeMarkdownV2(report.Dataset))

	for _, fit := range report.Fits {
		projStr := escapeMarkdownV2(fmt.Sprintf("%.1f%%", fit.Projected*100))
		lossStr := escapeMarkdownV2(fmt.Sprintf("%.4f", fit.Loss))

		statusEmoji := "📈"
		if fit.Degraded {
			statusEmoji = "🔻"
		}

		message += fmt.Sprintf("%s *%s*: %s retained at period %d\n",
			statusEmoji, escapeMarkdownV2(fit.Model), projStr, report.Horizon)
		message += fmt.Sprintf("   `%s`  loss %s\n", formatParams(fit.Params), lossStr)
		if fit.Degraded {
			message += "   ⚠️ projected retention below threshold\n"
		}
	}

	for _, model := range report.Failed {
		message += fmt.Sprintf("❌ *%s*: did not converge\n", escapeMarkdownV2(model))
	}

	return message
}

// formatParams renders parameters in canonical order for a code span, so no
// MarkdownV2 escaping is applied.
func formatParams(params map[string]float64) string {
	parts := make([]string, 0, len(params))
	for _, name := range paramOrder {
		if v, ok := params[name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.4f", name, v))
		}
	}
	return strings.Join(parts, " ")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
