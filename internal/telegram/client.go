// Package telegram sends the daily digest of value bets and clone pairs via
// the Telegram Bot API, with retry logic for delivery reliability.
package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mrenaud/footoracle/internal/models"
)

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

// SendDigest sends the daily digest. Nothing is sent for a day with no value
// bets and no clone pairs.
func (c *Client) SendDigest(day time.Time, valueBets []models.Prediction, clones []models.ClonePair) error {
	if len(valueBets) == 0 && len(clones) == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(c.chatID, FormatDigest(day, valueBets, clones))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send digest after %d retries: %w", c.maxRetries, lastErr)
}

// FormatDigest renders the digest in Telegram MarkdownV2.
func FormatDigest(day time.Time, valueBets []models.Prediction, clones []models.ClonePair) string {
	message := "⚽ *Daily Value Report*\n"
	message += fmt.Sprintf("📅 %s\n\n", escapeMarkdownV2(day.Format("2006-01-02")))

	if len(valueBets) > 0 {
		message += fmt.Sprintf("💰 *Value Bets \\(%d\\)*\n", len(valueBets))
		for i, bet := range valueBets {
			fixture := escapeMarkdownV2(fmt.Sprintf("%s vs %s", bet.HomeTeam, bet.AwayTeam))
			pick := escapeMarkdownV2(fmt.Sprintf("%s %s", bet.Market, bet.Selection))
			probStr := escapeMarkdownV2(fmt.Sprintf("%.1f%%", bet.Prob*100))

			message += fmt.Sprintf("%d\\. %s\n", i+1, fixture)
			if bet.Odd != nil && bet.Value != nil {
				oddStr := escapeMarkdownV2(fmt.Sprintf("%.2f", *bet.Odd))
				valueStr := escapeMarkdownV2(fmt.Sprintf("%+.1f%%", *bet.Value*100))
				message += fmt.Sprintf("   🎯 %s at %s \\(p %s, edge *%s*\\)\n", pick, oddStr, probStr, valueStr)
			} else {
				message += fmt.Sprintf("   🎯 %s \\(p %s, no price\\)\n", pick, probStr)
			}
		}
		message += "\n"
	}

	if len(clones) > 0 {
		message += fmt.Sprintf("👯 *Clone Pairs \\(%d\\)*\n", len(clones))
		for i, pair := range clones {
			label := escapeMarkdownV2(fmt.Sprintf("%s ↔ %s", pair.LabelA, pair.LabelB))
			simStr := escapeMarkdownV2(fmt.Sprintf("%.2f", pair.Similarity))
			message += fmt.Sprintf("%d\\. %s\n   📊 similarity *%s*\n", i+1, label, simStr)
		}
	}

	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}
