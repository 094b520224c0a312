package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"floodguard/internal/models"
	"floodguard/pkg/logging"
)

// Sender is the part of the bot API the notifier uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramOptions configures the Telegram notifier
type TelegramOptions struct {
	ChatID         int64
	MaxRetries     int
	RetryDelayBase time.Duration
	ExplorerURL    string
}

// Telegram sends MarkdownV2 messages to one chat
type Telegram struct {
	sender Sender
	opts   TelegramOptions
	logger *logging.StructuredLogger
}

// NewTelegram connects to the Bot API with botToken
func NewTelegram(botToken string, opts TelegramOptions, logger *logging.StructuredLogger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return NewTelegramWithSender(bot, opts, logger), nil
}

// NewTelegramWithSender builds a notifier over an existing sender
func NewTelegramWithSender(sender Sender, opts TelegramOptions, logger *logging.StructuredLogger) *Telegram {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelayBase <= 0 {
		opts.RetryDelayBase = time.Second
	}
	return &Telegram{
		sender: sender,
		opts:   opts,
		logger: logger,
	}
}

// NotifyFloodAlert sends the metrics that triggered a flood risk
func (t *Telegram) NotifyFloodAlert(ctx context.Context, alert *Alert) error {
	return t.sendMarkdownV2(ctx, "flood_alert", t.formatAlert(alert))
}

// NotifyFailure sends a sync error notification
func (t *Telegram) NotifyFailure(ctx context.Context, stationID string, err error) error {
	text := fmt.Sprintf("⚠️ *Flood sync error* \\(station %s\\)\n`%s`",
		escapeMarkdownV2(stationID), escapeMarkdownV2(models.ReasonOf(err)))
	if kind := models.KindOf(err); kind != "" {
		text += fmt.Sprintf("\nKind: %s", escapeMarkdownV2(string(kind)))
	}
	return t.sendMarkdownV2(ctx, "failure", text)
}

// NotifyRecovery sends a recovery notification after consecutive failures
func (t *Telegram) NotifyRecovery(ctx context.Context, stationID string, failures int) error {
	text := fmt.Sprintf("✅ *Flood sync recovered* \\(station %s\\) after %d consecutive failure\\(s\\)",
		escapeMarkdownV2(stationID), failures)
	return t.sendMarkdownV2(ctx, "recovery", text)
}

// sendMarkdownV2 sends text with linear-backoff retry
func (t *Telegram) sendMarkdownV2(ctx context.Context, kind, text string) error {
	msg := tgbotapi.NewMessage(t.opts.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < t.opts.MaxRetries; i++ {
		_, err := t.sender.Send(msg)
		if err == nil {
			t.logger.Debug(ctx, "[TELEGRAM_SEND] Notification sent", logging.Fields{
				"kind":    kind,
				"attempt": i + 1,
			})
			return nil
		}
		lastErr = err

		t.logger.WarnErr(ctx, "[TELEGRAM_RETRY] Send failed", logging.Fields{
			"kind":    kind,
			"attempt": i + 1,
		}, err)

		if i == t.opts.MaxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.opts.RetryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", t.opts.MaxRetries, lastErr)
}

func (t *Telegram) formatAlert(alert *Alert) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🌊 *Flood risk detected* \\(station %s\\)\n", escapeMarkdownV2(alert.StationID)))

	if m := alert.Metrics; m != nil {
		b.WriteString(fmt.Sprintf("📅 %s\n\n", escapeMarkdownV2(m.Timestamp.UTC().Format("2006-01-02 15:04 MST"))))
		b.WriteString(fmt.Sprintf("Water level: %s\n", escapeMarkdownV2(fmt.Sprintf("%.2f m", m.WaterLevel))))
		b.WriteString(fmt.Sprintf("High tide: %s\n", escapeMarkdownV2(fmt.Sprintf("%.2f m", m.TidePrediction))))
		b.WriteString(fmt.Sprintf("Current speed: %s\n", escapeMarkdownV2(fmt.Sprintf("%.2f m/s", m.CurrentSpeed))))
		b.WriteString(fmt.Sprintf("Local assessment: *%s*\n", riskLabel(m.FloodRisk)))
	}

	if oc := alert.OnChain; oc != nil {
		b.WriteString(fmt.Sprintf("On\\-chain threat level: *%s* \\(%s\\)\n",
			escapeMarkdownV2(oc.ThreatLevel.String()), riskLabel(oc.FloodRisk)))
	}

	if alert.TxHash != "" {
		if t.opts.ExplorerURL != "" {
			link := strings.TrimRight(t.opts.ExplorerURL, "/") + "/tx/" + alert.TxHash
			b.WriteString(fmt.Sprintf("\n[%s](%s)\n", escapeMarkdownV2(shortHash(alert.TxHash)), link))
		} else {
			b.WriteString(fmt.Sprintf("\nTx: `%s`\n", escapeMarkdownV2(alert.TxHash)))
		}
	}

	return b.String()
}

func riskLabel(atRisk bool) string {
	if atRisk {
		return "AT RISK"
	}
	return "normal"
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + "…" + hash[len(hash)-6:]
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
