// Package notify delivers lifecycle alerts. Delivery is best-effort: a
// failed send is logged and never fails the cycle.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/lifecycle"
)

// Notifier receives lifecycle events as they happen.
type Notifier interface {
	Notify(ev lifecycle.Event)
}

// Nop is used when no notification channel is configured.
type Nop struct{}

func (Nop) Notify(lifecycle.Event) {}

// Telegram sends Markdown-formatted alerts to a chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

func NewTelegram(token string, chatID int64, log zerolog.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram bot token and chat ID must be set")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	return &Telegram{
		bot:    bot,
		chatID: chatID,
		log:    log.With().Str("component", "notify").Logger(),
	}, nil
}

func (t *Telegram) Notify(ev lifecycle.Event) {
	text := format(ev)
	if text == "" {
		return
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.bot.Send(msg); err != nil {
		t.log.Warn().Err(err).Str("symbol", ev.Symbol).Msg("telegram send failed")
	}
}

func format(ev lifecycle.Event) string {
	switch ev.State {
	case lifecycle.EventOpen:
		p := ev.Position
		dir := "LONG"
		if p.Direction == -1 {
			dir = "SHORT"
		}
		stop := "n/a"
		if p.StopLoss != nil {
			stop = fmt.Sprintf("%.4f", *p.StopLoss)
		}
		return fmt.Sprintf("🚀 OPEN *%s*\nDirection: %s\nEntry: `%.4f`\nStop: `%s`\nTime: `%s`",
			p.Symbol, dir, p.EntryPrice, stop, p.EntryTime.Format("2006-01-02 15:04 UTC"))

	case lifecycle.EventClosed:
		p := ev.Position
		return fmt.Sprintf("❌ CLOSE *%s*\nReason: %s\nExit: `%.4f`\nPnL: `%.2f`\nTime: `%s`",
			p.Symbol, ev.Reason, p.Exit.ExitPrice, p.Exit.PnL, p.Exit.ExitTime.Format("2006-01-02 15:04 UTC"))

	case lifecycle.EventBlocked:
		return fmt.Sprintf("⛔ BLOCKED *%s*\nReason: %s", ev.Symbol, ev.Reason)
	}
	return ""
}
