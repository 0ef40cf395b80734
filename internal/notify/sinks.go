package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogSink writes every event to the structured log. It is always
// wired, so the log remains a complete record even with no external
// sink configured.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: log.With().Str("component", "notify").Logger()}
}

func (s *LogSink) Deliver(ctx context.Context, e Event) error {
	var evt *zerolog.Event
	switch e.Severity {
	case SeverityCritical:
		evt = s.logger.Error()
	case SeverityWarning:
		evt = s.logger.Warn()
	default:
		evt = s.logger.Info()
	}
	evt.
		Str("event_id", e.ID).
		Str("type", string(e.Type)).
		Str("pair", e.Pair).
		Str("body", e.Body).
		Msg(e.Title)
	return nil
}

func (s *LogSink) Name() string { return "log" }

// TelegramSink forwards events to an operator chat. Info-level noise
// (pair observations, routine denials) stays in the log; the chat gets
// position lifecycle events and anything at warning or above.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram sink auth: %w", err)
	}
	log.Info().
		Str("bot", bot.Self.UserName).
		Int64("chat_id", chatID).
		Msg("telegram notifications enabled")
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Deliver(ctx context.Context, e Event) error {
	if !s.wants(e) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(s.chatID, s.format(e))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (s *TelegramSink) wants(e Event) bool {
	if e.Severity != SeverityInfo {
		return true
	}
	return e.Type == EventPositionOpened || e.Type == EventPositionClosed
}

func (s *TelegramSink) format(e Event) string {
	icon := "ℹ️"
	switch e.Type {
	case EventPositionOpened:
		icon = "🟢"
	case EventExitTriggered:
		icon = "🔔"
	case EventPositionClosed:
		icon = "🔴"
	case EventBlacklistAppended:
		icon = "⛔"
	case EventCriticalAlert:
		icon = "🚨"
	}
	if e.Body == "" {
		return fmt.Sprintf("%s *%s*", icon, e.Title)
	}
	return fmt.Sprintf("%s *%s*\n%s", icon, e.Title, e.Body)
}

func (s *TelegramSink) Name() string { return "telegram" }
