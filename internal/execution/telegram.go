package execution

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nexus-trading/warden/internal/market"
)

// TelegramBroker drives a trading bot over Telegram chat commands.
// A delivered command message counts as a submitted order; the bot's
// own confirmation arrives asynchronously in the chat and is not
// awaited here. The order ref is the outgoing message ID.
type TelegramBroker struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger

	requests atomic.Int64
	errorCnt atomic.Int64
}

var _ Broker = (*TelegramBroker)(nil)

// NewTelegramBroker connects to the Telegram API and verifies the
// token.
func NewTelegramBroker(token string, chatID int64, timeout time.Duration) (*TelegramBroker, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram broker auth: %w", err)
	}
	if timeout > 0 {
		bot.Client = &http.Client{Timeout: timeout}
	}

	log.Info().
		Str("bot", bot.Self.UserName).
		Int64("chat_id", chatID).
		Msg("telegram broker connected")

	return &TelegramBroker{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram-broker").Logger(),
	}, nil
}

// Submit sends the trade command to the bot chat. The bot parses
// `/trade <side> <pair> <amount>USD` with a whole-dollar amount; the
// slippage setting lives in the bot, not the command.
func (t *TelegramBroker) Submit(ctx context.Context, side market.TradeSide, pairAddress string, amountUSD decimal.Decimal, slippageBps int) (Order, error) {
	// tgbotapi has no context support; honor cancellation before the send.
	if err := ctx.Err(); err != nil {
		return Order{}, &ExecError{Code: CodeTimeout, Op: string(side), Pair: pairAddress, Retryable: true, Err: err}
	}

	switch side {
	case market.TradeBuy, market.TradeSell:
	default:
		return Order{}, &ExecError{Code: CodeInvalid, Op: string(side), Pair: pairAddress, Retryable: false,
			Err: fmt.Errorf("unknown side %q", side)}
	}
	text := tradeCommand(side, pairAddress, amountUSD)

	t.requests.Add(1)
	sent, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text))
	if err != nil {
		t.errorCnt.Add(1)
		return Order{}, t.classify(string(side), pairAddress, err)
	}

	order := Order{
		Ref:         fmt.Sprintf("tg-%d", sent.MessageID),
		Pair:        pairAddress,
		Side:        side,
		AmountUSD:   amountUSD,
		SlippageBps: slippageBps,
		SubmittedAt: time.Now(),
	}

	t.logger.Info().
		Str("ref", order.Ref).
		Str("pair", pairAddress).
		Str("side", string(side)).
		Msg("trade command delivered")

	return order, nil
}

// tradeCommand renders the chat command the bot parses. Amounts are
// rounded to whole dollars.
func tradeCommand(side market.TradeSide, pairAddress string, amountUSD decimal.Decimal) string {
	return fmt.Sprintf("/trade %s %s %sUSD", side, pairAddress, amountUSD.StringFixed(0))
}

// classify maps Telegram API failures to the execution error taxonomy.
// Rate limits and server errors are transient; everything the API
// rejected outright is terminal.
func (t *TelegramBroker) classify(op, pair string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		switch {
		case tgErr.Code == http.StatusTooManyRequests:
			return &ExecError{Code: CodeRateLimited, Op: op, Pair: pair, Retryable: true, Err: err}
		case tgErr.Code >= http.StatusInternalServerError:
			return &ExecError{Code: CodeUnavailable, Op: op, Pair: pair, Retryable: true, Err: err}
		default:
			return &ExecError{Code: CodeRejected, Op: op, Pair: pair, Retryable: false, Err: err}
		}
	}
	// No API response at all: transport trouble, worth retrying.
	return &ExecError{Code: CodeUnavailable, Op: op, Pair: pair, Retryable: true, Err: err}
}

func (t *TelegramBroker) Name() string { return "telegram" }

// TelegramStats are cumulative counters for the control plane.
type TelegramStats struct {
	Requests int64 `json:"requests"`
	Errors   int64 `json:"errors"`
}

func (t *TelegramBroker) Stats() TelegramStats {
	return TelegramStats{
		Requests: t.requests.Load(),
		Errors:   t.errorCnt.Load(),
	}
}
