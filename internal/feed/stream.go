package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/market"
)

// StreamConfig configures the listing stream.
type StreamConfig struct {
	Endpoint         string `yaml:"endpoint"`
	ReconnectDelayMs int    `yaml:"reconnect_delay_ms"`
	PingIntervalS    int    `yaml:"ping_interval_s"`
	MaxReconnects    int    `yaml:"max_reconnects"` // 0 = unlimited
}

// DefaultStreamConfig returns stream defaults.
func DefaultStreamConfig(endpoint string) StreamConfig {
	return StreamConfig{
		Endpoint:         endpoint,
		ReconnectDelayMs: 1000,
		PingIntervalS:    30,
	}
}

// PairSource fetches the full snapshot for an announced pair address.
// Implemented by the DexScreener client.
type PairSource interface {
	Pair(ctx context.Context, pairAddress string) (market.Pair, error)
}

// TradeRecorder receives observed trades from the stream. Implemented
// by the trade window.
type TradeRecorder interface {
	Record(trade market.Trade)
}

// listingFrame announces a new pair. Announcements are light: the full
// snapshot is fetched over HTTP before anything downstream sees it.
type listingFrame struct {
	Chain       string `json:"chain"`
	PairAddress string `json:"pairAddress"`
	DexID       string `json:"dexId"`
}

// tradeFrame is one observed swap on a tracked pair.
type tradeFrame struct {
	PairAddress string  `json:"pairAddress"`
	Maker       string  `json:"maker"`
	Side        string  `json:"side"`
	AmountUSD   float64 `json:"amountUsd"`
	TsMs        int64   `json:"ts"`
}

type streamFrame struct {
	Type    string        `json:"type"`
	Listing *listingFrame `json:"listing,omitempty"`
	Trade   *tradeFrame   `json:"trade,omitempty"`
}

// Stream subscribes to the provider's pair stream and emits full Pair
// snapshots. It reconnects forever with capped backoff; the polling
// fallback covers the gaps.
type Stream struct {
	cfg    StreamConfig
	chain  string
	pairs  PairSource
	trades TradeRecorder
	logger zerolog.Logger

	mu   sync.RWMutex
	conn *websocket.Conn

	listings chan listingFrame
	pairChan chan market.Pair
	closed   atomic.Bool

	messagesRecv   atomic.Int64
	listingsSeen   atomic.Int64
	tradesSeen     atomic.Int64
	hydrateErrors  atomic.Int64
	reconnectCount atomic.Int64
	connected      atomic.Bool
}

// NewStream creates a listing stream. trades may be nil when no trade
// window is wired.
func NewStream(cfg StreamConfig, chain string, pairs PairSource, trades TradeRecorder) *Stream {
	return &Stream{
		cfg:      cfg,
		chain:    chain,
		pairs:    pairs,
		trades:   trades,
		logger:   log.With().Str("component", "stream").Logger(),
		listings: make(chan listingFrame, 256),
		pairChan: make(chan market.Pair, 256),
	}
}

// Start connects and begins emitting pair snapshots. The returned
// channel closes when ctx is cancelled.
func (s *Stream) Start(ctx context.Context) (<-chan market.Pair, error) {
	if s.cfg.Endpoint == "" {
		return nil, fmt.Errorf("stream: no endpoint configured")
	}
	go s.hydrateLoop(ctx)
	go s.runLoop(ctx)
	return s.pairChan, nil
}

func (s *Stream) runLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("stream loop panic recovered")
		}
		s.mu.Lock()
		if s.closed.CompareAndSwap(false, true) {
			close(s.pairChan)
		}
		s.mu.Unlock()
	}()

	reconnectDelay := time.Duration(s.cfg.ReconnectDelayMs) * time.Millisecond
	maxDelay := 30 * time.Second
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			s.disconnect()
			return
		default:
		}

		if s.cfg.MaxReconnects > 0 && attempts >= s.cfg.MaxReconnects {
			s.logger.Error().Int("max", s.cfg.MaxReconnects).Msg("max reconnects reached, cooling down")
			select {
			case <-time.After(time.Minute):
				attempts = 0
				continue
			case <-ctx.Done():
				s.disconnect()
				return
			}
		}

		if err := s.connect(ctx); err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempts).Msg("stream connect failed")
			attempts++
			s.reconnectCount.Add(1)

			select {
			case <-time.After(reconnectDelay):
				reconnectDelay *= 2
				if reconnectDelay > maxDelay {
					reconnectDelay = maxDelay
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		attempts = 0
		reconnectDelay = time.Duration(s.cfg.ReconnectDelayMs) * time.Millisecond

		if err := s.subscribe(); err != nil {
			s.logger.Warn().Err(err).Msg("stream subscribe failed")
		}

		s.readLoop(ctx)
	}
}

func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, s.cfg.Endpoint, http.Header{})
	if err != nil {
		return fmt.Errorf("stream: dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.connected.Store(true)

	s.logger.Info().Str("endpoint", s.cfg.Endpoint).Msg("stream connected")
	return nil
}

func (s *Stream) disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected.Store(false)
}

// subscribe requests listing and trade frames for the chain.
func (s *Stream) subscribe() error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("stream: not connected")
	}

	req := map[string]any{
		"op":       "subscribe",
		"channels": []string{"listings", "trades"},
		"chain":    s.chain,
	}

	s.mu.Lock()
	err := s.conn.WriteJSON(req)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("stream: write subscribe: %w", err)
	}

	s.logger.Info().Str("chain", s.chain).Msg("stream subscribed")
	return nil
}

func (s *Stream) readLoop(ctx context.Context) {
	pingInterval := time.Duration(s.cfg.PingIntervalS) * time.Second
	if pingInterval == 0 {
		pingInterval = 30 * time.Second
	}
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn != nil {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.logger.Debug().Err(err).Msg("stream ping failed")
					return
				}
			}
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Info().Msg("stream closed normally")
			} else {
				s.logger.Warn().Err(err).Msg("stream read error, reconnecting")
			}
			s.connected.Store(false)
			return
		}

		s.messagesRecv.Add(1)
		s.handleFrame(message)
	}
}

func (s *Stream) handleFrame(data []byte) {
	var frame streamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	switch frame.Type {
	case "listing":
		if frame.Listing == nil || frame.Listing.PairAddress == "" {
			return
		}
		if s.chain != "" && frame.Listing.Chain != s.chain {
			return
		}
		s.listingsSeen.Add(1)
		select {
		case s.listings <- *frame.Listing:
		default:
			s.logger.Warn().Msg("listing queue full, dropping")
		}

	case "trade":
		if frame.Trade == nil || s.trades == nil {
			return
		}
		s.tradesSeen.Add(1)
		s.trades.Record(market.Trade{
			PairAddress: frame.Trade.PairAddress,
			Maker:       frame.Trade.Maker,
			Side:        market.TradeSide(frame.Trade.Side),
			AmountUSD:   frame.Trade.AmountUSD,
			At:          time.UnixMilli(frame.Trade.TsMs),
		})
	}
}

// hydrateLoop turns announced addresses into full Pair snapshots.
func (s *Stream) hydrateLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case listing := <-s.listings:
			fctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			pair, err := s.pairs.Pair(fctx, listing.PairAddress)
			cancel()
			if err != nil {
				s.hydrateErrors.Add(1)
				s.logger.Warn().Err(err).
					Str("pair", listing.PairAddress).
					Msg("listing hydrate failed")
				continue
			}

			s.mu.RLock()
			if !s.closed.Load() {
				select {
				case s.pairChan <- pair:
				default:
					s.logger.Warn().Msg("pair channel full, dropping")
				}
			}
			s.mu.RUnlock()
		}
	}
}

// StreamStats is a snapshot of stream counters.
type StreamStats struct {
	Connected     bool  `json:"connected"`
	MessagesRecv  int64 `json:"messages_recv"`
	ListingsSeen  int64 `json:"listings_seen"`
	TradesSeen    int64 `json:"trades_seen"`
	HydrateErrors int64 `json:"hydrate_errors"`
	Reconnects    int64 `json:"reconnects"`
}

func (s *Stream) Stats() StreamStats {
	return StreamStats{
		Connected:     s.connected.Load(),
		MessagesRecv:  s.messagesRecv.Load(),
		ListingsSeen:  s.listingsSeen.Load(),
		TradesSeen:    s.tradesSeen.Load(),
		HydrateErrors: s.hydrateErrors.Load(),
		Reconnects:    s.reconnectCount.Load(),
	}
}
