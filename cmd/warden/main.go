package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/warden/internal/adapters/dexscreener"
	"github.com/nexus-trading/warden/internal/adapters/pocketuniverse"
	"github.com/nexus-trading/warden/internal/adapters/rugcheck"
	"github.com/nexus-trading/warden/internal/audit"
	"github.com/nexus-trading/warden/internal/blacklist"
	"github.com/nexus-trading/warden/internal/config"
	"github.com/nexus-trading/warden/internal/engine"
	"github.com/nexus-trading/warden/internal/execution"
	"github.com/nexus-trading/warden/internal/feed"
	"github.com/nexus-trading/warden/internal/journal"
	"github.com/nexus-trading/warden/internal/market"
	"github.com/nexus-trading/warden/internal/notify"
	"github.com/nexus-trading/warden/internal/observability"
	"github.com/nexus-trading/warden/internal/position"
	"github.com/nexus-trading/warden/internal/risk"
	"github.com/nexus-trading/warden/internal/storage/memory"
	"github.com/nexus-trading/warden/internal/storage/sqlite"
	"github.com/nexus-trading/warden/internal/verify"
)

func main() {
	// 1. Parse flags.
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	dryFlag := flag.Bool("dry-run", false, "Paper execution and in-memory storage, no real orders")
	logLevel := flag.String("log-level", "", "Override configured log level")
	flag.Parse()

	// 2. Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.General.LogLevel = *logLevel
	}
	dryRun := *dryFlag || cfg.General.DryRun

	// 3. Setup logging.
	setupLogging(cfg.General)

	log.Info().Msg("=============================================")
	log.Info().Msg("WARDEN Token Decision Engine - Starting")
	log.Info().Msg("OBSERVE -> VERIFY -> GATE -> ENTER -> EXIT")
	log.Info().Msg("UNVERIFIED MEANS UNSAFE")
	log.Info().Msg("=============================================")

	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Str("chain", cfg.General.Chain).
		Bool("dry_run", dryRun).
		Str("execution_mode", cfg.Execution.Mode).
		Bool("auto_trade", cfg.Trading.AutoTrade).
		Float64("trade_amount_usd", cfg.Trading.TradeAmountUSD).
		Float64("stop_loss_pct", cfg.Trading.StopLossPct).
		Float64("take_profit_pct", cfg.Trading.TakeProfitPct).
		Int("max_open_positions", cfg.Trading.MaxOpenPositions).
		Float64("min_liquidity_usd", cfg.Filters.MinLiquidityUSD).
		Float64("min_volume_24h_usd", cfg.Filters.MinVolume24hUSD).
		Msg("Configuration loaded")

	// 3b. Validate configuration.
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}

	// 4. Open storage. A dry run keeps everything in memory so a test
	// flight never touches the operator's database.
	var (
		db        *sqlite.DB
		blStore   blacklist.Store
		posStore  position.Store
		trdStore  journal.Store
		obsStore  journal.ObservationStore
		auditSink audit.Sink
	)
	if dryRun {
		blStore = memory.NewBlacklistStore()
		posStore = memory.NewPositionStore()
		trdStore = memory.NewJournalStore()
		obsStore = memory.NewAnalysisStore()
		log.Info().Msg("Storage: in-memory (dry run)")
	} else {
		db, err = sqlite.Open(cfg.Storage.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: failed to open database at %s: %v\n", cfg.Storage.Path, err)
			os.Exit(1)
		}
		defer db.Close()
		blStore = sqlite.NewBlacklistStore(db)
		posStore = sqlite.NewPositionStore(db)
		trdStore = sqlite.NewJournalStore(db)
		obsStore = sqlite.NewAnalysisStore(db)
		auditSink = sqlite.NewAuditSink(db)
		log.Info().Str("path", cfg.Storage.Path).Msg("Storage: sqlite")

		retention := time.Duration(cfg.Storage.JournalRetentionD) * 24 * time.Hour
		pruneCtx, pruneCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Prune(pruneCtx, time.Now().Add(-retention)); err != nil {
			log.Warn().Err(err).Msg("Startup journal prune failed")
		}
		pruneCancel()
	}

	// 5. Blacklist and risk gate.
	deny := blacklist.New(blStore)
	gate := risk.NewGate(cfg.Filters)

	// 6. Market data adapter.
	dxs := dexscreener.New(cfg.Providers.Dexscreener, cfg.General.Chain)
	log.Info().
		Str("base_url", cfg.Providers.Dexscreener.BaseURL).
		Float64("rate_per_sec", cfg.Providers.Dexscreener.RatePerSec).
		Msg("DexScreener adapter initialized")

	// 7. Verification. The trade window feeds the volume heuristics,
	// which back up Pocket Universe when it is enabled and stand alone
	// when it is not. A disabled safety oracle fails closed: nothing
	// can be verified, so nothing opens.
	window := feed.NewTradeWindow(15*time.Minute, 512)
	heur := verify.NewHeuristics(cfg.Verification.Heuristics, window)

	var safety verify.SafetyProvider
	var rug *rugcheck.Client
	if cfg.Providers.Rugcheck.Enabled {
		rug = rugcheck.New(cfg.Providers.Rugcheck, cfg.Verification.Supply)
		safety = rug
		log.Info().Str("base_url", cfg.Providers.Rugcheck.BaseURL).Msg("Rugcheck adapter initialized")
	} else {
		safety = disabledSafety{}
		log.Warn().Msg("Rugcheck disabled: safety checks fail closed, no position can open")
	}

	var volumeProvider verify.VolumeProvider = heur
	var pocket *pocketuniverse.Client
	if cfg.Providers.PocketUniverse.Enabled {
		pocket = pocketuniverse.New(cfg.Providers.PocketUniverse, cfg.Verification.MinRealVolumeRatio)
		volumeProvider = verify.NewFallbackProvider(pocket, heur)
		log.Info().Str("base_url", cfg.Providers.PocketUniverse.BaseURL).Msg("Pocket Universe adapter initialized (heuristics fallback)")
	} else {
		log.Info().Msg("Volume verification: trade heuristics only")
	}

	vcfg := verify.Config{
		ProviderTimeout: time.Duration(cfg.Verification.ProviderTimeoutS) * time.Second,
		RetryBackoff:    time.Duration(cfg.Verification.RetryBackoffMs) * time.Millisecond,
	}
	verifier := verify.NewVerifier(vcfg, safety, deny)
	volume := verify.NewVolumeAnalyzer(vcfg, volumeProvider)

	// 8. Execution broker.
	var broker execution.Broker
	if dryRun || cfg.Execution.Mode == "paper" {
		broker = execution.NewPaperBroker(150 * time.Millisecond)
		log.Info().Msg("Execution: paper broker")
	} else {
		tb, err := execution.NewTelegramBroker(cfg.Telegram.Token, cfg.Execution.BotChatID,
			time.Duration(cfg.Execution.TimeoutS)*time.Second)
		if err != nil {
			log.Fatal().Err(err).Msg("Telegram broker initialization failed")
		}
		broker = tb
		log.Info().Int64("bot_chat_id", cfg.Execution.BotChatID).Msg("Execution: telegram broker")
	}
	bridge := execution.NewBridge(execution.Config{
		Timeout:      time.Duration(cfg.Execution.TimeoutS) * time.Second,
		MaxRetries:   cfg.Execution.MaxRetries,
		RetryBackoff: time.Duration(cfg.Execution.RetryBackoffMs) * time.Millisecond,
	}, broker)

	// 9. Position manager.
	mgr := position.NewManager(position.Config{
		PollInterval: time.Duration(cfg.Trading.PricePollIntervalS) * time.Second,
		PriceTimeout: time.Duration(cfg.Providers.Dexscreener.TimeoutS) * time.Second,
	}, posStore, gate, bridge, dxs, deny)

	// 10. Notifications.
	sinks := []notify.Sink{notify.NewLogSink()}
	if cfg.Telegram.Enabled {
		ts, err := notify.NewTelegramSink(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram sink initialization failed (continuing with log sink only)")
		} else {
			sinks = append(sinks, ts)
			log.Info().Int64("chat_id", cfg.Telegram.ChatID).Msg("Notifications: telegram sink enabled")
		}
	}
	dispatcher := notify.NewDispatcher(256, sinks...)

	// 11. Audit trail, trade journal, analysis log, metrics.
	trail := audit.NewTrail(auditSink, 2048)
	recorder := journal.NewRecorder(trdStore)
	analyses := journal.NewAnalysisLog(obsStore)
	metrics := observability.NewMetrics("warden")

	// 12. Discovery feeds. The poller closure dereferences eng at call
	// time; the engine starts the feeds only after it exists.
	var eng *engine.Engine
	var poller *feed.Poller
	if len(cfg.Discovery.Queries) > 0 {
		poller = feed.NewPoller(cfg.Discovery, cfg.General.Chain, dxs,
			func(ctx context.Context, pair market.Pair, source string) {
				eng.Submit(ctx, pair, source)
			})
		log.Info().
			Strs("queries", cfg.Discovery.Queries).
			Int("poll_interval_s", cfg.Discovery.PollIntervalS).
			Msg("Discovery poller initialized")
	}
	var stream *feed.Stream
	if cfg.Discovery.WSEndpoint != "" {
		stream = feed.NewStream(feed.DefaultStreamConfig(cfg.Discovery.WSEndpoint),
			cfg.General.Chain, dxs, window)
		log.Info().Str("endpoint", cfg.Discovery.WSEndpoint).Msg("Listing stream initialized")
	}

	// 13. Engine.
	eng = engine.New(cfg, engine.Deps{
		Verifier:   verifier,
		Volume:     volume,
		Manager:    mgr,
		Gate:       gate,
		Blacklist:  deny,
		Dispatcher: dispatcher,
		Pairs:      dxs,
		Trail:      trail,
		Metrics:    metrics,
		Analyses:   analyses,
		Trades:     recorder,
		Poller:     poller,
		Stream:     stream,
		Window:     window,
	})

	// 14. Health monitor.
	health := observability.NewHealthMonitor(30 * time.Second)
	health.Register("dexscreener", func(_ context.Context) observability.ComponentHealth {
		s := dxs.Stats()
		h := observability.ComponentHealth{
			Status:  observability.StatusHealthy,
			Details: map[string]any{"requests": s.RequestCount, "errors": s.ErrorCount},
		}
		if s.CircuitOpen {
			h.Status = observability.StatusUnhealthy
			h.Message = "circuit open"
		}
		return h
	})
	if rug != nil {
		health.Register("rugcheck", func(_ context.Context) observability.ComponentHealth {
			s := rug.Stats()
			h := observability.ComponentHealth{
				Status:  observability.StatusHealthy,
				Details: map[string]any{"requests": s.RequestCount, "errors": s.ErrorCount},
			}
			if s.CircuitOpen {
				h.Status = observability.StatusUnhealthy
				h.Message = "circuit open"
			}
			return h
		})
	}
	if stream != nil {
		health.Register("stream", func(_ context.Context) observability.ComponentHealth {
			s := stream.Stats()
			h := observability.ComponentHealth{
				Status:  observability.StatusHealthy,
				Details: map[string]any{"listings_seen": s.ListingsSeen, "reconnects": s.Reconnects},
			}
			if !s.Connected {
				h.Status = observability.StatusDegraded
				h.Message = "websocket disconnected, poller covers discovery"
			}
			return h
		})
	}
	health.Register("positions", func(_ context.Context) observability.ComponentHealth {
		s := mgr.Stats()
		h := observability.ComponentHealth{
			Status:  observability.StatusHealthy,
			Details: map[string]any{"live": s.Live, "poll_errors": s.PollErrors},
		}
		if s.ConsistencyFaults > 0 {
			h.Status = observability.StatusDegraded
			h.Message = fmt.Sprintf("%d consistency faults recorded", s.ConsistencyFaults)
		}
		return h
	})
	health.SetOnTransition(func(name string, from, to observability.Status, msg string) {
		log.Warn().
			Str("component", name).
			Str("from", string(from)).
			Str("to", string(to)).
			Str("message", msg).
			Msg("Component health transition")
	})

	// 15. Setup context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	// 16. Start engine. Blacklist load and position recovery happen
	// inside; the feeds begin producing only after both finish.
	if err := eng.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Engine start failed")
	}

	// 17. Start services.
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Start(ctx)
	}()

	// Start HTTP control plane.
	wg.Add(1)
	go func() {
		defer wg.Done()
		mux := http.NewServeMux()

		// ── Health ──
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			h := health.Check(r.Context())
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"status":     h.Status,
				"components": h.Components,
				"uptime_s":   h.UptimeS,
				"dry_run":    dryRun,
				"paused":     gate.Paused(),
				"killed":     gate.Killed(),
			})
		})

		// ── Metrics ──
		mux.Handle("/metrics", metrics.Handler())

		// ── Stats ──
		mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
			combined := map[string]any{
				"engine":      eng.Stats(),
				"dexscreener": dxs.Stats(),
				"bridge":      bridge.Stats(),
				"trades":      window.Stats(),
				"journal": map[string]any{
					"trades_recorded":       recorder.Recorded(),
					"observations_recorded": analyses.Recorded(),
				},
				"audit_buffered": trail.Len(),
				"dry_run":        dryRun,
			}
			if rug != nil {
				combined["rugcheck"] = rug.Stats()
			}
			if pocket != nil {
				combined["pocket_universe"] = pocket.Stats()
			}
			if poller != nil {
				combined["poller"] = poller.Stats()
			}
			if stream != nil {
				combined["stream"] = stream.Stats()
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(combined)
		})

		// ── Analysis ──
		mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
			pair := r.URL.Query().Get("pair")
			if pair == "" {
				http.Error(w, "pair query parameter required", http.StatusBadRequest)
				return
			}
			res, err := eng.Analyze(r.Context(), pair)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(res)
		})

		// ── Trading ──
		mux.HandleFunc("/trade/start", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST only", http.StatusMethodNotAllowed)
				return
			}
			var req struct {
				PairAddress string `json:"pair_address"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PairAddress == "" {
				http.Error(w, "pair_address required", http.StatusBadRequest)
				return
			}
			res, err := eng.StartTrade(r.Context(), req.PairAddress)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(res)
		})

		mux.HandleFunc("/trade/stop", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST only", http.StatusMethodNotAllowed)
				return
			}
			var req struct {
				PairAddress string `json:"pair_address"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PairAddress == "" {
				http.Error(w, "pair_address required", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"pair_address": req.PairAddress,
				"status":       eng.StopTrade(req.PairAddress),
			})
		})

		// ── Settings ──
		mux.HandleFunc("/settings", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.Method {
			case http.MethodGet:
				json.NewEncoder(w).Encode(eng.Settings())
			case http.MethodPost:
				tcfg := eng.Settings()
				if err := json.NewDecoder(r.Body).Decode(&tcfg); err != nil {
					http.Error(w, "invalid settings payload", http.StatusBadRequest)
					return
				}
				if err := eng.UpdateSettings(tcfg); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				json.NewEncoder(w).Encode(map[string]any{
					"status":   "updated",
					"settings": eng.Settings(),
				})
			default:
				http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
			}
		})

		// ── Positions ──
		mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(eng.Positions(r.Context()))
		})

		// ── Blacklist ──
		mux.HandleFunc("/blacklist", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch r.Method {
			case http.MethodGet:
				json.NewEncoder(w).Encode(eng.BlacklistEntries())
			case http.MethodPost:
				var req struct {
					Address string `json:"address"`
					Kind    string `json:"kind"`
					Reason  string `json:"reason"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
					http.Error(w, "address required", http.StatusBadRequest)
					return
				}
				if req.Kind == "" {
					req.Kind = string(blacklist.KindToken)
				}
				if err := eng.AppendBlacklist(r.Context(), req.Address, blacklist.Kind(req.Kind), req.Reason); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				json.NewEncoder(w).Encode(map[string]any{
					"status":  "added",
					"address": req.Address,
					"kind":    req.Kind,
				})
			default:
				http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
			}
		})

		// ── Audit ──
		mux.HandleFunc("/audit", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			var entries []audit.Entry
			switch {
			case q.Get("trace") != "":
				entries = eng.AuditByTrace(q.Get("trace"))
			case q.Get("pair") != "":
				entries = eng.AuditByPair(q.Get("pair"))
			default:
				n := 100
				if v := q.Get("n"); v != "" {
					if parsed, err := strconv.Atoi(v); err == nil {
						n = parsed
					}
				}
				entries = eng.AuditRecent(n)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(entries)
		})

		// ── Control Plane ──
		mux.HandleFunc("/control/pause", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST only", http.StatusMethodNotAllowed)
				return
			}
			eng.Pause()
			log.Warn().Msg("[CONTROL] Trading PAUSED - no new entries")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status":"paused"}`)
		})

		mux.HandleFunc("/control/resume", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST only", http.StatusMethodNotAllowed)
				return
			}
			eng.Resume()
			status := "running"
			if gate.Killed() {
				status = "killed"
			} else {
				log.Info().Msg("[CONTROL] Trading RESUMED")
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status":%q}`, status)
		})

		mux.HandleFunc("/control/kill", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST only", http.StatusMethodNotAllowed)
				return
			}
			eng.Kill("control plane")
			log.Error().Msg("[CONTROL] KILL SWITCH - closing all positions")

			// Close every live position through the normal exit path.
			go func() {
				killCtx, killCancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer killCancel()
				for _, pos := range eng.Positions(killCtx).Live {
					eng.StopTrade(pos.PairAddress)
				}
			}()

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status":"killed","action":"close_all"}`)
		})

		mux.HandleFunc("/control/status", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"paused":      gate.Paused(),
				"killed":      gate.Killed(),
				"dry_run":     dryRun,
				"live":        mgr.Stats().Live,
				"instance_id": cfg.General.InstanceID,
			})
		})

		server := &http.Server{
			Addr:              cfg.Server.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		log.Info().Str("addr", cfg.Server.Listen).Msg("Control plane HTTP server started")

		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			server.Shutdown(shutdownCtx)
		}()

		if srvErr := server.ListenAndServe(); srvErr != nil && srvErr != http.ErrServerClosed {
			log.Error().Err(srvErr).Msg("HTTP server error")
		}
	}()

	// Periodic stats logging.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				es := eng.Stats()
				log.Info().
					Int64("pairs_observed", es.Intake.Observed).
					Int64("pairs_accepted", es.Intake.Accepted).
					Int64("evaluations", es.Positions.Evaluations).
					Int64("opened", es.Positions.Opened).
					Int("live", es.Positions.Live).
					Int64("closed", es.Positions.Closed).
					Int64("unsafe_results", es.Verifier.UnsafeResults).
					Int64("fake_volume", es.Volume.FakeVerdicts).
					Int64("gate_denials", es.Gate.Denials).
					Int64("notify_dropped", es.Notify.Dropped).
					Bool("paused", es.Gate.Paused).
					Msg("[STATS]")
			}
		}
	}()

	// Periodic journal prune (persistent storage only).
	if db != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			retention := time.Duration(cfg.Storage.JournalRetentionD) * 24 * time.Hour
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pruneCtx, pruneCancel := context.WithTimeout(ctx, time.Minute)
					if err := db.Prune(pruneCtx, time.Now().Add(-retention)); err != nil {
						log.Warn().Err(err).Msg("Journal prune failed")
					}
					pruneCancel()
				}
			}
		}()
	}

	log.Info().Msg("WARDEN Token Decision Engine - Running")
	log.Info().Msg("Pipeline: Feed -> Intake -> Verify -> Gate -> Position -> Exit")

	// 18. Block until shutdown.
	<-ctx.Done()

	// 19. Graceful shutdown. The engine drains the feeds, closes the
	// position monitors and flushes notifications before returning.
	log.Info().Msg("Shutting down Warden...")

	eng.Stop()
	health.Stop()
	wg.Wait()

	// Final stats.
	es := eng.Stats()
	log.Info().
		Int64("pairs_observed", es.Intake.Observed).
		Int64("pairs_accepted", es.Intake.Accepted).
		Int64("positions_opened", es.Positions.Opened).
		Int64("positions_closed", es.Positions.Closed).
		Int64("stop_loss_exits", es.Positions.StopLossExits).
		Int64("take_profit_exits", es.Positions.TakeProfitExits).
		Int64("manual_exits", es.Positions.ManualExits).
		Int64("forced_exits", es.Positions.ForcedExits).
		Int64("trades_journaled", recorder.Recorded()).
		Msg("WARDEN - Final Statistics")

	log.Info().Msg("WARDEN - Shutdown complete")
}

// disabledSafety stands in for the safety oracle when rugcheck is
// switched off. Every check errors, so the fail-closed verifier marks
// every pair unsafe.
type disabledSafety struct{}

func (disabledSafety) Check(context.Context, string) (verify.Result, error) {
	return verify.Result{}, errors.New("safety provider disabled")
}

func setupLogging(general config.GeneralConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if general.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("service", "warden").
			Str("instance", general.InstanceID).Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().Timestamp().Str("service", "warden").
			Str("instance", general.InstanceID).Logger()
	}
}
