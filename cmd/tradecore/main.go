package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/tradecore/internal/config"
	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/engine"
	"github.com/efreitasn/tradecore/internal/handler"
	"github.com/efreitasn/tradecore/internal/ledger"
	"github.com/efreitasn/tradecore/internal/marketdata"
	"github.com/efreitasn/tradecore/internal/service"
	"github.com/efreitasn/tradecore/internal/store"
)

// seedAccount owns the liquidity seeded from the instruments file. It
// is distinct from the configured local account so seeded fills never
// reach the position ledger.
const seedAccount = "market"

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Instrument registry from the instruments file.
	instFile, err := config.LoadInstruments(cfg.InstrumentsFile)
	if err != nil {
		logger.Error("failed to load instruments", slog.String("error", err.Error()))
		os.Exit(1)
	}
	registry := domain.NewInstrumentRegistry()
	for _, spec := range instFile.Instruments {
		inst, err := buildInstrument(spec)
		if err != nil {
			logger.Error("invalid instrument", slog.String("symbol", spec.Symbol), slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := registry.Register(inst); err != nil {
			logger.Error("failed to register instrument", slog.String("symbol", spec.Symbol), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Candle timeframes.
	timeframes := make([]domain.Timeframe, 0, len(cfg.Timeframes))
	for _, tf := range cfg.Timeframes {
		parsed, err := domain.ParseTimeframe(tf)
		if err != nil {
			logger.Error("invalid timeframe", slog.String("timeframe", tf))
			os.Exit(1)
		}
		timeframes = append(timeframes, parsed)
	}

	// Market data feed.
	feed := marketdata.NewFeed(registry, timeframes)

	// Stores.
	orderStore := store.NewOrderStore()
	fillStore := store.NewFillStore()
	webhookStore := store.NewWebhookStore()

	// Position ledger scoped to the configured account.
	posLedger := ledger.New(cfg.Account, feed)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	posLedger.Start(ctx)

	// Websocket hub.
	hub := handler.NewHub(feed, logger)

	// Engine: fills fan out to the ledger and the websocket hub.
	books := engine.NewBookManager()
	matcher := engine.NewMatcher(books, registry, orderStore, fillStore, feed, engine.FanSink{posLedger, hub})

	// Services.
	webhookSvc := service.NewWebhookService(webhookStore, cfg.WebhookTimeout)
	orderSvc := service.NewOrderService(matcher, orderStore, webhookSvc, registry)
	marketSvc := service.NewMarketService(matcher, feed, registry)
	positionSvc := service.NewPositionService(posLedger, registry)

	// Seed books with the configured resting liquidity.
	for _, seed := range instFile.Book {
		price := seed.Price
		_, err := orderSvc.PlaceOrder(service.PlaceOrderRequest{
			Type:     domain.OrderTypeLimit,
			Account:  seedAccount,
			Side:     domain.Side(seed.Side),
			Symbol:   seed.Symbol,
			Price:    &price,
			Quantity: seed.Quantity,
		})
		if err != nil {
			logger.Error("failed to seed order",
				slog.String("symbol", seed.Symbol),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// Router.
	router := handler.NewRouter(registry, orderSvc, marketSvc, positionSvc, webhookSvc, hub, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then the ledger consumers.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	posLedger.Drain()

	logger.Info("server stopped")
}

// buildInstrument converts a file spec's dollar prices to cents.
func buildInstrument(spec config.InstrumentSpec) (domain.Instrument, error) {
	tickSize, err := domain.DollarsToCents(spec.TickSize)
	if err != nil {
		return domain.Instrument{}, err
	}
	minPrice, err := domain.DollarsToCents(spec.MinPrice)
	if err != nil {
		return domain.Instrument{}, err
	}
	maxPrice, err := domain.DollarsToCents(spec.MaxPrice)
	if err != nil {
		return domain.Instrument{}, err
	}
	return domain.Instrument{
		Symbol:   spec.Symbol,
		TickSize: tickSize,
		LotSize:  spec.LotSize,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	}, nil
}
