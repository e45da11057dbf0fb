// quotewatch subscribes to symbols through an in-process hub and prints
// every quote delivered to it.
// Usage: go run ./cmd/quotewatch --symbols AAPL,MSFT [--config configs/quotehub.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/quotehub/internal/app"
	"github.com/rickgao/quotehub/internal/config"
	"github.com/rickgao/quotehub/internal/hub"
	"github.com/rickgao/quotehub/internal/model"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	symbols := flag.String("symbols", "AAPL", "comma-separated symbols to watch")
	streamURL := flag.String("stream", "", "streaming endpoint URL (overrides config)")
	token := flag.String("token", "", "streaming bearer token (overrides config)")
	verbose := flag.Bool("verbose", false, "print full quote JSON")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadAndValidate(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *streamURL != "" {
		cfg.Stream.URL = *streamURL
	}
	if *token != "" {
		cfg.Stream.Token = *token
	}

	logger := app.NewLogger(cfg.Log, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	h := hub.New(app.HubConfig(cfg.Hub), app.NewPipeline(cfg.Sources, logger), app.HubOptions(cfg, logger)...)
	if err := h.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	for _, symbol := range strings.Split(*symbols, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		handle, err := h.Subscribe(ctx, symbol, hub.WithDiagnostics())
		if err != nil {
			logger.Error("subscribe failed", "symbol", symbol, "error", err)
			continue
		}
		printSnapshot(handle.Symbol(), handle.Snapshot())

		wg.Add(1)
		go func() {
			defer wg.Done()
			watch(ctx, handle, *verbose)
		}()
	}

	go watchStatus(ctx, h)

	logger.Info("watching - press Ctrl+C to stop", "symbols", h.ActiveSymbols())

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := h.Stop(shutdownCtx); err != nil {
		logger.Warn("hub shutdown", "error", err)
	}
	wg.Wait()

	logger.Info("shutdown complete")
}

// watch prints quotes until the handle's mailbox is closed.
func watch(ctx context.Context, handle *hub.Handle, verbose bool) {
	for {
		q, ok := handle.Receive(ctx)
		if !ok {
			return
		}
		if verbose {
			data, _ := json.MarshalIndent(q, "", "  ")
			fmt.Printf("[QUOTE] %s\n", data)
			continue
		}
		printQuote(q)
	}
}

func watchStatus(ctx context.Context, h *hub.Hub) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := h.ConnectionStatus()
			text := fmt.Sprintf("[%s] %s", status.Badge(), status.Text())
			if text != last {
				fmt.Println(text)
				last = text
			}
		}
	}
}

func printSnapshot(symbol string, s hub.Snapshot) {
	switch {
	case s.IsLoading:
		fmt.Printf("[%s] loading...\n", symbol)
	case s.Stale:
		fmt.Printf("[%s] stale since %s\n", symbol, s.LastUpdated.Format(time.TimeOnly))
		printQuote(s.Quote)
	default:
		printQuote(s.Quote)
	}
	if s.Err != nil {
		fmt.Printf("[%s] last fetch: %v\n", symbol, s.Err)
	}
}

func printQuote(q model.Quote) {
	ts := time.UnixMilli(q.TimestampMs).Format(time.TimeOnly)
	fmt.Printf("[%s] %-6s %10.2f %+8.2f (%+.2f%%) src=%s\n",
		ts, q.Symbol, q.Price, q.Change, q.ChangePercent, q.Source)
}
