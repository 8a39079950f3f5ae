package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/defistate/defistate-amm-go/cmd/client/config"
	"github.com/defistate/defistate-amm-go/logging"
	"github.com/defistate/defistate-amm-go/streams/jsonrpc/client"
)

func main() {
	close := func() {
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		close()
	}

	rootLogger, logCloser, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		close()
	}
	defer logCloser.Close()

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream, err := client.NewClient(
		ctx,
		client.Config{
			URL:        cfg.StateStreamURL,
			Logger:     rootLogger.With("component", "jsonrpc-client"),
			BufferSize: cfg.BufferSize,
		},
	)
	if err != nil {
		rootLogger.Error("Failed to initialize Client", "url", cfg.StateStreamURL, "error", err)
		close()
	}

	for {
		select {
		case state := <-stream.State():
			attrs := []any{
				"sequence", state.Sequence,
				"pools", len(state.Pools),
				"additions", len(state.Changes.Additions),
				"updates", len(state.Changes.Updates),
			}
			if ev := state.Event; ev != nil {
				attrs = append(attrs, "event", ev.Type, "pair", ev.Pair)
			}
			rootLogger.Info("State updated", attrs...)
		case err, ok := <-stream.Err():
			if ok {
				rootLogger.Error("Fatal client error", "error", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func loadConfig() (*config.ClientConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
