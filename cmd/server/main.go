package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/defistate/defistate-amm-go/approval"
	"github.com/defistate/defistate-amm-go/cmd/server/config"
	"github.com/defistate/defistate-amm-go/custody"
	"github.com/defistate/defistate-amm-go/engine"
	"github.com/defistate/defistate-amm-go/logging"
	"github.com/defistate/defistate-amm-go/streams/jsonrpc/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	bootLogger := log.New(os.Stderr, "", log.LstdFlags)
	close := func() {
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		bootLogger.Printf("Failed to load configuration: %v", err)
		close()
	}

	rootLogger, logCloser, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		bootLogger.Printf("Failed to initialize logger: %v", err)
		close()
	}
	defer logCloser.Close()

	// Config.Validate has already resolved every value below once.
	reg, _ := cfg.TokenRegistry()
	escrow, _ := cfg.EscrowAddress()
	minLiquidity, _ := cfg.MinLiquidity()
	credits, _ := cfg.GenesisCredits(reg)
	policyCfg, _ := cfg.Policy(reg)

	ledger := custody.NewLedger(escrow)
	for _, c := range credits {
		if err := ledger.Credit(c.Token, c.Account, c.Amount); err != nil {
			rootLogger.Error("Failed to seed genesis balance", "account", c.Account, "token", reg.Symbol(c.Token), "error", err)
			close()
		}
	}
	rootLogger.Info("Custody ledger seeded", "escrow", escrow, "credits", len(credits))

	policy, err := approval.NewPolicy(policyCfg)
	if err != nil {
		rootLogger.Error("Failed to build approval policy", "error", err)
		close()
	}

	prometheusRegistry := prometheus.NewRegistry()
	prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	broadcaster, err := server.NewBroadcaster(&server.BroadcasterConfig{
		BufferSize: cfg.StreamBufferSize,
		Registry:   prometheusRegistry,
		Logger:     rootLogger.With("component", "broadcaster"),
	})
	if err != nil {
		rootLogger.Error("Failed to initialize broadcaster", "error", err)
		close()
	}

	amm, err := engine.New(&engine.Config{
		Custodian:        ledger,
		Gate:             policy,
		Publisher:        broadcaster,
		MinimumLiquidity: minLiquidity,
		Registry:         prometheusRegistry,
		Logger:           rootLogger.With("component", "engine"),
	})
	if err != nil {
		rootLogger.Error("Failed to initialize engine", "error", err)
		close()
	}

	api, err := server.NewAPI(&server.APIConfig{
		Engine:      amm,
		Broadcaster: broadcaster,
		Logger:      rootLogger.With("component", "jsonrpc-api"),
	})
	if err != nil {
		rootLogger.Error("Failed to initialize API", "error", err)
		close()
	}
	rpcServer, err := server.NewRPCServer(api)
	if err != nil {
		rootLogger.Error("Failed to initialize RPC server", "error", err)
		close()
	}
	defer rpcServer.Stop()

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpcHTTP := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           rpcHandler(rpcServer, cfg.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsHTTP := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(prometheusRegistry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range []*http.Server{rpcHTTP, metricsHTTP} {
		srv := srv
		g.Go(func() error {
			rootLogger.Info("Listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		rootLogger.Error("Server stopped with error", "error", err)
		return
	}
	rootLogger.Info("Server stopped")
}

// rpcHandler serves websocket upgrades (required for subscriptions) and plain
// HTTP JSON-RPC on the same address.
func rpcHandler(srv interface {
	http.Handler
	WebsocketHandler(allowedOrigins []string) http.Handler
}, allowedOrigins []string) http.Handler {
	ws := srv.WebsocketHandler(allowedOrigins)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			ws.ServeHTTP(w, r)
			return
		}
		srv.ServeHTTP(w, r)
	})
}

func loadConfig() (*config.ServerConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
