package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davyttu/confidance-crypto/internal/chain"
	"github.com/davyttu/confidance-crypto/internal/config"
	"github.com/davyttu/confidance-crypto/internal/keeper"
	"github.com/davyttu/confidance-crypto/internal/logging"
	"github.com/davyttu/confidance-crypto/internal/metrics"
	"github.com/davyttu/confidance-crypto/internal/repository"
	"github.com/davyttu/confidance-crypto/internal/service"
	"github.com/davyttu/confidance-crypto/internal/utils"
	"github.com/davyttu/confidance-crypto/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateKeeper(); err != nil {
		logger.Fatalf("Invalid keeper config: %v", err)
	}

	networks, err := config.LoadNetworks(cfg.NetworksFile)
	if err != nil {
		logger.Fatalf("Failed to load networks: %v", err)
	}
	network, err := networks.Resolve(cfg.Network, cfg.RPCURL)
	if err != nil {
		logger.Fatalf("Failed to resolve network: %v", err)
	}

	targets, err := keeper.ParseTargets(cfg.KeeperTargets)
	if err != nil {
		logger.Fatalf("Invalid KEEPER_TARGETS: %v", err)
	}

	privateKey := cfg.KeeperPrivateKey
	if cfg.KeeperPrivateKeySealed != "" {
		if privateKey, err = utils.OpenPrivateKey(cfg.KeeperPrivateKeySealed, cfg.EncryptionKey); err != nil {
			logger.Fatalf("Failed to open sealed keeper key: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.Dial(ctx, network, chain.Options{
		PrivateKeyHex: privateKey,
		RateLimit:     cfg.RPCRateLimit,
		TxTimeout:     cfg.TxTimeout,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to chain: %v", err)
	}
	defer client.Close()
	logger.Infof("Keeper wallet %s on %s (chain %d)", client.Address().Hex(), network.Name, network.ChainID)

	opts := keeper.Options{
		Targets:     targets,
		Discover:    cfg.KeeperDiscover,
		Interval:    cfg.KeeperInterval,
		ExplorerURL: network.ExplorerURL,
		Metrics:     metrics.NewKeeper(prometheus.DefaultRegisterer),
	}

	// The database mirror is optional unless targets are discovered from it
	db, err := sql.Open("postgres", cfg.DBConn)
	if err == nil {
		err = db.PingContext(ctx)
	}
	switch {
	case err == nil:
		defer db.Close()
		opts.Mirror = service.NewService(repository.NewRepository(db), logger, cfg, nil)
	case cfg.KeeperDiscover:
		logger.Fatalf("KEEPER_DISCOVER needs the database: %v", err)
	default:
		if db != nil {
			db.Close()
		}
		logger.Warnf("Database unavailable, running without mirror updates: %v", err)
	}

	if cfg.SMTPEnabled() {
		opts.Notifier = email.NewSender(cfg, logger)
	}

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("Serving metrics on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()

	if err := keeper.New(client, logger, opts).Run(ctx); err != nil {
		logger.Fatalf("Keeper failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metricsServer.Shutdown(shutdownCtx)
	logger.Info("Keeper stopped")
}
