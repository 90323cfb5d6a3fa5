// Command tidelogd runs the broker: it loads configuration, opens the
// storage engine, starts the admin/observability surface, and serves the
// wire protocol over TCP and UDP until asked to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/FairForge/tidelog/internal/adminapi"
	"github.com/FairForge/tidelog/internal/broker"
	"github.com/FairForge/tidelog/internal/config"
	"github.com/FairForge/tidelog/internal/crypto"
	"github.com/FairForge/tidelog/internal/logging"
	"github.com/FairForge/tidelog/internal/streaming"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tidelogd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewZapLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	system, err := streaming.NewSystem(cfg.Engine.BaseDir, logger, streaming.Config{
		MaxSegmentSize:         cfg.Engine.MaxSegmentSize,
		IndexIntervalBytes:     cfg.Engine.IndexIntervalBytes,
		MessagesRequiredToSave: cfg.Engine.MessagesRequiredToSave,
		DefaultPartitionsCount: cfg.Engine.DefaultPartitionsCount,
	})
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer system.Close()

	metrics := adminapi.NewMetrics()
	system.OnSegmentRoll(metrics.ObserveSegmentRoll)

	var adminSrv *adminapi.Server
	if cfg.Admin.Enabled {
		adminSrv = adminapi.NewServer(cfg.Admin.Address, system, metrics, logger)
		go func() {
			if err := adminSrv.ListenAndServe(); err != nil {
				logger.Error("admin server stopped", zap.Error(err))
			}
		}()
	}

	watcher, err := config.WatchFile(*configPath, func(c *config.Config) {
		logger.Info("config reloaded", zap.String("log_level", c.Server.LogLevel))
	})
	if err != nil {
		logger.Warn("config watch disabled", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	dispatcher := broker.New(system, logger, metrics)

	var gate broker.AcceptGate
	if cfg.Admin.AcceptRatePerSec > 0 {
		limiter := adminapi.NewAcceptLimiter(int(cfg.Admin.AcceptRatePerSec), logger)
		gate = limiter.Wait
	}
	srv := broker.NewServer(dispatcher, logger, gate)

	tcpLn, err := net.Listen("tcp", cfg.Server.TCPAddress)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", cfg.Server.TCPAddress, err)
	}
	if cfg.Server.TLS.Enabled {
		tlsCfg := crypto.DefaultTLSConfig()
		tlsCfg.CertFile = cfg.Server.TLS.CertFile
		tlsCfg.KeyFile = cfg.Server.TLS.KeyFile
		tlsCfg.AutoCert = cfg.Server.TLS.AutoCert
		tcpLn, err = tlsCfg.WrapListener(tcpLn)
		if err != nil {
			return fmt.Errorf("configure tls: %w", err)
		}
		logger.Info("tls enabled on tcp listener")
	}
	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Server.UDPAddress)
	if err != nil {
		return fmt.Errorf("resolve udp %s: %w", cfg.Server.UDPAddress, err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen udp %s: %w", cfg.Server.UDPAddress, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := srv.ServeTCP(ctx, tcpLn); err != nil {
			logger.Error("tcp server stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := srv.ServeUDP(ctx, udpConn); err != nil {
			logger.Error("udp server stopped", zap.Error(err))
		}
	}()

	logger.Info("tidelogd started",
		zap.String("tcp_address", cfg.Server.TCPAddress),
		zap.String("udp_address", cfg.Server.UDPAddress),
		zap.String("admin_address", cfg.Admin.Address),
		zap.String("base_dir", cfg.Engine.BaseDir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownGrace)
	defer shutdownCancel()
	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("admin shutdown", zap.Error(err))
		}
	}

	return nil
}
