package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/lgates/internal/config"
	"github.com/alfredjeanlab/lgates/internal/events"
	"github.com/alfredjeanlab/lgates/internal/metrics"
	"github.com/alfredjeanlab/lgates/internal/server"
	"github.com/alfredjeanlab/lgates/internal/store"
	"github.com/alfredjeanlab/lgates/internal/store/memory"
	"github.com/alfredjeanlab/lgates/internal/store/postgres"
	lgsync "github.com/alfredjeanlab/lgates/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the lgates server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// The server does not need an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		inMemory, _ := cmd.Flags().GetBool("memory")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		level, err := cfg.SlogLevel()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		st, err := openStore(cfg, inMemory, logger)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = events.Discard
			logger.Info("events disabled (LGATES_NATS_URL not set)")
		}

		auth := server.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
		if !auth.VerifiesTokens() {
			logger.Warn("LGATES_JWT_SECRET not set; trusting the X-User-ID header")
		}

		reg := metrics.NewRegistry()
		gatesServer := server.NewGatesServer(st, publisher, reg)
		grpcServer, healthServer := server.NewGRPCServer(auth)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           gatesServer.NewHTTPHandler(auth),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *lgsync.Scheduler
		if cfg.SyncInterval > 0 {
			if dests := syncDestinations(context.Background(), cfg, logger); len(dests) > 0 {
				scheduler = lgsync.NewScheduler(st, dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval, "destinations", len(dests))
			}
		}

		logger.Info("lgates server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"memory", inMemory,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Tell load balancers first, then drain.
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		// One last export after the final write.
		if scheduler != nil {
			scheduler.Stop()
			if err := scheduler.RunOnce(shutdownCtx); err != nil {
				logger.Error("final sync failed", "err", err)
			}
			logger.Info("sync scheduler stopped")
		}

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func openStore(cfg *config.Config, inMemory bool, logger *slog.Logger) (store.Store, error) {
	if inMemory {
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	return postgres.New(cfg.DatabaseURL)
}

// syncDestinations builds the configured backup targets. A destination that
// fails to initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []lgsync.Destination {
	var dests []lgsync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := lgsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("sync destination enabled", "destination", d.Name())
		}
	}
	if cfg.SyncGitRepo != "" {
		d := lgsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch)
		dests = append(dests, d)
		logger.Info("sync destination enabled", "destination", d.Name())
	}
	return dests
}

func init() {
	serveCmd.Flags().Bool("memory", false, "keep all data in memory instead of Postgres")
}
