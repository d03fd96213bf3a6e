// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/Spielworks/plai/config"
	"github.com/Spielworks/plai/vm"
)

var (
	serveAddr    string
	serveDB      string
	serveGenesis string
	serveNATS    string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "RPC listen address (overrides PLAI_RPC_ADDR)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite database path (overrides PLAI_DB_PATH)")
	serveCmd.Flags().StringVar(&serveGenesis, "genesis", "", "Genesis TOML file (overrides PLAI_GENESIS)")
	serveCmd.Flags().StringVar(&serveNATS, "nats", "", "NATS URL for events (overrides PLAI_NATS_URL)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ledger and reward agent behind JSON-RPC",
	Long: `Serves JSON-RPC on /rpc and health on /health.

Settings come from PLAI_* environment variables; flags override them.
Genesis is applied once, on the first start against an empty database.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.RPCAddr = serveAddr
	}
	if serveDB != "" {
		cfg.DBPath = serveDB
	}
	if serveGenesis != "" {
		cfg.GenesisPath = serveGenesis
	}
	if serveNATS != "" {
		cfg.NATSURL = serveNATS
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("starting plaid", "version", version, "vmid", vm.VMID)

	factory := &vm.Factory{Config: cfg}
	instance, err := factory.New(logger)
	if err != nil {
		logger.Error("failed to create VM", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux, err := instance.NewMux(ctx)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.RPCAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down plaid...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("plaid listening", "addr", cfg.RPCAddr, "db", cfg.DBPath, "nats", cfg.NATSURL != "")
	serveErr := server.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	if serveErr != nil {
		logger.Error("server error", "error", serveErr)
	}

	if err := instance.Shutdown(context.Background()); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	logger.Info("plaid stopped")
	return serveErr
}

func newLogger(cfg config.Config) (log.Logger, func(), error) {
	if cfg.LogFile == "" {
		return log.New("component", "plaid"), func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return log.NewWriter(f), func() { f.Close() }, nil
}
