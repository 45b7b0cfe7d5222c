// Command borsa-init runs the first-run setup against the configured
// backend without the web UI, for provisioning from scripts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"borsa/internal/backend"
	"borsa/internal/cli"
	"borsa/internal/core"
	"borsa/internal/log"
)

func main() {
	username := flag.String("username", "", "admin username (required)")
	displayName := flag.String("display-name", "", "admin display name")
	email := flag.String("email", "", "admin email")
	walletName := flag.String("wallet", "", "first wallet name (required)")
	walletIcon := flag.String("icon", "", "first wallet icon, one of the built-in set")
	flag.Parse()

	if *username == "" || *walletName == "" {
		fmt.Fprintln(os.Stderr, "usage: borsa-init -username <name> -wallet <name> [-display-name ...] [-email ...] [-icon ...]")
		os.Exit(2)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout)
	defer cancel()

	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer func() {
		if result.Cleanup != nil {
			_ = result.Cleanup()
		}
	}()

	status, err := result.Backend.InitStatus(ctx)
	if err != nil {
		logger.Error("Init status check failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	if status.InitDone {
		logger.Info("Backend already initialized, nothing to do")
		return
	}

	req := core.InitRequest{
		AdminUser: core.User{
			Username:    *username,
			DisplayName: *displayName,
			Email:       *email,
			Role:        core.RoleAdmin,
		},
		FirstWallet: core.Wallet{
			Name:      *walletName,
			Icon:      *walletIcon,
			IsEnabled: true,
		},
	}
	if err := req.Validate(); err != nil {
		logger.Error("Invalid setup data", log.FieldError, err.Error())
		os.Exit(1)
	}

	if err := result.Backend.Initialize(ctx, req); err != nil {
		logger.Error("Initialization failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("First-run setup completed",
		"username", *username,
		"wallet", *walletName,
		"was_new_db", status.IsNewDB)
}
