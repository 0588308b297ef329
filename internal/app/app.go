// Package app wires the client core together: config, logging, credential
// store, gateway, session and entitlement managers, observability runtime.
package app

import (
	"context"
	"log/slog"

	"github.com/teachlink/client-core/internal/auth"
	"github.com/teachlink/client-core/internal/config"
	"github.com/teachlink/client-core/internal/entitlement"
	"github.com/teachlink/client-core/internal/gateway"
	"github.com/teachlink/client-core/internal/keystore"
	"github.com/teachlink/client-core/internal/observability"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Store         keystore.Store
	Creds         *keystore.Credentials
	Gateway       *gateway.Client
	Auth          *auth.Manager
	Entitlement   *entitlement.Manager
	Observability *observability.Runtime
}

// Options override default component choices, mainly for tests and the CLI
// dev loop.
type Options struct {
	// Store replaces the sqlite-backed credential store.
	Store keystore.Store
	// Biometric replaces the device biometric boundary.
	Biometric auth.Authenticator
	// Sheet replaces the platform purchase sheet.
	Sheet entitlement.PurchaseSheet
	// LedgerPath replaces the purchase ledger location.
	LedgerPath string
}

// New builds a fully wired client core from the environment.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg)

	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		store, err = keystore.OpenSQLite(cfg.StorePath, cfg.StoreSecret, logger)
		if err != nil {
			return nil, err
		}
	}
	creds := keystore.NewCredentials(store)
	api := gateway.New(cfg, creds, logger)

	biometric := opts.Biometric
	if biometric == nil {
		// No biometric hardware is reachable from a terminal; the flag flow
		// still works with an always-approving challenge.
		biometric = &auth.StaticAuthenticator{
			Hardware: true,
			Enrolled: true,
			Result:   auth.OutcomeSuccess,
		}
	}
	sessions := auth.NewManager(api, creds, biometric, logger)

	ledgerPath := opts.LedgerPath
	if ledgerPath == "" {
		ledgerPath = cfg.StorePath
	}
	ledger, err := entitlement.OpenLedger(ledgerPath, logger)
	if err != nil {
		return nil, err
	}
	sheet := opts.Sheet
	if sheet == nil {
		sheet = entitlement.DevSheet{}
	}
	purchases := entitlement.NewManager(ledger, sheet, api, cfg.Platform, logger)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Creds:         creds,
		Gateway:       api,
		Auth:          sessions,
		Entitlement:   purchases,
		Observability: runtime,
	}, nil
}

// Close flushes and stops the observability runtime.
func (a *App) Close(ctx context.Context) error {
	if a.Observability == nil {
		return nil
	}
	return a.Observability.Shutdown(ctx)
}
