package integration

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teachlink/client-core/internal/auth"
	"github.com/teachlink/client-core/internal/config"
	"github.com/teachlink/client-core/internal/devserver"
	"github.com/teachlink/client-core/internal/entitlement"
	"github.com/teachlink/client-core/internal/gateway"
	"github.com/teachlink/client-core/internal/keystore"
)

// clientCore is a fully wired client pointed at an in-process devserver.
type clientCore struct {
	Auth        *auth.Manager
	Entitlement *entitlement.Manager
	Creds       *keystore.Credentials
	Biometric   *auth.StaticAuthenticator
	BaseURL     string
}

func newClientCore(t *testing.T) *clientCore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	serverCfg := &config.Config{DevServerJWTSecret: "integration-jwt-secret", DevServerAccessTTL: time.Hour}
	ts := httptest.NewServer(devserver.New(serverCfg, logger).Handler())
	t.Cleanup(ts.Close)

	store, err := keystore.OpenSQLite(":memory:", "integration-store-secret", logger)
	if err != nil {
		t.Fatalf("open keystore: %v", err)
	}
	creds := keystore.NewCredentials(store)

	clientCfg := &config.Config{APIBaseURL: ts.URL, HTTPTimeout: 5 * time.Second}
	api := gateway.New(clientCfg, creds, logger)

	biometric := &auth.StaticAuthenticator{Hardware: true, Enrolled: true, Result: auth.OutcomeSuccess}
	sessions := auth.NewManager(api, creds, biometric, logger)

	ledger, err := entitlement.OpenLedger(":memory:", logger)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	purchases := entitlement.NewManager(ledger, entitlement.DevSheet{}, api, "ios", logger)

	return &clientCore{
		Auth:        sessions,
		Entitlement: purchases,
		Creds:       creds,
		Biometric:   biometric,
		BaseURL:     ts.URL,
	}
}
