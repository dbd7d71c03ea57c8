package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"heartline/internal/clock"
	"heartline/internal/config"
	"heartline/internal/domain"
	"heartline/internal/haptic"
	"heartline/internal/outbox"
	"heartline/internal/protocol/sealer"
	"heartline/internal/relay"
	identitysvc "heartline/internal/services/identity"
	pairingsvc "heartline/internal/services/pairing"
	sessionsvc "heartline/internal/services/session"
	touchsvc "heartline/internal/services/touch"
	"heartline/internal/store"
)

// databaseFilename is the SQLite file under the home directory.
const databaseFilename = "heartline.db"

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Identity *identitysvc.Service
	Pairing  *pairingsvc.Service
	Sessions *sessionsvc.Service
	Touch    *touchsvc.Service
	Outbox   *outbox.Outbox
	Relay    *relay.HTTPClient
	DB       *store.SQLite
	Clock    clock.Clock
	Log      *slog.Logger
	Config   config.Config
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg config.Config, logger *slog.Logger) (*Wire, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("create home: %w", err)
	}

	clk := clock.Real()

	// Local persistence
	identityStore := store.NewIdentityFileStore(cfg.Home)
	partnershipStore := store.NewPartnershipFileStore(cfg.Home)
	db, err := store.OpenSQLite(filepath.Join(cfg.Home, databaseFilename))
	if err != nil {
		return nil, err
	}

	// The relay is both the pairing directory and the message channel.
	rc := relay.NewHTTPClient(cfg.RelayURL)

	ids := identitysvc.New(identityStore, clk)
	engine := sealer.New(ids)
	ob := outbox.New(db, rc, clk, logger, outbox.Config{
		BackoffBase:     cfg.BackoffBase.Duration,
		BackoffMax:      cfg.BackoffMax.Duration,
		AttemptTimeout:  cfg.RequestTimeout.Duration,
		InFlightTimeout: cfg.InFlightTimeout.Duration,
		OnAbandoned: func(e domain.OutboxEntry, err error) {
			logger.Warn("touch not delivered",
				slog.String("envelope_id", e.EnvelopeID.String()),
				slog.String("error", err.Error()),
			)
		},
	})

	// High-level services
	pairing := pairingsvc.New(rc, clk, logger, pairingsvc.Config{
		CodeTTL:        cfg.CodeTTL.Duration,
		RequestTimeout: cfg.RequestTimeout.Duration,
	})
	sessions := sessionsvc.New(ids, pairing, rc, partnershipStore, db, ob, engine, rc, clk, logger)
	touch := touchsvc.New(ids, sessions, engine, ob, rc, db, haptic.NewLogPlayer(logger), clk, logger)

	return &Wire{
		Identity: ids,
		Pairing:  pairing,
		Sessions: sessions,
		Touch:    touch,
		Outbox:   ob,
		Relay:    rc,
		DB:       db,
		Clock:    clk,
		Log:      logger,
		Config:   cfg,
	}, nil
}
