package main

import (
	"context"
	"fmt"
	"log/slog"

	"repertoire/internal/config"
	"repertoire/internal/graph"
	"repertoire/internal/metrics"
	"repertoire/internal/review"
	"repertoire/internal/rules"
	"repertoire/internal/service"
	"repertoire/internal/storage"
	"repertoire/internal/storage/badger"
	"repertoire/internal/storage/sqlite"
)

// openStore opens the configured backend, creating the schema when needed
func openStore(c *config.Config, l *slog.Logger) (storage.Store, error) {
	switch c.Storage.Driver {
	case config.DriverBadger:
		bc := badger.DefaultConfig(c.Storage.Path)
		bc.Logger = l
		s, err := badger.Open(bc)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.NewStore(c.Storage.Path, c.Server.DevMode, l)
		if err != nil {
			return nil, err
		}
		if err := s.InitDB(); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
}

// openService wires store, graph and scheduler. Shutdown closes the store.
func openService(ctx context.Context, c *config.Config, l *slog.Logger, m *metrics.Metrics) (*service.Service, error) {
	store, err := openStore(c, l)
	if err != nil {
		return nil, err
	}

	g := graph.New(store, rules.Standard{}, l, m)
	if _, err := g.EnsureRoot(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("initialize graph: %w", err)
	}

	sched := review.NewScheduler(store, nil, l, m)
	return service.New(g, sched, c.Session.IdleTTL, l, m), nil
}
