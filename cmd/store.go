package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/urban-health-lab/trauma-desert-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "trauma_desert.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore initializes and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// resolveRunID turns the "latest" shorthand into a concrete run ID.
func resolveRunID(ctx context.Context, st store.Store, arg string) (string, error) {
	if arg != "latest" {
		return arg, nil
	}
	runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 1})
	if err != nil {
		return "", eris.Wrap(err, "resolve latest run")
	}
	if len(runs) == 0 {
		return "", eris.New("no runs recorded yet")
	}
	return runs[0].ID, nil
}
