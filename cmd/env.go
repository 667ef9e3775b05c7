package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricewatch/internal/checker"
	"github.com/sells-group/pricewatch/internal/config"
	"github.com/sells-group/pricewatch/internal/extract"
	"github.com/sells-group/pricewatch/internal/fetcher"
	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/resilience"
	"github.com/sells-group/pricewatch/internal/resolve"
	"github.com/sells-group/pricewatch/internal/store"
)

// env holds the wired application components shared by the commands.
type env struct {
	Store   store.Store
	Fetcher fetcher.PageFetcher
	Checker *checker.Checker
	Bounds  map[model.Category]model.Bounds
}

func (e *env) Close() {
	_ = e.Store.Close()
}

// initEnv opens the store and builds the fetch/resolve/check stack from
// the loaded config.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	bounds, err := config.LoadBounds(cfg.Bounds.File)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	pf := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         cfg.Fetch.UserAgent,
		Timeout:           time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Retry: resilience.Policy{
			Attempts: cfg.Fetch.MaxRetries,
		},
	})

	engine := resolve.NewEngine(extract.Config{Mode: extract.ModeEnsemble}, cfg.Scoring)

	chk := checker.New(st, pf, engine, bounds, checker.Options{
		Concurrency: cfg.Check.Concurrency,
		ItemTimeout: time.Duration(cfg.Check.ItemTimeoutSecs) * time.Second,
	})

	return &env{Store: st, Fetcher: pf, Checker: chk, Bounds: bounds}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
