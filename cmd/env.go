package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tradu/emailqc/internal/linkcheck"
	"github.com/tradu/emailqc/internal/pipeline"
	"github.com/tradu/emailqc/internal/preview"
	"github.com/tradu/emailqc/internal/store"
	"github.com/tradu/emailqc/pkg/qcmodel"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "emailqc.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// qcEnv bundles everything a processing command needs.
type qcEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Mock     bool
}

func (e *qcEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func initEnv(ctx context.Context) (*qcEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var modelClient qcmodel.Client
	mock := cfg.Model.MockEnabled()
	if mock {
		modelClient = qcmodel.NewMock()
		zap.L().Info("model mock mode enabled")
	} else {
		modelClient = qcmodel.NewAnthropic(cfg.Model.AnthropicKey, cfg.Model.Name)
	}

	var limiter *rate.Limiter
	if cfg.LinkCheck.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LinkCheck.RatePerSec), cfg.LinkCheck.RateBurst)
	}
	checker := linkcheck.New(linkcheck.Options{
		ApprovedDomains: cfg.LinkCheck.ApprovedDomains,
		Concurrency:     cfg.LinkCheck.Concurrency,
		Timeout:         time.Duration(cfg.LinkCheck.TimeoutSecs) * time.Second,
		Limiter:         limiter,
	})

	p := pipeline.New(st, preview.NewFetcher(), checker, modelClient, mock)

	return &qcEnv{Store: st, Pipeline: p, Mock: mock}, nil
}
