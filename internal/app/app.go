// Package app assembles the application: configuration, tracing, database,
// model provider, stores, the pipeline, and the HTTP server.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"github.com/finsight/finsight/internal/api"
	"github.com/finsight/finsight/internal/company"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/quota"
	"github.com/finsight/finsight/internal/rag"
	"github.com/finsight/finsight/internal/session"
)

// App is the application container. Build it with Setup and release its
// resources with Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Companies *company.Store
	Sessions  *session.Store
	Quota     *quota.Store
	Pipeline  *rag.Pipeline
	Server    *api.Server

	cron        *cron.Cron
	otelCleanup func()
	cancel      context.CancelFunc
}

// Close shuts down background work and releases connections. Safe to call
// on a partially initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.cron != nil {
		// Stop returns after in-flight cleanup jobs finish.
		<-a.cron.Stop().Done()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
