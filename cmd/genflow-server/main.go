// Command genflow-server runs the workflow generation HTTP service.
//
// Configuration comes from the environment; AZURE_OPENAI_ENDPOINT,
// AZURE_OPENAI_API_KEY, and AZURE_OPENAI_DEPLOYMENT_NAME are required.
// With DATABASE_URL set the service persists to PostgreSQL, otherwise
// to an embedded SQLite database.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/flowmarket/genflow/pkg/genflow"
	"github.com/flowmarket/genflow/pkg/genflow/config"
	"github.com/flowmarket/genflow/pkg/genflow/conversation"
	"github.com/flowmarket/genflow/pkg/genflow/credit"
	"github.com/flowmarket/genflow/pkg/genflow/llm"
	"github.com/flowmarket/genflow/pkg/genflow/observability"
	"github.com/flowmarket/genflow/pkg/genflow/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("configuration error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, ledger, err := openStores(cfg)
	if err != nil {
		logger.Error("storage initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()
	defer ledger.Close()

	clientOpts := []llm.AzureOption{
		llm.WithRequestTimeout(cfg.Generation.Timeout),
	}
	if cfg.Azure.APIVersion != "" {
		clientOpts = append(clientOpts, llm.WithAPIVersion(cfg.Azure.APIVersion))
	}
	client := llm.NewAzureClient(cfg.Azure.Endpoint, cfg.Azure.APIKey, cfg.Azure.Deployment, clientOpts...)

	gen := genflow.New(client, store, ledger,
		genflow.WithMaxRetries(cfg.Generation.MaxRetries),
		genflow.WithCost(cfg.Generation.Cost),
		genflow.WithTimeout(cfg.Generation.Timeout),
		genflow.WithTemperature(cfg.Generation.Temperature),
		genflow.WithMaxTokens(cfg.Generation.MaxTokens),
		genflow.WithModel(cfg.Azure.Deployment),
		genflow.WithLogger(logger),
		genflow.WithMetrics(observability.NewMetricsRecorder()),
		genflow.WithSpans(observability.NewSpanManager()),
	)

	srv := server.NewServer(cfg.Addr, gen, store, ledger, server.WithLogger(logger))
	srv.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
}

// openStores picks the storage backend from configuration: PostgreSQL
// when DATABASE_URL is set (one shared connection pool for both the
// conversation store and the credit ledger), embedded SQLite otherwise.
func openStores(cfg config.Service) (conversation.Store, credit.Ledger, error) {
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(gormpostgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			return nil, nil, err
		}
		store, err := conversation.NewPostgresStoreWithDB(db)
		if err != nil {
			return nil, nil, err
		}
		ledger, err := credit.NewPostgresLedgerWithDB(db)
		if err != nil {
			return nil, nil, err
		}
		return store, ledger, nil
	}

	store, err := conversation.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := credit.NewSQLiteLedger(cfg.SQLitePath)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, ledger, nil
}
