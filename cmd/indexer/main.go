// cmd/indexer/main.go
package main

import (
	"context"
	"flag"

	"go.uber.org/zap"

	"dataverse-agent/internal/auth"
	"dataverse-agent/internal/common/config"
	"dataverse-agent/internal/common/logger"
	"dataverse-agent/internal/dataverse"
	"dataverse-agent/internal/search"
	"dataverse-agent/internal/tables"
)

func main() {
	table := flag.String("table", "", "single table to index (default: all registry tables)")
	top := flag.Int("top", 50, "maximum rows to index per table")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	if !cfg.Dataverse.Enabled {
		zapLog.Fatal("dataverse is disabled, nothing to index")
	}
	if !cfg.Search.Enabled {
		zapLog.Fatal("search is disabled, nothing to index into")
	}

	registry, err := tables.Load(cfg.Retrieval.RegistryPath)
	if err != nil {
		zapLog.Fatal("table registry load failed", zap.Error(err))
	}

	store, err := search.NewStore(cfg.Search)
	if err != nil {
		zapLog.Fatal("elasticsearch client failed", zap.Error(err))
	}
	if err := store.Ping(); err != nil {
		zapLog.Fatal("elasticsearch unreachable", zap.Error(err))
	}

	tokens := auth.NewClientCredentials(
		cfg.Dataverse.TenantID,
		cfg.Dataverse.ClientID,
		cfg.Dataverse.ClientSecret,
		cfg.Dataverse.EnvironmentURL,
	)
	client := dataverse.NewClient(cfg.Dataverse.EnvironmentURL, tokens,
		config.GetDuration(cfg.Dataverse.Timeout), log)
	resolver := dataverse.NewResolver(client, dataverse.NewMemoryCache(), log).
		WithPluralOverrides(registry.PluralOverrides)

	indexer := search.NewIndexer(client, resolver, store, log)

	targets := registry.Tables
	if *table != "" {
		targets = []string{*table}
	}

	ctx := context.Background()
	total := 0
	for _, t := range targets {
		n, err := indexer.IndexTable(ctx, t, *top)
		if err != nil {
			zapLog.Error("indexing failed", zap.String("table", t), zap.Error(err))
			continue
		}
		total += n
	}

	zapLog.Info("Indexing complete", zap.Int("documents", total))
}
