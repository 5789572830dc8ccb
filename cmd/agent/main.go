// cmd/agent/main.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dataverse-agent/internal/auth"
	"dataverse-agent/internal/common/config"
	"dataverse-agent/internal/common/logger"
	"dataverse-agent/internal/dataverse"
	"dataverse-agent/internal/genai"
	"dataverse-agent/internal/query"
	"dataverse-agent/internal/retrieval"
	"dataverse-agent/internal/summarize"
	"dataverse-agent/internal/tables"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting Dataverse agent...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	registry, err := tables.Load(cfg.Retrieval.RegistryPath)
	if err != nil {
		zapLog.Fatal("table registry load failed", zap.Error(err))
	}

	// --- Metrics Server ---
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "healthy",
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			zapLog.Info("Metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := http.ListenAndServe(cfg.Metrics.Address, mux); err != nil {
				zapLog.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// --- Token Provider ---
	var tokens auth.TokenProvider = auth.Disabled{}
	if cfg.Dataverse.Enabled {
		tokens = auth.NewClientCredentials(
			cfg.Dataverse.TenantID,
			cfg.Dataverse.ClientID,
			cfg.Dataverse.ClientSecret,
			cfg.Dataverse.EnvironmentURL,
		)
	} else {
		zapLog.Warn("Dataverse disabled, queries will return no records")
	}

	// --- Metadata Cache ---
	var cache dataverse.Cache = dataverse.NewMemoryCache()
	if cfg.Cache.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zapLog.Warn("Redis unavailable, using in-memory metadata cache", zap.Error(err))
		} else {
			cache = dataverse.NewRedisCache(rdb, log)
			zapLog.Info("Redis metadata cache connected")
		}
		cancel()
	}

	// --- Retrieval Pipeline ---
	client := dataverse.NewClient(cfg.Dataverse.EnvironmentURL, tokens,
		config.GetDuration(cfg.Dataverse.Timeout), log)
	resolver := dataverse.NewResolver(client, cache, log).
		WithPluralOverrides(registry.PluralOverrides)
	builder := query.NewBuilder(cfg.Retrieval.MaxResults,
		query.DefaultRecognizers(registry, cfg.Dataverse.SalesAdvanced)...)
	summarizer := summarize.NewSummarizer(
		summarize.DefaultRecognizers(registry, cfg.Dataverse.SalesAdvanced)...)
	orchestrator := retrieval.NewOrchestrator(resolver, client, builder, summarizer, registry.Tables, log)

	completions := genai.NewClient(cfg.OpenAI, log)

	ctx := context.Background()

	// One-shot mode: answer the question given as arguments and exit.
	if len(os.Args) > 1 {
		answer(ctx, orchestrator, completions, log, strings.Join(os.Args[1:], " "))
		return
	}

	// Interactive mode.
	fmt.Println("Dataverse agent ready. Ask a question, or type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}
		answer(ctx, orchestrator, completions, log, question)
	}

	zapLog.Info("Agent stopped")
}

// answer runs one question through retrieval and completion. When the
// completion call fails the raw retrieved context is printed so the
// user still gets the data.
func answer(ctx context.Context, orch *retrieval.Orchestrator, completions *genai.Client,
	log logger.Logger, question string) {
	log = log.WithFields(map[string]interface{}{"request_id": uuid.NewString()})
	log.Info("answering question", map[string]interface{}{"question": question})

	result := orch.Retrieve(ctx, question)

	prompt := genai.BuildPrompt(result, question)
	text, err := completions.Complete(ctx, prompt)
	if err != nil {
		log.WithError(err).Error("completion failed", nil)
		fmt.Println(result.Context)
		return
	}
	fmt.Println(text)
}
