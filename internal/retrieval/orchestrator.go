// Package retrieval drives the query pipeline: intent extraction,
// metadata resolution, query building, fetching, and summarization,
// producing one context blob per user question.
package retrieval

import (
	"context"
	"strconv"
	"strings"
	"time"

	"dataverse-agent/internal/common/errors"
	"dataverse-agent/internal/common/logger"
	"dataverse-agent/internal/common/metrics"
	"dataverse-agent/internal/dataverse"
	"dataverse-agent/internal/intent"
	"dataverse-agent/internal/query"
	"dataverse-agent/internal/summarize"
)

// Sentinel is the context text when nothing could be retrieved. The
// answer path switches to the degraded prompt on Found, not by
// matching this string.
const Sentinel = "No relevant records found in Dataverse."

// Result is the outcome of one retrieval pass.
type Result struct {
	Found   bool
	Context string
}

// Orchestrator runs the full retrieval pipeline over the configured
// table list.
type Orchestrator struct {
	resolver   *dataverse.Resolver
	client     *dataverse.Client
	builder    *query.Builder
	summarizer *summarize.Summarizer
	tables     []string
	logger     logger.Logger
}

func NewOrchestrator(resolver *dataverse.Resolver, client *dataverse.Client, builder *query.Builder,
	summarizer *summarize.Summarizer, tableList []string, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		resolver:   resolver,
		client:     client,
		builder:    builder,
		summarizer: summarizer,
		tables:     tableList,
		logger:     log,
	}
}

// Retrieve answers one natural language query with a context blob. A
// table named in the query overrides the configured table list. Every
// per-table failure is logged and skipped so one broken table never
// takes down the whole pass.
func (o *Orchestrator) Retrieve(ctx context.Context, userQuery string) Result {
	start := time.Now()

	in := intent.Extract(userQuery)
	targets := o.tables
	explicit := in.Table != ""
	if explicit {
		targets = []string{in.Table}
	}

	o.logger.Info("retrieval pass starting", map[string]interface{}{
		"tables":   targets,
		"explicit": explicit,
		"year":     in.Year,
		"term":     in.Term,
	})

	var parts []string
	for _, table := range targets {
		metrics.TablesQueried.WithLabelValues(table).Inc()
		entitySet := o.resolver.EntitySetName(ctx, table)

		if in.Aggregate != nil {
			digest, ok := o.aggregate(ctx, table, entitySet, *in.Aggregate)
			if ok {
				parts = append(parts, digest)
				// An explicit table with a satisfied aggregate is a
				// complete answer; no listing needed.
				if explicit {
					continue
				}
			}
		}

		digest, ok := o.listing(ctx, table, entitySet, in)
		if ok {
			parts = append(parts, digest)
		}
	}

	outcome := "found"
	result := Result{Found: len(parts) > 0, Context: strings.Join(parts, "\n\n")}
	if !result.Found {
		outcome = "empty"
		result.Context = Sentinel
	}
	metrics.RetrievalDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return result
}

// aggregate runs the $apply query for one table. Unsatisfiable or
// failed aggregates return ok=false so the caller falls through to the
// plain listing.
func (o *Orchestrator) aggregate(ctx context.Context, table, entitySet string, agg intent.Aggregate) (string, bool) {
	md := query.Metadata{
		NumericFields: o.resolver.NumericFields(ctx, table),
		DateFields:    o.resolver.DateFields(ctx, table),
	}

	spec, field, err := query.BuildAggregate(table, agg, md)
	if err != nil {
		o.logger.WithError(err).Info("aggregate not satisfiable, using listing", map[string]interface{}{
			"table": table,
			"op":    string(agg.Op),
		})
		return "", false
	}
	metrics.AggregateQueries.WithLabelValues(table, string(agg.Op)).Inc()

	rows, err := o.client.Fetch(ctx, table, entitySet, spec.Params())
	if err != nil {
		o.recordFailure(table, "aggregate", err)
		return "", false
	}
	if len(rows) == 0 {
		return "", false
	}

	alias := "Result"
	if agg.Op == intent.OpCount {
		alias = "Count"
	}
	value, ok := numeric(rows[0][alias])
	if !ok && agg.Op == intent.OpCount {
		// Some environments answer aggregate($count ...) with a literal
		// $count key instead of the requested alias.
		value, ok = numeric(rows[0]["$count"])
	}
	if !ok {
		o.logger.Warn("aggregate response missing alias", map[string]interface{}{
			"table": table,
			"alias": alias,
		})
		return "", false
	}

	return summarize.AggregateDigest(table, agg.Op, field, agg.Year, value), true
}

// listing runs the shaped or generic listing query for one table. A
// table with no matching rows contributes nothing to the context, so a
// pass where every table comes back empty ends with the sentinel.
func (o *Orchestrator) listing(ctx context.Context, table, entitySet string, in intent.Intent) (string, bool) {
	spec := o.builder.Build(table, in)

	rows, err := o.client.Fetch(ctx, table, entitySet, spec.Params())
	if err != nil {
		o.recordFailure(table, "listing", err)
		return "", false
	}
	if len(rows) == 0 {
		o.logger.Info("no records found", map[string]interface{}{"table": table})
		return "", false
	}

	return o.summarizer.Digest(table, rows), true
}

func (o *Orchestrator) recordFailure(table, stage string, err error) {
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "UNKNOWN"
	}
	metrics.FetchFailures.WithLabelValues(table, code).Inc()
	o.logger.WithError(err).Warn("table query failed, skipping", map[string]interface{}{
		"table": table,
		"stage": stage,
	})
}

// numeric coerces the scalar shapes aggregate aliases come back as.
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
