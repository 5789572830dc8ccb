// internal/search/indexer.go
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"dataverse-agent/internal/common/logger"
	"dataverse-agent/internal/common/metrics"
	"dataverse-agent/internal/dataverse"
)

// maxContentLen caps a document's content body.
const maxContentLen = 4000

// titleFields is the priority list for a document title.
var titleFields = []string{"name", "fullname", "subject", "title"}

// Document is one indexed Dataverse record.
type Document struct {
	ID      string `json:"id"`
	Table   string `json:"table"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Uploader is what the indexer needs from the search store.
type Uploader interface {
	Upload(ctx context.Context, docs []Document) error
}

// Fetcher is what the indexer needs from the Dataverse client.
type Fetcher interface {
	FetchAll(ctx context.Context, table, entitySet string, top int) ([]dataverse.Row, error)
}

// Resolver is what the indexer needs from the metadata resolver.
type Resolver interface {
	EntitySetName(ctx context.Context, table string) string
}

// Indexer pulls rows from Dataverse and pushes them into the search
// index.
type Indexer struct {
	fetcher  Fetcher
	resolver Resolver
	store    Uploader
	logger   logger.Logger
}

func NewIndexer(fetcher Fetcher, resolver Resolver, store Uploader, log logger.Logger) *Indexer {
	return &Indexer{fetcher: fetcher, resolver: resolver, store: store, logger: log}
}

// IndexTable fetches up to top rows from a table and uploads them as
// documents. Returns the number of documents indexed.
func (i *Indexer) IndexTable(ctx context.Context, table string, top int) (int, error) {
	entitySet := i.resolver.EntitySetName(ctx, table)

	rows, err := i.fetcher.FetchAll(ctx, table, entitySet, top)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		i.logger.Info("no rows to index", map[string]interface{}{"table": table})
		return 0, nil
	}

	docs := toDocuments(table, rows)
	if err := i.store.Upload(ctx, docs); err != nil {
		return 0, err
	}

	metrics.DocumentsIndexed.WithLabelValues(table).Add(float64(len(docs)))
	i.logger.Info("indexed documents", map[string]interface{}{
		"table": table,
		"count": len(docs),
	})
	return len(docs), nil
}

// toDocuments flattens rows into keyword documents. Annotation fields
// (keys containing "@") are skipped; the rest become "field: value"
// lines in sorted field order.
func toDocuments(table string, rows []dataverse.Row) []Document {
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document{
			ID:      fmt.Sprintf("%s-%s", table, recordID(table, row)),
			Table:   table,
			Title:   documentTitle(table, row),
			Content: documentContent(row),
		})
	}
	return docs
}

// recordID finds the row's primary key value, falling back to a fresh
// UUID so re-indexing without a key never collides.
func recordID(table string, row dataverse.Row) string {
	for _, key := range []string{table + "id", "activityid", "id"} {
		if v, ok := row[key]; ok && v != nil {
			if s := fmt.Sprintf("%v", v); s != "" {
				return s
			}
		}
	}
	return uuid.NewString()
}

func documentTitle(table string, row dataverse.Row) string {
	for _, f := range titleFields {
		if v, ok := row[f]; ok && v != nil {
			if s := fmt.Sprintf("%v", v); s != "" {
				return s
			}
		}
	}
	return table
}

func documentContent(row dataverse.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		if strings.Contains(k, "@") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		if row[k] == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %v", k, row[k]))
	}

	content := strings.Join(lines, "\n")
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}
	return content
}
