// Package search uploads Dataverse rows into an Elasticsearch index
// for keyword lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"dataverse-agent/internal/common/config"
	"dataverse-agent/internal/common/errors"
)

// Store wraps the Elasticsearch client for document uploads.
type Store struct {
	client *elasticsearch.Client
	index  string
}

// NewStore creates a store for the configured cluster and index.
func NewStore(cfg config.SearchConfig) (*Store, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
	}
	if len(esCfg.Addresses) == 0 && cfg.Elasticsearch.URL != "" {
		esCfg.Addresses = []string{cfg.Elasticsearch.URL}
	}
	if cfg.Elasticsearch.Username != "" {
		esCfg.Username = cfg.Elasticsearch.Username
		esCfg.Password = cfg.Elasticsearch.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &Store{client: es, index: cfg.Index}, nil
}

// Ping tests the cluster connection.
func (s *Store) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return errors.NewSearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewSearchConnectionFailedError(fmt.Errorf("ping error: %s", res.Status()))
	}
	return nil
}

// Upload bulk-indexes the documents. One request per call; callers
// batch per table.
func (s *Store) Upload(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		action := map[string]map[string]string{"index": {"_index": s.index, "_id": doc.ID}}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return errors.NewSearchUploadFailedError(s.index, err)
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return errors.NewSearchUploadFailedError(s.index, err)
		}
	}

	res, err := s.client.Bulk(bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
	)
	if err != nil {
		return errors.NewSearchUploadFailedError(s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return errors.NewSearchUploadFailedError(s.index,
			fmt.Errorf("bulk error %s: %s", res.Status(), truncate(string(body), 200)))
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err == nil && bulkRes.Errors {
		return errors.NewSearchUploadFailedError(s.index, fmt.Errorf("bulk response reported item errors"))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
