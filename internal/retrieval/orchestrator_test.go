package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataverse-agent/internal/auth"
	"dataverse-agent/internal/common/logger"
	"dataverse-agent/internal/dataverse"
	"dataverse-agent/internal/query"
	"dataverse-agent/internal/summarize"
	"dataverse-agent/internal/tables"
)

// fakeDataverse serves the metadata and collection endpoints the
// pipeline touches. Collections are keyed by entity set name; broken
// tables return 500.
type fakeDataverse struct {
	entitySets map[string]string                   // logical name -> entity set
	attributes map[string][]map[string]string      // logical name -> attr defs
	rows       map[string][]map[string]interface{} // entity set -> rows
	aggregates map[string][]map[string]interface{} // entity set -> $apply rows
	broken     map[string]bool                     // entity set -> force 500
}

func (f *fakeDataverse) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		switch {
		case strings.HasSuffix(path, "/Attributes"):
			name := logicalName(path)
			writeValue(w, f.attributes[name])
		case strings.Contains(path, "EntityDefinitions(LogicalName="):
			name := logicalName(path)
			set, ok := f.entitySets[name]
			if !ok {
				http.Error(w, `{"error":{"message":"not found"}}`, http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"LogicalName": name, "EntitySetName": set})
		case strings.Contains(path, "/EntityDefinitions"):
			writeValue(w, nil)
		default:
			set := path[strings.LastIndex(path, "/")+1:]
			if f.broken[set] {
				http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
				return
			}
			if r.URL.Query().Get("$apply") != "" {
				writeValue(w, f.aggregates[set])
				return
			}
			writeValue(w, f.rows[set])
		}
	})
}

func logicalName(path string) string {
	start := strings.Index(path, "LogicalName='") + len("LogicalName='")
	return path[start : start+strings.Index(path[start:], "'")]
}

func writeValue(w http.ResponseWriter, v interface{}) {
	if v == nil {
		v = []struct{}{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"value": v})
}

func newTestOrchestrator(t *testing.T, fake *fakeDataverse, tableList []string) (*Orchestrator, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger(t)
	client := dataverse.NewClient(srv.URL, auth.Static("token"), 5*time.Second, log)
	resolver := dataverse.NewResolver(client, dataverse.NewMemoryCache(), log)
	reg := &tables.Registry{Tables: tableList}
	builder := query.NewBuilder(5, query.DefaultRecognizers(reg, false)...)
	summarizer := summarize.NewSummarizer(summarize.DefaultRecognizers(reg, false)...)

	return NewOrchestrator(resolver, client, builder, summarizer, tableList, log), srv
}

func TestRetrieve_ListingAcrossTables(t *testing.T) {
	fake := &fakeDataverse{
		entitySets: map[string]string{"account": "accounts", "contact": "contacts"},
		rows: map[string][]map[string]interface{}{
			"accounts": {{"name": "Contoso", "createdon": "2024-03-01T08:00:00Z"}},
			"contacts": {},
		},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"account", "contact"})

	result := o.Retrieve(context.Background(), "show all records")
	require.True(t, result.Found)

	// The empty contact table contributes nothing to the context.
	parts := strings.Split(result.Context, "\n\n")
	require.Len(t, parts, 1)
	assert.Contains(t, parts[0], "[account] 1 record(s)")
	assert.Contains(t, parts[0], "  - Contoso (2024-03-01)")
	assert.NotContains(t, result.Context, "[contact]")
}

func TestRetrieve_AllTablesEmptyReturnsSentinel(t *testing.T) {
	fake := &fakeDataverse{
		entitySets: map[string]string{"account": "accounts", "contact": "contacts"},
		rows: map[string][]map[string]interface{}{
			"accounts": {},
			"contacts": {},
		},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"account", "contact"})

	result := o.Retrieve(context.Background(), "show all records")
	assert.False(t, result.Found)
	assert.Equal(t, Sentinel, result.Context)
}

func TestRetrieve_FailingTableIsSkipped(t *testing.T) {
	fake := &fakeDataverse{
		entitySets: map[string]string{"account": "accounts", "contact": "contacts"},
		rows: map[string][]map[string]interface{}{
			"contacts": {{"fullname": "Jane Doe", "createdon": "2024-01-01T00:00:00Z"}},
		},
		broken: map[string]bool{"accounts": true},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"account", "contact"})

	result := o.Retrieve(context.Background(), "list entries")
	require.True(t, result.Found)
	assert.NotContains(t, result.Context, "[account]")
	assert.Contains(t, result.Context, "  - Jane Doe")
}

func TestRetrieve_NothingRetrieved(t *testing.T) {
	fake := &fakeDataverse{
		entitySets: map[string]string{"account": "accounts"},
		broken:     map[string]bool{"accounts": true},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"account"})

	result := o.Retrieve(context.Background(), "anything")
	assert.False(t, result.Found)
	assert.Equal(t, Sentinel, result.Context)
}

func TestRetrieve_ExplicitTableOverridesList(t *testing.T) {
	fake := &fakeDataverse{
		entitySets: map[string]string{"annotation": "annotations"},
		rows: map[string][]map[string]interface{}{
			"annotations": {{"subject": "Meeting notes", "createdon": "2024-06-01T00:00:00Z"}},
		},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"account", "contact"})

	result := o.Retrieve(context.Background(), "show records from annotation")
	require.True(t, result.Found)
	assert.Contains(t, result.Context, "[annotation] 1 record(s)")
	assert.NotContains(t, result.Context, "[account]")
	assert.NotContains(t, result.Context, "[contact]")
}

func TestRetrieve_ExplicitAggregateSkipsListing(t *testing.T) {
	fake := &fakeDataverse{
		entitySets: map[string]string{"account": "accounts"},
		attributes: map[string][]map[string]string{
			"account": {
				{"LogicalName": "revenue", "AttributeType": "Money"},
				{"LogicalName": "createdon", "AttributeType": "DateTime"},
			},
		},
		aggregates: map[string][]map[string]interface{}{
			"accounts": {{"Count": 42.0}},
		},
		rows: map[string][]map[string]interface{}{
			"accounts": {{"name": "should not appear"}},
		},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"contact"})

	result := o.Retrieve(context.Background(), "how many records in table account")
	require.True(t, result.Found)
	assert.Equal(t, "[account] Count: 42", result.Context)
}

func TestRetrieve_CountAliasFallback(t *testing.T) {
	// Some environments answer the count aggregate with a literal
	// $count key instead of the Count alias.
	fake := &fakeDataverse{
		entitySets: map[string]string{"account": "accounts"},
		aggregates: map[string][]map[string]interface{}{
			"accounts": {{"$count": 17.0}},
		},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"contact"})

	result := o.Retrieve(context.Background(), "how many records in table account")
	require.True(t, result.Found)
	assert.Equal(t, "[account] Count: 17", result.Context)
}

func TestRetrieve_SumWithYear(t *testing.T) {
	fake := &fakeDataverse{
		entitySets: map[string]string{"cr5cd_sales": "cr5cd_saleses"},
		attributes: map[string][]map[string]string{
			"cr5cd_sales": {
				{"LogicalName": "cr5cd_taxamount", "AttributeType": "Money"},
				{"LogicalName": "cr5cd_orderdate", "AttributeType": "DateTime"},
			},
		},
		aggregates: map[string][]map[string]interface{}{
			"cr5cd_saleses": {{"Result": 1234567.891}},
		},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"account"})

	result := o.Retrieve(context.Background(), "total sales from cr5cd_sales in 2024")
	require.True(t, result.Found)
	assert.Equal(t, "[cr5cd_sales] SUM of cr5cd_taxamount in 2024: 1,234,567.89", result.Context)
}

func TestRetrieve_UnsatisfiableAggregateFallsBackToListing(t *testing.T) {
	// No numeric attributes means a sum cannot be built; the table
	// still gets a plain listing instead of an error.
	fake := &fakeDataverse{
		entitySets: map[string]string{"annotation": "annotations"},
		rows: map[string][]map[string]interface{}{
			"annotations": {{"subject": "Note", "createdon": "2024-01-01T00:00:00Z"}},
		},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"account"})

	result := o.Retrieve(context.Background(), "total amount in table annotation")
	require.True(t, result.Found)
	assert.Contains(t, result.Context, "[annotation] 1 record(s)")
	assert.Contains(t, result.Context, "  - Note")
}

func TestRetrieve_HeuristicEntitySetWhenMetadataDown(t *testing.T) {
	// Metadata lookups 404 but the pluralized collection exists, so
	// listing still works.
	fake := &fakeDataverse{
		entitySets: map[string]string{},
		rows: map[string][]map[string]interface{}{
			"widgets": {{"name": "Widget A", "createdon": "2024-05-05T00:00:00Z"}},
		},
	}
	o, _ := newTestOrchestrator(t, fake, []string{"widget"})

	result := o.Retrieve(context.Background(), "show everything")
	require.True(t, result.Found)
	assert.Contains(t, result.Context, "[widget] 1 record(s)")
}
