// internal/dataverse/metadata.go
package dataverse

import (
	"context"
	"strings"

	"dataverse-agent/internal/common/logger"
	"dataverse-agent/internal/common/metrics"
)

// Attribute type sets as reported by the metadata service.
var (
	numericAttributeTypes = map[string]struct{}{
		"Integer": {}, "BigInt": {}, "Double": {}, "Decimal": {}, "Money": {},
	}
	dateAttributeTypes = map[string]struct{}{
		"DateTime": {},
	}
)

// defaultPluralOverrides covers custom tables whose entity set name
// does not follow the simple pluralization rule.
var defaultPluralOverrides = map[string]string{
	"cr5cd_sales": "cr5cd_saleses",
}

// Resolver answers entity set name and field type questions for a
// table, backed by the metadata service and an explicit cache.
// Metadata failures degrade to empty results, never errors.
type Resolver struct {
	client  *Client
	cache   Cache
	plurals map[string]string
	logger  logger.Logger
}

func NewResolver(client *Client, cache Cache, log logger.Logger) *Resolver {
	plurals := make(map[string]string, len(defaultPluralOverrides))
	for k, v := range defaultPluralOverrides {
		plurals[k] = v
	}
	return &Resolver{
		client:  client,
		cache:   cache,
		plurals: plurals,
		logger:  log,
	}
}

// WithPluralOverrides merges registry-configured irregular plurals.
func (r *Resolver) WithPluralOverrides(overrides map[string]string) *Resolver {
	for k, v := range overrides {
		r.plurals[strings.ToLower(k)] = v
	}
	return r
}

// EntitySetName resolves a table's collection endpoint name. Lookup
// order: cache, exact metadata lookup, contains search, heuristic
// pluralizer. Only metadata-confirmed names are cached; the heuristic
// fallback is recomputed so a later successful lookup can replace it.
func (r *Resolver) EntitySetName(ctx context.Context, table string) string {
	if table == "" {
		return ""
	}
	key := strings.ToLower(table)

	entry, ok := r.cache.Get(ctx, key)
	if ok && entry.HasEntitySet {
		metrics.MetadataCacheHits.WithLabelValues("hit").Inc()
		return entry.EntitySet
	}
	metrics.MetadataCacheHits.WithLabelValues("miss").Inc()

	name, err := r.client.entityDefinitionExact(ctx, table)
	if err != nil || name == "" {
		name, err = r.client.entityDefinitionSearch(ctx, table)
	}
	if err != nil || name == "" {
		if err != nil {
			r.logger.WithError(err).Debug("entity set lookup failed, using heuristic", map[string]interface{}{
				"table": table,
			})
		}
		return r.Pluralize(table)
	}

	entry.EntitySet = name
	entry.HasEntitySet = true
	r.cache.Put(ctx, key, entry)
	return name
}

// NumericFields returns the table's numeric-typed attribute names in
// service order. Empty on metadata failure.
func (r *Resolver) NumericFields(ctx context.Context, table string) []string {
	entry := r.attributeEntry(ctx, table)
	return entry.Numeric
}

// DateFields returns the table's date-typed attribute names in
// service order. Empty on metadata failure.
func (r *Resolver) DateFields(ctx context.Context, table string) []string {
	entry := r.attributeEntry(ctx, table)
	return entry.Dates
}

// attributeEntry returns the cached attribute sections, fetching both
// numeric and date lists in one metadata call on a miss.
func (r *Resolver) attributeEntry(ctx context.Context, table string) Entry {
	key := strings.ToLower(table)

	entry, ok := r.cache.Get(ctx, key)
	if ok && entry.HasNumeric && entry.HasDates {
		metrics.MetadataCacheHits.WithLabelValues("hit").Inc()
		return entry
	}
	metrics.MetadataCacheHits.WithLabelValues("miss").Inc()

	attrs, err := r.client.attributes(ctx, table)
	if err != nil {
		r.logger.WithError(err).Debug("attribute metadata unavailable", map[string]interface{}{
			"table": table,
		})
		return entry
	}

	entry.Numeric = nil
	entry.Dates = nil
	for _, a := range attrs {
		if a.LogicalName == "" {
			continue
		}
		if _, ok := numericAttributeTypes[a.AttributeType]; ok {
			entry.Numeric = append(entry.Numeric, a.LogicalName)
		}
		if _, ok := dateAttributeTypes[a.AttributeType]; ok {
			entry.Dates = append(entry.Dates, a.LogicalName)
		}
	}
	entry.HasNumeric = true
	entry.HasDates = true
	r.cache.Put(ctx, key, entry)
	return entry
}

// Pluralize is the best-effort entity set name when metadata is not
// available: irregular overrides first, then "s"/"es" suffixing.
func (r *Resolver) Pluralize(table string) string {
	if override, ok := r.plurals[strings.ToLower(table)]; ok {
		return override
	}
	if strings.HasSuffix(table, "s") {
		return table + "es"
	}
	return table + "s"
}
