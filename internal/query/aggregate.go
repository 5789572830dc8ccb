// internal/query/aggregate.go
package query

import (
	"fmt"
	"strings"

	"dataverse-agent/internal/common/errors"
	"dataverse-agent/internal/intent"
)

// Metadata is the slice of resolved table metadata the builder needs.
type Metadata struct {
	NumericFields []string
	DateFields    []string
}

// aggregateFieldHints is the preference order for picking an aggregate
// target among a table's numeric fields.
var aggregateFieldHints = []string{"amount", "total", "price", "quantity", "revenue"}

// dateFieldPreference is the order for picking a date field to scope
// an aggregate to a year.
var dateFieldPreference = []string{
	"cr5cd_orderdate", "orderdate", "actualclosedate", "estimatedclosedate", "createdon",
}

// ResolveAggregateField picks the aggregate target: the first numeric
// field containing any hint substring, else the first numeric field.
// Selection is deterministic given the metadata field order. Empty
// when the table has no numeric fields.
func ResolveAggregateField(numericFields []string) string {
	for _, f := range numericFields {
		lower := strings.ToLower(f)
		for _, h := range aggregateFieldHints {
			if strings.Contains(lower, h) {
				return f
			}
		}
	}
	if len(numericFields) > 0 {
		return numericFields[0]
	}
	return ""
}

// ChooseDateField picks the date field used for year scoping, by the
// fixed preference list. Empty when none of the preferred fields are
// available.
func ChooseDateField(dateFields []string) string {
	available := make(map[string]struct{}, len(dateFields))
	for _, f := range dateFields {
		available[f] = struct{}{}
	}
	for _, p := range dateFieldPreference {
		if _, ok := available[p]; ok {
			return p
		}
	}
	return ""
}

// BuildAggregate constructs the $apply spec for an aggregate intent
// and returns the resolved field. A non-count aggregate over a table
// with no numeric fields is unsatisfiable; callers fall through to
// the plain listing path.
func BuildAggregate(table string, agg intent.Aggregate, md Metadata) (*Spec, string, error) {
	field := ResolveAggregateField(md.NumericFields)
	if field == "" && agg.Op != intent.OpCount {
		return nil, "", errors.NewAggregateUnsatisfiableError(table, string(agg.Op))
	}

	filterSeg := ""
	if agg.Year != "" {
		if dateField := ChooseDateField(md.DateFields); dateField != "" {
			filterSeg = fmt.Sprintf("filter(%s ge %s-01-01 and %s le %s-12-31)/",
				dateField, agg.Year, dateField, agg.Year)
		}
	}

	var apply string
	if agg.Op == intent.OpCount {
		apply = fmt.Sprintf("%saggregate($count as Count)", filterSeg)
	} else {
		apply = fmt.Sprintf("%saggregate(%s with %s as Result)", filterSeg, field, agg.Op)
	}

	return &Spec{Apply: apply}, field, nil
}
