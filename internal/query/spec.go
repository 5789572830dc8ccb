// Package query translates extracted intent plus resolved metadata
// into OData query parameters for one table.
package query

import (
	"fmt"
	"net/url"
	"strings"
)

// Spec is the parameter set for one table query.
type Spec struct {
	Select []string
	Filter string
	Apply  string
	Top    int
}

// Params renders the spec as OData query parameters. An aggregate
// spec carries only $apply; select/filter/top are for listings.
func (s *Spec) Params() url.Values {
	params := url.Values{}
	if s.Apply != "" {
		params.Set("$apply", s.Apply)
		return params
	}
	if len(s.Select) > 0 {
		params.Set("$select", strings.Join(s.Select, ","))
	}
	if s.Filter != "" {
		params.Set("$filter", s.Filter)
	}
	if s.Top > 0 {
		params.Set("$top", fmt.Sprintf("%d", s.Top))
	}
	return params
}

// escapeTerm doubles single quotes so user text cannot break out of
// an OData string literal.
func escapeTerm(term string) string {
	return strings.ReplaceAll(term, "'", "''")
}

// betweenFilter is the year-range filter used on listing queries.
func betweenFilter(field, year string) string {
	return fmt.Sprintf(
		"Microsoft.Dynamics.CRM.Between(PropertyName='%s',PropertyValues=['%s-01-01','%s-12-31'])",
		field, year, year)
}
