// internal/query/builder.go
package query

import (
	"fmt"
	"strings"

	"dataverse-agent/internal/intent"
	"dataverse-agent/internal/tables"
)

// Recognizer handles tables with a known schema shape. Recognizers
// are tried in order; the first match builds the listing spec. Tables
// no recognizer claims fall through to the generic path.
type Recognizer interface {
	Matches(table string) bool
	Build(table string, in intent.Intent, top int) *Spec
}

// Builder turns intent into listing specs via the recognizer chain.
type Builder struct {
	recognizers []Recognizer
	top         int
}

// NewBuilder creates a builder with the given row cap and chain.
func NewBuilder(top int, recognizers ...Recognizer) *Builder {
	if top <= 0 {
		top = 5
	}
	return &Builder{recognizers: recognizers, top: top}
}

// DefaultRecognizers builds the standard chain: the configured custom
// sales shape (when advanced handling is on), the account and contact
// shapes, then the generic sales-name shape.
func DefaultRecognizers(reg *tables.Registry, salesAdvanced bool) []Recognizer {
	var chain []Recognizer
	if salesAdvanced && reg != nil && reg.Sales != nil {
		chain = append(chain, &SalesOrderShape{Config: reg.Sales})
	}
	chain = append(chain,
		&AccountShape{},
		&ContactShape{},
		&GenericSalesShape{},
	)
	return chain
}

// Build constructs the listing spec for one table.
func (b *Builder) Build(table string, in intent.Intent) *Spec {
	for _, r := range b.recognizers {
		if r.Matches(table) {
			return r.Build(table, in, b.top)
		}
	}
	return b.generic(in)
}

// generic is the fallback for tables with unknown schema. A year
// filter wins over a search term: the original behavior, kept as is.
// Fields named in the contains chain that are absent from the actual
// schema are silently ignored by the service.
func (b *Builder) generic(in intent.Intent) *Spec {
	spec := &Spec{Top: b.top}
	if in.Year != "" {
		spec.Filter = betweenFilter("createdon", in.Year)
	} else if in.Term != "" {
		term := escapeTerm(in.Term)
		spec.Filter = fmt.Sprintf(
			"contains(name,'%s') or contains(subject,'%s') or contains(title,'%s')",
			term, term, term)
	}
	return spec
}

// AccountShape covers the standard accounts table.
type AccountShape struct{}

func (AccountShape) Matches(table string) bool {
	return strings.EqualFold(table, "account")
}

func (AccountShape) Build(table string, in intent.Intent, top int) *Spec {
	spec := &Spec{
		Select: []string{"name", "description", "revenue", "createdon"},
		Top:    top,
	}
	if in.Term != "" {
		spec.Filter = fmt.Sprintf("contains(name,'%s')", escapeTerm(in.Term))
	}
	return spec
}

// ContactShape covers the standard contacts table.
type ContactShape struct{}

func (ContactShape) Matches(table string) bool {
	return strings.EqualFold(table, "contact")
}

func (ContactShape) Build(table string, in intent.Intent, top int) *Spec {
	spec := &Spec{
		Select: []string{"fullname", "emailaddress1", "jobtitle", "createdon"},
		Top:    top,
	}
	if in.Term != "" {
		term := escapeTerm(in.Term)
		spec.Filter = fmt.Sprintf("contains(fullname,'%s') or contains(emailaddress1,'%s')", term, term)
	}
	return spec
}

// SalesOrderShape covers the registry-configured custom sales table.
// Field names come from the registry, not from hardcoded logical
// names, so any environment's sales table can use it.
type SalesOrderShape struct {
	Config *tables.SalesConfig
}

func (s *SalesOrderShape) Matches(table string) bool {
	return s.Config != nil && strings.EqualFold(table, s.Config.TableName)
}

func (s *SalesOrderShape) Build(table string, in intent.Intent, top int) *Spec {
	var sel []string
	sel = append(sel, s.Config.ProductFields...)
	sel = append(sel, s.Config.AmountFields...)
	sel = append(sel, s.Config.DateFields...)

	spec := &Spec{Select: sel, Top: top}
	if in.Year != "" && len(s.Config.DateFields) > 0 {
		spec.Filter = betweenFilter(s.Config.DateFields[0], in.Year)
	}
	return spec
}

// GenericSalesShape covers any table whose name mentions sales but
// has no registry configuration. It selects the common amount, date,
// and product field candidates seen across environments; absent
// fields are ignored by the service.
type GenericSalesShape struct{}

func (GenericSalesShape) Matches(table string) bool {
	return strings.Contains(strings.ToLower(table), "sales")
}

func (GenericSalesShape) Build(table string, in intent.Intent, top int) *Spec {
	spec := &Spec{
		Select: []string{
			"name", "createdon",
			"cr123_amount", "cr123_salesamount", "cr123_totalamount", "salesamount", "totalamount", "amount",
			"cr123_date", "cr123_salesdate", "salesdate", "transactiondate",
			"cr123_product", "cr123_productname", "productname",
		},
		Top: top,
	}
	if in.Year != "" {
		spec.Filter = betweenFilter("createdon", in.Year)
	}
	return spec
}
