package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataverse-agent/internal/common/errors"
	"dataverse-agent/internal/intent"
	"dataverse-agent/internal/tables"
)

func TestResolveAggregateField(t *testing.T) {
	tests := []struct {
		name     string
		numeric  []string
		expected string
	}{
		{
			// Hint match goes by field order, not hint order: taxamount
			// is first among hint-matching fields so it wins even though
			// unitprice also matches a hint.
			name:     "first hint matching field wins",
			numeric:  []string{"cr5cd_taxamount", "cr5cd_unitprice"},
			expected: "cr5cd_taxamount",
		},
		{
			name:     "falls back to first numeric field",
			numeric:  []string{"numberofemployees", "statecode"},
			expected: "numberofemployees",
		},
		{
			name:     "no numeric fields",
			numeric:  nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveAggregateField(tt.numeric))
		})
	}
}

func TestChooseDateField(t *testing.T) {
	tests := []struct {
		name     string
		dates    []string
		expected string
	}{
		{"order date preferred", []string{"createdon", "cr5cd_orderdate"}, "cr5cd_orderdate"},
		{"createdon fallback", []string{"modifiedon", "createdon"}, "createdon"},
		{"nothing usable", []string{"modifiedon"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ChooseDateField(tt.dates))
		})
	}
}

func TestBuildAggregate(t *testing.T) {
	md := Metadata{
		NumericFields: []string{"cr5cd_taxamount", "cr5cd_unitprice"},
		DateFields:    []string{"cr5cd_orderdate", "createdon"},
	}

	t.Run("sum with year scope", func(t *testing.T) {
		spec, field, err := BuildAggregate("cr5cd_sales", intent.Aggregate{Op: intent.OpSum, Year: "2024"}, md)
		require.NoError(t, err)
		assert.Equal(t, "cr5cd_taxamount", field)
		assert.Equal(t,
			"filter(cr5cd_orderdate ge 2024-01-01 and cr5cd_orderdate le 2024-12-31)/aggregate(cr5cd_taxamount with sum as Result)",
			spec.Apply)
		assert.Equal(t, spec.Apply, spec.Params().Get("$apply"))
	})

	t.Run("count without numeric fields", func(t *testing.T) {
		spec, field, err := BuildAggregate("annotation", intent.Aggregate{Op: intent.OpCount}, Metadata{})
		require.NoError(t, err)
		assert.Empty(t, field)
		assert.Equal(t, "aggregate($count as Count)", spec.Apply)
	})

	t.Run("count with year but no usable date field", func(t *testing.T) {
		spec, _, err := BuildAggregate("annotation", intent.Aggregate{Op: intent.OpCount, Year: "2023"},
			Metadata{DateFields: []string{"modifiedon"}})
		require.NoError(t, err)
		assert.Equal(t, "aggregate($count as Count)", spec.Apply)
	})

	t.Run("sum without numeric fields is unsatisfiable", func(t *testing.T) {
		_, _, err := BuildAggregate("annotation", intent.Aggregate{Op: intent.OpSum}, Metadata{})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeAggregateUnsatisfiable))
	})
}

func TestBuilder_ShapeChain(t *testing.T) {
	reg := &tables.Registry{
		Tables: []string{"account", "contact", "cr5cd_sales"},
		Sales: &tables.SalesConfig{
			TableName:     "cr5cd_sales",
			AmountFields:  []string{"cr5cd_unitprice", "cr5cd_taxamount", "cr5cd_quantityordered"},
			DateFields:    []string{"cr5cd_orderdate", "createdon"},
			ProductFields: []string{"cr5cd_itemname"},
		},
	}
	b := NewBuilder(5, DefaultRecognizers(reg, true)...)

	t.Run("account shape", func(t *testing.T) {
		spec := b.Build("account", intent.Intent{Term: "acme"})
		assert.Equal(t, []string{"name", "description", "revenue", "createdon"}, spec.Select)
		assert.Equal(t, "contains(name,'acme')", spec.Filter)
		assert.Equal(t, 5, spec.Top)
	})

	t.Run("contact shape", func(t *testing.T) {
		spec := b.Build("contact", intent.Intent{Term: "jane"})
		assert.Equal(t, "contains(fullname,'jane') or contains(emailaddress1,'jane')", spec.Filter)
	})

	t.Run("configured sales shape with year filter", func(t *testing.T) {
		spec := b.Build("cr5cd_sales", intent.Intent{Year: "2024"})
		assert.Contains(t, spec.Select, "cr5cd_itemname")
		assert.Contains(t, spec.Select, "cr5cd_unitprice")
		assert.Equal(t,
			"Microsoft.Dynamics.CRM.Between(PropertyName='cr5cd_orderdate',PropertyValues=['2024-01-01','2024-12-31'])",
			spec.Filter)
	})

	t.Run("generic sales name shape", func(t *testing.T) {
		spec := b.Build("cr999_salesdata", intent.Intent{Year: "2023"})
		assert.Contains(t, spec.Select, "totalamount")
		assert.Contains(t, spec.Filter, "PropertyName='createdon'")
	})

	t.Run("generic table with year beats term", func(t *testing.T) {
		spec := b.Build("annotation", intent.Intent{Term: "invoice", Year: "2024"})
		assert.Empty(t, spec.Select)
		assert.Contains(t, spec.Filter, "Microsoft.Dynamics.CRM.Between(PropertyName='createdon'")
		assert.NotContains(t, spec.Filter, "invoice")
	})

	t.Run("generic table term filter", func(t *testing.T) {
		spec := b.Build("annotation", intent.Intent{Term: "invoice"})
		assert.Equal(t,
			"contains(name,'invoice') or contains(subject,'invoice') or contains(title,'invoice')",
			spec.Filter)
	})

	t.Run("term quotes escaped", func(t *testing.T) {
		spec := b.Build("account", intent.Intent{Term: "o'brien"})
		assert.Equal(t, "contains(name,'o''brien')", spec.Filter)
	})
}

func TestBuilder_SalesShapeDisabled(t *testing.T) {
	reg := &tables.Registry{
		Tables: []string{"cr5cd_sales"},
		Sales:  &tables.SalesConfig{TableName: "cr5cd_sales", DateFields: []string{"cr5cd_orderdate"}},
	}
	b := NewBuilder(5, DefaultRecognizers(reg, false)...)

	// With advanced handling off, the table falls to the generic
	// sales-name shape instead of the configured one.
	spec := b.Build("cr5cd_sales", intent.Intent{})
	assert.Contains(t, spec.Select, "cr123_amount")
}
