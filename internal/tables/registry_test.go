package tables

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataverse-agent/internal/common/errors"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tables.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeRegistry(t, `{
		"tables": ["account", "contact", "cr5cd_sales"],
		"sales": {
			"table_name": "cr5cd_sales",
			"amount_fields": ["cr5cd_unitprice", "cr5cd_taxamount", "cr5cd_quantityordered"],
			"date_fields": ["cr5cd_orderdate", "createdon", "modifiedon"],
			"product_fields": ["cr5cd_itemname"]
		},
		"plural_overrides": {"cr5cd_sales": "cr5cd_saleses"}
	}`)

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"account", "contact", "cr5cd_sales"}, reg.Tables)
	assert.Equal(t, "cr5cd_sales", reg.SalesTable())
	assert.Equal(t, "cr5cd_saleses", reg.PluralOverrides["cr5cd_sales"])
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"account", "contact", "annotation"}, reg.Tables)
	assert.Empty(t, reg.SalesTable())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegistryNotFound))
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"tables missing", `{"sales": {"table_name": "x"}}`},
		{"tables empty", `{"tables": []}`},
		{"sales without table_name", `{"tables": ["account"], "sales": {"amount_fields": []}}`},
		{"not json", `tables: [account]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeRegistry(t, tt.content))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeRegistryValidationFailed))
		})
	}
}
