// Package tables loads the JSON registry naming which Dataverse
// tables the agent searches, plus optional per-table shape hints.
package tables

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"dataverse-agent/internal/common/errors"
)

// Registry lists the tables to search and their shape configuration.
type Registry struct {
	Tables          []string          `json:"tables"`
	Sales           *SalesConfig      `json:"sales,omitempty"`
	PluralOverrides map[string]string `json:"plural_overrides,omitempty"`
}

// SalesConfig describes a custom sales-order table: which fields carry
// amounts, dates, and product names. Used by the query builder and
// summarizer shape recognizers.
type SalesConfig struct {
	TableName     string   `json:"table_name"`
	AmountFields  []string `json:"amount_fields"`
	DateFields    []string `json:"date_fields"`
	ProductFields []string `json:"product_fields"`
}

const registrySchema = `{
  "type": "object",
  "properties": {
    "tables": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "minItems": 1
    },
    "sales": {
      "type": "object",
      "properties": {
        "table_name": {"type": "string", "minLength": 1},
        "amount_fields": {"type": "array", "items": {"type": "string"}},
        "date_fields": {"type": "array", "items": {"type": "string"}},
        "product_fields": {"type": "array", "items": {"type": "string"}}
      },
      "required": ["table_name"]
    },
    "plural_overrides": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  },
  "required": ["tables"]
}`

// Default returns the registry used when no file is configured.
func Default() *Registry {
	return &Registry{
		Tables: []string{"account", "contact", "annotation"},
	}
}

// Load reads and validates a registry file. A missing path yields the
// default registry rather than an error.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewRegistryNotFoundError(path)
		}
		return nil, fmt.Errorf("failed to read registry %s: %w", path, err)
	}

	schemaLoader := gojsonschema.NewStringLoader(registrySchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, errors.NewRegistryValidationFailedError(err.Error())
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, errors.NewRegistryValidationFailedError(strings.Join(msgs, "; "))
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, errors.NewRegistryValidationFailedError(err.Error())
	}

	return &reg, nil
}

// SalesTable returns the configured custom sales table name, or "".
func (r *Registry) SalesTable() string {
	if r.Sales == nil {
		return ""
	}
	return r.Sales.TableName
}
