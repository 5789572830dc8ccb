// Package summarize turns heterogeneous, schema-unknown result rows
// into compact textual digests for the context blob.
package summarize

import (
	"fmt"
	"sort"
	"strings"

	"dataverse-agent/internal/dataverse"
	"dataverse-agent/internal/intent"
	"dataverse-agent/internal/tables"
)

// maxDisplayRows caps the per-table listing in a digest. Numeric
// totals still accumulate over every returned row.
const maxDisplayRows = 5

// displayKeyFields is the priority list for picking a row's display
// value.
var displayKeyFields = []string{
	"name", "fullname", "subject", "title", "cr5cd_itemname", "description",
}

// displayDateFields is the priority list for attaching a date to a
// row line.
var displayDateFields = []string{
	"cr5cd_orderdate", "createdon", "modifiedon", "overriddencreatedon",
}

// numericHints marks field names whose numeric values are worth
// totaling in the digest header.
var numericHints = []string{
	"amount", "total", "price", "revenue", "quantity", "unit", "linetotal", "extendedamount",
}

// Recognizer produces a specialized digest for tables with a known
// shape. Recognizers are tried in order; the first match wins, and
// unmatched tables get the generic digest.
type Recognizer interface {
	Matches(table string, rows []dataverse.Row) bool
	Summarize(table string, rows []dataverse.Row) string
}

// Summarizer renders one table's result set as a digest.
type Summarizer struct {
	recognizers []Recognizer
}

func NewSummarizer(recognizers ...Recognizer) *Summarizer {
	return &Summarizer{recognizers: recognizers}
}

// DefaultRecognizers builds the standard chain: the configured custom
// sales-order shape (when advanced handling is on), then the generic
// sales-name shape.
func DefaultRecognizers(reg *tables.Registry, salesAdvanced bool) []Recognizer {
	var chain []Recognizer
	if salesAdvanced && reg != nil && reg.Sales != nil {
		chain = append(chain, &SalesOrderRecognizer{Config: reg.Sales})
	}
	chain = append(chain, &GenericSalesRecognizer{})
	return chain
}

// Digest summarizes rows for a table. Empty input always yields the
// fixed no-records line, regardless of any prior state.
func (s *Summarizer) Digest(table string, rows []dataverse.Row) string {
	if len(rows) == 0 {
		return fmt.Sprintf("[%s] No records found.", table)
	}
	for _, r := range s.recognizers {
		if r.Matches(table, rows) {
			return r.Summarize(table, rows)
		}
	}
	return genericDigest(table, rows)
}

// AggregateDigest formats an aggregate result line.
func AggregateDigest(table string, op intent.Operation, field, year string, value float64) string {
	scope := ""
	if year != "" {
		scope = " in " + year
	}
	if op == intent.OpCount {
		return fmt.Sprintf("[%s] Count%s: %d", table, scope, int64(value))
	}
	return fmt.Sprintf("[%s] %s of %s%s: %s",
		table, strings.ToUpper(string(op)), field, scope, formatAmount(value))
}

// genericDigest is the any-table fallback: a header with the record
// count and up to two numeric-hint totals, then up to five display
// lines with date suffixes. Missing fields are skipped, never errors.
func genericDigest(table string, rows []dataverse.Row) string {
	var lines []string
	totals := map[string]float64{}
	var totalOrder []string

	// Totals accumulate over every row, not just the displayed ones.
	for _, row := range rows {
		for _, field := range sortedFields(row) {
			val, ok := toFloat(row[field])
			if !ok {
				continue
			}
			if _, isStr := row[field].(string); isStr {
				continue
			}
			lower := strings.ToLower(field)
			for _, h := range numericHints {
				if strings.Contains(lower, h) {
					if _, seen := totals[field]; !seen {
						totalOrder = append(totalOrder, field)
					}
					totals[field] += val
					break
				}
			}
		}
	}

	display := rows
	if len(display) > maxDisplayRows {
		display = display[:maxDisplayRows]
	}
	for _, row := range display {
		displayVal := ""
		for _, k := range displayKeyFields {
			if v, ok := row[k]; ok && v != nil && fmt.Sprintf("%v", v) != "" {
				displayVal = fmt.Sprintf("%v", v)
				break
			}
		}
		if displayVal == "" {
			displayVal = firstStringy(row)
		}

		dateVal := ""
		for _, d := range displayDateFields {
			if v, ok := row[d]; ok && v != nil {
				s := fmt.Sprintf("%v", v)
				if len(s) > 10 {
					s = s[:10]
				}
				dateVal = s
				break
			}
		}

		if dateVal != "" {
			lines = append(lines, fmt.Sprintf("  - %s (%s)", displayVal, dateVal))
		} else {
			lines = append(lines, fmt.Sprintf("  - %s", displayVal))
		}
	}

	header := fmt.Sprintf("[%s] %d record(s)", table, len(rows))
	if len(totalOrder) > 0 {
		var aggParts []string
		for _, k := range totalOrder[:min(2, len(totalOrder))] {
			aggParts = append(aggParts, fmt.Sprintf("%s: %s", k, formatAmount(totals[k])))
		}
		header += " | totals → " + strings.Join(aggParts, ", ")
	}

	return strings.Join(append([]string{header}, lines...), "\n")
}

// firstStringy concatenates the first two short string fields of a
// row for display. Rows decode to maps, so fields are visited in
// sorted name order for stable output.
func firstStringy(row dataverse.Row) string {
	var parts []string
	for _, k := range sortedFields(row) {
		v, ok := row[k].(string)
		if ok && len(v) >= 1 && len(v) <= 60 {
			parts = append(parts, v)
			if len(parts) >= 2 {
				break
			}
		}
	}
	if len(parts) == 0 {
		return "Record"
	}
	return strings.Join(parts, " - ")
}

func sortedFields(row dataverse.Row) []string {
	fields := make([]string, 0, len(row))
	for k := range row {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
