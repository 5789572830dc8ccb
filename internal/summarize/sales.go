// internal/summarize/sales.go
package summarize

import (
	"fmt"
	"strings"

	"dataverse-agent/internal/dataverse"
	"dataverse-agent/internal/tables"
)

// maxSampleOrders caps the sample listing in the sales order digest.
const maxSampleOrders = 5

// genericAmountCandidates are the amount field names tried, in order,
// by the generic sales digest.
var genericAmountCandidates = []string{
	"cr123_amount", "cr123_salesamount", "cr123_totalamount",
	"salesamount", "totalamount", "amount",
}

// SalesOrderRecognizer renders the registry-configured sales table as
// an order summary with revenue, tax, and item totals. Field roles
// (price, quantity, tax, order number) are located by name substring
// among the configured and returned fields, so the digest works for
// any publisher prefix.
type SalesOrderRecognizer struct {
	Config *tables.SalesConfig
}

func (s *SalesOrderRecognizer) Matches(table string, rows []dataverse.Row) bool {
	return s.Config != nil && strings.EqualFold(table, s.Config.TableName)
}

func (s *SalesOrderRecognizer) Summarize(table string, rows []dataverse.Row) string {
	priceField := fieldByHint(s.Config.AmountFields, "price")
	qtyField := fieldByHint(s.Config.AmountFields, "quantit")
	taxField := fieldByHint(s.Config.AmountFields, "tax")
	productField := firstField(s.Config.ProductFields)
	dateField := firstField(s.Config.DateFields)

	var revenue, tax float64
	var itemsSold int64
	for _, row := range rows {
		price, _ := numericField(row, priceField)
		// A row without a quantity contributes nothing to revenue or
		// the item count.
		qty, _ := numericField(row, qtyField)
		revenue += price * qty
		itemsSold += int64(qty)
		if t, ok := numericField(row, taxField); ok {
			tax += t
		}
	}

	lines := []string{
		fmt.Sprintf("[Sales Summary] Total Revenue: $%s + Tax: $%s = $%s",
			formatAmount(revenue), formatAmount(tax), formatAmount(revenue+tax)),
		fmt.Sprintf("[Sales Summary] Total Items Sold: %d across %d orders", itemsSold, len(rows)),
		"",
		"Sample Orders:",
	}

	sample := rows
	if len(sample) > maxSampleOrders {
		sample = sample[:maxSampleOrders]
	}
	for i, row := range sample {
		orderNum := stringFieldByHint(row, "ordernumber")
		if orderNum == "" {
			orderNum = "N/A"
		}
		item := stringField(row, productField)
		if item == "" {
			item = "Unknown"
		}
		price, _ := numericField(row, priceField)
		qty, _ := numericField(row, qtyField)
		date := stringField(row, dateField)
		if len(date) > 10 {
			date = date[:10]
		}
		if date == "" {
			date = "N/A"
		}
		lines = append(lines, fmt.Sprintf("  %d. Order %s: %s x%d = $%s (Date: %s)",
			i+1, orderNum, item, int64(qty), formatAmount(price*qty), date))
	}

	return strings.Join(lines, "\n")
}

// GenericSalesRecognizer covers any table whose name mentions sales
// but has no registry configuration. It totals the first amount
// candidate field present and lists a few rows.
type GenericSalesRecognizer struct{}

func (GenericSalesRecognizer) Matches(table string, rows []dataverse.Row) bool {
	if !strings.Contains(strings.ToLower(table), "sales") {
		return false
	}
	return amountField(rows) != ""
}

func (GenericSalesRecognizer) Summarize(table string, rows []dataverse.Row) string {
	field := amountField(rows)

	var total float64
	for _, row := range rows {
		if v, ok := numericField(row, field); ok {
			total += v
		}
	}

	lines := []string{
		fmt.Sprintf("[%s] Total Sales: $%s (%d records)", table, formatAmount(total), len(rows)),
	}
	sample := rows
	if len(sample) > 3 {
		sample = sample[:3]
	}
	for _, row := range sample {
		name := stringField(row, "name")
		if name == "" {
			name = firstStringy(row)
		}
		amount, _ := numericField(row, field)
		date := stringField(row, "createdon")
		if len(date) > 10 {
			date = date[:10]
		}
		lines = append(lines, fmt.Sprintf("  - %s: $%s on %s", name, formatAmount(amount), date))
	}
	return strings.Join(lines, "\n")
}

// amountField finds the first amount candidate present in any row.
func amountField(rows []dataverse.Row) string {
	for _, c := range genericAmountCandidates {
		for _, row := range rows {
			if _, ok := row[c]; ok {
				return c
			}
		}
	}
	return ""
}

func fieldByHint(fields []string, hint string) string {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), hint) {
			return f
		}
	}
	return ""
}

func firstField(fields []string) string {
	if len(fields) > 0 {
		return fields[0]
	}
	return ""
}

func numericField(row dataverse.Row, field string) (float64, bool) {
	if field == "" {
		return 0, false
	}
	v, ok := row[field]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

func stringField(row dataverse.Row, field string) string {
	if field == "" {
		return ""
	}
	v, ok := row[field]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// stringFieldByHint returns the value of the first field whose name
// contains the hint, visiting fields in sorted name order.
func stringFieldByHint(row dataverse.Row, hint string) string {
	for _, k := range sortedFields(row) {
		if strings.Contains(strings.ToLower(k), hint) {
			if v := row[k]; v != nil {
				return fmt.Sprintf("%v", v)
			}
		}
	}
	return ""
}
