// Package intent turns a free-text user question into a structured
// query intent: an explicitly named table, a cleaned search term, a
// requested year, and an optional aggregate operation.
package intent

import (
	"regexp"
	"strings"
)

// Operation is an aggregate operation requested in a query.
type Operation string

const (
	OpCount Operation = "count"
	OpSum   Operation = "sum"
	OpAvg   Operation = "avg"
	OpMax   Operation = "max"
	OpMin   Operation = "min"
)

// Aggregate is a detected aggregate request. The target field is not
// resolved here, it requires table metadata and is chosen by the query
// builder.
type Aggregate struct {
	Op   Operation
	Year string
}

// Intent is the structured form of a user query.
type Intent struct {
	Table     string // explicit table name, empty when not named
	Term      string // cleaned search term, possibly empty
	Year      string // 4-digit year, empty when absent
	Aggregate *Aggregate
}

var (
	tableNamedRe = regexp.MustCompile(`(?i)\btable\s+(?:named\s+)?([A-Za-z0-9_]+)\b`)
	fromRe       = regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z0-9_]+)\b`)
	inTableRe    = regexp.MustCompile(`(?i)\bin\s+table\s+([A-Za-z0-9_]+)\b`)

	yearRe     = regexp.MustCompile(`\b(20[0-9]{2})\b`)
	digitsOnly = regexp.MustCompile(`^\d{4}$`)

	controlWordsRe = regexp.MustCompile(`(?i)\b(show|list|records|entries|items|get|find|display|top|all)\b`)
	whitespaceRe   = regexp.MustCompile(`\s+`)

	countRe = regexp.MustCompile(`\b(count|how many)\b`)
	sumRe   = regexp.MustCompile(`\b(total|sum)\b`)
	avgRe   = regexp.MustCompile(`\b(avg|average|mean)\b`)
	maxRe   = regexp.MustCompile(`\b(max|maxi?mum|highest|top)\b`)
	minRe   = regexp.MustCompile(`\b(min|mini?mum|lowest)\b`)
)

// stopwords are rejected as table candidates so "in the table sales"
// never captures "the".
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "this": {}, "that": {}, "my": {},
}

// Extract parses a query into an Intent. It never fails; absent parts
// are left zero-valued.
func Extract(query string) Intent {
	return Intent{
		Table:     ExtractTable(query),
		Term:      ExtractTerm(query),
		Year:      ExtractYear(query),
		Aggregate: DetectAggregate(query),
	}
}

// ExtractTable finds an explicitly named table. Patterns are tried in
// priority order: "table [named] X", "from X", "in table X". The first
// non-stopword capture wins.
func ExtractTable(query string) string {
	if query == "" {
		return ""
	}

	for _, re := range []*regexp.Regexp{tableNamedRe, fromRe, inTableRe} {
		if m := re.FindStringSubmatch(query); m != nil {
			cand := m[1]
			if _, stop := stopwords[strings.ToLower(cand)]; !stop {
				return cand
			}
		}
	}
	return ""
}

// ExtractYear returns the first standalone 4-digit year token.
func ExtractYear(query string) string {
	if m := yearRe.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return ""
}

// ExtractTerm strips table mentions and control words from the query
// and returns what remains as a search term. Terms shorter than 3
// characters or consisting of exactly 4 digits are discarded, a bare
// year is handled by the year filter instead.
func ExtractTerm(query string) string {
	if query == "" {
		return ""
	}

	cleaned := query
	// "in table X" must be removed before "table X" so "in" is not left behind
	cleaned = inTableRe.ReplaceAllString(cleaned, " ")
	cleaned = tableNamedRe.ReplaceAllString(cleaned, " ")
	cleaned = fromRe.ReplaceAllString(cleaned, " ")
	cleaned = controlWordsRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))

	if len(cleaned) < 3 || digitsOnly.MatchString(cleaned) {
		return ""
	}
	return cleaned
}

// DetectAggregate classifies an aggregate request. Classes are tried
// in a fixed priority order, so "total" never matches once "count"
// already has. Returns nil when no class matches.
func DetectAggregate(query string) *Aggregate {
	if query == "" {
		return nil
	}

	q := strings.ToLower(query)
	var op Operation
	switch {
	case countRe.MatchString(q):
		op = OpCount
	case sumRe.MatchString(q):
		op = OpSum
	case avgRe.MatchString(q):
		op = OpAvg
	case maxRe.MatchString(q):
		op = OpMax
	case minRe.MatchString(q):
		op = OpMin
	default:
		return nil
	}

	return &Aggregate{Op: op, Year: ExtractYear(query)}
}
