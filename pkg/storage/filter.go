package storage

import (
	"fmt"
	"strings"

	"github.com/wozozo/smpit/pkg/filter"
)

// Filter keys accepted by ListSecrets and BatchGetSecretValue.
const (
	FilterKeyDescription   = "description"
	FilterKeyName          = "name"
	FilterKeyTagKey        = "tag-key"
	FilterKeyTagValue      = "tag-value"
	FilterKeyPrimaryRegion = "primary-region"
	FilterKeyOwningService = "owning-service"
	FilterKeyAll           = "all"
)

// Filter is one filter clause: a key and the values to match. Values
// within a clause combine with OR; a leading '!' negates the value and
// negated values combine with AND NOT. Clauses combine with AND.
type Filter struct {
	Key    string
	Values []string
}

// ValidFilterKey reports whether key names a supported filter column.
func ValidFilterKey(key string) bool {
	switch key {
	case FilterKeyDescription, FilterKeyName, FilterKeyTagKey,
		FilterKeyTagValue, FilterKeyPrimaryRegion, FilterKeyOwningService,
		FilterKeyAll:
		return true
	}
	return false
}

// buildFilterPredicate renders the filter clauses into a SQL predicate
// over the secrets table (aliased s) and the argument list to bind.
func buildFilterPredicate(filters []Filter) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)

	for _, f := range filters {
		if !ValidFilterKey(f.Key) {
			return "", nil, fmt.Errorf("unsupported filter key: %s", f.Key)
		}
		if len(f.Values) == 0 {
			continue
		}

		var positive, negative []string
		for _, value := range f.Values {
			if negated, ok := strings.CutPrefix(value, "!"); ok {
				negative = append(negative, negated)
			} else {
				positive = append(positive, value)
			}
		}

		var parts []string
		if len(positive) > 0 {
			ors := make([]string, 0, len(positive))
			for _, value := range positive {
				expr, valueArgs := matchExpr(f.Key, value)
				ors = append(ors, expr)
				args = append(args, valueArgs...)
			}
			parts = append(parts, "("+strings.Join(ors, " OR ")+")")
		}
		for _, value := range negative {
			expr, valueArgs := matchExpr(f.Key, value)
			parts = append(parts, "NOT "+expr)
			args = append(args, valueArgs...)
		}

		clauses = append(clauses, "("+strings.Join(parts, " AND ")+")")
	}

	if len(clauses) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(clauses, " AND "), args, nil
}

// matchExpr renders a single positive match for key against value.
func matchExpr(key, value string) (string, []any) {
	switch key {
	case FilterKeyDescription:
		return prefixExpr("s.description"), prefixArgs(value)
	case FilterKeyName:
		return prefixExpr("s.name"), prefixArgs(value)
	case FilterKeyTagKey:
		return tagExpr("key"), prefixArgs(value)
	case FilterKeyTagValue:
		return tagExpr("value"), prefixArgs(value)
	case FilterKeyPrimaryRegion, FilterKeyOwningService:
		// Replication and service-owned secrets are not modeled, so a
		// positive match never holds.
		return "(1=0)", nil
	case FilterKeyAll:
		return allExpr(value)
	}
	return "(1=0)", nil
}

// prefixExpr is a case-sensitive prefix match. LIKE is case-insensitive
// for ASCII in SQLite, so compare an explicit substring instead.
func prefixExpr(column string) string {
	return fmt.Sprintf("(substr(%s, 1, ?) = ?)", column)
}

func prefixArgs(value string) []any {
	return []any{len(value), value}
}

func tagExpr(column string) string {
	return fmt.Sprintf(`(EXISTS (
		SELECT 1 FROM secrets_tags t
		WHERE t.secret_arn = s.arn AND substr(t.%s, 1, ?) = ?
	))`, column)
}

// allExpr matches every search token against name, description, tag keys
// and tag values. Tokens combine with AND, the targets with OR.
func allExpr(value string) (string, []any) {
	tokens := filter.SplitSearchTerms(value)
	if len(tokens) == 0 {
		return "(1=1)", nil
	}

	var (
		perToken []string
		args     []any
	)
	for _, token := range tokens {
		targets := []string{
			prefixExpr("s.name"),
			prefixExpr("s.description"),
			tagExpr("key"),
			tagExpr("value"),
		}
		perToken = append(perToken, "("+strings.Join(targets, " OR ")+")")
		for range targets {
			args = append(args, prefixArgs(token)...)
		}
	}
	return "(" + strings.Join(perToken, " AND ") + ")", args
}
