package common

import (
	"fmt"
	"strings"
)

// LookupSeparator separates relation hops and the trailing lookup in a filter key.
const LookupSeparator = "__"

const (
	LookupExact       = "exact"
	LookupIExact      = "iexact"
	LookupContains    = "contains"
	LookupIContains   = "icontains"
	LookupStartsWith  = "startswith"
	LookupIStartsWith = "istartswith"
	LookupEndsWith    = "endswith"
	LookupIEndsWith   = "iendswith"
	LookupGT          = "gt"
	LookupGTE         = "gte"
	LookupLT          = "lt"
	LookupLTE         = "lte"
	LookupIn          = "in"
	LookupRange       = "range"
	LookupIsNull      = "isnull"
	LookupSearch      = "search"
)

var knownLookups = map[string]bool{
	LookupExact: true, LookupIExact: true,
	LookupContains: true, LookupIContains: true,
	LookupStartsWith: true, LookupIStartsWith: true,
	LookupEndsWith: true, LookupIEndsWith: true,
	LookupGT: true, LookupGTE: true, LookupLT: true, LookupLTE: true,
	LookupIn: true, LookupRange: true, LookupIsNull: true, LookupSearch: true,
}

// IsLookup reports whether name is a supported lookup operator.
func IsLookup(name string) bool {
	return knownLookups[name]
}

// ParseLookupKey splits a filter key such as "department__name__icontains"
// into its field path and lookup. A key without a known trailing lookup uses
// "exact".
func ParseLookupKey(key string) (path []string, lookup string) {
	parts := strings.Split(key, LookupSeparator)
	if len(parts) > 1 && IsLookup(parts[len(parts)-1]) {
		return parts[:len(parts)-1], parts[len(parts)-1]
	}
	return parts, LookupExact
}

// Dialect selects the SQL spelling of case-insensitive and full-text lookups.
type Dialect int

const (
	DialectGeneric Dialect = iota
	DialectPostgres
	DialectMySQL
	DialectSQLite
)

// DialectFromDriver maps an adapter driver name to a Dialect.
func DialectFromDriver(name string) Dialect {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres
	case "mysql":
		return DialectMySQL
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return DialectGeneric
	}
}

// Condition is a rendered SQL predicate with positional "?" arguments.
type Condition struct {
	SQL  string
	Args []interface{}
}

// Or joins conditions with OR inside parentheses.
func Or(conds ...Condition) Condition {
	return join(" OR ", conds)
}

// And joins conditions with AND inside parentheses.
func And(conds ...Condition) Condition {
	return join(" AND ", conds)
}

func join(sep string, conds []Condition) Condition {
	if len(conds) == 1 {
		return conds[0]
	}
	parts := make([]string, 0, len(conds))
	args := make([]interface{}, 0)
	for _, c := range conds {
		parts = append(parts, c.SQL)
		args = append(args, c.Args...)
	}
	return Condition{SQL: "(" + strings.Join(parts, sep) + ")", Args: args}
}

const likeEscape = '!'

// escapeLike escapes LIKE wildcards so the value matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// RenderCondition renders a single lookup against an already qualified
// column expression. value must already be converted to the column's type;
// "in" and "range" take a []interface{}, "isnull" a bool.
func RenderCondition(d Dialect, column, lookup string, value interface{}) (Condition, error) {
	switch lookup {
	case LookupExact:
		if value == nil {
			return Condition{SQL: column + " IS NULL"}, nil
		}
		return Condition{SQL: column + " = ?", Args: []interface{}{value}}, nil
	case LookupGT:
		return Condition{SQL: column + " > ?", Args: []interface{}{value}}, nil
	case LookupGTE:
		return Condition{SQL: column + " >= ?", Args: []interface{}{value}}, nil
	case LookupLT:
		return Condition{SQL: column + " < ?", Args: []interface{}{value}}, nil
	case LookupLTE:
		return Condition{SQL: column + " <= ?", Args: []interface{}{value}}, nil
	case LookupIn:
		values, ok := value.([]interface{})
		if !ok {
			return Condition{}, fmt.Errorf("in lookup on %s expects a list, got %T", column, value)
		}
		if len(values) == 0 {
			return Condition{SQL: "1 = 0"}, nil
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return Condition{SQL: fmt.Sprintf("%s IN (%s)", column, marks), Args: values}, nil
	case LookupRange:
		values, ok := value.([]interface{})
		if !ok || len(values) != 2 {
			return Condition{}, fmt.Errorf("range lookup on %s expects two values", column)
		}
		return Condition{SQL: column + " BETWEEN ? AND ?", Args: values}, nil
	case LookupIsNull:
		isNull, ok := value.(bool)
		if !ok {
			return Condition{}, fmt.Errorf("isnull lookup on %s expects a bool, got %T", column, value)
		}
		if isNull {
			return Condition{SQL: column + " IS NULL"}, nil
		}
		return Condition{SQL: column + " IS NOT NULL"}, nil
	case LookupContains:
		return likeCondition(d, column, "%"+escapeLike(fmt.Sprint(value))+"%", false), nil
	case LookupStartsWith:
		return likeCondition(d, column, escapeLike(fmt.Sprint(value))+"%", false), nil
	case LookupEndsWith:
		return likeCondition(d, column, "%"+escapeLike(fmt.Sprint(value)), false), nil
	case LookupIExact:
		return likeCondition(d, column, escapeLike(fmt.Sprint(value)), true), nil
	case LookupIContains:
		return likeCondition(d, column, "%"+escapeLike(fmt.Sprint(value))+"%", true), nil
	case LookupIStartsWith:
		return likeCondition(d, column, escapeLike(fmt.Sprint(value))+"%", true), nil
	case LookupIEndsWith:
		return likeCondition(d, column, "%"+escapeLike(fmt.Sprint(value)), true), nil
	case LookupSearch:
		return searchCondition(d, column, fmt.Sprint(value)), nil
	default:
		return Condition{}, fmt.Errorf("unsupported lookup %q", lookup)
	}
}

func likeCondition(d Dialect, column, pattern string, insensitive bool) Condition {
	escape := fmt.Sprintf(" ESCAPE '%c'", likeEscape)
	switch {
	case insensitive && d == DialectPostgres:
		return Condition{SQL: column + " ILIKE ?" + escape, Args: []interface{}{pattern}}
	case insensitive:
		return Condition{SQL: "LOWER(" + column + ") LIKE LOWER(?)" + escape, Args: []interface{}{pattern}}
	default:
		return Condition{SQL: column + " LIKE ?" + escape, Args: []interface{}{pattern}}
	}
}

func searchCondition(d Dialect, column, text string) Condition {
	switch d {
	case DialectPostgres:
		return Condition{SQL: "to_tsvector(" + column + ") @@ plainto_tsquery(?)", Args: []interface{}{text}}
	case DialectMySQL:
		return Condition{SQL: "MATCH (" + column + ") AGAINST (? IN BOOLEAN MODE)", Args: []interface{}{text}}
	default:
		// no portable full-text index; degrade to a substring match
		return likeCondition(d, column, "%"+escapeLike(text)+"%", true)
	}
}
