package changelist

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/bitechdev/changelist/pkg/common"
	"github.com/bitechdev/changelist/pkg/reflection"
)

// filterClause is one request parameter parsed into a typed lookup.
type filterClause struct {
	key    string
	path   *resolvedPath
	lookup string
	value  interface{}
}

// parseFilters turns every non-meta request parameter into a clause. Keys
// are processed in sorted order so the rendered SQL is stable. A repeated
// key filters by its last value.
func parseFilters(meta *reflection.ModelMeta, params url.Values) ([]filterClause, error) {
	keys := make([]string, 0, len(params))
	for key := range params {
		if !IsMetaKey(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var clauses []filterClause
	for _, key := range keys {
		values := params[key]
		if len(values) == 0 {
			continue
		}
		names, lookup := common.ParseLookupKey(key)
		res, err := resolvePath(meta, names)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", key, err)
		}
		value, err := convertLookupValue(res.field, lookup, values[len(values)-1])
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", key, err)
		}
		clauses = append(clauses, filterClause{key: key, path: res, lookup: lookup, value: value})
	}
	return clauses, nil
}

// convertLookupValue converts the raw request string for lookup against f.
// "in" and "range" values are comma separated lists.
func convertLookupValue(f *reflection.FieldMeta, lookup, raw string) (interface{}, error) {
	switch lookup {
	case common.LookupIn, common.LookupRange:
		parts := strings.Split(raw, ",")
		if lookup == common.LookupRange && len(parts) != 2 {
			return nil, fmt.Errorf("range expects two comma separated values, got %q", raw)
		}
		values := make([]interface{}, 0, len(parts))
		for _, part := range parts {
			v, err := common.ConvertValue(f.Type, part)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	case common.LookupIsNull:
		return common.ParseBool(raw)
	case common.LookupIExact, common.LookupContains, common.LookupIContains,
		common.LookupStartsWith, common.LookupIStartsWith,
		common.LookupEndsWith, common.LookupIEndsWith, common.LookupSearch:
		return raw, nil
	default:
		return common.ConvertValue(f.Type, raw)
	}
}

// searchLookup maps a search field sigil to its lookup.
func searchLookup(field string) (string, string) {
	switch {
	case strings.HasPrefix(field, "^"):
		return field[1:], common.LookupIStartsWith
	case strings.HasPrefix(field, "="):
		return field[1:], common.LookupIExact
	case strings.HasPrefix(field, "@"):
		return field[1:], common.LookupSearch
	default:
		return field, common.LookupIContains
	}
}
