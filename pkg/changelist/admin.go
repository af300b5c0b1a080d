package changelist

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/bitechdev/changelist/pkg/common"
	"github.com/bitechdev/changelist/pkg/reflection"
)

// AdminChangeList adds the helpers an admin page renders with: filter specs,
// query string rewriting and row links.
type AdminChangeList struct {
	*ChangeList

	filters memo[[]FilterSpec]
}

// NewAdmin creates the admin change list of coll for params.
func NewAdmin(params url.Values, coll *Collection, opts Options) *AdminChangeList {
	return &AdminChangeList{ChangeList: New(params, coll, opts)}
}

// GetFilters returns one filter spec per ListFilter entry, keeping only the
// specs that have something to show for this request.
func (cl *AdminChangeList) GetFilters(ctx context.Context) ([]FilterSpec, error) {
	return cl.filters.get(func() ([]FilterSpec, error) {
		specs := make([]FilterSpec, 0, len(cl.opts.ListFilter))
		for _, name := range cl.opts.ListFilter {
			spec, err := createFilterSpec(ctx, name, cl)
			if err != nil {
				return nil, fmt.Errorf("list filter %s: %w", name, err)
			}
			if spec.HasOutput() {
				specs = append(specs, spec)
			}
		}
		return specs, nil
	})
}

// GetQueryString returns the current parameters, minus every key starting
// with one of the remove prefixes, with newParams applied. A nil value
// deletes the key. The result is URL encoded with a leading "?".
func (cl *AdminChangeList) GetQueryString(newParams map[string]any, remove ...string) string {
	params := cl.Params()
	for key := range params {
		for _, prefix := range remove {
			if strings.HasPrefix(key, prefix) {
				params.Del(key)
				break
			}
		}
	}
	for key, value := range newParams {
		if value == nil {
			params.Del(key)
			continue
		}
		params.Set(key, fmt.Sprint(value))
	}
	return "?" + params.Encode()
}

// URLForResult is the link to a row's change page, relative to the list.
func (cl *AdminChangeList) URLForResult(row any) string {
	return common.Quote(cl.primaryKeyValue(row)) + "/"
}

func (cl *AdminChangeList) primaryKeyValue(row any) any {
	meta := cl.coll.meta
	v := reflect.ValueOf(row)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	pk, ok := meta.Field(meta.PrimaryKey)
	if !ok || v.Type() != meta.Type {
		return reflection.GetPrimaryKeyValue(row)
	}
	value, _ := fieldValue(v, pk)
	return value
}
