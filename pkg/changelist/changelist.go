package changelist

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/bitechdev/changelist/pkg/common"
	"github.com/bitechdev/changelist/pkg/logger"
	"github.com/bitechdev/changelist/pkg/reflection"
)

// Reserved request parameters. They drive paging, ordering and search and
// never filter rows.
const (
	AllVar       = "all"
	OrderVar     = "o"
	OrderTypeVar = "ot"
	PageVar      = "p"
	SearchVar    = "q"
	ToFieldVar   = "t"
	IsPopupVar   = "pop"
	ErrorFlag    = "e"
)

const (
	// MaxShowAllAllowed caps the rows a "show all" request may return.
	MaxShowAllAllowed = 200
	// DefaultListPerPage is used when Options.ListPerPage is not set.
	DefaultListPerPage = 100
	// EmptyChangeListValue is displayed for NULL values.
	EmptyChangeListValue = "(None)"
)

var metaKeys = map[string]bool{
	AllVar: true, OrderVar: true, OrderTypeVar: true, PageVar: true,
	SearchVar: true, ToFieldVar: true, IsPopupVar: true, ErrorFlag: true,
}

// IsMetaKey reports whether key is a reserved request parameter.
func IsMetaKey(key string) bool {
	return metaKeys[key]
}

// Column is a display column that is not a model field.
type Column struct {
	// OrderField is the model field the column sorts by.
	OrderField string
}

// Options configures what a change list displays, filters and searches.
type Options struct {
	ListDisplay       []string          `yaml:"list_display" json:"list_display"`
	ListFilter        []string          `yaml:"list_filter" json:"list_filter"`
	SearchFields      []string          `yaml:"search_fields" json:"search_fields"`
	ListSelectRelated bool              `yaml:"list_select_related" json:"list_select_related"`
	ListPerPage       int               `yaml:"list_per_page" json:"list_per_page"`
	Columns           map[string]Column `yaml:"-" json:"-"`

	// SearchPerCharacter matches every character of the search text
	// instead of every word.
	SearchPerCharacter bool `yaml:"search_per_character" json:"search_per_character"`
}

type memo[T any] struct {
	done  bool
	value T
	err   error
}

func (m *memo[T]) get(fn func() (T, error)) (T, error) {
	if !m.done {
		m.value, m.err = fn()
		m.done = true
	}
	return m.value, m.err
}

type pageWindow struct {
	page   int
	offset int
	limit  int
	all    bool
}

// ChangeList is the filtered, searched, ordered and paginated view of a
// collection for one request. Results are computed lazily and memoised.
type ChangeList struct {
	params url.Values
	coll   *Collection
	opts   Options

	clauses   memo[[]filterClause]
	count     memo[int]
	fullCount memo[int]
	window    memo[pageWindow]
	result    memo[interface{}]
}

// New creates the change list of coll for the request parameters params.
func New(params url.Values, coll *Collection, opts Options) *ChangeList {
	copied := make(url.Values, len(params))
	for k, v := range params {
		copied[k] = append([]string(nil), v...)
	}
	if opts.ListPerPage <= 0 {
		opts.ListPerPage = DefaultListPerPage
	}
	return &ChangeList{params: copied, coll: coll, opts: opts}
}

// Collection returns the base collection.
func (cl *ChangeList) Collection() *Collection {
	return cl.coll
}

// Options returns the effective options.
func (cl *ChangeList) Options() Options {
	return cl.opts
}

// Params returns the request parameters without the page and error flags.
func (cl *ChangeList) Params() url.Values {
	params := make(url.Values, len(cl.params))
	for k, v := range cl.params {
		if k == PageVar || k == ErrorFlag {
			continue
		}
		params[k] = append([]string(nil), v...)
	}
	return params
}

// Query is the search text.
func (cl *ChangeList) Query() string {
	return cl.params.Get(SearchVar)
}

// ShowAll reports whether the request asked for every row on one page.
func (cl *ChangeList) ShowAll() bool {
	_, ok := cl.params[AllVar]
	return ok
}

// IsPopup reports whether the list is rendered as a related-object picker.
func (cl *ChangeList) IsPopup() bool {
	_, ok := cl.params[IsPopupVar]
	return ok
}

// ToField is the field a popup returns to its opener.
func (cl *ChangeList) ToField() string {
	return cl.params.Get(ToFieldVar)
}

func (cl *ChangeList) parsedFilters() ([]filterClause, error) {
	return cl.clauses.get(func() ([]filterClause, error) {
		return parseFilters(cl.coll.meta, cl.params)
	})
}

// Filtered reports whether request parameters narrowed the collection.
func (cl *ChangeList) Filtered() bool {
	clauses, err := cl.parsedFilters()
	return err == nil && len(clauses) > 0
}

// AppliedFilters lists the conditions parsed from the request parameters,
// in key order.
func (cl *ChangeList) AppliedFilters() ([]common.FilterOption, error) {
	clauses, err := cl.parsedFilters()
	if err != nil {
		return nil, common.ErrIncorrectLookupParameters
	}
	filters := make([]common.FilterOption, 0, len(clauses))
	for _, c := range clauses {
		path, _ := common.ParseLookupKey(c.key)
		filters = append(filters, common.FilterOption{
			Column:   strings.Join(path, common.LookupSeparator),
			Operator: c.lookup,
			Value:    c.value,
		})
	}
	return filters, nil
}

// ApplyFilters narrows qs by every non-meta request parameter. Any failure
// yields common.ErrIncorrectLookupParameters; the cause is only logged.
func (cl *ChangeList) ApplyFilters(qs common.SelectQuery) (common.SelectQuery, error) {
	clauses, err := cl.parsedFilters()
	if err != nil {
		logger.Debug("Incorrect lookup parameters for %s: %v", cl.coll.meta.Table, err)
		return nil, common.ErrIncorrectLookupParameters
	}

	alias := qs.TableAlias()
	for _, c := range clauses {
		cond, err := c.path.render(cl.coll.dialect, alias, c.lookup, c.value)
		if err != nil {
			logger.Debug("Incorrect lookup parameter %s for %s: %v", c.key, cl.coll.meta.Table, err)
			return nil, common.ErrIncorrectLookupParameters
		}
		qs = qs.Where(cond.SQL, cond.Args...)
	}
	return qs, nil
}

func (cl *ChangeList) searchTokens() []string {
	query := cl.Query()
	if !cl.opts.SearchPerCharacter {
		return strings.Fields(query)
	}
	tokens := make([]string, 0, len(query))
	for _, r := range query {
		tokens = append(tokens, string(r))
	}
	return tokens
}

// ApplySearch narrows qs by the search text. Per token the search fields are
// OR-combined; tokens are AND-combined. A search field crossing a relation
// makes the result distinct.
func (cl *ChangeList) ApplySearch(qs common.SelectQuery) common.SelectQuery {
	if cl.Query() == "" || len(cl.opts.SearchFields) == 0 {
		return qs
	}

	type searchField struct {
		path   *resolvedPath
		lookup string
	}
	fields := make([]searchField, 0, len(cl.opts.SearchFields))
	relational := false
	for _, raw := range cl.opts.SearchFields {
		name, lookup := searchLookup(raw)
		res, err := resolvePath(cl.coll.meta, strings.Split(name, common.LookupSeparator))
		if err != nil {
			logger.Warn("Skipping search field %s on %s: %v", raw, cl.coll.meta.Table, err)
			continue
		}
		if strings.Contains(name, common.LookupSeparator) {
			relational = true
		}
		fields = append(fields, searchField{path: res, lookup: lookup})
	}
	if len(fields) == 0 {
		return qs
	}

	alias := qs.TableAlias()
	for _, token := range cl.searchTokens() {
		conds := make([]common.Condition, 0, len(fields))
		for _, f := range fields {
			cond, err := f.path.render(cl.coll.dialect, alias, f.lookup, token)
			if err != nil {
				logger.Warn("Search lookup %s failed: %v", f.lookup, err)
				continue
			}
			conds = append(conds, cond)
		}
		if len(conds) == 0 {
			continue
		}
		or := common.Or(conds...)
		qs = qs.Where(or.SQL, or.Args...)
	}

	if relational {
		qs = qs.Distinct()
	}
	return qs
}

// orderColumn resolves a field name to a column of the model itself.
func (cl *ChangeList) orderColumn(name string) (string, bool) {
	res, err := resolvePath(cl.coll.meta, []string{name})
	if err != nil || len(res.hops) > 0 {
		return "", false
	}
	return res.field.Column, true
}

func (cl *ChangeList) orderParamColumn(o string) (string, bool) {
	i, err := strconv.Atoi(o)
	if err != nil {
		return cl.orderColumn(o)
	}
	if i < 0 || i >= len(cl.opts.ListDisplay) {
		return "", false
	}
	name := cl.opts.ListDisplay[i]
	if col, ok := cl.orderColumn(name); ok {
		return col, true
	}
	if c, ok := cl.opts.Columns[name]; ok && c.OrderField != "" {
		return cl.orderColumn(c.OrderField)
	}
	return "", false
}

// GetOrdering resolves the sort column and direction. The model's default
// ordering (or the primary key, descending) applies unless the request
// names a resolvable column with "o"; "ot" overrides the direction.
func (cl *ChangeList) GetOrdering() common.SortOption {
	meta := cl.coll.meta
	col, desc := meta.PrimaryKey, true
	if len(meta.Ordering) > 0 {
		name := meta.Ordering[0]
		if c, ok := cl.orderColumn(strings.TrimPrefix(name, "-")); ok {
			col, desc = c, strings.HasPrefix(name, "-")
		}
	}

	if o := cl.params.Get(OrderVar); o != "" {
		if c, ok := cl.orderParamColumn(o); ok {
			col = c
		}
	}

	switch strings.ToLower(cl.params.Get(OrderTypeVar)) {
	case "asc":
		desc = false
	case "desc", "dsc":
		desc = true
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	return common.SortOption{Column: col, Direction: direction}
}

// ApplyOrderBy sorts qs per GetOrdering, with the primary key as tie breaker
// so pages are stable.
func (cl *ChangeList) ApplyOrderBy(qs common.SelectQuery) common.SelectQuery {
	ordering := cl.GetOrdering()
	if ordering.Column == "" {
		return qs
	}
	alias := qs.TableAlias()
	qs = qs.Order(column(alias, ordering.Column) + " " + ordering.Direction)
	if pk := cl.coll.meta.PrimaryKey; pk != "" && pk != ordering.Column {
		qs = qs.Order(column(alias, pk) + " " + ordering.Direction)
	}
	return qs
}

// GetPageNum returns the 1-indexed page of the 0-indexed "p" parameter.
func (cl *ChangeList) GetPageNum() int {
	p, err := strconv.Atoi(cl.params.Get(PageVar))
	if err != nil || p < 0 {
		return 1
	}
	return p + 1
}

// preloads lists the to-one relations fetched with each page.
func (cl *ChangeList) preloads() []string {
	meta := cl.coll.meta
	if cl.opts.ListSelectRelated {
		return meta.ToOneRelations()
	}
	var names []string
	seen := make(map[string]bool)
	for _, name := range cl.opts.ListDisplay {
		f, ok := meta.RelationField(name)
		if !ok || f.Relation.Kind != reflection.RelationToOne || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		names = append(names, f.Name)
	}
	return names
}

func (cl *ChangeList) unlimited(dest interface{}) (common.SelectQuery, error) {
	qs, err := cl.coll.query(dest)
	if err != nil {
		return nil, err
	}
	if qs, err = cl.ApplyFilters(qs); err != nil {
		return nil, err
	}
	qs = cl.ApplySearch(qs)
	qs = cl.ApplyOrderBy(qs)
	for _, rel := range cl.preloads() {
		qs = qs.Preload(rel)
	}
	return qs, nil
}

// UnlimitedQuery is the filtered, searched and ordered query without paging.
// To-one relations shown in ListDisplay are preloaded. Scan it into a
// *[]*Model.
func (cl *ChangeList) UnlimitedQuery() (common.SelectQuery, error) {
	return cl.unlimited(cl.coll.meta.NewSlice())
}

// Count is the number of filtered and searched rows.
func (cl *ChangeList) Count(ctx context.Context) (int, error) {
	return cl.count.get(func() (int, error) {
		qs, err := cl.coll.query(cl.coll.meta.NewSlice())
		if err != nil {
			return 0, err
		}
		if qs, err = cl.ApplyFilters(qs); err != nil {
			return 0, err
		}
		n, err := cl.ApplySearch(qs).Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", cl.coll.meta.Table, err)
		}
		return n, nil
	})
}

// FullCount is the size of the base collection when no filter applied,
// otherwise Count.
func (cl *ChangeList) FullCount(ctx context.Context) (int, error) {
	return cl.fullCount.get(func() (int, error) {
		clauses, err := cl.parsedFilters()
		if err != nil {
			return 0, common.ErrIncorrectLookupParameters
		}
		if len(clauses) > 0 {
			return cl.Count(ctx)
		}
		qs, err := cl.coll.query(cl.coll.meta.NewSlice())
		if err != nil {
			return 0, err
		}
		n, err := qs.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", cl.coll.meta.Table, err)
		}
		return n, nil
	})
}

// MultiPage reports whether the rows do not fit on one page.
func (cl *ChangeList) MultiPage(ctx context.Context) (bool, error) {
	count, err := cl.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > cl.opts.ListPerPage, nil
}

// CanShowAll reports whether a "show all" request would be honoured.
func (cl *ChangeList) CanShowAll(ctx context.Context) (bool, error) {
	count, err := cl.Count(ctx)
	if err != nil {
		return false, err
	}
	return count <= MaxShowAllAllowed, nil
}

// Paginator returns the paginator over the counted rows.
func (cl *ChangeList) Paginator(ctx context.Context) (Paginator, error) {
	count, err := cl.Count(ctx)
	if err != nil {
		return Paginator{}, err
	}
	return Paginator{Count: count, PerPage: cl.opts.ListPerPage}, nil
}

func (cl *ChangeList) pageWindow(ctx context.Context) (pageWindow, error) {
	return cl.window.get(func() (pageWindow, error) {
		paginator, err := cl.Paginator(ctx)
		if err != nil {
			return pageWindow{}, err
		}
		canShowAll := paginator.Count <= MaxShowAllAllowed
		multiPage := paginator.Count > paginator.PerPage
		if (cl.ShowAll() && canShowAll) || !multiPage {
			return pageWindow{page: 1, all: true}, nil
		}

		page := cl.GetPageNum()
		if err := paginator.ValidatePage(page); err != nil {
			logger.Debug("Page %d of %s: %v, showing page 1", page, cl.coll.meta.Table, err)
			page = 1
		}
		offset, limit := paginator.Bounds(page)
		return pageWindow{page: page, offset: offset, limit: limit}, nil
	})
}

// Page returns the 1-indexed page shown, after out of range pages fell back
// to the first one, and whether every row is shown.
func (cl *ChangeList) Page(ctx context.Context) (page int, all bool, err error) {
	w, err := cl.pageWindow(ctx)
	return w.page, w.all, err
}

// Bounds returns the offset and limit of the page shown; limit is 0 when
// every row is shown.
func (cl *ChangeList) Bounds(ctx context.Context) (offset, limit int, err error) {
	w, err := cl.pageWindow(ctx)
	return w.offset, w.limit, err
}

// Queryset returns the rows of the current page as a []*Model.
func (cl *ChangeList) Queryset(ctx context.Context) (interface{}, error) {
	return cl.result.get(func() (interface{}, error) {
		w, err := cl.pageWindow(ctx)
		if err != nil {
			return nil, err
		}

		dest := cl.coll.meta.NewSlice()
		qs, err := cl.unlimited(dest)
		if err != nil {
			return nil, err
		}
		if !w.all {
			qs = qs.Limit(w.limit).Offset(w.offset)
		}
		if err := qs.Scan(ctx, dest); err != nil {
			return nil, fmt.Errorf("list %s: %w", cl.coll.meta.Table, err)
		}
		return reflect.ValueOf(dest).Elem().Interface(), nil
	})
}
