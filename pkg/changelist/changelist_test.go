package changelist

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/changelist/pkg/common"
)

func newTestChangeList(t *testing.T, db *fakeDB, params url.Values, opts Options) *ChangeList {
	t.Helper()
	coll, err := NewCollection(db, clEmployee{})
	require.NoError(t, err)
	return New(params, coll, opts)
}

func whereSQL(q *fakeQuery) []string {
	sqls := make([]string, 0, len(q.wheres))
	for _, w := range q.wheres {
		sqls = append(sqls, w.SQL)
	}
	return sqls
}

func TestMetaParamsDoNotFilter(t *testing.T) {
	db := &fakeDB{baseCount: 5, filteredCount: 5}
	params := url.Values{
		AllVar:       {""},
		OrderVar:     {"1"},
		OrderTypeVar: {"asc"},
		PageVar:      {"0"},
		ToFieldVar:   {"id"},
		IsPopupVar:   {"1"},
		ErrorFlag:    {"1"},
	}
	cl := newTestChangeList(t, db, params, Options{ListDisplay: []string{"first_name", "last_name"}})

	qs, err := cl.UnlimitedQuery()
	require.NoError(t, err)
	q := qs.(*fakeQuery)
	assert.Empty(t, q.wheres)
	assert.False(t, q.distinct)
	assert.False(t, cl.Filtered())
	assert.True(t, cl.IsPopup())
	assert.Equal(t, "id", cl.ToField())
}

func TestGetPageNum(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
		want   int
	}{
		{"absent", url.Values{}, 1},
		{"first", url.Values{PageVar: {"0"}}, 1},
		{"third", url.Values{PageVar: {"2"}}, 3},
		{"negative", url.Values{PageVar: {"-4"}}, 1},
		{"garbage", url.Values{PageVar: {"two"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := newTestChangeList(t, &fakeDB{}, tt.params, Options{})
			assert.Equal(t, tt.want, cl.GetPageNum())
		})
	}
}

func TestApplySearch(t *testing.T) {
	tests := []struct {
		name     string
		fields   []string
		query    string
		perChar  bool
		driver   string
		want     []common.Condition
		distinct bool
	}{
		{
			name:   "starts with",
			fields: []string{"^first_name"},
			query:  "Bo",
			want: []common.Condition{
				{SQL: "LOWER(t.first_name) LIKE LOWER(?) ESCAPE '!'", Args: []interface{}{"Bo%"}},
			},
		},
		{
			name:   "exact on postgres",
			fields: []string{"=last_name"},
			query:  "Smith",
			driver: "postgres",
			want: []common.Condition{
				{SQL: "t.last_name ILIKE ? ESCAPE '!'", Args: []interface{}{"Smith"}},
			},
		},
		{
			name:   "words are and-combined",
			fields: []string{"first_name", "last_name"},
			query:  "Bo  Smith",
			want: []common.Condition{
				{
					SQL:  "(LOWER(t.first_name) LIKE LOWER(?) ESCAPE '!' OR LOWER(t.last_name) LIKE LOWER(?) ESCAPE '!')",
					Args: []interface{}{"%Bo%", "%Bo%"},
				},
				{
					SQL:  "(LOWER(t.first_name) LIKE LOWER(?) ESCAPE '!' OR LOWER(t.last_name) LIKE LOWER(?) ESCAPE '!')",
					Args: []interface{}{"%Smith%", "%Smith%"},
				},
			},
		},
		{
			name:    "per character",
			fields:  []string{"last_name"},
			query:   "ab",
			perChar: true,
			want: []common.Condition{
				{SQL: "LOWER(t.last_name) LIKE LOWER(?) ESCAPE '!'", Args: []interface{}{"%a%"}},
				{SQL: "LOWER(t.last_name) LIKE LOWER(?) ESCAPE '!'", Args: []interface{}{"%b%"}},
			},
		},
		{
			name:   "wildcards are escaped",
			fields: []string{"^last_name"},
			query:  "50%_off",
			want: []common.Condition{
				{SQL: "LOWER(t.last_name) LIKE LOWER(?) ESCAPE '!'", Args: []interface{}{"50!%!_off%"}},
			},
		},
		{
			name:   "across a relation",
			fields: []string{"department__name"},
			query:  "eng",
			want: []common.Condition{
				{
					SQL:  "t.department_id IN (SELECT __cl1.id FROM departments AS __cl1 WHERE LOWER(__cl1.name) LIKE LOWER(?) ESCAPE '!')",
					Args: []interface{}{"%eng%"},
				},
			},
			distinct: true,
		},
		{
			name:   "unknown fields are skipped",
			fields: []string{"nickname", "^last_name"},
			query:  "Wo",
			want: []common.Condition{
				{SQL: "LOWER(t.last_name) LIKE LOWER(?) ESCAPE '!'", Args: []interface{}{"Wo%"}},
			},
		},
		{
			name:   "empty query",
			fields: []string{"last_name"},
			query:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{driver: tt.driver}
			cl := newTestChangeList(t, db, url.Values{SearchVar: {tt.query}}, Options{
				SearchFields:       tt.fields,
				SearchPerCharacter: tt.perChar,
			})
			q := cl.ApplySearch(db.NewSelect()).(*fakeQuery)
			if len(tt.want) == 0 {
				assert.Empty(t, q.wheres)
			} else {
				assert.Equal(t, tt.want, q.wheres)
			}
			assert.Equal(t, tt.distinct, q.distinct)
		})
	}
}

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
		want   []common.Condition
	}{
		{
			name:   "exact",
			params: url.Values{"status": {"active"}},
			want:   []common.Condition{{SQL: "t.status = ?", Args: []interface{}{"active"}}},
		},
		{
			name:   "typed value",
			params: url.Values{"salary__gte": {"1000"}},
			want:   []common.Condition{{SQL: "t.salary >= ?", Args: []interface{}{float64(1000)}}},
		},
		{
			name:   "bool",
			params: url.Values{"active__exact": {"1"}},
			want:   []common.Condition{{SQL: "t.active = ?", Args: []interface{}{true}}},
		},
		{
			name:   "in",
			params: url.Values{"id__in": {"1,2,3"}},
			want:   []common.Condition{{SQL: "t.id IN (?, ?, ?)", Args: []interface{}{int64(1), int64(2), int64(3)}}},
		},
		{
			name:   "isnull",
			params: url.Values{"department__isnull": {"True"}},
			want:   []common.Condition{{SQL: "t.department_id IS NULL"}},
		},
		{
			name:   "related primary key folds into the foreign key",
			params: url.Values{"department__id__exact": {"3"}},
			want:   []common.Condition{{SQL: "t.department_id = ?", Args: []interface{}{int64(3)}}},
		},
		{
			name:   "related column",
			params: url.Values{"department__code": {"ENG"}},
			want: []common.Condition{{
				SQL:  "t.department_id IN (SELECT __cl1.id FROM departments AS __cl1 WHERE __cl1.code = ?)",
				Args: []interface{}{"ENG"},
			}},
		},
		{
			name:   "sorted keys and last repeated value",
			params: url.Values{"status": {"active", "left"}, "last_name__istartswith": {"Wo"}},
			want: []common.Condition{
				{SQL: "LOWER(t.last_name) LIKE LOWER(?) ESCAPE '!'", Args: []interface{}{"Wo%"}},
				{SQL: "t.status = ?", Args: []interface{}{"left"}},
			},
		},
		{
			name:   "null through a relation column",
			params: url.Values{"department__code__isnull": {"True"}},
			want: []common.Condition{{
				SQL: "(t.department_id IS NULL OR NOT (t.department_id IN (SELECT __cl1.id FROM departments AS __cl1 " +
					"WHERE __cl1.id IS NOT NULL AND __cl1.code IS NOT NULL)))",
			}},
		},
		{
			name:   "not null through a relation column",
			params: url.Values{"department__code__isnull": {"False"}},
			want: []common.Condition{{
				SQL: "t.department_id IN (SELECT __cl1.id FROM departments AS __cl1 WHERE __cl1.id IS NOT NULL AND __cl1.code IS NOT NULL)",
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{}
			cl := newTestChangeList(t, db, tt.params, Options{})
			qs, err := cl.ApplyFilters(db.NewSelect())
			require.NoError(t, err)
			assert.Equal(t, tt.want, qs.(*fakeQuery).wheres)
			assert.True(t, cl.Filtered())
		})
	}
}

func TestApplyFiltersIncorrectLookup(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
	}{
		{"unknown field", url.Values{"nickname": {"Bo"}}},
		{"unknown relation field", url.Values{"department__budget": {"1"}}},
		{"bad number", url.Values{"salary": {"lots"}}},
		{"bad bool", url.Values{"department__isnull": {"maybe"}}},
		{"short range", url.Values{"salary__range": {"1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{}
			cl := newTestChangeList(t, db, tt.params, Options{})
			_, err := cl.ApplyFilters(db.NewSelect())
			assert.ErrorIs(t, err, common.ErrIncorrectLookupParameters)

			_, err = cl.Queryset(context.Background())
			assert.True(t, common.IsIncorrectLookup(err))
			_, err = cl.FullCount(context.Background())
			assert.ErrorIs(t, err, common.ErrIncorrectLookupParameters)
			assert.False(t, cl.Filtered())
		})
	}
}

func TestGetOrdering(t *testing.T) {
	display := []string{"first_name", "last_name", "full_name", "department"}
	columns := map[string]Column{"full_name": {OrderField: "last_name"}}
	tests := []struct {
		name   string
		params url.Values
		want   common.SortOption
	}{
		{"model default", url.Values{}, common.SortOption{Column: "last_name", Direction: "ASC"}},
		{"display index", url.Values{OrderVar: {"0"}}, common.SortOption{Column: "first_name", Direction: "ASC"}},
		{"descending", url.Values{OrderVar: {"0"}, OrderTypeVar: {"desc"}}, common.SortOption{Column: "first_name", Direction: "DESC"}},
		{"dsc spelling", url.Values{OrderTypeVar: {"dsc"}}, common.SortOption{Column: "last_name", Direction: "DESC"}},
		{"custom column", url.Values{OrderVar: {"2"}}, common.SortOption{Column: "last_name", Direction: "ASC"}},
		{"field name", url.Values{OrderVar: {"salary"}}, common.SortOption{Column: "salary", Direction: "ASC"}},
		{"relation sorts by its foreign key", url.Values{OrderVar: {"3"}}, common.SortOption{Column: "department_id", Direction: "ASC"}},
		{"out of range", url.Values{OrderVar: {"9"}}, common.SortOption{Column: "last_name", Direction: "ASC"}},
		{"unknown name", url.Values{OrderVar: {"nickname"}}, common.SortOption{Column: "last_name", Direction: "ASC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := newTestChangeList(t, &fakeDB{}, tt.params, Options{ListDisplay: display, Columns: columns})
			assert.Equal(t, tt.want, cl.GetOrdering())
		})
	}
}

func TestGetOrderingPrimaryKeyDefault(t *testing.T) {
	coll, err := NewCollection(&fakeDB{}, &clDepartment{})
	require.NoError(t, err)
	cl := New(url.Values{}, coll, Options{})
	assert.Equal(t, common.SortOption{Column: "id", Direction: "DESC"}, cl.GetOrdering())

	db := &fakeDB{}
	q := cl.ApplyOrderBy(db.NewSelect()).(*fakeQuery)
	assert.Equal(t, []string{"t.id DESC"}, q.orders)
}

func TestApplyOrderByTieBreaker(t *testing.T) {
	db := &fakeDB{}
	cl := newTestChangeList(t, db, url.Values{OrderTypeVar: {"desc"}}, Options{})
	q := cl.ApplyOrderBy(db.NewSelect()).(*fakeQuery)
	assert.Equal(t, []string{"t.last_name DESC", "t.id DESC"}, q.orders)
}

func TestFullCount(t *testing.T) {
	ctx := context.Background()

	t.Run("unfiltered counts the base collection", func(t *testing.T) {
		db := &fakeDB{baseCount: 10, filteredCount: 3}
		cl := newTestChangeList(t, db, url.Values{SearchVar: {"wood"}, OrderVar: {"1"}}, Options{
			SearchFields: []string{"last_name"},
		})
		full, err := cl.FullCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, full)

		count, err := cl.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("filtered counts the filtered collection", func(t *testing.T) {
		db := &fakeDB{baseCount: 10, filteredCount: 3}
		cl := newTestChangeList(t, db, url.Values{"status": {"left"}}, Options{})
		full, err := cl.FullCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, full)

		count, err := cl.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, full, count)
	})

	t.Run("counts are cached", func(t *testing.T) {
		db := &fakeDB{baseCount: 10}
		cl := newTestChangeList(t, db, url.Values{}, Options{})
		for i := 0; i < 3; i++ {
			_, err := cl.Count(ctx)
			require.NoError(t, err)
			_, err = cl.FullCount(ctx)
			require.NoError(t, err)
		}
		assert.Len(t, db.countQueries(), 2)
	})
}

func TestQuerysetPaging(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		params     url.Values
		perPage    int
		wantPage   int
		wantAll    bool
		wantLimit  int
		wantOffset int
	}{
		{"fits on one page", 40, url.Values{}, 0, 1, true, -1, -1},
		{"first page", 250, url.Values{}, 0, 1, false, 100, 0},
		{"second page", 250, url.Values{PageVar: {"1"}}, 0, 2, false, 100, 100},
		{"custom page size", 250, url.Values{PageVar: {"4"}}, 50, 5, false, 50, 200},
		{"page out of range", 250, url.Values{PageVar: {"9"}}, 0, 1, false, 100, 0},
		{"show all", 150, url.Values{AllVar: {""}}, 0, 1, true, -1, -1},
		{"show all over the cap", 250, url.Values{AllVar: {""}}, 0, 1, false, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := &fakeDB{baseCount: tt.count, filteredCount: tt.count}
			cl := newTestChangeList(t, db, tt.params, Options{ListPerPage: tt.perPage})

			rows, err := cl.Queryset(ctx)
			require.NoError(t, err)
			assert.IsType(t, []*clEmployee(nil), rows)

			page, all, err := cl.Page(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantAll, all)

			q := db.lastScan()
			require.NotNil(t, q)
			assert.Equal(t, tt.wantLimit, q.limit)
			assert.Equal(t, tt.wantOffset, q.offset)
			assert.Equal(t, []string{"t.last_name ASC", "t.id ASC"}, q.orders)
		})
	}
}

func TestMultiPageAndCanShowAll(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		count      int
		multiPage  bool
		canShowAll bool
	}{
		{100, false, true},
		{101, true, true},
		{200, true, true},
		{201, true, false},
	}
	for _, tt := range tests {
		db := &fakeDB{baseCount: tt.count}
		cl := newTestChangeList(t, db, url.Values{}, Options{})
		multi, err := cl.MultiPage(ctx)
		require.NoError(t, err)
		assert.Equal(t, tt.multiPage, multi, "count %d", tt.count)
		showAll, err := cl.CanShowAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, tt.canShowAll, showAll, "count %d", tt.count)
	}
}

func TestPreloads(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"none displayed", Options{ListDisplay: []string{"last_name"}}, nil},
		{"displayed relation", Options{ListDisplay: []string{"last_name", "department", "Department"}}, []string{"Department"}},
		{"select related", Options{ListSelectRelated: true}, []string{"Department"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{baseCount: 2}
			cl := newTestChangeList(t, db, url.Values{}, tt.opts)
			_, err := cl.Queryset(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, db.lastScan().preloads)
		})
	}
}

func TestCollectionScope(t *testing.T) {
	db := &fakeDB{baseCount: 4}
	coll, err := NewCollection(db, clEmployee{})
	require.NoError(t, err)
	scoped := coll.Filter("active", true).Filter("department__code__in", []interface{}{"ENG", "OPS"})

	cl := New(url.Values{"status": {"active"}}, scoped, Options{})
	qs, err := cl.UnlimitedQuery()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"t.active = ?",
		"t.department_id IN (SELECT __cl1.id FROM departments AS __cl1 WHERE __cl1.code IN (?, ?))",
		"t.status = ?",
	}, whereSQL(qs.(*fakeQuery)))

	base, err := coll.query(coll.Meta().NewSlice())
	require.NoError(t, err)
	assert.Empty(t, base.(*fakeQuery).wheres)
	assert.Equal(t, common.DialectSQLite, coll.Dialect())
}

func TestCollectionScopeError(t *testing.T) {
	coll, err := NewCollection(&fakeDB{}, clEmployee{})
	require.NoError(t, err)
	cl := New(url.Values{}, coll.Filter("nickname", "Bo"), Options{})
	_, err = cl.Count(context.Background())
	assert.Error(t, err)
}

func TestParams(t *testing.T) {
	params := url.Values{PageVar: {"3"}, ErrorFlag: {"1"}, "status": {"active"}, OrderVar: {"1"}}
	cl := newTestChangeList(t, &fakeDB{}, params, Options{})
	assert.Equal(t, url.Values{"status": {"active"}, OrderVar: {"1"}}, cl.Params())

	params.Set("status", "left")
	assert.Equal(t, "active", cl.Params().Get("status"))
	assert.Equal(t, DefaultListPerPage, cl.Options().ListPerPage)
}

func TestAppliedFilters(t *testing.T) {
	cl := newTestChangeList(t, &fakeDB{}, url.Values{
		"status__in":       {"active,left"},
		"salary__gte":      {"4000"},
		"department__code": {"ENG"},
		"q":                {"wood"},
	}, Options{})

	filters, err := cl.AppliedFilters()
	require.NoError(t, err)
	assert.Equal(t, []common.FilterOption{
		{Column: "department__code", Operator: "exact", Value: "ENG"},
		{Column: "salary", Operator: "gte", Value: float64(4000)},
		{Column: "status", Operator: "in", Value: []interface{}{"active", "left"}},
	}, filters)

	cl = newTestChangeList(t, &fakeDB{}, url.Values{"nickname": {"bo"}}, Options{})
	_, err = cl.AppliedFilters()
	assert.ErrorIs(t, err, common.ErrIncorrectLookupParameters)
}
