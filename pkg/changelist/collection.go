package changelist

import (
	"context"
	"fmt"
	"reflect"

	"github.com/bitechdev/changelist/pkg/common"
	"github.com/bitechdev/changelist/pkg/reflection"
)

// Collection is the base set of rows a change list works over: every row of
// one model, optionally narrowed by scope filters.
type Collection struct {
	db      common.Database
	meta    *reflection.ModelMeta
	dialect common.Dialect
	scope   []scopeFilter
}

type scopeFilter struct {
	key   string
	value interface{}
}

// NewCollection builds the collection of all rows of model.
func NewCollection(db common.Database, model interface{}) (*Collection, error) {
	meta, err := reflection.GetModelMeta(model)
	if err != nil {
		return nil, fmt.Errorf("collection: %w", err)
	}
	return &Collection{
		db:      db,
		meta:    meta,
		dialect: common.DialectFromDriver(db.DriverName()),
	}, nil
}

// Filter returns a copy of the collection narrowed by a lookup key such as
// "status" or "department__code__in". The value is used as is: "in" and
// "range" take a []interface{}, "isnull" a bool.
func (c *Collection) Filter(key string, value interface{}) *Collection {
	scoped := *c
	scoped.scope = append(append([]scopeFilter{}, c.scope...), scopeFilter{key: key, value: value})
	return &scoped
}

// Meta returns the reflected model metadata.
func (c *Collection) Meta() *reflection.ModelMeta {
	return c.meta
}

// Dialect is the SQL dialect of the underlying database.
func (c *Collection) Dialect() common.Dialect {
	return c.dialect
}

// Database returns the underlying database.
func (c *Collection) Database() common.Database {
	return c.db
}

// Get loads the row whose primary key is raw, the unquoted key of a result
// URL. To-one relations are preloaded. A key that does not convert to the
// primary key type is an incorrect lookup; a scoped out row is not found.
func (c *Collection) Get(ctx context.Context, raw string) (interface{}, error) {
	pk, ok := c.meta.Field(c.meta.PrimaryKey)
	if !ok {
		return nil, fmt.Errorf("%s has no primary key", c.meta.Type.Name())
	}
	value, err := common.ConvertValue(pk.Type, raw)
	if err != nil {
		return nil, common.ErrIncorrectLookupParameters
	}

	dest := c.meta.NewSlice()
	qs, err := c.Filter(pk.Column, value).query(dest)
	if err != nil {
		return nil, err
	}
	for _, rel := range c.meta.ToOneRelations() {
		qs = qs.Preload(rel)
	}
	if err := qs.Limit(1).Scan(ctx, dest); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.meta.Table, raw, err)
	}
	rows := reflect.ValueOf(dest).Elem()
	if rows.Len() == 0 {
		return nil, fmt.Errorf("%s %s: %w", c.meta.Table, raw, common.ErrNotFound)
	}
	return rows.Index(0).Interface(), nil
}

// query starts a fresh query over the model, scoped, selecting into dest.
func (c *Collection) query(dest interface{}) (common.SelectQuery, error) {
	qs := c.db.NewSelect().Model(dest)
	for _, f := range c.scope {
		path, lookup := common.ParseLookupKey(f.key)
		cond, err := renderLookup(c, qs.TableAlias(), path, lookup, f.value)
		if err != nil {
			return nil, fmt.Errorf("collection scope %s: %w", f.key, err)
		}
		qs = qs.Where(cond.SQL, cond.Args...)
	}
	return qs, nil
}

// column qualifies a column with a table alias.
func column(alias, name string) string {
	if alias == "" {
		return name
	}
	return alias + "." + name
}

// hop is one relation traversal of a lookup path.
type hop struct {
	table  string
	local  string
	remote string
}

// resolvedPath is a lookup path resolved against model metadata.
type resolvedPath struct {
	hops  []hop
	field *reflection.FieldMeta
}

// resolvePath walks a lookup path such as ["department", "name"] through
// relation fields down to a stored column. A path ending on a relation
// targets the related primary key. A final belongs-to hop onto the related
// primary key is folded into the local foreign key column.
func resolvePath(meta *reflection.ModelMeta, path []string) (*resolvedPath, error) {
	if len(path) == 0 || path[0] == "" {
		return nil, fmt.Errorf("empty lookup path")
	}
	res := &resolvedPath{}
	current := meta
	var lastRel *reflection.RelationMeta
	var lastOwner *reflection.ModelMeta

	for i, name := range path {
		last := i == len(path)-1
		if last {
			if f, ok := current.Field(name); ok && !f.IsRelation() {
				res.field = f
				break
			}
		}

		rel, ok := current.RelationField(name)
		if !ok {
			return nil, fmt.Errorf("%s has no field %q", current.Type.Name(), name)
		}
		local, remote, err := rel.Relation.Columns()
		if err != nil {
			return nil, err
		}
		next, err := reflection.GetModelMeta(rel.Relation.Model)
		if err != nil {
			return nil, err
		}
		res.hops = append(res.hops, hop{table: next.Table, local: local, remote: remote})
		lastRel, lastOwner = rel.Relation, current
		current = next

		if last {
			pk, ok := next.Field(next.PrimaryKey)
			if !ok {
				return nil, fmt.Errorf("%s has no primary key", next.Type.Name())
			}
			res.field = pk
		}
	}

	if n := len(res.hops); n > 0 && lastRel.BelongsTo() && res.hops[n-1].remote == res.field.Column {
		if f, ok := lastOwner.Field(res.hops[n-1].local); ok {
			res.hops = res.hops[:n-1]
			res.field = f
		}
	}
	return res, nil
}

// render turns a resolved path plus an already converted value into a
// predicate. Relation hops become nested IN sub-selects so to-many
// traversals never duplicate outer rows.
func (p *resolvedPath) render(d common.Dialect, alias, lookup string, value interface{}) (common.Condition, error) {
	if len(p.hops) == 0 {
		return common.RenderCondition(d, column(alias, p.field.Column), lookup, value)
	}
	if lookup == common.LookupIsNull {
		return p.renderIsNull(d, alias, value)
	}
	return p.nest(d, alias, lookup, value, false)
}

// renderIsNull matches rows reaching no related row with a non-null value
// (isnull=True), or at least one such row (isnull=False). Rows without any
// related row count as null.
func (p *resolvedPath) renderIsNull(d common.Dialect, alias string, value interface{}) (common.Condition, error) {
	isNull, ok := value.(bool)
	if !ok {
		return common.Condition{}, fmt.Errorf("isnull lookup expects a bool, got %T", value)
	}
	exists, err := p.nest(d, alias, common.LookupIsNull, false, true)
	if err != nil || !isNull {
		return exists, err
	}
	local := column(alias, p.hops[0].local)
	return common.Condition{
		SQL:  fmt.Sprintf("(%s IS NULL OR NOT (%s))", local, exists.SQL),
		Args: exists.Args,
	}, nil
}

// nest renders lookup on the final column and wraps it in one sub-select
// per hop. notNull excludes null join columns from every sub-select so the
// result can be negated.
func (p *resolvedPath) nest(d common.Dialect, alias, lookup string, value interface{}, notNull bool) (common.Condition, error) {
	innerAlias := fmt.Sprintf("__cl%d", len(p.hops))
	cond, err := common.RenderCondition(d, column(innerAlias, p.field.Column), lookup, value)
	if err != nil {
		return common.Condition{}, err
	}
	for i := len(p.hops) - 1; i >= 0; i-- {
		h := p.hops[i]
		subAlias := fmt.Sprintf("__cl%d", i+1)
		outer := alias
		if i > 0 {
			outer = fmt.Sprintf("__cl%d", i)
		}
		where := cond.SQL
		if notNull {
			where = fmt.Sprintf("%s IS NOT NULL AND %s", column(subAlias, h.remote), where)
		}
		cond = common.Condition{
			SQL: fmt.Sprintf("%s IN (SELECT %s FROM %s AS %s WHERE %s)",
				column(outer, h.local), column(subAlias, h.remote), h.table, subAlias, where),
			Args: cond.Args,
		}
	}
	return cond, nil
}

// renderLookup resolves and renders one lookup with a typed value.
func renderLookup(c *Collection, alias string, path []string, lookup string, value interface{}) (common.Condition, error) {
	res, err := resolvePath(c.meta, path)
	if err != nil {
		return common.Condition{}, err
	}
	return res.render(c.dialect, alias, lookup, value)
}
