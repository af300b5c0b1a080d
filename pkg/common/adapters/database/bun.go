package database

import (
	"context"
	"reflect"

	"github.com/uptrace/bun"

	"github.com/bitechdev/changelist/pkg/common"
)

// BunAdapter adapts Bun to work with our Database interface
type BunAdapter struct {
	db *bun.DB
}

// NewBunAdapter creates a new Bun adapter
func NewBunAdapter(db *bun.DB) *BunAdapter {
	return &BunAdapter{db: db}
}

func (b *BunAdapter) NewSelect() common.SelectQuery {
	return &BunSelectQuery{db: b.db, query: b.db.NewSelect()}
}

// DriverName reports bun's dialect name ("pg", "sqlite", "mysql", "mssql").
func (b *BunAdapter) DriverName() string {
	return b.db.Dialect().Name().String()
}

// BunSelectQuery implements SelectQuery for Bun
type BunSelectQuery struct {
	db    *bun.DB
	query *bun.SelectQuery
	model interface{}
	alias string
}

func (b *BunSelectQuery) Model(model interface{}) common.SelectQuery {
	b.query = b.query.Model(model)
	b.model = model
	if typ := structOf(reflect.TypeOf(model)); typ != nil {
		b.alias = b.db.Table(typ).Alias
	}
	return b
}

// Table only applies to model-less queries: bun already selects FROM the
// model's table and a second table would be cross joined.
func (b *BunSelectQuery) Table(table string) common.SelectQuery {
	if b.model != nil {
		return b
	}
	b.query = b.query.Table(table)
	_, b.alias = parseTableName(table)
	return b
}

func (b *BunSelectQuery) Column(columns ...string) common.SelectQuery {
	b.query = b.query.Column(columns...)
	return b
}

func (b *BunSelectQuery) Where(query string, args ...interface{}) common.SelectQuery {
	b.query = b.query.Where(query, args...)
	return b
}

func (b *BunSelectQuery) Preload(relation string) common.SelectQuery {
	b.query = b.query.Relation(relation)
	return b
}

func (b *BunSelectQuery) Distinct() common.SelectQuery {
	b.query = b.query.Distinct()
	return b
}

func (b *BunSelectQuery) Order(order string) common.SelectQuery {
	b.query = b.query.OrderExpr(order)
	return b
}

func (b *BunSelectQuery) Limit(n int) common.SelectQuery {
	b.query = b.query.Limit(n)
	return b
}

func (b *BunSelectQuery) Offset(n int) common.SelectQuery {
	b.query = b.query.Offset(n)
	return b
}

// TableAlias is the alias bun gives the model table ("employee" for employees).
func (b *BunSelectQuery) TableAlias() string {
	return b.alias
}

// Scan loads rows into dest. A dest of the model's own type is filled
// through the model so relation joins are scanned too.
func (b *BunSelectQuery) Scan(ctx context.Context, dest interface{}) error {
	if b.model == nil || reflect.TypeOf(dest) != reflect.TypeOf(b.model) || reflect.TypeOf(dest).Kind() != reflect.Ptr {
		return b.query.Scan(ctx, dest)
	}
	if err := b.query.Scan(ctx); err != nil {
		return err
	}
	reflect.ValueOf(dest).Elem().Set(reflect.ValueOf(b.model).Elem())
	return nil
}

func (b *BunSelectQuery) Count(ctx context.Context) (int, error) {
	return b.query.Count(ctx)
}
