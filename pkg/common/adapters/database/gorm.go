package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/bitechdev/changelist/pkg/common"
)

// GormAdapter adapts GORM to work with our Database interface
type GormAdapter struct {
	db *gorm.DB
}

// NewGormAdapter creates a new GORM adapter
func NewGormAdapter(db *gorm.DB) *GormAdapter {
	return &GormAdapter{db: db}
}

// NewSelect starts from a clean session so conditions never leak between queries.
func (g *GormAdapter) NewSelect() common.SelectQuery {
	return &GormSelectQuery{db: g.db.Session(&gorm.Session{NewDB: true})}
}

func (g *GormAdapter) DriverName() string {
	return g.db.Dialector.Name()
}

// GormSelectQuery implements SelectQuery for GORM
type GormSelectQuery struct {
	db    *gorm.DB
	alias string
}

func (g *GormSelectQuery) Model(model interface{}) common.SelectQuery {
	g.db = g.db.Model(model)
	if g.alias == "" {
		stmt := &gorm.Statement{DB: g.db}
		if err := stmt.Parse(model); err == nil && stmt.Schema != nil {
			_, g.alias = parseTableName(stmt.Schema.Table)
		}
	}
	return g
}

func (g *GormSelectQuery) Table(table string) common.SelectQuery {
	g.db = g.db.Table(table)
	_, g.alias = parseTableName(table)
	return g
}

func (g *GormSelectQuery) Column(columns ...string) common.SelectQuery {
	g.db = g.db.Select(columns)
	return g
}

func (g *GormSelectQuery) Where(query string, args ...interface{}) common.SelectQuery {
	g.db = g.db.Where(query, args...)
	return g
}

func (g *GormSelectQuery) Preload(relation string) common.SelectQuery {
	g.db = g.db.Preload(relation)
	return g
}

func (g *GormSelectQuery) Distinct() common.SelectQuery {
	g.db = g.db.Distinct()
	return g
}

func (g *GormSelectQuery) Order(order string) common.SelectQuery {
	g.db = g.db.Order(order)
	return g
}

func (g *GormSelectQuery) Limit(n int) common.SelectQuery {
	g.db = g.db.Limit(n)
	return g
}

func (g *GormSelectQuery) Offset(n int) common.SelectQuery {
	g.db = g.db.Offset(n)
	return g
}

// TableAlias is the bare table name GORM selects from.
func (g *GormSelectQuery) TableAlias() string {
	return g.alias
}

func (g *GormSelectQuery) Scan(ctx context.Context, dest interface{}) error {
	return g.db.WithContext(ctx).Find(dest).Error
}

func (g *GormSelectQuery) Count(ctx context.Context) (int, error) {
	var count int64
	err := g.db.WithContext(ctx).Count(&count).Error
	return int(count), err
}
