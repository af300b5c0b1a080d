package common

import (
	"context"
	"net/http"
	"net/url"
)

// Database is the subset of an ORM the change list needs: it only reads.
type Database interface {
	NewSelect() SelectQuery
	// DriverName reports the SQL dialect ("postgres", "pg", "sqlite", "mysql", ...).
	DriverName() string
}

// SelectQuery is a lazy, chainable read query. Implementations may mutate
// and return the receiver, so callers build a fresh query per execution.
type SelectQuery interface {
	Model(model interface{}) SelectQuery
	Table(table string) SelectQuery
	Column(columns ...string) SelectQuery
	Where(query string, args ...interface{}) SelectQuery
	Preload(relation string) SelectQuery
	Distinct() SelectQuery
	Order(order string) SelectQuery
	Limit(n int) SelectQuery
	Offset(n int) SelectQuery

	// TableAlias is the name outer column references must be qualified with.
	TableAlias() string

	Scan(ctx context.Context, dest interface{}) error
	Count(ctx context.Context) (int, error)
}

// Request is a router-agnostic view of an incoming HTTP request.
type Request interface {
	Method() string
	Path() string
	Header(key string) string
	QueryParams() url.Values
	PathParam(key string) string
	UnderlyingRequest() *http.Request
}

// ResponseWriter is a router-agnostic response writer.
type ResponseWriter interface {
	SetHeader(key, value string)
	WriteHeader(statusCode int)
	Write(data []byte) (int, error)
	WriteJSON(data interface{}) error
}

// TableNameProvider is implemented by models that name their own table.
type TableNameProvider interface {
	TableName() string
}

// SchemaProvider is implemented by models living outside the default schema.
type SchemaProvider interface {
	SchemaName() string
}

// OrderingProvider declares a model's default ordering, e.g. []string{"-hire_date", "last_name"}.
type OrderingProvider interface {
	Ordering() []string
}
