package reflection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type gormAuthor struct {
	ID   int    `gorm:"column:author_id;primaryKey" json:"id"`
	Name string `json:"name"`
}

type gormAuthorJSONKey struct {
	ID   int    `gorm:"primaryKey" json:"author_id"`
	Name string `json:"name"`
}

type bunAuthor struct {
	ID   int    `bun:"author_id,pk" json:"id"`
	Name string `json:"name"`
}

type bunAuthorJSONKey struct {
	ID   int    `bun:",pk" json:"author_id"`
	Name string `json:"name"`
}

type namedKeyAuthor struct {
	Code string `json:"code"`
}

func (namedKeyAuthor) GetIDName() string {
	return "code"
}

type AuditFields struct {
	ID        int    `bun:"rid,pk" json:"rid"`
	CreatedBy string `bun:"created_by" json:"created_by"`
}

type auditedBook struct {
	AuditFields
	Title string `bun:"title" json:"title"`
	Pages int    `json:"page_count"`
}

type plainBook struct {
	ID    int
	Title string
}

func TestGetPrimaryKeyName(t *testing.T) {
	tests := []struct {
		name     string
		model    any
		expected string
	}{
		{"gorm column tag", gormAuthor{}, "author_id"},
		{"gorm pointer", &gormAuthor{}, "author_id"},
		{"gorm json fallback", gormAuthorJSONKey{}, "author_id"},
		{"bun column tag", bunAuthor{}, "author_id"},
		{"bun json fallback", bunAuthorJSONKey{}, "author_id"},
		{"GetIDName provider", namedKeyAuthor{}, "code"},
		{"embedded bun key", auditedBook{}, "rid"},
		{"untagged model", plainBook{}, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPrimaryKeyName(tt.model))
		})
	}
}

func TestGetPrimaryKeyValue(t *testing.T) {
	tests := []struct {
		name     string
		model    any
		expected any
	}{
		{"gorm struct", gormAuthor{ID: 7}, 7},
		{"bun pointer", &bunAuthor{ID: 9}, 9},
		{"embedded key", &auditedBook{AuditFields: AuditFields{ID: 11}}, 11},
		{"ID field fallback", plainBook{ID: 3}, 3},
		{"nil pointer", (*gormAuthor)(nil), nil},
		{"not a struct", "x", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPrimaryKeyValue(tt.model))
		})
	}
}

func TestExtractColumnFromTags(t *testing.T) {
	assert.Equal(t, "id", ExtractColumnFromGormTag("column:id;primaryKey"))
	assert.Equal(t, "", ExtractColumnFromGormTag("primaryKey;type:string"))
	assert.Equal(t, "id", ExtractColumnFromBunTag("id,pk"))
	assert.Equal(t, "", ExtractColumnFromBunTag(",pk"))
	assert.Equal(t, "", ExtractColumnFromBunTag("rel:belongs-to,join:dept_id=id"))
	assert.Equal(t, "", ExtractColumnFromBunTag("table:books,alias:b"))
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ID":           "id",
		"DepartmentID": "department_id",
		"HireDate":     "hire_date",
		"HTTPStatus":   "http_status",
		"Name":         "name",
	}
	for in, want := range tests {
		assert.Equal(t, want, toSnakeCase(in), in)
	}
}
