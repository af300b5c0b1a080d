package common

import (
	"fmt"
	"reflect"
	"strings"
)

// ColumnValidator checks the names used by change list options against a
// model. Plain names must be a column, a relation or an added display name.
// Lookup paths ("department__name") must start with a relation.
type ColumnValidator struct {
	validColumns map[string]bool
	relations    map[string]bool
}

// NewColumnValidator collects the tagged column names of model
func NewColumnValidator(model interface{}) *ColumnValidator {
	validator := &ColumnValidator{
		validColumns: make(map[string]bool),
		relations:    make(map[string]bool),
	}
	validator.buildValidColumns(model)
	return validator
}

// AddColumns accepts more plain names, such as Go field names or declared
// display columns.
func (v *ColumnValidator) AddColumns(names ...string) *ColumnValidator {
	for _, name := range names {
		if name != "" {
			v.validColumns[strings.ToLower(name)] = true
		}
	}
	return v
}

// AddRelations accepts names as relations, alone or as the first hop of a
// lookup path.
func (v *ColumnValidator) AddRelations(names ...string) *ColumnValidator {
	for _, name := range names {
		if name != "" {
			v.relations[strings.ToLower(name)] = true
		}
	}
	return v
}

func (v *ColumnValidator) buildValidColumns(model interface{}) {
	modelType := reflect.TypeOf(model)

	// Unwrap pointers, slices, and arrays to get to the base struct type
	for modelType != nil && (modelType.Kind() == reflect.Ptr || modelType.Kind() == reflect.Slice || modelType.Kind() == reflect.Array) {
		modelType = modelType.Elem()
	}
	if modelType == nil || modelType.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		if !field.IsExported() {
			continue
		}
		if columnName := columnNameFromTags(field); columnName != "" && columnName != "-" {
			v.validColumns[strings.ToLower(columnName)] = true
		}
	}
}

// columnNameFromTags reads the column of a field from its bun, gorm or json
// tag, in that order.
func columnNameFromTags(field reflect.StructField) string {
	bunTag := field.Tag.Get("bun")
	if bunTag != "" && bunTag != "-" {
		columnName := strings.TrimSpace(strings.Split(bunTag, ",")[0])
		// relation tags ("rel:belongs-to,...") carry no column
		if columnName != "" && columnName != "-" && !strings.Contains(columnName, ":") {
			return columnName
		}
	}

	for _, part := range strings.Split(field.Tag.Get("gorm"), ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "column:") {
			return strings.TrimPrefix(part, "column:")
		}
	}

	jsonTag := field.Tag.Get("json")
	if jsonTag != "" && jsonTag != "-" {
		return strings.Split(jsonTag, ",")[0]
	}
	return strings.ToLower(field.Name)
}

// ValidateColumn validates one option entry. Search sigils (^, =, @) are
// ignored.
func (v *ColumnValidator) ValidateColumn(column string) error {
	if column == "" {
		return nil
	}

	name := strings.ToLower(strings.TrimLeft(column, "^=@"))
	if idx := strings.Index(name, LookupSeparator); idx >= 0 {
		if !v.relations[name[:idx]] {
			return fmt.Errorf("invalid column '%s': '%s' is not a relation of the model", column, name[:idx])
		}
		return nil
	}
	if !v.validColumns[name] && !v.relations[name] {
		return fmt.Errorf("invalid column '%s': column does not exist in model", column)
	}
	return nil
}

// IsValidColumn checks if a column is valid
func (v *ColumnValidator) IsValidColumn(column string) bool {
	return v.ValidateColumn(column) == nil
}

// ValidateColumns validates multiple column names
// Returns error with details about all invalid columns
func (v *ColumnValidator) ValidateColumns(columns []string) error {
	var invalidColumns []string

	for _, column := range columns {
		if !v.IsValidColumn(column) {
			invalidColumns = append(invalidColumns, column)
		}
	}

	if len(invalidColumns) > 0 {
		return fmt.Errorf("invalid columns: %s", strings.Join(invalidColumns, ", "))
	}

	return nil
}
