package reflection

import (
	"reflect"
	"strings"

	"github.com/bitechdev/changelist/pkg/modelregistry"
)

type PrimaryKeyNameProvider interface {
	GetIDName() string
}

// GetPrimaryKeyName extracts the primary key column name from a model.
// A model name is resolved through the default registry first. Models
// implementing PrimaryKeyNameProvider win, then bun ",pk" tags, then
// gorm "primaryKey" tags.
func GetPrimaryKeyName(model any) string {
	if reflect.TypeOf(model) == nil {
		return ""
	}
	if name, ok := model.(string); ok {
		if m, err := modelregistry.GetModelByName(name); err == nil {
			model = m
		}
	}

	if provider, ok := model.(PrimaryKeyNameProvider); ok {
		return provider.GetIDName()
	}

	typ := structType(reflect.TypeOf(model))
	if typ == nil {
		return ""
	}
	if pkName := findPrimaryKeyNameFromType(typ, "bun"); pkName != "" {
		return pkName
	}
	return findPrimaryKeyNameFromType(typ, "gorm")
}

// GetPrimaryKeyValue extracts the primary key value from a model instance.
// Falls back to a field named "ID" when no tag marks the key.
func GetPrimaryKeyValue(model any) any {
	if model == nil {
		return nil
	}

	val := reflect.ValueOf(model)
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	for _, ormType := range []string{"bun", "gorm"} {
		if pkValue := findPrimaryKeyValue(val, ormType); pkValue != nil {
			return pkValue
		}
	}
	return findFieldByName(val, "id")
}

func isPrimaryKeyField(field reflect.StructField, ormType string) bool {
	switch ormType {
	case "bun":
		for _, part := range strings.Split(field.Tag.Get("bun"), ",") {
			if strings.TrimSpace(part) == "pk" {
				return true
			}
		}
	case "gorm":
		gormTag := field.Tag.Get("gorm")
		return strings.Contains(gormTag, "primaryKey") || strings.Contains(gormTag, "primary_key")
	}
	return false
}

// findPrimaryKeyValue recursively searches embedded structs for the key field
func findPrimaryKeyValue(val reflect.Value, ormType string) any {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldValue := val.Field(i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if pkValue := findPrimaryKeyValue(fieldValue, ormType); pkValue != nil {
				return pkValue
			}
			continue
		}

		if isPrimaryKeyField(field, ormType) && fieldValue.CanInterface() {
			return fieldValue.Interface()
		}
	}
	return nil
}

func findFieldByName(val reflect.Value, name string) any {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldValue := val.Field(i)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if result := findFieldByName(fieldValue, name); result != nil {
				return result
			}
			continue
		}

		if strings.EqualFold(field.Name, name) && fieldValue.CanInterface() {
			return fieldValue.Interface()
		}
	}
	return nil
}

func findPrimaryKeyNameFromType(typ reflect.Type, ormType string) string {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		if field.Anonymous {
			if embedded := structType(field.Type); embedded != nil {
				if pkName := findPrimaryKeyNameFromType(embedded, ormType); pkName != "" {
					return pkName
				}
			}
			continue
		}

		if !isPrimaryKeyField(field, ormType) {
			continue
		}
		var colName string
		if ormType == "bun" {
			colName = ExtractColumnFromBunTag(field.Tag.Get("bun"))
		} else {
			colName = ExtractColumnFromGormTag(field.Tag.Get("gorm"))
		}
		if colName != "" {
			return colName
		}
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			return strings.Split(jsonTag, ",")[0]
		}
		return toSnakeCase(field.Name)
	}
	return ""
}

// ExtractColumnFromGormTag extracts the column name from a gorm tag
// Example: "column:id;primaryKey" -> "id"
func ExtractColumnFromGormTag(tag string) string {
	for _, part := range strings.Split(tag, ";") {
		if colName, found := strings.CutPrefix(strings.TrimSpace(part), "column:"); found {
			return colName
		}
	}
	return ""
}

// ExtractColumnFromBunTag extracts the column name from a bun tag
// Example: "id,pk" -> "id"
// Example: ",pk" -> "" (will fall back to json tag)
func ExtractColumnFromBunTag(tag string) string {
	lower := strings.ToLower(tag)
	if strings.HasPrefix(lower, "table:") || strings.HasPrefix(lower, "rel:") ||
		strings.HasPrefix(lower, "join:") || strings.HasPrefix(lower, "m2m:") {
		return ""
	}
	return strings.TrimSpace(strings.Split(tag, ",")[0])
}

// structType unwraps pointers, slices and arrays down to a struct type.
func structType(typ reflect.Type) reflect.Type {
	for typ != nil && (typ.Kind() == reflect.Pointer || typ.Kind() == reflect.Slice || typ.Kind() == reflect.Array) {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil
	}
	return typ
}

// toSnakeCase converts a string from CamelCase to snake_case
func toSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') || nextLower {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
