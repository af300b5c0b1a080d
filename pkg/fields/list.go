package fields

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
)

// ListField stores a homogeneous list of Inner values. Saving and loading
// convert element-wise through Inner; lookups are delegated to Inner
// unchanged.
type ListField struct {
	Inner FieldType
}

// PrepSave converts each element with Inner.PrepSave.
func (f ListField) PrepSave(v any) (any, error) {
	if v == nil {
		return []any{}, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("list field expects a slice, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		prepped, err := f.Inner.PrepSave(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		out[i] = prepped
	}
	return out, nil
}

func (f ListField) PrepLookup(lookup string, v any) (any, error) {
	return f.Inner.PrepLookup(lookup, v)
}

// ToValue converts each stored element with Inner.ToValue. A JSON encoded
// array is decoded first.
func (f ListField) ToValue(v any) (any, error) {
	switch raw := v.(type) {
	case nil:
		return []any{}, nil
	case string:
		return f.ToValue([]byte(raw))
	case []byte:
		var decoded []any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		v = decoded
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("list field expects a slice, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		value, err := f.Inner.ToValue(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		out[i] = value
	}
	return out, nil
}

// List is a slice column stored as a JSON array.
type List[T any] []T

// Value encodes the elements prepared by their field type.
func (l List[T]) Value() (driver.Value, error) {
	var zero T
	prepped, err := ListField{Inner: FieldTypeFor(reflect.TypeOf(&zero).Elem())}.PrepSave([]T(l))
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(prepped)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a JSON array. NULL scans to an empty list.
func (l *List[T]) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = List[T]{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into a list", src)
	}

	var zero T
	values, err := ListField{Inner: FieldTypeFor(reflect.TypeOf(&zero).Elem())}.ToValue(raw)
	if err != nil {
		return err
	}
	out := reflect.New(reflect.TypeOf(List[T]{})).Elem()
	if err := assign(out, values); err != nil {
		return fmt.Errorf("scan list: %w", err)
	}
	*l = out.Interface().(List[T])
	return nil
}
