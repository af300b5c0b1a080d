package fields

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/bitechdev/changelist/pkg/reflection"
)

// EmbeddedModel stores an instance of the model To as a mapping of column
// name to prepared value.
type EmbeddedModel struct {
	To any
}

func (f EmbeddedModel) meta() (*reflection.ModelMeta, error) {
	meta, err := reflection.GetModelMeta(f.To)
	if err != nil {
		return nil, fmt.Errorf("embedded model: %w", err)
	}
	return meta, nil
}

// PrepSave serializes every stored column of v, a To value or pointer.
func (f EmbeddedModel) PrepSave(v any) (any, error) {
	meta, err := f.meta()
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Type() != meta.Type {
		return nil, fmt.Errorf("embedded %s: cannot save %T", meta.Type.Name(), v)
	}

	data := make(map[string]any, len(meta.Fields))
	for _, field := range meta.Fields {
		if field.Column == "" {
			continue
		}
		fv := rv.FieldByIndex(field.Index)
		if fv.Kind() == reflect.Pointer && fv.IsNil() {
			data[field.Column] = nil
			continue
		}
		prepped, err := FieldTypeFor(field.Type).PrepSave(fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("embedded %s.%s: %w", meta.Type.Name(), field.Name, err)
		}
		data[field.Column] = prepped
	}
	return data, nil
}

func (f EmbeddedModel) PrepLookup(lookup string, v any) (any, error) {
	return prepLookup(f, lookup, v)
}

// ToValue rebuilds a *To from a column mapping or its JSON encoding. Columns
// missing from the mapping keep their zero value.
func (f EmbeddedModel) ToValue(v any) (any, error) {
	meta, err := f.meta()
	if err != nil {
		return nil, err
	}

	var data map[string]any
	switch raw := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		data = raw
	case string:
		if data, err = decodeObject([]byte(raw)); err != nil {
			return nil, err
		}
	case []byte:
		if data, err = decodeObject(raw); err != nil {
			return nil, err
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type() == meta.Type {
			return v, nil
		}
		if rv.Type() == meta.Type {
			ptr := reflect.New(meta.Type)
			ptr.Elem().Set(rv)
			return ptr.Interface(), nil
		}
		return nil, fmt.Errorf("embedded %s: cannot load %T", meta.Type.Name(), v)
	}

	instance := reflect.New(meta.Type)
	for _, field := range meta.Fields {
		if field.Column == "" {
			continue
		}
		raw, ok := data[field.Column]
		if !ok {
			continue
		}
		var value any
		if raw != nil {
			if value, err = FieldTypeFor(field.Type).ToValue(raw); err != nil {
				return nil, fmt.Errorf("embedded %s.%s: %w", meta.Type.Name(), field.Name, err)
			}
		}
		if err := assign(instance.Elem().FieldByIndex(field.Index), value); err != nil {
			return nil, fmt.Errorf("embedded %s.%s: %w", meta.Type.Name(), field.Name, err)
		}
	}
	return instance.Interface(), nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode embedded model: %w", err)
	}
	return data, nil
}

// Embedded is a struct column stored as a JSON object keyed by column name.
type Embedded[T any] struct {
	Data T
}

func (e Embedded[T]) field() EmbeddedModel {
	return EmbeddedModel{To: new(T)}
}

func (e Embedded[T]) Value() (driver.Value, error) {
	data, err := e.field().PrepSave(&e.Data)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a JSON object. NULL scans to the zero value.
func (e *Embedded[T]) Scan(src any) error {
	var zero T
	switch src.(type) {
	case nil:
		e.Data = zero
		return nil
	case string, []byte:
	default:
		return fmt.Errorf("cannot scan %T into an embedded model", src)
	}

	value, err := e.field().ToValue(src)
	if err != nil {
		return err
	}
	ptr, ok := value.(*T)
	if !ok || ptr == nil {
		e.Data = zero
		return nil
	}
	e.Data = *ptr
	return nil
}

// MarshalJSON renders the embedded value itself.
func (e Embedded[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Data)
}

func (e *Embedded[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &e.Data)
}
