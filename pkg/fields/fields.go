// Package fields provides field descriptors that convert values between Go
// and their stored representation, plus composite descriptors storing lists
// and embedded models in a single column.
package fields

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bitechdev/changelist/pkg/common"
)

// FieldType converts values of one column type.
type FieldType interface {
	// PrepSave converts a Go value into the value written to the database.
	PrepSave(v any) (any, error)
	// PrepLookup converts a lookup operand. "in" and "range" take a slice,
	// "isnull" a boolean.
	PrepLookup(lookup string, v any) (any, error)
	// ToValue converts a stored value back into its Go value.
	ToValue(v any) (any, error)
}

// prepLookup implements PrepLookup for scalar field types.
func prepLookup(f FieldType, lookup string, v any) (any, error) {
	switch lookup {
	case common.LookupIn, common.LookupRange:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("%s lookup expects a list, got %T", lookup, v)
		}
		out := make([]any, rv.Len())
		for i := range out {
			prepped, err := f.PrepSave(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = prepped
		}
		return out, nil
	case common.LookupIsNull:
		return BooleanField{}.PrepSave(v)
	case common.LookupIExact, common.LookupContains, common.LookupIContains,
		common.LookupStartsWith, common.LookupIStartsWith,
		common.LookupEndsWith, common.LookupIEndsWith, common.LookupSearch:
		return fmt.Sprint(v), nil
	case common.LookupExact, common.LookupGT, common.LookupGTE, common.LookupLT, common.LookupLTE:
		return f.PrepSave(v)
	default:
		return nil, fmt.Errorf("unsupported lookup %q", lookup)
	}
}

// IntegerField stores int64 values.
type IntegerField struct{}

func (f IntegerField) PrepSave(v any) (any, error) {
	return toInt64(v)
}

func (f IntegerField) PrepLookup(lookup string, v any) (any, error) {
	return prepLookup(f, lookup, v)
}

func (f IntegerField) ToValue(v any) (any, error) {
	return toInt64(v)
}

func toInt64(v any) (int64, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("integer value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		fl := rv.Float()
		if fl != math.Trunc(fl) {
			return 0, fmt.Errorf("integer value %v has a fraction", fl)
		}
		return int64(fl), nil
	case reflect.String:
		return strconv.ParseInt(strings.TrimSpace(rv.String()), 10, 64)
	case reflect.Slice:
		if b, ok := v.([]byte); ok {
			return strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
		}
	}
	return 0, fmt.Errorf("cannot convert %T to an integer", v)
}

// FloatField stores float64 values.
type FloatField struct{}

func (f FloatField) PrepSave(v any) (any, error) {
	return toFloat64(v)
}

func (f FloatField) PrepLookup(lookup string, v any) (any, error) {
	return prepLookup(f, lookup, v)
}

func (f FloatField) ToValue(v any) (any, error) {
	return toFloat64(v)
}

func toFloat64(v any) (float64, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
	}
	return 0, fmt.Errorf("cannot convert %T to a float", v)
}

// CharField stores strings. A positive MaxLength limits the length in runes.
type CharField struct {
	MaxLength int
}

func (f CharField) PrepSave(v any) (any, error) {
	s, err := toString(v)
	if err != nil {
		return nil, err
	}
	if f.MaxLength > 0 && len([]rune(s)) > f.MaxLength {
		return nil, fmt.Errorf("value %q is longer than %d characters", s, f.MaxLength)
	}
	return s, nil
}

func (f CharField) PrepLookup(lookup string, v any) (any, error) {
	return prepLookup(f, lookup, v)
}

func (f CharField) ToValue(v any) (any, error) {
	return toString(v)
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", fmt.Errorf("cannot convert nil to a string")
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", fmt.Errorf("cannot convert nil %T to a string", v)
		}
		return toString(rv.Elem().Interface())
	}
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return fmt.Sprint(v), nil
}

// BooleanField stores booleans.
type BooleanField struct{}

func (f BooleanField) PrepSave(v any) (any, error) {
	return toBool(v)
}

func (f BooleanField) PrepLookup(lookup string, v any) (any, error) {
	return prepLookup(f, lookup, v)
}

func (f BooleanField) ToValue(v any) (any, error) {
	return toBool(v)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case *bool:
		if b != nil {
			return *b, nil
		}
	case string:
		return common.ParseBool(b)
	case []byte:
		return common.ParseBool(string(b))
	default:
		if n, err := toInt64(v); err == nil && (n == 0 || n == 1) {
			return n == 1, nil
		}
	}
	return false, fmt.Errorf("cannot convert %v to a boolean", v)
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// DateTimeField stores instants as RFC 3339 strings in UTC.
type DateTimeField struct{}

func (f DateTimeField) PrepSave(v any) (any, error) {
	t, err := toTime(v)
	if err != nil {
		return nil, err
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}

func (f DateTimeField) PrepLookup(lookup string, v any) (any, error) {
	return prepLookup(f, lookup, v)
}

func (f DateTimeField) ToValue(v any) (any, error) {
	t, err := toTime(v)
	if err != nil {
		return nil, err
	}
	return t.UTC(), nil
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t != nil {
			return *t, nil
		}
	case string:
		parsed, err := common.ConvertValue(timeType, t)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.(time.Time), nil
	case []byte:
		return toTime(string(t))
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to a time", v)
}

// UUIDField stores UUIDs in their canonical string form.
type UUIDField struct{}

func (f UUIDField) PrepSave(v any) (any, error) {
	id, err := toUUID(v)
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

func (f UUIDField) PrepLookup(lookup string, v any) (any, error) {
	return prepLookup(f, lookup, v)
}

func (f UUIDField) ToValue(v any) (any, error) {
	return toUUID(v)
}

func toUUID(v any) (uuid.UUID, error) {
	switch id := v.(type) {
	case uuid.UUID:
		return id, nil
	case *uuid.UUID:
		if id != nil {
			return *id, nil
		}
	case string:
		return uuid.Parse(strings.TrimSpace(id))
	case []byte:
		if len(id) == 16 {
			return uuid.FromBytes(id)
		}
		return uuid.ParseBytes(id)
	}
	return uuid.Nil, fmt.Errorf("cannot convert %T to a uuid", v)
}

// rawField passes values through unchanged.
type rawField struct{}

func (f rawField) PrepSave(v any) (any, error) { return v, nil }

func (f rawField) PrepLookup(lookup string, v any) (any, error) {
	return prepLookup(f, lookup, v)
}

func (f rawField) ToValue(v any) (any, error) { return v, nil }

// FieldTypeFor picks the field type storing values of typ.
func FieldTypeFor(typ reflect.Type) FieldType {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	switch typ {
	case timeType:
		return DateTimeField{}
	case reflect.TypeOf(uuid.UUID{}):
		return UUIDField{}
	}
	if typ.Implements(valuerType) {
		return rawField{}
	}
	switch typ.Kind() {
	case reflect.Bool:
		return BooleanField{}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntegerField{}
	case reflect.Float32, reflect.Float64:
		return FloatField{}
	case reflect.String:
		return CharField{}
	case reflect.Struct:
		return EmbeddedModel{To: reflect.New(typ).Interface()}
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() != reflect.Uint8 {
			return ListField{Inner: FieldTypeFor(typ.Elem())}
		}
	}
	return rawField{}
}

// assign stores a converted value into dst, converting between compatible
// kinds and allocating pointers as needed.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	src := reflect.ValueOf(v)
	if src.Kind() == reflect.Pointer && src.Type() != dst.Type() {
		if src.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		src = src.Elem()
	}
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case dst.Kind() == reflect.Slice && src.Kind() == reflect.Slice && dst.Type().Elem().Kind() != reflect.Uint8:
		out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := assign(out.Index(i), src.Index(i).Interface()); err != nil {
				return err
			}
		}
		dst.Set(out)
	case src.Type().ConvertibleTo(dst.Type()) && src.Kind() != reflect.String && dst.Kind() != reflect.String:
		dst.Set(src.Convert(dst.Type()))
	case src.Kind() == reflect.String && dst.Kind() == reflect.String:
		dst.SetString(src.String())
	default:
		return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
	}
	return nil
}
