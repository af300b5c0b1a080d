package changelist

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	"github.com/bitechdev/changelist/pkg/common"
	"github.com/bitechdev/changelist/pkg/reflection"
)

// Choice is one selectable entry of a filter spec.
type Choice struct {
	Selected    bool   `json:"selected"`
	QueryString string `json:"query_string"`
	Display     string `json:"display"`
}

// FilterSpec describes the filter offered for one ListFilter field.
type FilterSpec interface {
	Title() string
	HasOutput() bool
	Choices(cl *AdminChangeList) []Choice
}

// FilterSpecTest decides whether a factory handles a field.
type FilterSpecTest func(field *reflection.FieldMeta) bool

// FilterSpecFactory builds the spec of field, named name in ListFilter.
type FilterSpecFactory func(ctx context.Context, name string, field *reflection.FieldMeta, cl *AdminChangeList) (FilterSpec, error)

type registeredSpec struct {
	test    FilterSpecTest
	factory FilterSpecFactory
}

var (
	filterSpecsMu sync.RWMutex
	filterSpecs   []registeredSpec
)

// RegisterFilterSpec appends a factory; factories are tried in order.
func RegisterFilterSpec(test FilterSpecTest, factory FilterSpecFactory) {
	filterSpecsMu.Lock()
	defer filterSpecsMu.Unlock()
	filterSpecs = append(filterSpecs, registeredSpec{test: test, factory: factory})
}

// RegisterFilterSpecFirst registers a factory ahead of the built-in ones.
func RegisterFilterSpecFirst(test FilterSpecTest, factory FilterSpecFactory) {
	filterSpecsMu.Lock()
	defer filterSpecsMu.Unlock()
	filterSpecs = append([]registeredSpec{{test: test, factory: factory}}, filterSpecs...)
}

func init() {
	RegisterFilterSpec(isFilterableRelation, NewRelatedFilterSpec)
	RegisterFilterSpec(hasChoices, NewChoicesFilterSpec)
	RegisterFilterSpec(isBoolField, NewBooleanFilterSpec)
	RegisterFilterSpec(isColumnField, NewAllValuesFilterSpec)
}

func createFilterSpec(ctx context.Context, name string, cl *AdminChangeList) (FilterSpec, error) {
	meta := cl.coll.meta
	field, ok := meta.RelationField(name)
	if !ok {
		field, ok = meta.Field(name)
	}
	if !ok {
		return nil, fmt.Errorf("%s has no field %q", meta.Type.Name(), name)
	}

	filterSpecsMu.RLock()
	specs := append([]registeredSpec(nil), filterSpecs...)
	filterSpecsMu.RUnlock()

	for _, s := range specs {
		if s.test(field) {
			return s.factory(ctx, name, field, cl)
		}
	}
	return nil, fmt.Errorf("no filter spec for %s", name)
}

func isFilterableRelation(f *reflection.FieldMeta) bool {
	return f.IsRelation() && f.Relation.Kind != reflection.RelationManyToMany
}

func hasChoices(f *reflection.FieldMeta) bool {
	return !f.IsRelation() && len(f.Choices) > 0
}

func isBoolField(f *reflection.FieldMeta) bool {
	typ := f.Type
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return !f.IsRelation() && typ.Kind() == reflect.Bool
}

func isColumnField(f *reflection.FieldMeta) bool {
	return !f.IsRelation() && f.Column != ""
}

// fieldValue reads f from a model row, dereferencing pointers. ok is false
// for nil values.
func fieldValue(row reflect.Value, f *reflection.FieldMeta) (interface{}, bool) {
	for row.Kind() == reflect.Pointer {
		if row.IsNil() {
			return nil, false
		}
		row = row.Elem()
	}
	v, err := row.FieldByIndexErr(f.Index)
	if err != nil {
		return nil, false
	}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if !v.CanInterface() {
		return nil, false
	}
	return v.Interface(), true
}

// displayRow renders a related row: its String method, else its first
// string column, else its primary key.
func displayRow(meta *reflection.ModelMeta, row reflect.Value, pk interface{}) string {
	if s, ok := row.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	for _, f := range meta.Fields {
		if f.Column == "" || f.PrimaryKey {
			continue
		}
		if v, ok := fieldValue(row, f); ok {
			if s, isString := v.(string); isString {
				return s
			}
		}
	}
	return fmt.Sprint(pk)
}

type relatedChoice struct {
	value   string
	display string
}

// RelatedFilterSpec filters on a relation, offering every related row.
type RelatedFilterSpec struct {
	title     string
	lookupKey string
	isNullKey string
	lookupVal string
	isNullVal string
	nullable  bool
	choices   []relatedChoice
}

// NewRelatedFilterSpec loads the related rows of a to-one or to-many relation.
func NewRelatedFilterSpec(ctx context.Context, name string, field *reflection.FieldMeta, cl *AdminChangeList) (FilterSpec, error) {
	related, err := reflection.GetModelMeta(field.Relation.Model)
	if err != nil {
		return nil, err
	}
	pkField, ok := related.Field(related.PrimaryKey)
	if !ok {
		return nil, fmt.Errorf("%s has no primary key", related.Type.Name())
	}

	spec := &RelatedFilterSpec{
		title:     field.Title(),
		lookupKey: fmt.Sprintf("%s__%s__exact", name, related.PrimaryKey),
		isNullKey: name + "__isnull",
	}
	spec.lookupVal = cl.params.Get(spec.lookupKey)
	spec.isNullVal = cl.params.Get(spec.isNullKey)

	if field.Relation.BelongsTo() {
		if local, _, err := field.Relation.Columns(); err == nil {
			if fk, ok := cl.coll.meta.Field(local); ok {
				spec.nullable = fk.Type.Kind() == reflect.Pointer
			}
		}
	}

	dest := related.NewSlice()
	qs := cl.coll.db.NewSelect().Model(dest)
	qs = qs.Order(column(qs.TableAlias(), related.PrimaryKey) + " ASC")
	if err := qs.Scan(ctx, dest); err != nil {
		return nil, fmt.Errorf("load %s choices: %w", related.Table, err)
	}
	rows := reflect.ValueOf(dest).Elem()
	for i := 0; i < rows.Len(); i++ {
		row := rows.Index(i)
		pk, ok := fieldValue(row, pkField)
		if !ok {
			continue
		}
		spec.choices = append(spec.choices, relatedChoice{
			value:   fmt.Sprint(pk),
			display: displayRow(related, row, pk),
		})
	}
	return spec, nil
}

func (s *RelatedFilterSpec) Title() string {
	return s.title
}

// HasOutput is true when there is more than one choice to pick from.
func (s *RelatedFilterSpec) HasOutput() bool {
	n := len(s.choices)
	if s.nullable {
		n++
	}
	return n > 1
}

func (s *RelatedFilterSpec) Choices(cl *AdminChangeList) []Choice {
	choices := []Choice{{
		Selected:    s.lookupVal == "" && s.isNullVal == "",
		QueryString: cl.GetQueryString(nil, s.lookupKey, s.isNullKey),
		Display:     "All",
	}}
	for _, c := range s.choices {
		choices = append(choices, Choice{
			Selected:    s.lookupVal == c.value,
			QueryString: cl.GetQueryString(map[string]any{s.lookupKey: c.value}, s.isNullKey),
			Display:     c.display,
		})
	}
	if s.nullable {
		isNull, _ := common.ParseBool(s.isNullVal)
		choices = append(choices, Choice{
			Selected:    isNull,
			QueryString: cl.GetQueryString(map[string]any{s.isNullKey: "True"}, s.lookupKey),
			Display:     EmptyChangeListValue,
		})
	}
	return choices
}

// BooleanFilterSpec offers Yes and No, plus Unknown for nullable booleans.
type BooleanFilterSpec struct {
	title     string
	lookupKey string
	isNullKey string
	lookupVal string
	isNullVal string
	nullable  bool
}

func NewBooleanFilterSpec(_ context.Context, name string, field *reflection.FieldMeta, cl *AdminChangeList) (FilterSpec, error) {
	spec := &BooleanFilterSpec{
		title:     field.Title(),
		lookupKey: name + "__exact",
		isNullKey: name + "__isnull",
		nullable:  field.Type.Kind() == reflect.Pointer,
	}
	spec.lookupVal = cl.params.Get(spec.lookupKey)
	spec.isNullVal = cl.params.Get(spec.isNullKey)
	return spec, nil
}

func (s *BooleanFilterSpec) Title() string {
	return s.title
}

func (s *BooleanFilterSpec) HasOutput() bool {
	return true
}

func (s *BooleanFilterSpec) Choices(cl *AdminChangeList) []Choice {
	selected := func(want bool) bool {
		v, err := common.ParseBool(s.lookupVal)
		return err == nil && v == want
	}
	choices := []Choice{
		{
			Selected:    s.lookupVal == "" && s.isNullVal == "",
			QueryString: cl.GetQueryString(nil, s.lookupKey, s.isNullKey),
			Display:     "All",
		},
		{
			Selected:    selected(true),
			QueryString: cl.GetQueryString(map[string]any{s.lookupKey: "1"}, s.isNullKey),
			Display:     "Yes",
		},
		{
			Selected:    selected(false),
			QueryString: cl.GetQueryString(map[string]any{s.lookupKey: "0"}, s.isNullKey),
			Display:     "No",
		},
	}
	if s.nullable {
		isNull, _ := common.ParseBool(s.isNullVal)
		choices = append(choices, Choice{
			Selected:    isNull,
			QueryString: cl.GetQueryString(map[string]any{s.isNullKey: "True"}, s.lookupKey),
			Display:     "Unknown",
		})
	}
	return choices
}

// ChoicesFilterSpec offers the values declared by an admin choices tag.
type ChoicesFilterSpec struct {
	title     string
	lookupKey string
	lookupVal string
	choices   []reflection.Choice
}

func NewChoicesFilterSpec(_ context.Context, name string, field *reflection.FieldMeta, cl *AdminChangeList) (FilterSpec, error) {
	spec := &ChoicesFilterSpec{
		title:     field.Title(),
		lookupKey: name + "__exact",
		choices:   field.Choices,
	}
	spec.lookupVal = cl.params.Get(spec.lookupKey)
	return spec, nil
}

func (s *ChoicesFilterSpec) Title() string {
	return s.title
}

func (s *ChoicesFilterSpec) HasOutput() bool {
	return len(s.choices) > 0
}

func (s *ChoicesFilterSpec) Choices(cl *AdminChangeList) []Choice {
	choices := []Choice{{
		Selected:    s.lookupVal == "",
		QueryString: cl.GetQueryString(nil, s.lookupKey),
		Display:     "All",
	}}
	for _, c := range s.choices {
		choices = append(choices, Choice{
			Selected:    s.lookupVal == c.Value,
			QueryString: cl.GetQueryString(map[string]any{s.lookupKey: c.Value}),
			Display:     c.Label,
		})
	}
	return choices
}

// AllValuesFilterSpec offers every distinct value stored in a column.
type AllValuesFilterSpec struct {
	title     string
	lookupKey string
	isNullKey string
	lookupVal string
	isNullVal string
	values    []string
	hasNull   bool
}

func NewAllValuesFilterSpec(ctx context.Context, name string, field *reflection.FieldMeta, cl *AdminChangeList) (FilterSpec, error) {
	spec := &AllValuesFilterSpec{
		title:     field.Title(),
		lookupKey: name,
		isNullKey: name + "__isnull",
	}
	spec.lookupVal = cl.params.Get(spec.lookupKey)
	spec.isNullVal = cl.params.Get(spec.isNullKey)

	qs, err := cl.coll.query(cl.coll.meta.NewSlice())
	if err != nil {
		return nil, err
	}
	col := column(qs.TableAlias(), field.Column)
	var values []sql.NullString
	if err := qs.Column(col).Distinct().Order(col+" ASC").Scan(ctx, &values); err != nil {
		return nil, fmt.Errorf("load %s values: %w", field.Column, err)
	}
	for _, v := range values {
		if !v.Valid {
			spec.hasNull = true
			continue
		}
		spec.values = append(spec.values, v.String)
	}
	return spec, nil
}

func (s *AllValuesFilterSpec) Title() string {
	return s.title
}

func (s *AllValuesFilterSpec) HasOutput() bool {
	return len(s.values) > 0 || s.hasNull
}

func (s *AllValuesFilterSpec) Choices(cl *AdminChangeList) []Choice {
	choices := []Choice{{
		Selected:    s.lookupVal == "" && s.isNullVal == "",
		QueryString: cl.GetQueryString(nil, s.lookupKey, s.isNullKey),
		Display:     "All",
	}}
	for _, v := range s.values {
		choices = append(choices, Choice{
			Selected:    s.lookupVal == v,
			QueryString: cl.GetQueryString(map[string]any{s.lookupKey: v}, s.isNullKey),
			Display:     v,
		})
	}
	if s.hasNull {
		isNull, _ := common.ParseBool(s.isNullVal)
		choices = append(choices, Choice{
			Selected:    isNull,
			QueryString: cl.GetQueryString(map[string]any{s.isNullKey: "True"}, s.lookupKey),
			Display:     EmptyChangeListValue,
		})
	}
	return choices
}
