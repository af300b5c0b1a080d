package reflection

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/inflection"

	"github.com/bitechdev/changelist/pkg/common"
	"github.com/bitechdev/changelist/pkg/modelregistry"
)

// RelationKind classifies a relation field.
type RelationKind int

const (
	RelationToOne RelationKind = iota + 1
	RelationToMany
	RelationManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case RelationToOne:
		return "to-one"
	case RelationToMany:
		return "to-many"
	case RelationManyToMany:
		return "many-to-many"
	}
	return "none"
}

// Choice is one declared value of a field carrying an admin choices tag.
type Choice struct {
	Value string
	Label string
}

// FieldMeta describes one exported struct field of a model. Relation fields
// have an empty Column.
type FieldMeta struct {
	Name       string
	Column     string
	JSONName   string
	Type       reflect.Type
	Index      []int
	PrimaryKey bool
	Relation   *RelationMeta
	Choices    []Choice
	title      string
}

// IsRelation reports whether the field points at another model.
func (f *FieldMeta) IsRelation() bool {
	return f.Relation != nil
}

// Title is the human readable field name used by filter specs.
func (f *FieldMeta) Title() string {
	if f.title != "" {
		return f.title
	}
	name := f.Column
	if name == "" {
		name = toSnakeCase(f.Name)
	}
	return strings.ReplaceAll(name, "_", " ")
}

// RelationMeta holds the raw join declaration of a relation field. Join
// columns are resolved on demand so self-referencing models do not recurse.
type RelationMeta struct {
	Kind      RelationKind
	Model     reflect.Type
	JoinTable string

	owner       reflect.Type
	fieldName   string
	belongsTo   bool
	foreignKey  string
	references  string
	localColumn string
	remoteCol   string
}

// BelongsTo reports whether the foreign key lives on the owning model.
func (r *RelationMeta) BelongsTo() bool {
	return r.belongsTo
}

// Columns returns the owner column and the related column that join the
// relation: owner.local = related.remote.
func (r *RelationMeta) Columns() (local, remote string, err error) {
	if r.Kind == RelationManyToMany {
		return "", "", fmt.Errorf("relation %s: many-to-many joins are not supported", r.fieldName)
	}
	if r.localColumn != "" && r.remoteCol != "" {
		return r.localColumn, r.remoteCol, nil
	}

	owner, err := GetModelMeta(r.owner)
	if err != nil {
		return "", "", err
	}
	related, err := GetModelMeta(r.Model)
	if err != nil {
		return "", "", err
	}

	if r.belongsTo {
		local, err = owner.columnOf(r.foreignKey)
		if err != nil {
			return "", "", err
		}
		remote = related.PrimaryKey
		if r.references != "" {
			if remote, err = related.columnOf(r.references); err != nil {
				return "", "", err
			}
		}
		return local, remote, nil
	}

	local = owner.PrimaryKey
	if r.references != "" {
		if local, err = owner.columnOf(r.references); err != nil {
			return "", "", err
		}
	}
	remote, err = related.columnOf(r.foreignKey)
	if err != nil {
		return "", "", err
	}
	return local, remote, nil
}

// ModelMeta is the reflected description of a model struct.
type ModelMeta struct {
	Type       reflect.Type
	Table      string
	PrimaryKey string
	Ordering   []string
	Fields     []*FieldMeta

	byColumn map[string]*FieldMeta
	byJSON   map[string]*FieldMeta
	byName   map[string]*FieldMeta
}

// Field finds a field by column, JSON name or Go field name, in that order.
func (m *ModelMeta) Field(name string) (*FieldMeta, bool) {
	if f, ok := m.byColumn[name]; ok {
		return f, true
	}
	if f, ok := m.byJSON[name]; ok {
		return f, true
	}
	f, ok := m.byName[name]
	return f, ok
}

// RelationField finds a relation field by JSON name, Go name or snake_case
// Go name. A column sharing the name does not shadow the relation.
func (m *ModelMeta) RelationField(name string) (*FieldMeta, bool) {
	for _, f := range m.Fields {
		if f.Relation == nil {
			continue
		}
		if f.JSONName == name || f.Name == name || toSnakeCase(f.Name) == name {
			return f, true
		}
	}
	return nil, false
}

// Columns lists the stored columns in declaration order.
func (m *ModelMeta) Columns() []string {
	columns := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.Column != "" {
			columns = append(columns, f.Column)
		}
	}
	return columns
}

// ToOneRelations lists the Go names of the model's to-one relation fields.
func (m *ModelMeta) ToOneRelations() []string {
	var names []string
	for _, f := range m.Fields {
		if f.Relation != nil && f.Relation.Kind == RelationToOne {
			names = append(names, f.Name)
		}
	}
	return names
}

// RelationNames lists every name RelationField accepts.
func (m *ModelMeta) RelationNames() []string {
	var names []string
	for _, f := range m.Fields {
		if f.Relation == nil {
			continue
		}
		names = append(names, f.Name, toSnakeCase(f.Name))
		if f.JSONName != "" {
			names = append(names, f.JSONName)
		}
	}
	return names
}

// NewSlice returns a *[]*T suitable as a scan destination.
func (m *ModelMeta) NewSlice() interface{} {
	return reflect.New(reflect.SliceOf(reflect.PointerTo(m.Type))).Interface()
}

// NewInstance returns a *T.
func (m *ModelMeta) NewInstance() interface{} {
	return reflect.New(m.Type).Interface()
}

func (m *ModelMeta) columnOf(goName string) (string, error) {
	f, ok := m.byName[goName]
	if !ok {
		f, ok = m.Field(goName)
	}
	if !ok || f.Column == "" {
		return "", fmt.Errorf("model %s has no column for field %s", m.Type.Name(), goName)
	}
	return f.Column, nil
}

var metaCache sync.Map

// GetModelMeta reflects a model (struct, pointer, slice or registered name)
// into a cached ModelMeta.
func GetModelMeta(model interface{}) (*ModelMeta, error) {
	if name, ok := model.(string); ok {
		m, err := modelregistry.GetModelByName(name)
		if err != nil {
			return nil, err
		}
		model = m
	}

	typ, ok := model.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(model)
	}
	typ = structType(typ)
	if typ == nil {
		return nil, fmt.Errorf("model must be a struct type, got %T", model)
	}

	if cached, ok := metaCache.Load(typ); ok {
		return cached.(*ModelMeta), nil
	}
	meta := buildModelMeta(typ)
	actual, _ := metaCache.LoadOrStore(typ, meta)
	return actual.(*ModelMeta), nil
}

// TableNameOf resolves the table name of a model: a TableName method, a bun
// "table:" tag, or the pluralised snake_case type name. A SchemaName method
// prefixes the schema.
func TableNameOf(typ reflect.Type) string {
	zero := reflect.New(typ)
	table := ""
	if p, ok := zero.Interface().(common.TableNameProvider); ok {
		table = p.TableName()
	} else if p, ok := zero.Elem().Interface().(common.TableNameProvider); ok {
		table = p.TableName()
	}
	if table == "" {
		table = bunTableTag(typ)
	}
	if table == "" {
		table = inflection.Plural(toSnakeCase(typ.Name()))
	}

	if s, ok := zero.Interface().(common.SchemaProvider); ok && s.SchemaName() != "" && !strings.Contains(table, ".") {
		table = s.SchemaName() + "." + table
	}
	return table
}

func bunTableTag(typ reflect.Type) string {
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("bun")
		for _, part := range strings.Split(tag, ",") {
			if name, ok := strings.CutPrefix(strings.TrimSpace(part), "table:"); ok {
				return name
			}
		}
	}
	return ""
}

func buildModelMeta(typ reflect.Type) *ModelMeta {
	meta := &ModelMeta{
		Type:     typ,
		Table:    TableNameOf(typ),
		byColumn: make(map[string]*FieldMeta),
		byJSON:   make(map[string]*FieldMeta),
		byName:   make(map[string]*FieldMeta),
	}

	if p, ok := reflect.New(typ).Interface().(common.OrderingProvider); ok {
		meta.Ordering = p.Ordering()
	}

	collectFields(meta, typ, typ, nil)

	meta.PrimaryKey = GetPrimaryKeyName(reflect.New(typ).Interface())
	if meta.PrimaryKey == "" {
		if f, ok := meta.byName["ID"]; ok {
			meta.PrimaryKey = f.Column
		}
	}
	if pk, ok := meta.Field(meta.PrimaryKey); ok {
		pk.PrimaryKey = true
		meta.PrimaryKey = pk.Column
	}
	return meta
}

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// isScalar reports whether a type is stored in a single column.
func isScalar(typ reflect.Type) bool {
	if typ.Implements(valuerType) || reflect.PointerTo(typ).Implements(scannerType) {
		return true
	}
	base := typ
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base == timeType || base.Implements(valuerType) || reflect.PointerTo(base).Implements(scannerType) {
		return true
	}
	switch base.Kind() {
	case reflect.Struct, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return false
	case reflect.Slice, reflect.Array:
		return base.Elem().Kind() == reflect.Uint8
	}
	return true
}

func collectFields(meta *ModelMeta, owner, typ reflect.Type, index []int) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldIndex := append(append([]int{}, index...), i)

		bunTag := field.Tag.Get("bun")
		gormTag := field.Tag.Get("gorm")
		if bunTag == "-" || gormTag == "-" || strings.HasPrefix(bunTag, "table:") {
			continue
		}

		if field.Anonymous && !isScalar(field.Type) {
			if embedded := structType(field.Type); embedded != nil && field.Type.Kind() != reflect.Pointer {
				collectFields(meta, owner, embedded, fieldIndex)
			}
			continue
		}
		if !field.IsExported() {
			continue
		}

		fm := &FieldMeta{
			Name:     field.Name,
			JSONName: jsonName(field),
			Type:     field.Type,
			Index:    fieldIndex,
		}
		parseAdminTag(fm, field.Tag.Get("admin"))

		if isScalar(field.Type) {
			fm.Column = storedColumnName(field)
		} else {
			fm.Relation = relationFor(owner, field)
			if fm.Relation == nil {
				continue
			}
		}

		meta.Fields = append(meta.Fields, fm)
		if fm.Column != "" {
			meta.byColumn[fm.Column] = fm
		}
		if fm.JSONName != "" {
			if _, exists := meta.byJSON[fm.JSONName]; !exists {
				meta.byJSON[fm.JSONName] = fm
			}
		}
		meta.byName[fm.Name] = fm
	}
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

// storedColumnName follows gorm and bun naming: an explicit tag wins,
// otherwise the snake_case field name.
func storedColumnName(field reflect.StructField) string {
	if col := ExtractColumnFromBunTag(field.Tag.Get("bun")); col != "" {
		return col
	}
	if col := ExtractColumnFromGormTag(field.Tag.Get("gorm")); col != "" {
		return col
	}
	return toSnakeCase(field.Name)
}

// parseAdminTag reads `admin:"title=Hire date;choices=active:Active|left:Left"`.
func parseAdminTag(fm *FieldMeta, tag string) {
	for _, part := range strings.Split(tag, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "title":
			fm.title = value
		case "choices":
			for _, c := range strings.Split(value, "|") {
				if c == "" {
					continue
				}
				v, label, hasLabel := strings.Cut(c, ":")
				if !hasLabel {
					label = v
				}
				fm.Choices = append(fm.Choices, Choice{Value: v, Label: label})
			}
		}
	}
}

func tagValue(tag, key, sep string) string {
	for _, part := range strings.Split(tag, sep) {
		if v, ok := strings.CutPrefix(strings.TrimSpace(part), key+":"); ok {
			return v
		}
	}
	return ""
}

// relationFor derives relation metadata from bun "rel:" / "m2m:" tags or
// gorm "foreignKey" / "references" / "many2many" tags, falling back to the
// gorm naming conventions. Fields that are not relations return nil.
func relationFor(owner reflect.Type, field reflect.StructField) *RelationMeta {
	related := structType(field.Type)
	if related == nil {
		return nil
	}
	toMany := field.Type.Kind() == reflect.Slice || field.Type.Kind() == reflect.Array
	rel := &RelationMeta{Model: related, owner: owner, fieldName: field.Name}

	bunTag := field.Tag.Get("bun")
	if m2m := tagValue(bunTag, "m2m", ","); m2m != "" {
		rel.Kind = RelationManyToMany
		rel.JoinTable = m2m
		return rel
	}
	if kind := tagValue(bunTag, "rel", ","); kind != "" {
		rel.Kind = RelationToOne
		if kind == "has-many" {
			rel.Kind = RelationToMany
		}
		rel.belongsTo = kind == "belongs-to"
		if join := tagValue(bunTag, "join", ","); join != "" {
			local, remote, _ := strings.Cut(join, "=")
			rel.localColumn = strings.TrimSpace(local)
			rel.remoteCol = strings.TrimSpace(remote)
		} else if rel.belongsTo {
			rel.foreignKey = field.Name + "ID"
		} else {
			rel.foreignKey = owner.Name() + "ID"
		}
		return rel
	}

	gormTag := field.Tag.Get("gorm")
	if m2m := tagValue(gormTag, "many2many", ";"); m2m != "" {
		rel.Kind = RelationManyToMany
		rel.JoinTable = m2m
		return rel
	}
	rel.foreignKey = tagValue(gormTag, "foreignKey", ";")
	rel.references = tagValue(gormTag, "references", ";")

	if toMany {
		rel.Kind = RelationToMany
		if rel.foreignKey == "" {
			rel.foreignKey = owner.Name() + "ID"
		}
		if _, ok := related.FieldByName(rel.foreignKey); !ok {
			return nil
		}
		return rel
	}

	rel.Kind = RelationToOne
	fk := rel.foreignKey
	if fk == "" {
		fk = field.Name + "ID"
	}
	if _, ok := owner.FieldByName(fk); ok {
		rel.belongsTo = true
		rel.foreignKey = fk
		return rel
	}
	if rel.foreignKey == "" {
		rel.foreignKey = owner.Name() + "ID"
	}
	if _, ok := related.FieldByName(rel.foreignKey); !ok {
		return nil
	}
	return rel
}
