package admin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bitechdev/changelist/pkg/changelist"
	"github.com/bitechdev/changelist/pkg/common"
	"github.com/bitechdev/changelist/pkg/logger"
	"github.com/bitechdev/changelist/pkg/modelregistry"
	"github.com/bitechdev/changelist/pkg/reflection"
)

// ModelAdmin is the admin configuration of one registered model.
type ModelAdmin struct {
	Name    string
	Model   interface{}
	Options changelist.Options

	// Scope narrows the rows listed. Nil lists every row.
	Scope func(*changelist.Collection) *changelist.Collection
}

// Site holds the ModelAdmins served by a Handler. Models are registered in
// a model registry under the same name.
type Site struct {
	registry *modelregistry.DefaultModelRegistry
	admins   map[string]*ModelAdmin
	mu       sync.RWMutex
}

// NewSite creates a site backed by registry; nil uses the default registry.
func NewSite(registry *modelregistry.DefaultModelRegistry) *Site {
	if registry == nil {
		registry = modelregistry.Default()
	}
	return &Site{registry: registry, admins: make(map[string]*ModelAdmin)}
}

// Register adds a model under name ("employees" or "hr.employees"). Every
// ListDisplay, ListFilter and SearchFields entry must name a field of the
// model, a relation path or a declared column.
func (s *Site) Register(name string, model interface{}, opts changelist.Options) (*ModelAdmin, error) {
	if err := validateOptions(model, opts); err != nil {
		return nil, fmt.Errorf("admin %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.admins[name]; exists {
		return nil, fmt.Errorf("admin %s already registered", name)
	}
	if other, ok := s.registry.NameOf(model); ok && other != name {
		if _, administered := s.admins[other]; administered {
			return nil, fmt.Errorf("admin %s: %T is already registered as admin %s", name, model, other)
		}
	}
	if existing, err := s.registry.GetModel(name); err != nil {
		if err := s.registry.RegisterModel(name, model); err != nil {
			return nil, err
		}
	} else if !sameModel(existing, model) {
		return nil, fmt.Errorf("admin %s: name is registered for %T", name, existing)
	}

	ma := &ModelAdmin{Name: name, Model: model, Options: opts}
	s.admins[name] = ma
	logger.Debug("Registered admin %s", name)
	return ma, nil
}

// Configure replaces the options of a registered admin.
func (s *Site) Configure(name string, opts changelist.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ma, ok := s.admins[name]
	if !ok {
		return fmt.Errorf("admin %s not found", name)
	}
	if opts.Columns == nil {
		opts.Columns = ma.Options.Columns
	}
	if err := validateOptions(ma.Model, opts); err != nil {
		return fmt.Errorf("admin %s: %w", name, err)
	}
	ma.Options = opts
	return nil
}

// Get looks up "schema.entity" first, then "entity".
func (s *Site) Get(schema, entity string) (*ModelAdmin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if schema != "" {
		if ma, ok := s.admins[schema+"."+entity]; ok {
			return ma, nil
		}
	}
	if ma, ok := s.admins[entity]; ok {
		return ma, nil
	}
	return nil, fmt.Errorf("admin %s not found", entity)
}

// Names returns the registered admin names in sorted order.
func (s *Site) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.admins))
	for name := range s.admins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sameModel(a, b interface{}) bool {
	metaA, errA := reflection.GetModelMeta(a)
	metaB, errB := reflection.GetModelMeta(b)
	return errA == nil && errB == nil && metaA.Type == metaB.Type
}

func validateOptions(model interface{}, opts changelist.Options) error {
	meta, err := reflection.GetModelMeta(model)
	if err != nil {
		return err
	}
	columns := common.NewColumnValidator(model).AddColumns(meta.Columns()...).AddRelations(meta.RelationNames()...)
	for _, f := range meta.Fields {
		columns.AddColumns(f.Name)
	}

	if err := columns.ValidateColumns(opts.ListFilter); err != nil {
		return fmt.Errorf("list filter: %w", err)
	}
	if err := columns.ValidateColumns(opts.SearchFields); err != nil {
		return fmt.Errorf("search fields: %w", err)
	}
	for name := range opts.Columns {
		columns.AddColumns(name)
	}
	if err := columns.ValidateColumns(opts.ListDisplay); err != nil {
		return fmt.Errorf("list display: %w", err)
	}
	return nil
}
