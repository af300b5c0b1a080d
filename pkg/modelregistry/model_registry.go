package modelregistry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// DefaultModelRegistry maps admin entity names ("employees", "hr.employees")
// to zero-value model structs.
type DefaultModelRegistry struct {
	models map[string]interface{}
	names  map[reflect.Type]string
	mutex  sync.RWMutex
}

// Global default registry instance
var defaultRegistry = NewModelRegistry()

// NewModelRegistry creates a new model registry
func NewModelRegistry() *DefaultModelRegistry {
	return &DefaultModelRegistry{
		models: make(map[string]interface{}),
		names:  make(map[reflect.Type]string),
	}
}

// RegisterModel stores model under name. Pointers, slices and arrays are
// unwrapped so the registry always holds a non-pointer struct value.
func (r *DefaultModelRegistry) RegisterModel(name string, model interface{}) error {
	modelType := reflect.TypeOf(model)
	if modelType == nil {
		return fmt.Errorf("model cannot be nil")
	}
	originalType := modelType
	for modelType.Kind() == reflect.Ptr || modelType.Kind() == reflect.Slice || modelType.Kind() == reflect.Array {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return fmt.Errorf("model must be a struct or pointer to struct, got %s", originalType.String())
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.models[name]; exists {
		return fmt.Errorf("model %s already registered", name)
	}

	r.models[name] = reflect.New(modelType).Elem().Interface()
	if _, exists := r.names[modelType]; !exists {
		r.names[modelType] = name
	}
	return nil
}

func (r *DefaultModelRegistry) GetModel(name string) (interface{}, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	model, exists := r.models[name]
	if !exists {
		return nil, fmt.Errorf("model %s not found", name)
	}

	return model, nil
}

func (r *DefaultModelRegistry) GetAllModels() map[string]interface{} {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make(map[string]interface{}, len(r.models))
	for k, v := range r.models {
		result[k] = v
	}
	return result
}

// GetModelByEntity looks up "schema.entity" first, then "entity".
func (r *DefaultModelRegistry) GetModelByEntity(schema, entity string) (interface{}, error) {
	if schema != "" {
		if model, err := r.GetModel(fmt.Sprintf("%s.%s", schema, entity)); err == nil {
			return model, nil
		}
	}
	return r.GetModel(entity)
}

// NameOf returns the name a model type was first registered under.
func (r *DefaultModelRegistry) NameOf(model interface{}) (string, bool) {
	typ := reflect.TypeOf(model)
	for typ != nil && (typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice || typ.Kind() == reflect.Array) {
		typ = typ.Elem()
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	name, ok := r.names[typ]
	return name, ok
}

// Names returns the registered names in sorted order.
func (r *DefaultModelRegistry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Global convenience functions using the default registry

// RegisterModel registers a model with the default global registry
func RegisterModel(model interface{}, name string) error {
	return defaultRegistry.RegisterModel(name, model)
}

// GetModelByName retrieves a model from the default global registry by name
func GetModelByName(name string) (interface{}, error) {
	return defaultRegistry.GetModel(name)
}

// Default returns the process-wide registry.
func Default() *DefaultModelRegistry {
	return defaultRegistry
}
