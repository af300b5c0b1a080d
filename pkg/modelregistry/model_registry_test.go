package modelregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type author struct {
	ID   int
	Name string
}

type book struct {
	ID    int
	Title string
}

func TestRegisterModel(t *testing.T) {
	tests := []struct {
		name    string
		model   interface{}
		wantErr bool
	}{
		{"struct", author{}, false},
		{"pointer", &author{}, false},
		{"slice of pointers", []*author{}, false},
		{"nil", nil, true},
		{"not a struct", 42, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewModelRegistry()
			err := r.RegisterModel("authors", tt.model)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			model, err := r.GetModel("authors")
			require.NoError(t, err)
			assert.IsType(t, author{}, model)
		})
	}
}

func TestRegisterModelDuplicate(t *testing.T) {
	r := NewModelRegistry()
	require.NoError(t, r.RegisterModel("authors", author{}))
	assert.Error(t, r.RegisterModel("authors", book{}))
}

func TestGetModelByEntity(t *testing.T) {
	r := NewModelRegistry()
	require.NoError(t, r.RegisterModel("library.books", book{}))
	require.NoError(t, r.RegisterModel("authors", author{}))

	model, err := r.GetModelByEntity("library", "books")
	require.NoError(t, err)
	assert.IsType(t, book{}, model)

	model, err = r.GetModelByEntity("library", "authors")
	require.NoError(t, err)
	assert.IsType(t, author{}, model)

	_, err = r.GetModelByEntity("", "books")
	assert.Error(t, err)
}

func TestNameOfAndNames(t *testing.T) {
	r := NewModelRegistry()
	require.NoError(t, r.RegisterModel("books", book{}))
	require.NoError(t, r.RegisterModel("authors", &author{}))

	name, ok := r.NameOf(&author{})
	assert.True(t, ok)
	assert.Equal(t, "authors", name)

	name, ok = r.NameOf([]book{})
	assert.True(t, ok)
	assert.Equal(t, "books", name)

	_, ok = r.NameOf(struct{}{})
	assert.False(t, ok)

	assert.Equal(t, []string{"authors", "books"}, r.Names())
	assert.Len(t, r.GetAllModels(), 2)
}
