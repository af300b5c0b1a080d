package testmodels

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"gorm.io/gorm"

	"github.com/bitechdev/changelist/pkg/admin"
	"github.com/bitechdev/changelist/pkg/fields"
	"github.com/bitechdev/changelist/pkg/modelregistry"
)

func openSeeded(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Seed(db))
	return db
}

func TestSeedIsIdempotent(t *testing.T) {
	db := openSeeded(t)
	require.NoError(t, Seed(db))

	var count int64
	require.NoError(t, db.Model(&Employee{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)

	var ada Employee
	require.NoError(t, db.First(&ada, 1).Error)
	assert.Equal(t, fields.List[string]{"go", "sql"}, ada.Skills)
	assert.Equal(t, Address{Street: "Dam 1", City: "Amsterdam", Postcode: "1012"}, ada.Address.Data)

	var chen Employee
	require.NoError(t, db.First(&chen, 3).Error)
	assert.Equal(t, fields.List[string]{}, chen.Skills)
	assert.Equal(t, Address{}, chen.Address.Data)
}

type employeeList struct {
	Success bool `json:"success"`
	Data    struct {
		Rows    []Employee `json:"rows"`
		Filters []struct {
			Title   string `json:"title"`
			Choices []struct {
				Display string `json:"display"`
			} `json:"choices"`
		} `json:"filters"`
	} `json:"data"`
}

func TestEmployeeAdmin(t *testing.T) {
	db := openSeeded(t)
	site := admin.NewSite(modelregistry.NewModelRegistry())
	require.NoError(t, Register(site))
	assert.Equal(t, []string{"departments", "employees", "projects"}, site.Names())

	r := mux.NewRouter()
	admin.SetupMuxRoutes(r, admin.NewHandlerWithGORM(db, site))
	get := func(target string) employeeList {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out employeeList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.True(t, out.Success)
		return out
	}
	lastNames := func(rows []Employee) []string {
		names := make([]string, 0, len(rows))
		for _, row := range rows {
			names = append(names, row.LastName)
		}
		return names
	}

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"ordering", "/admin/employees/", []string{"Greenwood", "Li", "Smith", "Smith", "Woodward"}},
		{"related search", "/admin/employees/?q=engineering", []string{"Greenwood", "Li", "Woodward"}},
		{"filters", "/admin/employees/?status__exact=active&department__id__exact=1", []string{"Greenwood", "Woodward"}},
		{"no department", "/admin/employees/?department__isnull=True", []string{"Smith"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lastNames(get(tt.target).Data.Rows))
		})
	}

	out := get("/admin/employees/?q=wood")
	require.Len(t, out.Data.Rows, 1)
	ada := out.Data.Rows[0]
	require.NotNil(t, ada.Department)
	assert.Equal(t, "Engineering", ada.Department.Name)
	assert.Equal(t, "Amsterdam", ada.Address.Data.City)
	assert.Equal(t, fields.List[string]{"go", "sql"}, ada.Skills)

	filters := make(map[string][]string)
	for _, f := range out.Data.Filters {
		for _, c := range f.Choices {
			filters[f.Title] = append(filters[f.Title], c.Display)
		}
	}
	assert.Equal(t, map[string][]string{
		"department": {"All", "Engineering", "Operations", "Finance", "(None)"},
		"status":     {"All", "Active", "On leave", "Left"},
		"active":     {"All", "Yes", "No"},
		"title":      {"All", "Contractor", "Director", "Engineer", "Operator"},
	}, filters)
}

func TestEmployeeAdminWithBun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hr.db")
	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Seed(gormDB))
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	site := admin.NewSite(modelregistry.NewModelRegistry())
	require.NoError(t, Register(site))
	r := admin.NewStandardBunRouter()
	admin.SetupBunRouterRoutes(r, admin.NewHandlerWithBun(db, site))

	rec := httptest.NewRecorder()
	r.GetBunRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/employees/?q=engineering&status__exact=active", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out employeeList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Success)
	require.Len(t, out.Data.Rows, 2)
	assert.Equal(t, "Greenwood", out.Data.Rows[0].LastName)
	assert.Equal(t, "Woodward", out.Data.Rows[1].LastName)
	require.NotNil(t, out.Data.Rows[1].Department)
	assert.Equal(t, "ENG", out.Data.Rows[1].Department.Code)
	assert.Equal(t, fields.List[string]{"go", "sql"}, out.Data.Rows[1].Skills)
}
