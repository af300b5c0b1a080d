// Package testmodels holds a small HR schema used by the demo admin server
// and by integration tests.
package testmodels

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bitechdev/changelist/pkg/admin"
	"github.com/bitechdev/changelist/pkg/changelist"
	"github.com/bitechdev/changelist/pkg/fields"
)

// Department represents a department in the organization
type Department struct {
	ID          int64     `json:"id" gorm:"primaryKey" bun:"id,pk"`
	Code        string    `json:"code" gorm:"uniqueIndex"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Department) TableName() string {
	return "departments"
}

func (d Department) String() string {
	return d.Name
}

func (Department) Ordering() []string {
	return []string{"name"}
}

// Address is stored inside the employee row.
type Address struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
}

// Employee represents an employee in the system
type Employee struct {
	ID           int64                    `json:"id" gorm:"primaryKey" bun:"id,pk"`
	FirstName    string                   `json:"first_name"`
	LastName     string                   `json:"last_name" admin:"title=Surname"`
	Email        string                   `json:"email" gorm:"uniqueIndex"`
	Title        string                   `json:"title"`
	Status       string                   `json:"status" admin:"choices=active:Active|leave:On leave|left:Left"`
	Active       bool                     `json:"active"`
	Salary       float64                  `json:"salary"`
	HireDate     time.Time                `json:"hire_date"`
	DepartmentID *int64                   `json:"department_id"`
	ManagerID    *int64                   `json:"manager_id"`
	Skills       fields.List[string]      `json:"skills" gorm:"type:text"`
	Address      fields.Embedded[Address] `json:"address" gorm:"type:text"`

	// Relations
	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID;references:ID" bun:"rel:belongs-to,join:department_id=id"`
	Manager    *Employee   `json:"manager,omitempty" gorm:"foreignKey:ManagerID;references:ID" bun:"rel:belongs-to,join:manager_id=id"`
}

func (Employee) TableName() string {
	return "employees"
}

func (e Employee) String() string {
	return e.FirstName + " " + e.LastName
}

func (Employee) Ordering() []string {
	return []string{"last_name", "first_name"}
}

// Project represents a project in the organization
type Project struct {
	ID           int64      `json:"id" gorm:"primaryKey" bun:"id,pk"`
	Code         string     `json:"code" gorm:"uniqueIndex"`
	Name         string     `json:"name"`
	Status       string     `json:"status" admin:"choices=planned:Planned|running:Running|done:Done"`
	Budget       float64    `json:"budget"`
	DepartmentID int64      `json:"department_id"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`

	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID;references:ID" bun:"rel:belongs-to,join:department_id=id"`
}

func (Project) TableName() string {
	return "projects"
}

func (p Project) String() string {
	return p.Name
}

func (Project) Ordering() []string {
	return []string{"-start_date"}
}

// GetTestModels returns a list of all test model instances
func GetTestModels() []interface{} {
	return []interface{}{
		Department{},
		Employee{},
		Project{},
	}
}

// Register adds the admins of the HR schema to site.
func Register(site *admin.Site) error {
	admins := []struct {
		name  string
		model interface{}
		opts  changelist.Options
	}{
		{"departments", Department{}, changelist.Options{
			ListDisplay:  []string{"code", "name"},
			SearchFields: []string{"=code", "name"},
		}},
		{"employees", Employee{}, changelist.Options{
			ListDisplay:       []string{"last_name", "first_name", "department", "status", "active"},
			ListFilter:        []string{"department", "status", "active", "title"},
			SearchFields:      []string{"^last_name", "first_name", "email", "department__name"},
			ListSelectRelated: true,
			ListPerPage:       25,
		}},
		{"projects", Project{}, changelist.Options{
			ListDisplay:  []string{"code", "name", "department", "status", "budget"},
			ListFilter:   []string{"department", "status"},
			SearchFields: []string{"name", "department__code"},
		}},
	}
	for _, a := range admins {
		if _, err := site.Register(a.name, a.model, a.opts); err != nil {
			return err
		}
	}
	return nil
}

// Seed creates the schema and fills it with sample rows when the
// departments table is empty.
func Seed(db *gorm.DB) error {
	if err := db.AutoMigrate(GetTestModels()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	var count int64
	if err := db.Model(&Department{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	id := func(v int64) *int64 { return &v }

	departments := []*Department{
		{ID: 1, Code: "ENG", Name: "Engineering", Description: "Product engineering"},
		{ID: 2, Code: "OPS", Name: "Operations", Description: "Infrastructure and support"},
		{ID: 3, Code: "FIN", Name: "Finance"},
	}
	employees := []*Employee{
		{ID: 1, FirstName: "Ada", LastName: "Woodward", Email: "ada@example.com", Title: "Director", Status: "active", Active: true, Salary: 9100, HireDate: day(2015, 3, 2), DepartmentID: id(1)},
		{ID: 2, FirstName: "Brian", LastName: "Greenwood", Email: "brian@example.com", Title: "Engineer", Status: "active", Active: true, Salary: 6100, HireDate: day(2019, 8, 19), DepartmentID: id(1), ManagerID: id(1)},
		{ID: 3, FirstName: "Chen", LastName: "Li", Email: "chen@example.com", Title: "Engineer", Status: "leave", Salary: 5800, HireDate: day(2021, 1, 11), DepartmentID: id(1), ManagerID: id(1)},
		{ID: 4, FirstName: "Dana", LastName: "Smith", Email: "dana@example.com", Title: "Operator", Status: "active", Active: true, Salary: 4700, HireDate: day(2018, 5, 7), DepartmentID: id(2)},
		{ID: 5, FirstName: "Eve", LastName: "Smith", Email: "eve@example.com", Title: "Contractor", Status: "left", Salary: 3900, HireDate: day(2017, 10, 30)},
	}
	employees[0].Skills = fields.List[string]{"go", "sql"}
	employees[0].Address.Data = Address{Street: "Dam 1", City: "Amsterdam", Postcode: "1012"}
	employees[1].Skills = fields.List[string]{"go"}
	employees[3].Address.Data = Address{Street: "Kade 4", City: "Rotterdam"}

	projects := []*Project{
		{ID: 1, Code: "CL-1", Name: "Change lists", Status: "running", Budget: 120000, DepartmentID: 1, StartDate: day(2024, 2, 1)},
		{ID: 2, Code: "DC-2", Name: "Datacenter move", Status: "planned", Budget: 450000, DepartmentID: 2, StartDate: day(2025, 1, 6)},
		{ID: 3, Code: "AU-3", Name: "Audit", Status: "done", Budget: 30000, DepartmentID: 3, StartDate: day(2023, 4, 3)},
	}
	auditEnd := day(2023, 9, 29)
	projects[2].EndDate = &auditEnd

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(departments).Error; err != nil {
			return err
		}
		if err := tx.Create(employees).Error; err != nil {
			return err
		}
		return tx.Create(projects).Error
	})
}
