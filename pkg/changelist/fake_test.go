package changelist

import (
	"context"

	"github.com/bitechdev/changelist/pkg/common"
)

type clDepartment struct {
	ID   int64  `bun:"id,pk" json:"id"`
	Code string `bun:"code" json:"code"`
	Name string `bun:"name" json:"name"`
}

func (clDepartment) TableName() string { return "departments" }

type clEmployee struct {
	ID           int64         `bun:"id,pk" json:"id"`
	FirstName    string        `bun:"first_name" json:"first_name"`
	LastName     string        `bun:"last_name" json:"last_name"`
	Active       bool          `bun:"active" json:"active"`
	Status       string        `bun:"status" json:"status" admin:"choices=active:Active|left:Left"`
	Salary       float64       `bun:"salary" json:"salary"`
	DepartmentID *int64        `bun:"department_id" json:"department_id"`
	Department   *clDepartment `bun:"rel:belongs-to,join:department_id=id" json:"department,omitempty"`
}

func (clEmployee) TableName() string { return "employees" }

func (clEmployee) Ordering() []string { return []string{"last_name"} }

// clUnit reads the departments table with its employees as a has-many.
type clUnit struct {
	ID        int64         `bun:"id,pk" json:"id"`
	Code      string        `bun:"code" json:"code"`
	Employees []*clEmployee `bun:"rel:has-many,join:id=department_id" gorm:"foreignKey:DepartmentID" json:"employees,omitempty"`
}

func (clUnit) TableName() string { return "departments" }

// fakeDB records every query it builds. Count answers baseCount for
// queries without WHERE clauses and filteredCount otherwise.
type fakeDB struct {
	driver        string
	baseCount     int
	filteredCount int
	queries       []*fakeQuery
}

func (d *fakeDB) NewSelect() common.SelectQuery {
	q := &fakeQuery{db: d, limit: -1, offset: -1}
	d.queries = append(d.queries, q)
	return q
}

func (d *fakeDB) DriverName() string {
	if d.driver == "" {
		return "sqlite"
	}
	return d.driver
}

type fakeQuery struct {
	db       *fakeDB
	model    interface{}
	columns  []string
	wheres   []common.Condition
	orders   []string
	preloads []string
	distinct bool
	limit    int
	offset   int
	scanned  bool
	counted  bool
}

func (q *fakeQuery) Model(model interface{}) common.SelectQuery {
	q.model = model
	return q
}

func (q *fakeQuery) Table(string) common.SelectQuery { return q }

func (q *fakeQuery) Column(columns ...string) common.SelectQuery {
	q.columns = append(q.columns, columns...)
	return q
}

func (q *fakeQuery) Where(query string, args ...interface{}) common.SelectQuery {
	q.wheres = append(q.wheres, common.Condition{SQL: query, Args: args})
	return q
}

func (q *fakeQuery) Preload(relation string) common.SelectQuery {
	q.preloads = append(q.preloads, relation)
	return q
}

func (q *fakeQuery) Distinct() common.SelectQuery {
	q.distinct = true
	return q
}

func (q *fakeQuery) Order(order string) common.SelectQuery {
	q.orders = append(q.orders, order)
	return q
}

func (q *fakeQuery) Limit(n int) common.SelectQuery {
	q.limit = n
	return q
}

func (q *fakeQuery) Offset(n int) common.SelectQuery {
	q.offset = n
	return q
}

func (q *fakeQuery) TableAlias() string { return "t" }

func (q *fakeQuery) Scan(context.Context, interface{}) error {
	q.scanned = true
	return nil
}

func (q *fakeQuery) Count(context.Context) (int, error) {
	q.counted = true
	if len(q.wheres) == 0 {
		return q.db.baseCount, nil
	}
	return q.db.filteredCount, nil
}

// lastScan returns the most recent query that was scanned.
func (d *fakeDB) lastScan() *fakeQuery {
	for i := len(d.queries) - 1; i >= 0; i-- {
		if d.queries[i].scanned {
			return d.queries[i]
		}
	}
	return nil
}

func (d *fakeDB) countQueries() []*fakeQuery {
	var counted []*fakeQuery
	for _, q := range d.queries {
		if q.counted {
			counted = append(counted, q)
		}
	}
	return counted
}
