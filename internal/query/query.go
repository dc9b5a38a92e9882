// Package query provides the read-side query model: conditions, the
// per-table read filter registry, and the query builder that injects
// registered filters into every select unless the caller opts out.
package query

// Op defines the comparison kinds supported by conditions.
type Op string

const (
	OpEq       Op = "eq"
	OpNotEq    Op = "neq"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpIn       Op = "in"
	OpNotIn    Op = "nin"
	OpIsNull   Op = "null"
	OpNotNull  Op = "not_null"
	OpContains Op = "contains" // ILIKE %val%
)

// Condition represents one predicate line. Conditions attached to a query
// (and those injected from the filter registry) combine with logical AND.
type Condition struct {
	Field string `json:"field"`
	Op    Op     `json:"operator"`
	Value any    `json:"value"`
}

// Eq builds an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// NotEq builds an inequality condition.
func NotEq(field string, value any) Condition {
	return Condition{Field: field, Op: OpNotEq, Value: value}
}

// In builds a membership condition.
func In(field string, value any) Condition {
	return Condition{Field: field, Op: OpIn, Value: value}
}

// IsNull builds a null check.
func IsNull(field string) Condition {
	return Condition{Field: field, Op: OpIsNull}
}

// NotDeleted is the default read filter predicate for soft-deletable tables:
// only rows whose deletion mark is unset are visible.
func NotDeleted() Condition {
	return Eq("deletion_mark", false)
}

// Query describes a select against one table. Zero or more caller conditions
// combine with the table's registered read filter; Unfiltered suppresses the
// filter for this query only.
type Query struct {
	table      string
	conds      []Condition
	unfiltered bool
	orderBy    string
	limit      int
	offset     int
}

// New creates a query against the given table.
func New(table string) *Query {
	return &Query{table: table}
}

// Table returns the target table name.
func (q *Query) Table() string {
	return q.table
}

// Where appends caller conditions (combined with AND).
func (q *Query) Where(conds ...Condition) *Query {
	q.conds = append(q.conds, conds...)
	return q
}

// Unfiltered suppresses the registered read filter for this query.
// It does not affect any other query against the same table.
func (q *Query) Unfiltered() *Query {
	q.unfiltered = true
	return q
}

// OrderBy specifies sorting (e.g., "name", "-created_at" for descending).
func (q *Query) OrderBy(field string) *Query {
	q.orderBy = field
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Compiled is the resolved form handed to storage engines: the registered
// read filter (if any, and not suppressed) is already merged into Conditions.
type Compiled struct {
	Table      string
	Conditions []Condition
	OrderBy    string
	Limit      int
	Offset     int
}

// Compile resolves the query against the filter registry. The registered
// filter conditions come first so generated SQL is stable; callers cannot
// bypass them except through Unfiltered.
func (q *Query) Compile(filters *Filters) Compiled {
	var conds []Condition
	if !q.unfiltered && filters != nil {
		conds = append(conds, filters.For(q.table)...)
	}
	conds = append(conds, q.conds...)

	return Compiled{
		Table:      q.table,
		Conditions: conds,
		OrderBy:    q.orderBy,
		Limit:      q.limit,
		Offset:     q.offset,
	}
}
