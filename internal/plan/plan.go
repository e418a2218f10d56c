// Package plan builds the logical relational-algebra tree the parser
// and validator lower a query into. Nodes live as values in a single
// arena slice and refer to each other by index rather than pointer, so
// a rewrite (as internal/rbo performs) can clone or replace a subtree
// without untangling shared ownership.
package plan

// NodeKind is one of the eight relational-algebra operators the spec
// requires: TableScan, Filter, Project, Join, Aggregate, Sort, Limit,
// Union.
type NodeKind int

const (
	TableScan NodeKind = iota
	Filter
	Project
	Join
	Aggregate
	Sort
	Limit
	Union
)

func (k NodeKind) String() string {
	switch k {
	case TableScan:
		return "TableScan"
	case Filter:
		return "Filter"
	case Project:
		return "Project"
	case Join:
		return "Join"
	case Aggregate:
		return "Aggregate"
	case Sort:
		return "Sort"
	case Limit:
		return "Limit"
	case Union:
		return "Union"
	default:
		return "Unknown"
	}
}

// JoinType enumerates the join variants HashJoin supports.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
)

// ColumnType is the row-type metadata every node carries for its output
// schema, independent of catalog.ColumnType so this package has no
// dependency on the catalog.
type ColumnType string

// OutputColumn names one column of a node's output row type.
type OutputColumn struct {
	Name string
	Type ColumnType
}

// SortKey is one ORDER BY term.
type SortKey struct {
	Column     string
	Descending bool
}

// Aggregation is one aggregate expression in an Aggregate node.
type Aggregation struct {
	Function string // SUM, COUNT, AVG, MIN, MAX
	Column   string
	Alias    string
}

// Node is one arena entry. Only the fields relevant to Kind are
// populated; the rest stay at their zero value. Inputs holds the arena
// indices of this node's children (0 for leaves like TableScan, 1 for
// unary operators, 2+ for Join/Union).
type Node struct {
	ID      int
	Kind    NodeKind
	Inputs  []int
	Columns []OutputColumn

	// TableScan
	Source string // data source ID
	SQL    string // rendered source-native SQL for this scan

	// Filter
	Predicate string

	// Project
	Exprs []string

	// Join
	LeftKey, RightKey string
	JoinType          JoinType

	// Aggregate
	GroupKeys []string
	Aggs      []Aggregation

	// Sort
	SortKeys []SortKey
	TopK     int // 0 means unbounded

	// Limit
	Count, Offset int
}

// Arena owns every node of one logical plan. Index 0 is never a valid
// node index; AddX methods return indices starting at 1 so a zero value
// reliably means "no node" in optional fields.
type Arena struct {
	Nodes []Node
	Root  int
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{Nodes: make([]Node, 1)} // index 0 reserved
}

func (a *Arena) add(n Node) int {
	n.ID = len(a.Nodes)
	a.Nodes = append(a.Nodes, n)
	return n.ID
}

// Get returns the node at idx. Panics on an out-of-range index, since an
// index into this arena is only ever produced by the arena itself.
func (a *Arena) Get(idx int) *Node {
	return &a.Nodes[idx]
}

// AddTableScan appends a leaf scan node.
func (a *Arena) AddTableScan(source, sql string, columns []OutputColumn) int {
	return a.add(Node{Kind: TableScan, Source: source, SQL: sql, Columns: columns})
}

// AddFilter appends a Filter node over input.
func (a *Arena) AddFilter(input int, predicate string) int {
	return a.add(Node{Kind: Filter, Inputs: []int{input}, Predicate: predicate, Columns: a.Get(input).Columns})
}

// AddProject appends a Project node over input, narrowing its output
// columns to exprs (a list of output column names/expressions).
func (a *Arena) AddProject(input int, exprs []string, columns []OutputColumn) int {
	return a.add(Node{Kind: Project, Inputs: []int{input}, Exprs: exprs, Columns: columns})
}

// AddJoin appends a Join node over left and right.
func (a *Arena) AddJoin(left, right int, leftKey, rightKey string, joinType JoinType) int {
	columns := append(append([]OutputColumn{}, a.Get(left).Columns...), a.Get(right).Columns...)
	return a.add(Node{Kind: Join, Inputs: []int{left, right}, LeftKey: leftKey, RightKey: rightKey, JoinType: joinType, Columns: columns})
}

// AddAggregate appends an Aggregate node over input.
func (a *Arena) AddAggregate(input int, groupKeys []string, aggs []Aggregation, columns []OutputColumn) int {
	return a.add(Node{Kind: Aggregate, Inputs: []int{input}, GroupKeys: groupKeys, Aggs: aggs, Columns: columns})
}

// AddSort appends a Sort node over input. topK of 0 means the sort is
// unbounded; a non-zero topK lets the executor avoid materializing the
// full input.
func (a *Arena) AddSort(input int, keys []SortKey, topK int) int {
	return a.add(Node{Kind: Sort, Inputs: []int{input}, SortKeys: keys, TopK: topK, Columns: a.Get(input).Columns})
}

// AddLimit appends a Limit node over input.
func (a *Arena) AddLimit(input int, count, offset int) int {
	return a.add(Node{Kind: Limit, Inputs: []int{input}, Count: count, Offset: offset, Columns: a.Get(input).Columns})
}

// AddUnion appends a Union node over two or more inputs, all of which
// must share the same output row type.
func (a *Arena) AddUnion(inputs []int) int {
	var columns []OutputColumn
	if len(inputs) > 0 {
		columns = a.Get(inputs[0]).Columns
	}
	return a.add(Node{Kind: Union, Inputs: inputs, Columns: columns})
}

// SetRoot marks idx as the plan's output node.
func (a *Arena) SetRoot(idx int) { a.Root = idx }

// Walk visits every node reachable from root in post-order (children
// before parents), the order a pushdown rewrite or cost estimator wants
// to process the tree in.
func (a *Arena) Walk(root int, visit func(idx int, n *Node)) {
	if root == 0 {
		return
	}
	n := a.Get(root)
	for _, child := range n.Inputs {
		a.Walk(child, visit)
	}
	visit(root, n)
}

// Clone deep-copies the arena, used before a destructive rewrite pass
// so the caller can compare before/after or roll back.
func (a *Arena) Clone() *Arena {
	cp := &Arena{Nodes: make([]Node, len(a.Nodes)), Root: a.Root}
	for i, n := range a.Nodes {
		cn := n
		cn.Inputs = append([]int(nil), n.Inputs...)
		cn.Columns = append([]OutputColumn(nil), n.Columns...)
		cn.Exprs = append([]string(nil), n.Exprs...)
		cn.GroupKeys = append([]string(nil), n.GroupKeys...)
		cn.Aggs = append([]Aggregation(nil), n.Aggs...)
		cn.SortKeys = append([]SortKey(nil), n.SortKeys...)
		cp.Nodes[i] = cn
	}
	return cp
}
