// Package physical turns an optimized logical plan into a physical
// execution plan: a set of stages, the data source (if any) each one
// pushes down to, and the dependency graph between them. It generalizes
// internal/federation/decomposer.go's SubQuery/JoinStep/JoinPlan shape
// into a partitioning driven directly by the plan.Arena tree instead of
// a flat table list.
package physical

import "github.com/canonica-labs/canonica/internal/plan"

// StageKind distinguishes a stage whose whole subtree runs inside one
// data source's own engine (rendered to that source's SQL dialect) from
// one that must run in the federation executor because it spans more
// than one source.
type StageKind int

const (
	Pushdown StageKind = iota
	Federation
)

// Stage is one unit of the physical plan: a contiguous subtree of the
// logical plan that executes as a whole, either pushed down to Source
// or run in-memory by the federation executor.
type Stage struct {
	ID            int
	Kind          StageKind
	Source        string // set only for Kind == Pushdown
	Nodes         []int  // arena indices covered by this stage, root last
	Root          int    // the arena index this stage outputs
	DependsOn     []int  // stage IDs that must complete before this one
	EstimatedRows int64
}

// RowEstimator supplies a row estimate for an arena node, typically
// backed by internal/cbo's Winner memo.
type RowEstimator func(nodeIdx int) int64

// Graph is the physical plan: every stage plus which one is the root
// (produces the query's final output).
type Graph struct {
	Stages []*Stage
	Root   int // stage ID
}

// Partition builds the stage graph for the arena rooted at root. A
// node joins its child's stage when the child is a Pushdown stage and
// the node references only that child's data source; any node spanning
// more than one source (a Union or Join across sources, or an operator
// sitting above their lowest common ancestor) starts a new Federation
// stage depending on every stage beneath it.
func Partition(a *plan.Arena, root int, estimatedRows RowEstimator) *Graph {
	g := &Graph{}
	stageOf := make(map[int]int) // arena node idx -> stage ID
	sourceOf := make(map[int]string)

	nextID := 0
	newStage := func(kind StageKind, source string, nodeIdx int, dependsOn []int) int {
		id := nextID
		nextID++
		g.Stages = append(g.Stages, &Stage{
			ID:            id,
			Kind:          kind,
			Source:        source,
			Nodes:         []int{nodeIdx},
			Root:          nodeIdx,
			DependsOn:     dependsOn,
			EstimatedRows: estimatedRows(nodeIdx),
		})
		return id
	}

	a.Walk(root, func(idx int, n *plan.Node) {
		switch n.Kind {
		case plan.TableScan:
			sourceOf[idx] = n.Source
			stageOf[idx] = newStage(Pushdown, n.Source, idx, nil)
			return
		}

		if len(n.Inputs) == 0 {
			return
		}

		// Determine whether every child comes from the same single
		// data source and is itself still a pushdown stage for it.
		uniform := true
		var source string
		for i, childIdx := range n.Inputs {
			childSource, hasSource := sourceOf[childIdx]
			childStage := g.Stages[stageOf[childIdx]]
			if !hasSource || childStage.Kind != Pushdown {
				uniform = false
				break
			}
			if i == 0 {
				source = childSource
			} else if childSource != source {
				uniform = false
				break
			}
		}

		if uniform {
			// Extend the (single) child stage in place.
			stageID := stageOf[n.Inputs[0]]
			stage := g.Stages[stageID]
			stage.Nodes = append(stage.Nodes, idx)
			stage.Root = idx
			stage.EstimatedRows = estimatedRows(idx)
			sourceOf[idx] = source
			stageOf[idx] = stageID
			return
		}

		// Federation boundary: depend on every distinct child stage.
		depSet := make(map[int]bool)
		for _, childIdx := range n.Inputs {
			depSet[stageOf[childIdx]] = true
		}
		deps := make([]int, 0, len(depSet))
		for id := range depSet {
			deps = append(deps, id)
		}
		stageOf[idx] = newStage(Federation, "", idx, deps)
	})

	g.Root = stageOf[root]
	return g
}

// TopoOrder returns stage IDs in an order where every stage appears
// after all stages it depends on, the order a scheduler must run them
// in. Stages with no dependency edge between them may be
// interleaved or run in parallel; this just picks one valid order.
func (g *Graph) TopoOrder() []int {
	visited := make(map[int]bool)
	var order []int
	var visit func(id int)
	visit = func(id int) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.Stages[id].DependsOn {
			visit(dep)
		}
		order = append(order, id)
	}
	for _, s := range g.Stages {
		visit(s.ID)
	}
	return order
}
