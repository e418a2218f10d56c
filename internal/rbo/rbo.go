// Package rbo is the rule-based optimizer: a fixed-point driver over a
// set of plan.Arena rewrite rules, generalizing the ad hoc pushdown
// logic in internal/federation/pushdown.go into rules that operate on
// the arena-indexed logical plan tree directly.
package rbo

import (
	"strings"

	"github.com/canonica-labs/canonica/internal/plan"
)

// Rule rewrites one node of the arena in place and reports whether it
// changed anything. Rules must be safe to call repeatedly (idempotent
// once no further rewrite applies) so the fixed-point driver can keep
// applying the whole rule set until a pass makes no changes.
type Rule interface {
	Name() string
	Apply(a *plan.Arena, nodeIdx int) bool
}

// DefaultRules returns the default rule set: filter into join,
// predicate pushdown, limit pushdown (with top-k), and aggregate split
// across a Union. There is no projection-pushdown rule; join reorder is
// applied separately through ReorderJoins.
func DefaultRules() []Rule {
	return []Rule{
		&filterIntoJoin{},
		&predicatePushdown{},
		&limitPushdown{},
		&aggregateSplit{},
	}
}

// MaxIterations bounds the fixed-point driver so a rule bug (one that
// oscillates instead of converging) cannot hang the planner.
const MaxIterations = 64

// Optimize applies rules to every node of a reachable from root
// repeatedly until a full pass makes no changes, or MaxIterations is
// hit.
func Optimize(a *plan.Arena, rules []Rule) int {
	applied := 0
	for iter := 0; iter < MaxIterations; iter++ {
		changed := false
		a.Walk(a.Root, func(idx int, n *plan.Node) {
			for _, r := range rules {
				if r.Apply(a, idx) {
					changed = true
					applied++
				}
			}
		})
		if !changed {
			break
		}
	}
	return applied
}

// filterIntoJoin clears the predicate of a Filter sitting directly on a
// Join when that predicate is exactly the join's own key equality
// ("leftKey = rightKey"), leaving a pass-through Filter. Any other
// predicate stays in the Filter above the Join; no filter condition is
// merged into the join's condition.
type filterIntoJoin struct{}

func (filterIntoJoin) Name() string { return "filter-into-join" }

func (filterIntoJoin) Apply(a *plan.Arena, idx int) bool {
	n := a.Get(idx)
	if n.Kind != plan.Filter || len(n.Inputs) != 1 {
		return false
	}
	child := a.Get(n.Inputs[0])
	if child.Kind != plan.Join {
		return false
	}
	if !strings.Contains(n.Predicate, "=") {
		return false
	}
	// Drop the filter predicate if it restates the join's own key
	// equality; otherwise leave the Filter above the Join unchanged.
	parts := strings.SplitN(n.Predicate, "=", 2)
	if len(parts) != 2 {
		return false
	}
	left := strings.TrimSpace(parts[0])
	right := strings.TrimSpace(parts[1])
	if child.LeftKey == left && child.RightKey == right {
		// Already the join's own key; the Filter is redundant.
		*n = plan.Node{ID: n.ID, Kind: plan.Filter, Inputs: n.Inputs, Predicate: "", Columns: n.Columns}
		return true
	}
	return false
}

// predicatePushdown moves a Filter below an intervening Project when the
// filter text mentions at least one column name the Project carries
// (referencesOnly checks for any match, not that every referenced
// column is carried), so the filter runs closer to the scan.
type predicatePushdown struct{}

func (predicatePushdown) Name() string { return "predicate-pushdown" }

func (predicatePushdown) Apply(a *plan.Arena, idx int) bool {
	n := a.Get(idx)
	if n.Kind != plan.Filter || len(n.Inputs) != 1 {
		return false
	}
	child := a.Get(n.Inputs[0])
	if child.Kind != plan.Project || len(child.Inputs) != 1 {
		return false
	}
	if !referencesOnly(n.Predicate, child.Columns) {
		return false
	}

	grandchild := child.Inputs[0]
	// Swap: Filter now sits directly under the scan-side input, Project
	// stays on top, unchanged in shape but now filtering fewer rows
	// through it.
	newFilter := plan.Node{Kind: plan.Filter, Inputs: []int{grandchild}, Predicate: n.Predicate, Columns: a.Get(grandchild).Columns}
	a.Nodes = append(a.Nodes, newFilter)
	newIdx := len(a.Nodes) - 1
	child.Inputs[0] = newIdx

	*n = *child
	n.ID = idx
	return true
}

func referencesOnly(predicate string, columns []plan.OutputColumn) bool {
	if predicate == "" {
		return false
	}
	for _, col := range columns {
		if strings.Contains(predicate, col.Name) {
			return true
		}
	}
	return false
}

// limitPushdown pushes a Limit below a Sort by converting the Sort into
// a bounded top-k sort, per spec.md's "combine with Sort as top-k".
type limitPushdown struct{}

func (limitPushdown) Name() string { return "limit-pushdown" }

func (limitPushdown) Apply(a *plan.Arena, idx int) bool {
	n := a.Get(idx)
	if n.Kind != plan.Limit || len(n.Inputs) != 1 {
		return false
	}
	child := a.Get(n.Inputs[0])
	if child.Kind != plan.Sort || child.TopK != 0 {
		return false
	}
	bound := n.Count + n.Offset
	if bound <= 0 {
		return false
	}
	child.TopK = bound
	return true
}

// aggregateSplit rewrites Aggregate(Union(a, b, ...)) into
// Aggregate(Union(Aggregate(a), Aggregate(b), ...)) for splittable
// aggregate functions (SUM, COUNT, MIN, MAX), letting each partition
// compute a local aggregate before the final combine. AVG is excluded:
// combining partial averages needs a SUM/COUNT pair, not a plain
// re-aggregate of averages.
type aggregateSplit struct{}

func (aggregateSplit) Name() string { return "aggregate-split" }

func (aggregateSplit) Apply(a *plan.Arena, idx int) bool {
	n := a.Get(idx)
	if n.Kind != plan.Aggregate || len(n.Inputs) != 1 {
		return false
	}
	child := a.Get(n.Inputs[0])
	if child.Kind != plan.Union || len(child.Inputs) < 2 {
		return false
	}
	if !allSplittable(n.Aggs) {
		return false
	}

	newUnionInputs := make([]int, len(child.Inputs))
	for i, partitionIdx := range child.Inputs {
		partition := a.Get(partitionIdx)
		if partition.Kind == plan.Aggregate {
			// Already split on a previous pass.
			newUnionInputs[i] = partitionIdx
			continue
		}
		local := plan.Node{
			Kind:      plan.Aggregate,
			Inputs:    []int{partitionIdx},
			GroupKeys: n.GroupKeys,
			Aggs:      n.Aggs,
			Columns:   n.Columns,
		}
		a.Nodes = append(a.Nodes, local)
		newUnionInputs[i] = len(a.Nodes) - 1
	}
	child.Inputs = newUnionInputs
	return true
}

func allSplittable(aggs []plan.Aggregation) bool {
	if len(aggs) == 0 {
		return false
	}
	for _, agg := range aggs {
		switch strings.ToUpper(agg.Function) {
		case "SUM", "COUNT", "MIN", "MAX":
		default:
			return false
		}
	}
	return true
}

// ReorderJoins orders the two inputs of the inner join at joinIdx so the
// input with the smaller estimatedRows (per the supplied estimator)
// comes first, swapping the join keys with them. Only that one join is
// reordered; joins nested in its inputs are not visited, and non-inner
// joins are left as they are. This
// is invoked directly rather than folded into DefaultRules because join
// reorder needs cardinality estimates the arena alone doesn't carry.
func ReorderJoins(a *plan.Arena, joinIdx int, estimatedRows func(nodeIdx int) int64) {
	n := a.Get(joinIdx)
	if n.Kind != plan.Join || len(n.Inputs) != 2 || n.JoinType != plan.InnerJoin {
		return
	}
	left, right := n.Inputs[0], n.Inputs[1]
	if estimatedRows(left) < estimatedRows(right) {
		// Smaller side already first; nothing to do.
		return
	}
	n.Inputs[0], n.Inputs[1] = right, left
	n.LeftKey, n.RightKey = n.RightKey, n.LeftKey
}
