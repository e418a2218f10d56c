package rbo

import (
	"testing"

	"github.com/canonica-labs/canonica/internal/plan"
)

func TestFilterIntoJoinDropsRedundantFilter(t *testing.T) {
	a := plan.New()
	left := a.AddTableScan("pg1", "SELECT id FROM orders", []plan.OutputColumn{{Name: "id"}})
	right := a.AddTableScan("pg2", "SELECT order_id FROM shipments", []plan.OutputColumn{{Name: "order_id"}})
	join := a.AddJoin(left, right, "id", "order_id", plan.InnerJoin)
	filtered := a.AddFilter(join, "id = order_id")
	a.SetRoot(filtered)

	applied := Optimize(a, []Rule{&filterIntoJoin{}})
	if applied == 0 {
		t.Fatal("expected filter-into-join to fire")
	}
	if a.Get(filtered).Predicate != "" {
		t.Fatalf("expected the redundant filter predicate to be cleared, got %q", a.Get(filtered).Predicate)
	}
}

func TestFilterIntoJoinLeavesNonKeyFilterAlone(t *testing.T) {
	a := plan.New()
	left := a.AddTableScan("pg1", "SELECT id FROM orders", []plan.OutputColumn{{Name: "id"}})
	right := a.AddTableScan("pg2", "SELECT order_id FROM shipments", []plan.OutputColumn{{Name: "order_id"}})
	join := a.AddJoin(left, right, "id", "order_id", plan.InnerJoin)
	filtered := a.AddFilter(join, "status = done")
	a.SetRoot(filtered)

	Optimize(a, []Rule{&filterIntoJoin{}})
	if a.Get(filtered).Predicate != "status = done" {
		t.Fatalf("expected an unrelated filter predicate to survive, got %q", a.Get(filtered).Predicate)
	}
}

func TestPredicatePushdownMovesFilterBelowProject(t *testing.T) {
	a := plan.New()
	scan := a.AddTableScan("pg1", "SELECT id, amount FROM orders",
		[]plan.OutputColumn{{Name: "id"}, {Name: "amount"}})
	projected := a.AddProject(scan, []string{"id"}, []plan.OutputColumn{{Name: "id"}})
	filtered := a.AddFilter(projected, "id > 0")
	a.SetRoot(filtered)

	applied := Optimize(a, []Rule{&predicatePushdown{}})
	if applied == 0 {
		t.Fatal("expected predicate-pushdown to fire")
	}
	root := a.Get(a.Root)
	if root.Kind != plan.Project {
		t.Fatalf("expected the Project to remain on top, got %s", root.Kind)
	}
	below := a.Get(root.Inputs[0])
	if below.Kind != plan.Filter {
		t.Fatalf("expected a Filter directly under the Project, got %s", below.Kind)
	}
}

func TestLimitPushdownSetsTopKOnSort(t *testing.T) {
	a := plan.New()
	scan := a.AddTableScan("pg1", "SELECT id FROM orders", []plan.OutputColumn{{Name: "id"}})
	sorted := a.AddSort(scan, []plan.SortKey{{Column: "id"}}, 0)
	limited := a.AddLimit(sorted, 10, 5)
	a.SetRoot(limited)

	Optimize(a, []Rule{&limitPushdown{}})
	if a.Get(sorted).TopK != 15 {
		t.Fatalf("expected TopK = Count+Offset = 15, got %d", a.Get(sorted).TopK)
	}
}

func TestLimitPushdownSkipsAlreadyBoundedSort(t *testing.T) {
	a := plan.New()
	scan := a.AddTableScan("pg1", "SELECT id FROM orders", []plan.OutputColumn{{Name: "id"}})
	sorted := a.AddSort(scan, []plan.SortKey{{Column: "id"}}, 5)
	limited := a.AddLimit(sorted, 10, 0)
	a.SetRoot(limited)

	applied := Optimize(a, []Rule{&limitPushdown{}})
	if applied != 0 {
		t.Fatal("expected no rewrite when the Sort already has a TopK")
	}
	if a.Get(sorted).TopK != 5 {
		t.Fatalf("expected TopK to stay 5, got %d", a.Get(sorted).TopK)
	}
}

func TestAggregateSplitAcrossUnion(t *testing.T) {
	a := plan.New()
	left := a.AddTableScan("pg1", "SELECT region, amount FROM a", []plan.OutputColumn{{Name: "region"}, {Name: "amount"}})
	right := a.AddTableScan("pg2", "SELECT region, amount FROM b", []plan.OutputColumn{{Name: "region"}, {Name: "amount"}})
	union := a.AddUnion([]int{left, right})
	aggs := []plan.Aggregation{{Function: "SUM", Column: "amount", Alias: "total"}}
	agg := a.AddAggregate(union, []string{"region"}, aggs, []plan.OutputColumn{{Name: "region"}, {Name: "total"}})
	a.SetRoot(agg)

	applied := Optimize(a, []Rule{&aggregateSplit{}})
	if applied == 0 {
		t.Fatal("expected aggregate-split to fire")
	}
	unionNode := a.Get(union)
	for _, idx := range unionNode.Inputs {
		if a.Get(idx).Kind != plan.Aggregate {
			t.Fatalf("expected every union branch to gain a local Aggregate, got %s", a.Get(idx).Kind)
		}
	}
}

func TestAggregateSplitSkipsAvg(t *testing.T) {
	a := plan.New()
	left := a.AddTableScan("pg1", "SELECT amount FROM a", []plan.OutputColumn{{Name: "amount"}})
	right := a.AddTableScan("pg2", "SELECT amount FROM b", []plan.OutputColumn{{Name: "amount"}})
	union := a.AddUnion([]int{left, right})
	aggs := []plan.Aggregation{{Function: "AVG", Column: "amount", Alias: "avg_amount"}}
	agg := a.AddAggregate(union, nil, aggs, []plan.OutputColumn{{Name: "avg_amount"}})
	a.SetRoot(agg)

	applied := Optimize(a, []Rule{&aggregateSplit{}})
	if applied != 0 {
		t.Fatal("expected AVG to be excluded from the split since partial averages can't be re-averaged")
	}
}

func TestOptimizeAppliesDefaultRulesToFixedPoint(t *testing.T) {
	a := plan.New()
	scan := a.AddTableScan("pg1", "SELECT id, amount FROM orders",
		[]plan.OutputColumn{{Name: "id"}, {Name: "amount"}})
	projected := a.AddProject(scan, []string{"id"}, []plan.OutputColumn{{Name: "id"}})
	filtered := a.AddFilter(projected, "id > 0")
	a.SetRoot(filtered)

	Optimize(a, DefaultRules())
}

func TestReorderJoinsSwapsWhenRightIsSmaller(t *testing.T) {
	a := plan.New()
	left := a.AddTableScan("pg1", "SELECT id FROM big", []plan.OutputColumn{{Name: "id"}})
	right := a.AddTableScan("pg2", "SELECT id FROM small", []plan.OutputColumn{{Name: "id"}})
	join := a.AddJoin(left, right, "id", "id", plan.InnerJoin)

	estimated := map[int]int64{left: 1_000_000, right: 10}
	ReorderJoins(a, join, func(idx int) int64 { return estimated[idx] })

	node := a.Get(join)
	if node.Inputs[0] != right || node.Inputs[1] != left {
		t.Fatalf("expected the smaller side to be probed first, got inputs %+v", node.Inputs)
	}
}

func TestReorderJoinsLeavesSmallerSideFirstAlone(t *testing.T) {
	a := plan.New()
	left := a.AddTableScan("pg1", "SELECT id FROM small", []plan.OutputColumn{{Name: "id"}})
	right := a.AddTableScan("pg2", "SELECT id FROM big", []plan.OutputColumn{{Name: "id"}})
	join := a.AddJoin(left, right, "id", "id", plan.InnerJoin)

	estimated := map[int]int64{left: 10, right: 1_000_000}
	ReorderJoins(a, join, func(idx int) int64 { return estimated[idx] })

	node := a.Get(join)
	if node.Inputs[0] != left || node.Inputs[1] != right {
		t.Fatalf("expected inputs to stay unchanged, got %+v", node.Inputs)
	}
}
