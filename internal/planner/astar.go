package planner

import (
	"container/heap"
	"context"
	"errors"

	"drone-route-planner/internal/grid"
)

// ctxCheckEvery is how many expansions pass between context checks.
const ctxCheckEvery = 256

// errBudget reports that a search hit Options.MaxExpansions.
var errBudget = errors.New("expansion budget exhausted")

// openNode is an entry in the open set. The same cell may be queued several
// times; entries for cells already closed are discarded when popped.
type openNode struct {
	cell  grid.Cell
	f     int
	seq   int // insertion order, breaks f ties deterministically
	index int // index in the heap
}

// openQueue implements heap.Interface ordered by f, then insertion order.
type openQueue []*openNode

func (q openQueue) Len() int { return len(q) }

func (q openQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}

func (q openQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *openQueue) Push(x interface{}) {
	n := len(*q)
	node := x.(*openNode)
	node.index = n
	*q = append(*q, node)
}

func (q *openQueue) Pop() interface{} {
	old := *q
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*q = old[0 : n-1]
	return node
}

// blockedFunc reports whether a cell may not be entered.
type blockedFunc func(grid.Cell) bool

// neighborOffsets is the 8-neighbourhood in expansion order.
var neighborOffsets = [8]grid.Cell{
	{Col: -1, Row: -1}, {Col: -1, Row: 0}, {Col: -1, Row: 1},
	{Col: 0, Row: -1}, {Col: 0, Row: 1},
	{Col: 1, Row: -1}, {Col: 1, Row: 0}, {Col: 1, Row: 1},
}

// search runs A* from start to goal over the 8-connected grid with unit step
// cost. It returns the cell path including both ends, or nil when the open set
// empties. The returned count is the number of cells expanded.
func (p *Planner) search(ctx context.Context, start, goal grid.Cell, blocked blockedFunc) ([]grid.Cell, int, error) {
	openSet := &openQueue{}
	heap.Init(openSet)

	gScore := map[grid.Cell]int{start: 0}
	cameFrom := make(map[grid.Cell]grid.Cell)
	closedSet := make(map[grid.Cell]bool)

	seq := 0
	heap.Push(openSet, &openNode{cell: start, f: p.opts.Heuristic.Estimate(start, goal), seq: seq})

	expanded := 0
	for openSet.Len() > 0 {
		current := heap.Pop(openSet).(*openNode)
		if closedSet[current.cell] {
			continue
		}

		if current.cell == goal {
			return reconstruct(cameFrom, start, goal), expanded, nil
		}

		closedSet[current.cell] = true
		expanded++

		if p.opts.MaxExpansions > 0 && expanded > p.opts.MaxExpansions {
			return nil, expanded, errBudget
		}
		if expanded%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, expanded, err
			}
		}

		tentative := gScore[current.cell] + 1
		for _, off := range neighborOffsets {
			next := grid.Cell{Col: current.cell.Col + off.Col, Row: current.cell.Row + off.Row}

			if !p.grid.InBounds(next) || blocked(next) || closedSet[next] {
				continue
			}

			if old, seen := gScore[next]; seen && tentative >= old {
				continue
			}

			cameFrom[next] = current.cell
			gScore[next] = tentative
			seq++
			heap.Push(openSet, &openNode{
				cell: next,
				f:    tentative + p.opts.Heuristic.Estimate(next, goal),
				seq:  seq,
			})
		}
	}

	return nil, expanded, nil
}

// reconstruct walks predecessors from goal back to start and reverses the walk.
func reconstruct(cameFrom map[grid.Cell]grid.Cell, start, goal grid.Cell) []grid.Cell {
	path := []grid.Cell{goal}
	for current := goal; current != start; {
		current = cameFrom[current]
		path = append(path, current)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
