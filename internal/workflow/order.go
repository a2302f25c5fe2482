package workflow

import (
	"container/heap"
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is wrapped by every cycle error.
var ErrCycle = errors.New("workflow: dependency cycle")

// CycleError reports a single deterministic cycle witness.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// TopologicalOrder returns task ids so every task follows its context tasks.
// Ties are broken by declaration order.
func (def Definition) TopologicalOrder() ([]string, error) {
	index := make(map[string]int, len(def.Tasks))
	for i, ref := range def.Tasks {
		index[ref.ID] = i
	}
	indeg := make([]int, len(def.Tasks))
	dependents := make([][]int, len(def.Tasks))
	for i, ref := range def.Tasks {
		for _, dep := range ref.Context {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("workflow %s: context %s -> %s references unknown task", def.ID, ref.ID, dep)
			}
			indeg[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ready := &indexHeap{}
	for i, deg := range indeg {
		if deg == 0 {
			heap.Push(ready, i)
		}
	}
	order := make([]string, 0, len(def.Tasks))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		order = append(order, def.Tasks[n].ID)
		for _, m := range dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	if len(order) == len(def.Tasks) {
		return order, nil
	}
	return nil, &CycleError{Path: def.cycleWitness(index)}
}

// cycleWitness walks context edges depth-first in declaration order and
// returns the first cycle found, closed on its starting task.
func (def Definition) cycleWitness(index map[string]int) []string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(def.Tasks))
	stack := make([]int, 0, len(def.Tasks))
	var cycle []string

	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, dep := range def.Tasks[u].Context {
			v := index[dep]
			switch color[v] {
			case white:
				if visit(v) {
					return true
				}
			case gray:
				start := 0
				for k, id := range stack {
					if id == v {
						start = k
						break
					}
				}
				for _, id := range stack[start:] {
					cycle = append(cycle, def.Tasks[id].ID)
				}
				cycle = append(cycle, def.Tasks[v].ID)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}
	for i := range def.Tasks {
		if color[i] == white && visit(i) {
			break
		}
	}
	return cycle
}

type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
