package scheduler

import (
	"fmt"

	"github.com/kingrea/jobprep/internal/workflow/resolver"
)

// Selector exposes the minimal contract the engine needs to request runnable
// task batches.
type Selector interface {
	Runnable(RunnableRequest) (RunnableBatch, error)
}

// Scheduler implements Selector on top of a dependency resolver. It examines
// the resolved queue, filters nodes that are truly runnable, and enforces the
// configured constraints.
type Scheduler struct {
	resolver *resolver.Resolver
}

// New wires a Scheduler to a resolver snapshot.
func New(res *resolver.Resolver) (*Scheduler, error) {
	if res == nil {
		return nil, fmt.Errorf("workflow: scheduler requires a resolver")
	}
	return &Scheduler{resolver: res}, nil
}

// RunnableRequest captures the current runtime state plus any scheduling
// constraints.
type RunnableRequest struct {
	// Targets optionally narrows scheduling to a subset of tasks. When empty,
	// every incomplete task is considered.
	Targets []string
	// MaxParallel caps how many tasks may be active at once, including those
	// listed in Running. Values <= 0 disable the limit.
	MaxParallel int
	// Running lists task ids that are currently executing.
	Running []string
}

// RunnableBatch describes the scheduler's decision.
type RunnableBatch struct {
	Nodes   []*resolver.Node
	Skipped map[string]SkipReason
}

// IDs returns the ids of the batched nodes.
func (b RunnableBatch) IDs() []string {
	ids := make([]string, 0, len(b.Nodes))
	for _, node := range b.Nodes {
		ids = append(ids, node.ID)
	}
	return ids
}

// SkipReason explains why a node was excluded from the runnable set.
type SkipReason struct {
	Reason SkipReasonCode
	Detail string
}

// SkipReasonCode enumerates scheduler skip reasons.
type SkipReasonCode string

const (
	SkipReasonNotReady    SkipReasonCode = "not-ready"
	SkipReasonConcurrency SkipReasonCode = "concurrency"
	SkipReasonSequential  SkipReasonCode = "sequential"
	SkipReasonActive      SkipReasonCode = "already-running"
)

// Runnable returns a batch of runnable nodes constrained by the request.
func (s *Scheduler) Runnable(req RunnableRequest) (RunnableBatch, error) {
	queue, err := s.resolver.Queue(req.Targets...)
	if err != nil {
		return RunnableBatch{}, err
	}
	rq := newRunnableQueue(queue)
	running := req.runningSet()
	syncRunning := s.syncRunning(running)
	limit := req.limit(len(running))
	result := RunnableBatch{}
	for rq.Len() > 0 {
		node := rq.Pop()
		if node == nil {
			break
		}
		if _, runningAlready := running[node.ID]; runningAlready {
			result.addSkip(node.ID, SkipReason{Reason: SkipReasonActive, Detail: "task already running"})
			continue
		}
		if node.State != resolver.NodeStateReady {
			result.addSkip(node.ID, SkipReason{Reason: SkipReasonNotReady, Detail: string(node.State)})
			continue
		}
		if syncRunning != "" {
			result.addSkip(node.ID, SkipReason{Reason: SkipReasonSequential, Detail: fmt.Sprintf("waiting for %s", syncRunning)})
			continue
		}
		if !node.Ref.Async {
			if len(running) > 0 || len(result.Nodes) > 0 {
				result.addSkip(node.ID, SkipReason{Reason: SkipReasonSequential, Detail: "runs alone"})
				continue
			}
			result.Nodes = append(result.Nodes, node)
			break
		}
		if limit == 0 || (limit > 0 && len(result.Nodes) >= limit) {
			result.addSkip(node.ID, SkipReason{Reason: SkipReasonConcurrency, Detail: fmt.Sprintf("max parallel %d reached", req.MaxParallel)})
			continue
		}
		result.Nodes = append(result.Nodes, node)
	}
	return result, nil
}

// syncRunning returns the id of a running non-async task, if any.
func (s *Scheduler) syncRunning(running map[string]struct{}) string {
	for id := range running {
		node, ok := s.resolver.Node(id)
		if ok && !node.Ref.Async {
			return id
		}
	}
	return ""
}

func (req RunnableRequest) runningSet() map[string]struct{} {
	if len(req.Running) == 0 {
		return map[string]struct{}{}
	}
	set := make(map[string]struct{}, len(req.Running))
	for _, id := range req.Running {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// limit returns how many more async tasks may start; -1 means unbounded.
func (req RunnableRequest) limit(runningCount int) int {
	if req.MaxParallel <= 0 {
		return -1
	}
	remaining := req.MaxParallel - runningCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (b *RunnableBatch) addSkip(id string, reason SkipReason) {
	if id == "" {
		return
	}
	if b.Skipped == nil {
		b.Skipped = make(map[string]SkipReason)
	}
	b.Skipped[id] = reason
}

type runnableQueue struct {
	nodes []*resolver.Node
}

func newRunnableQueue(nodes []*resolver.Node) *runnableQueue {
	if len(nodes) == 0 {
		return &runnableQueue{}
	}
	copyNodes := make([]*resolver.Node, len(nodes))
	copy(copyNodes, nodes)
	return &runnableQueue{nodes: copyNodes}
}

func (q *runnableQueue) Len() int {
	return len(q.nodes)
}

func (q *runnableQueue) Pop() *resolver.Node {
	if len(q.nodes) == 0 {
		return nil
	}
	node := q.nodes[0]
	q.nodes = q.nodes[1:]
	return node
}
