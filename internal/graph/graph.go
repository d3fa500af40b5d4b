// Package graph maintains the inter-task dependency graph: edge mutations
// with BLOCKS cycle rejection, per-task edge views, execution batches from
// a layered topological sort, and blocker reports.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/workflow"
)

// ErrCycle is returned when adding a BLOCKS edge would close a cycle.
var ErrCycle = errors.New("dependency cycle detected")

// CycleError carries the offending path, from the edge's destination back
// around to its source.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected through %d task(s)", len(e.Path))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Engine runs dependency operations over the store. Terminal-status
// knowledge comes from the workflow engine's current snapshot.
type Engine struct {
	store    storage.Store
	workflow *workflow.Engine
}

// NewEngine creates a dependency graph engine.
func NewEngine(store storage.Store, wf *workflow.Engine) *Engine {
	return &Engine{store: store, workflow: wf}
}

// Add validates and inserts a dependency edge. Self-loops fail validation,
// duplicates conflict, and a BLOCKS edge that would close a cycle fails
// with a *CycleError. The cycle check and the insert share one transaction.
func (eng *Engine) Add(ctx context.Context, d *model.Dependency) error {
	if d.FromTaskID == d.ToTaskID {
		return fmt.Errorf("%w: a task cannot depend on itself", storage.ErrValidation)
	}
	// IS_BLOCKED_BY is stored as the inverse BLOCKS edge so the cycle
	// invariant covers both spellings.
	from, to := d.FromTaskID, d.ToTaskID
	if d.Type == model.DepIsBlockedBy {
		from, to = to, from
	}

	return eng.store.RunInTransaction(ctx, func(tx storage.Store) error {
		if d.Type != model.DepRelatesTo {
			path, err := blocksPath(ctx, tx, to, from)
			if err != nil {
				return err
			}
			if path != nil {
				return &CycleError{Path: path}
			}
		}
		return tx.AddDependency(ctx, d)
	})
}

// blocksPath walks BLOCKS edges forward from start looking for goal.
// Returns the path start..goal when reachable, nil otherwise. The graph is
// small by construction; a plain BFS with no precomputed index suffices.
func blocksPath(ctx context.Context, store storage.Store, start, goal string) ([]string, error) {
	deps, err := store.AllDependencies(ctx)
	if err != nil {
		return nil, err
	}
	next := make(map[string][]string)
	for _, d := range deps {
		switch d.Type {
		case model.DepBlocks:
			next[d.FromTaskID] = append(next[d.FromTaskID], d.ToTaskID)
		case model.DepIsBlockedBy:
			next[d.ToTaskID] = append(next[d.ToTaskID], d.FromTaskID)
		}
	}

	parent := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			var path []string
			for n := goal; n != ""; n = parent[n] {
				path = append([]string{n}, path...)
			}
			return path, nil
		}
		for _, n := range next[cur] {
			if _, seen := parent[n]; seen {
				continue
			}
			parent[n] = cur
			queue = append(queue, n)
		}
	}
	return nil, nil
}

// Views splits a task's edges into the three logical views.
type Views struct {
	Incoming []*model.Dependency `json:"incoming"`
	Outgoing []*model.Dependency `json:"outgoing"`
	Related  []*model.Dependency `json:"related"`
}

// ViewsFor returns the incoming/outgoing/related edge views of a task.
// IS_BLOCKED_BY edges count toward the blocking direction they imply.
func (eng *Engine) ViewsFor(ctx context.Context, taskID string) (*Views, error) {
	deps, err := eng.store.ListDependencies(ctx, taskID)
	if err != nil {
		return nil, err
	}
	v := &Views{}
	for _, d := range deps {
		switch d.Type {
		case model.DepRelatesTo:
			v.Related = append(v.Related, d)
		case model.DepBlocks:
			if d.ToTaskID == taskID {
				v.Incoming = append(v.Incoming, d)
			} else {
				v.Outgoing = append(v.Outgoing, d)
			}
		case model.DepIsBlockedBy:
			if d.FromTaskID == taskID {
				v.Incoming = append(v.Incoming, d)
			} else {
				v.Outgoing = append(v.Outgoing, d)
			}
		}
	}
	return v, nil
}

// Blocker is one row of the blocker report: an unfinished task that blocks
// the queried task.
type Blocker struct {
	TaskID string       `json:"taskId"`
	Title  string       `json:"title"`
	Status model.Status `json:"status"`
}

// Blockers lists the incoming BLOCKS edges of a task whose source has not
// reached a terminal status.
func (eng *Engine) Blockers(ctx context.Context, taskID string) ([]Blocker, error) {
	views, err := eng.ViewsFor(ctx, taskID)
	if err != nil {
		return nil, err
	}
	prog := eng.workflow.Snapshot().Progression(model.EntityTask)

	var out []Blocker
	for _, d := range views.Incoming {
		sourceID := d.FromTaskID
		if d.Type == model.DepIsBlockedBy {
			sourceID = d.ToTaskID
		}
		task, err := eng.store.GetTask(ctx, sourceID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !prog.IsTerminal(task.Status) {
			out = append(out, Blocker{TaskID: task.ID, Title: task.Title, Status: task.Status})
		}
	}
	return out, nil
}

// Batch is one layer of the BLOCKS-DAG topological sort. Tasks within a
// batch are mutually independent.
type Batch struct {
	Tasks []*model.Task `json:"tasks"`
}

// Batches computes ordered execution batches for a scope (one of projectID
// or featureID). Terminal tasks are excluded from batches but their edges
// are honoured: a predecessor already finished no longer gates anything.
func (eng *Engine) Batches(ctx context.Context, projectID, featureID string) ([]Batch, error) {
	tasks, err := eng.store.FindTasks(ctx, model.Query{ProjectID: projectID, FeatureID: featureID})
	if err != nil {
		return nil, err
	}
	prog := eng.workflow.Snapshot().Progression(model.EntityTask)

	inScope := make(map[string]*model.Task, len(tasks))
	for _, t := range tasks {
		if !prog.IsTerminal(t.Status) {
			inScope[t.ID] = t
		}
	}

	deps, err := eng.store.AllDependencies(ctx)
	if err != nil {
		return nil, err
	}

	// Build the BLOCKS DAG over non-terminal in-scope tasks.
	indegree := make(map[string]int, len(inScope))
	successors := make(map[string][]string)
	for id := range inScope {
		indegree[id] = 0
	}
	for _, d := range deps {
		from, to := d.FromTaskID, d.ToTaskID
		switch d.Type {
		case model.DepBlocks:
		case model.DepIsBlockedBy:
			from, to = to, from
		default:
			continue
		}
		if _, ok := inScope[from]; !ok {
			continue // terminal or out-of-scope predecessors no longer gate
		}
		if _, ok := inScope[to]; !ok {
			continue
		}
		successors[from] = append(successors[from], to)
		indegree[to]++
	}

	// Kahn layered sort; ties broken by (priority desc, complexity asc,
	// createdAt asc, id) so batches are deterministic.
	var batches []Batch
	for len(indegree) > 0 {
		var layer []*model.Task
		for id, deg := range indegree {
			if deg == 0 {
				layer = append(layer, inScope[id])
			}
		}
		if len(layer) == 0 {
			// Residual cycle; should be unreachable given add-time checks.
			return nil, &CycleError{Path: remainingIDs(indegree)}
		}
		sortBatch(layer)
		for _, t := range layer {
			delete(indegree, t.ID)
			for _, succ := range successors[t.ID] {
				if _, ok := indegree[succ]; ok {
					indegree[succ]--
				}
			}
		}
		batches = append(batches, Batch{Tasks: layer})
	}
	return batches, nil
}

func sortBatch(tasks []*model.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.Complexity != b.Complexity {
			return a.Complexity < b.Complexity
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func remainingIDs(indegree map[string]int) []string {
	out := make([]string, 0, len(indegree))
	for id := range indegree {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
