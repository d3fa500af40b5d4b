// Package dependencies implements the manage_dependency and
// query_dependencies tools over the inter-task dependency graph.
package dependencies

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskvault/taskvault/internal/graph"
	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/tools/respond"
	"github.com/taskvault/taskvault/internal/tools/views"
)

type manageParams struct {
	Operation  string `json:"operation"`
	ID         string `json:"id,omitempty"`
	FromTaskID string `json:"fromTaskId,omitempty"`
	ToTaskID   string `json:"toTaskId,omitempty"`
	Type       string `json:"type,omitempty"`
}

// ManageDependency creates and deletes dependency edges. BLOCKS edges
// (and their IS_BLOCKED_BY inverses) are rejected when they would close
// a cycle.
type ManageDependency struct {
	store storage.Store
	graph *graph.Engine
}

func NewManageDependency(store storage.Store, g *graph.Engine) *ManageDependency {
	return &ManageDependency{store: store, graph: g}
}

func (t *ManageDependency) Name() string { return "manage_dependency" }
func (t *ManageDependency) Description() string {
	return "Create or delete a dependency edge between two tasks. Types: BLOCKS, IS_BLOCKED_BY, RELATES_TO. Blocking edges that would form a cycle are rejected with the offending path. Delete accepts either the edge id or the (fromTaskId, toTaskId, type) triple."
}
func (t *ManageDependency) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "operation": {"type": "string", "enum": ["create", "delete"]},
    "id": {"type": "string", "description": "Edge id (delete)"},
    "fromTaskId": {"type": "string"},
    "toTaskId": {"type": "string"},
    "type": {"type": "string", "enum": ["BLOCKS", "IS_BLOCKED_BY", "RELATES_TO"]}
  },
  "required": ["operation"]
}`)
}

func (t *ManageDependency) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p manageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}

	switch p.Operation {
	case "create":
		return t.create(ctx, &p)
	case "delete":
		return t.delete(ctx, &p)
	default:
		return respond.Validationf("unknown operation %q", p.Operation)
	}
}

func (t *ManageDependency) create(ctx context.Context, p *manageParams) (*mcp.ToolsCallResult, error) {
	if p.FromTaskID == "" || p.ToTaskID == "" {
		return respond.Validationf("fromTaskId and toTaskId are required")
	}
	depType, err := model.ParseDependencyType(p.Type)
	if err != nil {
		return respond.Validationf("%v", err)
	}

	dep := &model.Dependency{
		ID:         model.NewID(),
		FromTaskID: p.FromTaskID,
		ToTaskID:   p.ToTaskID,
		Type:       depType,
		CreatedAt:  time.Now().UTC(),
	}
	if err := t.graph.Add(ctx, dep); err != nil {
		return respond.FromError(err)
	}
	return respond.OK("Dependency created", views.FromDependency(dep))
}

func (t *ManageDependency) delete(ctx context.Context, p *manageParams) (*mcp.ToolsCallResult, error) {
	var removed bool
	var err error
	switch {
	case p.ID != "":
		removed, err = t.store.RemoveDependency(ctx, p.ID)
	case p.FromTaskID != "" && p.ToTaskID != "" && p.Type != "":
		var depType model.DependencyType
		if depType, err = model.ParseDependencyType(p.Type); err != nil {
			return respond.Validationf("%v", err)
		}
		removed, err = t.store.RemoveDependencyEdge(ctx, p.FromTaskID, p.ToTaskID, depType)
	default:
		return respond.Validationf("delete needs id, or fromTaskId + toTaskId + type")
	}
	if err != nil {
		return respond.FromError(err)
	}
	if !removed {
		return respond.Fail(respond.CodeNotFound, "dependency not found", nil)
	}
	return respond.OK("Dependency deleted", map[string]any{"deleted": true})
}

func depViews(deps []*model.Dependency) []views.Dependency {
	out := make([]views.Dependency, 0, len(deps))
	for _, d := range deps {
		out = append(out, views.FromDependency(d))
	}
	return out
}

// --- query_dependencies ---

type queryParams struct {
	Operation string `json:"operation"`
	TaskID    string `json:"taskId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	FeatureID string `json:"featureId,omitempty"`
}

// QueryDependencies reads the dependency graph: a task's incoming,
// outgoing, and related edges; its open blockers; or the parallel
// execution batches for a scope.
type QueryDependencies struct {
	store storage.Store
	graph *graph.Engine
}

func NewQueryDependencies(store storage.Store, g *graph.Engine) *QueryDependencies {
	return &QueryDependencies{store: store, graph: g}
}

func (t *QueryDependencies) Name() string { return "query_dependencies" }
func (t *QueryDependencies) Description() string {
	return "Inspect task dependencies. views: a task's incoming/outgoing/related edges. blockers: the non-terminal tasks currently blocking a task. batches: topologically ordered groups of tasks for a project or feature scope; tasks in the same batch can run in parallel."
}
func (t *QueryDependencies) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "operation": {"type": "string", "enum": ["views", "blockers", "batches"]},
    "taskId": {"type": "string", "description": "Required for views and blockers"},
    "projectId": {"type": "string", "description": "Batch scope"},
    "featureId": {"type": "string", "description": "Batch scope"}
  },
  "required": ["operation"]
}`)
}

func (t *QueryDependencies) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p queryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}

	switch p.Operation {
	case "views":
		if p.TaskID == "" {
			return respond.Validationf("taskId is required")
		}
		v, err := t.graph.ViewsFor(ctx, p.TaskID)
		if err != nil {
			return respond.FromError(err)
		}
		return respond.OK("OK", map[string]any{
			"incoming": depViews(v.Incoming),
			"outgoing": depViews(v.Outgoing),
			"related":  depViews(v.Related),
		})

	case "blockers":
		if p.TaskID == "" {
			return respond.Validationf("taskId is required")
		}
		blockers, err := t.graph.Blockers(ctx, p.TaskID)
		if err != nil {
			return respond.FromError(err)
		}
		if blockers == nil {
			blockers = []graph.Blocker{}
		}
		return respond.OK(fmt.Sprintf("%d blocker(s)", len(blockers)), map[string]any{
			"blockers": blockers,
			"count":    len(blockers),
		})

	case "batches":
		if p.ProjectID == "" && p.FeatureID == "" {
			return respond.Validationf("projectId or featureId is required")
		}
		batches, err := t.graph.Batches(ctx, p.ProjectID, p.FeatureID)
		if err != nil {
			return respond.FromError(err)
		}
		out := make([]map[string]any, 0, len(batches))
		for i, b := range batches {
			tasks := make([]views.MinimalTask, 0, len(b.Tasks))
			for _, tk := range b.Tasks {
				tasks = append(tasks, views.MinTask(tk))
			}
			out = append(out, map[string]any{"batch": i + 1, "tasks": tasks})
		}
		return respond.OK(fmt.Sprintf("%d batch(es)", len(out)), map[string]any{
			"batches": out,
			"count":   len(out),
		})

	default:
		return respond.Validationf("unknown operation %q", p.Operation)
	}
}
