package containers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/tools/respond"
	"github.com/taskvault/taskvault/internal/tools/views"
	"github.com/taskvault/taskvault/internal/vault"
	"github.com/taskvault/taskvault/internal/workflow"
)

type queryParams struct {
	Operation     string   `json:"operation"`
	ContainerType string   `json:"containerType"`
	ID            string   `json:"id,omitempty"`
	Status        string   `json:"status,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Text          string   `json:"text,omitempty"`
	ProjectID     string   `json:"projectId,omitempty"`
	FeatureID     string   `json:"featureId,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// QueryContainer is the read side: get, search, export, overview.
type QueryContainer struct {
	store    storage.Store
	wf       *workflow.Engine
	renderer *vault.Renderer
}

func NewQueryContainer(store storage.Store, wf *workflow.Engine) *QueryContainer {
	return &QueryContainer{store: store, wf: wf, renderer: vault.NewRenderer(store, wf)}
}

func (t *QueryContainer) Name() string { return "query_container" }
func (t *QueryContainer) Description() string {
	return "Read projects, features, and tasks. get returns the full entity with its sections; search returns minimal projections filtered by status, priority, tags, and text; export returns the entity rendered as Markdown; overview returns a hierarchical snapshot with task-count summaries and no section bodies. Status and priority filters use the \"a,b,!c\" include/exclude syntax."
}
func (t *QueryContainer) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "operation": {"type": "string", "enum": ["get", "search", "export", "overview"]},
    "containerType": {"type": "string", "enum": ["project", "feature", "task"]},
    "id": {"type": "string", "description": "Entity id (required for get, export, overview)"},
    "status": {"type": "string", "description": "Status filter, e.g. \"in-progress,!blocked\""},
    "priority": {"type": "string", "description": "Priority filter, same syntax as status"},
    "tags": {"type": "array", "items": {"type": "string"}, "description": "All listed tags must be present"},
    "text": {"type": "string", "description": "Case-insensitive substring over name/title, summary, description"},
    "projectId": {"type": "string"},
    "featureId": {"type": "string"},
    "limit": {"type": "integer"}
  },
  "required": ["operation", "containerType"]
}`)
}

func (t *QueryContainer) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p queryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}
	kind, err := containerKind(p.ContainerType)
	if err != nil {
		return respond.Validationf("%v", err)
	}

	switch p.Operation {
	case "get":
		return t.get(ctx, kind, p.ID)
	case "search":
		return t.search(ctx, kind, &p)
	case "export":
		return t.export(ctx, kind, p.ID)
	case "overview":
		return t.overview(ctx, kind, p.ID)
	default:
		return respond.Validationf("unknown operation %q", p.Operation)
	}
}

func (t *QueryContainer) get(ctx context.Context, kind model.EntityType, id string) (*mcp.ToolsCallResult, error) {
	if id == "" {
		return respond.Validationf("id is required")
	}
	var data any
	switch kind {
	case model.EntityProject:
		project, err := t.store.GetProject(ctx, id)
		if err != nil {
			return respond.FromError(err)
		}
		data = views.FromProject(project)
	case model.EntityFeature:
		feature, err := t.store.GetFeature(ctx, id)
		if err != nil {
			return respond.FromError(err)
		}
		data = views.FromFeature(feature)
	default:
		task, err := t.store.GetTask(ctx, id)
		if err != nil {
			return respond.FromError(err)
		}
		data = views.FromTask(task)
	}

	sections, err := t.store.ListSections(ctx, kind, id)
	if err != nil {
		return respond.FromError(err)
	}
	sectionViews := make([]views.Section, 0, len(sections))
	for _, s := range sections {
		sectionViews = append(sectionViews, views.FromSection(s))
	}
	return respond.OK("OK", map[string]any{"container": data, "sections": sectionViews})
}

func buildQuery(p *queryParams) model.Query {
	return model.Query{
		Status:    model.ParseTokenFilter(p.Status),
		Priority:  model.ParseTokenFilter(p.Priority),
		Tags:      model.NormalizeTags(p.Tags),
		Text:      p.Text,
		ProjectID: p.ProjectID,
		FeatureID: p.FeatureID,
		Limit:     p.Limit,
	}
}

func (t *QueryContainer) search(ctx context.Context, kind model.EntityType, p *queryParams) (*mcp.ToolsCallResult, error) {
	q := buildQuery(p)
	var items []any

	switch kind {
	case model.EntityProject:
		projects, err := t.store.FindProjects(ctx, q)
		if err != nil {
			return respond.FromError(err)
		}
		for _, pr := range projects {
			items = append(items, views.MinProject(pr))
		}
	case model.EntityFeature:
		features, err := t.store.FindFeatures(ctx, q)
		if err != nil {
			return respond.FromError(err)
		}
		for _, f := range features {
			items = append(items, views.MinFeature(f))
		}
	default:
		tasks, err := t.store.FindTasks(ctx, q)
		if err != nil {
			return respond.FromError(err)
		}
		for _, tk := range tasks {
			items = append(items, views.MinTask(tk))
		}
	}
	if items == nil {
		items = []any{}
	}
	return respond.OK(fmt.Sprintf("Found %d", len(items)), map[string]any{
		"items": items,
		"count": len(items),
	})
}

// export renders the entity through the vault renderer and returns the
// Markdown text without touching the filesystem.
func (t *QueryContainer) export(ctx context.Context, kind model.EntityType, id string) (*mcp.ToolsCallResult, error) {
	if id == "" {
		return respond.Validationf("id is required")
	}
	var markdown string
	var err error
	switch kind {
	case model.EntityProject:
		var project *model.Project
		if project, err = t.store.GetProject(ctx, id); err == nil {
			markdown, err = t.renderer.RenderProject(ctx, project)
		}
	case model.EntityFeature:
		var feature *model.Feature
		if feature, err = t.store.GetFeature(ctx, id); err == nil {
			markdown, err = t.renderer.RenderFeature(ctx, feature)
		}
	default:
		var task *model.Task
		if task, err = t.store.GetTask(ctx, id); err == nil {
			markdown, err = t.renderer.RenderTask(ctx, task)
		}
	}
	if err != nil {
		return respond.FromError(err)
	}
	return respond.OK("OK", map[string]any{"markdown": markdown})
}

// featureOverview is the feature-level overview shape.
type featureOverview struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Status     string              `json:"status"`
	Priority   string              `json:"priority"`
	TaskCounts views.TaskCounts    `json:"taskCounts"`
	Tasks      []views.MinimalTask `json:"tasks"`
}

func (t *QueryContainer) overview(ctx context.Context, kind model.EntityType, id string) (*mcp.ToolsCallResult, error) {
	if id == "" {
		return respond.Validationf("id is required")
	}

	switch kind {
	case model.EntityFeature:
		feature, err := t.store.GetFeature(ctx, id)
		if err != nil {
			return respond.FromError(err)
		}
		tasks, err := t.store.FindTasks(ctx, model.Query{FeatureID: id})
		if err != nil {
			return respond.FromError(err)
		}
		ov := featureOverview{
			ID:         feature.ID,
			Name:       feature.Name,
			Status:     string(feature.Status),
			Priority:   feature.Priority.Lower(),
			TaskCounts: views.CountTasks(tasks),
			Tasks:      make([]views.MinimalTask, 0, len(tasks)),
		}
		for _, tk := range tasks {
			ov.Tasks = append(ov.Tasks, views.MinTask(tk))
		}
		return respond.OK("OK", ov)

	case model.EntityProject:
		project, err := t.store.GetProject(ctx, id)
		if err != nil {
			return respond.FromError(err)
		}
		features, err := t.store.FindFeatures(ctx, model.Query{ProjectID: id})
		if err != nil {
			return respond.FromError(err)
		}
		// One fetch for the whole project; grouped per feature in memory.
		tasks, err := t.store.FindTasks(ctx, model.Query{ProjectID: id})
		if err != nil {
			return respond.FromError(err)
		}
		byFeature := map[string][]*model.Task{}
		for _, tk := range tasks {
			byFeature[tk.FeatureID] = append(byFeature[tk.FeatureID], tk)
		}
		featureOvs := make([]featureOverview, 0, len(features))
		for _, f := range features {
			own := byFeature[f.ID]
			fo := featureOverview{
				ID:         f.ID,
				Name:       f.Name,
				Status:     string(f.Status),
				Priority:   f.Priority.Lower(),
				TaskCounts: views.CountTasks(own),
				Tasks:      make([]views.MinimalTask, 0, len(own)),
			}
			for _, tk := range own {
				fo.Tasks = append(fo.Tasks, views.MinTask(tk))
			}
			featureOvs = append(featureOvs, fo)
		}
		return respond.OK("OK", map[string]any{
			"id":         project.ID,
			"name":       project.Name,
			"status":     string(project.Status),
			"taskCounts": views.CountTasks(tasks),
			"features":   featureOvs,
		})

	default:
		task, err := t.store.GetTask(ctx, id)
		if err != nil {
			return respond.FromError(err)
		}
		deps, err := t.store.ListDependencies(ctx, id)
		if err != nil {
			return respond.FromError(err)
		}
		depViews := make([]views.Dependency, 0, len(deps))
		for _, d := range deps {
			depViews = append(depViews, views.FromDependency(d))
		}
		return respond.OK("OK", map[string]any{
			"task":         views.FromTask(task),
			"dependencies": depViews,
		})
	}
}
