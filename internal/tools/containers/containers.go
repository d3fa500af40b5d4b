// Package containers implements the manage_container and query_container
// tools over the three container types: project, feature, task.
package containers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/template"
	"github.com/taskvault/taskvault/internal/tools/respond"
	"github.com/taskvault/taskvault/internal/tools/views"
	"github.com/taskvault/taskvault/internal/workflow"
)

// Exporter schedules a vault re-render after writes the storage decorator
// cannot observe (a templated create runs entirely inside a transaction).
// A nil Exporter disables the extra scheduling.
type Exporter interface {
	ExportEntity(kind model.EntityType, id string)
}

// containerFields are the writable fields shared by create and update.
// Pointers distinguish "absent" from "set to zero" on update.
type containerFields struct {
	Name        *string  `json:"name,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Summary     *string  `json:"summary,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	Complexity  *int     `json:"complexity,omitempty"`
	ProjectID   *string  `json:"projectId,omitempty"`
	FeatureID   *string  `json:"featureId,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type bulkItem struct {
	ID string `json:"id"`
	containerFields
}

type manageParams struct {
	Operation     string `json:"operation"`
	ContainerType string `json:"containerType"`
	ID            string `json:"id,omitempty"`
	containerFields
	TemplateIDs   []string   `json:"templateIds,omitempty"`
	DuplicateMode string     `json:"duplicateMode,omitempty"`
	Updates       []bulkItem `json:"updates,omitempty"`
}

// ManageContainer is the write side: create, update, delete, setStatus,
// bulkUpdate.
type ManageContainer struct {
	store    storage.Store
	wf       *workflow.Engine
	tmpl     *template.Engine
	exporter Exporter
}

func NewManageContainer(store storage.Store, wf *workflow.Engine, tmpl *template.Engine, exporter Exporter) *ManageContainer {
	return &ManageContainer{store: store, wf: wf, tmpl: tmpl, exporter: exporter}
}

func (t *ManageContainer) Name() string { return "manage_container" }
func (t *ManageContainer) Description() string {
	return "Create, update, delete, set the status of, or bulk-update a project, feature, or task. setStatus validates the transition against the workflow configuration and reports cascade suggestions for parent entities. Templates may be applied at creation time via templateIds."
}
func (t *ManageContainer) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "operation": {"type": "string", "enum": ["create", "update", "delete", "setStatus", "bulkUpdate"]},
    "containerType": {"type": "string", "enum": ["project", "feature", "task"]},
    "id": {"type": "string", "description": "Entity id (required for update, delete, setStatus)"},
    "name": {"type": "string", "description": "Project or feature name"},
    "title": {"type": "string", "description": "Task title"},
    "summary": {"type": "string"},
    "description": {"type": "string"},
    "status": {"type": "string", "description": "Target status for setStatus, or initial status for create"},
    "priority": {"type": "string", "enum": ["high", "medium", "low"]},
    "complexity": {"type": "integer", "minimum": 1, "maximum": 10},
    "projectId": {"type": "string"},
    "featureId": {"type": "string"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "templateIds": {"type": "array", "items": {"type": "string"}, "description": "Templates applied to the entity at creation time"},
    "duplicateMode": {"type": "string", "enum": ["skip", "overwrite", "error"]},
    "updates": {"type": "array", "description": "For bulkUpdate: items with id plus the fields to change", "items": {"type": "object"}}
  },
  "required": ["operation", "containerType"]
}`)
}

func (t *ManageContainer) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p manageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}
	kind, err := containerKind(p.ContainerType)
	if err != nil {
		return respond.Validationf("%v", err)
	}

	switch p.Operation {
	case "create":
		return t.create(ctx, kind, &p)
	case "update":
		return t.update(ctx, kind, p.ID, p.containerFields)
	case "delete":
		return t.delete(ctx, kind, p.ID)
	case "setStatus":
		return t.setStatus(ctx, kind, &p)
	case "bulkUpdate":
		return t.bulkUpdate(ctx, kind, p.Updates)
	default:
		return respond.Validationf("unknown operation %q", p.Operation)
	}
}

func containerKind(s string) (model.EntityType, error) {
	kind, err := model.ParseEntityType(s)
	if err != nil {
		return "", err
	}
	if kind == model.EntityTemplate {
		return "", fmt.Errorf("container type must be project, feature, or task")
	}
	return kind, nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// initialStatus picks the first status of the tag-selected flow when the
// caller did not provide one.
func (t *ManageContainer) initialStatus(kind model.EntityType, provided *string, tags []string) model.Status {
	if provided != nil && *provided != "" {
		return model.NormalizeStatus(*provided)
	}
	flow, _ := t.wf.Snapshot().Progression(kind).ActiveFlow(tags)
	if len(flow.Sequence) > 0 {
		return flow.Sequence[0]
	}
	return "backlog"
}

func (t *ManageContainer) create(ctx context.Context, kind model.EntityType, p *manageParams) (*mcp.ToolsCallResult, error) {
	priority := model.PriorityMedium
	if p.Priority != nil && *p.Priority != "" {
		var err error
		if priority, err = model.ParsePriority(*p.Priority); err != nil {
			return respond.Validationf("%v", err)
		}
	}
	tags := model.NormalizeTags(p.Tags)
	now := time.Now().UTC()

	// The switch validates inputs and builds the entity; persist and render
	// are deferred so the insert can share a transaction with template
	// application below. render runs after persist, once store defaults
	// (complexity, priority) are filled in.
	var id string
	var persist func(s storage.Store) error
	var render func() any

	switch kind {
	case model.EntityProject:
		if str(p.Name) == "" {
			return respond.Validationf("name is required")
		}
		project := &model.Project{
			ID:          model.NewID(),
			Name:        *p.Name,
			Summary:     str(p.Summary),
			Description: str(p.Description),
			Status:      t.initialStatus(kind, p.Status, tags),
			Tags:        tags,
			CreatedAt:   now,
			ModifiedAt:  now,
		}
		id = project.ID
		persist = func(s storage.Store) error { return s.CreateProject(ctx, project) }
		render = func() any { return views.FromProject(project) }

	case model.EntityFeature:
		if str(p.Name) == "" {
			return respond.Validationf("name is required")
		}
		if pid := str(p.ProjectID); pid != "" {
			if _, err := t.store.GetProject(ctx, pid); err != nil {
				return respond.FromError(err)
			}
		}
		feature := &model.Feature{
			ID:          model.NewID(),
			Name:        *p.Name,
			Summary:     str(p.Summary),
			Description: str(p.Description),
			Status:      t.initialStatus(kind, p.Status, tags),
			Priority:    priority,
			ProjectID:   str(p.ProjectID),
			Tags:        tags,
			CreatedAt:   now,
			ModifiedAt:  now,
		}
		id = feature.ID
		persist = func(s storage.Store) error { return s.CreateFeature(ctx, feature) }
		render = func() any { return views.FromFeature(feature) }

	case model.EntityTask:
		if str(p.Title) == "" {
			return respond.Validationf("title is required")
		}
		if p.Complexity != nil && (*p.Complexity < 1 || *p.Complexity > 10) {
			return respond.Validationf("complexity must be between 1 and 10")
		}
		if fid := str(p.FeatureID); fid != "" {
			if _, err := t.store.GetFeature(ctx, fid); err != nil {
				return respond.FromError(err)
			}
		}
		if pid := str(p.ProjectID); pid != "" {
			if _, err := t.store.GetProject(ctx, pid); err != nil {
				return respond.FromError(err)
			}
		}
		task := &model.Task{
			ID:          model.NewID(),
			Title:       *p.Title,
			Summary:     str(p.Summary),
			Description: str(p.Description),
			Status:      t.initialStatus(kind, p.Status, tags),
			Priority:    priority,
			FeatureID:   str(p.FeatureID),
			ProjectID:   str(p.ProjectID),
			Tags:        tags,
			CreatedAt:   now,
			ModifiedAt:  now,
		}
		if p.Complexity != nil {
			task.Complexity = *p.Complexity
		}
		id = task.ID
		persist = func(s storage.Store) error { return s.CreateTask(ctx, task) }
		render = func() any { return views.FromTask(task) }
	}

	if len(p.TemplateIDs) == 0 {
		if err := persist(t.store); err != nil {
			return respond.FromError(err)
		}
		return respond.OK(fmt.Sprintf("Created %s", p.ContainerType), render())
	}

	// Creation-time template application shares the creation transaction,
	// so a failed apply rolls the new entity back with it.
	mode, err := template.ParseDuplicateMode(p.DuplicateMode)
	if err != nil {
		return respond.Validationf("%v", err)
	}
	var result *template.Result
	err = t.store.RunInTransaction(ctx, func(tx storage.Store) error {
		if err := persist(tx); err != nil {
			return err
		}
		var applyErr error
		result, applyErr = t.tmpl.ApplyTx(ctx, tx, p.TemplateIDs, kind, id, mode)
		return applyErr
	})
	if err != nil {
		return respond.FromError(err)
	}
	// The decorator cannot observe writes made through the transaction
	// view, so the new entity's export is scheduled explicitly.
	if t.exporter != nil {
		t.exporter.ExportEntity(kind, id)
	}
	return respond.OK(
		fmt.Sprintf("Created %s with %d template section(s)", p.ContainerType, result.SectionsCreated),
		map[string]any{"container": render(), "templateResult": result},
	)
}

func (t *ManageContainer) update(ctx context.Context, kind model.EntityType, id string, f containerFields) (*mcp.ToolsCallResult, error) {
	if id == "" {
		return respond.Validationf("id is required")
	}
	data, err := t.applyUpdate(ctx, kind, id, f)
	if err != nil {
		return respond.FromError(err)
	}
	return respond.OK("Updated", data)
}

// applyUpdate loads, mutates, and persists one container. Shared by
// update and bulkUpdate.
func (t *ManageContainer) applyUpdate(ctx context.Context, kind model.EntityType, id string, f containerFields) (any, error) {
	now := time.Now().UTC()

	switch kind {
	case model.EntityProject:
		project, err := t.store.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		if f.Name != nil {
			project.Name = *f.Name
		}
		if f.Summary != nil {
			project.Summary = *f.Summary
		}
		if f.Description != nil {
			project.Description = *f.Description
		}
		if f.Tags != nil {
			project.Tags = model.NormalizeTags(f.Tags)
		}
		project.ModifiedAt = now
		if err := t.store.UpdateProject(ctx, project); err != nil {
			return nil, err
		}
		return views.FromProject(project), nil

	case model.EntityFeature:
		feature, err := t.store.GetFeature(ctx, id)
		if err != nil {
			return nil, err
		}
		if f.Name != nil {
			feature.Name = *f.Name
		}
		if f.Summary != nil {
			feature.Summary = *f.Summary
		}
		if f.Description != nil {
			feature.Description = *f.Description
		}
		if f.Priority != nil {
			pr, err := model.ParsePriority(*f.Priority)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
			}
			feature.Priority = pr
		}
		if f.ProjectID != nil {
			if *f.ProjectID != "" {
				if _, err := t.store.GetProject(ctx, *f.ProjectID); err != nil {
					return nil, err
				}
			}
			feature.ProjectID = *f.ProjectID
		}
		if f.Tags != nil {
			feature.Tags = model.NormalizeTags(f.Tags)
		}
		feature.ModifiedAt = now
		if err := t.store.UpdateFeature(ctx, feature); err != nil {
			return nil, err
		}
		return views.FromFeature(feature), nil

	default:
		task, err := t.store.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if f.Title != nil {
			task.Title = *f.Title
		}
		if f.Summary != nil {
			task.Summary = *f.Summary
		}
		if f.Description != nil {
			task.Description = *f.Description
		}
		if f.Priority != nil {
			pr, err := model.ParsePriority(*f.Priority)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
			}
			task.Priority = pr
		}
		if f.Complexity != nil {
			if *f.Complexity < 1 || *f.Complexity > 10 {
				return nil, fmt.Errorf("%w: complexity must be between 1 and 10", storage.ErrValidation)
			}
			task.Complexity = *f.Complexity
		}
		if f.FeatureID != nil {
			if *f.FeatureID != "" {
				if _, err := t.store.GetFeature(ctx, *f.FeatureID); err != nil {
					return nil, err
				}
			}
			task.FeatureID = *f.FeatureID
		}
		if f.ProjectID != nil {
			if *f.ProjectID != "" {
				if _, err := t.store.GetProject(ctx, *f.ProjectID); err != nil {
					return nil, err
				}
			}
			task.ProjectID = *f.ProjectID
		}
		if f.Tags != nil {
			task.Tags = model.NormalizeTags(f.Tags)
		}
		task.ModifiedAt = now
		if err := t.store.UpdateTask(ctx, task); err != nil {
			return nil, err
		}
		return views.FromTask(task), nil
	}
}

func (t *ManageContainer) delete(ctx context.Context, kind model.EntityType, id string) (*mcp.ToolsCallResult, error) {
	if id == "" {
		return respond.Validationf("id is required")
	}
	var deleted bool
	var err error
	switch kind {
	case model.EntityProject:
		deleted, err = t.store.DeleteProject(ctx, id)
	case model.EntityFeature:
		deleted, err = t.store.DeleteFeature(ctx, id)
	default:
		deleted, err = t.store.DeleteTask(ctx, id)
	}
	if err != nil {
		return respond.FromError(err)
	}
	if !deleted {
		return respond.Fail(respond.CodeNotFound, fmt.Sprintf("no entity with id %s", id), nil)
	}
	return respond.OK("Deleted", map[string]any{"id": id, "deleted": true})
}

func (t *ManageContainer) setStatus(ctx context.Context, kind model.EntityType, p *manageParams) (*mcp.ToolsCallResult, error) {
	if p.ID == "" {
		return respond.Validationf("id is required")
	}
	if str(p.Status) == "" {
		return respond.Validationf("status is required")
	}
	proposed := model.NormalizeStatus(*p.Status)
	now := time.Now().UTC()

	switch kind {
	case model.EntityProject:
		project, err := t.store.GetProject(ctx, p.ID)
		if err != nil {
			return respond.FromError(err)
		}
		sub := workflow.Subject{Kind: kind, ID: project.ID, Tags: project.Tags, Status: project.Status}
		if err := t.wf.ValidateTransition(ctx, sub, proposed); err != nil {
			return respond.FromError(err)
		}
		project.Status = proposed
		project.ModifiedAt = now
		if err := t.store.UpdateProject(ctx, project); err != nil {
			return respond.FromError(err)
		}
		return respond.OK(fmt.Sprintf("Status set to %s", proposed), map[string]any{
			"container": views.FromProject(project),
		})

	case model.EntityFeature:
		feature, err := t.store.GetFeature(ctx, p.ID)
		if err != nil {
			return respond.FromError(err)
		}
		sub := workflow.Subject{Kind: kind, ID: feature.ID, Tags: feature.Tags, Status: feature.Status}
		if err := t.wf.ValidateTransition(ctx, sub, proposed); err != nil {
			return respond.FromError(err)
		}
		feature.Status = proposed
		feature.ModifiedAt = now
		if err := t.store.UpdateFeature(ctx, feature); err != nil {
			return respond.FromError(err)
		}
		events, err := t.wf.FeatureCascades(ctx, feature)
		if err != nil {
			return respond.FromError(err)
		}
		data := map[string]any{"container": views.FromFeature(feature)}
		if len(events) > 0 {
			data["cascadeEvents"] = events
		}
		return respond.OK(fmt.Sprintf("Status set to %s", proposed), data)

	default:
		task, err := t.store.GetTask(ctx, p.ID)
		if err != nil {
			return respond.FromError(err)
		}
		// A summary supplied alongside setStatus counts toward the
		// completion gate and is persisted with the status.
		if p.Summary != nil {
			task.Summary = *p.Summary
		}
		previous := task.Status
		sub := workflow.Subject{Kind: kind, ID: task.ID, Tags: task.Tags, Status: task.Status, Summary: task.Summary}
		if err := t.wf.ValidateTransition(ctx, sub, proposed); err != nil {
			return respond.FromError(err)
		}
		task.Status = proposed
		task.ModifiedAt = now
		if err := t.store.UpdateTask(ctx, task); err != nil {
			return respond.FromError(err)
		}
		events, err := t.wf.TaskCascades(ctx, task, previous)
		if err != nil {
			return respond.FromError(err)
		}
		data := map[string]any{"container": views.FromTask(task)}
		if len(events) > 0 {
			data["cascadeEvents"] = events
		}
		return respond.OK(fmt.Sprintf("Status set to %s", proposed), data)
	}
}

func (t *ManageContainer) bulkUpdate(ctx context.Context, kind model.EntityType, items []bulkItem) (*mcp.ToolsCallResult, error) {
	if len(items) == 0 {
		return respond.Validationf("updates must not be empty")
	}
	outcome := &respond.BulkOutcome{}
	for i, item := range items {
		if item.ID == "" {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, respond.BulkFailure{
				Index: i, Code: respond.CodeValidation, Message: "id is required",
			})
			continue
		}
		data, err := t.applyUpdate(ctx, kind, item.ID, item.containerFields)
		if err != nil {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, respond.BulkFailure{
				ID: item.ID, Index: i, Code: respond.CodeFor(err), Message: err.Error(),
			})
			continue
		}
		outcome.Count++
		outcome.Items = append(outcome.Items, data)
	}
	return outcome.Respond(fmt.Sprintf("Updated %d of %d", outcome.Count, len(items)))
}
