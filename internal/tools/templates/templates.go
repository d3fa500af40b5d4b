// Package templates implements the manage_template, query_templates, and
// apply_template tools.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/template"
	"github.com/taskvault/taskvault/internal/tools/containers"
	"github.com/taskvault/taskvault/internal/tools/respond"
	"github.com/taskvault/taskvault/internal/tools/views"
)

type sectionDef struct {
	Title            string   `json:"title"`
	UsageDescription string   `json:"usageDescription,omitempty"`
	Content          string   `json:"content,omitempty"`
	ContentFormat    string   `json:"contentFormat,omitempty"`
	IsRequired       bool     `json:"isRequired,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

type manageParams struct {
	Operation        string       `json:"operation"`
	ID               string       `json:"id,omitempty"`
	Name             string       `json:"name,omitempty"`
	Description      string       `json:"description,omitempty"`
	TargetEntityType string       `json:"targetEntityType,omitempty"`
	IsEnabled        *bool        `json:"isEnabled,omitempty"`
	Tags             []string     `json:"tags,omitempty"`
	Sections         []sectionDef `json:"sections,omitempty"`
}

// ManageTemplate creates, updates, and deletes templates. Built-in
// templates reject updates and deletes.
type ManageTemplate struct {
	store storage.Store
}

func NewManageTemplate(store storage.Store) *ManageTemplate {
	return &ManageTemplate{store: store}
}

func (t *ManageTemplate) Name() string { return "manage_template" }
func (t *ManageTemplate) Description() string {
	return "Create, update, or delete a section template. A template carries prototype sections for one target entity type (project, feature, or task); built-in templates cannot be modified or deleted."
}
func (t *ManageTemplate) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "operation": {"type": "string", "enum": ["create", "update", "delete"]},
    "id": {"type": "string", "description": "Template id (update, delete)"},
    "name": {"type": "string", "description": "Unique per target entity type"},
    "description": {"type": "string"},
    "targetEntityType": {"type": "string", "enum": ["project", "feature", "task"]},
    "isEnabled": {"type": "boolean"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "sections": {
      "type": "array",
      "description": "Prototype sections, in order (create only)",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "usageDescription": {"type": "string"},
          "content": {"type": "string"},
          "contentFormat": {"type": "string", "enum": ["markdown", "plain_text", "json", "code"]},
          "isRequired": {"type": "boolean"},
          "tags": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["title"]
      }
    }
  },
  "required": ["operation"]
}`)
}

func (t *ManageTemplate) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p manageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}

	switch p.Operation {
	case "create":
		return t.create(ctx, &p)
	case "update":
		return t.update(ctx, &p)
	case "delete":
		return t.delete(ctx, p.ID)
	default:
		return respond.Validationf("unknown operation %q", p.Operation)
	}
}

func (t *ManageTemplate) create(ctx context.Context, p *manageParams) (*mcp.ToolsCallResult, error) {
	if p.Name == "" {
		return respond.Validationf("name is required")
	}
	target, err := model.ParseEntityType(p.TargetEntityType)
	if err != nil {
		return respond.Validationf("%v", err)
	}
	if target == model.EntityTemplate {
		return respond.Validationf("targetEntityType must be project, feature, or task")
	}

	now := time.Now().UTC()
	tpl := &model.Template{
		ID:               model.NewID(),
		Name:             p.Name,
		Description:      p.Description,
		TargetEntityType: target,
		IsEnabled:        true,
		Tags:             model.NormalizeTags(p.Tags),
		CreatedAt:        now,
		ModifiedAt:       now,
	}
	if p.IsEnabled != nil {
		tpl.IsEnabled = *p.IsEnabled
	}

	protos := make([]*model.TemplateSection, 0, len(p.Sections))
	for i, def := range p.Sections {
		if def.Title == "" {
			return respond.Validationf("sections[%d]: title is required", i)
		}
		format := model.FormatMarkdown
		if def.ContentFormat != "" {
			if format, err = model.ParseContentFormat(def.ContentFormat); err != nil {
				return respond.Validationf("sections[%d]: %v", i, err)
			}
		}
		protos = append(protos, &model.TemplateSection{
			ID:               model.NewID(),
			TemplateID:       tpl.ID,
			Title:            def.Title,
			UsageDescription: def.UsageDescription,
			Content:          def.Content,
			ContentFormat:    format,
			Ordinal:          i,
			IsRequired:       def.IsRequired,
			Tags:             model.NormalizeTags(def.Tags),
		})
	}

	if err := t.store.CreateTemplate(ctx, tpl, protos); err != nil {
		return respond.FromError(err)
	}
	return respond.OK("Template created", views.FromTemplate(tpl))
}

func (t *ManageTemplate) update(ctx context.Context, p *manageParams) (*mcp.ToolsCallResult, error) {
	if p.ID == "" {
		return respond.Validationf("id is required")
	}
	tpl, err := t.store.GetTemplate(ctx, p.ID)
	if err != nil {
		return respond.FromError(err)
	}
	if p.Name != "" {
		tpl.Name = p.Name
	}
	if p.Description != "" {
		tpl.Description = p.Description
	}
	if p.IsEnabled != nil {
		tpl.IsEnabled = *p.IsEnabled
	}
	if p.Tags != nil {
		tpl.Tags = model.NormalizeTags(p.Tags)
	}
	tpl.ModifiedAt = time.Now().UTC()
	if err := t.store.UpdateTemplate(ctx, tpl); err != nil {
		return respond.FromError(err)
	}
	return respond.OK("Template updated", views.FromTemplate(tpl))
}

func (t *ManageTemplate) delete(ctx context.Context, id string) (*mcp.ToolsCallResult, error) {
	if id == "" {
		return respond.Validationf("id is required")
	}
	deleted, err := t.store.DeleteTemplate(ctx, id)
	if err != nil {
		return respond.FromError(err)
	}
	if !deleted {
		return respond.Fail(respond.CodeNotFound, fmt.Sprintf("no template with id %s", id), nil)
	}
	return respond.OK("Template deleted", map[string]any{"id": id, "deleted": true})
}

// --- query_templates ---

type queryParams struct {
	ID               string `json:"id,omitempty"`
	TargetEntityType string `json:"targetEntityType,omitempty"`
	EnabledOnly      bool   `json:"enabledOnly,omitempty"`
}

// QueryTemplates lists templates or fetches one with its prototype
// sections.
type QueryTemplates struct {
	store storage.Store
}

func NewQueryTemplates(store storage.Store) *QueryTemplates {
	return &QueryTemplates{store: store}
}

func (t *QueryTemplates) Name() string { return "query_templates" }
func (t *QueryTemplates) Description() string {
	return "List templates, optionally filtered by target entity type and enabled state; or fetch one template by id including its prototype sections."
}
func (t *QueryTemplates) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "id": {"type": "string", "description": "Fetch a single template with its sections"},
    "targetEntityType": {"type": "string", "enum": ["project", "feature", "task"]},
    "enabledOnly": {"type": "boolean"}
  }
}`)
}

func (t *QueryTemplates) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p queryParams
	if params != nil {
		if err := json.Unmarshal(params, &p); err != nil {
			return respond.Validationf("invalid parameters: %v", err)
		}
	}

	if p.ID != "" {
		tpl, err := t.store.GetTemplate(ctx, p.ID)
		if err != nil {
			return respond.FromError(err)
		}
		protos, err := t.store.ListTemplateSections(ctx, tpl.ID)
		if err != nil {
			return respond.FromError(err)
		}
		sectionViews := make([]views.TemplateSection, 0, len(protos))
		for _, proto := range protos {
			sectionViews = append(sectionViews, views.FromTemplateSection(proto))
		}
		return respond.OK("OK", map[string]any{
			"template": views.FromTemplate(tpl),
			"sections": sectionViews,
		})
	}

	var target model.EntityType
	if p.TargetEntityType != "" {
		parsed, err := model.ParseEntityType(p.TargetEntityType)
		if err != nil {
			return respond.Validationf("%v", err)
		}
		target = parsed
	}
	tpls, err := t.store.ListTemplates(ctx, target, p.EnabledOnly)
	if err != nil {
		return respond.FromError(err)
	}
	items := make([]views.Template, 0, len(tpls))
	for _, tpl := range tpls {
		items = append(items, views.FromTemplate(tpl))
	}
	return respond.OK(fmt.Sprintf("Found %d template(s)", len(items)), map[string]any{
		"items": items,
		"count": len(items),
	})
}

// --- apply_template ---

type applyParams struct {
	TemplateIDs   []string `json:"templateIds"`
	TargetType    string   `json:"targetType"`
	TargetID      string   `json:"targetId"`
	DuplicateMode string   `json:"duplicateMode,omitempty"`
}

// ApplyTemplate materializes one or more templates onto an existing
// entity, atomically.
type ApplyTemplate struct {
	engine   *template.Engine
	exporter containers.Exporter
}

func NewApplyTemplate(engine *template.Engine, exporter containers.Exporter) *ApplyTemplate {
	return &ApplyTemplate{engine: engine, exporter: exporter}
}

func (t *ApplyTemplate) Name() string { return "apply_template" }
func (t *ApplyTemplate) Description() string {
	return "Apply one or more templates to an existing project, feature, or task, creating their prototype sections. The whole application is atomic: with duplicateMode=error a single duplicate title rolls back every section. Modes: skip (default), overwrite, error."
}
func (t *ApplyTemplate) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "templateIds": {"type": "array", "items": {"type": "string"}},
    "targetType": {"type": "string", "enum": ["project", "feature", "task"]},
    "targetId": {"type": "string"},
    "duplicateMode": {"type": "string", "enum": ["skip", "overwrite", "error"]}
  },
  "required": ["templateIds", "targetType", "targetId"]
}`)
}

func (t *ApplyTemplate) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p applyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}
	if len(p.TemplateIDs) == 0 {
		return respond.Validationf("templateIds must not be empty")
	}
	if p.TargetID == "" {
		return respond.Validationf("targetId is required")
	}
	target, err := model.ParseEntityType(p.TargetType)
	if err != nil {
		return respond.Validationf("%v", err)
	}
	mode, err := template.ParseDuplicateMode(p.DuplicateMode)
	if err != nil {
		return respond.Validationf("%v", err)
	}

	result, err := t.engine.Apply(ctx, p.TemplateIDs, target, p.TargetID, mode)
	if err != nil {
		return respond.FromError(err)
	}
	if t.exporter != nil && target != model.EntityTemplate {
		t.exporter.ExportEntity(target, p.TargetID)
	}
	return respond.OK(
		fmt.Sprintf("Applied %d template(s): %d created, %d overwritten, %d skipped",
			len(result.TemplatesApplied), result.SectionsCreated, result.SectionsOverwrote, result.SectionsSkipped),
		result,
	)
}
