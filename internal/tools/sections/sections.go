// Package sections implements the manage_sections and query_sections
// tools: ordered content blocks attached to projects, features, tasks,
// and templates.
package sections

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/tools/respond"
	"github.com/taskvault/taskvault/internal/tools/views"
)

type sectionFields struct {
	Title            *string  `json:"title,omitempty"`
	UsageDescription *string  `json:"usageDescription,omitempty"`
	Content          *string  `json:"content,omitempty"`
	ContentFormat    *string  `json:"contentFormat,omitempty"`
	Ordinal          *int     `json:"ordinal,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

type sectionItem struct {
	ID string `json:"id,omitempty"`
	sectionFields
}

type manageParams struct {
	Operation  string `json:"operation"`
	ID         string `json:"id,omitempty"`
	EntityType string `json:"entityType,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
	sectionFields
	OrderedIDs []string      `json:"orderedIds,omitempty"`
	Items      []sectionItem `json:"items,omitempty"`
}

// ManageSections is the write side of the section surface.
type ManageSections struct {
	store storage.Store
}

func NewManageSections(store storage.Store) *ManageSections {
	return &ManageSections{store: store}
}

func (t *ManageSections) Name() string { return "manage_sections" }
func (t *ManageSections) Description() string {
	return "Add, update, delete, reorder, or bulk-edit content sections on a project, feature, task, or template. updateText changes only the content; updateMetadata changes only title, usage description, format, and tags. reorder takes the complete ordered id list for the entity."
}
func (t *ManageSections) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "operation": {"type": "string", "enum": ["add", "update", "updateText", "updateMetadata", "delete", "reorder", "bulkCreate", "bulkUpdate", "bulkDelete"]},
    "id": {"type": "string", "description": "Section id (update/updateText/updateMetadata/delete)"},
    "entityType": {"type": "string", "enum": ["project", "feature", "task", "template"]},
    "entityId": {"type": "string", "description": "Owning entity id (add, reorder, bulkCreate)"},
    "title": {"type": "string"},
    "usageDescription": {"type": "string", "description": "Hint for agents about what belongs in this section"},
    "content": {"type": "string"},
    "contentFormat": {"type": "string", "enum": ["markdown", "plain_text", "json", "code"]},
    "ordinal": {"type": "integer"},
    "tags": {"type": "array", "items": {"type": "string"}},
    "orderedIds": {"type": "array", "items": {"type": "string"}, "description": "Complete new ordering for reorder"},
    "items": {"type": "array", "description": "Bulk items; each carries id (bulkUpdate/bulkDelete) or the creation fields (bulkCreate)", "items": {"type": "object"}}
  },
  "required": ["operation"]
}`)
}

func (t *ManageSections) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p manageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}

	switch p.Operation {
	case "add":
		return t.add(ctx, &p)
	case "update":
		return t.update(ctx, p.ID, p.sectionFields, true, true)
	case "updateText":
		return t.update(ctx, p.ID, p.sectionFields, true, false)
	case "updateMetadata":
		return t.update(ctx, p.ID, p.sectionFields, false, true)
	case "delete":
		return t.delete(ctx, p.ID)
	case "reorder":
		return t.reorder(ctx, &p)
	case "bulkCreate":
		return t.bulkCreate(ctx, &p)
	case "bulkUpdate":
		return t.bulkUpdate(ctx, p.Items)
	case "bulkDelete":
		return t.bulkDelete(ctx, p.Items)
	default:
		return respond.Validationf("unknown operation %q", p.Operation)
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// buildSection validates the creation fields and assembles a new section
// for the given owner.
func buildSection(kind model.EntityType, entityID string, f sectionFields) (*model.Section, error) {
	if str(f.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", storage.ErrValidation)
	}
	format := model.FormatMarkdown
	if str(f.ContentFormat) != "" {
		var err error
		if format, err = model.ParseContentFormat(*f.ContentFormat); err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
		}
	}
	now := time.Now().UTC()
	sec := &model.Section{
		ID:               model.NewID(),
		EntityType:       kind,
		EntityID:         entityID,
		Title:            *f.Title,
		UsageDescription: str(f.UsageDescription),
		Content:          str(f.Content),
		ContentFormat:    format,
		Tags:             model.NormalizeTags(f.Tags),
		CreatedAt:        now,
		ModifiedAt:       now,
	}
	if f.Ordinal != nil {
		sec.Ordinal = *f.Ordinal
	} else {
		sec.Ordinal = -1 // store appends after the current maximum
	}
	return sec, nil
}

func (t *ManageSections) owner(p *manageParams) (model.EntityType, error) {
	if p.EntityType == "" || p.EntityID == "" {
		return "", fmt.Errorf("entityType and entityId are required")
	}
	return model.ParseEntityType(p.EntityType)
}

func (t *ManageSections) add(ctx context.Context, p *manageParams) (*mcp.ToolsCallResult, error) {
	kind, err := t.owner(p)
	if err != nil {
		return respond.Validationf("%v", err)
	}
	sec, err := buildSection(kind, p.EntityID, p.sectionFields)
	if err != nil {
		return respond.FromError(err)
	}
	if err := t.store.CreateSection(ctx, sec); err != nil {
		return respond.FromError(err)
	}
	return respond.OK("Section added", views.FromSection(sec))
}

func (t *ManageSections) update(ctx context.Context, id string, f sectionFields, text, metadata bool) (*mcp.ToolsCallResult, error) {
	if id == "" {
		return respond.Validationf("id is required")
	}
	sec, err := t.applyUpdate(ctx, id, f, text, metadata)
	if err != nil {
		return respond.FromError(err)
	}
	return respond.OK("Section updated", views.FromSection(sec))
}

func (t *ManageSections) applyUpdate(ctx context.Context, id string, f sectionFields, text, metadata bool) (*model.Section, error) {
	sec, err := t.store.GetSection(ctx, id)
	if err != nil {
		return nil, err
	}
	if text && f.Content != nil {
		sec.Content = *f.Content
	}
	if metadata {
		if f.Title != nil {
			sec.Title = *f.Title
		}
		if f.UsageDescription != nil {
			sec.UsageDescription = *f.UsageDescription
		}
		if f.ContentFormat != nil {
			format, err := model.ParseContentFormat(*f.ContentFormat)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", storage.ErrValidation, err)
			}
			sec.ContentFormat = format
		}
		if f.Ordinal != nil {
			sec.Ordinal = *f.Ordinal
		}
		if f.Tags != nil {
			sec.Tags = model.NormalizeTags(f.Tags)
		}
	}
	sec.ModifiedAt = time.Now().UTC()
	if err := t.store.UpdateSection(ctx, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

func (t *ManageSections) delete(ctx context.Context, id string) (*mcp.ToolsCallResult, error) {
	if id == "" {
		return respond.Validationf("id is required")
	}
	deleted, err := t.store.DeleteSection(ctx, id)
	if err != nil {
		return respond.FromError(err)
	}
	if !deleted {
		return respond.Fail(respond.CodeNotFound, fmt.Sprintf("no section with id %s", id), nil)
	}
	return respond.OK("Section deleted", map[string]any{"id": id, "deleted": true})
}

func (t *ManageSections) reorder(ctx context.Context, p *manageParams) (*mcp.ToolsCallResult, error) {
	kind, err := t.owner(p)
	if err != nil {
		return respond.Validationf("%v", err)
	}
	if len(p.OrderedIDs) == 0 {
		return respond.Validationf("orderedIds must not be empty")
	}
	if err := t.store.ReorderSections(ctx, kind, p.EntityID, p.OrderedIDs); err != nil {
		return respond.FromError(err)
	}
	return respond.OK("Sections reordered", map[string]any{"orderedIds": p.OrderedIDs})
}

func (t *ManageSections) bulkCreate(ctx context.Context, p *manageParams) (*mcp.ToolsCallResult, error) {
	kind, err := t.owner(p)
	if err != nil {
		return respond.Validationf("%v", err)
	}
	if len(p.Items) == 0 {
		return respond.Validationf("items must not be empty")
	}
	outcome := &respond.BulkOutcome{}
	for i, item := range p.Items {
		sec, err := buildSection(kind, p.EntityID, item.sectionFields)
		if err == nil {
			err = t.store.CreateSection(ctx, sec)
		}
		if err != nil {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, respond.BulkFailure{
				Index: i, Code: respond.CodeFor(err), Message: err.Error(),
			})
			continue
		}
		outcome.Count++
		outcome.Items = append(outcome.Items, views.FromSection(sec))
	}
	return outcome.Respond(fmt.Sprintf("Created %d of %d section(s)", outcome.Count, len(p.Items)))
}

func (t *ManageSections) bulkUpdate(ctx context.Context, items []sectionItem) (*mcp.ToolsCallResult, error) {
	if len(items) == 0 {
		return respond.Validationf("items must not be empty")
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
		sec, err := t.applyUpdate(ctx, item.ID, item.sectionFields, true, true)
		if err != nil {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, respond.BulkFailure{
				ID: item.ID, Index: i, Code: respond.CodeFor(err), Message: err.Error(),
			})
			continue
		}
		outcome.Count++
		outcome.Items = append(outcome.Items, views.FromSection(sec))
	}
	return outcome.Respond(fmt.Sprintf("Updated %d of %d section(s)", outcome.Count, len(items)))
}

func (t *ManageSections) bulkDelete(ctx context.Context, items []sectionItem) (*mcp.ToolsCallResult, error) {
	if len(items) == 0 {
		return respond.Validationf("items must not be empty")
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
		deleted, err := t.store.DeleteSection(ctx, item.ID)
		if err != nil {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, respond.BulkFailure{
				ID: item.ID, Index: i, Code: respond.CodeFor(err), Message: err.Error(),
			})
			continue
		}
		if !deleted {
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, respond.BulkFailure{
				ID: item.ID, Index: i, Code: respond.CodeNotFound, Message: "section not found",
			})
			continue
		}
		outcome.Count++
	}
	return outcome.Respond(fmt.Sprintf("Deleted %d of %d section(s)", outcome.Count, len(items)))
}

// --- query_sections ---

type queryParams struct {
	EntityType string   `json:"entityType"`
	EntityID   string   `json:"entityId"`
	Tags       []string `json:"tags,omitempty"`
	Format     string   `json:"contentFormat,omitempty"`
}

// QuerySections lists an entity's sections in ordinal order, optionally
// filtered by tags and content format.
type QuerySections struct {
	store storage.Store
}

func NewQuerySections(store storage.Store) *QuerySections {
	return &QuerySections{store: store}
}

func (t *QuerySections) Name() string { return "query_sections" }
func (t *QuerySections) Description() string {
	return "List the content sections of a project, feature, task, or template in order, optionally filtered by tags and content format."
}
func (t *QuerySections) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "entityType": {"type": "string", "enum": ["project", "feature", "task", "template"]},
    "entityId": {"type": "string"},
    "tags": {"type": "array", "items": {"type": "string"}, "description": "All listed tags must be present"},
    "contentFormat": {"type": "string", "enum": ["markdown", "plain_text", "json", "code"]}
  },
  "required": ["entityType", "entityId"]
}`)
}

func (t *QuerySections) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p queryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}
	if p.EntityType == "" || p.EntityID == "" {
		return respond.Validationf("entityType and entityId are required")
	}
	kind, err := model.ParseEntityType(p.EntityType)
	if err != nil {
		return respond.Validationf("%v", err)
	}
	var format model.ContentFormat
	if p.Format != "" {
		if format, err = model.ParseContentFormat(p.Format); err != nil {
			return respond.Validationf("%v", err)
		}
	}

	sections, err := t.store.ListSections(ctx, kind, p.EntityID)
	if err != nil {
		return respond.FromError(err)
	}

	q := model.Query{Tags: model.NormalizeTags(p.Tags)}
	items := make([]views.Section, 0, len(sections))
	for _, sec := range sections {
		if format != "" && sec.ContentFormat != format {
			continue
		}
		if !q.MatchesTags(sec.Tags) {
			continue
		}
		items = append(items, views.FromSection(sec))
	}
	return respond.OK(fmt.Sprintf("Found %d section(s)", len(items)), map[string]any{
		"items": items,
		"count": len(items),
	})
}
