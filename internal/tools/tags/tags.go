// Package tags implements the list_tags, get_tag_usage, and rename_tag
// tools.
package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/tools/respond"
)

// ListTags reports every tag in use with its usage count.
type ListTags struct {
	store storage.Store
}

func NewListTags(store storage.Store) *ListTags {
	return &ListTags{store: store}
}

func (t *ListTags) Name() string { return "list_tags" }
func (t *ListTags) Description() string {
	return "List every tag in use across projects, features, and tasks, with usage counts. Sort alphabetically (default) or by count."
}
func (t *ListTags) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "sortBy": {"type": "string", "enum": ["name", "count"], "description": "Default: name"}
  }
}`)
}

func (t *ListTags) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		SortBy string `json:"sortBy,omitempty"`
	}
	if params != nil {
		if err := json.Unmarshal(params, &p); err != nil {
			return respond.Validationf("invalid parameters: %v", err)
		}
	}

	counts, err := t.store.ListTags(ctx)
	if err != nil {
		return respond.FromError(err)
	}
	model.SortTagCounts(counts, p.SortBy == "count")
	if counts == nil {
		counts = []model.TagCount{}
	}
	return respond.OK(fmt.Sprintf("%d tag(s)", len(counts)), map[string]any{
		"tags":  counts,
		"count": len(counts),
	})
}

// GetTagUsage lists which entities carry a given tag.
type GetTagUsage struct {
	store storage.Store
}

func NewGetTagUsage(store storage.Store) *GetTagUsage {
	return &GetTagUsage{store: store}
}

func (t *GetTagUsage) Name() string { return "get_tag_usage" }
func (t *GetTagUsage) Description() string {
	return "List the ids of every project, feature, and task carrying a tag. Matching is case-insensitive."
}
func (t *GetTagUsage) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "tag": {"type": "string"}
  },
  "required": ["tag"]
}`)
}

func (t *GetTagUsage) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}
	if strings.TrimSpace(p.Tag) == "" {
		return respond.Validationf("tag is required")
	}

	usage, err := t.store.GetTagUsage(ctx, p.Tag)
	if err != nil {
		return respond.FromError(err)
	}
	total := len(usage.Projects) + len(usage.Features) + len(usage.Tasks)
	return respond.OK(fmt.Sprintf("Tag %q used by %d entit(ies)", p.Tag, total), usage)
}

// RenameTag renames a tag everywhere it appears, atomically.
type RenameTag struct {
	store storage.Store
}

func NewRenameTag(store storage.Store) *RenameTag {
	return &RenameTag{store: store}
}

func (t *RenameTag) Name() string { return "rename_tag" }
func (t *RenameTag) Description() string {
	return "Rename a tag on every entity carrying it, in one transaction. Fails with DUPLICATE_RESOURCE when an affected entity already carries the new tag."
}
func (t *RenameTag) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "oldTag": {"type": "string"},
    "newTag": {"type": "string"}
  },
  "required": ["oldTag", "newTag"]
}`)
}

func (t *RenameTag) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		OldTag string `json:"oldTag"`
		NewTag string `json:"newTag"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}
	oldTag := strings.TrimSpace(p.OldTag)
	newTag := strings.TrimSpace(p.NewTag)
	if oldTag == "" || newTag == "" {
		return respond.Validationf("oldTag and newTag are required")
	}
	if strings.EqualFold(oldTag, newTag) {
		return respond.Validationf("oldTag and newTag are the same")
	}

	n, err := t.store.RenameTag(ctx, oldTag, newTag)
	if err != nil {
		return respond.FromError(err)
	}
	return respond.OK(fmt.Sprintf("Renamed %q to %q on %d entit(ies)", oldTag, newTag, n), map[string]any{
		"oldTag":  oldTag,
		"newTag":  newTag,
		"updated": n,
	})
}
