package content

import "github.com/taskvault/taskvault/internal/mcp"

// --- taskvault://entity-model resource ---

// EntityModelResource exposes the entity model as a reference resource.
// LLMs can read this to understand the data shapes before calling tools.
type EntityModelResource struct{}

func (r *EntityModelResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "taskvault://entity-model",
		Name:        "TaskVault Entity Model",
		Description: "Complete reference of all entity types, their fields, and their relationships",
		MimeType:    "text/markdown",
	}
}

func (r *EntityModelResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{
				URI:      "taskvault://entity-model",
				MimeType: "text/markdown",
				Text:     entityModelContent,
			},
		},
	}, nil
}

// --- taskvault://guide resource ---

// GuideResource is the primary LLM-facing reference. Same content as the
// taskvault-guide prompt, available for clients that prefer resources.
type GuideResource struct{}

func (r *GuideResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "taskvault://guide",
		Name:        "TaskVault Guide",
		Description: "Comprehensive reference for TaskVault: hierarchy, workflows, dependencies, templates, vault, and tool usage",
		MimeType:    "text/markdown",
	}
}

func (r *GuideResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{
				URI:      "taskvault://guide",
				MimeType: "text/markdown",
				Text:     guideFull,
			},
		},
	}, nil
}

// --- taskvault://workflow resource ---

// WorkflowResource documents the status workflow model and its
// validation rules.
type WorkflowResource struct{}

func (r *WorkflowResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "taskvault://workflow",
		Name:        "TaskVault Workflow Reference",
		Description: "Reference for tag-selected status flows, transition validation, prerequisites, and cascades",
		MimeType:    "text/markdown",
	}
}

func (r *WorkflowResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{
				URI:      "taskvault://workflow",
				MimeType: "text/markdown",
				Text:     guideWorkflowSection,
			},
		},
	}, nil
}

// --- taskvault://tool-reference resource ---

// ToolReferenceResource exposes a quick-reference card for all 15 tools.
type ToolReferenceResource struct{}

func (r *ToolReferenceResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "taskvault://tool-reference",
		Name:        "TaskVault Tool Reference",
		Description: "Quick-reference card for all 15 TaskVault tools with parameters and usage notes",
		MimeType:    "text/markdown",
	}
}

func (r *ToolReferenceResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{
				URI:      "taskvault://tool-reference",
				MimeType: "text/markdown",
				Text:     toolReferenceContent,
			},
		},
	}, nil
}

// --- taskvault://vault-layout resource ---

// VaultLayoutResource documents the Markdown vault directory layout and
// synchronization behavior.
type VaultLayoutResource struct{}

func (r *VaultLayoutResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "taskvault://vault-layout",
		Name:        "TaskVault Vault Layout",
		Description: "Reference for the Markdown vault: directory layout, file format, and sync behavior",
		MimeType:    "text/markdown",
	}
}

func (r *VaultLayoutResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{
				URI:      "taskvault://vault-layout",
				MimeType: "text/markdown",
				Text:     guideVaultSection,
			},
		},
	}, nil
}

// --- Static content ---

const entityModelContent = `# TaskVault Entity Model

## Project
Top-level container for a body of work.
- **Fields**: id, name (unique), description, status, tags ([]string), createdAt, modifiedAt
- **Children**: features (1:N), tasks (1:N, featureless), sections (1:N ordered)

## Feature
A cohesive slice of a project.
- **Fields**: id, projectId (required), name, description, status, priority (low/medium/high/critical), tags, createdAt, modifiedAt
- **Children**: tasks (1:N), sections (1:N ordered)

## Task
The unit of work.
- **Fields**: id, projectId (required), featureId (optional), title, description, status, priority, complexity (1-10), summary (completion notes), tags, createdAt, modifiedAt
- **Children**: sections (1:N ordered)
- **Edges**: dependencies to other tasks

## Section
Ordered content block attached to a project, feature, or task.
- **Fields**: id, entityType, entityId, title, usageDescription, content, contentFormat (markdown/plain_text/json/code), ordinal, tags, createdAt, modifiedAt
- Ordinals are contiguous from 0 within one entity; reorder rewrites them

## Template
Reusable section scaffolding for one target entity type.
- **Fields**: id, name (unique per target type), description, targetEntityType, isEnabled, isBuiltIn, tags, createdAt, modifiedAt
- **Children**: template sections (prototypes with title, content, contentFormat, ordinal, isRequired)
- Built-in templates reject update and delete

## Dependency
Directed, typed edge between two tasks.
- **Fields**: id, fromTaskId, toTaskId, type (BLOCKS / IS_BLOCKED_BY / RELATES_TO), createdAt
- The pair (fromTaskId, toTaskId, type) is unique; self-edges are rejected
- Blocking edges are cycle-checked at creation

## Status & Tags
- Statuses are defined by workflow YAML, not a fixed enum; normalization lowercases and
  replaces spaces with underscores
- Tags are free-form strings, normalized (trimmed, deduplicated case-insensitively);
  matching is always case-insensitive

## Cascade Semantics
- Delete project → deletes its features, tasks, sections, and dependency edges
- Delete feature → deletes its tasks and their sections
- Delete task → deletes its sections and its dependency edges
`

const toolReferenceContent = `# TaskVault Tool Quick Reference

## Container Tools

### manage_container
One tool for all container writes.
- **Required**: operation (create/update/delete/set_status/bulk_update), containerType (project/feature/task)
- **create**: name (project/feature) or title (task); projectId for features and tasks; featureId optional for tasks; description, priority, complexity, tags, templateIds, duplicateMode
- **update**: id plus any fields to change; omitted fields stay untouched
- **delete**: id; cascades to children
- **set_status**: id, status; summary optional (required by completion prerequisites); response includes cascadeEvents when transitions ripple
- **bulk_update**: updates ([{id, ...fields}]); partial success with per-item failures

### query_container
One tool for all container reads.
- **Required**: operation (get/list/search/overview/export), containerType
- **get**: id; returns the container with its sections
- **list**: filters status, priority, tags ("a,b,!c"), projectId, featureId, limit
- **search**: text (matches name/title and description) plus list filters; minimal projections
- **overview**: project → features with task counts and minimal tasks; task → task with dependencies
- **export**: id; returns the entity rendered as vault Markdown

## Section Tools

### manage_sections
- **Required**: operation (add/update/update_text/update_metadata/delete/reorder/bulk_create/bulk_update/bulk_delete)
- **add**: entityType, entityId, title; content, contentFormat, ordinal (omit to append), tags
- **update_text** changes content only; **update_metadata** changes title/usageDescription/tags/ordinal only
- **reorder**: entityType, entityId, orderedIds (complete permutation of the entity's sections)

### query_sections
- **Required**: entityType, entityId
- **Optional**: tags filter, contentFormat filter

## Template Tools

### manage_template
- **create**: name, targetEntityType, sections ([{title, content, contentFormat, isRequired, ...}])
- **update**: id plus name/description/isEnabled/tags
- **delete**: id; built-ins are protected

### query_templates
- **Optional**: id (single template with sections), targetEntityType, enabledOnly

### apply_template
- **Required**: templateIds, targetType, targetId
- **Optional**: duplicateMode (skip/overwrite/error; default skip)
- Atomic: with mode=error one duplicate title rolls back every section

## Dependency Tools

### manage_dependency
- **create**: fromTaskId, toTaskId, type; blocking cycles rejected with the path in error.details
- **delete**: id, or the (fromTaskId, toTaskId, type) triple

### query_dependencies
- **views**: taskId → incoming/outgoing/related edges
- **blockers**: taskId → non-terminal blocking tasks
- **batches**: projectId or featureId → parallel execution batches in topological order

## Tag Tools

### list_tags
- **Optional**: sortBy (name/count)

### get_tag_usage
- **Required**: tag → ids of projects/features/tasks carrying it

### rename_tag
- **Required**: oldTag, newTag; atomic across all entities; DUPLICATE_RESOURCE when an
  entity already carries newTag

## Workflow Tools

### get_next_status
- **Required**: containerType, id
- **Returns**: Ready (with recommended status), Blocked (with blockers), or Terminal

### query_workflow_state
- **Required**: containerType, id
- **Returns**: activeFlow, matchedTags, flowSequence, position, isTerminal, terminalStatuses, emergencyTransitions, availableFlows, recommendation

## Vault Tools

### rebuild_vault
- No parameters; schedules a full asynchronous re-export. Requires MD_VAULT_PATH.
`
