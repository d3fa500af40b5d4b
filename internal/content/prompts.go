// Package content provides MCP prompts and resources for the TaskVault server.
package content

import "github.com/taskvault/taskvault/internal/mcp"

// --- taskvault-guide prompt ---

// GuidePrompt is the primary LLM-facing prompt that explains the TaskVault
// concept, the status workflow model, and how to use the tools.
type GuidePrompt struct{}

func (p *GuidePrompt) Definition() mcp.PromptDefinition {
	return mcp.PromptDefinition{
		Name:        "taskvault-guide",
		Description: "Comprehensive guide to TaskVault: hierarchy, status workflows, dependencies, templates, and tool usage",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "focus",
				Description: "Optional focus area: 'overview', 'workflow', 'dependencies', 'tools', or 'vault'. Defaults to full guide.",
				Required:    false,
			},
		},
	}
}

func (p *GuidePrompt) Get(arguments map[string]string) (*mcp.PromptsGetResult, error) {
	focus := arguments["focus"]

	var text string
	switch focus {
	case "workflow":
		text = guideWorkflowSection
	case "dependencies":
		text = guideDependenciesSection
	case "tools":
		text = guideToolsSection
	case "vault":
		text = guideVaultSection
	default:
		text = guideFull
	}

	return &mcp.PromptsGetResult{
		Description: "TaskVault guide" + focusSuffix(focus),
		Messages: []mcp.PromptMessage{
			{
				Role:    "user",
				Content: mcp.TextContent(text),
			},
		},
	}, nil
}

func focusSuffix(focus string) string {
	if focus == "" {
		return ""
	}
	return " (" + focus + ")"
}

// --- taskvault-next-work prompt ---

// NextWorkPrompt guides an LLM through picking and progressing the next
// piece of work inside a project.
type NextWorkPrompt struct{}

func (p *NextWorkPrompt) Definition() mcp.PromptDefinition {
	return mcp.PromptDefinition{
		Name:        "taskvault-next-work",
		Description: "Step-by-step guide for finding and progressing the next available task in a project",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "project_id",
				Description: "Project to work within",
				Required:    false,
			},
		},
	}
}

func (p *NextWorkPrompt) Get(arguments map[string]string) (*mcp.PromptsGetResult, error) {
	projectID := arguments["project_id"]
	text := buildNextWorkGuide(projectID)

	return &mcp.PromptsGetResult{
		Description: "TaskVault next-work guide",
		Messages: []mcp.PromptMessage{
			{
				Role:    "user",
				Content: mcp.TextContent(text),
			},
		},
	}, nil
}

func buildNextWorkGuide(projectID string) string {
	pid := projectID
	if pid == "" {
		pid = "<project-id>"
	}
	return `# Finding the Next Task

**Project**: ` + "`" + pid + "`" + `

## 1. Survey the project

Call ` + "`query_container`" + ` with operation="overview", containerType="project", id="` + pid + `".
This returns every feature with its task counts by status, so you can see where work is
concentrated and what is already done.

## 2. Find unblocked work

Call ` + "`query_dependencies`" + ` with operation="batches" and projectId="` + pid + `".
Tasks are grouped into topologically ordered batches; every task in the first batch has no
unfinished blockers and can be started immediately. Tasks within one batch can run in parallel.

Before starting a specific task, confirm with operation="blockers" and its taskId that
nothing is still blocking it.

## 3. Check the workflow position

Call ` + "`query_workflow_state`" + ` with containerType="task" and the task id. This shows the
active flow (selected by the task's tags), the full status sequence, the task's position in
it, and the current recommendation.

## 4. Progress the task

Call ` + "`manage_container`" + ` with operation="set_status". The engine validates the
transition:
- Prerequisites (for completion: a 300-500 character summary) must be satisfied
- Blocking dependencies must be resolved before moving to a terminal status
- Terminal statuses only regress through explicit emergency transitions

When a transition is blocked, the error details name the exact blockers. Fix them and retry;
never work around the workflow by deleting and recreating entities.

## 5. Record the outcome

Completion flows usually require a summary. Pass summary= on the set_status call, or update
the task first. Keep summaries concrete: what changed, where, and how it was verified.
`
}

// --- Full guide content ---

const guideFull = `# TaskVault — Hierarchical Task Management via MCP

## What is TaskVault?

TaskVault is a Model Context Protocol (MCP) server for managing hierarchical project work:
**Projects** contain **Features**, Features contain **Tasks**, and every level carries ordered
**Sections** of rich content. All data lives in a local SQLite database; an optional Markdown
vault mirrors it as human-readable files with YAML front-matter.

This enables:
- **Structured planning**: a stable three-level hierarchy with per-entity content sections
- **Configurable workflows**: status progressions defined in YAML, selected per entity by tags
- **Dependency management**: blocking edges with cycle rejection and parallel execution batches
- **Templates**: reusable section scaffolding applied at creation time or on demand
- **Markdown vault**: an always-current file mirror for editors like Obsidian

## Core Concepts

### Hierarchy
` + "```" + `
Project → Feature → Task
` + "```" + `
Tasks may attach directly to a project (featureless tasks) or to a feature. Deleting a
container cascades to its children and their sections.

### Sections
Every project, feature, and task holds an ordered list of sections (title, content,
content format, tags). Sections are where specs, notes, and acceptance criteria live.

### Status Workflows
Statuses are not hard-coded. Each entity type has a set of **flows** defined in workflow
YAML files; an entity's tags select which flow applies (for example a task tagged ` + "`bug`" + `
follows the bug flow). Transitions are validated:
- Completion gates on a summary and on resolved blockers
- Terminal statuses only regress through explicit emergency transitions
- Blocking dependencies gate completion

### Dependencies
Tasks link with typed edges: BLOCKS, IS_BLOCKED_BY, RELATES_TO. Blocking edges form a DAG;
edges that would close a cycle are rejected with the offending path. Topological batching
yields groups of tasks that can run in parallel.

### Templates
A template carries prototype sections for one target entity type. Apply templates at
creation time (templateIds on create) or later with apply_template. Application is atomic.

### Markdown Vault
When MD_VAULT_PATH is set, every write is mirrored to Markdown files organized as
Projects/<project>/Features/<feature>/Tasks/. Renames move files, deletes remove them,
and rebuild_vault regenerates everything from scratch.

## Tools (15)

### Containers
- **manage_container** — create, update, delete, set_status, bulk_update for projects/features/tasks
- **query_container** — get, list, search, overview, export for any container

### Sections
- **manage_sections** — add, update, reorder, delete sections (single or bulk)
- **query_sections** — list an entity's sections with filters

### Templates
- **manage_template** — create, update, delete templates
- **query_templates** — list templates or fetch one with its prototype sections
- **apply_template** — materialize templates onto an existing entity

### Dependencies
- **manage_dependency** — create or delete dependency edges (cycle-checked)
- **query_dependencies** — views, blockers, parallel batches

### Tags
- **list_tags** — every tag with usage counts
- **get_tag_usage** — which entities carry a tag
- **rename_tag** — rename a tag everywhere, atomically

### Workflow
- **get_next_status** — recommended next status for an entity
- **query_workflow_state** — full workflow view: active flow, position, transitions

### Vault
- **rebuild_vault** — schedule a full re-export of the Markdown vault

## Response Envelope

Every tool returns ` + "`{success, message, data?, error?}`" + `. On failure, error.code is one of
VALIDATION_ERROR, RESOURCE_NOT_FOUND, DUPLICATE_RESOURCE, OPERATION_FAILED, DATABASE_ERROR,
INTERNAL_ERROR, and error.details carries machine-readable specifics (for example the
blockers of a rejected transition, or the path of a rejected dependency cycle).

## Recommended Workflow

1. **Create the project**: manage_container create with name and tags
2. **Scaffold**: apply a project template, add features, then tasks under them
3. **Wire dependencies**: manage_dependency for the blocking structure
4. **Work the batches**: query_dependencies batches, progress tasks with set_status
5. **Keep content current**: manage_sections as understanding evolves
6. **Let the vault follow**: exports happen automatically after every write
`

const guideWorkflowSection = `# TaskVault Status Workflows

Statuses are configuration, not code. Workflow YAML files define, per entity type, a set of
named flows plus terminal statuses and emergency transitions.

## Flow Selection

An entity's tags pick its flow. Each flow lists trigger tags; the first flow whose trigger
matches one of the entity's tags wins, otherwise the default flow applies. A task tagged
` + "`bug`" + ` therefore follows the bug flow while an untagged task follows the default
sequence (out of the box: pending, in-progress, testing, completed).

query_workflow_state reports the active flow, the tags that selected it, and the entity's
position in the sequence.

## Transition Validation

set_status validates every proposed transition in order:
1. The proposed status must exist in the active flow (or be an emergency transition)
2. Terminal statuses never regress except through an explicit emergency transition
3. Prerequisites on the proposed status must hold, for example:
   - completing a task requires a 300-500 character summary
   - completing a feature requires every task to be terminal
   - starting development on a feature requires at least one task
4. Blocking dependencies must be resolved before a task completes

A rejected transition returns VALIDATION_ERROR with details naming the current status, the
proposed status, and the concrete blockers.

## Cascades

Some transitions ripple:
- Completing the last task of a feature suggests completing the feature
- Reopening a task in a done feature suggests reopening the feature
Cascade events are reported in the set_status response under cascadeEvents; automatic ones
have already been applied, suggestions are yours to act on.

## Hot Reload

Workflow files are watched; edits apply to the running server without restart. Entities
whose current status disappears from the new configuration keep it until their next
transition.
`

const guideDependenciesSection = `# TaskVault Dependencies

Tasks link with typed, directed edges.

## Edge Types

| Type | Meaning | Graph role |
|------|---------|-----------|
| BLOCKS | from must finish before to starts | DAG edge |
| IS_BLOCKED_BY | inverse statement of BLOCKS | stored as given, read as a BLOCKS edge in reverse |
| RELATES_TO | informational link | ignored by ordering |

## Cycle Rejection

Creating a BLOCKS (or IS_BLOCKED_BY) edge that would close a cycle fails with
VALIDATION_ERROR; error.details carries the cycle path so you can see exactly which chain of
edges conflicts. RELATES_TO edges are never cycle-checked.

## Blockers

query_dependencies operation="blockers" returns the tasks currently blocking a given task:
only blocking predecessors whose status is not terminal count. An empty list means the task
is ready to start.

## Batches

query_dependencies operation="batches" computes parallel execution batches for a project or
feature scope. Batch 1 contains every task with no unfinished blockers; batch 2 contains
tasks unblocked once batch 1 completes; and so on. Tasks within one batch are independent
and can run in parallel. Ties within a batch are ordered deterministically.

## Completion Gating

The workflow engine consults the dependency graph: a task cannot move to a terminal status
while it still has open blockers. The rejected transition names them.
`

const guideToolsSection = `# TaskVault Tools Reference

## Container Tools
| Tool | Purpose |
|------|---------|
| manage_container | create / update / delete / set_status / bulk_update for projects, features, tasks |
| query_container | get / list / search / overview / export |

## Section Tools
| Tool | Purpose |
|------|---------|
| manage_sections | add / update / update_text / update_metadata / delete / reorder / bulk ops |
| query_sections | list an entity's sections, filter by tags or content format |

## Template Tools
| Tool | Purpose |
|------|---------|
| manage_template | create / update / delete a template with prototype sections |
| query_templates | list templates or fetch one with sections |
| apply_template | materialize templates onto an entity (skip / overwrite / error modes) |

## Dependency Tools
| Tool | Purpose |
|------|---------|
| manage_dependency | create / delete edges, cycle-checked |
| query_dependencies | views / blockers / batches |

## Tag Tools
| Tool | Purpose |
|------|---------|
| list_tags | all tags with usage counts |
| get_tag_usage | entity ids carrying a tag |
| rename_tag | atomic rename across all entities |

## Workflow Tools
| Tool | Purpose |
|------|---------|
| get_next_status | recommendation: Ready / Blocked / Terminal |
| query_workflow_state | active flow, sequence, position, transitions |

## Vault Tools
| Tool | Purpose |
|------|---------|
| rebuild_vault | schedule a full Markdown re-export |

## Conventions
- Filters accept comma-separated include tokens with ` + "`!`" + ` exclusions: ` + "`urgent,!done`" + `
- Bulk operations report partial success: {count, failed, items, failures}
- Update parameters distinguish "absent" from "empty"; omit a field to leave it unchanged
`

const guideVaultSection = `# TaskVault Markdown Vault

With MD_VAULT_PATH set, the server mirrors the database into a Markdown vault.

## Layout

` + "```" + `
<vault>/
  <Project Name>/
    _project.md
    <Feature Name>/
      _feature.md
      <Task Title>.md
    <Task Title>.md        (featureless tasks)
    Completed/             (terminal-status folders, per workflow config)
      <Task Title>.md
  .sync-state.json         (entity-id to file-path index)
` + "```" + `

Names are sanitized for the filesystem (forbidden characters stripped, reserved
names prefixed). Entities in a terminal status move into a per-status folder such
as Completed/ or Cancelled/.

## File Format

Each file opens with YAML front-matter (id, type, status, priority, tags, timestamps)
followed by the entity's sections rendered as Markdown headings. Section headings are
normalized so embedded headings cannot break the document structure.

## Synchronization

- Exports run asynchronously after each successful write; tools never wait on file I/O
- Renames and moves are detected through the sync-state index and relocate the file
- Deletes remove the file and prune empty directories
- rename_tag triggers a full re-export (front-matter of many files changes)
- rebuild_vault regenerates the entire vault on demand

The vault is an output mirror. Edits made directly to vault files are overwritten by the
next export of that entity.
`
