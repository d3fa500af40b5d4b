// Package workflow implements the get_next_status and
// query_workflow_state tools over the status workflow engine.
package workflow

import (
	"context"
	"encoding/json"

	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/tools/respond"
	"github.com/taskvault/taskvault/internal/workflow"
)

// subjectFor loads the entity and builds the workflow subject.
func subjectFor(ctx context.Context, store storage.Store, kind model.EntityType, id string) (workflow.Subject, error) {
	switch kind {
	case model.EntityProject:
		p, err := store.GetProject(ctx, id)
		if err != nil {
			return workflow.Subject{}, err
		}
		return workflow.Subject{Kind: kind, ID: p.ID, Tags: p.Tags, Status: p.Status}, nil
	case model.EntityFeature:
		f, err := store.GetFeature(ctx, id)
		if err != nil {
			return workflow.Subject{}, err
		}
		return workflow.Subject{Kind: kind, ID: f.ID, Tags: f.Tags, Status: f.Status}, nil
	default:
		t, err := store.GetTask(ctx, id)
		if err != nil {
			return workflow.Subject{}, err
		}
		return workflow.Subject{Kind: kind, ID: t.ID, Tags: t.Tags, Status: t.Status, Summary: t.Summary}, nil
	}
}

// GetNextStatus computes the next-status recommendation for an entity.
type GetNextStatus struct {
	store storage.Store
	wf    *workflow.Engine
}

func NewGetNextStatus(store storage.Store, wf *workflow.Engine) *GetNextStatus {
	return &GetNextStatus{store: store, wf: wf}
}

func (t *GetNextStatus) Name() string { return "get_next_status" }
func (t *GetNextStatus) Description() string {
	return "Recommend the next status for a project, feature, or task: Ready with the recommended status, Blocked with the concrete blockers, or Terminal when no further transition exists. The response names the tag-selected active flow and the tags that selected it."
}
func (t *GetNextStatus) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "containerType": {"type": "string", "enum": ["project", "feature", "task"]},
    "id": {"type": "string"}
  },
  "required": ["containerType", "id"]
}`)
}

func (t *GetNextStatus) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ContainerType string `json:"containerType"`
		ID            string `json:"id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}
	kind, err := model.ParseEntityType(p.ContainerType)
	if err != nil || kind == model.EntityTemplate {
		return respond.Validationf("containerType must be project, feature, or task")
	}
	if p.ID == "" {
		return respond.Validationf("id is required")
	}

	sub, err := subjectFor(ctx, t.store, kind, p.ID)
	if err != nil {
		return respond.FromError(err)
	}
	rec, err := t.wf.NextStatus(ctx, sub)
	if err != nil {
		return respond.FromError(err)
	}
	return respond.OK("OK", rec)
}

// QueryWorkflowState returns the complete workflow view for an entity:
// active flow, position, terminal statuses, emergency transitions, and
// the current recommendation.
type QueryWorkflowState struct {
	store storage.Store
	wf    *workflow.Engine
}

func NewQueryWorkflowState(store storage.Store, wf *workflow.Engine) *QueryWorkflowState {
	return &QueryWorkflowState{store: store, wf: wf}
}

func (t *QueryWorkflowState) Name() string { return "query_workflow_state" }
func (t *QueryWorkflowState) Description() string {
	return "Return the complete workflow view for a project, feature, or task: the tag-selected active flow and its full sequence, the entity's position, available emergency transitions, terminal statuses, and the next-status recommendation."
}
func (t *QueryWorkflowState) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "containerType": {"type": "string", "enum": ["project", "feature", "task"]},
    "id": {"type": "string"}
  },
  "required": ["containerType", "id"]
}`)
}

func (t *QueryWorkflowState) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ContainerType string `json:"containerType"`
		ID            string `json:"id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return respond.Validationf("invalid parameters: %v", err)
	}
	kind, err := model.ParseEntityType(p.ContainerType)
	if err != nil || kind == model.EntityTemplate {
		return respond.Validationf("containerType must be project, feature, or task")
	}
	if p.ID == "" {
		return respond.Validationf("id is required")
	}

	sub, err := subjectFor(ctx, t.store, kind, p.ID)
	if err != nil {
		return respond.FromError(err)
	}

	snap := t.wf.Snapshot()
	prog := snap.Progression(kind)
	flow, matched := prog.ActiveFlow(sub.Tags)

	rec, err := t.wf.NextStatus(ctx, sub)
	if err != nil {
		return respond.FromError(err)
	}

	flows := make([]map[string]any, 0, len(prog.Flows))
	for _, f := range prog.Flows {
		flows = append(flows, map[string]any{
			"name":     f.Name,
			"sequence": f.Sequence,
		})
	}

	return respond.OK("OK", map[string]any{
		"id":                   sub.ID,
		"containerType":        p.ContainerType,
		"currentStatus":        sub.Status,
		"activeFlow":           flow.Name,
		"matchedTags":          matched,
		"flowSequence":         flow.Sequence,
		"position":             flow.Position(sub.Status),
		"isTerminal":           prog.IsTerminal(sub.Status),
		"terminalStatuses":     prog.TerminalStatuses(),
		"emergencyTransitions": prog.EmergencyTransitions(),
		"availableFlows":       flows,
		"recommendation":       rec,
	})
}
