// Package vault implements the rebuild_vault tool.
package vault

import (
	"context"
	"encoding/json"

	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/tools/respond"
	vaultpkg "github.com/taskvault/taskvault/internal/vault"
)

// RebuildVault schedules a full export of every entity to the Markdown
// vault. With no vault configured the tool returns a validation error.
type RebuildVault struct {
	pipeline *vaultpkg.Pipeline // nil when MD_VAULT_PATH is unset
}

func NewRebuildVault(pipeline *vaultpkg.Pipeline) *RebuildVault {
	return &RebuildVault{pipeline: pipeline}
}

func (t *RebuildVault) Name() string { return "rebuild_vault" }
func (t *RebuildVault) Description() string {
	return "Schedule a full re-export of every project, feature, and task to the Markdown vault. Runs asynchronously; the tool returns once the job is queued. Requires MD_VAULT_PATH to be configured."
}
func (t *RebuildVault) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {}
}`)
}

func (t *RebuildVault) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.pipeline == nil {
		return respond.Validationf("vault export is disabled; set MD_VAULT_PATH to enable it")
	}
	t.pipeline.FullExport()
	return respond.OK("Full vault export scheduled", map[string]any{"scheduled": true})
}
