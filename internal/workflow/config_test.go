package workflow_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/workflow"
)

func TestParseRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no flows",
			yaml: `
status_progression:
  tasks:
    flows: {}
`,
		},
		{
			name: "empty flow",
			yaml: `
status_progression:
  tasks:
    flows:
      standard: []
`,
		},
		{
			name: "duplicate status in flow",
			yaml: `
status_progression:
  tasks:
    flows:
      standard: [pending, pending, completed]
`,
		},
		{
			name: "multiple flows without default",
			yaml: `
status_progression:
  tasks:
    flows:
      a: [pending, completed]
      b: [open, closed]
`,
		},
		{
			name: "default names unknown flow",
			yaml: `
status_progression:
  tasks:
    default_flow: missing
    flows:
      standard: [pending, completed]
`,
		},
		{
			name: "mapping targets unknown flow",
			yaml: `
status_progression:
  tasks:
    flows:
      standard: [pending, completed]
    flow_mappings:
      - tags: [bug]
        flow: nope
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workflow.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseNormalizesStatuses(t *testing.T) {
	snap, err := workflow.Parse([]byte(`
status_progression:
  tasks:
    flows:
      standard: [Pending, In Progress, Completed]
    terminal_statuses: [Completed]
  features:
    flows:
      standard: [planning, completed]
  projects:
    flows:
      standard: [planning, completed]
`))
	require.NoError(t, err)

	prog := snap.Progression(model.EntityTask)
	flow, _ := prog.ActiveFlow(nil)
	assert.Equal(t, []model.Status{"pending", "in-progress", "completed"}, flow.Sequence)
	assert.True(t, prog.IsTerminal("completed"))
}

func TestDefaultSnapshot(t *testing.T) {
	snap := workflow.DefaultSnapshot()

	assert.True(t, snap.Rules.EnforceSequential)
	assert.False(t, snap.Rules.AllowBackward)
	assert.True(t, snap.Rules.AllowEmergency)
	assert.True(t, snap.Rules.ValidatePrerequisites)

	tasks := snap.Progression(model.EntityTask)
	require.NotNil(t, tasks)
	flow, matched := tasks.ActiveFlow(nil)
	assert.Equal(t, "standard_development", flow.Name)
	assert.Empty(t, matched)
	assert.Equal(t, []model.Status{"pending", "in-progress", "testing", "completed"}, flow.Sequence)
	assert.True(t, tasks.IsTerminal("cancelled"))
	assert.True(t, tasks.IsEmergency("blocked"))
	assert.False(t, tasks.IsEmergency("completed"))

	features := snap.Progression(model.EntityFeature)
	require.NotNil(t, features)
	assert.True(t, features.IsTerminal("archived"))

	projects := snap.Progression(model.EntityProject)
	require.NotNil(t, projects)
	pflow, _ := projects.ActiveFlow(nil)
	assert.Equal(t, []model.Status{"planning", "in-development", "completed"}, pflow.Sequence)
}

func TestActiveFlowMapping(t *testing.T) {
	tasks := workflow.DefaultSnapshot().Progression(model.EntityTask)

	// A bug tag selects the bug fix flow, case-insensitively.
	flow, matched := tasks.ActiveFlow([]string{"Bug", "backend"})
	assert.Equal(t, "bug_fix_flow", flow.Name)
	assert.Equal(t, []string{"bug"}, matched)

	// Unmapped tags fall back to the default.
	flow, matched = tasks.ActiveFlow([]string{"backend"})
	assert.Equal(t, "standard_development", flow.Name)
	assert.Empty(t, matched)
}

func TestActiveFlowSubsetMatch(t *testing.T) {
	snap, err := workflow.Parse([]byte(`
status_progression:
  tasks:
    default_flow: standard
    flows:
      standard: [pending, completed]
      hotfix: [triage, deployed]
    flow_mappings:
      - tags: [urgent, production]
        flow: hotfix
  features:
    flows:
      standard: [planning, completed]
  projects:
    flows:
      standard: [planning, completed]
`))
	require.NoError(t, err)

	tasks := snap.Progression(model.EntityTask)

	// Every mapping tag must be present on the entity.
	flow, _ := tasks.ActiveFlow([]string{"urgent"})
	assert.Equal(t, "standard", flow.Name)

	flow, matched := tasks.ActiveFlow([]string{"production", "urgent", "extra"})
	assert.Equal(t, "hotfix", flow.Name)
	assert.Equal(t, []string{"urgent", "production"}, matched)
}

func TestLoadFallsBackToDefault(t *testing.T) {
	snap, err := workflow.Load(t.TempDir())
	require.NoError(t, err)

	flow, _ := snap.Progression(model.EntityTask).ActiveFlow(nil)
	assert.Equal(t, "standard_development", flow.Name)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, workflow.ConfigFileName), []byte(`
status_progression:
  tasks:
    flows:
      only: [open, closed]
    terminal_statuses: [closed]
  features:
    flows:
      only: [open, closed]
  projects:
    flows:
      only: [open, closed]
`), 0o644))

	snap, err := workflow.Load(dir)
	require.NoError(t, err)
	flow, _ := snap.Progression(model.EntityTask).ActiveFlow(nil)
	assert.Equal(t, "only", flow.Name)
	assert.True(t, snap.Progression(model.EntityTask).IsTerminal("closed"))
}
