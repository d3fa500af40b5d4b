package containers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/storage/sqlite"
	"github.com/taskvault/taskvault/internal/template"
	"github.com/taskvault/taskvault/internal/tools/containers"
	"github.com/taskvault/taskvault/internal/tools/respond"
	"github.com/taskvault/taskvault/internal/workflow"
)

type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, res *mcp.ToolsCallResult) envelope {
	t.Helper()
	require.Len(t, res.Content, 1)
	var e envelope
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &e))
	return e
}

func newManageTool(t *testing.T) (*containers.ManageContainer, storage.Store) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), sqlite.Options{
		RunMigrations: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wf := workflow.NewEngine(store, workflow.DefaultSnapshot(), logger)
	tool := containers.NewManageContainer(store, wf, template.NewEngine(store), nil)
	return tool, store
}

func call(t *testing.T, tool *containers.ManageContainer, params string) envelope {
	t.Helper()
	res, err := tool.Execute(context.Background(), json.RawMessage(params))
	require.NoError(t, err)
	return decode(t, res)
}

func TestCreateProjectDefaultsStatus(t *testing.T) {
	tool, _ := newManageTool(t)

	e := call(t, tool, `{"operation":"create","containerType":"project","name":"Demo"}`)
	require.True(t, e.Success, "message: %s", e.Message)
	assert.Equal(t, "planning", e.Data["status"])
	assert.NotEmpty(t, e.Data["id"])
}

func TestCreateTaskStartsAtFlowHead(t *testing.T) {
	tool, _ := newManageTool(t)

	e := call(t, tool, `{"operation":"create","containerType":"task","title":"T","tags":["bug"]}`)
	require.True(t, e.Success)
	assert.Equal(t, "pending", e.Data["status"])
}

func TestCreateValidation(t *testing.T) {
	tool, _ := newManageTool(t)

	e := call(t, tool, `{"operation":"create","containerType":"task"}`)
	require.NotNil(t, e.Error)
	assert.Equal(t, respond.CodeValidation, e.Error.Code)

	e = call(t, tool, `{"operation":"create","containerType":"task","title":"T","complexity":11}`)
	require.NotNil(t, e.Error)
	assert.Equal(t, respond.CodeValidation, e.Error.Code)

	e = call(t, tool, `{"operation":"create","containerType":"epic","name":"x"}`)
	require.NotNil(t, e.Error)
	assert.Equal(t, respond.CodeValidation, e.Error.Code)
}

func TestCreateTaskWithUnknownFeature(t *testing.T) {
	tool, _ := newManageTool(t)

	e := call(t, tool, fmt.Sprintf(
		`{"operation":"create","containerType":"task","title":"T","featureId":%q}`, model.NewID()))
	require.NotNil(t, e.Error)
	assert.Equal(t, respond.CodeNotFound, e.Error.Code)
}

func TestCreateWithTemplate(t *testing.T) {
	tool, store := newManageTool(t)
	ctx := context.Background()

	tmpl := &model.Template{Name: "Notes", TargetEntityType: model.EntityTask, IsEnabled: true}
	require.NoError(t, store.CreateTemplate(ctx, tmpl, []*model.TemplateSection{
		{Title: "Requirements", ContentFormat: model.FormatMarkdown},
	}))

	e := call(t, tool, fmt.Sprintf(
		`{"operation":"create","containerType":"task","title":"T","templateIds":[%q]}`, tmpl.ID))
	require.True(t, e.Success, "message: %s", e.Message)

	container, ok := e.Data["container"].(map[string]any)
	require.True(t, ok)
	sections, err := store.ListSections(ctx, model.EntityTask, container["id"].(string))
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Requirements", sections[0].Title)
}

func TestCreateWithTemplateFailureRollsBack(t *testing.T) {
	tool, store := newManageTool(t)
	ctx := context.Background()

	tmpl := &model.Template{Name: "Notes", TargetEntityType: model.EntityTask, IsEnabled: true}
	require.NoError(t, store.CreateTemplate(ctx, tmpl, []*model.TemplateSection{
		{Title: "Requirements", ContentFormat: model.FormatMarkdown},
	}))

	// The second copy of the template hits the duplicate-title error, and
	// the rollback must take the newly created task with it.
	e := call(t, tool, fmt.Sprintf(
		`{"operation":"create","containerType":"task","title":"T","templateIds":[%q,%q],"duplicateMode":"error"}`,
		tmpl.ID, tmpl.ID))
	require.NotNil(t, e.Error)
	assert.Equal(t, respond.CodeDuplicate, e.Error.Code)

	tasks, err := store.FindTasks(ctx, model.Query{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestUpdatePartialFields(t *testing.T) {
	tool, store := newManageTool(t)
	ctx := context.Background()

	task := &model.Task{Title: "before", Summary: "keep me"}
	require.NoError(t, store.CreateTask(ctx, task))

	e := call(t, tool, fmt.Sprintf(
		`{"operation":"update","containerType":"task","id":%q,"title":"after"}`, task.ID))
	require.True(t, e.Success)

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.Equal(t, "keep me", got.Summary)
}

func TestSetStatusValidatesTransition(t *testing.T) {
	tool, store := newManageTool(t)
	ctx := context.Background()

	task := &model.Task{Title: "T"}
	require.NoError(t, store.CreateTask(ctx, task))

	e := call(t, tool, fmt.Sprintf(
		`{"operation":"setStatus","containerType":"task","id":%q,"status":"in-progress"}`, task.ID))
	require.True(t, e.Success, "message: %s", e.Message)

	// Skipping ahead is rejected with the required intermediate named.
	task2 := &model.Task{Title: "T2"}
	require.NoError(t, store.CreateTask(ctx, task2))
	e = call(t, tool, fmt.Sprintf(
		`{"operation":"setStatus","containerType":"task","id":%q,"status":"testing"}`, task2.ID))
	require.NotNil(t, e.Error)
	assert.Equal(t, respond.CodeValidation, e.Error.Code)
	assert.Equal(t, "in-progress", e.Error.Details["required"])
}

func TestSetStatusCompletionWithSummary(t *testing.T) {
	tool, store := newManageTool(t)
	ctx := context.Background()

	feature := &model.Feature{Name: "F", Status: "in-development"}
	require.NoError(t, store.CreateFeature(ctx, feature))
	task := &model.Task{Title: "T", FeatureID: feature.ID, Status: "testing"}
	require.NoError(t, store.CreateTask(ctx, task))

	// Without a summary the completion gate rejects.
	e := call(t, tool, fmt.Sprintf(
		`{"operation":"setStatus","containerType":"task","id":%q,"status":"completed"}`, task.ID))
	require.NotNil(t, e.Error)

	// A summary supplied with the call satisfies the gate, and finishing
	// the feature's last task reports a cascade suggestion.
	summary := strings.Repeat("Verified. ", 35)
	e = call(t, tool, fmt.Sprintf(
		`{"operation":"setStatus","containerType":"task","id":%q,"status":"completed","summary":%q}`,
		task.ID, summary))
	require.True(t, e.Success, "message: %s", e.Message)

	events, ok := e.Data["cascadeEvents"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, events)
	first := events[0].(map[string]any)
	assert.Equal(t, "all_tasks_completed", first["event"])
	assert.Equal(t, feature.ID, first["targetId"])
}

func TestDeleteReportsMissing(t *testing.T) {
	tool, store := newManageTool(t)
	ctx := context.Background()

	task := &model.Task{Title: "T"}
	require.NoError(t, store.CreateTask(ctx, task))

	e := call(t, tool, fmt.Sprintf(
		`{"operation":"delete","containerType":"task","id":%q}`, task.ID))
	require.True(t, e.Success)

	e = call(t, tool, fmt.Sprintf(
		`{"operation":"delete","containerType":"task","id":%q}`, task.ID))
	require.NotNil(t, e.Error)
	assert.Equal(t, respond.CodeNotFound, e.Error.Code)
}

func TestBulkUpdatePartialFailure(t *testing.T) {
	tool, store := newManageTool(t)
	ctx := context.Background()

	task := &model.Task{Title: "T"}
	require.NoError(t, store.CreateTask(ctx, task))

	e := call(t, tool, fmt.Sprintf(
		`{"operation":"bulkUpdate","containerType":"task","updates":[{"id":%q,"title":"renamed"},{"id":%q,"title":"x"}]}`,
		task.ID, model.NewID()))
	require.True(t, e.Success)
	assert.EqualValues(t, 1, e.Data["count"])
	assert.EqualValues(t, 1, e.Data["failed"])

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
}

func TestUnknownOperation(t *testing.T) {
	tool, _ := newManageTool(t)
	e := call(t, tool, `{"operation":"archive","containerType":"task"}`)
	require.NotNil(t, e.Error)
	assert.Equal(t, respond.CodeValidation, e.Error.Code)
}
