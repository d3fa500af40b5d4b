package respond_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/graph"
	"github.com/taskvault/taskvault/internal/mcp"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/tools/respond"
	"github.com/taskvault/taskvault/internal/workflow"
)

type decoded struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, res *mcp.ToolsCallResult) decoded {
	t.Helper()
	require.Len(t, res.Content, 1)
	require.Equal(t, "text", res.Content[0].Type)
	var d decoded
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &d))
	return d
}

func TestOK(t *testing.T) {
	res, err := respond.OK("task created", map[string]string{"id": "abc"})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	d := decode(t, res)
	assert.True(t, d.Success)
	assert.Equal(t, "task created", d.Message)
	assert.Equal(t, "abc", d.Data["id"])
	assert.Nil(t, d.Error)
}

func TestFail(t *testing.T) {
	res, err := respond.Fail(respond.CodeNotFound, "no such task", nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	d := decode(t, res)
	assert.False(t, d.Success)
	require.NotNil(t, d.Error)
	assert.Equal(t, respond.CodeNotFound, d.Error.Code)
	assert.Equal(t, "no such task", d.Error.Message)
}

func TestFromErrorStorageErrors(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: task x", storage.ErrNotFound), respond.CodeNotFound},
		{fmt.Errorf("%w: duplicate", storage.ErrConflict), respond.CodeDuplicate},
		{fmt.Errorf("%w: bad input", storage.ErrValidation), respond.CodeValidation},
		{fmt.Errorf("%w: disk full", storage.ErrDatabase), respond.CodeDatabase},
		{errors.New("something else"), respond.CodeInternal},
	}
	for _, tt := range tests {
		res, err := respond.FromError(tt.err)
		require.NoError(t, err)
		d := decode(t, res)
		require.NotNil(t, d.Error)
		assert.Equal(t, tt.code, d.Error.Code, "error %v", tt.err)
		assert.Equal(t, tt.code, respond.CodeFor(tt.err))
	}
}

func TestFromErrorTransitionDetails(t *testing.T) {
	te := &workflow.TransitionError{
		Kind:     workflow.ErrSkipBlocked,
		Current:  "pending",
		Proposed: "testing",
		Required: "in-progress",
	}
	res, err := respond.FromError(te)
	require.NoError(t, err)

	d := decode(t, res)
	require.NotNil(t, d.Error)
	assert.Equal(t, respond.CodeValidation, d.Error.Code)
	assert.Equal(t, "pending", d.Error.Details["current"])
	assert.Equal(t, "testing", d.Error.Details["proposed"])
	assert.Equal(t, "in-progress", d.Error.Details["required"])
}

func TestFromErrorPrerequisiteBlockers(t *testing.T) {
	te := &workflow.TransitionError{
		Kind:     workflow.ErrPrerequisite,
		Current:  "testing",
		Proposed: "completed",
		Blockers: []string{"summary must be 300-500 characters before completion (currently 0)"},
	}
	res, err := respond.FromError(te)
	require.NoError(t, err)

	d := decode(t, res)
	require.NotNil(t, d.Error)
	blockers, ok := d.Error.Details["blockers"].([]any)
	require.True(t, ok)
	require.Len(t, blockers, 1)
	assert.Contains(t, blockers[0], "summary")
}

func TestFromErrorCycle(t *testing.T) {
	ce := &graph.CycleError{Path: []string{"a", "b", "c"}}
	res, err := respond.FromError(ce)
	require.NoError(t, err)

	d := decode(t, res)
	require.NotNil(t, d.Error)
	assert.Equal(t, respond.CodeValidation, d.Error.Code)
	cycle, ok := d.Error.Details["cycle"].([]any)
	require.True(t, ok)
	assert.Len(t, cycle, 3)
}

func TestBulkRespond(t *testing.T) {
	partial := &respond.BulkOutcome{
		Count:  2,
		Failed: 1,
		Failures: []respond.BulkFailure{
			{Index: 2, Code: respond.CodeValidation, Message: "bad title"},
		},
	}
	res, err := partial.Respond("created 2 tasks")
	require.NoError(t, err)
	d := decode(t, res)
	assert.True(t, d.Success)

	allFailed := &respond.BulkOutcome{Count: 0, Failed: 3}
	res, err = allFailed.Respond("created 0 tasks")
	require.NoError(t, err)
	assert.True(t, res.IsError)
	d = decode(t, res)
	require.NotNil(t, d.Error)
	assert.Equal(t, respond.CodeOperationFail, d.Error.Code)
}
