package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/workflow"
)

func TestNextStatusReady(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	task := seedTask(t, store, &model.Task{Title: "t", Status: "pending"})

	rec, err := e.NextStatus(context.Background(), taskSubject(task))
	require.NoError(t, err)
	assert.Equal(t, workflow.RecommendationReady, rec.Kind)
	assert.Equal(t, model.Status("in-progress"), rec.RecommendedStatus)
	assert.Equal(t, "standard_development", rec.ActiveFlow)
	assert.Equal(t, 0, rec.Position)
}

func TestNextStatusBlockedBySummaryGate(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	task := seedTask(t, store, &model.Task{Title: "t", Status: "testing"})

	rec, err := e.NextStatus(context.Background(), taskSubject(task))
	require.NoError(t, err)
	assert.Equal(t, workflow.RecommendationBlocked, rec.Kind)
	require.NotEmpty(t, rec.Blockers)
	assert.Contains(t, rec.Blockers[0], "summary")
}

func TestNextStatusTerminal(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	task := seedTask(t, store, &model.Task{Title: "t", Status: "completed"})

	rec, err := e.NextStatus(context.Background(), taskSubject(task))
	require.NoError(t, err)
	assert.Equal(t, workflow.RecommendationTerminal, rec.Kind)
	assert.Equal(t, model.Status("completed"), rec.TerminalStatus)
	assert.Empty(t, rec.RecommendedStatus)
}

func TestNextStatusOutsideFlow(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	task := seedTask(t, store, &model.Task{Title: "t", Status: "blocked"})

	rec, err := e.NextStatus(context.Background(), taskSubject(task))
	require.NoError(t, err)
	assert.Equal(t, workflow.RecommendationBlocked, rec.Kind)
	assert.Equal(t, -1, rec.Position)
}

func TestNextStatusMatchedTags(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	task := seedTask(t, store, &model.Task{Title: "t", Status: "pending", Tags: []string{"bug"}})

	rec, err := e.NextStatus(context.Background(), taskSubject(task))
	require.NoError(t, err)
	assert.Equal(t, "bug_fix_flow", rec.ActiveFlow)
	assert.Equal(t, []string{"bug"}, rec.MatchedTags)
}

func TestNextStatusFeatureWithoutTasks(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	feature := seedFeature(t, store, &model.Feature{Name: "f", Status: "planning"})

	sub := workflow.Subject{Kind: model.EntityFeature, ID: feature.ID, Status: feature.Status}
	rec, err := e.NextStatus(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, workflow.RecommendationBlocked, rec.Kind)
	require.NotEmpty(t, rec.Blockers)
	assert.Contains(t, rec.Blockers[0], "no tasks")
}
