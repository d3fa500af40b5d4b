package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/model"
)

func TestTaskCascadeFirstTaskStarted(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	ctx := context.Background()

	feature := seedFeature(t, store, &model.Feature{Name: "f", Status: "planning"})
	task := seedTask(t, store, &model.Task{Title: "t", FeatureID: feature.ID, Status: "in-progress"})

	events, err := e.TaskCascades(ctx, task, "pending")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "task_started", events[0].Event)
	assert.Equal(t, feature.ID, events[0].TargetID)
	assert.Equal(t, model.Status("in-development"), events[0].SuggestedStatus)
	assert.False(t, events[0].Automatic)
}

func TestTaskCascadeAllTasksCompleted(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	ctx := context.Background()

	feature := seedFeature(t, store, &model.Feature{Name: "f", Status: "in-development"})
	done := seedTask(t, store, &model.Task{Title: "done already", FeatureID: feature.ID, Status: "completed"})
	_ = done
	last := seedTask(t, store, &model.Task{Title: "last one", FeatureID: feature.ID, Status: "completed"})

	events, err := e.TaskCascades(ctx, last, "testing")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "all_tasks_completed", events[0].Event)
	// The feature flow contains testing, so that is the suggestion.
	assert.Equal(t, model.Status("testing"), events[0].SuggestedStatus)
}

func TestTaskCascadeSiblingStillOpen(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	ctx := context.Background()

	feature := seedFeature(t, store, &model.Feature{Name: "f", Status: "in-development"})
	seedTask(t, store, &model.Task{Title: "still open", FeatureID: feature.ID, Status: "in-progress"})
	done := seedTask(t, store, &model.Task{Title: "done", FeatureID: feature.ID, Status: "completed"})

	events, err := e.TaskCascades(ctx, done, "testing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTaskCascadeFeaturelessTask(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)

	task := seedTask(t, store, &model.Task{Title: "standalone", Status: "completed"})
	events, err := e.TaskCascades(context.Background(), task, "testing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFeatureCascadeLastFeatureFinished(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	ctx := context.Background()

	project := &model.Project{ID: model.NewID(), Name: "p", Status: "in-development"}
	require.NoError(t, store.CreateProject(ctx, project))

	seedFeature(t, store, &model.Feature{Name: "earlier", ProjectID: project.ID, Status: "completed"})
	feature := seedFeature(t, store, &model.Feature{Name: "f", ProjectID: project.ID, Status: "testing"})

	events, err := e.FeatureCascades(ctx, feature)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "tests_passed", events[0].Event)
	assert.Equal(t, "project", events[0].TargetType)
	assert.Equal(t, project.ID, events[0].TargetID)
	assert.Equal(t, model.Status("completed"), events[0].SuggestedStatus)
}

func TestFeatureCascadeOpenSibling(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	ctx := context.Background()

	project := &model.Project{ID: model.NewID(), Name: "p", Status: "in-development"}
	require.NoError(t, store.CreateProject(ctx, project))

	seedFeature(t, store, &model.Feature{Name: "open", ProjectID: project.ID, Status: "in-development"})
	feature := seedFeature(t, store, &model.Feature{Name: "f", ProjectID: project.ID, Status: "completed"})

	events, err := e.FeatureCascades(ctx, feature)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFeatureCascadeNotFinished(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, store)
	ctx := context.Background()

	project := &model.Project{ID: model.NewID(), Name: "p", Status: "in-development"}
	require.NoError(t, store.CreateProject(ctx, project))
	feature := seedFeature(t, store, &model.Feature{Name: "f", ProjectID: project.ID, Status: "in-development"})

	events, err := e.FeatureCascades(ctx, feature)
	require.NoError(t, err)
	assert.Empty(t, events)
}
