package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/storage/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), sqlite.Options{
		RunMigrations: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestProjectCRUD(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	p := &model.Project{Name: "Alpha", Summary: "first", Tags: []string{"demo"}}
	require.NoError(t, store.CreateProject(ctx, p))
	require.NotEmpty(t, p.ID)
	assert.Equal(t, model.Status("planning"), p.Status)

	got, err := store.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Name)
	assert.Equal(t, []string{"demo"}, got.Tags)

	got.Summary = "updated"
	require.NoError(t, store.UpdateProject(ctx, got))
	got, err = store.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Summary)

	deleted, err := store.DeleteProject(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting again reports absence, not an error.
	deleted, err = store.DeleteProject(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTaskValidation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.CreateTask(ctx, &model.Task{})
	assert.ErrorIs(t, err, storage.ErrValidation)

	err = store.CreateTask(ctx, &model.Task{Title: "t", Complexity: 11})
	assert.ErrorIs(t, err, storage.ErrValidation)

	// Unknown parents are rejected up front.
	err = store.CreateTask(ctx, &model.Task{Title: "t", FeatureID: model.NewID()})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	task := &model.Task{Title: "t"}
	require.NoError(t, store.CreateTask(ctx, task))
	assert.Equal(t, 5, task.Complexity)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, model.Status("pending"), task.Status)
}

func TestFindTasksFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	f := &model.Feature{Name: "f", Status: "in-development"}
	require.NoError(t, store.CreateFeature(ctx, f))

	require.NoError(t, store.CreateTask(ctx, &model.Task{Title: "login endpoint", FeatureID: f.ID, Status: "in-progress", Tags: []string{"auth"}}))
	require.NoError(t, store.CreateTask(ctx, &model.Task{Title: "invoice schema", FeatureID: f.ID, Status: "pending"}))
	require.NoError(t, store.CreateTask(ctx, &model.Task{Title: "orphan", Status: "pending"}))

	tasks, err := store.FindTasks(ctx, model.Query{FeatureID: f.ID})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = store.FindTasks(ctx, model.Query{Status: model.ParseTokenFilter("pending")})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = store.FindTasks(ctx, model.Query{Status: model.ParseTokenFilter("!pending")})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "login endpoint", tasks[0].Title)

	tasks, err = store.FindTasks(ctx, model.Query{Tags: []string{"AUTH"}})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	tasks, err = store.FindTasks(ctx, model.Query{Text: "invoice"})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	tasks, err = store.FindTasks(ctx, model.Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestDeleteFeatureCascades(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	f := &model.Feature{Name: "f"}
	require.NoError(t, store.CreateFeature(ctx, f))
	task := &model.Task{Title: "t", FeatureID: f.ID}
	require.NoError(t, store.CreateTask(ctx, task))
	require.NoError(t, store.CreateSection(ctx, &model.Section{
		EntityType: model.EntityFeature, EntityID: f.ID, Title: "Overview",
	}))

	deleted, err := store.DeleteFeature(ctx, f.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = store.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	sections, err := store.ListSections(ctx, model.EntityFeature, f.ID)
	require.NoError(t, err)
	assert.Empty(t, sections)
}

func TestSectionAppendOrdinal(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	task := &model.Task{Title: "t"}
	require.NoError(t, store.CreateTask(ctx, task))

	first := &model.Section{EntityType: model.EntityTask, EntityID: task.ID, Title: "a", Ordinal: -1}
	require.NoError(t, store.CreateSection(ctx, first))
	assert.Equal(t, 0, first.Ordinal)

	second := &model.Section{EntityType: model.EntityTask, EntityID: task.ID, Title: "b", Ordinal: -1}
	require.NoError(t, store.CreateSection(ctx, second))
	assert.Equal(t, 1, second.Ordinal)
}

func TestReorderSections(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	task := &model.Task{Title: "t"}
	require.NoError(t, store.CreateTask(ctx, task))

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		sec := &model.Section{EntityType: model.EntityTask, EntityID: task.ID, Title: title, Ordinal: -1}
		require.NoError(t, store.CreateSection(ctx, sec))
		ids = append(ids, sec.ID)
	}

	require.NoError(t, store.ReorderSections(ctx, model.EntityTask, task.ID, []string{ids[2], ids[0], ids[1]}))
	sections, err := store.ListSections(ctx, model.EntityTask, task.ID)
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "c", sections[0].Title)
	assert.Equal(t, "a", sections[1].Title)
	assert.Equal(t, "b", sections[2].Title)

	// A partial id list is rejected.
	err = store.ReorderSections(ctx, model.EntityTask, task.ID, ids[:2])
	assert.ErrorIs(t, err, storage.ErrValidation)

	// Foreign ids are rejected.
	err = store.ReorderSections(ctx, model.EntityTask, task.ID, []string{ids[0], ids[1], model.NewID()})
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestDependencyUniqueness(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := &model.Task{Title: "a"}
	b := &model.Task{Title: "b"}
	require.NoError(t, store.CreateTask(ctx, a))
	require.NoError(t, store.CreateTask(ctx, b))

	dep := func(typ model.DependencyType) *model.Dependency {
		return &model.Dependency{
			ID: model.NewID(), FromTaskID: a.ID, ToTaskID: b.ID,
			Type: typ, CreatedAt: time.Now().UTC(),
		}
	}
	require.NoError(t, store.AddDependency(ctx, dep(model.DepBlocks)))
	assert.ErrorIs(t, store.AddDependency(ctx, dep(model.DepBlocks)), storage.ErrConflict)

	// A different type between the same pair is a distinct edge.
	require.NoError(t, store.AddDependency(ctx, dep(model.DepRelatesTo)))

	removed, err := store.RemoveDependencyEdge(ctx, a.ID, b.ID, model.DepBlocks)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.RemoveDependencyEdge(ctx, a.ID, b.ID, model.DepBlocks)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDeleteTaskRemovesEdges(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := &model.Task{Title: "a"}
	b := &model.Task{Title: "b"}
	require.NoError(t, store.CreateTask(ctx, a))
	require.NoError(t, store.CreateTask(ctx, b))
	require.NoError(t, store.AddDependency(ctx, &model.Dependency{
		ID: model.NewID(), FromTaskID: a.ID, ToTaskID: b.ID,
		Type: model.DepBlocks, CreatedAt: time.Now().UTC(),
	}))

	deleted, err := store.DeleteTask(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	deps, err := store.ListDependencies(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestTagAggregation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	p := &model.Project{Name: "p", Tags: []string{"Demo"}}
	require.NoError(t, store.CreateProject(ctx, p))
	f := &model.Feature{Name: "f", Tags: []string{"demo", "auth"}}
	require.NoError(t, store.CreateFeature(ctx, f))
	task := &model.Task{Title: "t", Tags: []string{"auth"}}
	require.NoError(t, store.CreateTask(ctx, task))

	tags, err := store.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	// Sorted by count descending; case-insensitive aggregation keeps the
	// first-seen casing.
	assert.Equal(t, 2, tags[0].Count)
	assert.Equal(t, 2, tags[1].Count)

	usage, err := store.GetTagUsage(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, usage.Projects)
	assert.Equal(t, []string{f.ID}, usage.Features)
	assert.Empty(t, usage.Tasks)
}

func TestRenameTag(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	f := &model.Feature{Name: "f", Tags: []string{"Auth", "backend"}}
	require.NoError(t, store.CreateFeature(ctx, f))
	task := &model.Task{Title: "t", Tags: []string{"auth"}}
	require.NoError(t, store.CreateTask(ctx, task))

	n, err := store.RenameTag(ctx, "auth", "security")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.GetFeature(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"security", "backend"}, got.Tags)
}

func TestRenameTagConflict(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	task := &model.Task{Title: "t", Tags: []string{"auth", "security"}}
	require.NoError(t, store.CreateTask(ctx, task))

	// Renaming auth onto security would merge the two on this task.
	_, err := store.RenameTag(ctx, "auth", "security")
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = store.RenameTag(ctx, "auth", "AUTH")
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestRunInTransactionRollsBack(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sentinel := assert.AnError
	err := store.RunInTransaction(ctx, func(tx storage.Store) error {
		if err := tx.CreateTask(ctx, &model.Task{Title: "inside"}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	tasks, err := store.FindTasks(ctx, model.Query{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
