package vault

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/storage/sqlite"
	"github.com/taskvault/taskvault/internal/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newVaultStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), sqlite.Options{
		RunMigrations: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestPipeline(t *testing.T, dir string, store storage.Store) *Pipeline {
	t.Helper()
	wf := workflow.NewEngine(store, workflow.DefaultSnapshot(), testLogger())
	p, err := NewPipeline(dir, store, wf, testLogger())
	require.NoError(t, err)
	return p
}

// flush runs the pipeline with an already-cancelled context: Run drains
// whatever is queued and returns, making the test synchronous.
func flush(t *testing.T, p *Pipeline) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
}

func fileExists(t *testing.T, root, rel string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	if err == nil {
		return true
	}
	require.True(t, os.IsNotExist(err))
	return false
}

func TestExportWritesEntityFiles(t *testing.T) {
	store := newVaultStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	project := &model.Project{Name: "Demo Project"}
	require.NoError(t, store.CreateProject(ctx, project))
	feature := &model.Feature{Name: "Auth", ProjectID: project.ID}
	require.NoError(t, store.CreateFeature(ctx, feature))
	task := &model.Task{Title: "Login endpoint", FeatureID: feature.ID}
	require.NoError(t, store.CreateTask(ctx, task))

	p := newTestPipeline(t, dir, store)
	p.ExportEntity(model.EntityProject, project.ID)
	p.ExportEntity(model.EntityFeature, feature.ID)
	p.ExportEntity(model.EntityTask, task.ID)
	flush(t, p)

	assert.True(t, fileExists(t, dir, "Demo Project/_project.md"))
	assert.True(t, fileExists(t, dir, "Demo Project/Auth/_feature.md"))
	assert.True(t, fileExists(t, dir, "Demo Project/Auth/Login endpoint.md"))
	assert.True(t, fileExists(t, dir, SyncStateFileName))
}

func TestExportMovesCompletedTaskToTerminalFolder(t *testing.T) {
	store := newVaultStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	task := &model.Task{Title: "Standalone"}
	require.NoError(t, store.CreateTask(ctx, task))

	p := newTestPipeline(t, dir, store)
	p.ExportEntity(model.EntityTask, task.ID)
	flush(t, p)
	require.True(t, fileExists(t, dir, "Standalone.md"))

	task.Status = "completed"
	require.NoError(t, store.UpdateTask(ctx, task))

	p = newTestPipeline(t, dir, store)
	p.ExportEntity(model.EntityTask, task.ID)
	flush(t, p)

	assert.False(t, fileExists(t, dir, "Standalone.md"))
	assert.True(t, fileExists(t, dir, "Completed/Standalone.md"))
}

func TestCascadeRelocatesDescendants(t *testing.T) {
	store := newVaultStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	project := &model.Project{Name: "Old Name"}
	require.NoError(t, store.CreateProject(ctx, project))
	feature := &model.Feature{Name: "Auth", ProjectID: project.ID}
	require.NoError(t, store.CreateFeature(ctx, feature))
	task := &model.Task{Title: "Login", FeatureID: feature.ID}
	require.NoError(t, store.CreateTask(ctx, task))

	p := newTestPipeline(t, dir, store)
	p.ExportEntity(model.EntityProject, project.ID)
	p.ExportEntity(model.EntityFeature, feature.ID)
	p.ExportEntity(model.EntityTask, task.ID)
	flush(t, p)
	require.True(t, fileExists(t, dir, "Old Name/Auth/Login.md"))

	project.Name = "New Name"
	require.NoError(t, store.UpdateProject(ctx, project))

	p = newTestPipeline(t, dir, store)
	p.Cascade(model.EntityProject, project.ID)
	flush(t, p)

	assert.True(t, fileExists(t, dir, "New Name/_project.md"))
	assert.True(t, fileExists(t, dir, "New Name/Auth/_feature.md"))
	assert.True(t, fileExists(t, dir, "New Name/Auth/Login.md"))
	// The old directory tree is pruned once empty.
	assert.False(t, fileExists(t, dir, "Old Name/_project.md"))
	_, err := os.Stat(filepath.Join(dir, "Old Name"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteRemovesFileAndPrunesDirectories(t *testing.T) {
	store := newVaultStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	project := &model.Project{Name: "Solo"}
	require.NoError(t, store.CreateProject(ctx, project))

	p := newTestPipeline(t, dir, store)
	p.ExportEntity(model.EntityProject, project.ID)
	flush(t, p)
	require.True(t, fileExists(t, dir, "Solo/_project.md"))

	_, err := store.DeleteProject(ctx, project.ID)
	require.NoError(t, err)

	p = newTestPipeline(t, dir, store)
	p.DeleteEntity(model.EntityProject, project.ID)
	flush(t, p)

	_, err = os.Stat(filepath.Join(dir, "Solo"))
	assert.True(t, os.IsNotExist(err))

	// A second delete for an unknown id is a no-op.
	p = newTestPipeline(t, dir, store)
	p.DeleteEntity(model.EntityProject, project.ID)
	flush(t, p)
}

func TestFullExportRebuildsVault(t *testing.T) {
	store := newVaultStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	project := &model.Project{Name: "P"}
	require.NoError(t, store.CreateProject(ctx, project))
	feature := &model.Feature{Name: "F", ProjectID: project.ID}
	require.NoError(t, store.CreateFeature(ctx, feature))
	task := &model.Task{Title: "T", FeatureID: feature.ID}
	require.NoError(t, store.CreateTask(ctx, task))

	// Simulate out-of-band damage: a stray partial vault.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "P", "F"), 0o755))

	p := newTestPipeline(t, dir, store)
	p.FullExport()
	flush(t, p)

	assert.True(t, fileExists(t, dir, "P/_project.md"))
	assert.True(t, fileExists(t, dir, "P/F/_feature.md"))
	assert.True(t, fileExists(t, dir, "P/F/T.md"))
}

func TestExportOfDeletedEntityClearsIndex(t *testing.T) {
	store := newVaultStore(t)
	dir := t.TempDir()
	ctx := context.Background()

	task := &model.Task{Title: "Ghost"}
	require.NoError(t, store.CreateTask(ctx, task))

	p := newTestPipeline(t, dir, store)
	p.ExportEntity(model.EntityTask, task.ID)
	flush(t, p)
	require.True(t, fileExists(t, dir, "Ghost.md"))

	// The row vanishes before the next export job runs; the stale file
	// goes with it.
	_, err := store.DeleteTask(ctx, task.ID)
	require.NoError(t, err)

	p = newTestPipeline(t, dir, store)
	p.ExportEntity(model.EntityTask, task.ID)
	flush(t, p)
	assert.False(t, fileExists(t, dir, "Ghost.md"))
}

func TestSyncStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := loadSyncState(dir, testLogger())
	assert.Empty(t, st.pathOf("missing"))

	require.NoError(t, st.record("id-1", model.EntityTask, "P/F/T.md"))
	assert.Equal(t, "P/F/T.md", st.pathOf("id-1"))

	// The index survives a reload from disk.
	st = loadSyncState(dir, testLogger())
	assert.Equal(t, "P/F/T.md", st.pathOf("id-1"))

	require.NoError(t, st.remove("id-1"))
	st = loadSyncState(dir, testLogger())
	assert.Empty(t, st.pathOf("id-1"))

	// Removing an unknown id does not rewrite the file.
	require.NoError(t, st.remove("never-recorded"))
}

func TestSyncStateCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SyncStateFileName), []byte("{not json"), 0o644))

	st := loadSyncState(dir, testLogger())
	assert.Empty(t, st.pathOf("anything"))
}
