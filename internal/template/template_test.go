package template_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/storage/sqlite"
	"github.com/taskvault/taskvault/internal/template"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), sqlite.Options{
		RunMigrations: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedTemplate(t *testing.T, store storage.Store, name string, target model.EntityType, titles ...string) *model.Template {
	t.Helper()
	tmpl := &model.Template{Name: name, TargetEntityType: target, IsEnabled: true}
	sections := make([]*model.TemplateSection, len(titles))
	for i, title := range titles {
		sections[i] = &model.TemplateSection{
			Title:         title,
			Content:       "prototype content for " + title,
			ContentFormat: model.FormatMarkdown,
			Ordinal:       i,
		}
	}
	require.NoError(t, store.CreateTemplate(context.Background(), tmpl, sections))
	return tmpl
}

func seedTargetTask(t *testing.T, store storage.Store) *model.Task {
	t.Helper()
	task := &model.Task{Title: "target"}
	require.NoError(t, store.CreateTask(context.Background(), task))
	return task
}

func TestApplyCreatesSections(t *testing.T) {
	store := newTestStore(t)
	eng := template.NewEngine(store)
	ctx := context.Background()

	tmpl := seedTemplate(t, store, "Notes", model.EntityTask, "Requirements", "Verification")
	task := seedTargetTask(t, store)

	res, err := eng.Apply(ctx, []string{tmpl.ID}, model.EntityTask, task.ID, template.ModeSkipDuplicate)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SectionsCreated)
	assert.Equal(t, []string{"Notes"}, res.TemplatesApplied)

	sections, err := store.ListSections(ctx, model.EntityTask, task.ID)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Requirements", sections[0].Title)
	assert.Equal(t, 0, sections[0].Ordinal)
	assert.Equal(t, "Verification", sections[1].Title)
	assert.Equal(t, 1, sections[1].Ordinal)
}

func TestApplyAppendsAfterExistingSections(t *testing.T) {
	store := newTestStore(t)
	eng := template.NewEngine(store)
	ctx := context.Background()

	task := seedTargetTask(t, store)
	require.NoError(t, store.CreateSection(ctx, &model.Section{
		EntityType: model.EntityTask, EntityID: task.ID, Title: "Existing", Ordinal: 0,
	}))
	tmpl := seedTemplate(t, store, "Notes", model.EntityTask, "Added")

	_, err := eng.Apply(ctx, []string{tmpl.ID}, model.EntityTask, task.ID, "")
	require.NoError(t, err)

	sections, err := store.ListSections(ctx, model.EntityTask, task.ID)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Added", sections[1].Title)
	assert.Equal(t, 1, sections[1].Ordinal)
}

func TestApplySkipsDuplicatesByDefault(t *testing.T) {
	store := newTestStore(t)
	eng := template.NewEngine(store)
	ctx := context.Background()

	task := seedTargetTask(t, store)
	require.NoError(t, store.CreateSection(ctx, &model.Section{
		EntityType: model.EntityTask, EntityID: task.ID, Title: "requirements", Content: "mine",
	}))
	tmpl := seedTemplate(t, store, "Notes", model.EntityTask, "Requirements", "Verification")

	res, err := eng.Apply(ctx, []string{tmpl.ID}, model.EntityTask, task.ID, template.ModeSkipDuplicate)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SectionsCreated)
	assert.Equal(t, 1, res.SectionsSkipped)

	// The existing section keeps its content; the title match is
	// case-insensitive.
	sections, err := store.ListSections(ctx, model.EntityTask, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", sections[0].Content)
}

func TestApplyOverwriteReplacesContent(t *testing.T) {
	store := newTestStore(t)
	eng := template.NewEngine(store)
	ctx := context.Background()

	task := seedTargetTask(t, store)
	require.NoError(t, store.CreateSection(ctx, &model.Section{
		EntityType: model.EntityTask, EntityID: task.ID, Title: "Requirements", Content: "stale",
	}))
	tmpl := seedTemplate(t, store, "Notes", model.EntityTask, "Requirements")

	res, err := eng.Apply(ctx, []string{tmpl.ID}, model.EntityTask, task.ID, template.ModeOverwrite)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SectionsOverwrote)
	assert.Equal(t, 0, res.SectionsCreated)

	sections, err := store.ListSections(ctx, model.EntityTask, task.ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "prototype content for Requirements", sections[0].Content)
}

func TestApplyErrorModeIsAtomic(t *testing.T) {
	store := newTestStore(t)
	eng := template.NewEngine(store)
	ctx := context.Background()

	task := seedTargetTask(t, store)
	require.NoError(t, store.CreateSection(ctx, &model.Section{
		EntityType: model.EntityTask, EntityID: task.ID, Title: "Verification",
	}))
	// The duplicate comes second, after a section that would have been
	// created; the rollback must remove it again.
	tmpl := seedTemplate(t, store, "Notes", model.EntityTask, "Requirements", "Verification")

	_, err := eng.Apply(ctx, []string{tmpl.ID}, model.EntityTask, task.ID, template.ModeError)
	require.ErrorIs(t, err, storage.ErrConflict)

	sections, err := store.ListSections(ctx, model.EntityTask, task.ID)
	require.NoError(t, err)
	assert.Len(t, sections, 1)
}

func TestApplyRejectsMismatchedTarget(t *testing.T) {
	store := newTestStore(t)
	eng := template.NewEngine(store)
	ctx := context.Background()

	task := seedTargetTask(t, store)
	tmpl := seedTemplate(t, store, "Feature Notes", model.EntityFeature, "Overview")

	_, err := eng.Apply(ctx, []string{tmpl.ID}, model.EntityTask, task.ID, "")
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestApplyRejectsDisabledTemplate(t *testing.T) {
	store := newTestStore(t)
	eng := template.NewEngine(store)
	ctx := context.Background()

	task := seedTargetTask(t, store)
	tmpl := seedTemplate(t, store, "Notes", model.EntityTask, "Requirements")
	tmpl.IsEnabled = false
	require.NoError(t, store.UpdateTemplate(ctx, tmpl))

	_, err := eng.Apply(ctx, []string{tmpl.ID}, model.EntityTask, task.ID, "")
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestApplyMissingTarget(t *testing.T) {
	store := newTestStore(t)
	eng := template.NewEngine(store)

	tmpl := seedTemplate(t, store, "Notes", model.EntityTask, "Requirements")
	_, err := eng.Apply(context.Background(), []string{tmpl.ID}, model.EntityTask, model.NewID(), "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestParseDuplicateMode(t *testing.T) {
	for input, want := range map[string]template.DuplicateMode{
		"":               template.ModeSkipDuplicate,
		"skip":           template.ModeSkipDuplicate,
		"skip_duplicate": template.ModeSkipDuplicate,
		"OVERWRITE":      template.ModeOverwrite,
		"error":          template.ModeError,
	} {
		got, err := template.ParseDuplicateMode(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got)
	}

	_, err := template.ParseDuplicateMode("merge")
	assert.Error(t, err)
}

func TestSeedBuiltinsIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	require.NoError(t, template.SeedBuiltins(ctx, store, logger))
	templates, err := store.ListTemplates(ctx, "", false)
	require.NoError(t, err)
	first := len(templates)
	require.NotZero(t, first)

	require.NoError(t, template.SeedBuiltins(ctx, store, logger))
	templates, err = store.ListTemplates(ctx, "", false)
	require.NoError(t, err)
	assert.Len(t, templates, first)
}
