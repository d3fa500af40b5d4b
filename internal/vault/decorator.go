package vault

import (
	"context"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
)

// SyncedStore decorates a storage.Store so every successful write
// schedules the matching vault export. Reads pass straight through.
//
// Container writes cascade (a rename moves every descendant file); task
// writes export the task and refresh both parent documents' tables;
// section writes re-export the owning entity. Template sections never
// reach the vault. Deletes collect descendant ids before the row goes
// away so their files can still be found in the index afterwards.
type SyncedStore struct {
	storage.Store
	pipeline *Pipeline
}

// NewSyncedStore wraps store with export scheduling on pipeline.
func NewSyncedStore(store storage.Store, pipeline *Pipeline) *SyncedStore {
	return &SyncedStore{Store: store, pipeline: pipeline}
}

func (s *SyncedStore) CreateProject(ctx context.Context, p *model.Project) error {
	if err := s.Store.CreateProject(ctx, p); err != nil {
		return err
	}
	s.pipeline.ExportEntity(model.EntityProject, p.ID)
	return nil
}

func (s *SyncedStore) UpdateProject(ctx context.Context, p *model.Project) error {
	if err := s.Store.UpdateProject(ctx, p); err != nil {
		return err
	}
	s.pipeline.Cascade(model.EntityProject, p.ID)
	return nil
}

func (s *SyncedStore) DeleteProject(ctx context.Context, id string) (bool, error) {
	features, err := s.Store.FindFeatures(ctx, model.Query{ProjectID: id})
	if err != nil {
		return false, err
	}
	tasks, err := s.Store.FindTasks(ctx, model.Query{ProjectID: id})
	if err != nil {
		return false, err
	}
	deleted, err := s.Store.DeleteProject(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	for _, t := range tasks {
		s.pipeline.DeleteEntity(model.EntityTask, t.ID)
	}
	for _, f := range features {
		s.pipeline.DeleteEntity(model.EntityFeature, f.ID)
	}
	s.pipeline.DeleteEntity(model.EntityProject, id)
	return true, nil
}

func (s *SyncedStore) CreateFeature(ctx context.Context, f *model.Feature) error {
	if err := s.Store.CreateFeature(ctx, f); err != nil {
		return err
	}
	s.pipeline.ExportEntity(model.EntityFeature, f.ID)
	if f.ProjectID != "" {
		s.pipeline.ExportEntity(model.EntityProject, f.ProjectID)
	}
	return nil
}

func (s *SyncedStore) UpdateFeature(ctx context.Context, f *model.Feature) error {
	if err := s.Store.UpdateFeature(ctx, f); err != nil {
		return err
	}
	s.pipeline.Cascade(model.EntityFeature, f.ID)
	if f.ProjectID != "" {
		s.pipeline.ExportEntity(model.EntityProject, f.ProjectID)
	}
	return nil
}

func (s *SyncedStore) DeleteFeature(ctx context.Context, id string) (bool, error) {
	feature, err := s.Store.GetFeature(ctx, id)
	if err != nil {
		// Not found: fall through so Delete reports (false, nil).
		feature = nil
	}
	tasks, err := s.Store.FindTasks(ctx, model.Query{FeatureID: id})
	if err != nil {
		return false, err
	}
	deleted, err := s.Store.DeleteFeature(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	for _, t := range tasks {
		s.pipeline.DeleteEntity(model.EntityTask, t.ID)
	}
	s.pipeline.DeleteEntity(model.EntityFeature, id)
	if feature != nil && feature.ProjectID != "" {
		s.pipeline.ExportEntity(model.EntityProject, feature.ProjectID)
	}
	return true, nil
}

func (s *SyncedStore) CreateTask(ctx context.Context, t *model.Task) error {
	if err := s.Store.CreateTask(ctx, t); err != nil {
		return err
	}
	s.exportTaskAndParents(t)
	return nil
}

func (s *SyncedStore) UpdateTask(ctx context.Context, t *model.Task) error {
	if err := s.Store.UpdateTask(ctx, t); err != nil {
		return err
	}
	s.exportTaskAndParents(t)
	return nil
}

func (s *SyncedStore) DeleteTask(ctx context.Context, id string) (bool, error) {
	task, err := s.Store.GetTask(ctx, id)
	if err != nil {
		task = nil
	}
	deleted, err := s.Store.DeleteTask(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	s.pipeline.DeleteEntity(model.EntityTask, id)
	if task != nil {
		if task.FeatureID != "" {
			s.pipeline.ExportEntity(model.EntityFeature, task.FeatureID)
		}
		if task.ProjectID != "" {
			s.pipeline.ExportEntity(model.EntityProject, task.ProjectID)
		}
	}
	return true, nil
}

// exportTaskAndParents refreshes the task file plus the feature and
// project documents whose status tables mention it.
func (s *SyncedStore) exportTaskAndParents(t *model.Task) {
	s.pipeline.ExportEntity(model.EntityTask, t.ID)
	if t.FeatureID != "" {
		s.pipeline.ExportEntity(model.EntityFeature, t.FeatureID)
	}
	if t.ProjectID != "" {
		s.pipeline.ExportEntity(model.EntityProject, t.ProjectID)
	}
}

func (s *SyncedStore) CreateSection(ctx context.Context, sec *model.Section) error {
	if err := s.Store.CreateSection(ctx, sec); err != nil {
		return err
	}
	s.exportSectionOwner(sec.EntityType, sec.EntityID)
	return nil
}

func (s *SyncedStore) UpdateSection(ctx context.Context, sec *model.Section) error {
	if err := s.Store.UpdateSection(ctx, sec); err != nil {
		return err
	}
	s.exportSectionOwner(sec.EntityType, sec.EntityID)
	return nil
}

func (s *SyncedStore) DeleteSection(ctx context.Context, id string) (bool, error) {
	sec, err := s.Store.GetSection(ctx, id)
	if err != nil {
		sec = nil
	}
	deleted, err := s.Store.DeleteSection(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	if sec != nil {
		s.exportSectionOwner(sec.EntityType, sec.EntityID)
	}
	return true, nil
}

func (s *SyncedStore) ReorderSections(ctx context.Context, entityType model.EntityType, entityID string, orderedIDs []string) error {
	if err := s.Store.ReorderSections(ctx, entityType, entityID, orderedIDs); err != nil {
		return err
	}
	s.exportSectionOwner(entityType, entityID)
	return nil
}

// exportSectionOwner re-exports the entity owning a changed section.
// Template prototypes have no vault file.
func (s *SyncedStore) exportSectionOwner(kind model.EntityType, id string) {
	if kind == model.EntityTemplate {
		return
	}
	s.pipeline.ExportEntity(kind, id)
}

func (s *SyncedStore) RenameTag(ctx context.Context, oldTag, newTag string) (int, error) {
	n, err := s.Store.RenameTag(ctx, oldTag, newTag)
	if err != nil {
		return n, err
	}
	if n > 0 {
		// Tags appear in every touched file's front-matter; cheaper to
		// rebuild than to enumerate which entities changed.
		s.pipeline.FullExport()
	}
	return n, nil
}

// RunInTransaction runs fn against the raw backend. Export scheduling
// inside transactions is the caller's responsibility: the decorator
// cannot know whether the transaction will commit.
func (s *SyncedStore) RunInTransaction(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.Store.RunInTransaction(ctx, fn)
}
