// Package storage defines the interface for TaskVault storage backends.
//
// All mutating methods run inside a single transaction on the backend and
// return typed errors (ErrNotFound, ErrValidation, ErrConflict, ErrDatabase)
// that callers classify with errors.Is. Delete methods return (false, nil)
// when the id did not exist; a missing row is not an error for delete.
package storage

import (
	"context"

	"github.com/taskvault/taskvault/internal/model"
)

// TagUsage reports which entities currently hold a given tag.
type TagUsage struct {
	Projects []string `json:"projects"`
	Features []string `json:"features"`
	Tasks    []string `json:"tasks"`
}

// Store is the full persistence surface. The vault export pipeline wraps a
// Store with a decorator that schedules Markdown rendering after each
// successful write; everything else talks to the plain backend.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	UpdateProject(ctx context.Context, p *model.Project) error
	DeleteProject(ctx context.Context, id string) (bool, error)
	FindProjects(ctx context.Context, q model.Query) ([]*model.Project, error)

	// Features
	CreateFeature(ctx context.Context, f *model.Feature) error
	GetFeature(ctx context.Context, id string) (*model.Feature, error)
	UpdateFeature(ctx context.Context, f *model.Feature) error
	DeleteFeature(ctx context.Context, id string) (bool, error)
	FindFeatures(ctx context.Context, q model.Query) ([]*model.Feature, error)

	// Tasks
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, t *model.Task) error
	DeleteTask(ctx context.Context, id string) (bool, error)
	FindTasks(ctx context.Context, q model.Query) ([]*model.Task, error)

	// Sections
	CreateSection(ctx context.Context, s *model.Section) error
	GetSection(ctx context.Context, id string) (*model.Section, error)
	UpdateSection(ctx context.Context, s *model.Section) error
	DeleteSection(ctx context.Context, id string) (bool, error)
	ListSections(ctx context.Context, entityType model.EntityType, entityID string) ([]*model.Section, error)
	ReorderSections(ctx context.Context, entityType model.EntityType, entityID string, orderedIDs []string) error

	// Templates
	CreateTemplate(ctx context.Context, t *model.Template, sections []*model.TemplateSection) error
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	UpdateTemplate(ctx context.Context, t *model.Template) error
	DeleteTemplate(ctx context.Context, id string) (bool, error)
	ListTemplates(ctx context.Context, targetType model.EntityType, enabledOnly bool) ([]*model.Template, error)
	ListTemplateSections(ctx context.Context, templateID string) ([]*model.TemplateSection, error)

	// Dependencies
	AddDependency(ctx context.Context, d *model.Dependency) error
	RemoveDependency(ctx context.Context, id string) (bool, error)
	RemoveDependencyEdge(ctx context.Context, fromTaskID, toTaskID string, depType model.DependencyType) (bool, error)
	ListDependencies(ctx context.Context, taskID string) ([]*model.Dependency, error)
	AllDependencies(ctx context.Context) ([]*model.Dependency, error)

	// Tags
	ListTags(ctx context.Context) ([]model.TagCount, error)
	GetTagUsage(ctx context.Context, tag string) (*TagUsage, error)
	RenameTag(ctx context.Context, oldTag, newTag string) (int, error)

	// RunInTransaction executes fn atomically. All Store methods called on
	// the passed store share one database transaction; an error from fn
	// rolls everything back.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
