// Package views shapes entities for tool responses. Write operations
// return the full views; search operations return the minimal ones to
// keep token usage low.
package views

import (
	"time"

	"github.com/taskvault/taskvault/internal/model"
)

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func tags(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// Project is the full project view.
type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"createdAt"`
	ModifiedAt  string   `json:"modifiedAt"`
}

func FromProject(p *model.Project) Project {
	return Project{
		ID:          p.ID,
		Name:        p.Name,
		Summary:     p.Summary,
		Description: p.Description,
		Status:      string(p.Status),
		Tags:        tags(p.Tags),
		CreatedAt:   stamp(p.CreatedAt),
		ModifiedAt:  stamp(p.ModifiedAt),
	}
}

// Feature is the full feature view.
type Feature struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	ProjectID   string   `json:"projectId,omitempty"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"createdAt"`
	ModifiedAt  string   `json:"modifiedAt"`
}

func FromFeature(f *model.Feature) Feature {
	return Feature{
		ID:          f.ID,
		Name:        f.Name,
		Summary:     f.Summary,
		Description: f.Description,
		Status:      string(f.Status),
		Priority:    f.Priority.Lower(),
		ProjectID:   f.ProjectID,
		Tags:        tags(f.Tags),
		CreatedAt:   stamp(f.CreatedAt),
		ModifiedAt:  stamp(f.ModifiedAt),
	}
}

// Task is the full task view.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Complexity  int      `json:"complexity,omitempty"`
	FeatureID   string   `json:"featureId,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"createdAt"`
	ModifiedAt  string   `json:"modifiedAt"`
}

func FromTask(t *model.Task) Task {
	return Task{
		ID:          t.ID,
		Title:       t.Title,
		Summary:     t.Summary,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    t.Priority.Lower(),
		Complexity:  t.Complexity,
		FeatureID:   t.FeatureID,
		ProjectID:   t.ProjectID,
		Tags:        tags(t.Tags),
		CreatedAt:   stamp(t.CreatedAt),
		ModifiedAt:  stamp(t.ModifiedAt),
	}
}

// MinimalProject is the search projection for projects.
type MinimalProject struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func MinProject(p *model.Project) MinimalProject {
	return MinimalProject{ID: p.ID, Name: p.Name, Status: string(p.Status)}
}

// MinimalFeature is the search projection for features.
type MinimalFeature struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	ProjectID string `json:"projectId,omitempty"`
}

func MinFeature(f *model.Feature) MinimalFeature {
	return MinimalFeature{
		ID:        f.ID,
		Name:      f.Name,
		Status:    string(f.Status),
		Priority:  f.Priority.Lower(),
		ProjectID: f.ProjectID,
	}
}

// MinimalTask is the search projection for tasks. FeatureID falls back to
// ProjectID as the nearest owning container.
type MinimalTask struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	Complexity int    `json:"complexity,omitempty"`
	FeatureID  string `json:"featureId,omitempty"`
	ProjectID  string `json:"projectId,omitempty"`
}

func MinTask(t *model.Task) MinimalTask {
	mt := MinimalTask{
		ID:         t.ID,
		Title:      t.Title,
		Status:     string(t.Status),
		Priority:   t.Priority.Lower(),
		Complexity: t.Complexity,
	}
	if t.FeatureID != "" {
		mt.FeatureID = t.FeatureID
	} else {
		mt.ProjectID = t.ProjectID
	}
	return mt
}

// Section is the full section view.
type Section struct {
	ID               string   `json:"id"`
	EntityType       string   `json:"entityType"`
	EntityID         string   `json:"entityId"`
	Title            string   `json:"title"`
	UsageDescription string   `json:"usageDescription,omitempty"`
	Content          string   `json:"content"`
	ContentFormat    string   `json:"contentFormat"`
	Ordinal          int      `json:"ordinal"`
	Tags             []string `json:"tags"`
	CreatedAt        string   `json:"createdAt"`
	ModifiedAt       string   `json:"modifiedAt"`
}

func FromSection(s *model.Section) Section {
	return Section{
		ID:               s.ID,
		EntityType:       string(s.EntityType),
		EntityID:         s.EntityID,
		Title:            s.Title,
		UsageDescription: s.UsageDescription,
		Content:          s.Content,
		ContentFormat:    string(s.ContentFormat),
		Ordinal:          s.Ordinal,
		Tags:             tags(s.Tags),
		CreatedAt:        stamp(s.CreatedAt),
		ModifiedAt:       stamp(s.ModifiedAt),
	}
}

// Template is the full template view.
type Template struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	TargetEntityType string   `json:"targetEntityType"`
	IsBuiltIn        bool     `json:"isBuiltIn"`
	IsEnabled        bool     `json:"isEnabled"`
	Tags             []string `json:"tags"`
	CreatedAt        string   `json:"createdAt"`
	ModifiedAt       string   `json:"modifiedAt"`
}

func FromTemplate(t *model.Template) Template {
	return Template{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		TargetEntityType: string(t.TargetEntityType),
		IsBuiltIn:        t.IsBuiltIn,
		IsEnabled:        t.IsEnabled,
		Tags:             tags(t.Tags),
		CreatedAt:        stamp(t.CreatedAt),
		ModifiedAt:       stamp(t.ModifiedAt),
	}
}

// TemplateSection is the section prototype view.
type TemplateSection struct {
	ID               string   `json:"id"`
	TemplateID       string   `json:"templateId"`
	Title            string   `json:"title"`
	UsageDescription string   `json:"usageDescription,omitempty"`
	Content          string   `json:"content"`
	ContentFormat    string   `json:"contentFormat"`
	Ordinal          int      `json:"ordinal"`
	IsRequired       bool     `json:"isRequired"`
	Tags             []string `json:"tags"`
}

func FromTemplateSection(s *model.TemplateSection) TemplateSection {
	return TemplateSection{
		ID:               s.ID,
		TemplateID:       s.TemplateID,
		Title:            s.Title,
		UsageDescription: s.UsageDescription,
		Content:          s.Content,
		ContentFormat:    string(s.ContentFormat),
		Ordinal:          s.Ordinal,
		IsRequired:       s.IsRequired,
		Tags:             tags(s.Tags),
	}
}

// Dependency is the edge view.
type Dependency struct {
	ID         string `json:"id"`
	FromTaskID string `json:"fromTaskId"`
	ToTaskID   string `json:"toTaskId"`
	Type       string `json:"type"`
	CreatedAt  string `json:"createdAt"`
}

func FromDependency(d *model.Dependency) Dependency {
	return Dependency{
		ID:         d.ID,
		FromTaskID: d.FromTaskID,
		ToTaskID:   d.ToTaskID,
		Type:       string(d.Type),
		CreatedAt:  stamp(d.CreatedAt),
	}
}

// TaskCounts is the by-status summary used by overview responses,
// computed from a single filtered fetch.
type TaskCounts struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

func CountTasks(tasks []*model.Task) TaskCounts {
	tc := TaskCounts{Total: len(tasks), ByStatus: map[string]int{}}
	for _, t := range tasks {
		tc.ByStatus[string(t.Status)]++
	}
	return tc
}
