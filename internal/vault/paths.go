package vault

import (
	"context"
	"path"
	"strings"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/workflow"
)

// File names for container entities inside their own directory.
const (
	projectFileName = "_project.md"
	featureFileName = "_feature.md"
)

// terminalFolder returns the per-status subfolder segment inserted under
// the parent directory for finished work, or "" for active statuses.
func terminalFolder(prog *workflow.Progression, st model.Status) string {
	if prog == nil || !prog.IsTerminal(st) {
		return ""
	}
	switch st {
	case "completed":
		return "Completed"
	case "cancelled":
		return "Cancelled"
	case "deferred":
		return "Deferred"
	case "archived":
		return "Archived"
	}
	// Unknown terminal statuses still get isolated, under a capitalized
	// folder derived from the status name.
	s := string(st)
	if s == "" {
		return ""
	}
	return SanitizeComponent(strings.ToUpper(s[:1]) + s[1:])
}

// pathResolver computes vault-relative paths by name, not id, so renaming
// a parent changes every descendant's resolved path.
type pathResolver struct {
	store storage.Store
	wf    *workflow.Engine
}

// projectPath resolves "<Project>/_project.md", with a terminal-status
// folder inserted above the project directory when finished.
func (r *pathResolver) projectPath(p *model.Project) string {
	prog := r.wf.Snapshot().Progression(model.EntityProject)
	dir := SanitizeComponent(p.Name)
	if folder := terminalFolder(prog, p.Status); folder != "" {
		return path.Join(folder, dir, projectFileName)
	}
	return path.Join(dir, projectFileName)
}

// featurePath resolves "<Project?>/<Feature>/_feature.md".
func (r *pathResolver) featurePath(ctx context.Context, f *model.Feature) (string, error) {
	prog := r.wf.Snapshot().Progression(model.EntityFeature)
	dir := SanitizeComponent(f.Name)

	var parent string
	if f.ProjectID != "" {
		project, err := r.store.GetProject(ctx, f.ProjectID)
		if err != nil {
			return "", err
		}
		parent = SanitizeComponent(project.Name)
	}
	if folder := terminalFolder(prog, f.Status); folder != "" {
		return path.Join(parent, folder, dir, featureFileName), nil
	}
	return path.Join(parent, dir, featureFileName), nil
}

// taskPath resolves "<Project?>/<Feature?>/<Task>.md". A task inherits its
// project directory from its feature when it has no explicit project.
func (r *pathResolver) taskPath(ctx context.Context, t *model.Task) (string, error) {
	prog := r.wf.Snapshot().Progression(model.EntityTask)

	var segments []string
	projectID := t.ProjectID
	if t.FeatureID != "" {
		feature, err := r.store.GetFeature(ctx, t.FeatureID)
		if err != nil {
			return "", err
		}
		if projectID == "" {
			projectID = feature.ProjectID
		}
		if projectID != "" {
			project, err := r.store.GetProject(ctx, projectID)
			if err != nil {
				return "", err
			}
			segments = append(segments, SanitizeComponent(project.Name))
		}
		segments = append(segments, SanitizeComponent(feature.Name))
	} else if projectID != "" {
		project, err := r.store.GetProject(ctx, projectID)
		if err != nil {
			return "", err
		}
		segments = append(segments, SanitizeComponent(project.Name))
	}

	if folder := terminalFolder(prog, t.Status); folder != "" {
		segments = append(segments, folder)
	}
	segments = append(segments, SanitizeComponent(t.Title)+".md")
	return path.Join(segments...), nil
}
