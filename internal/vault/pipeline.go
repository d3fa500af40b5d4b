package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/workflow"
)

// jobKind enumerates the export pipeline's work items.
type jobKind int

const (
	jobExport jobKind = iota
	jobDelete
	jobCascade
	jobFullExport
)

func (k jobKind) String() string {
	switch k {
	case jobExport:
		return "export"
	case jobDelete:
		return "delete"
	case jobCascade:
		return "cascade"
	case jobFullExport:
		return "full-export"
	}
	return "unknown"
}

type job struct {
	kind       jobKind
	entityType model.EntityType
	entityID   string
}

const (
	defaultQueueSize = 256
	drainTimeout     = 10 * time.Second
)

// Pipeline mirrors entity state into the Markdown vault. Jobs are
// enqueued without blocking and consumed by a single goroutine, so all
// filesystem writes and sync-state mutations are serialized.
type Pipeline struct {
	root     string
	store    storage.Store
	wf       *workflow.Engine
	renderer *Renderer
	resolver *pathResolver
	state    *syncState
	jobs     chan job
	done     chan struct{}
	logger   *slog.Logger
}

// NewPipeline creates the pipeline rooted at dir. The vault directory is
// created if missing and the sync-state index loaded from it.
func NewPipeline(dir string, store storage.Store, wf *workflow.Engine, logger *slog.Logger) (*Pipeline, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating vault directory: %w", err)
	}
	return &Pipeline{
		root:     dir,
		store:    store,
		wf:       wf,
		renderer: NewRenderer(store, wf),
		resolver: &pathResolver{store: store, wf: wf},
		state:    loadSyncState(dir, logger),
		jobs:     make(chan job, defaultQueueSize),
		done:     make(chan struct{}),
		logger:   logger,
	}, nil
}

// Run consumes jobs until ctx is cancelled, then drains whatever is
// already queued before returning.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case j := <-p.jobs:
			p.handle(context.WithoutCancel(ctx), j)
		}
	}
}

// drain processes queued jobs with a bounded grace period.
func (p *Pipeline) drain() {
	deadline := time.Now().Add(drainTimeout)
	ctx := context.Background()
	for {
		select {
		case j := <-p.jobs:
			if time.Now().After(deadline) {
				p.logger.Warn("vault drain timeout, dropping job", "kind", j.kind.String(), "id", j.entityID)
				continue
			}
			p.handle(ctx, j)
		default:
			return
		}
	}
}

// Wait blocks until Run has returned.
func (p *Pipeline) Wait() { <-p.done }

// enqueue submits a job without blocking. A saturated queue drops the
// job with a warning; the next full export reconciles anything missed.
func (p *Pipeline) enqueue(j job) {
	select {
	case p.jobs <- j:
	default:
		p.logger.Warn("vault queue saturated, dropping job",
			"kind", j.kind.String(), "entityType", string(j.entityType), "id", j.entityID)
	}
}

// ExportEntity schedules a single entity's file to be (re)written.
func (p *Pipeline) ExportEntity(kind model.EntityType, id string) {
	p.enqueue(job{kind: jobExport, entityType: kind, entityID: id})
}

// DeleteEntity schedules removal of an entity's file and index entry.
func (p *Pipeline) DeleteEntity(kind model.EntityType, id string) {
	p.enqueue(job{kind: jobDelete, entityType: kind, entityID: id})
}

// Cascade schedules an export of the entity and, when its path moved,
// of every descendant whose path depends on it.
func (p *Pipeline) Cascade(kind model.EntityType, id string) {
	p.enqueue(job{kind: jobCascade, entityType: kind, entityID: id})
}

// FullExport schedules a rebuild of the entire vault.
func (p *Pipeline) FullExport() {
	p.enqueue(job{kind: jobFullExport})
}

func (p *Pipeline) handle(ctx context.Context, j job) {
	var err error
	switch j.kind {
	case jobExport:
		_, err = p.exportEntity(ctx, j.entityType, j.entityID)
	case jobDelete:
		err = p.deleteEntity(j.entityID)
	case jobCascade:
		err = p.cascade(ctx, j.entityType, j.entityID)
	case jobFullExport:
		err = p.fullExport(ctx)
	}
	if err != nil {
		p.logger.Error("vault job failed",
			"kind", j.kind.String(), "entityType", string(j.entityType), "id", j.entityID, "error", err)
	}
}

// exportEntity renders and writes one entity's file. When the resolved
// path differs from the recorded one the old file is removed and empty
// parent directories pruned. Returns whether the path changed.
func (p *Pipeline) exportEntity(ctx context.Context, kind model.EntityType, id string) (bool, error) {
	relPath, content, err := p.resolveAndRender(ctx, kind, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted between enqueue and processing.
		return false, p.deleteEntity(id)
	}
	if err != nil {
		return false, err
	}

	previous := p.state.pathOf(id)
	moved := previous != "" && previous != relPath
	if moved {
		p.removeFile(previous)
	}

	target := filepath.Join(p.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return moved, fmt.Errorf("creating directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return moved, fmt.Errorf("writing %s: %w", relPath, err)
	}
	if err := p.state.record(id, kind, relPath); err != nil {
		return moved, err
	}
	return moved, nil
}

func (p *Pipeline) resolveAndRender(ctx context.Context, kind model.EntityType, id string) (string, string, error) {
	switch kind {
	case model.EntityProject:
		project, err := p.store.GetProject(ctx, id)
		if err != nil {
			return "", "", err
		}
		content, err := p.renderer.RenderProject(ctx, project)
		if err != nil {
			return "", "", err
		}
		return p.resolver.projectPath(project), content, nil
	case model.EntityFeature:
		feature, err := p.store.GetFeature(ctx, id)
		if err != nil {
			return "", "", err
		}
		relPath, err := p.resolver.featurePath(ctx, feature)
		if err != nil {
			return "", "", err
		}
		content, err := p.renderer.RenderFeature(ctx, feature)
		if err != nil {
			return "", "", err
		}
		return relPath, content, nil
	case model.EntityTask:
		task, err := p.store.GetTask(ctx, id)
		if err != nil {
			return "", "", err
		}
		relPath, err := p.resolver.taskPath(ctx, task)
		if err != nil {
			return "", "", err
		}
		content, err := p.renderer.RenderTask(ctx, task)
		if err != nil {
			return "", "", err
		}
		return relPath, content, nil
	}
	return "", "", fmt.Errorf("entity type %q is not exported", kind)
}

// deleteEntity removes the entity's file (per the index) and its entry.
func (p *Pipeline) deleteEntity(id string) error {
	previous := p.state.pathOf(id)
	if previous == "" {
		return nil
	}
	p.removeFile(previous)
	return p.state.remove(id)
}

// removeFile deletes a vault-relative file and prunes newly empty parent
// directories upward, stopping at the vault root.
func (p *Pipeline) removeFile(relPath string) {
	target := filepath.Join(p.root, filepath.FromSlash(relPath))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("removing stale vault file failed", "path", relPath, "error", err)
		return
	}
	dir := filepath.Dir(target)
	for strings.HasPrefix(dir, p.root) && dir != p.root {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// cascade exports the entity, and when its path changed re-exports every
// descendant whose own path embeds the renamed or moved segment.
func (p *Pipeline) cascade(ctx context.Context, kind model.EntityType, id string) error {
	moved, err := p.exportEntity(ctx, kind, id)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	switch kind {
	case model.EntityProject:
		features, err := p.store.FindFeatures(ctx, model.Query{ProjectID: id})
		if err != nil {
			return err
		}
		for _, f := range features {
			if err := p.cascade(ctx, model.EntityFeature, f.ID); err != nil {
				p.logger.Error("cascading feature export failed", "id", f.ID, "error", err)
			}
		}
		tasks, err := p.store.FindTasks(ctx, model.Query{ProjectID: id})
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.FeatureID != "" {
				continue // handled via its feature's cascade
			}
			if _, err := p.exportEntity(ctx, model.EntityTask, t.ID); err != nil {
				p.logger.Error("cascading task export failed", "id", t.ID, "error", err)
			}
		}
	case model.EntityFeature:
		tasks, err := p.store.FindTasks(ctx, model.Query{FeatureID: id})
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if _, err := p.exportEntity(ctx, model.EntityTask, t.ID); err != nil {
				p.logger.Error("cascading task export failed", "id", t.ID, "error", err)
			}
		}
	}
	return nil
}

// fullExport rewrites every exportable entity: projects, then features,
// then tasks, so parent directories exist before children land in them.
func (p *Pipeline) fullExport(ctx context.Context) error {
	projects, err := p.store.FindProjects(ctx, model.Query{})
	if err != nil {
		return err
	}
	for _, project := range projects {
		if _, err := p.exportEntity(ctx, model.EntityProject, project.ID); err != nil {
			p.logger.Error("full export: project failed", "id", project.ID, "error", err)
		}
	}
	features, err := p.store.FindFeatures(ctx, model.Query{})
	if err != nil {
		return err
	}
	for _, feature := range features {
		if _, err := p.exportEntity(ctx, model.EntityFeature, feature.ID); err != nil {
			p.logger.Error("full export: feature failed", "id", feature.ID, "error", err)
		}
	}
	tasks, err := p.store.FindTasks(ctx, model.Query{})
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if _, err := p.exportEntity(ctx, model.EntityTask, task.ID); err != nil {
			p.logger.Error("full export: task failed", "id", task.ID, "error", err)
		}
	}
	return nil
}
