// Package template applies section templates to entities. An apply
// materializes each template's section prototypes onto the target entity,
// preserving relative order and deduplicating by title.
package template

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
)

// DuplicateMode controls what happens when a prototype's title matches an
// existing section on the target (case-insensitive).
type DuplicateMode string

const (
	// ModeSkipDuplicate silently skips matching prototypes. Default.
	ModeSkipDuplicate DuplicateMode = "skip-duplicate"
	// ModeOverwrite replaces the existing section's content in place.
	ModeOverwrite DuplicateMode = "overwrite"
	// ModeError fails the whole apply on the first duplicate.
	ModeError DuplicateMode = "error"
)

// ParseDuplicateMode parses a mode name; empty selects the default.
func ParseDuplicateMode(s string) (DuplicateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip-duplicate", "skip_duplicate", "skip":
		return ModeSkipDuplicate, nil
	case "overwrite":
		return ModeOverwrite, nil
	case "error":
		return ModeError, nil
	}
	return "", fmt.Errorf("invalid duplicate mode %q", s)
}

// Engine applies templates through the store.
type Engine struct {
	store storage.Store
}

// NewEngine creates a template engine over the store.
func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// Result summarizes one apply.
type Result struct {
	SectionsCreated   int      `json:"sectionsCreated"`
	SectionsOverwrote int      `json:"sectionsOverwrote"`
	SectionsSkipped   int      `json:"sectionsSkipped"`
	TemplatesApplied  []string `json:"templatesApplied"`
}

// Apply materializes the given templates, in order, onto the target entity.
// The whole apply is atomic: any failure writes nothing.
func (e *Engine) Apply(ctx context.Context, templateIDs []string, targetType model.EntityType, targetID string, mode DuplicateMode) (*Result, error) {
	if len(templateIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one template id is required", storage.ErrValidation)
	}
	if mode == "" {
		mode = ModeSkipDuplicate
	}

	res := &Result{}
	err := e.store.RunInTransaction(ctx, func(tx storage.Store) error {
		return e.applyTx(ctx, tx, templateIDs, targetType, targetID, mode, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ApplyTx runs an apply inside an existing transaction, for template
// application at entity-creation time.
func (e *Engine) ApplyTx(ctx context.Context, tx storage.Store, templateIDs []string, targetType model.EntityType, targetID string, mode DuplicateMode) (*Result, error) {
	if mode == "" {
		mode = ModeSkipDuplicate
	}
	res := &Result{}
	if err := e.applyTx(ctx, tx, templateIDs, targetType, targetID, mode, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) applyTx(ctx context.Context, tx storage.Store, templateIDs []string, targetType model.EntityType, targetID string, mode DuplicateMode, res *Result) error {
	if err := verifyTarget(ctx, tx, targetType, targetID); err != nil {
		return err
	}

	existing, err := tx.ListSections(ctx, targetType, targetID)
	if err != nil {
		return err
	}
	byTitle := make(map[string]*model.Section, len(existing))
	nextOrdinal := 0
	for _, sec := range existing {
		byTitle[strings.ToLower(sec.Title)] = sec
		if sec.Ordinal >= nextOrdinal {
			nextOrdinal = sec.Ordinal + 1
		}
	}

	for _, tid := range templateIDs {
		tmpl, err := tx.GetTemplate(ctx, tid)
		if err != nil {
			return err
		}
		if !tmpl.IsEnabled {
			return fmt.Errorf("%w: template %q is disabled", storage.ErrValidation, tmpl.Name)
		}
		if tmpl.TargetEntityType != targetType {
			return fmt.Errorf("%w: template %q targets %s, not %s",
				storage.ErrValidation, tmpl.Name, tmpl.TargetEntityType, targetType)
		}

		protos, err := tx.ListTemplateSections(ctx, tid)
		if err != nil {
			return err
		}
		for _, proto := range protos {
			key := strings.ToLower(proto.Title)
			if prev, dup := byTitle[key]; dup {
				switch mode {
				case ModeError:
					return fmt.Errorf("%w: section %q already exists on target",
						storage.ErrConflict, proto.Title)
				case ModeSkipDuplicate:
					res.SectionsSkipped++
					continue
				case ModeOverwrite:
					prev.Content = proto.Content
					prev.ContentFormat = proto.ContentFormat
					prev.UsageDescription = proto.UsageDescription
					prev.Tags = proto.Tags
					if err := tx.UpdateSection(ctx, prev); err != nil {
						return err
					}
					res.SectionsOverwrote++
					continue
				}
			}

			sec := &model.Section{
				EntityType:       targetType,
				EntityID:         targetID,
				Title:            proto.Title,
				UsageDescription: proto.UsageDescription,
				Content:          proto.Content,
				ContentFormat:    proto.ContentFormat,
				Ordinal:          nextOrdinal,
				Tags:             proto.Tags,
			}
			if err := tx.CreateSection(ctx, sec); err != nil {
				return err
			}
			byTitle[key] = sec
			nextOrdinal++
			res.SectionsCreated++
		}
		res.TemplatesApplied = append(res.TemplatesApplied, tmpl.Name)
	}
	return nil
}

func verifyTarget(ctx context.Context, tx storage.Store, targetType model.EntityType, targetID string) error {
	var err error
	switch targetType {
	case model.EntityProject:
		_, err = tx.GetProject(ctx, targetID)
	case model.EntityFeature:
		_, err = tx.GetFeature(ctx, targetID)
	case model.EntityTask:
		_, err = tx.GetTask(ctx, targetID)
	default:
		return fmt.Errorf("%w: templates cannot target %s", storage.ErrValidation, targetType)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: apply target %s %s", storage.ErrNotFound, targetType, targetID)
	}
	return err
}
