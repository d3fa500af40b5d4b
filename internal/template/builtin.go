package template

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
)

// builtinTemplates are restored on startup and immutable through the
// normal write paths.
var builtinTemplates = []struct {
	name        string
	description string
	target      model.EntityType
	sections    []model.TemplateSection
}{
	{
		name:        "Task Implementation",
		description: "Standard working notes for an implementation task.",
		target:      model.EntityTask,
		sections: []model.TemplateSection{
			{Title: "Requirements", UsageDescription: "What must be true when this task is done.", ContentFormat: model.FormatMarkdown, Ordinal: 0, IsRequired: true},
			{Title: "Implementation Notes", UsageDescription: "Approach, affected files, decisions made along the way.", ContentFormat: model.FormatMarkdown, Ordinal: 1},
			{Title: "Verification", UsageDescription: "How completion was verified.", ContentFormat: model.FormatMarkdown, Ordinal: 2},
		},
	},
	{
		name:        "Feature Definition",
		description: "Captures scope and acceptance criteria for a feature.",
		target:      model.EntityFeature,
		sections: []model.TemplateSection{
			{Title: "Overview", UsageDescription: "What the feature does and who it is for.", ContentFormat: model.FormatMarkdown, Ordinal: 0, IsRequired: true},
			{Title: "Acceptance Criteria", UsageDescription: "Checkable conditions for feature completion.", ContentFormat: model.FormatMarkdown, Ordinal: 1},
			{Title: "Out of Scope", UsageDescription: "Explicitly excluded behaviour.", ContentFormat: model.FormatMarkdown, Ordinal: 2},
		},
	},
	{
		name:        "Project Charter",
		description: "High-level framing for a new project.",
		target:      model.EntityProject,
		sections: []model.TemplateSection{
			{Title: "Goals", UsageDescription: "What success looks like.", ContentFormat: model.FormatMarkdown, Ordinal: 0, IsRequired: true},
			{Title: "Constraints", UsageDescription: "Time, compatibility and resource limits.", ContentFormat: model.FormatMarkdown, Ordinal: 1},
		},
	},
}

// SeedBuiltins restores the built-in templates, skipping any that already
// exist. Safe to call on every startup.
func SeedBuiltins(ctx context.Context, store storage.Store, logger *slog.Logger) error {
	for _, b := range builtinTemplates {
		tmpl := &model.Template{
			Name:             b.name,
			Description:      b.description,
			TargetEntityType: b.target,
			IsBuiltIn:        true,
			IsEnabled:        true,
		}
		sections := make([]*model.TemplateSection, len(b.sections))
		for i := range b.sections {
			sec := b.sections[i]
			sections[i] = &sec
		}
		err := store.CreateTemplate(ctx, tmpl, sections)
		if errors.Is(err, storage.ErrConflict) {
			continue // already present
		}
		if err != nil {
			return err
		}
		logger.Info("seeded built-in template", "name", b.name, "target", b.target)
	}
	return nil
}
