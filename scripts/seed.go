// Command seed populates a TaskVault database with demo data: one project
// with two features, a handful of tasks across both flows, sections, and a
// small dependency chain. Useful for trying the tools against realistic
// content.
//
// Usage:
//
//	DATABASE_PATH=data/tasks.db go run ./scripts/seed.go
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage/sqlite"
	"github.com/taskvault/taskvault/internal/template"
)

func main() {
	log.SetFlags(log.Ltime)
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "data/tasks.db"
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := sqlite.Open(ctx, path, sqlite.Options{RunMigrations: true, Logger: logger})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	if err := template.SeedBuiltins(ctx, store, logger); err != nil {
		return fmt.Errorf("seeding templates: %w", err)
	}

	now := time.Now().UTC()

	project := &model.Project{
		ID:          model.NewID(),
		Name:        "Demo Project",
		Description: "Sample project seeded for local development.",
		Status:      "in-development",
		Tags:        []string{"demo"},
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if err := store.CreateProject(ctx, project); err != nil {
		return err
	}
	log.Printf("created project %s (%s)", project.Name, project.ID)

	auth := &model.Feature{
		ID:          model.NewID(),
		ProjectID:   project.ID,
		Name:        "Authentication",
		Description: "Login, sessions, and password reset.",
		Status:      "in-development",
		Priority:    model.PriorityHigh,
		Tags:        []string{"demo", "security"},
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	billing := &model.Feature{
		ID:          model.NewID(),
		ProjectID:   project.ID,
		Name:        "Billing",
		Description: "Invoicing and payment processing.",
		Status:      "planning",
		Priority:    model.PriorityMedium,
		Tags:        []string{"demo"},
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	for _, f := range []*model.Feature{auth, billing} {
		if err := store.CreateFeature(ctx, f); err != nil {
			return err
		}
		log.Printf("created feature %s (%s)", f.Name, f.ID)
	}

	tasks := []*model.Task{
		{
			Title: "Implement session store", FeatureID: auth.ID, ProjectID: project.ID,
			Status: "completed", Priority: model.PriorityHigh, Complexity: 5,
			Summary: "Cookie-backed sessions with a SQLite table; expiry sweep runs hourly. Verified with the integration suite.",
			Tags:    []string{"demo"},
		},
		{
			Title: "Add login endpoint", FeatureID: auth.ID, ProjectID: project.ID,
			Status: "in-progress", Priority: model.PriorityHigh, Complexity: 3,
			Tags: []string{"demo"},
		},
		{
			Title: "Fix session fixation on login", FeatureID: auth.ID, ProjectID: project.ID,
			Status: "pending", Priority: model.PriorityHigh, Complexity: 2,
			Tags: []string{"demo", "bug"},
		},
		{
			Title: "Design invoice schema", FeatureID: billing.ID, ProjectID: project.ID,
			Status: "pending", Priority: model.PriorityMedium, Complexity: 4,
			Tags: []string{"demo"},
		},
		{
			Title: "Set up CI pipeline", ProjectID: project.ID, // featureless
			Status: "pending", Priority: model.PriorityLow, Complexity: 3,
			Tags: []string{"demo", "infra"},
		},
	}
	for _, t := range tasks {
		t.ID = model.NewID()
		t.CreatedAt = now
		t.ModifiedAt = now
		if err := store.CreateTask(ctx, t); err != nil {
			return err
		}
		log.Printf("created task %s (%s)", t.Title, t.ID)
	}

	sections := []*model.Section{
		{
			EntityType: model.EntityProject, EntityID: project.ID,
			Title: "Overview", Content: "Demo workspace for exploring TaskVault.",
			ContentFormat: model.FormatMarkdown,
		},
		{
			EntityType: model.EntityFeature, EntityID: auth.ID,
			Title: "Acceptance Criteria",
			Content: "- Users can log in with email and password\n" +
				"- Sessions expire after 24h of inactivity\n" +
				"- Password reset links are single-use",
			ContentFormat: model.FormatMarkdown,
		},
		{
			EntityType: model.EntityTask, EntityID: tasks[1].ID,
			Title: "Notes", Content: "Rate-limit by IP before shipping.",
			ContentFormat: model.FormatMarkdown,
		},
	}
	for _, s := range sections {
		s.ID = model.NewID()
		s.Ordinal = -1 // append
		s.CreatedAt = now
		s.ModifiedAt = now
		if err := store.CreateSection(ctx, s); err != nil {
			return err
		}
	}
	log.Printf("created %d sections", len(sections))

	// Session store blocks the login endpoint; login blocks the fixation fix.
	deps := []*model.Dependency{
		{FromTaskID: tasks[0].ID, ToTaskID: tasks[1].ID, Type: model.DepBlocks},
		{FromTaskID: tasks[1].ID, ToTaskID: tasks[2].ID, Type: model.DepBlocks},
		{FromTaskID: tasks[3].ID, ToTaskID: tasks[1].ID, Type: model.DepRelatesTo},
	}
	for _, d := range deps {
		d.ID = model.NewID()
		d.CreatedAt = now
		if err := store.AddDependency(ctx, d); err != nil {
			return err
		}
	}
	log.Printf("created %d dependencies", len(deps))

	log.Printf("seed complete: %s", path)
	return nil
}
