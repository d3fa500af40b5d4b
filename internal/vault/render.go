package vault

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
	"github.com/taskvault/taskvault/internal/workflow"
)

// frontMatter is the YAML document at the top of every exported file.
// Field order here is the emission order.
type frontMatter struct {
	ID         string   `yaml:"id"`
	Type       string   `yaml:"type"`
	Name       string   `yaml:"name,omitempty"`
	Title      string   `yaml:"title,omitempty"`
	Status     string   `yaml:"status"`
	Priority   string   `yaml:"priority,omitempty"`
	Complexity int      `yaml:"complexity,omitempty"`
	ProjectID  string   `yaml:"projectId,omitempty"`
	FeatureID  string   `yaml:"featureId,omitempty"`
	Tags       []string `yaml:"tags"`
	Created    string   `yaml:"created"`
	Modified   string   `yaml:"modified"`
}

const frontMatterTime = "2006-01-02T15:04:05Z"

func isoTime(t time.Time) string { return t.UTC().Format(frontMatterTime) }

// Renderer produces the Markdown document for an entity: front-matter,
// heading, summary, status tables for containers, then sections in
// ascending ordinal order.
type Renderer struct {
	store           storage.Store
	wf              *workflow.Engine
	DefaultCodeLang string
}

// NewRenderer creates a renderer reading entity state from store.
func NewRenderer(store storage.Store, wf *workflow.Engine) *Renderer {
	return &Renderer{store: store, wf: wf, DefaultCodeLang: DefaultCodeLanguage}
}

// RenderProject renders a project document including its feature table.
func (r *Renderer) RenderProject(ctx context.Context, p *model.Project) (string, error) {
	fm := frontMatter{
		ID:       p.ID,
		Type:     "project",
		Name:     p.Name,
		Status:   string(p.Status),
		Tags:     tagList(p.Tags),
		Created:  isoTime(p.CreatedAt),
		Modified: isoTime(p.ModifiedAt),
	}
	var b strings.Builder
	if err := writeFrontMatter(&b, fm); err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "# %s\n", p.Name)
	if p.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Summary)
	}

	features, err := r.store.FindFeatures(ctx, model.Query{ProjectID: p.ID})
	if err != nil {
		return "", err
	}
	r.writeFeatureTables(&b, features)

	if err := r.writeSections(ctx, &b, model.EntityProject, p.ID); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderFeature renders a feature document including its task table.
func (r *Renderer) RenderFeature(ctx context.Context, f *model.Feature) (string, error) {
	fm := frontMatter{
		ID:        f.ID,
		Type:      "feature",
		Name:      f.Name,
		Status:    string(f.Status),
		Priority:  f.Priority.Lower(),
		ProjectID: f.ProjectID,
		Tags:      tagList(f.Tags),
		Created:   isoTime(f.CreatedAt),
		Modified:  isoTime(f.ModifiedAt),
	}
	var b strings.Builder
	if err := writeFrontMatter(&b, fm); err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "# %s\n", f.Name)
	if f.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", f.Summary)
	}

	tasks, err := r.store.FindTasks(ctx, model.Query{FeatureID: f.ID})
	if err != nil {
		return "", err
	}
	r.writeTaskTables(&b, tasks)

	if err := r.writeSections(ctx, &b, model.EntityFeature, f.ID); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderTask renders a task document.
func (r *Renderer) RenderTask(ctx context.Context, t *model.Task) (string, error) {
	fm := frontMatter{
		ID:         t.ID,
		Type:       "task",
		Title:      t.Title,
		Status:     string(t.Status),
		Priority:   t.Priority.Lower(),
		Complexity: t.Complexity,
		ProjectID:  t.ProjectID,
		FeatureID:  t.FeatureID,
		Tags:       tagList(t.Tags),
		Created:    isoTime(t.CreatedAt),
		Modified:   isoTime(t.ModifiedAt),
	}
	var b strings.Builder
	if err := writeFrontMatter(&b, fm); err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "# %s\n", t.Title)
	if t.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", t.Summary)
	}
	if err := r.writeSections(ctx, &b, model.EntityTask, t.ID); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeFrontMatter(b *strings.Builder, fm frontMatter) error {
	data, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshaling front matter: %w", err)
	}
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n\n")
	return nil
}

// tagList keeps the tags key present (as an empty list) even with no tags.
func tagList(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// writeSections appends each of the entity's sections as "## <title>"
// followed by its content rendered per content format.
func (r *Renderer) writeSections(ctx context.Context, b *strings.Builder, kind model.EntityType, id string) error {
	sections, err := r.store.ListSections(ctx, kind, id)
	if err != nil {
		return err
	}
	for _, sec := range sections {
		fmt.Fprintf(b, "\n## %s\n\n", sec.Title)
		b.WriteString(r.renderContent(sec))
		b.WriteString("\n")
	}
	return nil
}

// renderContent honours the section's content format. Markdown gets the
// header normalisation pass first and the nested-fence escape second;
// the order matters because the escaper changes fence markers the
// normaliser relies on to skip code blocks.
func (r *Renderer) renderContent(sec *model.Section) string {
	switch sec.ContentFormat {
	case model.FormatMarkdown:
		out := NormalizeHeaders(sec.Content, 2)
		return EscapeNestedMarkdownFences(out)
	case model.FormatJSON:
		return "```json\n" + sec.Content + "\n```"
	case model.FormatCode:
		lang := inferCodeLanguage(sec, r.DefaultCodeLang)
		return "```" + lang + "\n" + sec.Content + "\n```"
	default: // PLAIN_TEXT
		return sec.Content
	}
}

// statusRank orders rows inside a status table: active statuses first,
// blocking states later, everything else in between.
func statusRank(st model.Status) int {
	switch st {
	case "in-progress", "in-development":
		return 0
	case "testing":
		return 1
	case "pending", "planning", "draft", "backlog":
		return 2
	case "blocked", "on-hold":
		return 4
	default:
		return 3
	}
}

type tableRow struct {
	name     string
	status   model.Status
	priority model.Priority
}

func (r *Renderer) writeTaskTables(b *strings.Builder, tasks []*model.Task) {
	prog := r.wf.Snapshot().Progression(model.EntityTask)
	groups := map[string][]tableRow{}
	for _, t := range tasks {
		row := tableRow{name: t.Title, status: t.Status, priority: t.Priority}
		switch {
		case !prog.IsTerminal(t.Status):
			groups["Active"] = append(groups["Active"], row)
		case t.Status == "completed":
			groups["Completed"] = append(groups["Completed"], row)
		default:
			groups["Cancelled / Deferred"] = append(groups["Cancelled / Deferred"], row)
		}
	}
	writeStatusTables(b, "Tasks", []string{"Active", "Completed", "Cancelled / Deferred"}, groups)
}

func (r *Renderer) writeFeatureTables(b *strings.Builder, features []*model.Feature) {
	prog := r.wf.Snapshot().Progression(model.EntityFeature)
	groups := map[string][]tableRow{}
	for _, f := range features {
		row := tableRow{name: f.Name, status: f.Status, priority: f.Priority}
		switch {
		case !prog.IsTerminal(f.Status):
			groups["Active"] = append(groups["Active"], row)
		case f.Status == "completed":
			groups["Completed"] = append(groups["Completed"], row)
		default:
			groups["Archived"] = append(groups["Archived"], row)
		}
	}
	writeStatusTables(b, "Features", []string{"Active", "Completed", "Archived"}, groups)
}

func writeStatusTables(b *strings.Builder, heading string, order []string, groups map[string][]tableRow) {
	any := false
	for _, rows := range groups {
		if len(rows) > 0 {
			any = true
			break
		}
	}
	if !any {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", heading)
	for _, group := range order {
		rows := groups[group]
		if len(rows) == 0 {
			continue
		}
		sortRows(rows)
		fmt.Fprintf(b, "\n### %s\n\n", group)
		b.WriteString("| Name | Status | Priority |\n")
		b.WriteString("|------|--------|----------|\n")
		for _, row := range rows {
			fmt.Fprintf(b, "| %s | %s | %s |\n", row.name, row.status, row.priority.Lower())
		}
	}
}

func sortRows(rows []tableRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if statusRank(a.status) != statusRank(b.status) {
			return statusRank(a.status) < statusRank(b.status)
		}
		if a.priority.Rank() != b.priority.Rank() {
			return a.priority.Rank() < b.priority.Rank()
		}
		return a.name < b.name
	})
}
