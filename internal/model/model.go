// Package model defines the TaskVault entity types shared by the storage
// layer, the workflow engine and the tool surface. Statuses and priorities
// are parsed at the edges and kept typed internally; they render back to
// kebab-case only at the response boundary.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which kind of entity a Section or Template targets.
type EntityType string

const (
	EntityProject  EntityType = "PROJECT"
	EntityFeature  EntityType = "FEATURE"
	EntityTask     EntityType = "TASK"
	EntityTemplate EntityType = "TEMPLATE"
)

// ParseEntityType parses a case-insensitive entity type name.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PROJECT":
		return EntityProject, nil
	case "FEATURE":
		return EntityFeature, nil
	case "TASK":
		return EntityTask, nil
	case "TEMPLATE":
		return EntityTemplate, nil
	}
	return "", fmt.Errorf("invalid entity type %q", s)
}

// Priority orders work within a batch and within status tables.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ParsePriority parses a case-insensitive priority name.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH":
		return PriorityHigh, nil
	case "MEDIUM":
		return PriorityMedium, nil
	case "LOW":
		return PriorityLow, nil
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

// Rank returns a sortable weight, highest priority first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Lower renders the priority for responses and front-matter.
func (p Priority) Lower() string { return strings.ToLower(string(p)) }

// Status is a workflow status value in canonical kebab-case form.
// The set of valid values is defined by the workflow configuration,
// not by this package.
type Status string

// NormalizeStatus canonicalizes a status string: trimmed, lower-cased,
// spaces and underscores collapsed to hyphens.
func NormalizeStatus(s string) Status {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.Join(strings.Fields(t), "-")
	return Status(t)
}

// ContentFormat controls how a Section body is rendered to Markdown.
type ContentFormat string

const (
	FormatMarkdown  ContentFormat = "MARKDOWN"
	FormatPlainText ContentFormat = "PLAIN_TEXT"
	FormatJSON      ContentFormat = "JSON"
	FormatCode      ContentFormat = "CODE"
)

// ParseContentFormat parses a case-insensitive content format name.
func ParseContentFormat(s string) (ContentFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MARKDOWN":
		return FormatMarkdown, nil
	case "PLAIN_TEXT", "PLAINTEXT":
		return FormatPlainText, nil
	case "JSON":
		return FormatJSON, nil
	case "CODE":
		return FormatCode, nil
	}
	return "", fmt.Errorf("invalid content format %q", s)
}

// DependencyType is the directed relation between two tasks.
type DependencyType string

const (
	DepBlocks      DependencyType = "BLOCKS"
	DepIsBlockedBy DependencyType = "IS_BLOCKED_BY"
	DepRelatesTo   DependencyType = "RELATES_TO"
)

// ParseDependencyType parses a case-insensitive dependency type name.
func ParseDependencyType(s string) (DependencyType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BLOCKS":
		return DepBlocks, nil
	case "IS_BLOCKED_BY", "ISBLOCKEDBY":
		return DepIsBlockedBy, nil
	case "RELATES_TO", "RELATESTO":
		return DepRelatesTo, nil
	}
	return "", fmt.Errorf("invalid dependency type %q", s)
}

// NewID returns a fresh 128-bit entity identifier.
func NewID() string { return uuid.NewString() }

// ValidateID checks that s is a well-formed entity identifier.
func ValidateID(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	return nil
}

// Project is the root of a containment tree.
type Project struct {
	ID          string
	Name        string
	Summary     string
	Description string
	Status      Status
	Tags        []string
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// Feature groups tasks under an optional project.
type Feature struct {
	ID          string
	Name        string
	Summary     string
	Description string
	Status      Status
	Priority    Priority
	ProjectID   string // empty means unassigned
	Tags        []string
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// Task is the unit of work. FeatureID and ProjectID are both optional;
// a task with a feature but no project inherits the feature's project.
type Task struct {
	ID          string
	Title       string
	Summary     string
	Description string
	Status      Status
	Priority    Priority
	Complexity  int // 1-10
	FeatureID   string
	ProjectID   string
	Tags        []string
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// Section is an ordered, titled content block attached to an entity.
type Section struct {
	ID               string
	EntityType       EntityType
	EntityID         string
	Title            string
	UsageDescription string
	Content          string
	ContentFormat    ContentFormat
	Ordinal          int
	Tags             []string
	CreatedAt        time.Time
	ModifiedAt       time.Time
}

// Template is a reusable set of section prototypes for one entity type.
// Built-in templates are restored on startup and are immutable through
// the normal write paths.
type Template struct {
	ID               string
	Name             string
	Description      string
	TargetEntityType EntityType
	IsBuiltIn        bool
	IsEnabled        bool
	Tags             []string
	CreatedAt        time.Time
	ModifiedAt       time.Time
}

// TemplateSection is a section prototype owned by a template.
type TemplateSection struct {
	ID               string
	TemplateID       string
	Title            string
	UsageDescription string
	Content          string
	ContentFormat    ContentFormat
	Ordinal          int
	IsRequired       bool
	Tags             []string
}

// Dependency is a directed edge between two tasks.
type Dependency struct {
	ID         string
	FromTaskID string
	ToTaskID   string
	Type       DependencyType
	CreatedAt  time.Time
}

// HasTag reports whether tags contains tag, case-insensitively.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// NormalizeTags trims and deduplicates tags, preserving first-seen casing
// and order. Matching is case-insensitive.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
