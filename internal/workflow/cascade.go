package workflow

import (
	"context"
	"fmt"

	"github.com/taskvault/taskvault/internal/model"
)

// CascadeEvent is a structured suggestion emitted alongside a successful
// status write: the named parent entity now qualifies for its own
// transition. Automatic is a hint; consumers decide whether to apply it.
type CascadeEvent struct {
	Event           string       `json:"event"`
	TargetType      string       `json:"targetType"`
	TargetID        string       `json:"targetId"`
	CurrentStatus   model.Status `json:"currentStatus"`
	SuggestedStatus model.Status `json:"suggestedStatus"`
	Automatic       bool         `json:"automatic"`
	Reason          string       `json:"reason"`
	Flow            string       `json:"flow"`
}

// TaskCascades inspects a completed task status write and suggests parent
// feature transitions.
func (e *Engine) TaskCascades(ctx context.Context, task *model.Task, previous model.Status) ([]CascadeEvent, error) {
	if task.FeatureID == "" {
		return nil, nil
	}
	snap := e.Snapshot()
	featProg := snap.Progression(model.EntityFeature)
	taskProg := snap.Progression(model.EntityTask)

	feature, err := e.store.GetFeature(ctx, task.FeatureID)
	if err != nil {
		return nil, err
	}
	flow, _ := featProg.ActiveFlow(feature.Tags)

	var events []CascadeEvent

	// First task leaving the backlog suggests starting the feature.
	if isBacklog(previous) && !isBacklog(task.Status) {
		if feature.Status == "planning" || feature.Status == "draft" {
			events = append(events, CascadeEvent{
				Event:           "task_started",
				TargetType:      "feature",
				TargetID:        feature.ID,
				CurrentStatus:   feature.Status,
				SuggestedStatus: "in-development",
				Automatic:       false,
				Reason:          fmt.Sprintf("task %q moved to %s", task.Title, task.Status),
				Flow:            flow.Name,
			})
		}
	}

	// Every task terminal suggests advancing the feature.
	if taskProg.IsTerminal(task.Status) && !featProg.IsTerminal(feature.Status) {
		siblings, err := e.store.FindTasks(ctx, model.Query{FeatureID: feature.ID})
		if err != nil {
			return nil, err
		}
		allDone := true
		for _, sib := range siblings {
			if sib.ID != task.ID && !taskProg.IsTerminal(sib.Status) {
				allDone = false
				break
			}
		}
		if allDone {
			suggested := model.Status("completed")
			if flow.Position("testing") >= 0 {
				suggested = "testing"
			}
			events = append(events, CascadeEvent{
				Event:           "all_tasks_completed",
				TargetType:      "feature",
				TargetID:        feature.ID,
				CurrentStatus:   feature.Status,
				SuggestedStatus: suggested,
				Automatic:       false,
				Reason:          "all tasks of the feature reached a terminal status",
				Flow:            flow.Name,
			})
		}
	}

	return events, nil
}

// FeatureCascades inspects a feature status write and suggests project
// transitions when every other feature of the project is already terminal.
func (e *Engine) FeatureCascades(ctx context.Context, feature *model.Feature) ([]CascadeEvent, error) {
	if feature.ProjectID == "" {
		return nil, nil
	}
	snap := e.Snapshot()
	featProg := snap.Progression(model.EntityFeature)
	projProg := snap.Progression(model.EntityProject)

	// A feature entering testing or a terminal status marks its work done.
	if feature.Status != "testing" && !featProg.IsTerminal(feature.Status) {
		return nil, nil
	}

	project, err := e.store.GetProject(ctx, feature.ProjectID)
	if err != nil {
		return nil, err
	}
	if projProg.IsTerminal(project.Status) {
		return nil, nil
	}

	siblings, err := e.store.FindFeatures(ctx, model.Query{ProjectID: project.ID})
	if err != nil {
		return nil, err
	}
	for _, sib := range siblings {
		if sib.ID != feature.ID && !featProg.IsTerminal(sib.Status) {
			return nil, nil
		}
	}

	flow, _ := projProg.ActiveFlow(project.Tags)
	return []CascadeEvent{{
		Event:           "tests_passed",
		TargetType:      "project",
		TargetID:        project.ID,
		CurrentStatus:   project.Status,
		SuggestedStatus: "completed",
		Automatic:       false,
		Reason:          "all features of the project have finished their work",
		Flow:            flow.Name,
	}}, nil
}

func isBacklog(st model.Status) bool {
	return st == "" || st == "backlog" || st == "pending"
}
