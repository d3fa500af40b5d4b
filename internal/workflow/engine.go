package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/taskvault/taskvault/internal/model"
	"github.com/taskvault/taskvault/internal/storage"
)

// Transition failure classes.
var (
	ErrTerminal        = errors.New("status is terminal")
	ErrNotInFlow       = errors.New("status not in active flow")
	ErrBackwardBlocked = errors.New("backward transition not allowed")
	ErrSkipBlocked     = errors.New("sequential progression enforced")
	ErrPrerequisite    = errors.New("prerequisites not met")
)

// TransitionError carries the structured detail of a rejected transition.
type TransitionError struct {
	Kind     error // one of the sentinel errors above
	Current  model.Status
	Proposed model.Status
	Required model.Status // the skipped intermediate, for ErrSkipBlocked
	Blockers []string     // concrete blockers, for ErrPrerequisite
}

func (e *TransitionError) Error() string {
	switch e.Kind {
	case ErrSkipBlocked:
		return fmt.Sprintf("cannot skip from %q to %q: next status is %q", e.Current, e.Proposed, e.Required)
	case ErrPrerequisite:
		return fmt.Sprintf("cannot transition to %q: %d prerequisite(s) unmet", e.Proposed, len(e.Blockers))
	default:
		return fmt.Sprintf("cannot transition from %q to %q: %v", e.Current, e.Proposed, e.Kind)
	}
}

func (e *TransitionError) Unwrap() error { return e.Kind }

// Subject is the entity whose transition is being validated.
type Subject struct {
	Kind    model.EntityType
	ID      string
	Tags    []string
	Status  model.Status
	Summary string // used by the task completion gate
}

// Engine validates transitions against the current configuration snapshot
// and consults the store for prerequisite checks. The snapshot pointer is
// swapped atomically on reload; readers always see a complete config.
type Engine struct {
	store  storage.Store
	snap   atomic.Pointer[Snapshot]
	logger *slog.Logger
}

// NewEngine creates an engine over the given store and initial snapshot.
func NewEngine(store storage.Store, snap *Snapshot, logger *slog.Logger) *Engine {
	e := &Engine{store: store, logger: logger}
	e.snap.Store(snap)
	return e
}

// Snapshot returns the current immutable configuration.
func (e *Engine) Snapshot() *Snapshot { return e.snap.Load() }

// Reload atomically publishes a new configuration snapshot.
func (e *Engine) Reload(snap *Snapshot) {
	e.snap.Store(snap)
	e.logger.Info("workflow configuration reloaded")
}

// ValidateTransition checks whether subject may move to proposed.
// Returns nil when the transition is allowed, or a *TransitionError.
func (e *Engine) ValidateTransition(ctx context.Context, sub Subject, proposed model.Status) error {
	snap := e.Snapshot()
	prog := snap.Progression(sub.Kind)
	if prog == nil {
		return fmt.Errorf("no progression configured for %s", sub.Kind)
	}
	flow, _ := prog.ActiveFlow(sub.Tags)
	current := sub.Status

	fail := func(kind error) *TransitionError {
		return &TransitionError{Kind: kind, Current: current, Proposed: proposed}
	}

	// A terminal status is final: no transition out, whatever the target.
	if prog.IsTerminal(current) {
		return fail(ErrTerminal)
	}

	// Terminal targets skip positional checks but still gate on prerequisites.
	if prog.IsTerminal(proposed) {
		return e.checkPrerequisites(ctx, snap, sub, flow, proposed)
	}

	// Emergency targets are reachable from any position.
	if prog.IsEmergency(proposed) && snap.Rules.AllowEmergency {
		return nil
	}

	curPos := flow.Position(current)
	propPos := flow.Position(proposed)
	if curPos < 0 || propPos < 0 {
		return fail(ErrNotInFlow)
	}

	if propPos < curPos && !snap.Rules.AllowBackward {
		return fail(ErrBackwardBlocked)
	}
	if propPos > curPos+1 && snap.Rules.EnforceSequential {
		te := fail(ErrSkipBlocked)
		te.Required = flow.Sequence[curPos+1]
		return te
	}

	return e.checkPrerequisites(ctx, snap, sub, flow, proposed)
}

// checkPrerequisites evaluates the prerequisite predicate for (subject,
// proposed). Failures enumerate concrete blockers.
func (e *Engine) checkPrerequisites(ctx context.Context, snap *Snapshot, sub Subject, flow Flow, proposed model.Status) error {
	if !snap.Rules.ValidatePrerequisites {
		return nil
	}
	blockers, err := e.prerequisiteBlockers(ctx, snap, sub, proposed)
	if err != nil {
		return err
	}
	if len(blockers) > 0 {
		return &TransitionError{
			Kind:     ErrPrerequisite,
			Current:  sub.Status,
			Proposed: proposed,
			Blockers: blockers,
		}
	}
	return nil
}

// prerequisiteBlockers returns human-readable blockers, empty when the
// transition is clear.
func (e *Engine) prerequisiteBlockers(ctx context.Context, snap *Snapshot, sub Subject, proposed model.Status) ([]string, error) {
	var blockers []string

	switch sub.Kind {
	case model.EntityFeature:
		taskProg := snap.Progression(model.EntityTask)
		switch proposed {
		case "in-development":
			tasks, err := e.store.FindTasks(ctx, model.Query{FeatureID: sub.ID})
			if err != nil {
				return nil, err
			}
			if len(tasks) == 0 {
				blockers = append(blockers, "feature has no tasks; create at least one task first")
			}
		case "completed":
			tasks, err := e.store.FindTasks(ctx, model.Query{FeatureID: sub.ID})
			if err != nil {
				return nil, err
			}
			for _, t := range tasks {
				if !taskProg.IsTerminal(t.Status) {
					blockers = append(blockers,
						fmt.Sprintf("task %q is %s (must reach a terminal status)", t.Title, t.Status))
				}
			}
		}

	case model.EntityTask:
		prog := snap.Progression(model.EntityTask)
		// The completion gate applies when the target is a terminal status
		// reached through the flow (cancellations bypass it).
		isCompletion := prog.IsTerminal(proposed) && flowHas(prog, proposed)
		if isCompletion {
			if n := len(sub.Summary); n < 300 || n > 500 {
				blockers = append(blockers,
					fmt.Sprintf("summary must be 300-500 characters before completion (currently %d)", n))
			}
			open, err := e.openBlockers(ctx, snap, sub.ID)
			if err != nil {
				return nil, err
			}
			blockers = append(blockers, open...)
		}
	}

	return blockers, nil
}

// openBlockers lists incoming BLOCKS edges whose source task has not
// reached a terminal status.
func (e *Engine) openBlockers(ctx context.Context, snap *Snapshot, taskID string) ([]string, error) {
	deps, err := e.store.ListDependencies(ctx, taskID)
	if err != nil {
		return nil, err
	}
	prog := snap.Progression(model.EntityTask)

	var blockers []string
	for _, d := range deps {
		var blockerID string
		switch {
		case d.Type == model.DepBlocks && d.ToTaskID == taskID:
			blockerID = d.FromTaskID
		case d.Type == model.DepIsBlockedBy && d.FromTaskID == taskID:
			blockerID = d.ToTaskID
		default:
			continue
		}
		blocker, err := e.store.GetTask(ctx, blockerID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !prog.IsTerminal(blocker.Status) {
			blockers = append(blockers,
				fmt.Sprintf("blocked by task %q (%s)", blocker.Title, blocker.Status))
		}
	}
	return blockers, nil
}

func flowHas(p *Progression, st model.Status) bool {
	for _, f := range p.Flows {
		if f.Position(st) >= 0 {
			return true
		}
	}
	return false
}
