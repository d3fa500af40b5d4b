package workflow

import (
	"context"
	"fmt"

	"github.com/taskvault/taskvault/internal/model"
)

// Recommendation kinds.
const (
	RecommendationReady    = "ready"
	RecommendationBlocked  = "blocked"
	RecommendationTerminal = "terminal"
)

// Recommendation is the result of NextStatus: what the entity should move
// to next, or why it cannot move.
type Recommendation struct {
	Kind              string         `json:"kind"`
	CurrentStatus     model.Status   `json:"currentStatus"`
	RecommendedStatus model.Status   `json:"recommendedStatus,omitempty"`
	TerminalStatus    model.Status   `json:"terminalStatus,omitempty"`
	FlowSequence      []model.Status `json:"flowSequence"`
	Position          int            `json:"position"`
	ActiveFlow        string         `json:"activeFlow"`
	MatchedTags       []string       `json:"matchedTags,omitempty"`
	Blockers          []string       `json:"blockers,omitempty"`
	Reason            string         `json:"reason"`
}

// NextStatus computes the pure next-status recommendation for a subject:
// Ready with the recommended status, Blocked with concrete blockers, or
// Terminal when no further transition exists.
func (e *Engine) NextStatus(ctx context.Context, sub Subject) (*Recommendation, error) {
	snap := e.Snapshot()
	prog := snap.Progression(sub.Kind)
	if prog == nil {
		return nil, fmt.Errorf("no progression configured for %s", sub.Kind)
	}
	flow, matched := prog.ActiveFlow(sub.Tags)
	pos := flow.Position(sub.Status)

	rec := &Recommendation{
		CurrentStatus: sub.Status,
		FlowSequence:  flow.Sequence,
		Position:      pos,
		ActiveFlow:    flow.Name,
		MatchedTags:   matched,
	}

	if prog.IsTerminal(sub.Status) {
		rec.Kind = RecommendationTerminal
		rec.TerminalStatus = sub.Status
		rec.Reason = fmt.Sprintf("%q is a terminal status; no further transitions", sub.Status)
		return rec, nil
	}

	if pos < 0 {
		rec.Kind = RecommendationBlocked
		rec.Blockers = []string{
			fmt.Sprintf("current status %q is not part of flow %q", sub.Status, flow.Name),
		}
		rec.Reason = "status outside the active flow"
		return rec, nil
	}

	if pos == len(flow.Sequence)-1 {
		rec.Kind = RecommendationTerminal
		rec.TerminalStatus = sub.Status
		rec.Reason = fmt.Sprintf("%q is the last status of flow %q", sub.Status, flow.Name)
		return rec, nil
	}

	next := flow.Sequence[pos+1]
	if snap.Rules.ValidatePrerequisites {
		blockers, err := e.prerequisiteBlockers(ctx, snap, sub, next)
		if err != nil {
			return nil, err
		}
		if len(blockers) > 0 {
			rec.Kind = RecommendationBlocked
			rec.Blockers = blockers
			rec.Reason = fmt.Sprintf("prerequisites for %q are not met", next)
			return rec, nil
		}
	}

	rec.Kind = RecommendationReady
	rec.RecommendedStatus = next
	if len(matched) > 0 {
		rec.Reason = fmt.Sprintf("next status in flow %q (selected by tags)", flow.Name)
	} else {
		rec.Reason = fmt.Sprintf("next status in flow %q", flow.Name)
	}
	return rec, nil
}
