package workflow

import (
	"strings"

	"github.com/taskvault/taskvault/internal/model"
)

// Snapshot is an immutable, compiled view of the workflow configuration.
// Reloads publish a whole new Snapshot; a Snapshot is never mutated after
// Parse returns it.
type Snapshot struct {
	Rules ValidationRules
	kinds map[model.EntityType]*Progression
}

// Progression is the compiled per-entity-kind configuration.
type Progression struct {
	DefaultFlow string
	Flows       map[string]Flow
	Mappings    []FlowMapping
	emergency   map[model.Status]bool
	terminal    map[model.Status]bool
}

// Flow is a named, ordered status sequence with a precomputed position index.
type Flow struct {
	Name     string
	Sequence []model.Status
	position map[model.Status]int
}

// Position returns the index of st in the flow, or -1 when absent.
func (f Flow) Position(st model.Status) int {
	if i, ok := f.position[st]; ok {
		return i
	}
	return -1
}

// FlowMapping selects a flow for entities whose tag set contains all of Tags.
type FlowMapping struct {
	Tags []string
	Flow string
}

// Progression returns the compiled progression for an entity kind.
func (s *Snapshot) Progression(kind model.EntityType) *Progression {
	return s.kinds[kind]
}

// ActiveFlow selects the flow for an entity by iterating flow mappings
// top to bottom; the first mapping whose tag set is a subset of the
// entity's tags wins, else the default flow. The returned matchedTags are
// the mapping's tags, empty for the default flow.
func (p *Progression) ActiveFlow(entityTags []string) (Flow, []string) {
	for _, m := range p.Mappings {
		if subsetOf(m.Tags, entityTags) {
			return p.Flows[m.Flow], m.Tags
		}
	}
	return p.Flows[p.DefaultFlow], nil
}

// IsTerminal reports whether st is a terminal status for this kind.
func (p *Progression) IsTerminal(st model.Status) bool { return p.terminal[st] }

// IsEmergency reports whether st is reachable from any position.
func (p *Progression) IsEmergency(st model.Status) bool { return p.emergency[st] }

// TerminalStatuses returns the terminal set in no particular order.
func (p *Progression) TerminalStatuses() []model.Status {
	out := make([]model.Status, 0, len(p.terminal))
	for st := range p.terminal {
		out = append(out, st)
	}
	return out
}

// EmergencyTransitions returns the emergency set in no particular order.
func (p *Progression) EmergencyTransitions() []model.Status {
	out := make([]model.Status, 0, len(p.emergency))
	for st := range p.emergency {
		out = append(out, st)
	}
	return out
}

func subsetOf(want, have []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if strings.EqualFold(w, h) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
