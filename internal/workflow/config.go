// Package workflow implements the configurable status workflow engine:
// loading the declarative flow configuration, validating status
// transitions, recommending next statuses, and emitting cascade events
// when a child's status change qualifies its parent for a transition.
package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/taskvault/taskvault/internal/model"
)

// ConfigFileName is the workflow declaration looked up in AGENT_CONFIG_DIR.
const ConfigFileName = "workflow-config.yaml"

// fileConfig mirrors the on-disk YAML shape.
type fileConfig struct {
	StatusProgression struct {
		Tasks    fileProgression `yaml:"tasks"`
		Features fileProgression `yaml:"features"`
		Projects fileProgression `yaml:"projects"`
	} `yaml:"status_progression"`
	StatusValidation ValidationRules `yaml:"status_validation"`
}

type fileProgression struct {
	DefaultFlow          string              `yaml:"default_flow"`
	Flows                map[string][]string `yaml:"flows"`
	FlowMappings         []fileFlowMapping   `yaml:"flow_mappings"`
	EmergencyTransitions []string            `yaml:"emergency_transitions"`
	TerminalStatuses     []string            `yaml:"terminal_statuses"`
}

type fileFlowMapping struct {
	Tags []string `yaml:"tags"`
	Flow string   `yaml:"flow"`
}

// ValidationRules are the global transition policy switches.
type ValidationRules struct {
	EnforceSequential     bool `yaml:"enforce_sequential"`
	AllowBackward         bool `yaml:"allow_backward"`
	AllowEmergency        bool `yaml:"allow_emergency"`
	ValidatePrerequisites bool `yaml:"validate_prerequisites"`
}

// Load reads the workflow configuration from dir. When no config file
// exists, the compiled-in default is returned so the server always starts.
func Load(dir string) (*Snapshot, error) {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading workflow config: %w", err)
	}
	return Parse(data)
}

// Parse compiles raw YAML into an immutable Snapshot.
func Parse(data []byte) (*Snapshot, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing workflow config: %w", err)
	}

	snap := &Snapshot{
		Rules: fc.StatusValidation,
		kinds: map[model.EntityType]*Progression{},
	}
	for kind, fp := range map[model.EntityType]fileProgression{
		model.EntityTask:    fc.StatusProgression.Tasks,
		model.EntityFeature: fc.StatusProgression.Features,
		model.EntityProject: fc.StatusProgression.Projects,
	} {
		prog, err := compileProgression(fp)
		if err != nil {
			return nil, fmt.Errorf("%s progression: %w", kind, err)
		}
		snap.kinds[kind] = prog
	}
	return snap, nil
}

func compileProgression(fp fileProgression) (*Progression, error) {
	if len(fp.Flows) == 0 {
		return nil, fmt.Errorf("no flows declared")
	}
	p := &Progression{
		DefaultFlow: fp.DefaultFlow,
		Flows:       map[string]Flow{},
		emergency:   map[model.Status]bool{},
		terminal:    map[model.Status]bool{},
	}
	for name, statuses := range fp.Flows {
		if len(statuses) == 0 {
			return nil, fmt.Errorf("flow %q is empty", name)
		}
		flow := Flow{Name: name, position: map[model.Status]int{}}
		for i, raw := range statuses {
			st := model.NormalizeStatus(raw)
			flow.Sequence = append(flow.Sequence, st)
			if _, dup := flow.position[st]; dup {
				return nil, fmt.Errorf("flow %q repeats status %q", name, st)
			}
			flow.position[st] = i
		}
		p.Flows[name] = flow
	}
	if p.DefaultFlow == "" {
		// A single flow is its own default.
		if len(p.Flows) == 1 {
			for name := range p.Flows {
				p.DefaultFlow = name
			}
		} else {
			return nil, fmt.Errorf("default_flow is required when multiple flows exist")
		}
	}
	if _, ok := p.Flows[p.DefaultFlow]; !ok {
		return nil, fmt.Errorf("default_flow %q is not a declared flow", p.DefaultFlow)
	}
	for _, m := range fp.FlowMappings {
		if _, ok := p.Flows[m.Flow]; !ok {
			return nil, fmt.Errorf("flow mapping targets unknown flow %q", m.Flow)
		}
		p.Mappings = append(p.Mappings, FlowMapping{Tags: m.Tags, Flow: m.Flow})
	}
	for _, raw := range fp.EmergencyTransitions {
		p.emergency[model.NormalizeStatus(raw)] = true
	}
	for _, raw := range fp.TerminalStatuses {
		p.terminal[model.NormalizeStatus(raw)] = true
	}
	return p, nil
}

// defaultConfigYAML is the compiled-in fallback used when AGENT_CONFIG_DIR
// holds no workflow-config.yaml.
const defaultConfigYAML = `
status_progression:
  tasks:
    default_flow: standard_development
    flows:
      standard_development: [pending, in-progress, testing, completed]
      bug_fix_flow: [pending, in-progress, testing, completed]
    flow_mappings:
      - tags: [bug]
        flow: bug_fix_flow
    emergency_transitions: [blocked, on-hold, cancelled]
    terminal_statuses: [completed, cancelled]
  features:
    default_flow: standard
    flows:
      standard: [planning, in-development, testing, completed]
    emergency_transitions: [on-hold, cancelled]
    terminal_statuses: [completed, cancelled, archived]
  projects:
    default_flow: standard
    flows:
      standard: [planning, in-development, completed]
    emergency_transitions: [on-hold, cancelled]
    terminal_statuses: [completed, cancelled, archived]
status_validation:
  enforce_sequential: true
  allow_backward: false
  allow_emergency: true
  validate_prerequisites: true
`

// DefaultSnapshot returns the compiled-in default workflow configuration.
func DefaultSnapshot() *Snapshot {
	snap, err := Parse([]byte(defaultConfigYAML))
	if err != nil {
		panic(fmt.Sprintf("default workflow config invalid: %v", err))
	}
	return snap
}
