// Package scenario drives a heap of objects and their weak references from
// scripted steps, for the command line tool and for tests.
//
// A scenario file is YAML:
//
//	name: teardown order
//	steps:
//	  - new y
//	  - new q1 func
//	  - proxy p1 y q1
//	  - decref y
//	expect:
//	  - callback q1 alive=false
//
// Each step is one command line, the same syntax the REPL accepts.
package scenario

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// Scenario is a scripted sequence of commands and the trace it must produce.
type Scenario struct {
	Name   string   `yaml:"name"`
	Steps  []string `yaml:"steps"`
	Expect []string `yaml:"expect,omitempty"`
}

// File is a scenario file, which holds either one scenario or a list.
type File struct {
	Scenario  `yaml:",inline"`
	Scenarios []Scenario `yaml:"scenarios,omitempty"`
}

// Load parses a scenario file.
func Load(r io.Reader) ([]Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	out := f.Scenarios
	if len(f.Steps) > 0 || f.Name != "" {
		out = append([]Scenario{f.Scenario}, out...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parsing scenario: no steps")
	}
	for i, s := range out {
		for j, step := range s.Steps {
			if _, _, err := ParseCommand(step); err != nil {
				return nil, fmt.Errorf("scenario %q step %d: %w", s.label(i), j+1, err)
			}
		}
	}
	return out, nil
}

func (s *Scenario) label(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("#%d", i+1)
}

// Marshal renders s as YAML.
func (s *Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Run executes every step of s against r and returns the combined trace.
// Execution stops at the first step that cannot be carried out.
func (r *Runner) Run(s *Scenario) ([]string, error) {
	var trace []string
	for i, step := range s.Steps {
		cmd, ok, err := ParseCommand(step)
		if err != nil {
			return trace, fmt.Errorf("step %d: %w", i+1, err)
		}
		if !ok {
			continue
		}
		lines, err := r.Exec(cmd)
		trace = append(trace, lines...)
		if err != nil {
			return trace, fmt.Errorf("step %d (%s): %w", i+1, step, err)
		}
	}
	return trace, nil
}
