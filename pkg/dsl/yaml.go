package dsl

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DeferPrefix marks an action reference as deferred in workflow files.
const DeferPrefix = "defer:"

// File is the on-disk form of a workflow.
type File struct {
	Type        string              `yaml:"type"`
	Initial     string              `yaml:"initial,omitempty"`
	States      []string            `yaml:"states"`
	Groups      map[string][]string `yaml:"groups,omitempty"`
	Transitions []TransitionSpec    `yaml:"transitions"`
	Subflows    []SubflowSpec       `yaml:"subflows,omitempty"`
}

type TransitionSpec struct {
	Key  string `yaml:"key"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
	// Guards and Actions accept names or {name, defer} mappings.
	Guards  []any `yaml:"guards,omitempty"`
	Actions []any `yaml:"actions,omitempty"`
}

type SubflowSpec struct {
	Key      string            `yaml:"key"`
	State    string            `yaml:"state"`
	Workflow string            `yaml:"workflow"`
	Start    string            `yaml:"start"`
	Exits    map[string]string `yaml:"exits"`
}

// refSpec is the mapping form of a guard or action entry.
type refSpec struct {
	Name  string `mapstructure:"name"`
	Defer bool   `mapstructure:"defer"`
}

// Parse reads a workflow file into a Builder.
func Parse(data []byte) (*Builder, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("workflow file has no type")
	}

	b := New(f.Type)
	for _, s := range f.States {
		b.States(domain.StateID(s))
	}
	if f.Initial != "" {
		b.Initial(domain.StateID(f.Initial))
	}

	for _, group := range slices.Sorted(maps.Keys(f.Groups)) {
		gb := b.Group(domain.StateID(group))
		for _, child := range f.Groups[group] {
			gb.Children(domain.StateID(child))
		}
	}

	for _, ts := range f.Transitions {
		tb := b.Transition(ts.Key).From(domain.StateID(ts.From)).To(domain.StateID(ts.To))
		for _, raw := range ts.Guards {
			ref, err := decodeRef(raw)
			if err != nil {
				return nil, fmt.Errorf("transition %s guard: %w", ts.Key, err)
			}
			if ref.Defer {
				return nil, fmt.Errorf("transition %s: guard %s cannot be deferred", ts.Key, ref.Name)
			}
			tb.When(ref.Name)
		}
		for _, raw := range ts.Actions {
			ref, err := decodeRef(raw)
			if err != nil {
				return nil, fmt.Errorf("transition %s action: %w", ts.Key, err)
			}
			if ref.Defer {
				tb.Later(ref.Name)
			} else {
				tb.Then(ref.Name)
			}
		}
	}

	for _, ss := range f.Subflows {
		sb := b.Subflow(ss.Key).Bind(domain.StateID(ss.State)).To(ss.Workflow).Start(ss.Start)
		for exit, outer := range ss.Exits {
			sb.Exit(domain.StateID(exit), outer)
		}
	}
	return b, nil
}

func decodeRef(raw any) (refSpec, error) {
	var ref refSpec
	switch v := raw.(type) {
	case string:
		ref.Name = v
		if name, ok := strings.CutPrefix(v, DeferPrefix); ok {
			ref = refSpec{Name: name, Defer: true}
		}
	case map[string]any:
		if err := mapstructure.Decode(v, &ref); err != nil {
			return ref, err
		}
	default:
		return ref, fmt.Errorf("unsupported reference %v", raw)
	}
	if ref.Name == "" {
		return ref, fmt.Errorf("reference without name")
	}
	return ref, nil
}

// LoadFile reads and parses a workflow file.
func LoadFile(path string) (*Builder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// LoadFiles parses every file into a registry of workflows.
func LoadFiles(paths ...string) (*definition.Registry, error) {
	registry := definition.NewRegistry()
	for _, p := range paths {
		b, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(b.Workflow()); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return registry, nil
}

// Marshal renders a builder back into the file format. Inline guards and
// actions have no file form and are written by label.
func (b *Builder) Marshal() ([]byte, error) {
	s, err := b.Schema()
	if err != nil {
		return nil, err
	}
	f := File{Type: b.typ, Initial: string(s.States.Initial)}
	for _, st := range s.States.States {
		f.States = append(f.States, string(st))
	}
	for _, g := range s.Groups {
		if f.Groups == nil {
			f.Groups = make(map[string][]string)
		}
		for _, c := range g.Children {
			f.Groups[string(g.State)] = append(f.Groups[string(g.State)], string(c))
		}
	}
	for _, t := range s.Transitions {
		ts := TransitionSpec{Key: t.Key, From: string(t.From), To: string(t.To)}
		for _, g := range t.Guards {
			ts.Guards = append(ts.Guards, g.Label())
		}
		for _, a := range t.Actions {
			label := a.Label()
			if a.IsDeferred() {
				label = DeferPrefix + label
			}
			ts.Actions = append(ts.Actions, label)
		}
		f.Transitions = append(f.Transitions, ts)
	}
	for _, sub := range s.Subflows {
		ss := SubflowSpec{Key: sub.Key, State: string(sub.State), Workflow: sub.Workflow, Start: sub.Start, Exits: map[string]string{}}
		for exit, outer := range sub.Exits {
			ss.Exits[string(exit)] = outer
		}
		f.Subflows = append(f.Subflows, ss)
	}
	return yaml.Marshal(f)
}
