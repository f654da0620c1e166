package graph

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/albertocavalcante/go-bzlshard/label"
)

// New constructs a Graph from root targets and target infos.
// Later infos with a duplicate ID replace earlier ones. The inputs are copied,
// so callers may reuse them.
func New(rootTargets []label.Label, infos []*TargetInfo) *Graph {
	g := &Graph{
		rootTargets: make(map[label.Label]struct{}, len(rootTargets)),
		targets:     make(map[label.Label]*TargetInfo, len(infos)),
	}
	for _, r := range rootTargets {
		g.rootTargets[r] = struct{}{}
	}
	for _, info := range infos {
		if info == nil {
			continue
		}
		g.targets[info.ID] = info.clone()
	}
	return g
}

// File is the on-disk description of a graph accepted by Load.
// JSON is accepted as well since it is a subset of YAML.
type File struct {
	Roots   []string       `yaml:"roots"`
	Targets []TargetRecord `yaml:"targets"`
}

// TargetRecord is the serialized form of a TargetInfo.
type TargetRecord struct {
	ID           string   `yaml:"id"`
	Kind         string   `yaml:"kind,omitempty"`
	Dependencies []string `yaml:"deps,omitempty"`
	Sources      []string `yaml:"srcs,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
}

// Load reads a graph file. extraRoots are added to the roots listed in the file.
func Load(r io.Reader, extraRoots ...label.Label) (*Graph, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode graph file: %w", err)
	}

	roots := append([]label.Label(nil), extraRoots...)
	for _, s := range f.Roots {
		l, err := label.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("root target: %w", err)
		}
		roots = append(roots, l)
	}

	infos := make([]*TargetInfo, 0, len(f.Targets))
	for i, rec := range f.Targets {
		info, err := rec.toTargetInfo()
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		infos = append(infos, info)
	}
	return New(roots, infos), nil
}

func (rec TargetRecord) toTargetInfo() (*TargetInfo, error) {
	id, err := label.Parse(rec.ID)
	if err != nil {
		return nil, err
	}
	info := &TargetInfo{ID: id, Kind: rec.Kind, Sources: rec.Sources, Tags: rec.Tags}
	for _, d := range rec.Dependencies {
		dep, err := label.Parse(d)
		if err != nil {
			return nil, fmt.Errorf("dependency of %s: %w", id, err)
		}
		info.Dependencies = append(info.Dependencies, dep)
	}
	return info, nil
}
