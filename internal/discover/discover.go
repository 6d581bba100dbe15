// Package discover loads declared entities and their artifacts from
// manifest files and hands them to the graph builder as a pre-resolved
// input list.
//
// Discovery is deliberately a collaborator, not part of the engine: the
// core never scans, reflects, or loads user code on its own. Entities
// are declared in CUE packages or YAML manifests under a single
// entities directory, and every returned list is sorted by entity name
// so build inputs are deterministic.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tsera-dev/tsera/internal/graph"
)

// manifestEntity is the on-disk shape of one declared entity, shared by
// the CUE and YAML decoders.
type manifestEntity struct {
	Name       string             `json:"name"       yaml:"name"`
	Definition map[string]any     `json:"definition" yaml:"definition"`
	Artifacts  []manifestArtifact `json:"artifacts"  yaml:"artifacts"`
}

type manifestArtifact struct {
	Kind      string         `json:"kind"      yaml:"kind"`
	Path      string         `json:"path"      yaml:"path"`
	Content   string         `json:"content"   yaml:"content"`
	DependsOn []string       `json:"dependsOn" yaml:"dependsOn"`
	Label     string         `json:"label"     yaml:"label"`
	Data      map[string]any `json:"data"      yaml:"data"`
}

// Load reads every entity declaration under dir: CUE files as one
// package, YAML manifests individually. Results are sorted by entity
// name; duplicate names across files are an error.
func Load(dir string) ([]graph.EntityInput, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("entities directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("entities path is not a directory: %s", dir)
	}

	var inputs []graph.EntityInput

	cueInputs, err := loadCUE(dir)
	if err != nil {
		return nil, err
	}
	inputs = append(inputs, cueInputs...)

	yamlInputs, err := loadYAML(dir)
	if err != nil {
		return nil, err
	}
	inputs = append(inputs, yamlInputs...)

	seen := make(map[string]string, len(inputs))
	for _, in := range inputs {
		if prev, dup := seen[in.Name]; dup {
			return nil, fmt.Errorf("entity %q declared in both %s and %s", in.Name, prev, in.SourcePath)
		}
		seen[in.Name] = in.SourcePath
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Name < inputs[j].Name })
	return inputs, nil
}

func (m manifestEntity) toInput(sourcePath string) (graph.EntityInput, error) {
	if m.Name == "" {
		return graph.EntityInput{}, fmt.Errorf("%s: entity has no name", sourcePath)
	}

	in := graph.EntityInput{
		Name:       m.Name,
		SourcePath: sourcePath,
		Definition: m.Definition,
	}
	for _, a := range m.Artifacts {
		if a.Path == "" {
			return graph.EntityInput{}, fmt.Errorf("%s: entity %q declares an artifact with no path", sourcePath, m.Name)
		}
		kind := graph.Kind(a.Kind)
		if kind == graph.KindEntity || !kind.Valid() {
			return graph.EntityInput{}, fmt.Errorf("%s: entity %q artifact %q has invalid kind %q", sourcePath, m.Name, a.Path, a.Kind)
		}
		in.Artifacts = append(in.Artifacts, graph.ArtifactInput{
			Kind:      kind,
			Path:      a.Path,
			Content:   []byte(a.Content),
			DependsOn: a.DependsOn,
			Label:     a.Label,
			Data:      a.Data,
		})
	}
	return in, nil
}

// findFiles returns dir-relative files with one of the given suffixes,
// sorted, skipping the state directory and hidden files.
func findFiles(dir string, suffixes ...string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(name, suffix) {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
