package discover

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tsera-dev/tsera/internal/graph"
)

// yamlManifest is the top-level shape of a *.tsera.yaml file. A file
// may declare one entity inline or several under "entities".
type yamlManifest struct {
	manifestEntity `yaml:",inline"`
	Entities       []manifestEntity `yaml:"entities"`
}

// loadYAML reads every *.tsera.yaml / *.tsera.yml manifest under dir.
func loadYAML(dir string) ([]graph.EntityInput, error) {
	files, err := findFiles(dir, ".tsera.yaml", ".tsera.yml")
	if err != nil {
		return nil, err
	}

	var inputs []graph.EntityInput
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}

		var m yamlManifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		entities := m.Entities
		if len(entities) == 0 {
			if m.Name == "" {
				return nil, fmt.Errorf("%s: manifest declares no entities", file)
			}
			entities = []manifestEntity{m.manifestEntity}
		}

		for _, ent := range entities {
			in, err := ent.toInput(file)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, in)
		}
	}
	return inputs, nil
}
