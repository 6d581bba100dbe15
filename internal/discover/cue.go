package discover

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/tsera-dev/tsera/internal/graph"
)

// loadCUE loads every CUE file under dir as one instance and extracts
// the entities declared under the top-level "entity" struct:
//
//	entity: User: {
//	    definition: fields: {id: "uuid", email: "string"}
//	    artifacts: [{kind: "schema", path: "user.schema.ts", content: "..."}]
//	}
//
// The struct label is the entity name; a declaration may repeat it in a
// "name" field, which must then agree with the label.
func loadCUE(dir string) ([]graph.EntityInput, error) {
	cueFiles, err := findFiles(dir, ".cue")
	if err != nil {
		return nil, err
	}
	if len(cueFiles) == 0 {
		return nil, nil
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	entityVal := value.LookupPath(cue.ParsePath("entity"))
	if !entityVal.Exists() {
		return nil, nil
	}

	iter, err := entityVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}

	var inputs []graph.EntityInput
	for iter.Next() {
		name := iter.Label()

		var m manifestEntity
		if err := iter.Value().Decode(&m); err != nil {
			return nil, fmt.Errorf("entity.%s: %w", name, err)
		}
		if m.Name == "" {
			m.Name = name
		} else if m.Name != name {
			return nil, fmt.Errorf("entity.%s: name field %q contradicts its label", name, m.Name)
		}

		source := dir
		if pos := iter.Value().Pos(); pos.IsValid() {
			source = pos.Filename()
		}

		in, err := m.toInput(source)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
