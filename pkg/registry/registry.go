// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed activities.json
var embedded []byte

var (
	defaultOnce sync.Once
	defaultReg  *ActivityRegistry
	defaultErr  error
)

// Default returns the registry compiled into the binary.
func Default() (*ActivityRegistry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = parse(embedded)
	})
	return defaultReg, defaultErr
}

// MustDefault is Default for package-level initialisation; it panics if the
// embedded registry is broken.
func MustDefault() *ActivityRegistry {
	reg, err := Default()
	if err != nil {
		panic(err)
	}
	return reg
}

// LoadRegistry reads a registry file, for overriding the embedded one.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks ids are unique and every input schema compiles.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if a.ID == "" || a.TaskType == "" {
			return fmt.Errorf("activity %q: id and taskType are required", a.ID)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("duplicate taskType %q", a.TaskType)
		}
		seen[a.TaskType] = true

		if a.InputSchema != nil {
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema)); err != nil {
				return fmt.Errorf("activity %q: invalid input schema: %w", a.ID, err)
			}
		}
	}
	return nil
}

// Get returns the activity with the given task type.
func (r *ActivityRegistry) Get(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// InputSchema returns the input schema for taskType, or nil.
func (r *ActivityRegistry) InputSchema(taskType string) map[string]interface{} {
	if a, ok := r.Get(taskType); ok {
		return a.InputSchema
	}
	return nil
}
