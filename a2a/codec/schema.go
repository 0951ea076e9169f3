package codec

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/a2aserver/a2a-core/a2a/types"
)

// schemaRegistry holds optional JSON Schemas used to validate incoming Data
// parts. Registration is keyed by an arbitrary caller-chosen name (typically
// a skill or context identifier); a Data part with no registered schema is
// accepted unvalidated, per spec's silence on Data part validation (section
// 3, "supplemental" note in SPEC_FULL.md).
type schemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

var defaultRegistry = &schemaRegistry{schemas: make(map[string]*jsonschema.Schema)}

// RegisterDataSchema compiles and registers a JSON Schema under name. It
// replaces any schema previously registered under the same name.
func RegisterDataSchema(name string, schema json.RawMessage) error {
	compiler := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return fmt.Errorf("parsing schema %q: %w", name, err)
	}
	resource := "mem://" + name
	if err := compiler.AddResource(resource, doc); err != nil {
		return fmt.Errorf("adding schema %q: %w", name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("compiling schema %q: %w", name, err)
	}
	defaultRegistry.mu.Lock()
	defaultRegistry.schemas[name] = compiled
	defaultRegistry.mu.Unlock()
	return nil
}

// UnregisterDataSchema removes a previously registered schema.
func UnregisterDataSchema(name string) {
	defaultRegistry.mu.Lock()
	delete(defaultRegistry.schemas, name)
	defaultRegistry.mu.Unlock()
}

// ValidateAgainst validates raw against the schema registered under name. It
// returns nil if no schema is registered under name (skip, not fail).
func ValidateAgainst(name string, raw json.RawMessage) error {
	defaultRegistry.mu.RLock()
	schema, ok := defaultRegistry.schemas[name]
	defaultRegistry.mu.RUnlock()
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing data part: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema %q: %w", name, err)
	}
	return nil
}

// ValidatePart validates p against the schema registered under schemaName.
// Only Data parts are schema-validated; Text and File parts always pass.
// schemaName is typically the task's context ID, so schemas are registered
// and looked up per conversation.
func ValidatePart(p types.Part, schemaName string) error {
	if p.Kind != types.PartKindData || p.Data == nil {
		return nil
	}
	return ValidateAgainst(schemaName, p.Data.Data)
}
