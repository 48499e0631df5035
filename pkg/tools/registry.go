package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Registry holds tool definitions and their compiled parameter schemas.
type Registry struct {
	defs    map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool definition and compiles its parameter schema.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	schemaDoc, err := json.Marshal(def.Schema())
	if err != nil {
		return fmt.Errorf("failed to marshal schema for %s: %w", def.Name, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaDoc))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	d := def
	r.defs[def.Name] = &d
	r.schemas[def.Name] = schema

	log.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Get returns a tool definition, or nil if unknown.
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[name]
}

// Validate checks a call's parameters against the tool's schema.
func (r *Registry) Validate(call Call) error {
	r.mu.RLock()
	schema, exists := r.schemas[call.Name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("unknown tool: %s", call.Name)
	}

	params := call.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("failed to validate parameters for %s: %w", call.Name, err)
	}
	if !result.Valid() {
		msgs := ""
		for _, desc := range result.Errors() {
			if msgs != "" {
				msgs += "; "
			}
			msgs += desc.String()
		}
		return fmt.Errorf("invalid parameters for %s: %s", call.Name, msgs)
	}

	return nil
}

// Descriptors returns the definitions visible under a policy, for prompting.
func (r *Registry) Descriptors(policy *Policy) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.defs))
	for name, def := range r.defs {
		if policy.Allows(name) {
			defs = append(defs, *def)
		}
	}
	// Map order is random; providers must see a stable tool list.
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
