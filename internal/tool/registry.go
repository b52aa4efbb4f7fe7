package tool

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry maps tool names to registered tools. Registration happens once
// at process initialization; after that the table is read-only and safe for
// unsynchronized concurrent lookups across runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are a fatal configuration error.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	return nil
}

// Get returns the tool with the given name and whether it exists.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions returns the oracle-facing contract for every registered tool,
// sorted by name. Schemas are generated from the same Param declarations
// ValidateArgs enforces.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for name, t := range r.tools {
		defs = append(defs, Definition{
			Name:        name,
			Description: t.Description(),
			Schema:      SchemaFor(t.Params()),
		})
	}
	slices.SortFunc(defs, func(a, b Definition) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return defs
}

// ValidateArgs checks raw arguments against the named tool's parameter
// schema. It is also handed to the guardrail schema check, keeping the
// dispatcher and the pipeline in lockstep.
func (r *Registry) ValidateArgs(name string, args json.RawMessage) error {
	t, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	return validateArgs(t.Params(), args)
}

// SchemaFor generates a JSON Schema object from a parameter declaration.
func SchemaFor(params []Param) json.RawMessage {
	properties := make(map[string]any, len(params))
	var required []string

	for _, p := range params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.MinLen > 0 {
			prop["minLength"] = p.MinLen
		}
		if p.MaxLen > 0 {
			prop["maxLength"] = p.MaxLen
		}
		if p.Min != nil {
			prop["minimum"] = *p.Min
		}
		if p.Max != nil {
			prop["maximum"] = *p.Max
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	slices.Sort(required)

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		// Schema inputs are static declarations; marshal cannot fail on them.
		panic(fmt.Sprintf("tool: marshal schema: %v", err))
	}
	return raw
}

// validateArgs enforces the typed field list against raw JSON arguments:
// required fields present, no undeclared fields, and per-field type and
// range constraints.
func validateArgs(params []Param, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	byName := make(map[string]Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
		if _, present := fields[p.Name]; p.Required && !present {
			return fmt.Errorf("missing required parameter %q", p.Name)
		}
	}

	for name, raw := range fields {
		p, declared := byName[name]
		if !declared {
			return fmt.Errorf("undeclared parameter %q", name)
		}
		if err := validateField(p, raw); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return nil
}

func validateField(p Param, raw json.RawMessage) error {
	switch p.Type {
	case TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("expected string")
		}
		if p.MinLen > 0 && len(s) < p.MinLen {
			return fmt.Errorf("shorter than %d characters", p.MinLen)
		}
		if p.MaxLen > 0 && len(s) > p.MaxLen {
			return fmt.Errorf("longer than %d characters", p.MaxLen)
		}
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, s) {
			return fmt.Errorf("value %q not in %v", s, p.Enum)
		}

	case TypeInteger:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("expected integer")
		}
		return checkRange(float64(n), p)

	case TypeNumber:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("expected number")
		}
		return checkRange(f, p)

	case TypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("expected boolean")
		}

	default:
		return fmt.Errorf("unsupported parameter type %q", p.Type)
	}
	return nil
}

func checkRange(v float64, p Param) error {
	if p.Min != nil && v < *p.Min {
		return fmt.Errorf("below minimum %v", *p.Min)
	}
	if p.Max != nil && v > *p.Max {
		return fmt.Errorf("above maximum %v", *p.Max)
	}
	return nil
}
