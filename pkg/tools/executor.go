// Package tools provides the tool registry and execution layer agents use
// to query the catalog and act on the world.
//
// Invariants:
//   - Tool handler failures are returned as Result values, never panics.
//   - Parameters are validated against the tool's JSON Schema before the
//     handler runs.
//   - Handlers run under a bounded timeout.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mkarlsen/stagehand/pkg/llm"
)

// DefaultTimeout bounds a single tool handler invocation.
const DefaultTimeout = 10 * time.Second

// Parameter describes one input of a tool.
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Definition describes a tool's metadata and handler.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

// Result is the outcome of one tool execution. Failures are data: the
// Error field is populated and Success is false, so callers can feed the
// failure back to the model instead of aborting.
type Result struct {
	Success    bool        `json:"success"`
	Output     interface{} `json:"output,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// Content renders the result as a JSON string for a tool-result message.
func (r Result) Content() string {
	var payload interface{}
	if r.Success {
		payload = r.Output
	} else {
		payload = map[string]interface{}{"error": r.Error}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to encode tool result: %v"}`, err)
	}
	return string(data)
}

// Registry manages and executes tools.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
		timeout: DefaultTimeout,
		logger:  logger.With().Str("component", "tool_registry").Logger(),
	}
}

// SetTimeout overrides the per-invocation handler timeout.
func (r *Registry) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.timeout = d
	}
}

// Register adds a tool. Re-registering a name replaces the old definition.
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def)
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema

	r.logger.Info().Str("tool", def.Name).Msg("tool registered")
	return nil
}

// Get returns a tool definition by name, or nil.
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// LLMDefs renders the named tools as model-facing definitions. Unknown
// names are skipped.
func (r *Registry) LLMDefs(names []string) []llm.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDef, 0, len(names))
	for _, name := range names {
		def, ok := r.tools[name]
		if !ok {
			continue
		}
		defs = append(defs, llm.ToolDef{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schemaMap(*def),
		})
	}
	return defs
}

// Execute validates params against the tool's schema and runs its handler
// under the registry timeout. The returned Result never carries a Go error;
// failures are encoded in the Error field.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) Result {
	start := time.Now()

	r.mu.RLock()
	def, ok := r.tools[name]
	schema := r.schemas[name]
	timeout := r.timeout
	r.mu.RUnlock()

	if !ok {
		return Result{
			Success:    false,
			Error:      fmt.Sprintf("unknown tool: %s", name),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	if err := validateParams(schema, params); err != nil {
		r.logger.Warn().Str("tool", name).Err(err).Msg("parameter validation failed")
		return Result{
			Success:    false,
			Error:      fmt.Sprintf("parameter validation failed: %v", err),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", rec)}
			}
		}()
		output, err := def.Handler(timeoutCtx, params)
		done <- outcome{output: output, err: err}
	}()

	select {
	case out := <-done:
		duration := time.Since(start)
		if out.err != nil {
			r.logger.Error().Str("tool", name).Dur("duration", duration).Err(out.err).Msg("tool execution failed")
			return Result{
				Success:    false,
				Error:      out.err.Error(),
				DurationMs: duration.Milliseconds(),
			}
		}
		r.logger.Debug().Str("tool", name).Dur("duration", duration).Msg("tool execution completed")
		return Result{
			Success:    true,
			Output:     out.output,
			DurationMs: duration.Milliseconds(),
		}

	case <-timeoutCtx.Done():
		duration := time.Since(start)
		r.logger.Error().Str("tool", name).Dur("duration", duration).Msg("tool execution timeout")
		return Result{
			Success:    false,
			Error:      fmt.Sprintf("tool execution timeout after %v", timeout),
			DurationMs: duration.Milliseconds(),
		}
	}
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}
	return nil
}

// schemaMap builds the JSON Schema object for a tool's parameters.
func schemaMap(def Definition) map[string]interface{} {
	properties := make(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Default != nil {
			paramSchema["default"] = param.Default
		}
		properties[param.Name] = paramSchema
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func compileSchema(def Definition) (*gojsonschema.Schema, error) {
	loader := gojsonschema.NewGoLoader(schemaMap(def))
	return gojsonschema.NewSchema(loader)
}

func validateParams(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := ""
		for i, desc := range result.Errors() {
			if i > 0 {
				msgs += "; "
			}
			msgs += desc.String()
		}
		return fmt.Errorf("%s", msgs)
	}
	return nil
}
