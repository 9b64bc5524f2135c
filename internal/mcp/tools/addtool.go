package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// AddTool registers a tool with the server after checking that the zero value
// of Out passes the output schema the SDK infers, so a report or summary
// field that would serialize as null fails at startup rather than on the
// first call.
//
// Panics if the check fails.
func AddTool[In, Out any](srv *sdkmcp.Server, t *sdkmcp.Tool, h sdkmcp.ToolHandlerFor[In, Out]) {
	CheckOutputSchema[Out](t.Name)
	sdkmcp.AddTool(srv, t, h)
}

// CheckOutputSchema panics when T cannot round-trip through its inferred
// schema. Two shapes are caught:
//
//   - slices without omitempty/omitzero, which marshal as null while the
//     schema says "array";
//   - json.RawMessage anywhere in T, which marshals as the embedded JSON while
//     the schema says "array of integers". Reports must be decoded to any
//     first (see DecodeJSON).
//
// Untyped outputs and types the SDK itself cannot infer are left alone.
func CheckOutputSchema[T any](toolName string) {
	rt := reflect.TypeFor[T]()
	if rt == reflect.TypeFor[any]() {
		return
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	var raw []string
	collectRawMessages(rt, "", map[reflect.Type]bool{}, &raw)
	if len(raw) > 0 {
		panic(fmt.Sprintf(
			"AddTool %q: %s holds json.RawMessage at %s; declare the field as any and set it from DecodeJSON(body)",
			toolName, rt, strings.Join(raw, ", "),
		))
	}

	if err := validateZero(rt); err != nil {
		panic(fmt.Sprintf(
			"AddTool %q: zero value of %s does not match its schema: %v; add omitzero to slice fields or initialize them",
			toolName, rt, err,
		))
	}
}

// validateZero marshals the zero value of rt and validates it against the
// inferred schema. Inference or marshal failures return nil; the SDK reports
// those on registration.
func validateZero(rt reflect.Type) error {
	schema, err := jsonschema.ForType(rt, &jsonschema.ForOptions{})
	if err != nil {
		return nil
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil
	}

	data, err := json.Marshal(reflect.Zero(rt).Interface())
	if err != nil {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	if err := resolved.Validate(&doc); err != nil {
		return fmt.Errorf("%w (JSON: %s)", err, data)
	}
	return nil
}

var rawMessageType = reflect.TypeFor[json.RawMessage]()

// collectRawMessages appends the dotted path of every json.RawMessage reachable
// from t. seen guards against recursive types along the current path.
func collectRawMessages(t reflect.Type, path string, seen map[reflect.Type]bool, out *[]string) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == rawMessageType {
		*out = append(*out, path)
		return
	}
	if seen[t] {
		return
	}
	seen[t] = true
	defer delete(seen, t)

	join := func(part string) string {
		if path == "" {
			return part
		}
		return path + "." + part
	}

	switch t.Kind() {
	case reflect.Struct:
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() {
				collectRawMessages(f.Type, join(f.Name), seen, out)
			}
		}
	case reflect.Slice, reflect.Array:
		collectRawMessages(t.Elem(), join("[]"), seen, out)
	case reflect.Map:
		collectRawMessages(t.Elem(), join("[value]"), seen, out)
	}
}
