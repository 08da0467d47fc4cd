package functiontool

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// parametersOf reflects the Args struct into the registry's parameter tree.
//
// Supported tags:
//   - json:"name" - parameter name
//   - json:",omitempty" - optional parameter
//   - jsonschema:"required" - explicitly mark as required
//   - jsonschema:"description=..." - parameter description
//   - jsonschema:"default=..." - default value
//   - jsonschema:"enum=val1|val2" - allowed values
func parametersOf[T any]() (params []*tool.Parameter, err error) {
	t := reflect.TypeOf(*new(T))
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("argument type must be a struct, got %v", t)
	}
	// a fieldless Args struct means the tool takes no parameters
	if t.NumField() == 0 {
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			params, err = nil, fmt.Errorf("cannot reflect argument type %v: %v", t, r)
		}
	}()

	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	// expanded-struct lookup is keyed by type name and nil-derefs on
	// nameless types (inline struct literals); those reflect inline instead
	reflector.ExpandedStruct = t.Name() != ""

	schema := reflector.Reflect(new(T))

	schemaMap, err := schemaToMap(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema to map: %w", err)
	}

	return ParametersFromSchema(schemaMap)
}

// schemaToMap converts a jsonschema.Schema to map[string]any through a JSON
// round trip so ordered-map internals become plain maps.
func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	delete(result, "$schema")
	delete(result, "$id")
	return result, nil
}

// ParametersFromSchema converts a JSON-Schema object into the registry's
// parameter tree. Only the subset the reflector emits is handled: type,
// description, default, enum, required, properties, items.
func ParametersFromSchema(schema map[string]any) ([]*tool.Parameter, error) {
	if schema == nil {
		return nil, nil
	}
	if t, _ := schema["type"].(string); t != "" && t != "object" {
		return nil, fmt.Errorf("argument schema must be an object, got %s", t)
	}

	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil, nil
	}

	required := make(map[string]bool)
	if reqList, ok := schema["required"].([]any); ok {
		for _, r := range reqList {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	} else if reqList, ok := schema["required"].([]string); ok {
		for _, name := range reqList {
			required[name] = true
		}
	}

	// jsonschema preserves declaration order in propertyOrder when present;
	// the reflector we configure does not emit it, so names sort through the
	// map. Order does not matter to callers beyond required-first rendering.
	params := make([]*tool.Parameter, 0, len(props))
	for name, raw := range props {
		propSchema, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("property '%s' has a malformed schema", name)
		}
		p, err := parameterFromSchema(name, propSchema)
		if err != nil {
			return nil, err
		}
		p.Required = required[name]
		params = append(params, p)
	}
	sortParameters(params)
	return params, nil
}

func parameterFromSchema(name string, schema map[string]any) (*tool.Parameter, error) {
	p := &tool.Parameter{Name: name, Type: paramType(schema)}

	if desc, ok := schema["description"].(string); ok {
		p.Description = desc
	}
	if def, ok := schema["default"]; ok {
		p.Default = def
	}
	if enum, ok := schema["enum"].([]any); ok {
		p.Enum = enum
	}

	if p.Type == tool.TypeObject {
		children, err := ParametersFromSchema(schema)
		if err != nil {
			return nil, fmt.Errorf("property '%s': %w", name, err)
		}
		p.Children = children
	}
	return p, nil
}

func paramType(schema map[string]any) tool.ParamType {
	t, _ := schema["type"].(string)
	switch t {
	case "string":
		return tool.TypeString
	case "integer":
		return tool.TypeInteger
	case "number":
		return tool.TypeNumber
	case "boolean":
		return tool.TypeBoolean
	case "object":
		return tool.TypeObject
	case "array":
		return tool.TypeArray
	case "null":
		return tool.TypeNull
	}
	return tool.TypeUnknown
}

func sortParameters(params []*tool.Parameter) {
	sort.Slice(params, func(i, j int) bool { return params[i].Name < params[j].Name })
}
