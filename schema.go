package agentry

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	customTypesMu sync.RWMutex
	customTypes   = make(map[reflect.Type]*invopop.Schema)
)

// RegisterType makes generated schemas describe values of the same type as emptyInstance
// with the given JSON type and optional format, for example a money type as
// ("string", "decimal"). *T maps like T. Register before building tools that use the type.
// It panics if emptyInstance is nil or jsonType is empty.
func RegisterType(emptyInstance any, jsonType, format string) {
	switch {
	case emptyInstance == nil:
		panic("agentry: RegisterType emptyInstance must not be nil")
	case jsonType == "":
		panic("agentry: RegisterType jsonType must not be empty")
	}
	customTypesMu.Lock()
	customTypes[reflect.TypeOf(emptyInstance)] = &invopop.Schema{Type: jsonType, Format: format}
	customTypesMu.Unlock()
}

// typeMapper freezes the registered types into a Reflector.Mapper.
func typeMapper() func(reflect.Type) *invopop.Schema {
	customTypesMu.RLock()
	registered := maps.Clone(customTypes)
	customTypesMu.RUnlock()
	if len(registered) == 0 {
		return nil
	}
	return func(t reflect.Type) *invopop.Schema {
		s, ok := registered[indirectType(t)]
		if !ok {
			return nil
		}
		return &invopop.Schema{Type: s.Type, Format: s.Format}
	}
}

// generateSchema reflects T into a schema map and compiles it. In strict mode every
// object is closed and all its properties are required.
func generateSchema[T any](strict bool) (map[string]any, *jsonschema.Schema, error) {
	typ := reflect.TypeFor[T]()
	// Inline reflection works for unnamed structs and interfaces; ExpandedStruct
	// needs a named definition and panics without one.
	reflector := &invopop.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
		Mapper:                    typeMapper(),
	}
	reflected := reflector.ReflectFromType(typ)
	if reflected == nil {
		return nil, nil, errNilSchema
	}
	data, err := json.Marshal(reflected)
	if err != nil {
		return nil, nil, err
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, nil, err
	}
	enrichSchemaFromStructTags(schemaMap, typ)
	if strict {
		applyStrictMode(schemaMap)
	}
	stripSchemaIDs(schemaMap)
	compiled, err := compileRawSchema(schemaMap)
	if err != nil {
		return nil, nil, err
	}
	return schemaMap, compiled, nil
}

// jsonName returns the name a struct field has in JSON, or "" when it has no explicit one.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	return name
}

// enrichSchemaFromStructTags applies `description` and comma separated `enum` tags
// to the matching properties, recursing through nested structs, pointers and slices.
func enrichSchemaFromStructTags(schemaMap map[string]any, typ reflect.Type) {
	if schemaMap == nil || typ == nil {
		return
	}
	typ = indirectType(typ)
	props, _ := schemaMap["properties"].(map[string]any)
	if typ.Kind() != reflect.Struct || len(props) == 0 {
		return
	}
	for i := range typ.NumField() {
		field := typ.Field(i)
		name := jsonName(field)
		prop, ok := props[name].(map[string]any)
		if name == "" || name == "-" || !ok {
			continue
		}
		if desc := field.Tag.Get("description"); desc != "" {
			prop["description"] = desc
		}
		if tag := field.Tag.Get("enum"); tag != "" {
			var enum []any
			for v := range strings.SplitSeq(tag, ",") {
				enum = append(enum, strings.TrimSpace(v))
			}
			prop["enum"] = enum
		}
		switch ft := indirectType(field.Type); ft.Kind() {
		case reflect.Struct:
			enrichSchemaFromStructTags(prop, ft)
		case reflect.Slice, reflect.Array:
			items, _ := prop["items"].(map[string]any)
			enrichSchemaFromStructTags(items, ft.Elem())
		}
	}
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// walkSchema calls visit on schemaMap and on every map nested in it, including array items.
func walkSchema(schemaMap map[string]any, visit func(map[string]any)) {
	if schemaMap == nil {
		return
	}
	visit(schemaMap)
	for _, val := range schemaMap {
		switch v := val.(type) {
		case map[string]any:
			walkSchema(v, visit)
		case []any:
			for _, item := range v {
				child, _ := item.(map[string]any)
				walkSchema(child, visit)
			}
		}
	}
}

// applyStrictMode closes every object node and requires all of its properties, sorted by name.
func applyStrictMode(schemaMap map[string]any) {
	walkSchema(schemaMap, func(n map[string]any) {
		raw, isObj := n["properties"]
		if !isObj {
			return
		}
		n["additionalProperties"] = false
		props, _ := raw.(map[string]any)
		if len(props) == 0 {
			return
		}
		var required []any
		for _, k := range slices.Sorted(maps.Keys(props)) {
			required = append(required, k)
		}
		n["required"] = required
	})
}

var errNilSchema = errors.New("schema reflection returned nil")

// schemaResource is the in-memory URL every compiled schema is registered under.
const schemaResource = "schema.json"

// compileRawSchema compiles a raw JSON Schema map into a validator. The map is not mutated.
func compileRawSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaResource, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaResource)
}

// stripSchemaIDs removes id, $id, and $schema so the schema resolves on its own
// and can be sent to the model as a plain parameters object.
func stripSchemaIDs(schemaMap map[string]any) {
	walkSchema(schemaMap, func(n map[string]any) {
		if _, ok := n["id"].(string); ok {
			delete(n, "id")
		}
		delete(n, "$id")
		delete(n, "$schema")
	})
}

// describeField returns the description declared for the field at path, or "".
// Numeric path segments step into array items.
func describeField(schemaMap map[string]any, path []string) string {
	node := schemaMap
	for _, seg := range path {
		if props, ok := node["properties"].(map[string]any); ok {
			if next, ok := props[seg].(map[string]any); ok {
				node = next
				continue
			}
		}
		if items, ok := node["items"].(map[string]any); ok {
			node = items
			continue
		}
		return ""
	}
	desc, _ := node["description"].(string)
	return desc
}

// topLevelFields returns the JSON names of typ's exported fields in declaration order.
// Embedded structs without a json name contribute their own fields.
func topLevelFields(typ reflect.Type) []string {
	typ = indirectType(typ)
	if typ.Kind() != reflect.Struct {
		return nil
	}
	var names []string
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonName(field)
		if name == "-" {
			continue
		}
		if name == "" {
			if field.Anonymous {
				names = append(names, topLevelFields(field.Type)...)
				continue
			}
			name = field.Name
		}
		names = append(names, name)
	}
	return names
}
