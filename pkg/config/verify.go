package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"path"
	"reflect"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var embeddedSchema []byte

// VerifyAgainstEmbeddedSchema checks raw YAML config for keys the schema does not know,
// typically misspelled options silently ignored by the decoder
func VerifyAgainstEmbeddedSchema(data []byte) error {
	var schema map[string]any
	if err := json.Unmarshal(embeddedSchema, &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		return nil
	}

	var unknown []string
	defs, _ := schema["$defs"].(map[string]any)
	walk(defs, schema, doc, "", &unknown)
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown keys: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// walk collects keys of val not declared in the properties of schema
func walk(defs, schema map[string]any, val any, p string, unknown *[]string) {
	schema = resolve(defs, schema)
	switch v := val.(type) {
	case map[string]any:
		props, ok := schema["properties"].(map[string]any)
		if !ok {
			return
		}
		for key, sub := range v {
			kp := key
			if p != "" {
				kp = p + "." + key
			}
			ps, ok := props[key].(map[string]any)
			if !ok {
				*unknown = append(*unknown, kp)
				continue
			}
			walk(defs, ps, sub, kp, unknown)
		}
	case []any:
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return
		}
		for i, sub := range v {
			walk(defs, items, sub, fmt.Sprintf("%s[%d]", p, i), unknown)
		}
	}
}

// resolve follows a local "#/$defs/name" reference, other schemas are returned as is
func resolve(defs, schema map[string]any) map[string]any {
	for range 8 { // reference chains are short, the bound stops cycles
		ref, ok := schema["$ref"].(string)
		if !ok {
			return schema
		}
		def, ok := defs[strings.TrimPrefix(ref, "#/$defs/")].(map[string]any)
		if !ok {
			return schema
		}
		schema = def
	}
	return schema
}

// GenerateSchema generates a JSON schema for the Config struct. Definitions are named
// with their package, config.Config and site.Config would collide otherwise.
func GenerateSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true, Anonymous: true, Namer: schemaName}
	return r.Reflect(&Config{})
}

func schemaName(t reflect.Type) string {
	if t.Name() == "" || t.PkgPath() == "" {
		return ""
	}
	return path.Base(t.PkgPath()) + "." + t.Name()
}
