//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"reflect"
	"strings"

	"github.com/pravobot/pravobot/tool"
)

// GenerateJSONSchema generates a JSON schema for the given Go type.
// Struct fields are mapped through their json tags; fields tagged `json:"-"`
// are skipped. A field is required unless it is a pointer or carries
// omitempty. Descriptions come from `jsonschema:"description=..."` tags.
func GenerateJSONSchema(t reflect.Type) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	if t.Kind() == reflect.Ptr {
		return GenerateJSONSchema(t.Elem())
	}
	if t.Kind() != reflect.Struct {
		return generateFieldSchema(t)
	}

	schema := &tool.Schema{Type: "object"}
	properties := map[string]*tool.Schema{}
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		isOmitEmpty := false
		if jsonTag != "" {
			if commaIdx := strings.Index(jsonTag, ","); commaIdx != -1 {
				fieldName = jsonTag[:commaIdx]
				isOmitEmpty = strings.Contains(jsonTag[commaIdx:], "omitempty")
			} else {
				fieldName = jsonTag
			}
		}

		fieldSchema := generateFieldSchema(field.Type)
		fieldSchema.Description = schemaDescription(field)
		properties[fieldName] = fieldSchema

		if field.Type.Kind() != reflect.Ptr && !isOmitEmpty {
			required = append(required, fieldName)
		}
	}

	schema.Properties = properties
	if len(required) > 0 {
		schema.Required = required
	}
	return schema
}

// generateFieldSchema generates schema for a specific field type.
func generateFieldSchema(t reflect.Type) *tool.Schema {
	switch t.Kind() {
	case reflect.String:
		return &tool.Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number"}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{
			Type:  "array",
			Items: generateFieldSchema(t.Elem()),
		}
	case reflect.Map:
		return &tool.Schema{
			Type:                 "object",
			AdditionalProperties: generateFieldSchema(t.Elem()),
		}
	case reflect.Ptr:
		return generateFieldSchema(t.Elem())
	case reflect.Struct:
		return GenerateJSONSchema(t)
	default:
		return &tool.Schema{Type: "string"}
	}
}

// schemaDescription extracts the description value from a field's
// `jsonschema:"description=..."` tag.
func schemaDescription(field reflect.StructField) string {
	tag := field.Tag.Get("jsonschema")
	if tag == "" {
		return ""
	}
	// description is expected to be the last key in the tag; everything after
	// it, commas included, belongs to the description text.
	if idx := strings.Index(tag, "description="); idx != -1 {
		return tag[idx+len("description="):]
	}
	return ""
}
