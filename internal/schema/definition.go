// Package schema loads named extraction schemas and validates model output
// against them. A Definition is an ordered tree of field descriptors; it is
// rendered two ways: as a human-readable block for prompt composition and as
// a JSON-Schema map for strict validation.
package schema

import (
	"fmt"
	"strings"
)

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeObject  FieldType = "object"
	TypeList    FieldType = "list"
)

// Field describes one target output field.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Default     any
	Fields      []Field // object members, declared order
	Items       *Field  // list element descriptor
}

// Definition is a named, ordered set of fields. Immutable once loaded and
// safe to share across document pipelines.
type Definition struct {
	Name   string
	Fields []Field
}

// DescribeFields renders the definition as a field-by-field description
// block for the {schema} prompt placeholder.
func (d *Definition) DescribeFields() string {
	var b strings.Builder
	for _, f := range d.Fields {
		describeField(&b, f, 0)
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeField(b *strings.Builder, f Field, depth int) {
	indent := strings.Repeat("  ", depth)
	req := "optional"
	if f.Required {
		req = "required"
	}
	typ := string(f.Type)
	if f.Type == TypeList && f.Items != nil {
		typ = "list of " + string(f.Items.Type)
	}
	fmt.Fprintf(b, "%s- %s (%s, %s): %s\n", indent, f.Name, typ, req, f.Description)
	switch {
	case f.Type == TypeObject:
		for _, nf := range f.Fields {
			describeField(b, nf, depth+1)
		}
	case f.Type == TypeList && f.Items != nil && f.Items.Type == TypeObject:
		for _, nf := range f.Items.Fields {
			describeField(b, nf, depth+1)
		}
	}
}

// JSONSchema renders the definition as a JSON-Schema (draft 2020-12 subset)
// generic map. Every field is listed as required because the validator fills
// absent optionals with their default; optional fields are nullable instead.
func (d *Definition) JSONSchema() map[string]any {
	return objectSchema(d.Fields)
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func fieldSchema(f Field) map[string]any {
	var s map[string]any
	switch f.Type {
	case TypeString:
		s = map[string]any{"type": "string"}
	case TypeNumber:
		s = map[string]any{"type": "number"}
	case TypeBoolean:
		s = map[string]any{"type": "boolean"}
	case TypeDate:
		// pattern only applies to string instances, so it coexists with null
		s = map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
	case TypeObject:
		s = objectSchema(f.Fields)
	case TypeList:
		s = map[string]any{"type": "array"}
		if f.Items != nil {
			s["items"] = fieldSchema(*f.Items)
		}
	default:
		s = map[string]any{}
	}
	if !f.Required {
		if t, ok := s["type"].(string); ok {
			s["type"] = []string{t, "null"}
		}
	}
	return s
}
