package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/contractworks/nda-extract/internal/common"
)

// PromptTemplate is the instruction text submitted to the completion service.
// The user part carries the {schema} and {document_text} placeholders.
type PromptTemplate struct {
	Name   string `json:"name"`
	System string `json:"system"`
	User   string `json:"user"`
}

// On-disk shapes. A field may inline its type or point at a named fragment in
// "definitions" via $ref; fragments may reference each other.
type fileField struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     any         `json:"default"`
	Ref         string      `json:"$ref"`
	Fields      []fileField `json:"fields"`
	Items       *fileField  `json:"items"`
}

type fileDefinition struct {
	Name        string               `json:"name"`
	Fields      []fileField          `json:"fields"`
	Definitions map[string]fileField `json:"definitions"`
}

// Load reads the definition and prompt template for schemaName from
// root/definitions and root/prompts. Pure read; the result is reused for
// every document in a batch.
func Load(root, schemaName string) (*Definition, *PromptTemplate, error) {
	fileName := schemaName
	if filepath.Ext(fileName) == "" {
		fileName += ".json"
	}

	defPath := filepath.Join(root, "definitions", fileName)
	defBytes, err := os.ReadFile(defPath)
	if err != nil {
		return nil, nil, common.NewAppErrorf(common.CodeConfigNotFound, err, "schema definition %q", defPath)
	}
	promptPath := filepath.Join(root, "prompts", fileName)
	promptBytes, err := os.ReadFile(promptPath)
	if err != nil {
		return nil, nil, common.NewAppErrorf(common.CodeConfigNotFound, err, "prompt template %q", promptPath)
	}

	var fd fileDefinition
	if err := json.Unmarshal(defBytes, &fd); err != nil {
		return nil, nil, common.NewAppErrorf(common.CodeConfigParseError, err, "parse schema definition %q", defPath)
	}
	def, err := resolveDefinition(&fd)
	if err != nil {
		return nil, nil, common.NewAppErrorf(common.CodeConfigParseError, err, "schema definition %q", defPath)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	}

	var tmpl PromptTemplate
	if err := json.Unmarshal(promptBytes, &tmpl); err != nil {
		return nil, nil, common.NewAppErrorf(common.CodeConfigParseError, err, "parse prompt template %q", promptPath)
	}
	if strings.TrimSpace(tmpl.User) == "" {
		return nil, nil, common.NewAppErrorf(common.CodeConfigParseError, nil, "prompt template %q has no user section", promptPath)
	}

	return def, &tmpl, nil
}

func resolveDefinition(fd *fileDefinition) (*Definition, error) {
	if len(fd.Fields) == 0 {
		return nil, fmt.Errorf("no fields declared")
	}
	fields, err := resolveFields(fd.Fields, fd.Definitions, map[string]bool{}, "")
	if err != nil {
		return nil, err
	}
	return &Definition{Name: fd.Name, Fields: fields}, nil
}

func resolveFields(ffs []fileField, frags map[string]fileField, visiting map[string]bool, path string) ([]Field, error) {
	seen := make(map[string]struct{}, len(ffs))
	out := make([]Field, 0, len(ffs))
	for _, ff := range ffs {
		if ff.Name == "" {
			return nil, fmt.Errorf("unnamed field at %q", path)
		}
		if _, dup := seen[ff.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q at %q", ff.Name, path)
		}
		seen[ff.Name] = struct{}{}
		f, err := resolveField(ff, frags, visiting, joinPath(path, ff.Name))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func resolveField(ff fileField, frags map[string]fileField, visiting map[string]bool, path string) (Field, error) {
	if ff.Ref != "" {
		frag, ok := frags[ff.Ref]
		if !ok {
			return Field{}, fmt.Errorf("field %q: unresolvable $ref %q", path, ff.Ref)
		}
		if visiting[ff.Ref] {
			return Field{}, fmt.Errorf("field %q: cyclic $ref %q", path, ff.Ref)
		}
		visiting[ff.Ref] = true
		defer delete(visiting, ff.Ref)

		// The referring field keeps its own name, description, requiredness
		// and default; the fragment supplies the structure.
		frag.Name = ff.Name
		if ff.Description != "" {
			frag.Description = ff.Description
		}
		frag.Required = ff.Required
		if ff.Default != nil {
			frag.Default = ff.Default
		}
		// frag.Ref is kept as-is: fragments may chain to other fragments,
		// and the visiting set above catches cycles.
		return resolveField(frag, frags, visiting, path)
	}

	ft := FieldType(ff.Type)
	switch ft {
	case TypeString, TypeNumber, TypeBoolean, TypeDate:
		if len(ff.Fields) > 0 || ff.Items != nil {
			return Field{}, fmt.Errorf("field %q: scalar type %q cannot nest fields", path, ff.Type)
		}
	case TypeObject:
		if len(ff.Fields) == 0 {
			return Field{}, fmt.Errorf("field %q: object type needs fields", path)
		}
	case TypeList:
		if ff.Items == nil {
			return Field{}, fmt.Errorf("field %q: list type needs items", path)
		}
	default:
		return Field{}, fmt.Errorf("field %q: unknown type %q", path, ff.Type)
	}

	f := Field{
		Name:        ff.Name,
		Type:        ft,
		Description: ff.Description,
		Required:    ff.Required,
		Default:     ff.Default,
	}
	if ft == TypeObject {
		nested, err := resolveFields(ff.Fields, frags, visiting, path)
		if err != nil {
			return Field{}, err
		}
		f.Fields = nested
	}
	if ft == TypeList {
		item := *ff.Items
		if item.Name == "" {
			item.Name = "item"
		}
		resolved, err := resolveField(item, frags, visiting, path+"[]")
		if err != nil {
			return Field{}, err
		}
		// list elements are never null, regardless of the list's requiredness
		resolved.Required = true
		f.Items = &resolved
	}
	return f, nil
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
