package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/contractworks/nda-extract/internal/common"
)

// FieldError is one validation finding, addressed by dotted field path.
type FieldError struct {
	Path   string
	Reason string
}

// ValidationError accumulates every finding for a response so the caller
// sees all missing/uncoercible fields at once.
type ValidationError struct {
	Issues []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Path + ": " + is.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Result mirrors the Definition's structure. Optional fields absent in the
// model response are present with their default so the output always has the
// full schema shape.
type Result map[string]any

// Validator checks model responses against one Definition. The coercion pass
// reports per-field issues; the compiled JSON-Schema is a strict second pass
// over the coerced value.
type Validator struct {
	def    *Definition
	strict *jsonschema.Schema
	logger *slog.Logger
}

func NewValidator(def *Definition, logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b, err := json.Marshal(def.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{def: def, strict: compiled, logger: logger}, nil
}

// Validate parses rawResponse (stripping any prose wrapper), coerces it
// field by field and fills defaults for absent optionals.
func (v *Validator) Validate(rawResponse string) (Result, error) {
	body, err := ExtractJSON(rawResponse)
	if err != nil {
		return nil, common.NewAppError(common.CodeMalformedResponse, "no JSON object in response", err)
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, common.NewAppError(common.CodeMalformedResponse, "response is not valid JSON", err)
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return nil, common.NewAppError(common.CodeMalformedResponse, "response is not a JSON object", nil)
	}

	var issues []FieldError
	out := v.coerceObject(v.def.Fields, m, "", &issues)
	if len(issues) > 0 {
		return nil, common.NewAppError(common.CodeValidationError, "response does not match schema "+v.def.Name, &ValidationError{Issues: issues})
	}

	if err := v.strict.Validate(map[string]any(out)); err != nil {
		return nil, common.NewAppError(common.CodeValidationError, "coerced response rejected by schema "+v.def.Name,
			&ValidationError{Issues: []FieldError{{Path: "$", Reason: err.Error()}}})
	}
	return out, nil
}

func (v *Validator) coerceObject(fields []Field, m map[string]any, base string, issues *[]FieldError) Result {
	out := make(Result, len(fields))
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Name] = struct{}{}
		path := joinPath(base, f.Name)
		val, present := m[f.Name]
		if !present || val == nil {
			if f.Required {
				reason := "required field missing"
				if present {
					reason = "required field is null"
				}
				*issues = append(*issues, FieldError{Path: path, Reason: reason})
				continue
			}
			out[f.Name] = f.Default
			continue
		}
		out[f.Name] = v.coerceValue(f, val, path, issues)
	}

	// Unknown keys are dropped, matching additionalProperties=false.
	var dropped []string
	for k := range m {
		if _, ok := known[k]; !ok {
			dropped = append(dropped, joinPath(base, k))
		}
	}
	if len(dropped) > 0 {
		v.logger.Warn("schema.validate.dropped_unknown_fields", "schema", v.def.Name, "fields", dropped)
	}
	return out
}

func (v *Validator) coerceValue(f Field, val any, path string, issues *[]FieldError) any {
	switch f.Type {
	case TypeString:
		switch t := val.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	case TypeNumber:
		switch t := val.(type) {
		case float64:
			return t
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return n
			}
		}
	case TypeBoolean:
		switch t := val.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
				return b
			}
		}
	case TypeDate:
		if s, ok := val.(string); ok {
			if d, ok := coerceDate(s); ok {
				return d
			}
		}
	case TypeObject:
		if m, ok := val.(map[string]any); ok {
			return map[string]any(v.coerceObject(f.Fields, m, path, issues))
		}
	case TypeList:
		if arr, ok := val.([]any); ok {
			out := make([]any, len(arr))
			for i, item := range arr {
				out[i] = v.coerceValue(*f.Items, item, fmt.Sprintf("%s[%d]", path, i), issues)
			}
			return out
		}
	}
	*issues = append(*issues, FieldError{Path: path, Reason: fmt.Sprintf("cannot coerce %T to %s", val, f.Type)})
	return nil
}

// coerceDate normalizes a date-ish string to YYYY-MM-DD.
func coerceDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// ExtractJSON locates the outermost balanced JSON object in s, skipping any
// prose the model wrapped around it. Deterministic: always the first '{' that
// opens a balanced object.
func ExtractJSON(s string) ([]byte, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no opening brace")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced braces")
}
