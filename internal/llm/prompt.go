package llm

import (
	"encoding/json"
	"strings"

	"github.com/contractworks/nda-extract/internal/common"
	"github.com/contractworks/nda-extract/internal/schema"
)

const (
	placeholderSchema  = "{schema}"
	placeholderDocText = "{document_text}"
)

// ComposeConfig bounds the composed prompt.
type ComposeConfig struct {
	CharBudget int  // total characters across system + user; 0 means no bound
	Truncate   bool // cut document text deterministically instead of failing
}

// Compose merges the schema definition, the prompt template and the
// extracted document text into one CompletionRequest. Pure function.
func Compose(def *schema.Definition, tmpl *schema.PromptTemplate, docText string, cfg ComposeConfig) (CompletionRequest, error) {
	if !strings.Contains(tmpl.User, placeholderSchema) {
		return CompletionRequest{}, common.NewAppErrorf(common.CodeTemplateError, nil,
			"prompt template %q is missing the %s placeholder", tmpl.Name, placeholderSchema)
	}
	if !strings.Contains(tmpl.User, placeholderDocText) {
		return CompletionRequest{}, common.NewAppErrorf(common.CodeTemplateError, nil,
			"prompt template %q is missing the %s placeholder", tmpl.Name, placeholderDocText)
	}

	schemaJSON, err := json.MarshalIndent(def.JSONSchema(), "", "  ")
	if err != nil {
		return CompletionRequest{}, common.NewAppError(common.CodeTemplateError, "render schema", err)
	}

	user := strings.ReplaceAll(tmpl.User, placeholderSchema, def.DescribeFields())

	truncated := false
	if cfg.CharBudget > 0 {
		// Overhead is everything except the document text itself.
		overhead := len(tmpl.System) + len(strings.ReplaceAll(user, placeholderDocText, "")) + len(schemaJSON)
		room := cfg.CharBudget - overhead
		if room <= 0 {
			return CompletionRequest{}, common.NewAppErrorf(common.CodePromptTooLarge, nil,
				"prompt overhead %d exceeds budget %d", overhead, cfg.CharBudget)
		}
		if len(docText) > room {
			if !cfg.Truncate {
				return CompletionRequest{}, common.NewAppErrorf(common.CodePromptTooLarge, nil,
					"document text %d chars over budget (room %d)", len(docText), room)
			}
			docText = docText[:room]
			truncated = true
		}
	}

	return CompletionRequest{
		System:     tmpl.System,
		User:       strings.ReplaceAll(user, placeholderDocText, docText),
		SchemaJSON: string(schemaJSON),
		Truncated:  truncated,
	}, nil
}
