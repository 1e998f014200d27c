package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractworks/nda-extract/internal/common"
)

// Two required fields and one optional, enough to exercise every branch.
func scenarioDefinition() *Definition {
	return &Definition{
		Name: "scenario",
		Fields: []Field{
			{Name: "party_names", Type: TypeList, Required: true,
				Items: &Field{Name: "item", Type: TypeString, Required: true}},
			{Name: "effective_date", Type: TypeString, Required: true},
			{Name: "governing_law", Type: TypeString},
		},
	}
}

func mustValidator(t *testing.T, def *Definition) *Validator {
	t.Helper()
	v, err := NewValidator(def, nil)
	require.NoError(t, err)
	return v
}

func validationIssues(t *testing.T, err error) []FieldError {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError in chain, got %v", err)
	return ve.Issues
}

func TestValidateFillsOptionalWithNull(t *testing.T) {
	v := mustValidator(t, scenarioDefinition())

	res, err := v.Validate(`{"party_names": ["Acme Ltd", "Beta Inc"], "effective_date": "2024-01-15"}`)
	require.NoError(t, err)

	assert.Equal(t, []any{"Acme Ltd", "Beta Inc"}, res["party_names"])
	assert.Equal(t, "2024-01-15", res["effective_date"])
	val, present := res["governing_law"]
	assert.True(t, present, "optional field must be present in output")
	assert.Nil(t, val)
}

func TestValidateMissingRequiredNamesField(t *testing.T) {
	v := mustValidator(t, scenarioDefinition())

	_, err := v.Validate(`{"effective_date": "2024-01-15"}`)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeValidationError), "got %v", err)

	issues := validationIssues(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "party_names", issues[0].Path)
}

func TestValidateReportsAllIssuesAtOnce(t *testing.T) {
	v := mustValidator(t, scenarioDefinition())

	_, err := v.Validate(`{"governing_law": 12}`)
	require.Error(t, err)
	issues := validationIssues(t, err)
	// both required fields missing; the optional number-for-string is coerced
	paths := []string{issues[0].Path, issues[1].Path}
	assert.Contains(t, paths, "party_names")
	assert.Contains(t, paths, "effective_date")
}

func TestValidateProseWrappedResponse(t *testing.T) {
	v := mustValidator(t, scenarioDefinition())

	raw := `Here is the JSON you asked for: {"party_names": ["Acme Ltd"], "effective_date": "2024-01-15"} Hope that helps!`
	res, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, []any{"Acme Ltd"}, res["party_names"])
}

func TestValidateMalformedResponse(t *testing.T) {
	v := mustValidator(t, scenarioDefinition())

	for _, raw := range []string{
		"no json here at all",
		`{"party_names": ["Acme`,
		`[1, 2, 3]`,
	} {
		_, err := v.Validate(raw)
		require.Error(t, err, "input %q", raw)
		assert.True(t, common.IsCode(err, common.CodeMalformedResponse), "input %q got %v", raw, err)
	}
}

func TestValidateCoercions(t *testing.T) {
	def := &Definition{
		Name: "coerce",
		Fields: []Field{
			{Name: "non_compete", Type: TypeBoolean, Required: true},
			{Name: "term_months", Type: TypeNumber, Required: true},
			{Name: "notes", Type: TypeString, Required: true},
			{Name: "effective_date", Type: TypeDate, Required: true},
		},
	}
	v := mustValidator(t, def)

	res, err := v.Validate(`{
		"non_compete": "true",
		"term_months": "24",
		"notes": 42,
		"effective_date": "2024-01-15T00:00:00Z"
	}`)
	require.NoError(t, err)
	assert.Equal(t, true, res["non_compete"])
	assert.Equal(t, float64(24), res["term_months"])
	assert.Equal(t, "42", res["notes"])
	assert.Equal(t, "2024-01-15", res["effective_date"])
}

func TestValidateUncoercibleReported(t *testing.T) {
	def := &Definition{
		Name: "coerce",
		Fields: []Field{
			{Name: "non_compete", Type: TypeBoolean, Required: true},
			{Name: "effective_date", Type: TypeDate, Required: true},
		},
	}
	v := mustValidator(t, def)

	_, err := v.Validate(`{"non_compete": "maybe", "effective_date": {"year": 2024}}`)
	require.Error(t, err)
	issues := validationIssues(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "non_compete", issues[0].Path)
	assert.Equal(t, "effective_date", issues[1].Path)
}

func TestValidateNestedErrorsAccumulate(t *testing.T) {
	def := &Definition{
		Name: "nested",
		Fields: []Field{
			{Name: "parties", Type: TypeList, Required: true,
				Items: &Field{Name: "item", Type: TypeObject, Required: true, Fields: []Field{
					{Name: "name", Type: TypeString, Required: true},
					{Name: "role", Type: TypeString, Required: true},
				}}},
		},
	}
	v := mustValidator(t, def)

	_, err := v.Validate(`{"parties": [{"name": "Acme Ltd"}, {"role": "Receiving Party"}]}`)
	require.Error(t, err)
	issues := validationIssues(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "parties[0].role", issues[0].Path)
	assert.Equal(t, "parties[1].name", issues[1].Path)
}

func TestValidateDropsUnknownFields(t *testing.T) {
	v := mustValidator(t, scenarioDefinition())

	res, err := v.Validate(`{"party_names": ["Acme Ltd"], "effective_date": "2024-01-15", "confidence": 0.9}`)
	require.NoError(t, err)
	_, present := res["confidence"]
	assert.False(t, present)
}

func TestValidateSchemaDeclaredDefault(t *testing.T) {
	def := &Definition{
		Name: "defaults",
		Fields: []Field{
			{Name: "status", Type: TypeString, Required: true},
			{Name: "jurisdiction", Type: TypeString, Default: "unspecified"},
		},
	}
	v := mustValidator(t, def)

	res, err := v.Validate(`{"status": "executed"}`)
	require.NoError(t, err)
	assert.Equal(t, "unspecified", res["jurisdiction"])
}

func TestMarshalOrderedIsDeterministic(t *testing.T) {
	def := scenarioDefinition()
	v := mustValidator(t, def)

	res, err := v.Validate(`{"effective_date": "2024-01-15", "party_names": ["Acme Ltd"]}`)
	require.NoError(t, err)

	first, err := MarshalOrdered(def, res)
	require.NoError(t, err)
	second, err := MarshalOrdered(def, res)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// keys come out in declaration order regardless of response order
	var keys []string
	dec := json.NewDecoder(bytes.NewReader(first))
	_, err = dec.Token() // {
	require.NoError(t, err)
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		if key, ok := tok.(string); ok {
			keys = append(keys, key)
			var skip json.RawMessage
			require.NoError(t, dec.Decode(&skip))
		}
	}
	assert.Equal(t, []string{"party_names", "effective_date", "governing_law"}, keys)
}

func TestExtractJSONIgnoresBracesInStrings(t *testing.T) {
	raw := `note {"clause": "see {section 4} for details", "ok": true} trailing`
	got, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"clause": "see {section 4} for details", "ok": true}`, string(got))
}
