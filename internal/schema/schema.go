// Package schema validates that a GitHub project defines the fields the sync
// engine relies on, and resolves them into a domain.FieldSchema.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/h0rv/ghpsync/internal/domain"
)

var (
	// ErrSchema is the parent of every schema validation error.
	ErrSchema = errors.New("project schema mismatch")
	// ErrFieldNotFound indicates an expected field is absent from the project.
	ErrFieldNotFound = fmt.Errorf("%w: field not found", ErrSchema)
	// ErrFieldDuplicated indicates more than one field shares an expected name.
	ErrFieldDuplicated = fmt.Errorf("%w: field duplicated", ErrSchema)
	// ErrExpectedText indicates a text field unexpectedly carries options.
	ErrExpectedText = fmt.Errorf("%w: field was expected to be of type text", ErrSchema)
	// ErrExpectedSelect indicates a select field has no options.
	ErrExpectedSelect = fmt.Errorf("%w: field was expected to be of type select", ErrSchema)
	// ErrMissingOptions indicates a select field lacks some required option names.
	ErrMissingOptions = fmt.Errorf("%w: field is missing expected options", ErrSchema)
)

// Expectation describes how one logical field must be shaped.
type Expectation struct {
	Name   string
	Select bool
	// Values, when set, must all be present among the option names.
	Values []string
}

// Expected is the table of fields a synced project must define, in the
// order they are validated.
var Expected = []Expectation{
	{Name: domain.FieldEstimate},
	{Name: domain.FieldJiraIssueType, Select: true},
	{Name: domain.FieldJiraURL},
	{Name: domain.FieldStatus, Select: true, Values: []string{
		string(domain.StatusDone),
		string(domain.StatusTodo),
		string(domain.StatusWIP),
	}},
	{Name: domain.FieldAssignees},
	{Name: domain.FieldTitle},
	{Name: domain.FieldRepository},
}

// Validate checks fields against the Expected table.
func Validate(fields []domain.ProjectField) (domain.FieldSchema, error) {
	return ValidateAgainst(fields, Expected)
}

// ValidateAgainst checks fields against an arbitrary expectation table and
// returns the resulting schema. It stops at the first mismatch.
func ValidateAgainst(fields []domain.ProjectField, expected []Expectation) (domain.FieldSchema, error) {
	schema := make(domain.FieldSchema, len(expected))

	for _, exp := range expected {
		var matches []domain.ProjectField
		for _, f := range fields {
			if f.Name == exp.Name {
				matches = append(matches, f)
			}
		}

		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("field %q: %w", exp.Name, ErrFieldNotFound)
		case 1:
		default:
			return nil, fmt.Errorf("field %q: %w", exp.Name, ErrFieldDuplicated)
		}
		field := matches[0]

		if !exp.Select {
			if field.Options != nil {
				return nil, fmt.Errorf("field %q: %w", exp.Name, ErrExpectedText)
			}
			schema[exp.Name] = domain.SchemaField{ID: field.ID}
			continue
		}

		if field.Options == nil {
			return nil, fmt.Errorf("field %q: %w", exp.Name, ErrExpectedSelect)
		}

		if len(exp.Values) > 0 {
			names := make(map[string]bool, len(field.Options))
			for _, o := range field.Options {
				names[o.Name] = true
			}
			for _, v := range exp.Values {
				if !names[v] {
					return nil, fmt.Errorf("field %q expected values %q but got %q: %w",
						exp.Name, strings.Join(exp.Values, ","), optionNames(field.Options), ErrMissingOptions)
				}
			}
		}

		options := make([]domain.Option, len(field.Options))
		copy(options, field.Options)
		schema[exp.Name] = domain.SchemaField{ID: field.ID, Options: options}
	}

	return schema, nil
}

func optionNames(options []domain.Option) string {
	names := make([]string, 0, len(options))
	for _, o := range options {
		names = append(names, o.Name)
	}
	return strings.Join(names, ",")
}
