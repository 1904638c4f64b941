// Package domain defines the normalized types shared by the sync engine,
// independent of the GitHub GraphQL and Jira REST payload shapes.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Logical field names every synced project must define.
const (
	FieldTitle         = "Title"
	FieldStatus        = "Status"
	FieldEstimate      = "Estimate"
	FieldAssignees     = "Assignees"
	FieldRepository    = "Repository"
	FieldJiraIssueType = "Jira issue type"
	FieldJiraURL       = "Jira URL"
)

// FieldType constants as reported by the ProjectV2 dataType attribute.
const (
	FieldTypeSingleSelect = "SINGLE_SELECT"
	FieldTypeText         = "TEXT"
	FieldTypeNumber       = "NUMBER"
	FieldTypeDate         = "DATE"
	FieldTypeIteration    = "ITERATION"
)

// Status is the workflow state of an item. The zero value means no status.
type Status string

const (
	StatusNone Status = ""
	StatusTodo Status = "Todo"
	StatusWIP  Status = "In Progress"
	StatusDone Status = "Done"
)

// ParseStatus maps a Status option name to a Status.
// Unknown names yield StatusNone and false.
func ParseStatus(name string) (Status, bool) {
	switch Status(name) {
	case StatusTodo, StatusWIP, StatusDone:
		return Status(name), true
	}
	return StatusNone, false
}

// MarshalJSON encodes StatusNone as null.
func (s Status) MarshalJSON() ([]byte, error) {
	if s == StatusNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts null or one of the known status names.
func (s *Status) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = StatusNone
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	status, ok := ParseStatus(name)
	if !ok {
		return fmt.Errorf("unknown status %q", name)
	}
	*s = status
	return nil
}

// ProjectSummary is a project as returned by the listing queries.
type ProjectSummary struct {
	ID     string `json:"id" yaml:"id"`
	Number int    `json:"number" yaml:"number"`
	Title  string `json:"title" yaml:"title"`
	Owner  string `json:"owner" yaml:"owner"`
}

// ProjectField is one custom field definition of a project.
// Options is non-nil only for select fields.
type ProjectField struct {
	ID       string
	Name     string
	DataType string
	Options  []Option
}

// Option represents a single option value for a SINGLE_SELECT field.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SchemaField is the validated location of one logical field.
type SchemaField struct {
	ID      string
	Options []Option
}

// FieldSchema maps logical field names to the project's field ids.
type FieldSchema map[string]SchemaField

// FieldID returns the remote id for a logical field name, or "" if unknown.
func (s FieldSchema) FieldID(name string) string {
	return s[name].ID
}

// OptionID resolves a select option id by option name.
func (s FieldSchema) OptionID(field, option string) (string, bool) {
	for _, o := range s[field].Options {
		if o.Name == option {
			return o.ID, true
		}
	}
	return "", false
}

// FieldValue pairs a field value with the project field id it belongs to.
type FieldValue[T any] struct {
	ID    string `json:"id"`
	Value T      `json:"value"`
}

// Item is one task of a GitHub project. Its JSON form is the persisted record.
type Item struct {
	ID            string               `json:"id"`
	Title         FieldValue[string]   `json:"Title"`
	Status        FieldValue[Status]   `json:"Status"`
	Assignees     FieldValue[[]string] `json:"Assignees"`
	Repository    FieldValue[*string]  `json:"Repository"`
	Estimate      FieldValue[*float64] `json:"Estimate"`
	JiraIssueType FieldValue[*string]  `json:"Jira issue type"`
	JiraURL       FieldValue[*string]  `json:"Jira URL"`
}

// Validate checks the invariants a persisted record must hold.
func (i Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item id is empty")
	}
	ids := []struct {
		name string
		id   string
	}{
		{FieldTitle, i.Title.ID},
		{FieldStatus, i.Status.ID},
		{FieldAssignees, i.Assignees.ID},
		{FieldRepository, i.Repository.ID},
		{FieldEstimate, i.Estimate.ID},
		{FieldJiraIssueType, i.JiraIssueType.ID},
		{FieldJiraURL, i.JiraURL.ID},
	}
	for _, f := range ids {
		if f.id == "" {
			return fmt.Errorf("item %s: field %q is missing its id", i.ID, f.name)
		}
	}
	if i.Assignees.Value == nil {
		return fmt.Errorf("item %s: field %q must be a list", i.ID, FieldAssignees)
	}
	return nil
}

// IssueType returns the Jira issue type, or "" when unset.
func (i Item) IssueType() string {
	if i.JiraIssueType.Value == nil {
		return ""
	}
	return *i.JiraIssueType.Value
}

// URL returns the Jira URL, or "" when unset.
func (i Item) URL() string {
	if i.JiraURL.Value == nil {
		return ""
	}
	return *i.JiraURL.Value
}

// LastAssignee returns the last assignee login, or "" when unassigned.
func (i Item) LastAssignee() string {
	if len(i.Assignees.Value) == 0 {
		return ""
	}
	return i.Assignees.Value[len(i.Assignees.Value)-1]
}

// Project is the persisted snapshot of one GitHub project.
type Project struct {
	ID    string
	Items []Item
}

// Item returns the stored item with the given id. If the snapshot somehow
// holds the id twice, the last occurrence wins.
func (p *Project) Item(id string) (Item, bool) {
	for idx := len(p.Items) - 1; idx >= 0; idx-- {
		if p.Items[idx].ID == id {
			return p.Items[idx], true
		}
	}
	return Item{}, false
}

// ItemDiffEntry describes a forward status transition detected for an item.
type ItemDiffEntry struct {
	Item       Item
	PrevStatus Status
	NewStatus  Status
}

// FieldUpdate is the value written by updateProjectV2ItemFieldValue.
// Exactly one member is expected to be set.
type FieldUpdate struct {
	Text                 *string
	Number               *float64
	SingleSelectOptionID string
	IterationID          string
	Date                 *time.Time
}

// TextUpdate builds a FieldUpdate carrying a text value.
func TextUpdate(text string) FieldUpdate {
	return FieldUpdate{Text: &text}
}

// NumberUpdate builds a FieldUpdate carrying a number value.
func NumberUpdate(n float64) FieldUpdate {
	return FieldUpdate{Number: &n}
}
