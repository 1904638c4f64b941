package gh

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/machinebox/graphql"
)

// ErrEmptyUpdate is returned when a FieldUpdate carries no value.
var ErrEmptyUpdate = errors.New("field update carries no value")

// UpdateProjectItemField sets one field of a project item. Each call is
// tagged with a fresh clientMutationId.
func (c *Client) UpdateProjectItemField(ctx context.Context, projectID, itemID, fieldID string, update domain.FieldUpdate) error {
	value, err := fieldValue(update)
	if err != nil {
		return err
	}

	req := graphql.NewRequest(`
		mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $value: ProjectV2FieldValue!, $clientMutationId: String!) {
			updateProjectV2ItemFieldValue(
				input: {
					projectId: $projectId
					itemId: $itemId
					fieldId: $fieldId
					value: $value
					clientMutationId: $clientMutationId
				}
			) {
				clientMutationId
			}
		}
	`)

	req.Var("projectId", projectID)
	req.Var("itemId", itemID)
	req.Var("fieldId", fieldID)
	req.Var("value", value)
	req.Var("clientMutationId", uuid.NewString())

	var resp struct {
		UpdateProjectV2ItemFieldValue struct {
			ClientMutationID string `json:"clientMutationId"`
		} `json:"updateProjectV2ItemFieldValue"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return fmt.Errorf("failed to update item field: %w", err)
	}

	return nil
}

// fieldValue converts an update into the ProjectV2FieldValue input object.
func fieldValue(u domain.FieldUpdate) (map[string]interface{}, error) {
	switch {
	case u.Text != nil:
		return map[string]interface{}{"text": *u.Text}, nil
	case u.Number != nil:
		return map[string]interface{}{"number": *u.Number}, nil
	case u.SingleSelectOptionID != "":
		return map[string]interface{}{"singleSelectOptionId": u.SingleSelectOptionID}, nil
	case u.IterationID != "":
		return map[string]interface{}{"iterationId": u.IterationID}, nil
	case u.Date != nil:
		return map[string]interface{}{"date": u.Date.Format("2006-01-02")}, nil
	}
	return nil, ErrEmptyUpdate
}
