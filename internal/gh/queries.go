package gh

import (
	"context"
	"fmt"

	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/machinebox/graphql"
)

type projectNodes struct {
	Nodes []struct {
		ID     string `json:"id"`
		Number int    `json:"number"`
		Title  string `json:"title"`
	} `json:"nodes"`
}

func (p projectNodes) summaries(owner string) []domain.ProjectSummary {
	projects := make([]domain.ProjectSummary, 0, len(p.Nodes))
	for _, node := range p.Nodes {
		projects = append(projects, domain.ProjectSummary{
			ID:     node.ID,
			Number: node.Number,
			Title:  node.Title,
			Owner:  owner,
		})
	}
	return projects
}

// ListOrganizationProjects lists the first 100 projects of an organization.
func (c *Client) ListOrganizationProjects(ctx context.Context, org string) ([]domain.ProjectSummary, error) {
	req := graphql.NewRequest(`
		query($login: String!, $first: Int!) {
			organization(login: $login) {
				projectsV2(first: $first) {
					nodes {
						id
						number
						title
					}
				}
			}
		}
	`)
	req.Var("login", org)
	req.Var("first", pageSize)

	var resp struct {
		Organization *struct {
			ProjectsV2 projectNodes `json:"projectsV2"`
		} `json:"organization"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list organization projects: %w", err)
	}
	if resp.Organization == nil {
		return nil, fmt.Errorf("organization '%s' not found", org)
	}

	return resp.Organization.ProjectsV2.summaries(org), nil
}

// ListUserProjects lists the first 100 projects of a user.
func (c *Client) ListUserProjects(ctx context.Context, user string) ([]domain.ProjectSummary, error) {
	req := graphql.NewRequest(`
		query($login: String!, $first: Int!) {
			user(login: $login) {
				projectsV2(first: $first) {
					nodes {
						id
						number
						title
					}
				}
			}
		}
	`)
	req.Var("login", user)
	req.Var("first", pageSize)

	var resp struct {
		User *struct {
			ProjectsV2 projectNodes `json:"projectsV2"`
		} `json:"user"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list user projects: %w", err)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("user '%s' not found", user)
	}

	return resp.User.ProjectsV2.summaries(user), nil
}

// GetProjectFields fetches all fields of a project. Select fields always
// carry a non-nil Options slice, other fields carry nil.
func (c *Client) GetProjectFields(ctx context.Context, projectID string) ([]domain.ProjectField, error) {
	req := graphql.NewRequest(`
		query($projectId: ID!) {
			node(id: $projectId) {
				... on ProjectV2 {
					fields(first: 50) {
						nodes {
							... on ProjectV2Field {
								id
								name
								dataType
							}
							... on ProjectV2SingleSelectField {
								id
								name
								dataType
								options {
									id
									name
								}
							}
							... on ProjectV2IterationField {
								id
								name
								dataType
							}
						}
					}
				}
			}
		}
	`)
	req.Var("projectId", projectID)

	var resp struct {
		Node *struct {
			Fields struct {
				Nodes []struct {
					ID       string          `json:"id"`
					Name     string          `json:"name"`
					DataType string          `json:"dataType"`
					Options  []domain.Option `json:"options"`
				} `json:"nodes"`
			} `json:"fields"`
		} `json:"node"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get project fields: %w", err)
	}
	if resp.Node == nil {
		return nil, fmt.Errorf("project '%s' not found", projectID)
	}

	fields := make([]domain.ProjectField, 0, len(resp.Node.Fields.Nodes))
	for _, node := range resp.Node.Fields.Nodes {
		field := domain.ProjectField{
			ID:       node.ID,
			Name:     node.Name,
			DataType: node.DataType,
		}

		// select fields always carry a list, even an empty one
		if node.DataType == domain.FieldTypeSingleSelect {
			field.Options = make([]domain.Option, 0, len(node.Options))
			field.Options = append(field.Options, node.Options...)
		}

		fields = append(fields, field)
	}

	return fields, nil
}

// fieldValueNode is the union of the ProjectV2ItemField*Value types the
// items query asks for. Only the members of the concrete type are set.
type fieldValueNode struct {
	Typename string   `json:"__typename"`
	Text     *string  `json:"text"`
	Number   *float64 `json:"number"`
	Name     *string  `json:"name"`
	Users    *struct {
		Nodes []struct {
			Login string `json:"login"`
		} `json:"nodes"`
	} `json:"users"`
	Repository *struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
	Field struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"field"`
}

type itemNode struct {
	ID          string `json:"id"`
	FieldValues struct {
		Nodes []fieldValueNode `json:"nodes"`
	} `json:"fieldValues"`
}

const itemsQuery = `
	query($projectId: ID!, $first: Int!, $after: String) {
		node(id: $projectId) {
			... on ProjectV2 {
				items(first: $first, after: $after) {
					pageInfo {
						hasNextPage
						endCursor
					}
					nodes {
						id
						fieldValues(first: 30) {
							nodes {
								__typename
								... on ProjectV2ItemFieldTextValue {
									text
									field { ... on ProjectV2FieldCommon { id name } }
								}
								... on ProjectV2ItemFieldNumberValue {
									number
									field { ... on ProjectV2FieldCommon { id name } }
								}
								... on ProjectV2ItemFieldSingleSelectValue {
									name
									field { ... on ProjectV2FieldCommon { id name } }
								}
								... on ProjectV2ItemFieldUserValue {
									users(first: 10) { nodes { login } }
									field { ... on ProjectV2FieldCommon { id name } }
								}
								... on ProjectV2ItemFieldRepositoryValue {
									repository { nameWithOwner }
									field { ... on ProjectV2FieldCommon { id name } }
								}
							}
						}
					}
				}
			}
		}
	}
`

// GetProjectItems fetches every item of a project, following cursors until
// the last page, and decodes the field values into typed items. Field ids of
// unset values are taken from schema.
func (c *Client) GetProjectItems(ctx context.Context, projectID string, schema domain.FieldSchema) ([]domain.Item, error) {
	var items []domain.Item
	cursor := ""

	for {
		req := graphql.NewRequest(itemsQuery)
		req.Var("projectId", projectID)
		req.Var("first", pageSize)
		if cursor != "" {
			req.Var("after", cursor)
		} else {
			req.Var("after", nil)
		}

		var resp struct {
			Node *struct {
				Items struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []itemNode `json:"nodes"`
				} `json:"items"`
			} `json:"node"`
		}

		if err := c.makeRequest(ctx, req, &resp); err != nil {
			return nil, fmt.Errorf("failed to get project items: %w", err)
		}
		if resp.Node == nil {
			return nil, fmt.Errorf("project '%s' not found", projectID)
		}

		for _, node := range resp.Node.Items.Nodes {
			items = append(items, decodeItem(node, schema))
		}

		page := resp.Node.Items.PageInfo
		if !page.HasNextPage || page.EndCursor == "" {
			break
		}
		cursor = page.EndCursor
	}

	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

// decodeItem maps the field values of one item node onto a domain.Item.
// Values of fields outside the schema are ignored, and a Status option
// outside Todo, In Progress and Done is read as no status.
func decodeItem(node itemNode, schema domain.FieldSchema) domain.Item {
	item := domain.Item{
		ID:            node.ID,
		Title:         domain.FieldValue[string]{ID: schema.FieldID(domain.FieldTitle)},
		Status:        domain.FieldValue[domain.Status]{ID: schema.FieldID(domain.FieldStatus)},
		Assignees:     domain.FieldValue[[]string]{ID: schema.FieldID(domain.FieldAssignees), Value: []string{}},
		Repository:    domain.FieldValue[*string]{ID: schema.FieldID(domain.FieldRepository)},
		Estimate:      domain.FieldValue[*float64]{ID: schema.FieldID(domain.FieldEstimate)},
		JiraIssueType: domain.FieldValue[*string]{ID: schema.FieldID(domain.FieldJiraIssueType)},
		JiraURL:       domain.FieldValue[*string]{ID: schema.FieldID(domain.FieldJiraURL)},
	}

	for _, v := range node.FieldValues.Nodes {
		switch v.Field.Name {
		case domain.FieldTitle:
			if v.Text != nil {
				item.Title.Value = *v.Text
			}
		case domain.FieldStatus:
			if v.Name != nil {
				item.Status.Value, _ = domain.ParseStatus(*v.Name)
			}
		case domain.FieldAssignees:
			if v.Users != nil {
				for _, u := range v.Users.Nodes {
					item.Assignees.Value = append(item.Assignees.Value, u.Login)
				}
			}
		case domain.FieldRepository:
			if v.Repository != nil {
				repo := v.Repository.NameWithOwner
				item.Repository.Value = &repo
			}
		case domain.FieldEstimate:
			item.Estimate.Value = v.Number
		case domain.FieldJiraIssueType:
			item.JiraIssueType.Value = v.Name
		case domain.FieldJiraURL:
			if v.Text != nil && *v.Text != "" {
				item.JiraURL.Value = v.Text
			}
		}
	}

	return item
}
