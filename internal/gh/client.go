// Package gh provides a GraphQL client for the GitHub Projects v2 API.
// It exposes the few queries and mutations the sync needs and hides the
// GraphQL payload shapes behind domain types.
package gh

import (
	"context"

	"github.com/machinebox/graphql"
)

// Endpoint is the public GitHub GraphQL API.
const Endpoint = "https://api.github.com/graphql"

// pageSize is the number of items requested per page.
const pageSize = 100

// Client is a GitHub GraphQL API client for Projects v2.
type Client struct {
	gql   *graphql.Client
	token string
}

// New creates a client for the public GitHub API authenticated with token.
func New(token string) *Client {
	return NewWithEndpoint(Endpoint, token)
}

// NewWithEndpoint creates a client for a custom GraphQL endpoint, such as a
// GitHub Enterprise server or a test server.
func NewWithEndpoint(endpoint, token string) *Client {
	return &Client{
		gql:   graphql.NewClient(endpoint),
		token: token,
	}
}

// makeRequest executes a GraphQL request with authentication.
func (c *Client) makeRequest(ctx context.Context, req *graphql.Request, resp interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.gql.Run(ctx, req, resp)
}
