// Package dataform provides a read-only client for the Dataform v1beta1
// REST API: listing workflow invocations and the actions inside them.
package dataform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the production Dataform API endpoint.
	DefaultBaseURL = "https://dataform.googleapis.com/v1beta1"

	// defaultPageSize keeps list responses to a manageable size; the
	// client follows nextPageToken until the listing is exhausted.
	defaultPageSize = 100
)

// ClientConfig holds Dataform API client settings.
type ClientConfig struct {
	// BaseURL is the API endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// Token is the bearer token used on every request.
	Token string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Logger logs request outcomes. Defaults to zap.NewNop().
	Logger *zap.Logger
}

// Client calls the Dataform API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Dataform API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("bearer token is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Client{
		baseURL:    config.BaseURL,
		token:      config.Token,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     config.Logger,
	}, nil
}

// ListWorkflowInvocations lists every workflow invocation in the
// repository, following pagination until all pages are consumed.
func (c *Client) ListWorkflowInvocations(ctx context.Context, project, location, repository string) ([]*WorkflowInvocation, error) {
	resource := fmt.Sprintf("projects/%s/locations/%s/repositories/%s/workflowInvocations",
		project, location, repository)

	var invocations []*WorkflowInvocation
	pageToken := ""
	for {
		var page listInvocationsResponse
		if err := c.get(ctx, resource, pageToken, &page); err != nil {
			return nil, &ExtractionError{
				Op:         "list_invocations",
				Resource:   resource,
				StatusCode: statusCode(err),
				Err:        err,
			}
		}

		invocations = append(invocations, page.WorkflowInvocations...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Info("listed workflow invocations",
		zap.String("resource", resource),
		zap.Int("count", len(invocations)))
	return invocations, nil
}

// QueryInvocationActions lists the actions of one invocation in the
// order the API reports them, following pagination until exhausted.
func (c *Client) QueryInvocationActions(ctx context.Context, invocationName string) ([]*WorkflowInvocationAction, error) {
	resource := invocationName + ":query"

	var actions []*WorkflowInvocationAction
	pageToken := ""
	for {
		var page queryActionsResponse
		if err := c.get(ctx, resource, pageToken, &page); err != nil {
			return nil, &ExtractionError{
				Op:         "query_actions",
				Resource:   invocationName,
				StatusCode: statusCode(err),
				Err:        err,
			}
		}

		actions = append(actions, page.WorkflowInvocationActions...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Debug("queried invocation actions",
		zap.String("invocation", invocationName),
		zap.Int("count", len(actions)))
	return actions, nil
}

// httpStatusError carries the HTTP status of a rejected API call.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func statusCode(err error) int {
	if statusErr, ok := err.(*httpStatusError); ok {
		return statusErr.status
	}
	return 0
}

// get performs one authenticated GET against the API and decodes the
// JSON response into out.
func (c *Client) get(ctx context.Context, resource, pageToken string, out any) error {
	query := url.Values{}
	query.Set("pageSize", fmt.Sprintf("%d", defaultPageSize))
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}
	requestURL := fmt.Sprintf("%s/%s?%s", c.baseURL, resource, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &httpStatusError{status: resp.StatusCode, body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
