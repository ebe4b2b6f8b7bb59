package dataform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		Token:   "test-token",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client, server
}

func TestNewClient_RequiresToken(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for missing token, got nil")
	}
}

func TestListWorkflowInvocations_ExhaustsPagination(t *testing.T) {
	var authHeader string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")

		page := listInvocationsResponse{}
		switch r.URL.Query().Get("pageToken") {
		case "":
			page.WorkflowInvocations = []*WorkflowInvocation{{Name: "inv-1"}, {Name: "inv-2"}}
			page.NextPageToken = "page-2"
		case "page-2":
			page.WorkflowInvocations = []*WorkflowInvocation{{Name: "inv-3"}}
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
		json.NewEncoder(w).Encode(page)
	}))

	invocations, err := client.ListWorkflowInvocations(context.Background(), "p", "l", "r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if authHeader != "Bearer test-token" {
		t.Errorf("expected bearer auth header, got %q", authHeader)
	}
	if len(invocations) != 3 {
		t.Fatalf("expected 3 invocations across pages, got %d", len(invocations))
	}
	if invocations[2].Name != "inv-3" {
		t.Errorf("expected inv-3 last, got %q", invocations[2].Name)
	}
}

func TestListWorkflowInvocations_ResourcePath(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(listInvocationsResponse{})
	}))

	if _, err := client.ListWorkflowInvocations(context.Background(), "proj", "europe-west1", "repo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "/projects/proj/locations/europe-west1/repositories/repo/workflowInvocations"
	if gotPath != want {
		t.Errorf("expected path %q, got %q", want, gotPath)
	}
}

func TestQueryInvocationActions_PreservesOrder(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := queryActionsResponse{}
		switch r.URL.Query().Get("pageToken") {
		case "":
			for i := 0; i < 3; i++ {
				page.WorkflowInvocationActions = append(page.WorkflowInvocationActions,
					&WorkflowInvocationAction{Target: Target{Name: fmt.Sprintf("assertion_%d", i)}, State: "SUCCEEDED"})
			}
			page.NextPageToken = "next"
		case "next":
			page.WorkflowInvocationActions = []*WorkflowInvocationAction{
				{Target: Target{Name: "assertion_3"}, State: "FAILED"},
			}
		}
		json.NewEncoder(w).Encode(page)
	}))

	actions, err := client.QueryInvocationActions(context.Background(),
		"projects/p/locations/l/repositories/r/workflowInvocations/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(actions) != 4 {
		t.Fatalf("expected 4 actions across pages, got %d", len(actions))
	}
	for i, action := range actions {
		want := fmt.Sprintf("assertion_%d", i)
		if action.Target.Name != want {
			t.Errorf("action %d: expected %q, got %q (API order not preserved)", i, want, action.Target.Name)
		}
	}
}

func TestClient_SurfacesAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		op         func(*Client) error
		wantOp     string
	}{
		{
			name:   "list unauthorized",
			status: http.StatusUnauthorized,
			op: func(c *Client) error {
				_, err := c.ListWorkflowInvocations(context.Background(), "p", "l", "r")
				return err
			},
			wantOp: "list_invocations",
		},
		{
			name:   "repository not found",
			status: http.StatusNotFound,
			op: func(c *Client) error {
				_, err := c.ListWorkflowInvocations(context.Background(), "p", "l", "missing")
				return err
			},
			wantOp: "list_invocations",
		},
		{
			name:   "query server error",
			status: http.StatusInternalServerError,
			op: func(c *Client) error {
				_, err := c.QueryInvocationActions(context.Background(), "projects/p/invocations/1")
				return err
			},
			wantOp: "query_actions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream says no", tt.status)
			}))

			err := tt.op(client)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var extractErr *ExtractionError
			if !errors.As(err, &extractErr) {
				t.Fatalf("expected *ExtractionError, got %T: %v", err, err)
			}
			if extractErr.Op != tt.wantOp {
				t.Errorf("expected op %q, got %q", tt.wantOp, extractErr.Op)
			}
			if extractErr.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, extractErr.StatusCode)
			}
		})
	}
}

func TestClient_DecodesActionFields(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"workflowInvocationActions": [{
				"target": {"database": "analytics", "schema": "dataform_assertions", "name": "assertion_orders"},
				"state": "FAILED",
				"failureReason": "row count was 3, expected 0",
				"invocationTiming": {
					"startTime": "2026-08-24T06:00:00Z",
					"endTime": "2026-08-24T06:00:42Z"
				}
			}]
		}`))
	}))

	actions, err := client.QueryInvocationActions(context.Background(), "projects/p/invocations/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}

	action := actions[0]
	if action.Target.Schema != "dataform_assertions" {
		t.Errorf("expected schema 'dataform_assertions', got %q", action.Target.Schema)
	}
	if action.FailureReason != "row count was 3, expected 0" {
		t.Errorf("unexpected failure reason %q", action.FailureReason)
	}
	if action.InvocationTiming.EndTime.Sub(action.InvocationTiming.StartTime).Seconds() != 42 {
		t.Errorf("unexpected timing %v", action.InvocationTiming)
	}
}
