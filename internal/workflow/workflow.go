// Package workflow starts downstream workflow executions.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// Launcher starts one workflow execution with a JSON argument.
type Launcher interface {
	Launch(ctx context.Context, argument any) (executionName string, err error)
}

// Executions launches Cloud Workflows executions.
type Executions struct {
	client    *executions.Client
	projectID string
	location  string
	workflow  string
}

func NewExecutions(ctx context.Context, projectID, location, workflowID string) (*Executions, error) {
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	return &Executions{client: client, projectID: projectID, location: location, workflow: workflowID}, nil
}

func (e *Executions) Launch(ctx context.Context, argument any) (string, error) {
	payload, err := json.Marshal(argument)
	if err != nil {
		return "", fmt.Errorf("marshal workflow argument: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", e.projectID, e.location, e.workflow),
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}
	exec, err := e.client.CreateExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}

func (e *Executions) Close() error {
	return e.client.Close()
}

// Noop is a Launcher for deployments without a downstream workflow.
type Noop struct{}

func (Noop) Launch(context.Context, any) (string, error) { return "", nil }
