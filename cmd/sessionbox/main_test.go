package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/sessionbox/cmd/sessionbox/commands"
)

func TestRunPolicy(t *testing.T) {
	var stdout, stderr bytes.Buffer
	workspace := t.TempDir()

	err := Run(context.Background(), []string{"sessionbox", "--workspace-dir", workspace, "policy", "--session-id", "s1", "--format", "json"}, nil, &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), `"allowWrite": [`)
	assert.Contains(t, stdout.String(), workspace+"/sessions/s1")
}

func TestRunInvalidCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := Run(context.Background(), []string{"sessionbox", "does-not-exist"}, nil, &stdout, &stderr)
	assert.Error(t, err)
}

func TestExitCodeError(t *testing.T) {
	err := fmt.Errorf("\"run\" command failed: %w", &commands.ExitCodeError{Code: 3})

	var exitErr *commands.ExitCodeError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "exited with code 3", exitErr.Error())
}
