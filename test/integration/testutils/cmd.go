package testutils

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

var multiSpaceRegex = regexp.MustCompile(" +")

// RunSessionbox executes a sessionbox command with the given arguments string (split by spaces).
// Use RunSessionboxArgs when arguments contain spaces that should be preserved.
func RunSessionbox(ctx context.Context, env []string, binary, cmdArgs string, nolog bool) (stdout, stderr []byte, err error) {
	// Sanitize command.
	cmdArgs = strings.TrimSpace(cmdArgs)
	cmdArgs = multiSpaceRegex.ReplaceAllString(cmdArgs, " ")

	// Split into args.
	var args []string
	if cmdArgs != "" {
		args = strings.Split(cmdArgs, " ")
	}

	return RunSessionboxArgs(ctx, env, binary, args, nolog)
}

// RunSessionboxArgs executes a sessionbox command with pre-split arguments.
// This preserves arguments that contain spaces (e.g., sh -c "echo hello > file").
func RunSessionboxArgs(ctx context.Context, env []string, binary string, args []string, nolog bool) (stdout, stderr []byte, err error) {
	var outData, errData bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &outData
	cmd.Stderr = &errData
	cmd.Env = commandEnv(env, nolog)

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}

// StartSessionbox starts a long running sessionbox command (e.g. serve) in background.
// The process is killed when the context is cancelled.
func StartSessionbox(ctx context.Context, env []string, binary string, args []string, nolog bool) (*exec.Cmd, *bytes.Buffer, error) {
	var logs bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &logs
	cmd.Stderr = &logs
	cmd.Env = commandEnv(env, nolog)

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	return cmd, &logs, nil
}

// commandEnv returns os.Environ() with the custom env on top.
// In Go's exec.Cmd, when duplicate keys exist, the last one wins.
func commandEnv(env []string, nolog bool) []string {
	newEnv := append([]string{}, os.Environ()...)
	newEnv = append(newEnv, env...)
	if nolog {
		newEnv = append(newEnv, "SESSIONBOX_NO_LOG=true")
	}
	return newEnv
}
