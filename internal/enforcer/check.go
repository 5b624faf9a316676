package enforcer

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/slok/sessionbox/internal/model"
)

// CheckBinary checks that an enforcer binary is available and reports its version.
func CheckBinary(ctx context.Context, id, binary string, versionArgs ...string) model.CheckResult {
	path, err := exec.LookPath(binary)
	if err != nil {
		return model.CheckResult{
			ID:      id,
			Message: fmt.Sprintf("%s binary not found: %v", binary, err),
			Status:  model.CheckStatusError,
		}
	}

	if len(versionArgs) == 0 {
		return model.CheckResult{ID: id, Message: fmt.Sprintf("Found at %s", path), Status: model.CheckStatusOK}
	}

	out, err := exec.CommandContext(ctx, path, versionArgs...).Output()
	if err != nil {
		return model.CheckResult{
			ID:      id,
			Message: fmt.Sprintf("Found at %s but could not get its version: %v", path, err),
			Status:  model.CheckStatusWarning,
		}
	}

	return model.CheckResult{
		ID:      id,
		Message: fmt.Sprintf("Found at %s (%s)", path, strings.TrimSpace(string(out))),
		Status:  model.CheckStatusOK,
	}
}
