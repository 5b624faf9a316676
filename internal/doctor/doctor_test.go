package doctor_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/sessionbox/internal/doctor"
	"github.com/slok/sessionbox/internal/enforcer"
	"github.com/slok/sessionbox/internal/enforcer/passthrough"
	"github.com/slok/sessionbox/internal/model"
)

type checkerEnforcer struct {
	enforcer.Enforcer
	results []model.CheckResult
}

func (c checkerEnforcer) Check(context.Context) []model.CheckResult { return c.results }

func statuses(results []model.CheckResult) map[string]model.CheckStatus {
	m := map[string]model.CheckStatus{}
	for _, r := range results {
		m[r.ID] = r.Status
	}
	return m
}

func TestCheck(t *testing.T) {
	tests := map[string]struct {
		cfg         func(t *testing.T) doctor.Config
		expStatuses map[string]model.CheckStatus
	}{
		"A healthy host should pass the checks.": {
			cfg: func(t *testing.T) doctor.Config {
				return doctor.Config{
					SessionsDir: filepath.Join(t.TempDir(), "sessions"),
					Shell:       "/bin/sh",
					Enforcer:    passthrough.Enforcer,
				}
			},
			expStatuses: map[string]model.CheckStatus{
				"shell":        model.CheckStatusOK,
				"sessions_dir": model.CheckStatusOK,
				"enforcer":     model.CheckStatusWarning,
			},
		},

		"A missing shell should fail.": {
			cfg: func(t *testing.T) doctor.Config {
				return doctor.Config{
					SessionsDir: t.TempDir(),
					Shell:       "/this/shell/does/not/exist",
					Enforcer:    passthrough.Enforcer,
				}
			},
			expStatuses: map[string]model.CheckStatus{
				"shell":        model.CheckStatusError,
				"sessions_dir": model.CheckStatusOK,
				"enforcer":     model.CheckStatusWarning,
			},
		},

		"Enforcer checks and missing optional binaries should be reported.": {
			cfg: func(t *testing.T) doctor.Config {
				return doctor.Config{
					SessionsDir: t.TempDir(),
					Shell:       "/bin/sh",
					Enforcer: checkerEnforcer{
						Enforcer: passthrough.Enforcer,
						results:  []model.CheckResult{{ID: "custom", Status: model.CheckStatusError}},
					},
					PipBinary: "this-pip-does-not-exist-sessionbox",
				}
			},
			expStatuses: map[string]model.CheckStatus{
				"shell":        model.CheckStatusOK,
				"sessions_dir": model.CheckStatusOK,
				"custom":       model.CheckStatusError,
				"pip_binary":   model.CheckStatusWarning,
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			results := doctor.Check(context.Background(), test.cfg(t))
			assert.Equal(t, test.expStatuses, statuses(results))
		})
	}
}
