package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/policy"
)

type PolicyCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	opts        sandboxOptions
	sessionID   string
	format      string
	checkDomain []string
	checkRead   []string
	checkWrite  []string
}

// NewPolicyCommand returns the policy command.
func NewPolicyCommand(rootCmd *RootCommand, app *kingpin.Application) *PolicyCommand {
	c := &PolicyCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("policy", "Show the sandbox policy new sessions get with the current configuration.")
	c.Cmd.Flag("session-id", "Session ID used to render the session directory.").Default("<session-id>").StringVar(&c.sessionID)
	c.Cmd.Flag("check-domain", "Check if the policy allows a domain instead of printing it. Can be repeated.").StringsVar(&c.checkDomain)
	c.Cmd.Flag("check-read", "Check if the policy allows reading a path instead of printing it. Can be repeated.").StringsVar(&c.checkRead)
	c.Cmd.Flag("check-write", "Check if the policy allows writing a path instead of printing it. Can be repeated.").StringsVar(&c.checkWrite)
	registerSandboxOptions(c.Cmd, &c.opts)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c PolicyCommand) Name() string { return c.Cmd.FullCommand() }

func (c PolicyCommand) Run(ctx context.Context) error {
	builder, err := c.opts.newPolicyBuilder(ctx)
	if err != nil {
		return err
	}

	dir := conventions.SessionDir(c.opts.sessionsDir(c.rootCmd.WorkspaceDir), c.sessionID)
	p := builder.Build(dir, c.opts.NestedSandbox)
	printer := c.rootCmd.newPrinter(c.format)

	if len(c.checkDomain)+len(c.checkRead)+len(c.checkWrite) == 0 {
		if err := printer.PrintPolicy(p); err != nil {
			return fmt.Errorf("could not print policy: %w", err)
		}
		return nil
	}

	results := checkAccess(policy.NewMatcher(p, homedir.HomeDir()), c.checkDomain, c.checkRead, c.checkWrite)
	if err := printer.PrintChecks(results); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	return nil
}

// checkAccess evaluates each target with the policy, denied targets are reported as warnings.
func checkAccess(m *policy.Matcher, domains, readPaths, writePaths []string) []model.CheckResult {
	var results []model.CheckResult
	add := func(kind, target string, allowed bool) {
		r := model.CheckResult{ID: kind + ":" + target, Status: model.CheckStatusOK, Message: "allowed"}
		if !allowed {
			r.Status = model.CheckStatusWarning
			r.Message = "denied"
		}
		results = append(results, r)
	}

	for _, d := range domains {
		add("domain", d, m.AllowDomain(d))
	}
	for _, p := range readPaths {
		add("read", p, m.AllowRead(p))
	}
	for _, p := range writePaths {
		add("write", p, m.AllowWrite(p))
	}

	return results
}
