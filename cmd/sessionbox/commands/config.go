package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/sessionbox/internal/conventions"
	"github.com/slok/sessionbox/internal/enforcer"
	"github.com/slok/sessionbox/internal/enforcer/bwrap"
	"github.com/slok/sessionbox/internal/enforcer/passthrough"
	"github.com/slok/sessionbox/internal/enforcer/srt"
	"github.com/slok/sessionbox/internal/log"
	"github.com/slok/sessionbox/internal/policy"
	storageio "github.com/slok/sessionbox/internal/storage/io"
)

const (
	enforcerPassthrough = "passthrough"
	enforcerBwrap       = "bwrap"
	enforcerSRT         = "srt"

	srtSettingsDir = "srt"
)

// sandboxOptions are the options shared by the commands that build a local sandbox.
type sandboxOptions struct {
	SessionsDir   string
	Enforcer      string
	NestedSandbox bool
	PolicyFile    string
	BwrapBinary   string
	SRTBinary     string
	PipBinary     string
	NpmBinary     string
}

func registerSandboxOptions(cmd *kingpin.CmdClause, o *sandboxOptions) {
	cmd.Flag("sessions-dir", "Directory where session directories are created (default: <workspace-dir>/sessions).").Envar("SESSIONBOX_SESSIONS_DIR").StringVar(&o.SessionsDir)
	cmd.Flag("enforcer", "Sandbox policy enforcer.").Envar("SESSIONBOX_ENFORCER").Default(enforcerSRT).EnumVar(&o.Enforcer, enforcerPassthrough, enforcerBwrap, enforcerSRT)
	cmd.Flag("nested-sandbox", "The host is already sandboxed, let the enforcer relax duplicated protections.").Envar("SESSIONBOX_NESTED_SANDBOX").BoolVar(&o.NestedSandbox)
	cmd.Flag("policy-file", "YAML file with extra policy restrictions applied to every session.").Envar("SESSIONBOX_POLICY_FILE").StringVar(&o.PolicyFile)
	cmd.Flag("bwrap-binary", "Bubblewrap binary used by the bwrap enforcer.").Default("bwrap").StringVar(&o.BwrapBinary)
	cmd.Flag("srt-binary", "Sandbox runtime binary used by the srt enforcer.").Default("srt").StringVar(&o.SRTBinary)
	cmd.Flag("pip-binary", "Binary used to install python packages.").Default("pip").StringVar(&o.PipBinary)
	cmd.Flag("npm-binary", "Binary used to install node packages.").Default("npm").StringVar(&o.NpmBinary)
}

func (o sandboxOptions) sessionsDir(workspaceDir string) string {
	if o.SessionsDir != "" {
		return o.SessionsDir
	}
	return conventions.DefaultSessionsDir(workspaceDir)
}

func (o sandboxOptions) newEnforcer(workspaceDir string, logger log.Logger) (enforcer.Enforcer, error) {
	switch o.Enforcer {
	case enforcerPassthrough:
		logger.Warningf("Using passthrough enforcer, commands will run without confinement")
		return passthrough.Enforcer, nil
	case enforcerBwrap:
		e, err := bwrap.NewEnforcer(bwrap.EnforcerConfig{
			BwrapBinary: o.BwrapBinary,
			HomeDir:     homedir.HomeDir(),
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create bwrap enforcer: %w", err)
		}
		return e, nil
	case enforcerSRT:
		e, err := srt.NewEnforcer(srt.EnforcerConfig{
			Binary:      o.SRTBinary,
			SettingsDir: filepath.Join(workspaceDir, srtSettingsDir),
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create srt enforcer: %w", err)
		}
		return e, nil
	}

	return nil, fmt.Errorf("unknown enforcer %q", o.Enforcer)
}

func (o sandboxOptions) newPolicyBuilder(ctx context.Context) (*policy.Builder, error) {
	cfg := policy.BuilderConfig{}

	if o.PolicyFile != "" {
		path, err := filepath.Abs(o.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("invalid policy file path: %w", err)
		}

		// fs.FS paths are unrooted.
		repo := storageio.NewPolicyYAMLRepository(os.DirFS("/"))
		defaults, err := repo.GetPolicyDefaults(ctx, strings.TrimPrefix(path, "/"))
		if err != nil {
			return nil, fmt.Errorf("could not load policy file: %w", err)
		}
		cfg.Defaults = defaults
	}

	return policy.NewBuilder(cfg)
}
