package sessionbox

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/slok/sessionbox/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary   string
	Enforcer string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "sessionbox"
	}

	// go test changes the CWD to the test package directory, relative paths would be wrong.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("SESSIONBOX_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("sessionbox binary not found at %q: %w", c.Binary, err)
	}

	if c.Enforcer == "" {
		c.Enforcer = "passthrough"
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "SESSIONBOX_INTEGRATION"
		envBinary     = "SESSIONBOX_INTEGRATION_BINARY"
		envEnforcer   = "SESSIONBOX_INTEGRATION_ENFORCER"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary:   os.Getenv(envBinary),
		Enforcer: os.Getenv(envEnforcer),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Server is a running sessionbox server.
type Server struct {
	Address      string
	WorkspaceDir string
	config       Config
}

// StartServer starts a sessionbox server on a free port, it's stopped when the test ends.
func StartServer(t *testing.T, config Config) Server {
	t.Helper()

	address, err := freeAddress()
	if err != nil {
		t.Fatalf("could not get a free address: %s", err)
	}

	workspace := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	args := []string{"--workspace-dir", workspace, "serve", "--listen-address", address, "--enforcer", config.Enforcer}
	cmd, logs, err := testutils.StartSessionbox(ctx, nil, config.Binary, args, false)
	if err != nil {
		cancel()
		t.Fatalf("could not start server: %s", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = cmd.Wait()
	})

	if err := waitHealthy(address, 10*time.Second); err != nil {
		t.Fatalf("server not healthy: %s, logs: %s", err, logs.String())
	}

	return Server{Address: address, WorkspaceDir: workspace, config: config}
}

// Run runs a client command against the server.
func (s Server) Run(ctx context.Context, cmdArgs string) (stdout, stderr []byte, err error) {
	args := fmt.Sprintf("--address %s %s", s.Address, cmdArgs)
	return testutils.RunSessionbox(ctx, nil, s.config.Binary, args, true)
}

// RunArgs runs a client command against the server preserving the arguments.
func (s Server) RunArgs(ctx context.Context, args ...string) (stdout, stderr []byte, err error) {
	args = append([]string{"--address", s.Address}, args...)
	return testutils.RunSessionboxArgs(ctx, nil, s.config.Binary, args, true)
}

// SessionsDir is the server sessions directory.
func (s Server) SessionsDir() string {
	return filepath.Join(s.WorkspaceDir, "sessions")
}

func freeAddress() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer l.Close()
	return l.Addr().String(), nil
}

func waitHealthy(address string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + address + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout after %s", timeout)
}
