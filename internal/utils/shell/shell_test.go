package shell_test

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/sessionbox/internal/utils/shell"
)

func TestJoin(t *testing.T) {
	tests := map[string]struct {
		parts  []string
		expCmd string
	}{
		"Simple words should be quoted.": {
			parts:  []string{"echo", "hello"},
			expCmd: `'echo' 'hello'`,
		},

		"Single quotes should be escaped.": {
			parts:  []string{"echo", "it's"},
			expCmd: `'echo' 'it'"'"'s'`,
		},

		"Shell metacharacters should be kept literal.": {
			parts:  []string{"echo", "$HOME; rm -rf /"},
			expCmd: `'echo' '$HOME; rm -rf /'`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expCmd, shell.Join(test.parts...))
		})
	}
}

func TestJoinRoundTripOnShell(t *testing.T) {
	out, err := exec.Command("/bin/sh", "-c", shell.Join("printf", "%s|", "a b", "it's", "$HOME")).Output()
	require.NoError(t, err)
	assert.Equal(t, "a b|it's|$HOME|", string(out))
}
