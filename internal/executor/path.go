package executor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrExecutableNotFound is returned when a command executable can't be resolved.
var ErrExecutableNotFound = errors.New("executable file not found")

// shellBuiltins are the POSIX shell builtins and reserved words, they are not looked up in PATH.
var shellBuiltins = map[string]bool{
	":": true, ".": true, "[": true, "alias": true, "bg": true, "break": true, "cd": true,
	"command": true, "continue": true, "echo": true, "eval": true, "exec": true, "exit": true,
	"export": true, "false": true, "fc": true, "fg": true, "getopts": true, "hash": true,
	"jobs": true, "kill": true, "local": true, "printf": true, "pwd": true, "read": true,
	"readonly": true, "return": true, "set": true, "shift": true, "source": true, "test": true,
	"times": true, "trap": true, "true": true, "type": true, "ulimit": true, "umask": true,
	"unalias": true, "unset": true, "wait": true,
	"!": true, "{": true, "}": true, "case": true, "do": true, "done": true, "elif": true,
	"else": true, "esac": true, "fi": true, "for": true, "if": true, "in": true, "then": true,
	"until": true, "while": true,
}

// shellSpecialChars make a line more than a plain list of words.
const shellSpecialChars = "|&;<>()$`\\\"'*?[]#~=%{}"

// externalCommand returns the executable of a command line when the line is a plain list
// of words and the first one is not a shell builtin.
func externalCommand(line string) (string, bool) {
	if strings.ContainsAny(line, shellSpecialChars) || strings.Contains(line, "\n") {
		return "", false
	}

	fields := strings.Fields(line)
	if len(fields) == 0 || shellBuiltins[fields[0]] {
		return "", false
	}

	return fields[0], true
}

func resolveCwd(sessionDir, cwd string) string {
	if cwd == "" {
		return sessionDir
	}
	if filepath.IsAbs(cwd) {
		return filepath.Clean(cwd)
	}
	return filepath.Join(sessionDir, cwd)
}

// lookPath resolves an executable like a shell would, but using the PATH of the command
// environment instead of the current process one.
func lookPath(name, cwd string, env []string) (string, error) {
	if strings.Contains(name, "/") {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}
		if err := checkExecutable(path); err != nil {
			return "", fmt.Errorf("%q: %w", name, err)
		}
		return path, nil
	}

	for _, dir := range filepath.SplitList(envValue(env, "PATH")) {
		if dir == "" {
			dir = cwd
		} else if !filepath.IsAbs(dir) {
			dir = filepath.Join(cwd, dir)
		}
		path := filepath.Join(dir, name)
		if checkExecutable(path) == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%q: %w in $PATH", name, ErrExecutableNotFound)
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrExecutableNotFound
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory: %w", ErrExecutableNotFound)
	}
	if info.Mode()&0o111 == 0 {
		return fs.ErrPermission
	}
	return nil
}

func envValue(env []string, key string) string {
	value := ""
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			value = v
		}
	}
	return value
}
