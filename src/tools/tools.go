// Package tools locates the external binaries the backends shell out to
// (rsync, sshpass, getfacl, setfacl) and runs them.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Binaries used by the tool.
const (
	Rsync   = "rsync"
	SSHPass = "sshpass"
	GetFACL = "getfacl"
	SetFACL = "setfacl"
)

// BinaryInfo describes a detected CLI binary.
type BinaryInfo struct {
	Name string
	Path string
}

// Command is a single invocation of an external binary.
type Command struct {
	Bin   BinaryInfo
	Args  []string
	Dir   string
	Stdin io.Reader
	// Stream, when set, receives stdout as it is produced instead of it
	// being buffered into the result.
	Stream io.Writer
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Bin.Path}, c.Args...), " ")
}

type lookPathFunc func(string) (string, error)
type runFunc func(context.Context, Command) (string, string, error)

var lookPath lookPathFunc = exec.LookPath
var runCommand runFunc = run

// Detect locates name on PATH.
func Detect(name string) (BinaryInfo, error) {
	exe, err := lookPath(name)
	if err != nil {
		return BinaryInfo{}, fmt.Errorf("%s binary not found on PATH: %w", name, err)
	}
	return BinaryInfo{Name: name, Path: exe}, nil
}

// Run executes the command and returns its captured stdout and stderr. A
// non-zero exit status is reported as an error carrying stderr.
func Run(ctx context.Context, c Command) (string, error) {
	stdout, stderr, err := runCommand(ctx, c)
	if err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			return stdout, fmt.Errorf("%s: %w", c.Bin.Name, err)
		}
		return stdout, fmt.Errorf("%s: %w: %s", c.Bin.Name, err, msg)
	}
	return stdout, nil
}

func run(ctx context.Context, c Command) (string, string, error) {
	cmd := exec.CommandContext(ctx, c.Bin.Path, c.Args...)
	cmd.Dir = c.Dir
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	if c.Stream != nil {
		cmd.Stdout = c.Stream
	} else {
		cmd.Stdout = &stdoutBuf
	}
	cmd.Stderr = &stderrBuf
	err := cmd.Run()
	return stdoutBuf.String(), stderrBuf.String(), err
}

// SetLookPathForTest allows tests to fake binary discovery.
func SetLookPathForTest(fn lookPathFunc) func() {
	prev := lookPath
	lookPath = fn
	return func() { lookPath = prev }
}

// SetRunForTest allows tests to stub out command execution.
func SetRunForTest(fn runFunc) func() {
	prev := runCommand
	runCommand = fn
	return func() { runCommand = prev }
}
