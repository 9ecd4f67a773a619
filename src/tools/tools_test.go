package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDetectMissingBinary(t *testing.T) {
	reset := SetLookPathForTest(func(string) (string, error) {
		return "", errors.New("executable file not found in $PATH")
	})
	defer reset()

	if _, err := Detect(SSHPass); err == nil || !strings.Contains(err.Error(), "sshpass") {
		t.Fatalf("expected sshpass lookup error, got %v", err)
	}
}

func TestDetectFound(t *testing.T) {
	reset := SetLookPathForTest(func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	})
	defer reset()

	bin, err := Detect(Rsync)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if bin.Path != "/usr/bin/rsync" || bin.Name != Rsync {
		t.Fatalf("unexpected binary info: %#v", bin)
	}
}

func TestRunIncludesStderrOnFailure(t *testing.T) {
	reset := SetRunForTest(func(context.Context, Command) (string, string, error) {
		return "", "rsync: connection unexpectedly closed\n", errors.New("exit status 255")
	})
	defer reset()

	_, err := Run(context.Background(), Command{Bin: BinaryInfo{Name: Rsync, Path: "/usr/bin/rsync"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "connection unexpectedly closed") {
		t.Fatalf("stderr missing from error: %v", err)
	}
}

func TestRunRealBinary(t *testing.T) {
	bin, err := Detect("true")
	if err != nil {
		t.Skipf("true not available: %v", err)
	}
	if _, err := Run(context.Background(), Command{Bin: bin}); err != nil {
		t.Fatalf("run true: %v", err)
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Bin: BinaryInfo{Name: GetFACL, Path: "/usr/bin/getfacl"}, Args: []string{"-R", "."}}
	if got := c.String(); got != "/usr/bin/getfacl -R ." {
		t.Fatalf("String() = %q", got)
	}
}
