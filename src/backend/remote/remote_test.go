package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"resource-backup/src/backend"
	"resource-backup/src/config"
	"resource-backup/src/errs"
	"resource-backup/src/tools"
)

func remoteConfig() config.Config {
	return config.Config{
		Type:         config.TypeRemote,
		Name:         "www",
		ResourceType: config.ResourceDirectory,
		ResourcePath: "/srv/www",
		StoragePath:  "/backups",
		Host:         "nas.lan",
		Port:         2222,
		Username:     "backup",
		PrivateKey:   "/keys/id_ed25519",
		KnownHosts:   "/etc/ssh/known",
	}
}

// newPipeBackend serves the local filesystem over an in-process SFTP server.
func newPipeBackend(t *testing.T) *Backend {
	t.Helper()
	c1, c2 := net.Pipe()
	server, err := sftp.NewServer(c1)
	if err != nil {
		t.Fatalf("sftp server: %v", err)
	}
	go server.Serve()
	client, err := sftp.NewClientPipe(c2, c2)
	if err != nil {
		t.Fatalf("sftp client: %v", err)
	}
	b := newWithClient(remoteConfig(), client, zerolog.Nop())
	t.Cleanup(func() {
		b.Close()
		server.Close()
	})
	return b
}

func mustWrite(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListMetadataFilesOverSFTP(t *testing.T) {
	b := newPipeBackend(t)
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "www-2024-01-01-00-00-00", "info.json"), "{}")
	mustWrite(t, filepath.Join(root, "www-2024-01-01-00-00-00", "data", "info.json"), "{}")
	mustWrite(t, filepath.Join(root, "nested", "www-2024-02-01-00-00-00", "info.json"), "{}")
	mustWrite(t, filepath.Join(root, "orphan", "data", "file"), "x")

	got, err := b.ListMetadataFiles(context.Background(), root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := map[string]bool{
		filepath.Join(root, "www-2024-01-01-00-00-00", "info.json"):           true,
		filepath.Join(root, "nested", "www-2024-02-01-00-00-00", "info.json"): true,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for _, p := range got {
		if !want[p] {
			t.Fatalf("unexpected path %s in %v", p, got)
		}
	}
}

func TestListMissingRoot(t *testing.T) {
	b := newPipeBackend(t)
	got, err := b.ListMetadataFiles(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestFileOpsOverSFTP(t *testing.T) {
	b := newPipeBackend(t)
	ctx := context.Background()
	root := t.TempDir()
	snap := filepath.Join(root, "deep", "www-2024-01-01-00-00-00")

	if err := b.Mkdir(ctx, snap); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	err := b.Mkdir(ctx, snap)
	if !errors.Is(err, fs.ErrExist) || !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("second mkdir: %v", err)
	}

	payload := []byte{0x00, 0xff, '\n', 'x'}
	meta := filepath.Join(snap, "info.json")
	if err := b.WriteFile(ctx, meta, []byte("longer content first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := b.WriteFile(ctx, meta, payload); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := b.ReadFile(ctx, meta)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("read back %q", got)
	}

	mustWrite(t, filepath.Join(snap, "data", "a", "b.txt"), "b")
	if err := b.RemoveTree(ctx, snap); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(snap); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("snapshot still present: %v", err)
	}
	if err := b.RemoveTree(ctx, snap); err != nil {
		t.Fatalf("remove of missing path: %v", err)
	}

	_, err = b.ReadFile(ctx, meta)
	if !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("read missing: %v", err)
	}
}

func TestRsyncCommandToStorage(t *testing.T) {
	b := newWithClient(remoteConfig(), nil, zerolog.Nop())
	rsync := tools.BinaryInfo{Name: "rsync", Path: "/usr/bin/rsync"}
	cmd := b.rsyncCommand(rsync, "/srv/www", "/backups/www-1/data", backend.MirrorOptions{
		Direction:        backend.ToStorage,
		Semantics:        backend.ContentsOnly,
		DeleteExtraneous: true,
	})
	want := []string{
		"-a", "--protect-args", "--delete",
		"-e", "ssh -p 2222 -l backup -i /keys/id_ed25519 -o UserKnownHostsFile=/etc/ssh/known -o BatchMode=yes",
		"/srv/www/", "nas.lan:/backups/www-1/data",
	}
	if cmd.Bin.Path != "/usr/bin/rsync" || !reflect.DeepEqual(cmd.Args, want) {
		t.Fatalf("got %s %v", cmd.Bin.Path, cmd.Args)
	}
}

func TestRsyncCommandFromStorageWholeEntry(t *testing.T) {
	cfg := remoteConfig()
	cfg.InsecureHostKey = true
	b := newWithClient(cfg, nil, zerolog.Nop())
	var progress strings.Builder
	cmd := b.rsyncCommand(tools.BinaryInfo{Name: "rsync", Path: "rsync"}, "/backups/etc-1/data", "/etc/hosts", backend.MirrorOptions{
		Direction: backend.FromStorage,
		Semantics: backend.WholeEntry,
		Progress:  &progress,
	})
	args := cmd.Args
	if args[len(args)-2] != "nas.lan:/backups/etc-1/data" || args[len(args)-1] != "/etc/hosts" {
		t.Fatalf("endpoints: %v", args)
	}
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "--delete") {
		t.Fatalf("unexpected --delete: %v", args)
	}
	if !strings.Contains(joined, "--info=progress2") || cmd.Stream == nil {
		t.Fatalf("progress not wired: %v", args)
	}
	if !strings.Contains(joined, "StrictHostKeyChecking=no") {
		t.Fatalf("insecure host key not passed: %v", args)
	}
}

func TestRsyncCommandPasswordFile(t *testing.T) {
	cfg := remoteConfig()
	cfg.PrivateKey = ""
	cfg.PasswordFile = "/etc/backup/pw"
	b := newWithClient(cfg, nil, zerolog.Nop())
	b.sshpass = tools.BinaryInfo{Name: "sshpass", Path: "/usr/bin/sshpass"}
	cmd := b.rsyncCommand(tools.BinaryInfo{Name: "rsync", Path: "/usr/bin/rsync"}, "/a", "/b", backend.MirrorOptions{})
	if cmd.Bin.Name != "sshpass" {
		t.Fatalf("not wrapped: %s", cmd)
	}
	if !reflect.DeepEqual(cmd.Args[:3], []string{"-f", "/etc/backup/pw", "/usr/bin/rsync"}) {
		t.Fatalf("args: %v", cmd.Args)
	}
	if strings.Contains(cmd.String(), "BatchMode") {
		t.Fatalf("BatchMode blocks password prompts: %s", cmd)
	}
}

func TestSSHCommandQuotesPaths(t *testing.T) {
	cfg := remoteConfig()
	cfg.PrivateKey = "/keys/my key"
	b := newWithClient(cfg, nil, zerolog.Nop())
	if got := b.sshCommand(); !strings.Contains(got, "-i '/keys/my key'") {
		t.Fatalf("key path not quoted: %s", got)
	}
}

func TestRemoteSpecIPv6(t *testing.T) {
	cfg := remoteConfig()
	cfg.Host = "fd00::1"
	b := newWithClient(cfg, nil, zerolog.Nop())
	if got := b.remoteSpec("/x"); got != "[fd00::1]:/x" {
		t.Fatalf("got %s", got)
	}
}

func TestMirrorTreeRunsRsync(t *testing.T) {
	defer tools.SetLookPathForTest(func(name string) (string, error) { return "/usr/bin/" + name, nil })()
	var ran tools.Command
	defer tools.SetRunForTest(func(_ context.Context, c tools.Command) (string, string, error) {
		ran = c
		return "", "", nil
	})()
	b := newWithClient(remoteConfig(), nil, zerolog.Nop())
	err := b.MirrorTree(context.Background(), "/srv/www", "/backups/x/data", backend.MirrorOptions{Semantics: backend.ContentsOnly})
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if ran.Bin.Path != "/usr/bin/rsync" {
		t.Fatalf("ran %s", ran)
	}
}

func TestMirrorTreeFailureIsStorageError(t *testing.T) {
	defer tools.SetLookPathForTest(func(name string) (string, error) { return "/usr/bin/" + name, nil })()
	defer tools.SetRunForTest(func(context.Context, tools.Command) (string, string, error) {
		return "", "connection refused", errors.New("exit status 255")
	})()
	b := newWithClient(remoteConfig(), nil, zerolog.Nop())
	err := b.MirrorTree(context.Background(), "/a", "/b", backend.MirrorOptions{})
	if !errors.Is(err, errs.ErrStorage) || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("got %v", err)
	}
}

func TestOpenRequiresSSHPassForPasswordFile(t *testing.T) {
	defer tools.SetLookPathForTest(func(name string) (string, error) {
		return "", errors.New("executable file not found in $PATH")
	})()
	cfg := remoteConfig()
	cfg.PasswordFile = "/etc/backup/pw"
	_, err := Open(context.Background(), cfg, zerolog.Nop())
	if !errors.Is(err, errs.ErrValidation) || !strings.Contains(err.Error(), "sshpass") {
		t.Fatalf("got %v", err)
	}
}

func TestLoadKey(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad")
	mustWrite(t, bad, "not a key")
	if _, err := loadKey(bad); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("bad key: %v", err)
	}
	if _, err := loadKey(filepath.Join(dir, "absent")); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("missing key: %v", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "test")
	if err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "id_ed25519")
	mustWrite(t, good, string(pem.EncodeToMemory(block)))
	signer, err := loadKey(good)
	if err != nil {
		t.Fatalf("good key: %v", err)
	}
	if signer.PublicKey().Type() != ssh.KeyAlgoED25519 {
		t.Fatalf("key type %s", signer.PublicKey().Type())
	}
}

func TestReadPassword(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "pw")
	mustWrite(t, p, "s3cret\n")
	pw, err := readPassword(p)
	if err != nil || pw != "s3cret" {
		t.Fatalf("got %q, %v", pw, err)
	}
	empty := filepath.Join(dir, "empty")
	mustWrite(t, empty, "\n")
	if _, err := readPassword(empty); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("empty password: %v", err)
	}
}

func TestHostKeyCallback(t *testing.T) {
	cfg := remoteConfig()
	cfg.KnownHosts = filepath.Join(t.TempDir(), "missing")
	if _, err := hostKeyCallback(cfg); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("missing known_hosts: %v", err)
	}
	cfg.InsecureHostKey = true
	if cb, err := hostKeyCallback(cfg); err != nil || cb == nil {
		t.Fatalf("insecure: %v", err)
	}
}

func TestListMetadataFilesSymlinkedRootOverSFTP(t *testing.T) {
	b := newPipeBackend(t)
	base := t.TempDir()
	realRoot := filepath.Join(base, "storage-real")
	mustWrite(t, filepath.Join(realRoot, "www-2024-01-01-00-00-00", "info.json"), "{}")
	root := filepath.Join(base, "storage")
	if err := os.Symlink("storage-real", root); err != nil {
		t.Fatal(err)
	}
	got, err := b.ListMetadataFiles(context.Background(), root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := filepath.Join(root, "www-2024-01-01-00-00-00", "info.json")
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %v, want [%s]", got, want)
	}
}

func TestListMetadataFilesIgnoresInfoAtRootOverSFTP(t *testing.T) {
	b := newPipeBackend(t)
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "info.json"), "{}")
	mustWrite(t, filepath.Join(root, "www-2024-01-01-00-00-00", "info.json"), "{}")
	got, err := b.ListMetadataFiles(context.Background(), root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0] != filepath.Join(root, "www-2024-01-01-00-00-00", "info.json") {
		t.Fatalf("got %v", got)
	}
}
