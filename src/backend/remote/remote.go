// Package remote implements the storage backend for snapshots kept on another
// host. One SSH connection is opened per invocation; file operations run over
// its SFTP subsystem and tree mirroring shells out to rsync over ssh.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"resource-backup/src/backend"
	"resource-backup/src/config"
	"resource-backup/src/errs"
	"resource-backup/src/tools"
)

const dialTimeout = 30 * time.Second

// Backend implements backend.Backend over SSH.
type Backend struct {
	cfg  config.Config
	user string
	log  zerolog.Logger

	sshpass tools.BinaryInfo
	client  *sftp.Client
	closers []io.Closer
}

var _ backend.Backend = (*Backend)(nil)

// Open connects to the configured host. A password_file needs sshpass on
// PATH for the rsync leg; its absence is a validation error.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Backend, error) {
	b := &Backend{cfg: cfg, user: username(cfg), log: log}
	if cfg.PasswordFile != "" {
		bin, err := tools.Detect(tools.SSHPass)
		if err != nil {
			return nil, errs.Validation("password_file is set but %v", err)
		}
		b.sshpass = bin
	}

	auth, err := b.authMethods()
	if err != nil {
		b.Close()
		return nil, err
	}
	hostKey, err := hostKeyCallback(cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	clientCfg := &ssh.ClientConfig{
		User:            b.user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         dialTimeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.SSHPort()))
	d := net.Dialer{Timeout: dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		b.Close()
		return nil, errs.Storage("connect", addr, err)
	}
	conn, chans, reqs, err := ssh.NewClientConn(nc, addr, clientCfg)
	if err != nil {
		nc.Close()
		b.Close()
		return nil, errs.Storage("ssh handshake", addr, err)
	}
	sshClient := ssh.NewClient(conn, chans, reqs)
	b.closers = append(b.closers, sshClient)

	sc, err := sftp.NewClient(sshClient)
	if err != nil {
		b.Close()
		return nil, errs.Storage("sftp", addr, err)
	}
	b.client = sc
	log.Debug().Str("addr", addr).Str("user", b.user).Msg("connected to storage host")
	return b, nil
}

// newWithClient wraps an already established SFTP session.
func newWithClient(cfg config.Config, sc *sftp.Client, log zerolog.Logger) *Backend {
	return &Backend{cfg: cfg, user: username(cfg), log: log, client: sc}
}

func username(cfg config.Config) string {
	if cfg.Username != "" {
		return cfg.Username
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func (b *Backend) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if b.cfg.PrivateKey != "" {
		signer, err := loadKey(b.cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if c, err := net.Dial("unix", sock); err == nil {
			b.closers = append(b.closers, c)
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(c).Signers))
		} else {
			b.log.Debug().Err(err).Msg("ssh-agent not reachable")
		}
	}
	if b.cfg.PasswordFile != "" {
		pw, err := readPassword(b.cfg.PasswordFile)
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.Password(pw))
	}
	if len(methods) == 0 {
		return nil, errs.Validation("no usable ssh credentials for %s", b.cfg.Host)
	}
	return methods, nil
}

func loadKey(file string) (ssh.Signer, error) {
	pem, err := os.ReadFile(file)
	if err != nil {
		return nil, errs.Validation("private_key: %v", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, errs.Validation("private_key %s is passphrase protected; load it into ssh-agent instead", file)
		}
		return nil, errs.Validation("private_key %s: %v", file, err)
	}
	return signer, nil
}

func readPassword(file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", errs.Validation("password_file: %v", err)
	}
	pw := strings.TrimRight(string(data), "\r\n")
	if pw == "" {
		return "", errs.Validation("password_file %s is empty", file)
	}
	return pw, nil
}

func knownHostsPath(cfg config.Config) string {
	if cfg.KnownHosts != "" {
		return cfg.KnownHosts
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

func hostKeyCallback(cfg config.Config) (ssh.HostKeyCallback, error) {
	if cfg.InsecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := knownHostsPath(cfg)
	if file == "" {
		return nil, errs.Validation("cannot locate known_hosts; set known_hosts or insecure_host_key")
	}
	cb, err := knownhosts.New(file)
	if err != nil {
		return nil, errs.Validation("known_hosts: %v", err)
	}
	return cb, nil
}

// ListMetadataFiles walks root over SFTP with the same rules as the local
// backend: no descent below a directory holding an info.json, an info.json
// directly in root is ignored, and a symlinked root is followed.
func (b *Backend) ListMetadataFiles(ctx context.Context, root string) ([]string, error) {
	if _, err := b.client.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.Storage("list", root, err)
	}
	walkRoot, err := b.resolveLink(root)
	if err != nil {
		return nil, errs.Storage("list", root, err)
	}
	var found []string
	w := b.client.Walk(walkRoot)
	for w.Step() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := w.Err(); err != nil {
			return nil, errs.Storage("list", w.Path(), err)
		}
		if !w.Stat().IsDir() || w.Path() == walkRoot {
			continue
		}
		candidate := path.Join(w.Path(), backend.MetadataFile)
		info, err := b.client.Stat(candidate)
		switch {
		case err == nil && info.Mode().IsRegular():
			rel := strings.TrimPrefix(candidate, strings.TrimSuffix(walkRoot, "/")+"/")
			found = append(found, path.Join(root, rel))
			w.SkipDir()
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return nil, errs.Storage("list", candidate, err)
		}
	}
	return found, nil
}

// maxLinkHops bounds symlink chains, as the kernel's ELOOP limit does.
const maxLinkHops = 40

// resolveLink follows p while it is a symlink. The SFTP walker lstats its
// root, so a linked storage root would otherwise yield nothing.
func (b *Backend) resolveLink(p string) (string, error) {
	for i := 0; i < maxLinkHops; i++ {
		info, err := b.client.Lstat(p)
		if err != nil {
			return "", err
		}
		if info.Mode()&fs.ModeSymlink == 0 {
			return p, nil
		}
		target, err := b.client.ReadLink(p)
		if err != nil {
			return "", err
		}
		if !path.IsAbs(target) {
			target = path.Join(path.Dir(p), target)
		}
		p = target
	}
	return "", fmt.Errorf("too many levels of symbolic links at %s", p)
}

func (b *Backend) ReadFile(_ context.Context, p string) ([]byte, error) {
	f, err := b.client.Open(p)
	if err != nil {
		return nil, errs.Storage("read", p, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errs.Storage("read", p, err)
	}
	return data, nil
}

func (b *Backend) WriteFile(_ context.Context, p string, data []byte) error {
	f, err := b.client.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return errs.Storage("write", p, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errs.Storage("write", p, err)
	}
	if err := f.Close(); err != nil {
		return errs.Storage("write", p, err)
	}
	return nil
}

func (b *Backend) Mkdir(_ context.Context, p string) error {
	if _, err := b.client.Lstat(p); err == nil {
		return errs.Storage("mkdir", p, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return errs.Storage("mkdir", p, err)
	}
	if err := b.client.MkdirAll(path.Dir(p)); err != nil {
		return errs.Storage("mkdir", path.Dir(p), err)
	}
	if err := b.client.Mkdir(p); err != nil {
		return errs.Storage("mkdir", p, err)
	}
	return nil
}

func (b *Backend) RemoveTree(ctx context.Context, p string) error {
	if err := b.removeAll(ctx, p); err != nil {
		return errs.Storage("remove", p, err)
	}
	return nil
}

func (b *Backend) removeAll(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := b.client.Lstat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return b.client.Remove(p)
	}
	children, err := b.client.ReadDir(p)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := b.removeAll(ctx, path.Join(p, c.Name())); err != nil {
			return err
		}
	}
	return b.client.RemoveDirectory(p)
}

// MirrorTree runs rsync over ssh between the local side and the storage host.
func (b *Backend) MirrorTree(ctx context.Context, src, dst string, opts backend.MirrorOptions) error {
	bin, err := tools.Detect(tools.Rsync)
	if err != nil {
		return errs.Storage("mirror", src+" -> "+dst, err)
	}
	cmd := b.rsyncCommand(bin, src, dst, opts)
	b.log.Debug().Str("cmd", cmd.String()).Msg("running rsync")
	if _, err := tools.Run(ctx, cmd); err != nil {
		return errs.Storage("mirror", src+" -> "+dst, err)
	}
	if opts.Progress != nil {
		fmt.Fprintln(opts.Progress)
	}
	return nil
}

func (b *Backend) rsyncCommand(rsync tools.BinaryInfo, src, dst string, opts backend.MirrorOptions) tools.Command {
	args := []string{"-a", "--protect-args"}
	if opts.DeleteExtraneous {
		args = append(args, "--delete")
	}
	if opts.Progress != nil {
		args = append(args, "--info=progress2")
	}
	args = append(args, "-e", b.sshCommand())

	if opts.Semantics == backend.ContentsOnly && !strings.HasSuffix(src, "/") {
		src += "/"
	}
	if opts.Direction == backend.FromStorage {
		src = b.remoteSpec(src)
	} else {
		dst = b.remoteSpec(dst)
	}
	args = append(args, src, dst)

	cmd := tools.Command{Bin: rsync, Args: args, Stream: opts.Progress}
	if b.cfg.PasswordFile != "" {
		cmd.Bin = b.sshpass
		cmd.Args = append([]string{"-f", b.cfg.PasswordFile, rsync.Path}, args...)
	}
	return cmd
}

// sshCommand is the remote shell handed to rsync -e, mirroring the
// connection settings of the SFTP session.
func (b *Backend) sshCommand() string {
	parts := []string{"ssh", "-p", strconv.Itoa(b.cfg.SSHPort())}
	if b.user != "" {
		parts = append(parts, "-l", quote(b.user))
	}
	if b.cfg.PrivateKey != "" {
		parts = append(parts, "-i", quote(b.cfg.PrivateKey))
	}
	if b.cfg.InsecureHostKey {
		parts = append(parts, "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null")
	} else if kh := knownHostsPath(b.cfg); kh != "" {
		parts = append(parts, "-o", quote("UserKnownHostsFile="+kh))
	}
	if b.cfg.PasswordFile == "" {
		parts = append(parts, "-o", "BatchMode=yes")
	}
	return strings.Join(parts, " ")
}

func (b *Backend) remoteSpec(p string) string {
	host := b.cfg.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return host + ":" + p
}

// quote single-quotes s for rsync's -e word splitting when needed.
func quote(s string) string {
	if !strings.ContainsAny(s, " \t'\"\\") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Close ends the SFTP session and the SSH connection.
func (b *Backend) Close() error {
	var errList []error
	if b.client != nil {
		if err := b.client.Close(); err != nil {
			errList = append(errList, err)
		}
		b.client = nil
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errList = append(errList, err)
		}
	}
	b.closers = nil
	return errors.Join(errList...)
}
