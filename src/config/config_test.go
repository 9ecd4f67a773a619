package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resource-backup/src/errs"
	"resource-backup/src/target"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeConfig(t, "backup.yaml", `
type: local
name: www
description: web root
acl: true
resource_type: directory
resource_path: /srv/www/
storage_path: /mnt/backups
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "www" || !cfg.ACL || !cfg.IsDirectory() || cfg.IsRemote() {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ResourcePath != "/srv/www" {
		t.Fatalf("resource path not cleaned: %q", cfg.ResourcePath)
	}
}

func TestLoadJSONRemote(t *testing.T) {
	p := writeConfig(t, "backup.json", `{
  "type": "remote",
  "name": "etc",
  "resource_type": "file",
  "resource_path": "/etc/hosts",
  "storage_path": "/srv/backups",
  "host": "nas.lan",
  "port": 2222,
  "username": "backup",
  "private_key": "/root/.ssh/id_ed25519"
}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsRemote() || cfg.SSHPort() != 2222 || cfg.Username != "backup" || cfg.IsDirectory() {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeConfig(t, "backup.yaml", `
name: www
resource_type: directory
resource_path: /srv/www
storage_path: /mnt/backups
`)
	t.Setenv("BACKUP_STORAGE_PATH", "/mnt/other")
	t.Setenv("BACKUP_ACL", "true")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoragePath != "/mnt/other" || !cfg.ACL {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Type != TypeLocal {
		t.Fatalf("default type not applied: %q", cfg.Type)
	}
}

func TestValidationErrors(t *testing.T) {
	cases := map[string]string{
		"unknown type": `
type: ftp
name: www
resource_type: directory
resource_path: /srv/www
storage_path: /mnt/backups
`,
		"unknown resource type": `
name: www
resource_type: socket
resource_path: /srv/www
storage_path: /mnt/backups
`,
		"remote without host": `
type: remote
name: www
resource_type: directory
resource_path: /srv/www
storage_path: /mnt/backups
private_key: /root/.ssh/id_rsa
`,
		"missing name": `
resource_type: directory
resource_path: /srv/www
storage_path: /mnt/backups
`,
		"name with slash": `
name: www/x
resource_type: directory
resource_path: /srv/www
storage_path: /mnt/backups
`,
	}
	for label, content := range cases {
		p := writeConfig(t, "backup.yaml", content)
		_, err := Load(p)
		if !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("%s: want validation error, got %v", label, err)
		}
	}
}

func TestValidationMessageNamesKey(t *testing.T) {
	p := writeConfig(t, "backup.yaml", `
name: www
resource_type: directory
resource_path: /srv/www
`)
	_, err := Load(p)
	if err == nil || !strings.Contains(err.Error(), "storage_path is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestWithTarget(t *testing.T) {
	base := Config{
		Type:         TypeLocal,
		Name:         "www",
		ResourceType: ResourceDirectory,
		ResourcePath: "/srv/www",
		StoragePath:  "/mnt/backups",
		PrivateKey:   "/root/.ssh/id_ed25519",
		Port:         2200,
	}
	tgt, err := target.Parse("ssh://backup@nas/srv/backups")
	if err != nil {
		t.Fatal(err)
	}
	got, err := base.WithTarget(tgt)
	if err != nil {
		t.Fatalf("WithTarget: %v", err)
	}
	if !got.IsRemote() || got.Host != "nas" || got.Username != "backup" || got.StoragePath != "/srv/backups" || got.SSHPort() != 2200 {
		t.Fatalf("unexpected config: %+v", got)
	}
	if base.IsRemote() {
		t.Fatalf("original config mutated")
	}

	tgt, _ = target.Parse("local:/tmp/x")
	got, err = got.WithTarget(tgt)
	if err != nil || got.IsRemote() || got.StoragePath != "/tmp/x" {
		t.Fatalf("local override: %+v %v", got, err)
	}
}
