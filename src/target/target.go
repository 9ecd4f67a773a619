package target

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Target is a parsed storage override given with --target.
// Examples: local:/mnt/nas/backups, ssh://backup@nas:2222/srv/backups
type Target struct {
	// Raw is the original input string.
	Raw string
	// Scheme is "local" or "ssh".
	Scheme string
	// Path is the cleaned absolute storage path.
	Path string

	// Host, Port and User are set for ssh targets. Port is 0 when omitted.
	Host string
	Port int
	User string
}

// SupportedSchemes lists the schemes the parser accepts. dir is kept as an
// alias of local.
var SupportedSchemes = map[string]struct{}{
	"local": {},
	"dir":   {},
	"ssh":   {},
}

// Parse parses a target like "local:/path" or "ssh://user@host:port/path".
func Parse(raw string) (Target, error) {
	t := Target{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return t, fmt.Errorf("target must not be empty; expected 'local:/path' or 'ssh://host/path'")
	}
	i := strings.Index(s, ":")
	if i <= 0 || i == len(s)-1 {
		return t, fmt.Errorf("invalid target %q; expected '<scheme>:<value>' (e.g., 'local:/path')", raw)
	}
	scheme := strings.ToLower(strings.TrimSpace(s[:i]))
	if _, ok := SupportedSchemes[scheme]; !ok {
		return t, fmt.Errorf("unsupported target scheme %q", scheme)
	}

	switch scheme {
	case "local", "dir":
		val := strings.TrimSpace(s[i+1:])
		if !strings.HasPrefix(val, "/") {
			return t, fmt.Errorf("local target must be an absolute path: %q", val)
		}
		t.Scheme = "local"
		t.Path = path.Clean(val)
	case "ssh":
		u, err := url.Parse(s)
		if err != nil {
			return t, fmt.Errorf("invalid ssh target %q: %w", raw, err)
		}
		if u.Hostname() == "" {
			return t, fmt.Errorf("ssh target %q has no host", raw)
		}
		if u.Path == "" {
			return t, fmt.Errorf("ssh target %q has no storage path", raw)
		}
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil || port < 1 || port > 65535 {
				return t, fmt.Errorf("ssh target %q has invalid port %q", raw, p)
			}
			t.Port = port
		}
		t.Scheme = "ssh"
		t.Host = u.Hostname()
		t.User = u.User.Username()
		t.Path = path.Clean(u.Path)
	}
	return t, nil
}

// IsRemote reports whether the target lives behind SSH.
func (t Target) IsRemote() bool { return t.Scheme == "ssh" }

// String returns a canonical string form of the target.
func (t Target) String() string {
	switch t.Scheme {
	case "local":
		return "local:" + t.Path
	case "ssh":
		host := t.Host
		if t.Port != 0 {
			host = fmt.Sprintf("%s:%d", host, t.Port)
		}
		if t.User != "" {
			host = t.User + "@" + host
		}
		return "ssh://" + host + t.Path
	}
	return t.Raw
}
