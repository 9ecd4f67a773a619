// Package catalog models snapshot metadata and turns a storage root into an
// ordered, filtered list of snapshots.
package catalog

import (
	"encoding/json"
	"errors"
	"time"
)

// TimestampLayout is fixed width and zero padded, so lexical order of
// created_at values is chronological order.
const TimestampLayout = "2006-01-02-15-04-05"

// Timestamp formats t in TimestampLayout.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Record is the persisted content of info.json. It carries exactly the
// fields written to storage.
type Record struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ACL         bool     `json:"acl"`
	CreatedAt   string   `json:"created_at"`
	Groups      []string `json:"groups"`
}

// Meta is computed while scanning and never persisted.
type Meta struct {
	BackupPath string `json:"backup_path"`
}

// Entry is a scanned snapshot.
type Entry struct {
	Record
	Meta Meta `json:"meta"`
}

// HasGroup reports whether g is one of the entry's groups.
func (e Entry) HasGroup(g string) bool {
	for _, have := range e.Groups {
		if have == g {
			return true
		}
	}
	return false
}

// Marshal renders the record as stored in info.json.
func (r Record) Marshal() ([]byte, error) {
	if r.Groups == nil {
		r.Groups = []string{}
	}
	return json.MarshalIndent(r, "", "  ")
}

var errMissingName = errors.New("metadata has no name")

// ParseRecord decodes info.json content. A document without a name is
// rejected.
func ParseRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	if r.Name == "" {
		return Record{}, errMissingName
	}
	return r, nil
}
