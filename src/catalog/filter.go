package catalog

import (
	"sort"
	"strings"

	"resource-backup/src/errs"
)

// Kind selects the optional predicate of a Query.
type Kind string

const (
	KindNone   Kind = ""
	KindName   Kind = "name"
	KindGroups Kind = "groups"
)

// Query narrows a catalog. Values are matched literally.
type Query struct {
	Kind   Kind
	Values []string
}

// ParseQuery validates a filter given on the command line, e.g.
// ["groups", "nightly", "db"]. No args means no predicate.
func ParseQuery(args []string) (Query, error) {
	if len(args) == 0 {
		return Query{}, nil
	}
	kind := Kind(strings.ToLower(strings.TrimSpace(args[0])))
	switch kind {
	case KindName, KindGroups:
	default:
		return Query{}, errs.Validation("unknown filter %q; expected %q or %q", args[0], KindName, KindGroups)
	}
	if len(args) < 2 {
		return Query{}, errs.Validation("filter %q requires a value", kind)
	}
	return Query{Kind: kind, Values: args[1:]}, nil
}

// Filter keeps the entries of baseName that satisfy q, ordered oldest first.
// The input slice is not modified.
func Filter(entries []Entry, baseName string, q Query) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.HasGroup(baseName) {
			out = append(out, e)
		}
	}

	switch q.Kind {
	case KindName:
		if len(q.Values) > 0 {
			out = keep(out, func(e Entry) bool { return e.Name == q.Values[0] })
		}
	case KindGroups:
		for _, g := range q.Values {
			out = keep(out, func(e Entry) bool { return e.HasGroup(g) })
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func keep(entries []Entry, pred func(Entry) bool) []Entry {
	out := entries[:0]
	for _, e := range entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}
