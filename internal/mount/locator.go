// Package mount locates the sidecar's WebDAV endpoint in the OS mount
// table and drives mount/unmount operations against it.
package mount

import "strings"

// Record is one live entry of the OS mount table. Entries are sourced
// fresh on every query and never cached: mount state changes
// externally.
type Record struct {
	Name       string
	URI        string
	CanUnmount bool
}

// MatchResult classifies the outcome of locating a target endpoint in
// the mount table.
type MatchResult int

const (
	NotFound MatchResult = iota
	NotUnmountable
	Unmountable
)

func (r MatchResult) String() string {
	switch r {
	case Unmountable:
		return "unmountable"
	case NotUnmountable:
		return "not-unmountable"
	default:
		return "not-found"
	}
}

// Locate matches target against the mount table. URIs are compared
// with a trailing slash appended (the mount enumeration always reports
// trailing-slash-terminated URIs; the locally constructed target may
// lack one). When no exact match exists, a fallback pass matches any
// entry containing the target's ":<port>" token, tolerating a
// different host representation for the same endpoint (e.g. 127.0.0.1
// vs localhost). First match wins in both passes.
func Locate(mounts []Record, target string) (Record, MatchResult) {
	normalizedTarget := normalizeURI(target)
	for _, m := range mounts {
		if normalizeURI(m.URI) == normalizedTarget {
			return m, flagResult(m)
		}
	}

	if port := targetPort(target); port != "" {
		needle := ":" + port
		for _, m := range mounts {
			if strings.Contains(m.URI, needle) {
				return m, flagResult(m)
			}
		}
	}
	return Record{}, NotFound
}

func flagResult(m Record) MatchResult {
	if m.CanUnmount {
		return Unmountable
	}
	return NotUnmountable
}

func normalizeURI(uri string) string {
	if strings.HasSuffix(uri, "/") {
		return uri
	}
	return uri + "/"
}

// targetPort extracts the trailing ":<port>" digits from target,
// ignoring a trailing slash. Empty when target carries no port.
func targetPort(target string) string {
	t := strings.TrimSuffix(target, "/")
	i := strings.LastIndexByte(t, ':')
	if i < 0 || i == len(t)-1 {
		return ""
	}
	port := t[i+1:]
	for _, r := range port {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return port
}
