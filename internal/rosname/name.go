// Package rosname implements ROS graph-resource-name canonicalization and
// resolution, used by the master facade to turn caller-supplied topic,
// service, and parameter names into canonical absolute names before they
// ever reach a registry.
package rosname

import (
	"regexp"
	"strings"
)

const (
	// Sep separates name components.
	Sep = "/"
	// GlobalNS is the root namespace.
	GlobalNS = "/"
	// PrivateNS marks a name as private to the caller's own namespace.
	PrivateNS = "~"
)

// identifierRe matches a single ROS name component: a letter followed by
// any run of word characters. IsValid applies it per path segment rather
// than as one whole-string pattern, so a bad segment anywhere fails fast
// without needing a single regexp to describe the entire grammar.
var identifierRe = regexp.MustCompile(`^[a-zA-Z]\w*$`)

// Namespace returns the namespace containing name, always ending in "/".
func Namespace(name string) string {
	trimmed := strings.TrimSuffix(name, Sep)
	if trimmed == "" {
		return GlobalNS
	}
	segs := strings.Split(trimmed, Sep)
	if len(segs) <= 1 {
		return GlobalNS
	}
	prefix := strings.Join(segs[:len(segs)-1], Sep)
	if prefix == "" {
		return GlobalNS
	}
	return prefix + Sep
}

// IsValid reports whether name is syntactically a legal ROS graph resource
// name (relative, global, or private): an optional "/" or "~" marker
// followed by one or more "/"-separated identifier segments, with no
// trailing separator.
func IsValid(name string) bool {
	if name == "" || name == GlobalNS || name == PrivateNS {
		return true
	}
	body := name
	if IsGlobal(body) || IsPrivate(body) {
		body = body[1:]
	}
	if body == "" {
		return false
	}
	for _, seg := range strings.Split(body, Sep) {
		if !identifierRe.MatchString(seg) {
			return false
		}
	}
	return true
}

// IsGlobal reports whether name is already an absolute, global name.
func IsGlobal(name string) bool {
	return strings.HasPrefix(name, GlobalNS)
}

// IsPrivate reports whether name is private (prefixed with "~").
func IsPrivate(name string) bool {
	return strings.HasPrefix(name, PrivateNS)
}

// Canonicalize collapses repeated separators and strips a trailing
// separator (except for the root itself), per invariant 5 of spec.md.
func Canonicalize(name string) string {
	if name == "" || name == GlobalNS {
		return name
	}
	joined := strings.Join(Segments(name), Sep)
	if IsGlobal(name) {
		return GlobalNS + joined
	}
	return joined
}

// Resolve turns name into a canonical, absolute name for the requesting
// callerID: relative names resolve against callerID's namespace, private
// names against callerID itself. Names already global are only
// canonicalized.
func Resolve(name string, callerID string) string {
	if len(name) == 0 {
		return Namespace(callerID)
	}
	canon := Canonicalize(name)
	if IsGlobal(canon) {
		return canon
	}
	if IsPrivate(canon) {
		return Canonicalize(callerID + Sep + canon[1:])
	}
	return Namespace(callerID) + canon
}

// Segments splits a canonical absolute name into its non-empty path
// components, e.g. "/a/b/c" -> ["a", "b", "c"].
func Segments(name string) []string {
	var out []string
	for _, s := range strings.Split(name, Sep) {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// IsAncestorSegments reports whether segment path a is a prefix of segment
// path b, in the segment-wise (not string-wise) sense required by
// invariant 7: "/foo" is not a prefix of "/foobar".
func IsAncestorSegments(a, b []string) bool {
	if len(a) > len(b) {
		return false
	}
	for i, seg := range a {
		if b[i] != seg {
			return false
		}
	}
	return true
}
