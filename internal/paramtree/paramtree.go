// Package paramtree implements the master's hierarchical parameter store:
// a tree of named values with wildcard subscriptions and change
// notification, mirroring the ROS Parameter Server API.
package paramtree

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/patwie/roscore-go/internal/logging"
	"github.com/patwie/roscore-go/internal/rosname"
)

type loggerFunc = interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// ErrNoSuchParam is returned by GetParam and SearchParam when the
// requested key does not resolve to any node in the tree.
var ErrNoSuchParam = errors.New("no such param")

// node is the tagged-variant tree cell: either a leaf holding an arbitrary
// XML-RPC scalar/array/struct value, or an inner node holding named
// children. The root is always an inner node, possibly with no children.
type node struct {
	leaf     bool
	value    interface{}
	children map[string]*node
}

func newInner() *node {
	return &node{children: map[string]*node{}}
}

// Notification describes one pending paramUpdate delivery: the target
// subscriber's caller API URL, the key it subscribed to, and the value now
// in effect at that key (an empty struct if the key no longer exists).
type Notification struct {
	CallerAPI string
	Key       string
	Value     interface{}
}

type subscription struct {
	callerID  string
	callerAPI string
	key       string
}

// Tree is a parameter tree guarded by a single mutex. Callers should treat
// the []Notification results returned by SetParam and DeleteParam as work
// to dispatch after releasing any lock of their own — the tree only
// computes the affected-subscriber set, it never performs I/O itself.
type Tree struct {
	mu   sync.RWMutex
	root *node
	subs []subscription
	log  loggerFunc
}

// New returns an empty parameter tree.
func New() *Tree {
	return &Tree{root: newInner(), log: logging.Module(logging.ModuleParam)}
}

func canonSegments(key string) []string {
	return rosname.Segments(rosname.Canonicalize(key))
}

// valueToNode converts an incoming XML-RPC value into tree structure. A
// struct (map[string]interface{}) becomes an inner node; everything else
// becomes a leaf.
func valueToNode(value interface{}) *node {
	if m, ok := value.(map[string]interface{}); ok {
		n := newInner()
		for k, v := range m {
			n.children[k] = valueToNode(v)
		}
		return n
	}
	return &node{leaf: true, value: value}
}

// nodeToValue converts tree structure back into an XML-RPC value.
func nodeToValue(n *node) interface{} {
	if n.leaf {
		return n.value
	}
	m := make(map[string]interface{}, len(n.children))
	for k, c := range n.children {
		m[k] = nodeToValue(c)
	}
	return m
}

func getRec(n *node, segs []string) (*node, bool) {
	cur := n
	for _, s := range segs {
		if cur.leaf {
			return nil, false
		}
		child, ok := cur.children[s]
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// setRec walks segs from n, creating and overwriting inner nodes as
// needed, and writes value at the addressed node. Any leaf found on the
// way down is discarded and replaced with a fresh inner node, per the
// param tree's leaf/inner replacement rule.
func setRec(n *node, segs []string, value interface{}) {
	if len(segs) == 0 {
		*n = *valueToNode(value)
		return
	}
	if n.leaf || n.children == nil {
		n.leaf = false
		n.children = map[string]*node{}
	}
	head, rest := segs[0], segs[1:]
	child, ok := n.children[head]
	if !ok {
		child = newInner()
		n.children[head] = child
	}
	setRec(child, rest, value)
}

// deleteRec removes the node addressed by segs and reports whether
// anything was removed. Now-empty inner ancestors are pruned on the way
// back up.
func deleteRec(n *node, segs []string) bool {
	if n.leaf || len(segs) == 0 {
		return false
	}
	head, rest := segs[0], segs[1:]
	child, ok := n.children[head]
	if !ok {
		return false
	}
	if len(rest) == 0 {
		delete(n.children, head)
		return true
	}
	removed := deleteRec(child, rest)
	if removed && !child.leaf && len(child.children) == 0 {
		delete(n.children, head)
	}
	return removed
}

// affectedLocked scans the subscription list for every subscriber whose
// watched key is an ancestor of, equal to, or a descendant of changedKey,
// and returns one Notification per match carrying the value now in effect
// at the subscriber's own key. Must be called with mu held.
func (t *Tree) affectedLocked(changedKey string) []Notification {
	changedSegs := canonSegments(changedKey)
	var out []Notification
	for _, sub := range t.subs {
		subSegs := canonSegments(sub.key)
		if !rosname.IsAncestorSegments(subSegs, changedSegs) && !rosname.IsAncestorSegments(changedSegs, subSegs) {
			continue
		}
		value := interface{}(map[string]interface{}{})
		if n, ok := getRec(t.root, subSegs); ok {
			value = nodeToValue(n)
		}
		out = append(out, Notification{CallerAPI: sub.callerAPI, Key: sub.key, Value: value})
	}
	return out
}

// SetParam writes value at key, replacing whatever was there (scalar or
// subtree), and returns the subscribers that must be notified.
func (t *Tree) SetParam(key string, value interface{}) []Notification {
	canon := rosname.Canonicalize(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	setRec(t.root, canonSegments(canon), value)
	notes := t.affectedLocked(canon)
	t.log.Debugf("setParam %s: notifying %d subscribers", canon, len(notes))
	return notes
}

// GetParam returns the leaf value or, for an inner node, the whole
// subtree as a nested struct.
func (t *Tree) GetParam(key string) (interface{}, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := getRec(t.root, canonSegments(key))
	if !ok {
		return nil, ErrNoSuchParam
	}
	return nodeToValue(n), nil
}

// HasParam reports whether key resolves to any node in the tree.
func (t *Tree) HasParam(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := getRec(t.root, canonSegments(key))
	return ok
}

// DeleteParam removes key (and prunes now-empty ancestors), returning
// whether anything existed to delete and the notifications to dispatch.
func (t *Tree) DeleteParam(key string) (existed bool, notifications []Notification) {
	canon := rosname.Canonicalize(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	existed = deleteRec(t.root, canonSegments(canon))
	if !existed {
		t.log.Debugf("deleteParam %s: no such param", canon)
		return false, nil
	}
	return true, t.affectedLocked(canon)
}

// GetParamNames returns every leaf key in the tree, depth-first, sorted
// for deterministic output.
func (t *Tree) GetParamNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var names []string
	var walk func(n *node, prefix string)
	walk = func(n *node, prefix string) {
		if n.leaf {
			names = append(names, prefix)
			return
		}
		for k, c := range n.children {
			walk(c, prefix+"/"+k)
		}
	}
	walk(t.root, "")
	sort.Strings(names)
	return names
}

// Count returns the number of leaf parameters currently stored.
func (t *Tree) Count() int {
	return len(t.GetParamNames())
}

// SearchParam starts at the namespace of callerID and walks up through
// ancestor namespaces, returning the fully-qualified name of the first
// scope in which key exists. The nearest enclosing scope wins.
func (t *Tree) SearchParam(callerID, key string) (string, error) {
	canonKey := rosname.Canonicalize(key)
	if rosname.IsGlobal(canonKey) {
		if t.HasParam(canonKey) {
			return canonKey, nil
		}
		return "", ErrNoSuchParam
	}

	ns := rosname.Namespace(callerID)
	for {
		candidate := rosname.Canonicalize(ns + canonKey)
		if t.HasParam(candidate) {
			return candidate, nil
		}
		if ns == rosname.GlobalNS {
			break
		}
		ns = rosname.Namespace(strings.TrimSuffix(ns, rosname.Sep))
	}
	return "", ErrNoSuchParam
}

// SubscribeParam records (callerID, callerAPI, key) as watching key and
// returns the value currently in effect there, or an empty struct if
// absent.
func (t *Tree) SubscribeParam(callerID, callerAPI, key string) interface{} {
	canon := rosname.Canonicalize(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	found := false
	for _, sub := range t.subs {
		if sub.callerID == callerID && sub.callerAPI == callerAPI && sub.key == canon {
			found = true
			break
		}
	}
	if !found {
		t.subs = append(t.subs, subscription{callerID: callerID, callerAPI: callerAPI, key: canon})
		t.log.Debugf("subscribeParam %s: %s watching %s", canon, callerID, callerAPI)
	}
	if n, ok := getRec(t.root, canonSegments(canon)); ok {
		return nodeToValue(n)
	}
	return map[string]interface{}{}
}

// UnsubscribeParam removes a prior subscription and reports whether one
// was found.
func (t *Tree) UnsubscribeParam(callerID, callerAPI, key string) bool {
	canon := rosname.Canonicalize(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, sub := range t.subs {
		if sub.callerID == callerID && sub.callerAPI == callerAPI && sub.key == canon {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return true
		}
	}
	return false
}
