// Package registry implements the master's topic and service registries:
// in-memory maps from a name to the set of nodes currently bound to it,
// each guarded by its own mutex.
package registry

import "github.com/patwie/roscore-go/internal/rosset"

// bindingSet holds at most one URI per CallerId for a single name (a
// topic's publisher set, its subscriber set, ...). Re-registering a
// CallerId replaces its URI, matching invariant 1.
type bindingSet map[string]string

func (s bindingSet) put(callerID, uri string) {
	s[callerID] = uri
}

// removeByCaller drops the binding for callerID regardless of which URI
// it currently holds, mirroring the reference master's unregister
// semantics: the caller_api argument identifies the caller, it is not
// itself part of the match.
func (s bindingSet) removeByCaller(callerID string) bool {
	if _, ok := s[callerID]; !ok {
		return false
	}
	delete(s, callerID)
	return true
}

func (s bindingSet) callerIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return rosset.Unique(ids)
}

func (s bindingSet) uris() []string {
	uris := make([]string, 0, len(s))
	for _, uri := range s {
		uris = append(uris, uri)
	}
	return rosset.Unique(uris)
}
