package registry

import "testing"

func TestServiceRegisterAndLookup(t *testing.T) {
	r := NewServiceRegistry()
	r.Register("/svc1", "/add", "rosrpc://host:1", "http://svc1:2")

	uri, ok := r.Lookup("/add")
	if !ok || uri != "rosrpc://host:1" {
		t.Errorf("expected to find provider, got %q, %v", uri, ok)
	}
}

func TestServiceRegisterReplacesLastWriteWins(t *testing.T) {
	r := NewServiceRegistry()
	r.Register("/svc1", "/add", "rosrpc://host:1", "http://svc1:2")
	r.Register("/svc2", "/add", "rosrpc://host:2", "http://svc2:3")

	uri, ok := r.Lookup("/add")
	if !ok || uri != "rosrpc://host:2" {
		t.Errorf("expected the second registration to win, got %q, %v", uri, ok)
	}
}

func TestServiceUnregisterRequiresMatchingProvider(t *testing.T) {
	r := NewServiceRegistry()
	r.Register("/svc1", "/add", "rosrpc://host:1", "http://svc1:2")

	if r.Unregister("/svc2", "/add", "rosrpc://host:1") {
		t.Error("expected unregister from a non-owning caller to fail")
	}
	if r.Unregister("/svc1", "/add", "rosrpc://wrong") {
		t.Error("expected unregister with a mismatched service-api to fail")
	}
	if !r.Unregister("/svc1", "/add", "rosrpc://host:1") {
		t.Error("expected the matching unregister to succeed")
	}
	if _, ok := r.Lookup("/add"); ok {
		t.Error("expected no provider after successful unregister")
	}
}

func TestServiceLookupMissing(t *testing.T) {
	r := NewServiceRegistry()
	if _, ok := r.Lookup("/nope"); ok {
		t.Error("did not expect a provider for an unregistered service")
	}
}

func TestServiceLookupNode(t *testing.T) {
	r := NewServiceRegistry()
	r.Register("/svc1", "/add", "rosrpc://host:1", "http://svc1:2")
	uri, ok := r.LookupNode("/svc1")
	if !ok || uri != "http://svc1:2" {
		t.Errorf("expected to find /svc1's slave API, got %q, %v", uri, ok)
	}
}

func TestServiceSystemState(t *testing.T) {
	r := NewServiceRegistry()
	r.Register("/svc1", "/add", "rosrpc://host:1", "http://svc1:2")
	state := r.SystemState()
	if len(state) != 1 || state[0].Name != "/add" || len(state[0].CallerIDs) != 1 || state[0].CallerIDs[0] != "/svc1" {
		t.Errorf("unexpected system state: %v", state)
	}
}
