package master

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/patwie/roscore-go/internal/notifier"
)

type recordedNotify struct {
	url    string
	method string
	args   []interface{}
}

// newTestMaster builds a Master whose notifier calls are captured in memory
// instead of going out over the network.
func newTestMaster() (*Master, *[]recordedNotify, *sync.Mutex) {
	notify := notifier.New(4, 1000, time.Second)
	var calls []recordedNotify
	var mu sync.Mutex
	done := make(chan struct{}, 256)
	notify.SetCall(func(timeout time.Duration, url, method string, args ...interface{}) (interface{}, error) {
		mu.Lock()
		calls = append(calls, recordedNotify{url: url, method: method, args: args})
		mu.Unlock()
		done <- struct{}{}
		return nil, nil
	})
	m := New("http://master:11311", notify, NewMetrics())
	return m, &calls, &mu
}

func waitFor(t *testing.T, mu *sync.Mutex, calls *[]recordedNotify, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(*calls)
		mu.Unlock()
		if n >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d notifier calls", want)
}

func triple(t *testing.T, v interface{}, err error) []interface{} {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	tr, ok := v.([]interface{})
	if !ok {
		t.Fatalf("expected a 3-element result triple, got %#v", v)
	}
	return tr
}

// S1: registerPublisher then registerSubscriber; the subscriber must
// receive a publisherUpdate carrying the publisher's URI.
func TestScenarioS1PublisherThenSubscriber(t *testing.T) {
	m, calls, mu := newTestMaster()

	res, err := m.registerPublisher("/talker", "/chatter", "std_msgs/String", "http://h:1")
	got := triple(t, res, err)
	if got[0] != 1 {
		t.Fatalf("registerPublisher: expected success, got %v", got)
	}

	res, err = m.registerSubscriber("/listener", "/chatter", "std_msgs/String", "http://h:2")
	got = triple(t, res, err)
	if got[0] != 1 {
		t.Fatalf("registerSubscriber: expected success, got %v", got)
	}
	pubs, ok := got[2].([]string)
	if !ok || len(pubs) != 1 || pubs[0] != "http://h:1" {
		t.Fatalf("registerSubscriber: expected [http://h:1], got %#v", got[2])
	}

	waitFor(t, mu, calls, 1)
	mu.Lock()
	defer mu.Unlock()
	c := (*calls)[0]
	if c.url != "http://h:2" || c.method != "publisherUpdate" {
		t.Fatalf("unexpected notify call: %#v", c)
	}
	if c.args[1] != "/chatter" {
		t.Fatalf("expected topic /chatter, got %v", c.args[1])
	}
	list, ok := c.args[2].([]string)
	if !ok || len(list) != 1 || list[0] != "http://h:1" {
		t.Fatalf("expected publisher list [http://h:1], got %#v", c.args[2])
	}
}

// S2: unregistering the sole publisher notifies the subscriber with an
// empty publisher list.
func TestScenarioS2UnregisterPublisherNotifiesEmptyList(t *testing.T) {
	m, calls, mu := newTestMaster()
	m.registerPublisher("/talker", "/chatter", "std_msgs/String", "http://h:1")
	m.registerSubscriber("/listener", "/chatter", "std_msgs/String", "http://h:2")
	waitFor(t, mu, calls, 1)

	res, err := m.unregisterPublisher("/talker", "/chatter", "http://h:1")
	got := triple(t, res, err)
	if got[0] != 1 || got[2] != 1 {
		t.Fatalf("unregisterPublisher: expected [1,_,1], got %v", got)
	}

	waitFor(t, mu, calls, 2)
	mu.Lock()
	defer mu.Unlock()
	c := (*calls)[1]
	list, ok := c.args[2].([]string)
	if !ok || len(list) != 0 {
		t.Fatalf("expected empty publisher list, got %#v", c.args[2])
	}
}

// S3: nested setParam is visible both at the leaf and via the containing
// struct.
func TestScenarioS3NestedSetAndGetParam(t *testing.T) {
	m, _, _ := newTestMaster()

	res, err := m.setParam("/node", "/a/b/c", 5)
	got := triple(t, res, err)
	if got[0] != 1 {
		t.Fatalf("setParam failed: %v", got)
	}

	res, err = m.getParam("/node", "/a")
	got = triple(t, res, err)
	if got[0] != 1 {
		t.Fatalf("getParam(/a) failed: %v", got)
	}
	outer, ok := got[2].(map[string]interface{})
	if !ok {
		t.Fatalf("expected struct at /a, got %#v", got[2])
	}
	inner, ok := outer["b"].(map[string]interface{})
	if !ok || inner["c"] != 5 {
		t.Fatalf("expected {b:{c:5}}, got %#v", outer)
	}

	res, err = m.getParam("/node", "/a/b/c")
	got = triple(t, res, err)
	if got[0] != 1 || got[2] != 5 {
		t.Fatalf("getParam(/a/b/c): expected 5, got %v", got)
	}
}

// S4: a paramUpdate subscription fires with the value scoped to the
// subscriber's own key.
func TestScenarioS4SubscribeThenSetDelivers(t *testing.T) {
	m, calls, mu := newTestMaster()

	res, _ := m.subscribeParam("/w", "http://w:1", "/a")
	got := res.([]interface{})
	if got[0] != 1 {
		t.Fatalf("subscribeParam failed: %v", got)
	}
	if v, ok := got[2].(map[string]interface{}); !ok || len(v) != 0 {
		t.Fatalf("expected empty struct on first subscribe, got %#v", got[2])
	}

	m.setParam("/node", "/a/x", 7)
	waitFor(t, mu, calls, 1)

	mu.Lock()
	defer mu.Unlock()
	c := (*calls)[0]
	if c.url != "http://w:1" || c.method != "paramUpdate" || c.args[1] != "/a" {
		t.Fatalf("unexpected paramUpdate call: %#v", c)
	}
	value, ok := c.args[2].(map[string]interface{})
	if !ok || value["x"] != 7 {
		t.Fatalf("expected {x:7}, got %#v", c.args[2])
	}
}

// S5: services are last-write-wins, and unregister requires an exact
// (caller_id, service_api) match against the current provider.
func TestScenarioS5ServiceReplaceAndUnregisterMismatch(t *testing.T) {
	m, _, _ := newTestMaster()

	res, _ := m.registerService("/s1", "/svc", "rosrpc://h:3", "http://h:1")
	if res.([]interface{})[0] != 1 {
		t.Fatalf("registerService(/s1) failed: %v", res)
	}

	res, _ = m.lookupService("/caller", "/svc")
	got := res.([]interface{})
	if got[0] != 1 || got[2] != "rosrpc://h:3" {
		t.Fatalf("lookupService: expected rosrpc://h:3, got %v", got)
	}

	res, _ = m.registerService("/s2", "/svc", "rosrpc://h:4", "http://h:2")
	if res.([]interface{})[0] != 1 {
		t.Fatalf("registerService(/s2) failed: %v", res)
	}

	res, _ = m.lookupService("/caller", "/svc")
	got = res.([]interface{})
	if got[2] != "rosrpc://h:4" {
		t.Fatalf("expected replacement rosrpc://h:4, got %v", got[2])
	}

	res, _ = m.unregisterService("/s1", "/svc", "rosrpc://h:3")
	got = res.([]interface{})
	if got[0] != 1 || got[2] != 0 {
		t.Fatalf("unregisterService with stale provider: expected [1,_,0], got %v", got)
	}
}

// S6: searchParam walks up the caller's namespace, nearest scope wins.
func TestScenarioS6SearchParamNearestScopeWins(t *testing.T) {
	m, _, _ := newTestMaster()
	m.setParam("/node", "/foo", "global")

	res, _ := m.searchParam("/ns/node", "foo")
	got := res.([]interface{})
	if got[0] != 1 || got[2] != "/foo" {
		t.Fatalf("expected /foo, got %v", got)
	}

	m.setParam("/node", "/ns/foo", "scoped")
	res, _ = m.searchParam("/ns/node", "foo")
	got = res.([]interface{})
	if got[2] != "/ns/foo" {
		t.Fatalf("expected nearest scope /ns/foo, got %v", got)
	}
}

func TestLookupNodeUnknownReturnsError(t *testing.T) {
	m, _, _ := newTestMaster()
	res, _ := m.lookupNode("/caller", "/nowhere")
	got := res.([]interface{})
	if got[0] != -1 {
		t.Fatalf("expected StatusError for unknown node, got %v", got)
	}
}

func TestGetUriAndPid(t *testing.T) {
	m, _, _ := newTestMaster()
	res, _ := m.getUri("/caller")
	if res.([]interface{})[2] != "http://master:11311" {
		t.Fatalf("unexpected getUri result: %v", res)
	}
	res, _ = m.getPid("/caller")
	if _, ok := res.([]interface{})[2].(int); !ok {
		t.Fatalf("expected an int pid, got %#v", res)
	}
}

func TestEmptyCallerIDRejected(t *testing.T) {
	m, _, _ := newTestMaster()
	res, _ := m.registerPublisher("", "/chatter", "std_msgs/String", "http://h:1")
	got := res.([]interface{})
	if got[0] != -1 {
		t.Fatalf("expected StatusError for empty caller_id, got %v", got)
	}
}

func TestRegistrySizeGaugesTrackMutations(t *testing.T) {
	m, _, _ := newTestMaster()

	m.registerPublisher("/talker", "/chatter", "std_msgs/String", "http://h:1")
	m.registerService("/adder", "/add_two_ints", "http://h:2", "http://h:1")
	m.setParam("/talker", "/run_id", "abc")

	if got := testutil.ToFloat64(m.metrics.topicCount); got != 1 {
		t.Errorf("expected topic gauge 1 after a publisher registers, got %v", got)
	}
	if got := testutil.ToFloat64(m.metrics.serviceCount); got != 1 {
		t.Errorf("expected service gauge 1 after a service registers, got %v", got)
	}
	if got := testutil.ToFloat64(m.metrics.paramCount); got != 1 {
		t.Errorf("expected param gauge 1 after a param is set, got %v", got)
	}

	m.unregisterPublisher("/talker", "/chatter", "http://h:1")
	m.unregisterService("/adder", "/add_two_ints", "http://h:2")
	m.deleteParam("/talker", "/run_id")

	if got := testutil.ToFloat64(m.metrics.topicCount); got != 0 {
		t.Errorf("expected topic gauge 0 after unregistering, got %v", got)
	}
	if got := testutil.ToFloat64(m.metrics.serviceCount); got != 0 {
		t.Errorf("expected service gauge 0 after unregistering, got %v", got)
	}
	if got := testutil.ToFloat64(m.metrics.paramCount); got != 0 {
		t.Errorf("expected param gauge 0 after deleting, got %v", got)
	}
}

func TestHandlerServesXMLRPC(t *testing.T) {
	m, _, _ := newTestMaster()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL, "text/xml", nil)
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 even for a malformed body (fault response), got %d", resp.StatusCode)
	}
}
