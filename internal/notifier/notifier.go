// Package notifier delivers publisherUpdate and paramUpdate callbacks to
// subscriber caller-APIs asynchronously, so the registries never block an
// inbound RPC on a slow or unreachable peer.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/patwie/roscore-go/internal/logging"
	"github.com/patwie/roscore-go/internal/paramtree"
	"github.com/patwie/roscore-go/internal/xmlrpc"
)

const (
	// masterCallerID is the caller_id the master presents itself as when
	// pushing a notification callback.
	masterCallerID = "/master"

	// defaultQueueDepth bounds how many pending updates a single
	// (subscriber, subject) queue holds before the oldest is dropped in
	// favor of the newest, matching the "coalescing is permitted" rule.
	defaultQueueDepth = 8

	// DefaultTimeout bounds a single outbound publisherUpdate/paramUpdate
	// delivery.
	DefaultTimeout = 3 * time.Second

	// DefaultMaxConcurrent bounds how many outbound deliveries the
	// notifier runs at once, across every queue.
	DefaultMaxConcurrent = 32

	// DefaultRatePerSecond paces outbound deliveries so a burst of
	// updates cannot flood the network stack.
	DefaultRatePerSecond = 200
)

type task struct {
	method  string
	subject string
	payload interface{}
}

type queueKey struct {
	callerAPI string
	subject   string
}

type callFunc func(timeout time.Duration, url, method string, args ...interface{}) (interface{}, error)

// Notifier fans outbound XML-RPC callbacks out to subscribers. Each
// (subscriber, subject) pair gets its own serial queue and goroutine so
// ordering within a pair is preserved while distinct subscribers never
// block one another; a semaphore and rate limiter bound total outbound
// concurrency and pace.
type Notifier struct {
	mu      sync.Mutex
	queues  map[queueKey]chan task
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	timeout time.Duration
	log     loggerFunc
	call    callFunc
	onFail  func(method string)
	wg      sync.WaitGroup
}

// SetFailureHook registers a callback invoked whenever an outbound
// delivery fails, e.g. to drive a Prometheus counter. Must be called
// before the first Notify* call to avoid a data race with delivery
// goroutines.
func (n *Notifier) SetFailureHook(hook func(method string)) {
	n.onFail = hook
}

// SetCall overrides the outbound XML-RPC call function, used by tests to
// capture deliveries without touching the network. Must be called before
// the first Notify* call.
func (n *Notifier) SetCall(call func(timeout time.Duration, url, method string, args ...interface{}) (interface{}, error)) {
	n.call = call
}

type loggerFunc = interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// New returns a Notifier bounding outbound dispatch to maxConcurrent
// simultaneous calls, paced at most ratePerSecond calls per second, each
// call bounded by timeout.
func New(maxConcurrent int, ratePerSecond float64, timeout time.Duration) *Notifier {
	return &Notifier{
		queues:  map[queueKey]chan task{},
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), maxConcurrent),
		timeout: timeout,
		log:     logging.Module(logging.ModuleNotifier),
		call:    xmlrpc.CallWithTimeout,
	}
}

// NotifyPublisherUpdate enqueues one publisherUpdate delivery per
// subscriber in subscriberAPIs, each carrying the full, de-duplicated
// current publisher URI list for topic.
func (n *Notifier) NotifyPublisherUpdate(subscriberAPIs []string, topic string, publisherAPIs []string) {
	for _, api := range subscriberAPIs {
		n.enqueue(api, topic, "publisherUpdate", publisherAPIs)
	}
}

// NotifyParamUpdate enqueues one paramUpdate delivery per notification
// computed by the parameter tree.
func (n *Notifier) NotifyParamUpdate(notes []paramtree.Notification) {
	for _, note := range notes {
		n.enqueue(note.CallerAPI, note.Key, "paramUpdate", note.Value)
	}
}

func (n *Notifier) enqueue(callerAPI, subject, method string, payload interface{}) {
	key := queueKey{callerAPI: callerAPI, subject: subject}

	n.mu.Lock()
	q, ok := n.queues[key]
	if !ok {
		q = make(chan task, defaultQueueDepth)
		n.queues[key] = q
		n.wg.Add(1)
		go n.drain(callerAPI, subject, q)
	}
	n.mu.Unlock()

	t := task{method: method, subject: subject, payload: payload}
	select {
	case q <- t:
	default:
		// Queue is full: drop the oldest pending update in favor of this
		// one. Ordering within the pair still holds because every item
		// that remains drains strictly in FIFO order.
		select {
		case <-q:
		default:
		}
		select {
		case q <- t:
		default:
		}
	}
}

func (n *Notifier) drain(callerAPI, subject string, q chan task) {
	defer n.wg.Done()
	id := uuid.New().String()
	for t := range q {
		n.deliver(id, callerAPI, t)
	}
}

func (n *Notifier) deliver(queueID, callerAPI string, t task) {
	ctx := context.Background()
	if err := n.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer n.sem.Release(1)
	if err := n.limiter.Wait(ctx); err != nil {
		return
	}

	n.log.Debugf("queue %s delivering %s(%s, %s) to %s", queueID, t.method, masterCallerID, t.subject, callerAPI)
	if _, err := n.call(n.timeout, callerAPI, t.method, masterCallerID, t.subject, t.payload); err != nil {
		n.log.Warnf("queue %s: %s delivery to %s failed: %v", queueID, t.method, callerAPI, err)
		if n.onFail != nil {
			n.onFail(t.method)
		}
	}
}

// Shutdown closes every queue and waits for in-flight deliveries to
// finish draining. The caller must ensure no further Notify* calls are
// made once Shutdown has been called.
func (n *Notifier) Shutdown() {
	n.mu.Lock()
	for _, q := range n.queues {
		close(q)
	}
	n.mu.Unlock()
	n.wg.Wait()
}
