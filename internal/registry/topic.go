package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/patwie/roscore-go/internal/logging"
)

type loggerFunc = interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// NameCallers pairs a topic or service name with the caller-ids currently
// bound to it, the shape getSystemState reports for each of its three
// lists.
type NameCallers struct {
	Name      string
	CallerIDs []string
}

type topicEntry struct {
	publishers  bindingSet
	subscribers bindingSet
}

func newTopicEntry() *topicEntry {
	return &topicEntry{publishers: bindingSet{}, subscribers: bindingSet{}}
}

func (e *topicEntry) empty() bool {
	return len(e.publishers) == 0 && len(e.subscribers) == 0
}

// isWildcardType reports whether a topic_type argument should be treated
// as "no type declared" for the sticky-type tie-break: both the empty
// string and the ROS wildcard "*" qualify.
func isWildcardType(t string) bool {
	return t == "" || t == "*"
}

// TopicRegistry is Components A+B: the publisher/subscriber sets for
// every topic, keyed by topic name, plus the sticky topic-type table.
// One mutex guards the whole registry; callers dispatch any resulting
// notifications after the call returns, never while holding it.
type TopicRegistry struct {
	mu     sync.Mutex
	topics map[string]*topicEntry
	types  map[string]string
	log    loggerFunc
}

// NewTopicRegistry returns an empty topic registry.
func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{
		topics: map[string]*topicEntry{},
		types:  map[string]string{},
		log:    logging.Module(logging.ModuleTopic),
	}
}

func (r *TopicRegistry) entry(topic string) *topicEntry {
	e, ok := r.topics[topic]
	if !ok {
		e = newTopicEntry()
		r.topics[topic] = e
	}
	return e
}

func (r *TopicRegistry) recordType(topic, topicType string) {
	if isWildcardType(topicType) {
		return
	}
	if _, ok := r.types[topic]; !ok {
		r.types[topic] = topicType
	}
}

func (r *TopicRegistry) pruneIfEmpty(topic string) {
	if e, ok := r.topics[topic]; ok && e.empty() {
		delete(r.topics, topic)
		r.log.Debugf("pruned empty topic %s", topic)
	}
}

// RegisterPublisher adds callerID as a publisher of topic and returns the
// topic's current subscriber URIs (the RPC's own return value) alongside
// its current publisher URIs (what the notifier must push to those
// subscribers as a publisherUpdate).
func (r *TopicRegistry) RegisterPublisher(callerID, topic, topicType, callerAPI string) (subscriberAPIs, publisherAPIs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(topic)
	e.publishers.put(callerID, callerAPI)
	r.recordType(topic, topicType)
	r.log.Debugf("%s registered as publisher of %s (%s)", callerID, topic, topicType)

	return e.subscribers.uris(), e.publishers.uris()
}

// UnregisterPublisher removes callerID's publisher registration on topic.
// When a registration was actually removed, it also returns the topic's
// remaining subscriber URIs and its now-current publisher URIs so the
// caller can push a publisherUpdate; otherwise both slices are nil.
func (r *TopicRegistry) UnregisterPublisher(callerID, topic, callerAPI string) (removed bool, subscriberAPIs, publisherAPIs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.topics[topic]
	if !ok {
		return false, nil, nil
	}
	if !e.publishers.removeByCaller(callerID) {
		return false, nil, nil
	}
	r.log.Debugf("%s unregistered as publisher of %s", callerID, topic)
	subscriberAPIs, publisherAPIs = e.subscribers.uris(), e.publishers.uris()
	r.pruneIfEmpty(topic)
	return true, subscriberAPIs, publisherAPIs
}

// RegisterSubscriber adds callerID as a subscriber of topic and returns
// the topic's current publisher URIs. The registry computes no notification
// data for a subscriber registration: this one list is both the RPC's
// return value and what the facade pushes to the new subscriber as its
// publisherUpdate.
func (r *TopicRegistry) RegisterSubscriber(callerID, topic, topicType, callerAPI string) (publisherAPIs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(topic)
	e.subscribers.put(callerID, callerAPI)
	r.recordType(topic, topicType)

	return e.publishers.uris()
}

// UnregisterSubscriber removes callerID's subscriber registration on
// topic. No notifications ever result from this call.
func (r *TopicRegistry) UnregisterSubscriber(callerID, topic, callerAPI string) (removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.topics[topic]
	if !ok {
		return false
	}
	removed = e.subscribers.removeByCaller(callerID)
	if removed {
		r.pruneIfEmpty(topic)
	}
	return removed
}

// Count returns the number of topics with at least one publisher or
// subscriber currently registered.
func (r *TopicRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

// GetPublishedTopics lists every [topic, type] pair for topics that have
// at least one publisher and whose name starts with subgraph.
func (r *TopicRegistry) GetPublishedTopics(subgraph string) [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out [][2]string
	for topic, e := range r.topics {
		if len(e.publishers) == 0 {
			continue
		}
		if subgraph != "" && !strings.HasPrefix(topic, subgraph) {
			continue
		}
		out = append(out, [2]string{topic, r.types[topic]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// GetTopicTypes returns every known [topic, type] pair, including topics
// whose registration has since gone empty but whose type is still sticky.
func (r *TopicRegistry) GetTopicTypes() [][2]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][2]string, 0, len(r.types))
	for topic, t := range r.types {
		out = append(out, [2]string{topic, t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// SystemStatePublishers and SystemStateSubscribers feed getSystemState's
// first two elements.
func (r *TopicRegistry) SystemStatePublishers() []NameCallers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return namedCallers(r.topics, func(e *topicEntry) bindingSet { return e.publishers })
}

func (r *TopicRegistry) SystemStateSubscribers() []NameCallers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return namedCallers(r.topics, func(e *topicEntry) bindingSet { return e.subscribers })
}

func namedCallers(topics map[string]*topicEntry, pick func(*topicEntry) bindingSet) []NameCallers {
	var out []NameCallers
	for name, e := range topics {
		set := pick(e)
		if len(set) == 0 {
			continue
		}
		out = append(out, NameCallers{Name: name, CallerIDs: set.callerIDs()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupNode searches every topic's publisher and subscriber set for
// callerID and returns the first URI found.
func (r *TopicRegistry) LookupNode(callerID string) (uri string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.topics {
		if u, found := e.publishers[callerID]; found {
			return u, true
		}
		if u, found := e.subscribers[callerID]; found {
			return u, true
		}
	}
	return "", false
}
