// Package master implements Component F, the ROS master facade: it binds
// every master-API and parameter-API method name to the registries,
// performing name resolution, argument validation, and response
// packaging.
package master

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/patwie/roscore-go/internal/logging"
	"github.com/patwie/roscore-go/internal/notifier"
	"github.com/patwie/roscore-go/internal/paramtree"
	"github.com/patwie/roscore-go/internal/registry"
	"github.com/patwie/roscore-go/internal/rosapi"
	"github.com/patwie/roscore-go/internal/rosname"
	"github.com/patwie/roscore-go/internal/xmlrpc"
)

// Master is the long-lived facade binding the registries together behind
// the ROS master and parameter API method names.
type Master struct {
	uri       string
	pid       int
	startedAt time.Time
	instance  uuid.UUID

	topics   *registry.TopicRegistry
	services *registry.ServiceRegistry
	params   *paramtree.Tree
	notify   *notifier.Notifier
	metrics  *Metrics

	log loggerFunc
}

type loggerFunc interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// New constructs a Master advertising uri as its own master URI. The
// caller owns the notifier's lifecycle (Shutdown on process exit).
func New(uri string, notify *notifier.Notifier, metrics *Metrics) *Master {
	return &Master{
		uri:       uri,
		pid:       os.Getpid(),
		startedAt: time.Now(),
		instance:  uuid.New(),
		topics:    registry.NewTopicRegistry(),
		services:  registry.NewServiceRegistry(),
		params:    paramtree.New(),
		notify:    notify,
		metrics:   metrics,
		log:       logging.Module(logging.ModuleFacade),
	}
}

// URI returns the master's own advertised URI.
func (m *Master) URI() string {
	return m.uri
}

// SeedParam sets an initial parameter value at startup, bypassing name
// resolution (seed keys are always given in absolute form on the command
// line).
func (m *Master) SeedParam(key string, value interface{}) {
	m.params.SetParam(key, value)
	m.sampleParams()
}

// Handler builds the XML-RPC method table dispatched by internal/xmlrpc.
func (m *Master) Handler() *xmlrpc.Handler {
	mapping := map[string]xmlrpc.Method{
		"registerService":      m.registerService,
		"unregisterService":    m.unregisterService,
		"registerSubscriber":   m.registerSubscriber,
		"unregisterSubscriber": m.unregisterSubscriber,
		"registerPublisher":    m.registerPublisher,
		"unregisterPublisher":  m.unregisterPublisher,
		"lookupNode":           m.lookupNode,
		"getPublishedTopics":   m.getPublishedTopics,
		"getTopicTypes":        m.getTopicTypes,
		"getSystemState":       m.getSystemState,
		"getUri":               m.getUri,
		"lookupService":        m.lookupService,
		"getPid":               m.getPid,
		"deleteParam":          m.deleteParam,
		"setParam":             m.setParam,
		"getParam":             m.getParam,
		"searchParam":          m.searchParam,
		"subscribeParam":       m.subscribeParam,
		"unsubscribeParam":     m.unsubscribeParam,
		"hasParam":             m.hasParam,
		"getParamNames":        m.getParamNames,
	}
	handler := xmlrpc.NewHandler(mapping)
	handler.SetLogger(logging.Module(logging.ModuleTransport))
	return handler
}

// resolve turns name into a canonical absolute name using callerID's
// namespace, per §4.5's name-resolution responsibility.
func resolve(callerID, name string) string {
	return rosname.Resolve(name, callerID)
}

func (m *Master) checkCallerID(callerID string) []interface{} {
	if callerID == "" {
		return rosapi.Error("caller_id must not be empty")
	}
	return nil
}

func (m *Master) checkName(name, what string) []interface{} {
	if name == "" {
		return rosapi.Error(fmt.Sprintf("%s must not be empty", what))
	}
	return nil
}

// sampleTopics, sampleServices, and sampleParams republish the current
// registry sizes to the metrics gauges. Handlers call the relevant one
// whenever they might have changed that registry's size.
func (m *Master) sampleTopics()   { m.metrics.setTopicCount(m.topics.Count()) }
func (m *Master) sampleServices() { m.metrics.setServiceCount(m.services.Count()) }
func (m *Master) sampleParams()   { m.metrics.setParamCount(m.params.Count()) }

// --- Topic registry (§4.1) ---------------------------------------------

func (m *Master) registerPublisher(callerID, topic, topicType, callerAPI string) (interface{}, error) {
	m.metrics.recordInbound("registerPublisher")
	if fault := m.checkCallerID(callerID); fault != nil {
		return fault, nil
	}
	if fault := m.checkName(topic, "topic"); fault != nil {
		return fault, nil
	}
	resolved := resolve(callerID, topic)

	subscriberAPIs, publisherAPIs := m.topics.RegisterPublisher(callerID, resolved, topicType, callerAPI)
	m.log.Debugf("registerPublisher: %s publishes %s (%s), notifying %d subscribers", callerID, resolved, topicType, len(subscriberAPIs))
	m.sampleTopics()
	m.notify.NotifyPublisherUpdate(subscriberAPIs, resolved, publisherAPIs)
	return rosapi.Success("registered publisher", subscriberAPIs), nil
}

func (m *Master) unregisterPublisher(callerID, topic, callerAPI string) (interface{}, error) {
	m.metrics.recordInbound("unregisterPublisher")
	if fault := m.checkCallerID(callerID); fault != nil {
		return fault, nil
	}
	resolved := resolve(callerID, topic)

	removed, subscriberAPIs, publisherAPIs := m.topics.UnregisterPublisher(callerID, resolved, callerAPI)
	if !removed {
		return rosapi.Success("no matching publisher", 0), nil
	}
	m.sampleTopics()
	m.notify.NotifyPublisherUpdate(subscriberAPIs, resolved, publisherAPIs)
	return rosapi.Success("unregistered publisher", 1), nil
}

func (m *Master) registerSubscriber(callerID, topic, topicType, callerAPI string) (interface{}, error) {
	m.metrics.recordInbound("registerSubscriber")
	if fault := m.checkCallerID(callerID); fault != nil {
		return fault, nil
	}
	if fault := m.checkName(topic, "topic"); fault != nil {
		return fault, nil
	}
	resolved := resolve(callerID, topic)

	publisherAPIs := m.topics.RegisterSubscriber(callerID, resolved, topicType, callerAPI)
	m.sampleTopics()
	m.notify.NotifyPublisherUpdate([]string{callerAPI}, resolved, publisherAPIs)
	return rosapi.Success("registered subscriber", publisherAPIs), nil
}

func (m *Master) unregisterSubscriber(callerID, topic, callerAPI string) (interface{}, error) {
	m.metrics.recordInbound("unregisterSubscriber")
	if fault := m.checkCallerID(callerID); fault != nil {
		return fault, nil
	}
	resolved := resolve(callerID, topic)

	if !m.topics.UnregisterSubscriber(callerID, resolved, callerAPI) {
		return rosapi.Success("no matching subscriber", 0), nil
	}
	m.sampleTopics()
	return rosapi.Success("unregistered subscriber", 1), nil
}

func (m *Master) getPublishedTopics(callerID, subgraph string) (interface{}, error) {
	m.metrics.recordInbound("getPublishedTopics")
	resolvedSubgraph := subgraph
	if subgraph != "" {
		resolvedSubgraph = resolve(callerID, subgraph)
	}
	return rosapi.Success("ok", toPairs(m.topics.GetPublishedTopics(resolvedSubgraph))), nil
}

func (m *Master) getTopicTypes(callerID string) (interface{}, error) {
	m.metrics.recordInbound("getTopicTypes")
	return rosapi.Success("ok", toPairs(m.topics.GetTopicTypes())), nil
}

func (m *Master) getSystemState(callerID string) (interface{}, error) {
	m.metrics.recordInbound("getSystemState")
	value := []interface{}{
		toStatePairs(m.topics.SystemStatePublishers()),
		toStatePairs(m.topics.SystemStateSubscribers()),
		toStatePairs(m.services.SystemState()),
	}
	return rosapi.Success("ok", value), nil
}

func (m *Master) getUri(callerID string) (interface{}, error) {
	m.metrics.recordInbound("getUri")
	return rosapi.Success("ok", m.uri), nil
}

func (m *Master) getPid(callerID string) (interface{}, error) {
	m.metrics.recordInbound("getPid")
	return rosapi.Success("ok", m.pid), nil
}

func (m *Master) lookupNode(callerID, nodeName string) (interface{}, error) {
	m.metrics.recordInbound("lookupNode")
	if uri, ok := m.topics.LookupNode(nodeName); ok {
		return rosapi.Success("ok", uri), nil
	}
	if uri, ok := m.services.LookupNode(nodeName); ok {
		return rosapi.Success("ok", uri), nil
	}
	return rosapi.Error(fmt.Sprintf("unknown node %s", nodeName)), nil
}

// --- Service registry (§4.2) -------------------------------------------

func (m *Master) registerService(callerID, service, serviceAPI, callerAPI string) (interface{}, error) {
	m.metrics.recordInbound("registerService")
	if fault := m.checkCallerID(callerID); fault != nil {
		return fault, nil
	}
	if fault := m.checkName(service, "service"); fault != nil {
		return fault, nil
	}
	resolved := resolve(callerID, service)
	m.services.Register(callerID, resolved, serviceAPI, callerAPI)
	m.sampleServices()
	return rosapi.Success("registered service", 1), nil
}

func (m *Master) unregisterService(callerID, service, serviceAPI string) (interface{}, error) {
	m.metrics.recordInbound("unregisterService")
	if fault := m.checkCallerID(callerID); fault != nil {
		return fault, nil
	}
	resolved := resolve(callerID, service)
	if !m.services.Unregister(callerID, resolved, serviceAPI) {
		return rosapi.Success("no matching provider", 0), nil
	}
	m.sampleServices()
	return rosapi.Success("unregistered service", 1), nil
}

func (m *Master) lookupService(callerID, service string) (interface{}, error) {
	m.metrics.recordInbound("lookupService")
	resolved := resolve(callerID, service)
	uri, ok := m.services.Lookup(resolved)
	if !ok {
		return rosapi.Error("no provider"), nil
	}
	return rosapi.Success("ok", uri), nil
}

// --- Parameter tree (§4.3) ----------------------------------------------

func (m *Master) setParam(callerID, key string, value interface{}) (interface{}, error) {
	m.metrics.recordInbound("setParam")
	if fault := m.checkCallerID(callerID); fault != nil {
		return fault, nil
	}
	if fault := m.checkName(key, "param key"); fault != nil {
		return fault, nil
	}
	resolved := resolve(callerID, key)
	notes := m.params.SetParam(resolved, value)
	m.sampleParams()
	m.notify.NotifyParamUpdate(notes)
	return rosapi.Success("ok", 0), nil
}

func (m *Master) getParam(callerID, key string) (interface{}, error) {
	m.metrics.recordInbound("getParam")
	resolved := resolve(callerID, key)
	value, err := m.params.GetParam(resolved)
	if err != nil {
		return rosapi.Error(err.Error()), nil
	}
	return rosapi.Success("ok", value), nil
}

func (m *Master) deleteParam(callerID, key string) (interface{}, error) {
	m.metrics.recordInbound("deleteParam")
	resolved := resolve(callerID, key)
	existed, notes := m.params.DeleteParam(resolved)
	if !existed {
		return rosapi.Success("no such param", 0), nil
	}
	m.sampleParams()
	m.notify.NotifyParamUpdate(notes)
	return rosapi.Success("ok", 1), nil
}

func (m *Master) hasParam(callerID, key string) (interface{}, error) {
	m.metrics.recordInbound("hasParam")
	resolved := resolve(callerID, key)
	return rosapi.Success("ok", m.params.HasParam(resolved)), nil
}

func (m *Master) getParamNames(callerID string) (interface{}, error) {
	m.metrics.recordInbound("getParamNames")
	return rosapi.Success("ok", m.params.GetParamNames()), nil
}

func (m *Master) searchParam(callerID, key string) (interface{}, error) {
	m.metrics.recordInbound("searchParam")
	resolved, err := m.params.SearchParam(callerID, key)
	if err != nil {
		return rosapi.Error(err.Error()), nil
	}
	return rosapi.Success("ok", resolved), nil
}

func (m *Master) subscribeParam(callerID, callerAPI, key string) (interface{}, error) {
	m.metrics.recordInbound("subscribeParam")
	resolved := resolve(callerID, key)
	value := m.params.SubscribeParam(callerID, callerAPI, resolved)
	return rosapi.Success("ok", value), nil
}

func (m *Master) unsubscribeParam(callerID, callerAPI, key string) (interface{}, error) {
	m.metrics.recordInbound("unsubscribeParam")
	resolved := resolve(callerID, key)
	if !m.params.UnsubscribeParam(callerID, callerAPI, resolved) {
		return rosapi.Success("ok", 0), nil
	}
	return rosapi.Success("ok", 1), nil
}

// --- helpers -------------------------------------------------------------

func toPairs(xs [][2]string) []interface{} {
	out := make([]interface{}, 0, len(xs))
	for _, x := range xs {
		out = append(out, []interface{}{x[0], x[1]})
	}
	return out
}

func toStatePairs(ncs []registry.NameCallers) []interface{} {
	out := make([]interface{}, 0, len(ncs))
	for _, nc := range ncs {
		out = append(out, []interface{}{nc.Name, nc.CallerIDs})
	}
	return out
}
