package xmlrpc

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"reflect"
	"sync"
)

// Method is any func(args...) (interface{}, error) registered under a
// name in a Handler's mapping. It is declared as interface{} rather than
// a concrete func type because Go cannot express "any arity" as a
// func signature; dispatch verifies shape at call time via reflection.
type Method interface{}

// loggerFunc is the subset of a logrus-shaped logger the handler needs to
// report malformed requests and dispatch faults.
type loggerFunc interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Handler answers XML-RPC requests by dispatching them to a fixed table
// of Methods. It implements http.Handler directly, so it can be mounted
// on any net/http server or handled by httptest in tests.
type Handler struct {
	mapping map[string]Method
	pending sync.WaitGroup
	log     loggerFunc
}

// NewHandler returns a Handler serving the given method table. Without a
// SetLogger call, faults are dropped silently.
func NewHandler(mapping map[string]Method) *Handler {
	return &Handler{mapping: mapping, log: nopLogger{}}
}

// SetLogger routes malformed-request and dispatch-fault reporting through
// log instead of dropping it silently.
func (h *Handler) SetLogger(log loggerFunc) {
	h.log = log
}

// WaitForShutdown blocks until every in-flight ServeHTTP call has
// returned. Callers use it after closing the listener to avoid a request
// racing process exit.
func (h *Handler) WaitForShutdown() {
	h.pending.Wait()
}

// multicallMethod is the reserved method name for system.multicall, the
// batched-call form used by callers that want to issue several master API
// requests in a single round trip.
const multicallMethod = "system.multicall"

// dispatch invokes the method registered under name with args, recovering
// from panics inside the method body so that one bad call, including one
// nested inside a system.multicall batch, never takes the whole handler
// down.
func (h *Handler) dispatch(name string, args []interface{}) (result interface{}, faultCode int, faultString string) {
	method, ok := h.mapping[name]
	if !ok {
		return nil, 1, fmt.Sprintf("no method named %q", name)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			faultCode = 1
			faultString = fmt.Sprintf("method %q panicked: %v", name, r)
		}
	}()

	fn := reflect.ValueOf(method)
	if fn.Type().NumIn() != len(args) {
		return nil, 1, fmt.Sprintf("method %q expects %d arguments, got %d", name, fn.Type().NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	out := fn.Call(in)
	if len(out) != 2 {
		return nil, 1, fmt.Sprintf("method %q returned %d values, want (interface{}, error)", name, len(out))
	}
	if errVal := out[1]; !errVal.IsNil() {
		err, ok := errVal.Interface().(error)
		if !ok {
			return nil, 1, fmt.Sprintf("method %q returned a non-error second value", name)
		}
		return nil, 1, fmt.Sprintf("method %q failed: %v", name, err)
	}
	return out[0].Interface(), 0, ""
}

// multicall implements system.multicall: it runs each nested call through
// dispatch independently and reports a per-item fault struct instead of
// aborting the batch, per the XML-RPC multicall convention.
func (h *Handler) multicall(args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("system.multicall expects a single array argument, got %d", len(args))
	}
	calls, ok := args[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("system.multicall argument must be an array")
	}

	results := make([]interface{}, 0, len(calls))
	for _, c := range calls {
		item, ok := c.(map[string]interface{})
		if !ok {
			results = append(results, newFault(1, "multicall item must be a struct"))
			continue
		}
		name, ok := item["methodName"].(string)
		if !ok {
			results = append(results, newFault(1, "multicall item missing methodName"))
			continue
		}
		if name == multicallMethod {
			results = append(results, newFault(1, "system.multicall may not be nested"))
			continue
		}
		var innerArgs []interface{}
		if params, ok := item["params"].([]interface{}); ok {
			innerArgs = params
		}
		result, code, message := h.dispatch(name, innerArgs)
		if code != 0 {
			results = append(results, newFault(code, message))
			continue
		}
		results = append(results, []interface{}{result})
	}
	return results, nil
}

func newFault(code int, message string) map[string]interface{} {
	return map[string]interface{}{"faultCode": code, "faultString": message}
}

// ServeHTTP decodes a single XML-RPC request body, dispatches it (or, for
// system.multicall, a batch of them), and writes back a methodResponse or
// fault document.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.pending.Add(1)
	defer h.pending.Done()

	name, args, err := decodeRequest(xml.NewDecoder(req.Body))
	if err != nil {
		h.log.Warnf("invalid XML-RPC request from %s: %v", req.RemoteAddr, err)
		writeFault(w, 1, "invalid XML-RPC request")
		return
	}

	var result interface{}
	var faultCode int
	var faultString string
	if name == multicallMethod {
		result, err = h.multicall(args)
		if err != nil {
			faultCode, faultString = 1, err.Error()
		}
	} else {
		result, faultCode, faultString = h.dispatch(name, args)
	}

	if faultCode != 0 {
		h.log.Warnf("%s from %s faulted: %s", name, req.RemoteAddr, faultString)
		writeFault(w, faultCode, faultString)
		return
	}
	h.log.Debugf("%s from %s dispatched ok", name, req.RemoteAddr)

	body, err := encodeResponse(result)
	if err != nil {
		writeFault(w, 1, fmt.Sprintf("method %q returned an unencodable result: %v", name, err))
		return
	}
	writeBody(w, body)
}

func writeFault(w http.ResponseWriter, code int, message string) {
	writeBody(w, encodeFault(code, message))
}

func writeBody(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/xml")
	w.Write(body)
}
