// Package xmlrpc implements the XML-RPC wire codec and a minimal
// client/server pair. It is the sole transport used between the master
// facade, calling nodes, and outbound notification callbacks.
package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds outbound XML-RPC calls made with Call. The master
// never blocks a caller indefinitely on a peer that is slow, unreachable,
// or gone.
const DefaultTimeout = 5 * time.Second

var defaultClient = &http.Client{Timeout: DefaultTimeout}

// Call invokes method on the peer at url, bounded by DefaultTimeout.
func Call(url string, method string, args ...interface{}) (interface{}, error) {
	return CallWithTimeout(DefaultTimeout, url, method, args...)
}

// CallWithTimeout is Call with an explicit per-call deadline. The notifier
// uses this to bound each outbound publisherUpdate/paramUpdate delivery
// independently of DefaultTimeout.
func CallWithTimeout(timeout time.Duration, url string, method string, args ...interface{}) (interface{}, error) {
	client := defaultClient
	if timeout != DefaultTimeout {
		client = &http.Client{Timeout: timeout}
	}

	body, err := encodeRequest(method, args...)
	if err != nil {
		return nil, fmt.Errorf("xmlrpc: building request for %q failed: %w", method, err)
	}

	resp, err := client.Post(url, "text/xml", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("xmlrpc: request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xmlrpc: %s returned HTTP %s", url, resp.Status)
	}

	ok, result, err := decodeResponse(xml.NewDecoder(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("xmlrpc: parsing response from %s failed: %w", url, err)
	}
	if ok {
		return result, nil
	}

	fault, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("xmlrpc: malformed fault response")
	}
	code, _ := fault["faultCode"].(int32)
	message, _ := fault["faultString"].(string)
	return nil, fmt.Errorf("xmlrpc: fault %d from %s: %s", code, method, message)
}
