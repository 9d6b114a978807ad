package xmlrpc

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// decoder walks the token stream of an *xml.Decoder to reconstruct
// XML-RPC values. It carries no state beyond the underlying decoder;
// xml.Decoder already tracks element nesting for us.
type decoder struct {
	x *xml.Decoder
}

func (d *decoder) next() (xml.Token, error) { return d.x.Token() }

func (d *decoder) skip() { d.x.Skip() }

// nextStart advances past any intervening character data (formatting
// whitespace between tags) to the next start element.
func (d *decoder) nextStart() (xml.StartElement, error) {
	for {
		tok, err := d.next()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func (d *decoder) expectStart(name string) (xml.StartElement, error) {
	se, err := d.nextStart()
	if err != nil {
		return xml.StartElement{}, err
	}
	if se.Name.Local != name {
		return xml.StartElement{}, fmt.Errorf("xmlrpc: expected <%s>, found <%s>", name, se.Name.Local)
	}
	return se, nil
}

func (d *decoder) charData() (string, error) {
	tok, err := d.next()
	if err != nil {
		return "", err
	}
	cd, ok := tok.(xml.CharData)
	if !ok {
		return "", errors.New("xmlrpc: expected character data")
	}
	return string(cd.Copy()), nil
}

// scalarReaders parses the text of a leaf value tag and consumes that
// tag's own closing element, leaving the enclosing </value> for the
// caller. Keyed by the leaf tag's local name.
var scalarReaders = map[string]func(*decoder) (interface{}, error){
	"boolean": readBoolean,
	"i4":      readInt,
	"int":     readInt,
	"double":  readDouble,
	"string":  readString,
	"base64":  readBase64,
}

func readBoolean(d *decoder) (interface{}, error) {
	text, err := d.charData()
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(text, 10, 4)
	if err != nil {
		return nil, err
	}
	d.skip() // </boolean>
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return nil, fmt.Errorf("xmlrpc: boolean value out of range: %d", n)
	}
}

func readInt(d *decoder) (interface{}, error) {
	text, err := d.charData()
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(text, 0, 32)
	if err != nil {
		return nil, err
	}
	d.skip() // </i4> or </int>
	return int32(n), nil
}

func readDouble(d *decoder) (interface{}, error) {
	text, err := d.charData()
	if err != nil {
		return nil, err
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, err
	}
	d.skip() // </double>
	return f, nil
}

func readString(d *decoder) (interface{}, error) {
	tok, err := d.next()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case xml.CharData:
		s := string(t.Copy())
		d.skip() // </string>
		return s, nil
	case xml.EndElement:
		if t.Name.Local == "string" {
			return "", nil
		}
	}
	return nil, errors.New("xmlrpc: malformed string value")
}

func readBase64(d *decoder) (interface{}, error) {
	text, err := d.charData()
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, err
	}
	d.skip() // </base64>
	return raw, nil
}

// readValue parses a value after its <value> start tag has been consumed
// by the caller. On success the matching </value> end tag has also been
// consumed.
func (d *decoder) readValue() (interface{}, error) {
	tok, err := d.next()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case xml.StartElement:
		switch t.Name.Local {
		case "array":
			return d.readArray()
		case "struct":
			return d.readStruct()
		case "dateTime.iso8601":
			return nil, errors.New("xmlrpc: dateTime.iso8601 values are not supported")
		default:
			reader, ok := scalarReaders[t.Name.Local]
			if !ok {
				return nil, fmt.Errorf("xmlrpc: unsupported value type <%s>", t.Name.Local)
			}
			val, err := reader(d)
			if err != nil {
				return nil, err
			}
			d.skip() // </value>
			return val, nil
		}
	case xml.CharData:
		// Untyped <value>text</value> and formatting whitespace both
		// surface as CharData; only the former is a value.
		text := strings.TrimSpace(string(t.Copy()))
		if text == "" {
			return d.readValue()
		}
		d.skip() // </value>
		return text, nil
	case xml.EndElement:
		return "", nil
	}
	return nil, errors.New("xmlrpc: unexpected token while parsing value")
}

func (d *decoder) readArray() (interface{}, error) {
	if _, err := d.expectStart("data"); err != nil {
		return nil, err
	}
	var items []interface{}
	for {
		tok, err := d.next()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "value" {
				v, err := d.readValue()
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
		case xml.EndElement:
			if t.Name.Local == "array" {
				d.skip() // </value>
				return items, nil
			}
		}
	}
}

func (d *decoder) readStruct() (interface{}, error) {
	m := make(map[string]interface{})
	var name string
	var pending interface{}
	for {
		tok, err := d.next()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "name":
				text, err := d.charData()
				if err != nil {
					return nil, err
				}
				name = text
			case "value":
				v, err := d.readValue()
				if err != nil {
					return nil, err
				}
				pending = v
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "member":
				m[name] = pending
			case "struct":
				d.skip() // </value>
				return m, nil
			}
		}
	}
}

// decodeRequest parses a <methodCall> document into its method name and
// argument list.
func decodeRequest(x *xml.Decoder) (name string, args []interface{}, err error) {
	d := &decoder{x: x}
	if _, err = d.expectStart("methodCall"); err != nil {
		return
	}
	if _, err = d.expectStart("methodName"); err != nil {
		return
	}
	name, err = d.charData()
	if err != nil {
		return
	}
	if _, err = d.expectStart("params"); err != nil {
		return
	}
	for {
		var tok xml.Token
		tok, err = d.next()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "value" {
				var v interface{}
				v, err = d.readValue()
				if err != nil {
					return
				}
				args = append(args, v)
			}
		case xml.EndElement:
			if t.Name.Local == "params" {
				d.skip() // </methodCall>
				return
			}
		}
	}
}

// decodeResponse parses a <methodResponse> document, reporting ok=false
// (with result holding the fault struct) when the peer signaled a fault.
func decodeResponse(x *xml.Decoder) (ok bool, result interface{}, err error) {
	d := &decoder{x: x}
	if _, err = d.expectStart("methodResponse"); err != nil {
		return
	}
	se, err := d.nextStart()
	if err != nil {
		return
	}
	switch se.Name.Local {
	case "params":
		if _, err = d.expectStart("param"); err != nil {
			return
		}
		if _, err = d.expectStart("value"); err != nil {
			return
		}
		result, err = d.readValue()
		if err != nil {
			return
		}
		ok = true
		d.skip() // </param>
		d.skip() // </params>
		d.skip() // </methodResponse>
		return
	case "fault":
		if _, err = d.expectStart("value"); err != nil {
			return
		}
		result, err = d.readValue()
		if err != nil {
			return
		}
		ok = false
		d.skip() // </fault>
		d.skip() // </methodResponse>
		return
	}
	err = errors.New("xmlrpc: methodResponse has neither params nor fault")
	return
}
