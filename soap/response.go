package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Fault is a SOAP fault returned by the remote service. It covers both the
// 1.1 (faultcode/faultstring) and 1.2 (Code/Reason) shapes. It implements
// the error interface.
type Fault struct {
	Code   string
	Reason string
	Detail string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("soap fault (%s): %s", f.Code, f.Reason)
}

// ParseResponse extracts the Body payload of a response envelope into a map
// keyed by element local names. Text-only elements become strings, repeated
// siblings become []any. A Fault body is returned as a *Fault error; only a
// Fault element in the envelope's own namespace counts, so payload elements
// that happen to be named Fault stay payload.
func ParseResponse(data []byte) (map[string]any, error) {
	d := xml.NewDecoder(bytes.NewReader(data))

	body, err := findBody(d)
	if err != nil {
		return nil, err
	}
	envNS := body.Name.Space

	payload := make(map[string]any)
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("soap: parsing response body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(d)
			if err != nil {
				return nil, fmt.Errorf("soap: parsing response body: %w", err)
			}
			if t.Name.Local == "Fault" && t.Name.Space == envNS {
				return nil, faultFrom(child)
			}
			insertChild(payload, t.Name.Local, child)
		case xml.EndElement:
			return payload, nil
		}
	}
}

// findBody locates the Body element. Envelope and Body must carry a SOAP
// envelope namespace, and the Body's namespace must match the Envelope's.
func findBody(d *xml.Decoder) (xml.StartElement, error) {
	envNS := ""
	for {
		tok, err := d.Token()
		if err == io.EOF {
			if envNS == "" {
				return xml.StartElement{}, fmt.Errorf("soap: response has no envelope")
			}
			return xml.StartElement{}, fmt.Errorf("soap: response envelope has no body")
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("soap: parsing response: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch {
		case start.Name.Local == "Envelope" &&
			(start.Name.Space == NamespaceV11 || start.Name.Space == NamespaceV12):
			envNS = start.Name.Space
		case start.Name.Local == "Body" && envNS != "" && start.Name.Space == envNS:
			return start, nil
		}
	}
}

// parseElement consumes tokens until the current element closes. Elements
// with children yield map[string]any, text-only elements yield their
// trimmed text.
func parseElement(d *xml.Decoder) (any, error) {
	children := make(map[string]any)
	var text strings.Builder

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(d)
			if err != nil {
				return nil, err
			}
			insertChild(children, t.Name.Local, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(children) > 0 {
				return children, nil
			}
			return strings.TrimSpace(text.String()), nil
		}
	}
}

// insertChild adds a child value, collecting repeated siblings into a slice.
func insertChild(m map[string]any, key string, value any) {
	existing, ok := m[key]
	if !ok {
		m[key] = value
		return
	}
	if list, ok := existing.([]any); ok {
		m[key] = append(list, value)
		return
	}
	m[key] = []any{existing, value}
}

// faultFrom builds a Fault from the parsed Fault element.
func faultFrom(raw any) *Fault {
	m, ok := raw.(map[string]any)
	if !ok {
		return &Fault{Reason: fmt.Sprintf("%v", raw)}
	}

	f := &Fault{}

	// SOAP 1.1 shape.
	f.Code = textAt(m, "faultcode")
	f.Reason = textAt(m, "faultstring")
	f.Detail = textAt(m, "detail")

	// SOAP 1.2 shape.
	if f.Code == "" {
		f.Code = textAt(m, "Code", "Value")
	}
	if f.Reason == "" {
		f.Reason = textAt(m, "Reason", "Text")
	}
	if f.Detail == "" {
		f.Detail = textAt(m, "Detail")
	}

	return f
}

// textAt walks nested maps along the given path and returns the string leaf,
// or "" if the path does not lead to one.
func textAt(m map[string]any, path ...string) string {
	var current any = m
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current, ok = node[key]
		if !ok {
			return ""
		}
	}
	s, _ := current.(string)
	return s
}
