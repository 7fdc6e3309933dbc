// Package soap builds SOAP 1.1/1.2 request envelopes and parses response
// envelopes, including WS-Security header blocks.
package soap

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Version selects the SOAP protocol version of an envelope.
type Version int

const (
	// V11 is SOAP 1.1, the default.
	V11 Version = iota + 1
	// V12 is SOAP 1.2.
	V12
)

// Envelope namespaces per version.
const (
	NamespaceV11 = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceV12 = "http://www.w3.org/2003/05/soap-envelope"
)

// EnvelopeNamespace returns the envelope namespace URI for the version.
func (v Version) EnvelopeNamespace() string {
	if v == V12 {
		return NamespaceV12
	}
	return NamespaceV11
}

// ContentType returns the request Content-Type header value for the version.
func (v Version) ContentType() string {
	if v == V12 {
		return "application/soap+xml;charset=UTF-8"
	}
	return "text/xml;charset=UTF-8"
}

// Envelope describes one outgoing SOAP request envelope.
type Envelope struct {
	Version     Version
	Namespace   string // target namespace of the message wrapper
	NamespaceID string // prefix for the target namespace, default "tns"
	MessageTag  string // local name of the message wrapper element
	Message     map[string]any
	RawBody     []byte // literal body content, used instead of Message when set

	// LowerCamelKeys converts snake_case message keys to lowerCamelCase
	// element names.
	LowerCamelKeys bool

	WSSE      *WSSE
	HeaderXML []string // additional literal header entries
}

// Build serializes the envelope. Message keys are written in sorted order so
// output is deterministic.
func (e *Envelope) Build() ([]byte, error) {
	nsID := e.NamespaceID
	if nsID == "" {
		nsID = "tns"
	}
	if e.MessageTag == "" {
		return nil, fmt.Errorf("soap: envelope has no message tag")
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="`)
	b.WriteString(e.Version.EnvelopeNamespace())
	b.WriteString(`"`)
	if e.Namespace != "" {
		b.WriteString(` xmlns:` + nsID + `="`)
		b.WriteString(escape(e.Namespace))
		b.WriteString(`"`)
	}
	b.WriteString(`>`)

	header := e.headerContent()
	if header != "" {
		b.WriteString(`<soapenv:Header>`)
		b.WriteString(header)
		b.WriteString(`</soapenv:Header>`)
	} else {
		b.WriteString(`<soapenv:Header/>`)
	}

	b.WriteString(`<soapenv:Body>`)
	if e.RawBody != nil {
		b.Write(e.RawBody)
	} else {
		tag := nsID + ":" + e.MessageTag
		if e.Namespace == "" {
			tag = e.MessageTag
		}
		b.WriteString(`<` + tag + `>`)
		if err := e.writeParams(&b, e.Message); err != nil {
			return nil, err
		}
		b.WriteString(`</` + tag + `>`)
	}
	b.WriteString(`</soapenv:Body>`)
	b.WriteString(`</soapenv:Envelope>`)

	return []byte(b.String()), nil
}

func (e *Envelope) headerContent() string {
	var b strings.Builder
	if e.WSSE != nil {
		b.WriteString(e.WSSE.HeaderXML())
	}
	for _, h := range e.HeaderXML {
		b.WriteString(h)
	}
	return b.String()
}

func (e *Envelope) writeParams(b *strings.Builder, params map[string]any) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := e.writeValue(b, k, params[k]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Envelope) writeValue(b *strings.Builder, key string, value any) error {
	name := key
	if e.LowerCamelKeys {
		name = lowerCamel(key)
	}

	switch v := value.(type) {
	case map[string]any:
		b.WriteString(`<` + name + `>`)
		if err := e.writeParams(b, v); err != nil {
			return err
		}
		b.WriteString(`</` + name + `>`)
	case []any:
		for _, item := range v {
			if err := e.writeValue(b, key, item); err != nil {
				return err
			}
		}
	case nil:
		b.WriteString(`<` + name + `/>`)
	default:
		b.WriteString(`<` + name + `>`)
		b.WriteString(escape(scalar(v)))
		b.WriteString(`</` + name + `>`)
	}
	return nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func escape(s string) string {
	var b strings.Builder
	// EscapeText only fails on a failing writer; strings.Builder never does.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// lowerCamel converts snake_case to lowerCamelCase: user_name → userName.
func lowerCamel(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
