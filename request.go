package savon

import "net/http"

// PreparedRequest is a built, not-yet-sent exchange. URL, Header, and Body
// may be mutated freely before Finalize, e.g. to inject a custom
// authentication header or replace the payload; the handle owns isolated
// copies of the client's transport and security configuration, so such
// mutation affects neither the client nor other handles.
type PreparedRequest struct {
	Operation string
	URL       string
	Header    http.Header
	Body      []byte

	client   *http.Client
	security SecurityOptions
	consumed bool
}

// locals are the per-call settings collected from LocalOption values.
type locals struct {
	message    map[string]any
	messageTag string
	soapAction string
	rawXML     []byte
	headers    http.Header
	onPrepared func(*PreparedRequest)
}

// LocalOption configures a single call.
type LocalOption func(*locals)

func applyLocals(opts []LocalOption) *locals {
	lo := &locals{}
	for _, opt := range opts {
		if opt != nil {
			opt(lo)
		}
	}
	return lo
}

// Message sets the request parameters encoded into the message body.
func Message(params map[string]any) LocalOption {
	return func(l *locals) { l.message = params }
}

// MessageTag overrides the message wrapper element name, which defaults to
// the operation name.
func MessageTag(tag string) LocalOption {
	return func(l *locals) { l.messageTag = tag }
}

// SOAPAction overrides the action declared by the contract.
func SOAPAction(action string) LocalOption {
	return func(l *locals) { l.soapAction = action }
}

// RawXML replaces the encoded message with literal body content.
func RawXML(body []byte) LocalOption {
	return func(l *locals) { l.rawXML = body }
}

// CallHeader adds a header to this call only.
func CallHeader(key, value string) LocalOption {
	return func(l *locals) {
		if l.headers == nil {
			l.headers = make(http.Header)
		}
		l.headers.Set(key, value)
	}
}

// OnPrepared registers a hook invoked synchronously with the built request
// before Prepare returns, for callers that post-process every request the
// same way.
func OnPrepared(fn func(*PreparedRequest)) LocalOption {
	return func(l *locals) { l.onPrepared = fn }
}
