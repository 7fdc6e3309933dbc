package savon

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radar/savon/soap"
)

// SOAPVersion selects the protocol version used for requests.
type SOAPVersion = soap.Version

// Supported protocol versions.
const (
	SOAP11 = soap.V11
	SOAP12 = soap.V12
)

// Verifier confirms a cryptographic signature on a received response body.
// See the signature package for reference implementations.
type Verifier interface {
	Verify(body []byte) error
}

// BasicAuth carries HTTP basic authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// WSSEAuth carries WS-Security UsernameToken credentials. Digest selects the
// PasswordDigest variant with nonce and created timestamp.
type WSSEAuth struct {
	Username string
	Password string
	Digest   bool
}

// SecurityOptions configures response post-processing. When VerifyResponse
// is set, a Verifier is required and every finalized response body is checked
// before it is delivered.
type SecurityOptions struct {
	VerifyResponse bool
	Verifier       Verifier
}

// Options is the client configuration. Each field is optional unless noted;
// validation requires either WSDL, or both Endpoint and Namespace. Options
// are immutable once a client is constructed: the client works on its own
// copy, and every prepared request gets a further independent snapshot.
type Options struct {
	// WSDL is the contract location: a local file path or an http(s) URL.
	WSDL string
	// Endpoint is the remote service address, required when WSDL is unset.
	// When set alongside WSDL it overrides the document's address.
	Endpoint string
	// Namespace is the target namespace, required alongside Endpoint when
	// WSDL is unset.
	Namespace string
	// NamespaceIdentifier is the prefix bound to the target namespace in
	// request envelopes. Defaults to "tns".
	NamespaceIdentifier string
	// SOAPVersion defaults to SOAP 1.1.
	SOAPVersion SOAPVersion

	// Adapter replaces the default HTTP transport when set.
	Adapter http.RoundTripper
	// OpenTimeout and ReadTimeout bound the exchange; their sum becomes the
	// HTTP client timeout.
	OpenTimeout time.Duration
	ReadTimeout time.Duration
	// Proxy is an optional proxy URL.
	Proxy string
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// Headers are added to every request.
	Headers http.Header

	BasicAuth *BasicAuth
	WSSEAuth  *WSSEAuth
	// WSSETimestamp adds a wsu:Timestamp block to the security header.
	WSSETimestamp bool
	// LowerCamelKeys converts snake_case message keys to lowerCamelCase
	// element names.
	LowerCamelKeys bool

	// Logger defaults to a nop logger.
	Logger *zap.Logger
	// Metrics enables call instrumentation when set.
	Metrics *Metrics

	Security SecurityOptions
}

// clone returns a structurally independent snapshot. Handles to external
// collaborators (Adapter, Logger, Metrics, Verifier) are shared by
// reference; everything the caller may mutate is copied.
func (o *Options) clone() *Options {
	c := *o
	if o.Headers != nil {
		c.Headers = o.Headers.Clone()
	}
	if o.BasicAuth != nil {
		ba := *o.BasicAuth
		c.BasicAuth = &ba
	}
	if o.WSSEAuth != nil {
		wa := *o.WSSEAuth
		c.WSSEAuth = &wa
	}
	return &c
}

func (o *Options) validate() error {
	if o.WSDL == "" && (o.Endpoint == "" || o.Namespace == "") {
		return NewInvalidConfigurationError()
	}
	if o.Security.VerifyResponse && o.Security.Verifier == nil {
		return &Error{
			Code:    ErrInvalidConfiguration,
			Message: "response verification is enabled but no verifier is configured",
		}
	}
	return nil
}

// wsse builds the security header config from the options, or nil when no
// WS-Security settings are present.
func (o *Options) wsse() *soap.WSSE {
	if o.WSSEAuth == nil && !o.WSSETimestamp {
		return nil
	}
	w := &soap.WSSE{Timestamp: o.WSSETimestamp}
	if o.WSSEAuth != nil {
		w.Username = o.WSSEAuth.Username
		w.Password = o.WSSEAuth.Password
		w.Digest = o.WSSEAuth.Digest
	}
	return w
}

// Option mutates the configuration before validation. Options are applied in
// order after the globals value, the equivalent of the configuration block
// of the original calling convention.
type Option func(*Options)

// WithWSDL sets the contract location.
func WithWSDL(location string) Option {
	return func(o *Options) { o.WSDL = location }
}

// WithEndpoint sets the remote service address.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) { o.Endpoint = endpoint }
}

// WithNamespace sets the target namespace.
func WithNamespace(ns string) Option {
	return func(o *Options) { o.Namespace = ns }
}

// WithNamespaceIdentifier sets the envelope prefix for the target namespace.
func WithNamespaceIdentifier(id string) Option {
	return func(o *Options) { o.NamespaceIdentifier = id }
}

// WithSOAPVersion selects the protocol version.
func WithSOAPVersion(v SOAPVersion) Option {
	return func(o *Options) { o.SOAPVersion = v }
}

// WithAdapter selects the HTTP execution strategy.
func WithAdapter(rt http.RoundTripper) Option {
	return func(o *Options) { o.Adapter = rt }
}

// WithTimeouts sets the open and read timeouts.
func WithTimeouts(open, read time.Duration) Option {
	return func(o *Options) {
		o.OpenTimeout = open
		o.ReadTimeout = read
	}
}

// WithProxy sets the proxy URL.
func WithProxy(proxy string) Option {
	return func(o *Options) { o.Proxy = proxy }
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = make(http.Header)
		}
		o.Headers.Set(key, value)
	}
}

// WithBasicAuth sets HTTP basic authentication credentials.
func WithBasicAuth(username, password string) Option {
	return func(o *Options) { o.BasicAuth = &BasicAuth{Username: username, Password: password} }
}

// WithWSSEAuth sets WS-Security UsernameToken credentials.
func WithWSSEAuth(username, password string, digest bool) Option {
	return func(o *Options) {
		o.WSSEAuth = &WSSEAuth{Username: username, Password: password, Digest: digest}
	}
}

// WithWSSETimestamp adds a wsu:Timestamp block to the security header.
func WithWSSETimestamp() Option {
	return func(o *Options) { o.WSSETimestamp = true }
}

// WithLowerCamelKeys converts snake_case message keys to lowerCamelCase.
func WithLowerCamelKeys() Option {
	return func(o *Options) { o.LowerCamelKeys = true }
}

// WithLogger sets the logger used by the client.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithMetrics enables call instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithVerification enables response signature verification using the given
// verifier.
func WithVerification(v Verifier) Option {
	return func(o *Options) {
		o.Security.VerifyResponse = true
		o.Security.Verifier = v
	}
}
