// Package savon is a SOAP client. A Client resolves a service contract once
// at construction, from a WSDL document or an explicit endpoint/namespace
// pair, and invokes named remote operations against it. Besides the
// single-shot Call, a two-phase Prepare/Finalize protocol lets callers
// inspect and mutate the transport-ready request before it is sent.
package savon

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/radar/savon/internal/transport"
	"github.com/radar/savon/soap"
	"github.com/radar/savon/wsdl"
)

// Client is the invocation controller. Its contract and configuration are
// immutable after construction, so introspection and dispatch are safe for
// concurrent use; the cookie jar is the only shared mutable state and is
// synchronized internally.
type Client struct {
	options    *Options
	contract   *wsdl.Contract
	httpClient *http.Client
	jar        http.CookieJar
	logger     *zap.Logger
}

// New constructs a client. The globals value must be *Options, Options, or
// nil; anything else, in particular a bare WSDL location in the old calling
// convention, fails with an INITIALIZATION_ERROR. The opts are applied to
// the configuration before validation. On success the contract has been
// resolved, synchronously and exactly once for the life of the client.
func New(globals any, opts ...Option) (*Client, error) {
	return NewContext(context.Background(), globals, opts...)
}

// NewContext is New with a context governing contract resolution, which may
// fetch a remote document.
func NewContext(ctx context.Context, globals any, opts ...Option) (*Client, error) {
	options, err := coerceOptions(globals)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if err := options.validate(); err != nil {
		return nil, err
	}
	if options.SOAPVersion == 0 {
		options.SOAPVersion = SOAP11
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	httpClient, err := transport.NewHTTPClient(transport.Config{
		Adapter:            options.Adapter,
		OpenTimeout:        options.OpenTimeout,
		ReadTimeout:        options.ReadTimeout,
		Proxy:              options.Proxy,
		InsecureSkipVerify: options.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}

	contract, err := wsdl.Resolve(ctx, wsdl.Source{
		Location:   options.WSDL,
		Endpoint:   options.Endpoint,
		Namespace:  options.Namespace,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		options:    options,
		contract:   contract,
		httpClient: httpClient,
		jar:        jar,
		logger:     options.Logger,
	}
	c.logger.Debug("contract resolved",
		zap.Bool("document", contract.HasDocument),
		zap.String("service", contract.ServiceName),
		zap.String("endpoint", contract.Endpoint),
	)
	return c, nil
}

func coerceOptions(globals any) (*Options, error) {
	switch g := globals.(type) {
	case nil:
		return &Options{}, nil
	case *Options:
		if g == nil {
			return &Options{}, nil
		}
		return g.clone(), nil
	case Options:
		return g.clone(), nil
	default:
		return nil, NewInitializationError(globals)
	}
}

// Contract exposes the resolved contract, read-only.
func (c *Client) Contract() *wsdl.Contract {
	return c.contract
}

// Operations returns the sorted operation names of the contract. It fails
// with a MISSING_CONTRACT error when the client was configured without a
// WSDL document.
func (c *Client) Operations() ([]string, error) {
	if !c.contract.HasDocument {
		return nil, NewMissingContractError("operations")
	}
	return c.contract.OperationNames(), nil
}

// ServiceName returns the service name declared by the contract, with the
// same precondition as Operations.
func (c *Client) ServiceName() (string, error) {
	if !c.contract.HasDocument {
		return "", NewMissingContractError("service name")
	}
	return c.contract.ServiceName, nil
}

// Operation returns a fresh, call-scoped value for the named operation. It
// always succeeds; whether the service exposes the operation is decided by
// the service itself.
func (c *Client) Operation(name string) *Operation {
	return &Operation{name: name, contract: c.contract, options: c.options}
}

// Call invokes the named operation in a single phase: prepare, send, and
// post-process. It is Prepare followed by Finalize without exposing the
// prepared request.
func (c *Client) Call(ctx context.Context, operation string, opts ...LocalOption) (*Response, error) {
	req, err := c.Prepare(ctx, operation, opts...)
	if err != nil {
		return nil, err
	}
	return c.Finalize(ctx, req)
}

// BuildRequest builds the transport-ready request for the named operation
// without sending it, for callers who only want to inspect the payload. The
// returned request can still be passed to Finalize.
func (c *Client) BuildRequest(ctx context.Context, operation string, opts ...LocalOption) (*PreparedRequest, error) {
	return c.Prepare(ctx, operation, opts...)
}

// Prepare builds a transport-ready request for the named operation. The
// handle carries isolated copies of the client's HTTP, security, and general
// configuration: mutating it cannot affect the client or other handles. An
// OnPrepared hook, if given, runs synchronously before Prepare returns.
//
// Prepare does not touch any client state, so concurrent Prepare calls are
// safe; each caller finalizes its own handle.
func (c *Client) Prepare(ctx context.Context, operation string, opts ...LocalOption) (*PreparedRequest, error) {
	if operation == "" {
		return nil, NewArgumentError("prepare requires an operation name")
	}

	lo := applyLocals(opts)
	op := c.Operation(operation)
	snapshot := c.options.clone()

	endpoint := op.Endpoint()
	endpointURL, err := url.Parse(endpoint)
	if err != nil || endpoint == "" {
		return nil, &Error{
			Code:    ErrInvalidConfiguration,
			Message: "the contract does not provide a usable endpoint",
		}
	}

	messageTag := lo.messageTag
	if messageTag == "" {
		messageTag = operation
	}
	envelope := &soap.Envelope{
		Version:        snapshot.SOAPVersion,
		Namespace:      c.contract.TargetNamespace,
		NamespaceID:    snapshot.NamespaceIdentifier,
		MessageTag:     messageTag,
		Message:        lo.message,
		RawBody:        lo.rawXML,
		LowerCamelKeys: snapshot.LowerCamelKeys,
		WSSE:           snapshot.wsse(),
	}
	body, err := envelope.Build()
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	action := lo.soapAction
	if action == "" {
		action = op.SOAPAction()
	}
	if snapshot.SOAPVersion == SOAP12 {
		header.Set("Content-Type", snapshot.SOAPVersion.ContentType()+`;action="`+action+`"`)
	} else {
		header.Set("Content-Type", snapshot.SOAPVersion.ContentType())
		header.Set("SOAPAction", strconv.Quote(action))
	}
	for key, values := range snapshot.Headers {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	for key, values := range lo.headers {
		for _, v := range values {
			header.Set(key, v)
		}
	}
	if snapshot.BasicAuth != nil {
		carrier := &http.Request{Header: header}
		carrier.SetBasicAuth(snapshot.BasicAuth.Username, snapshot.BasicAuth.Password)
	}

	// Snapshot the ambient cookies for the endpoint into the request so the
	// handle stays independent of later jar changes.
	carrier := &http.Request{Header: header}
	for _, cookie := range c.jar.Cookies(endpointURL) {
		carrier.AddCookie(cookie)
	}

	httpClient, err := transport.NewHTTPClient(transport.Config{
		Adapter:            snapshot.Adapter,
		OpenTimeout:        snapshot.OpenTimeout,
		ReadTimeout:        snapshot.ReadTimeout,
		Proxy:              snapshot.Proxy,
		InsecureSkipVerify: snapshot.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}

	req := &PreparedRequest{
		Operation: operation,
		URL:       endpoint,
		Header:    header,
		Body:      body,
		client:    httpClient,
		security:  snapshot.Security,
	}

	c.logger.Debug("request prepared",
		zap.String("operation", operation),
		zap.String("endpoint", endpoint),
		zap.Int("body_bytes", len(body)),
	)

	if lo.onPrepared != nil {
		lo.onPrepared(req)
	}
	return req, nil
}

// Finalize executes a prepared exchange: it sends the request, propagates
// response cookies into the client's transport state, runs signature
// verification when the handle's security configuration requests it, and
// returns the response. A nil or already-finalized handle is an
// INVALID_ARGUMENT error; a fault response surfaces as a *soap.Fault error.
// Only a successful send consumes the handle, so a transport failure can be
// retried with the same prepared request.
func (c *Client) Finalize(ctx context.Context, req *PreparedRequest) (*Response, error) {
	if req == nil {
		return nil, NewArgumentError("finalize requires a prepared request; call Prepare first")
	}
	if req.consumed {
		return nil, NewArgumentError("the prepared request was already finalized")
	}

	start := time.Now()
	result, err := transport.Send(ctx, req.client, &transport.Request{
		Operation: req.Operation,
		URL:       req.URL,
		Header:    req.Header,
		Body:      req.Body,
	})
	elapsed := time.Since(start)
	if err != nil {
		// A failed send leaves the handle usable for a retry.
		c.observe(req.Operation, "error", elapsed)
		return nil, err
	}
	req.consumed = true
	c.observe(req.Operation, strconv.Itoa(result.StatusCode), elapsed)

	if len(result.Cookies) > 0 {
		if u, perr := url.Parse(req.URL); perr == nil {
			c.jar.SetCookies(u, result.Cookies)
		}
	}

	if req.security.VerifyResponse {
		if verr := req.security.Verifier.Verify(result.Body); verr != nil {
			if c.options.Metrics != nil {
				c.options.Metrics.VerificationFailuresTotal.Inc()
			}
			return nil, NewVerificationError(verr)
		}
	}

	if len(result.Body) > 0 {
		if _, perr := soap.ParseResponse(result.Body); perr != nil {
			var fault *soap.Fault
			if errors.As(perr, &fault) {
				return nil, fault
			}
			// Non-envelope bodies are left for the caller to inspect.
		}
	}

	c.logger.Debug("request finalized",
		zap.String("operation", req.Operation),
		zap.Int("status", result.StatusCode),
		zap.Duration("duration", elapsed),
	)

	return &Response{
		StatusCode: result.StatusCode,
		Header:     result.Header,
		Cookies:    result.Cookies,
		raw:        result.Body,
	}, nil
}

func (c *Client) observe(operation, status string, elapsed time.Duration) {
	m := c.options.Metrics
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(operation, status).Inc()
	m.CallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
