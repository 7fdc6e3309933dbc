package savon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/radar/savon/soap"
)

// testWSDL is a minimal WSDL 1.1 document for testing.
const testWSDL = `<?xml version="1.0" encoding="UTF-8"?>
<definitions name="ExampleService" targetNamespace="urn:example"
    xmlns="http://schemas.xmlsoap.org/wsdl/"
    xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap/"
    xmlns:tns="urn:example">
  <portType name="ExamplePortType">
    <operation name="Ping">
      <input message="tns:PingInput"/>
    </operation>
    <operation name="GetUser">
      <input message="tns:GetUserInput"/>
    </operation>
  </portType>
  <binding name="ExampleBinding" type="tns:ExamplePortType">
    <soap:binding style="document" transport="http://schemas.xmlsoap.org/soap/http"/>
    <operation name="Ping">
      <soap:operation soapAction="urn:example#Ping"/>
    </operation>
    <operation name="GetUser">
      <soap:operation soapAction="urn:example#GetUser"/>
    </operation>
  </binding>
  <service name="ExampleService">
    <port name="ExamplePort" binding="tns:ExampleBinding">
      <soap:address location="http://svc.example/service"/>
    </port>
  </service>
</definitions>`

const pingResponse = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">` +
	`<soapenv:Body><PingResponse><status>pong</status></PingResponse></soapenv:Body>` +
	`</soapenv:Envelope>`

const faultResponse = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">` +
	`<soapenv:Body><soapenv:Fault>` +
	`<faultcode>soapenv:Server</faultcode>` +
	`<faultstring>operation exploded</faultstring>` +
	`</soapenv:Fault></soapenv:Body>` +
	`</soapenv:Envelope>`

func writeWSDLFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "service.wsdl")
	if err := os.WriteFile(path, []byte(testWSDL), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func endpointClient(t *testing.T, endpoint string, opts ...Option) *Client {
	t.Helper()
	base := []Option{WithEndpoint(endpoint), WithNamespace("urn:example")}
	client, err := New(nil, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return client
}

func soapService(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func respondXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml;charset=UTF-8")
	w.Write([]byte(body))
}

// --- Construction ---

func TestNew_legacyCallShape(t *testing.T) {
	for _, globals := range []any{"service.wsdl", 42, []string{"x"}, map[string]any{"wsdl": "x"}} {
		_, err := New(globals)
		if err == nil {
			t.Fatalf("New(%T) = nil error, want initialization error", globals)
		}
		if !IsCode(err, ErrInitialization) {
			t.Errorf("New(%T) error = %v, want code %s", globals, err, ErrInitialization)
		}
	}
}

func TestNew_legacyCallShapeHint(t *testing.T) {
	_, err := New("http://svc.example/service?wsdl")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "WithWSDL") {
		t.Errorf("error %q carries no migration hint", err.Error())
	}
}

func TestNew_insufficientConfiguration(t *testing.T) {
	tests := []struct {
		name string
		opts *Options
	}{
		{"empty", &Options{}},
		{"endpoint only", &Options{Endpoint: "http://svc.example/"}},
		{"namespace only", &Options{Namespace: "urn:example"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsCode(err, ErrInvalidConfiguration) {
				t.Errorf("error = %v, want code %s", err, ErrInvalidConfiguration)
			}
		})
	}
}

func TestNew_nilGlobalsWithOptions(t *testing.T) {
	client, err := New(nil, WithEndpoint("http://svc.example/"), WithNamespace("urn:example"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if client.Contract().HasDocument {
		t.Error("contract claims a document that was never supplied")
	}
}

func TestNew_optionsDoNotMutateCallerValue(t *testing.T) {
	given := &Options{Endpoint: "http://svc.example/"}
	_, err := New(given, WithNamespace("urn:example"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if given.Namespace != "" {
		t.Errorf("caller options mutated: Namespace = %q", given.Namespace)
	}
}

func TestNew_verificationRequiresVerifier(t *testing.T) {
	_, err := New(&Options{
		Endpoint:  "http://svc.example/",
		Namespace: "urn:example",
		Security:  SecurityOptions{VerifyResponse: true},
	})
	if !IsCode(err, ErrInvalidConfiguration) {
		t.Errorf("error = %v, want code %s", err, ErrInvalidConfiguration)
	}
}

func TestNew_resolvesContractExactlyOnce(t *testing.T) {
	var fetches atomic.Int32
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		respondXML(w, testWSDL)
	})

	client, err := New(&Options{WSDL: server.URL})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if fetches.Load() != 1 {
		t.Fatalf("document fetched %d times during construction, want 1", fetches.Load())
	}

	for i := 0; i < 3; i++ {
		if _, err := client.Operations(); err != nil {
			t.Fatalf("Operations error: %v", err)
		}
		if _, err := client.ServiceName(); err != nil {
			t.Fatalf("ServiceName error: %v", err)
		}
	}
	if fetches.Load() != 1 {
		t.Errorf("document fetched %d times after introspection, want 1", fetches.Load())
	}
}

// --- Introspection ---

func TestOperations_missingContract(t *testing.T) {
	client := endpointClient(t, "http://svc.example/")

	_, err := client.Operations()
	if !IsCode(err, ErrMissingContract) {
		t.Errorf("Operations error = %v, want code %s", err, ErrMissingContract)
	}
	_, err = client.ServiceName()
	if !IsCode(err, ErrMissingContract) {
		t.Errorf("ServiceName error = %v, want code %s", err, ErrMissingContract)
	}
}

func TestOperations_fromDocument(t *testing.T) {
	client, err := New(&Options{WSDL: writeWSDLFile(t)})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	ops, err := client.Operations()
	if err != nil {
		t.Fatalf("Operations error: %v", err)
	}
	want := []string{"GetUser", "Ping"}
	if len(ops) != len(want) {
		t.Fatalf("Operations = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("Operations[%d] = %q, want %q", i, ops[i], want[i])
		}
	}

	name, err := client.ServiceName()
	if err != nil {
		t.Fatalf("ServiceName error: %v", err)
	}
	if name != "ExampleService" {
		t.Errorf("ServiceName = %q, want ExampleService", name)
	}
}

// --- Operation dispatch ---

func TestOperation_freshValuePerCall(t *testing.T) {
	client := endpointClient(t, "http://svc.example/")

	op1 := client.Operation("Ping")
	op2 := client.Operation("Ping")
	if op1 == op2 {
		t.Error("Operation returned the same value twice")
	}
	if op1.Name() != op2.Name() {
		t.Errorf("names differ: %q vs %q", op1.Name(), op2.Name())
	}
}

func TestOperation_soapActionFromContract(t *testing.T) {
	client, err := New(&Options{WSDL: writeWSDLFile(t)})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if got := client.Operation("Ping").SOAPAction(); got != "urn:example#Ping" {
		t.Errorf("SOAPAction = %q, want urn:example#Ping", got)
	}
	// Unknown operations fall back to their name.
	if got := client.Operation("Unknown").SOAPAction(); got != "Unknown" {
		t.Errorf("SOAPAction = %q, want Unknown", got)
	}
}

// --- Prepare ---

func TestPrepare_emptyOperation(t *testing.T) {
	client := endpointClient(t, "http://svc.example/")

	_, err := client.Prepare(context.Background(), "")
	if !IsCode(err, ErrInvalidArgument) {
		t.Errorf("Prepare error = %v, want code %s", err, ErrInvalidArgument)
	}
}

func TestPrepare_contractWithoutEndpoint(t *testing.T) {
	// A WSDL that declares no soap:address leaves the client without a
	// usable endpoint; that is a configuration problem, not a bad argument.
	withoutAddress := strings.Replace(testWSDL,
		`<soap:address location="http://svc.example/service"/>`, "", 1)
	path := filepath.Join(t.TempDir(), "no-address.wsdl")
	if err := os.WriteFile(path, []byte(withoutAddress), 0644); err != nil {
		t.Fatal(err)
	}

	client, err := New(&Options{WSDL: path})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	_, err = client.Prepare(context.Background(), "Ping")
	if !IsCode(err, ErrInvalidConfiguration) {
		t.Errorf("Prepare error = %v, want code %s", err, ErrInvalidConfiguration)
	}
}

func TestPrepare_buildsEnvelope(t *testing.T) {
	client := endpointClient(t, "http://svc.example/")

	req, err := client.Prepare(context.Background(), "Ping",
		Message(map[string]any{"name": "alice"}))
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}

	body := string(req.Body)
	if !strings.Contains(body, `<tns:Ping>`) {
		t.Errorf("body lacks message wrapper: %s", body)
	}
	if !strings.Contains(body, `<name>alice</name>`) {
		t.Errorf("body lacks encoded params: %s", body)
	}
	if !strings.Contains(body, `xmlns:tns="urn:example"`) {
		t.Errorf("body lacks target namespace: %s", body)
	}
	if got := req.Header.Get("Content-Type"); got != "text/xml;charset=UTF-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := req.Header.Get("SOAPAction"); got != `"Ping"` {
		t.Errorf("SOAPAction = %q, want quoted Ping", got)
	}
}

func TestPrepare_soap12Headers(t *testing.T) {
	client := endpointClient(t, "http://svc.example/", WithSOAPVersion(SOAP12))

	req, err := client.Prepare(context.Background(), "Ping")
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	ct := req.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/soap+xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(ct, `action="Ping"`) {
		t.Errorf("Content-Type %q lacks the action parameter", ct)
	}
	if req.Header.Get("SOAPAction") != "" {
		t.Error("SOAP 1.2 request carries a SOAPAction header")
	}
}

func TestPrepare_handleIsolation(t *testing.T) {
	client := endpointClient(t, "http://svc.example/", WithHeader("X-Ambient", "1"))

	req1, err := client.Prepare(context.Background(), "Ping")
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	req1.Header.Set("X-Custom-Auth", "token")
	req1.Body = []byte("replaced")

	req2, err := client.Prepare(context.Background(), "Ping")
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}

	if req2.Header.Get("X-Custom-Auth") != "" {
		t.Error("second handle inherited a mutation of the first")
	}
	if string(req2.Body) == "replaced" {
		t.Error("second handle shares the first handle's body")
	}
	if client.options.Headers.Get("X-Custom-Auth") != "" {
		t.Error("handle mutation leaked into the client configuration")
	}
	if req2.Header.Get("X-Ambient") != "1" {
		t.Error("ambient header missing from second handle")
	}
}

func TestPrepare_onPreparedHook(t *testing.T) {
	client := endpointClient(t, "http://svc.example/")

	var seen *PreparedRequest
	req, err := client.Prepare(context.Background(), "Ping",
		OnPrepared(func(r *PreparedRequest) { seen = r }))
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	if seen != req {
		t.Error("hook did not receive the prepared request before Prepare returned")
	}
}

func TestPrepare_callHeaderAndRawXML(t *testing.T) {
	client := endpointClient(t, "http://svc.example/")

	req, err := client.Prepare(context.Background(), "Ping",
		RawXML([]byte(`<custom>payload</custom>`)),
		CallHeader("X-Call", "one"))
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	if !strings.Contains(string(req.Body), "<custom>payload</custom>") {
		t.Errorf("raw body not used: %s", req.Body)
	}
	if req.Header.Get("X-Call") != "one" {
		t.Error("call header missing")
	}
}

// --- Finalize ---

func TestFinalize_withoutPrepare(t *testing.T) {
	client := endpointClient(t, "http://svc.example/")

	_, err := client.Finalize(context.Background(), nil)
	if !IsCode(err, ErrInvalidArgument) {
		t.Errorf("Finalize(nil) error = %v, want code %s", err, ErrInvalidArgument)
	}
}

func TestFinalize_consumesHandle(t *testing.T) {
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		respondXML(w, pingResponse)
	})
	client := endpointClient(t, server.URL)

	req, err := client.Prepare(context.Background(), "Ping")
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	if _, err := client.Finalize(context.Background(), req); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}

	_, err = client.Finalize(context.Background(), req)
	if !IsCode(err, ErrInvalidArgument) {
		t.Errorf("second Finalize error = %v, want code %s", err, ErrInvalidArgument)
	}
}

// flakyTransport fails the first exchange and delegates afterwards.
type flakyTransport struct {
	calls atomic.Int32
}

func (tr *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if tr.calls.Add(1) == 1 {
		return nil, errors.New("connection reset by peer")
	}
	return http.DefaultTransport.RoundTrip(r)
}

func TestFinalize_failedSendLeavesHandleUsable(t *testing.T) {
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		respondXML(w, pingResponse)
	})
	client := endpointClient(t, server.URL, WithAdapter(&flakyTransport{}))

	req, err := client.Prepare(context.Background(), "Ping")
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}

	_, err = client.Finalize(context.Background(), req)
	if err == nil {
		t.Fatal("expected a transport error on the first attempt")
	}
	if IsCode(err, ErrInvalidArgument) {
		t.Fatalf("transport failure surfaced as %v", err)
	}

	// The handle was not consumed by the failed send.
	resp, err := client.Finalize(context.Background(), req)
	if err != nil {
		t.Fatalf("retry Finalize error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("retry StatusCode = %d, want 200", resp.StatusCode)
	}

	// The successful retry consumed it.
	_, err = client.Finalize(context.Background(), req)
	if !IsCode(err, ErrInvalidArgument) {
		t.Errorf("third Finalize error = %v, want code %s", err, ErrInvalidArgument)
	}
}

func TestFinalize_propagatesCookies(t *testing.T) {
	var calls atomic.Int32
	var secondCookie atomic.Value
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		default:
			if c, err := r.Cookie("session"); err == nil {
				secondCookie.Store(c.Value)
			}
		}
		respondXML(w, pingResponse)
	})
	client := endpointClient(t, server.URL)

	req, err := client.Prepare(context.Background(), "Ping")
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	if _, err := client.Finalize(context.Background(), req); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}

	if _, err := client.Call(context.Background(), "Ping"); err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if got, _ := secondCookie.Load().(string); got != "abc123" {
		t.Errorf("second request cookie = %q, want abc123", got)
	}
}

func TestFinalize_mutatedRequestIsSent(t *testing.T) {
	var gotAuth atomic.Value
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("X-Custom-Auth"))
		respondXML(w, pingResponse)
	})
	client := endpointClient(t, server.URL)

	req, err := client.Prepare(context.Background(), "Ping")
	if err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	req.Header.Set("X-Custom-Auth", "scheme token=abc")

	if _, err := client.Finalize(context.Background(), req); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if got, _ := gotAuth.Load().(string); got != "scheme token=abc" {
		t.Errorf("X-Custom-Auth = %q, want the mutated value", got)
	}
}

// --- Verification ---

type staticVerifier struct {
	err   error
	calls atomic.Int32
}

func (v *staticVerifier) Verify(body []byte) error {
	v.calls.Add(1)
	return v.err
}

func TestFinalize_verificationFailure(t *testing.T) {
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		respondXML(w, pingResponse)
	})
	verifier := &staticVerifier{err: errors.New("bad signature")}
	client := endpointClient(t, server.URL, WithVerification(verifier))

	resp, err := client.Call(context.Background(), "Ping")
	if resp != nil {
		t.Error("response delivered despite failed verification")
	}
	if !IsCode(err, ErrVerificationFailed) {
		t.Fatalf("error = %v, want code %s", err, ErrVerificationFailed)
	}
	if !strings.Contains(errors.Unwrap(err).Error(), "bad signature") {
		t.Errorf("verification cause lost: %v", err)
	}
}

func TestFinalize_verificationSuccess(t *testing.T) {
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		respondXML(w, pingResponse)
	})
	verifier := &staticVerifier{}
	client := endpointClient(t, server.URL, WithVerification(verifier))

	resp, err := client.Call(context.Background(), "Ping")
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if resp == nil {
		t.Fatal("no response")
	}
	if verifier.calls.Load() != 1 {
		t.Errorf("verifier called %d times, want 1", verifier.calls.Load())
	}
}

// --- Call ---

func TestCall_success(t *testing.T) {
	var gotAction atomic.Value
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		gotAction.Store(r.Header.Get("SOAPAction"))
		respondXML(w, pingResponse)
	})

	client, err := New(&Options{WSDL: writeWSDLFile(t), Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	resp, err := client.Call(context.Background(), "Ping", Message(map[string]any{}))
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got, _ := gotAction.Load().(string); got != `"urn:example#Ping"` {
		t.Errorf("SOAPAction = %q, want the contract's action", got)
	}

	body, err := resp.Body()
	if err != nil {
		t.Fatalf("Body error: %v", err)
	}
	ping, ok := body["PingResponse"].(map[string]any)
	if !ok {
		t.Fatalf("PingResponse type = %T", body["PingResponse"])
	}
	if ping["status"] != "pong" {
		t.Errorf("status = %v, want pong", ping["status"])
	}
}

func TestCall_soapFault(t *testing.T) {
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml;charset=UTF-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(faultResponse))
	})
	client := endpointClient(t, server.URL)

	_, err := client.Call(context.Background(), "Ping")
	var fault *soap.Fault
	if !errors.As(err, &fault) {
		t.Fatalf("error = %v (%T), want *soap.Fault", err, err)
	}
	if fault.Code != "soapenv:Server" {
		t.Errorf("fault code = %q", fault.Code)
	}
	if fault.Reason != "operation exploded" {
		t.Errorf("fault reason = %q", fault.Reason)
	}
}

func TestCall_transportErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	client := endpointClient(t, endpoint)
	_, err := client.Call(context.Background(), "Ping")
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if e, ok := err.(*Error); ok {
		t.Errorf("transport failure wrapped into %v, want unchanged propagation", e)
	}
}

// --- BuildRequest ---

func TestBuildRequest_doesNotSend(t *testing.T) {
	var calls atomic.Int32
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respondXML(w, pingResponse)
	})
	client := endpointClient(t, server.URL)

	req, err := client.BuildRequest(context.Background(), "Ping")
	if err != nil {
		t.Fatalf("BuildRequest error: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("BuildRequest hit the network %d times", calls.Load())
	}

	// The built request is still sendable.
	if _, err := client.Finalize(context.Background(), req); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

// --- Metrics ---

func TestCall_recordsMetrics(t *testing.T) {
	server := soapService(t, func(w http.ResponseWriter, r *http.Request) {
		respondXML(w, pingResponse)
	})

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	client := endpointClient(t, server.URL, WithMetrics(metrics))

	if _, err := client.Call(context.Background(), "Ping"); err != nil {
		t.Fatalf("Call error: %v", err)
	}

	if got := testutil.ToFloat64(metrics.CallsTotal.WithLabelValues("Ping", "200")); got != 1 {
		t.Errorf("savon_calls_total{Ping,200} = %v, want 1", got)
	}
}
