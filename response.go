package savon

import (
	"net/http"

	"github.com/radar/savon/soap"
)

// Response is the result of finalizing an invocation: the received payload
// plus transport metadata. Fault responses never produce a Response; they
// surface as a *soap.Fault error from Call or Finalize.
type Response struct {
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie

	raw []byte
}

// XML returns the raw response body.
func (r *Response) XML() []byte {
	return r.raw
}

// Body parses the response envelope and returns the Body payload keyed by
// element local names.
func (r *Response) Body() (map[string]any, error) {
	return soap.ParseResponse(r.raw)
}
