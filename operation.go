package savon

import "github.com/radar/savon/wsdl"

// Operation identifies one remote procedure bound to the client's contract.
// It is a call-scoped value: Client.Operation returns a fresh one on every
// call, it carries no state, and it is safe to discard after use. Whether
// the remote service actually exposes the operation is not checked here;
// unknown names surface as faults from the service.
type Operation struct {
	name     string
	contract *wsdl.Contract
	options  *Options
}

// Name returns the operation name.
func (o *Operation) Name() string {
	return o.name
}

// SOAPAction returns the action declared by the contract, falling back to
// the operation name when the document does not declare one.
func (o *Operation) SOAPAction() string {
	if op, ok := o.contract.Operation(o.name); ok && op.SOAPAction != "" {
		return op.SOAPAction
	}
	return o.name
}

// Endpoint returns the address calls to this operation are sent to.
func (o *Operation) Endpoint() string {
	if o.contract.Endpoint != "" {
		return o.contract.Endpoint
	}
	return o.options.Endpoint
}
