// Package wsdl resolves and parses WSDL 1.1 service descriptions, providing
// operation lookup and the endpoint/namespace metadata needed to build calls.
package wsdl

import "sort"

// Operation is one remote procedure described by the contract.
type Operation struct {
	Name       string
	SOAPAction string
}

// Contract is the resolved service description. A Contract without a document
// (resolved from an explicit endpoint/namespace pair) carries no operations
// and no service name; HasDocument distinguishes the two.
type Contract struct {
	HasDocument     bool
	ServiceName     string
	TargetNamespace string
	Endpoint        string

	operations map[string]Operation
}

// OperationNames returns all operation names, sorted.
func (c *Contract) OperationNames() []string {
	names := make([]string, 0, len(c.operations))
	for name := range c.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operation returns the named operation, or false if the document does not
// describe it.
func (c *Contract) Operation(name string) (Operation, bool) {
	op, ok := c.operations[name]
	return op, ok
}
