package wsdl

import (
	"encoding/xml"
	"fmt"
)

// Tags declared without a namespace match on local name only, which covers
// the wsdl: prefix variants; the soap/soap12 extension elements are matched
// by their namespace URIs.
type xmlDefinitions struct {
	XMLName         xml.Name       `xml:"definitions"`
	Name            string         `xml:"name,attr"`
	TargetNamespace string         `xml:"targetNamespace,attr"`
	PortTypes       []xmlPortType  `xml:"portType"`
	Bindings        []xmlBinding   `xml:"binding"`
	Services        []xmlService   `xml:"service"`
}

type xmlPortType struct {
	Name       string             `xml:"name,attr"`
	Operations []xmlPortOperation `xml:"operation"`
}

type xmlPortOperation struct {
	Name string `xml:"name,attr"`
}

type xmlBinding struct {
	Name       string                `xml:"name,attr"`
	Operations []xmlBindingOperation `xml:"operation"`
}

type xmlBindingOperation struct {
	Name   string            `xml:"name,attr"`
	SOAP   *xmlSOAPOperation `xml:"http://schemas.xmlsoap.org/wsdl/soap/ operation"`
	SOAP12 *xmlSOAPOperation `xml:"http://schemas.xmlsoap.org/wsdl/soap12/ operation"`
}

type xmlSOAPOperation struct {
	SOAPAction string `xml:"soapAction,attr"`
}

type xmlService struct {
	Name  string    `xml:"name,attr"`
	Ports []xmlPort `xml:"port"`
}

type xmlPort struct {
	Name      string      `xml:"name,attr"`
	Address   *xmlAddress `xml:"http://schemas.xmlsoap.org/wsdl/soap/ address"`
	Address12 *xmlAddress `xml:"http://schemas.xmlsoap.org/wsdl/soap12/ address"`
}

type xmlAddress struct {
	Location string `xml:"location,attr"`
}

// Parse parses a WSDL 1.1 document into a Contract. It extracts the service
// name, target namespace, operation names with their SOAP actions, and the
// endpoint from the first soap or soap12 address.
func Parse(data []byte) (*Contract, error) {
	var defs xmlDefinitions
	if err := xml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("wsdl: parsing document: %w", err)
	}
	if defs.XMLName.Local != "definitions" {
		return nil, fmt.Errorf("wsdl: unexpected root element %q", defs.XMLName.Local)
	}

	contract := &Contract{
		HasDocument:     true,
		ServiceName:     defs.Name,
		TargetNamespace: defs.TargetNamespace,
		operations:      make(map[string]Operation),
	}

	// Operations come from the port types; SOAP actions from the bindings.
	actions := make(map[string]string)
	for _, binding := range defs.Bindings {
		for _, op := range binding.Operations {
			switch {
			case op.SOAP != nil:
				actions[op.Name] = op.SOAP.SOAPAction
			case op.SOAP12 != nil:
				actions[op.Name] = op.SOAP12.SOAPAction
			}
		}
	}
	for _, pt := range defs.PortTypes {
		for _, op := range pt.Operations {
			contract.operations[op.Name] = Operation{
				Name:       op.Name,
				SOAPAction: actions[op.Name],
			}
		}
	}

	for _, svc := range defs.Services {
		if contract.ServiceName == "" {
			contract.ServiceName = svc.Name
		}
		for _, port := range svc.Ports {
			if contract.Endpoint != "" {
				continue
			}
			switch {
			case port.Address != nil:
				contract.Endpoint = port.Address.Location
			case port.Address12 != nil:
				contract.Endpoint = port.Address12.Location
			}
		}
	}

	return contract, nil
}
