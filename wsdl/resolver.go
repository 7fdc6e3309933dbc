package wsdl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Source describes where to resolve a contract from. Location may be a local
// file path or an http(s) URL; when it is empty, Endpoint and Namespace are
// used to build a documentless Contract. HTTPClient is consulted only for
// remote locations and defaults to http.DefaultClient.
type Source struct {
	Location   string
	Endpoint   string
	Namespace  string
	HTTPClient *http.Client
}

// maxDocumentSize bounds remote document reads.
const maxDocumentSize = 10 << 20

// Resolve produces a Contract from the given source. Explicitly set endpoint
// and namespace values override what the document declares.
func Resolve(ctx context.Context, src Source) (*Contract, error) {
	if src.Location == "" {
		return &Contract{
			HasDocument:     false,
			Endpoint:        src.Endpoint,
			TargetNamespace: src.Namespace,
		}, nil
	}

	data, err := fetch(ctx, src)
	if err != nil {
		return nil, err
	}

	contract, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if src.Endpoint != "" {
		contract.Endpoint = src.Endpoint
	}
	if src.Namespace != "" {
		contract.TargetNamespace = src.Namespace
	}
	return contract, nil
}

func fetch(ctx context.Context, src Source) ([]byte, error) {
	if !strings.HasPrefix(src.Location, "http://") && !strings.HasPrefix(src.Location, "https://") {
		data, err := os.ReadFile(src.Location)
		if err != nil {
			return nil, fmt.Errorf("wsdl: reading %s: %w", src.Location, err)
		}
		return data, nil
	}

	client := src.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("wsdl: building request for %s: %w", src.Location, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wsdl: fetching %s: %w", src.Location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wsdl: fetching %s: unexpected status %d", src.Location, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("wsdl: reading %s: %w", src.Location, err)
	}
	return data, nil
}
