package soap

import (
	"strings"
	"testing"
	"time"
)

func build(t *testing.T, e *Envelope) string {
	t.Helper()
	out, err := e.Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return string(out)
}

// --- Envelope structure ---

func TestBuild_soap11Envelope(t *testing.T) {
	out := build(t, &Envelope{
		Version:    V11,
		Namespace:  "urn:example",
		MessageTag: "Ping",
	})

	if !strings.Contains(out, `xmlns:soapenv="`+NamespaceV11+`"`) {
		t.Errorf("missing 1.1 envelope namespace: %s", out)
	}
	if !strings.Contains(out, `xmlns:tns="urn:example"`) {
		t.Errorf("missing target namespace: %s", out)
	}
	if !strings.Contains(out, `<tns:Ping></tns:Ping>`) {
		t.Errorf("missing message wrapper: %s", out)
	}
	if !strings.Contains(out, `<soapenv:Header/>`) {
		t.Errorf("missing empty header: %s", out)
	}
}

func TestBuild_soap12Namespace(t *testing.T) {
	out := build(t, &Envelope{Version: V12, Namespace: "urn:example", MessageTag: "Ping"})
	if !strings.Contains(out, NamespaceV12) {
		t.Errorf("missing 1.2 envelope namespace: %s", out)
	}
}

func TestBuild_customNamespaceIdentifier(t *testing.T) {
	out := build(t, &Envelope{
		Version:     V11,
		Namespace:   "urn:example",
		NamespaceID: "ex",
		MessageTag:  "Ping",
	})
	if !strings.Contains(out, `<ex:Ping></ex:Ping>`) {
		t.Errorf("custom prefix not applied: %s", out)
	}
}

func TestBuild_noMessageTag(t *testing.T) {
	if _, err := (&Envelope{Version: V11}).Build(); err == nil {
		t.Error("Build accepted an envelope with no message tag")
	}
}

func TestBuild_rawBodyBypassesMessage(t *testing.T) {
	out := build(t, &Envelope{
		Version:    V11,
		Namespace:  "urn:example",
		MessageTag: "Ping",
		RawBody:    []byte("<lit:Req xmlns:lit=\"urn:lit\"/>"),
		Message:    map[string]any{"ignored": "yes"},
	})
	if !strings.Contains(out, `<lit:Req xmlns:lit="urn:lit"/>`) {
		t.Errorf("raw body not used: %s", out)
	}
	if strings.Contains(out, "ignored") {
		t.Errorf("message written alongside raw body: %s", out)
	}
}

// --- Message serialization ---

func TestBuild_sortedDeterministicParams(t *testing.T) {
	e := &Envelope{
		Version:    V11,
		Namespace:  "urn:example",
		MessageTag: "Create",
		Message: map[string]any{
			"zeta":  "last",
			"alpha": "first",
		},
	}
	out := build(t, e)
	if strings.Index(out, "<alpha>") > strings.Index(out, "<zeta>") {
		t.Errorf("params not in sorted order: %s", out)
	}
	if build(t, e) != out {
		t.Error("repeated builds differ")
	}
}

func TestBuild_valueKinds(t *testing.T) {
	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	out := build(t, &Envelope{
		Version:    V11,
		Namespace:  "urn:example",
		MessageTag: "Create",
		Message: map[string]any{
			"name":    "a < b & c",
			"active":  true,
			"count":   42,
			"ratio":   2.5,
			"when":    when,
			"note":    nil,
			"nested":  map[string]any{"inner": "v"},
			"repeats": []any{"x", "y"},
		},
	})

	cases := []string{
		`<name>a &lt; b &amp; c</name>`,
		`<active>true</active>`,
		`<count>42</count>`,
		`<ratio>2.5</ratio>`,
		`<when>2026-03-14T09:26:53Z</when>`,
		`<note/>`,
		`<nested><inner>v</inner></nested>`,
		`<repeats>x</repeats><repeats>y</repeats>`,
	}
	for _, want := range cases {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %s:\n%s", want, out)
		}
	}
}

func TestBuild_lowerCamelKeys(t *testing.T) {
	out := build(t, &Envelope{
		Version:        V11,
		Namespace:      "urn:example",
		MessageTag:     "Create",
		LowerCamelKeys: true,
		Message:        map[string]any{"user_name": "alice", "id": 1},
	})
	if !strings.Contains(out, `<userName>alice</userName>`) {
		t.Errorf("snake_case key not converted: %s", out)
	}
	if !strings.Contains(out, `<id>1</id>`) {
		t.Errorf("single-word key mangled: %s", out)
	}
}

func TestLowerCamel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"user_name", "userName"},
		{"a_b_c", "aBC"},
		{"already", "already"},
		{"trailing_", "trailing"},
	}
	for _, tt := range tests {
		if got := lowerCamel(tt.in); got != tt.want {
			t.Errorf("lowerCamel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Header entries ---

func TestBuild_literalHeaderEntries(t *testing.T) {
	out := build(t, &Envelope{
		Version:    V11,
		Namespace:  "urn:example",
		MessageTag: "Ping",
		HeaderXML:  []string{`<app:Token xmlns:app="urn:app">t</app:Token>`},
	})
	if !strings.Contains(out, `<soapenv:Header><app:Token`) {
		t.Errorf("literal header entry missing: %s", out)
	}
}
