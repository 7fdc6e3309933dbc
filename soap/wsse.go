package soap

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WS-Security namespaces and type identifiers.
const (
	NamespaceWSSE = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NamespaceWSU  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"

	passwordTextType   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
	passwordDigestType = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest"
	nonceEncodingType  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
)

// timestampTTL is the validity window written into the wsu:Timestamp block.
const timestampTTL = 60 * time.Second

// WSSE describes the WS-Security header of a request: an optional
// UsernameToken (plain or digest password) and an optional Timestamp block.
type WSSE struct {
	Username  string
	Password  string
	Digest    bool
	Timestamp bool
}

// HeaderXML renders the wsse:Security header entry.
func (w *WSSE) HeaderXML() string {
	nonce := make([]byte, 16)
	// rand.Read never fails on supported platforms.
	_, _ = rand.Read(nonce)
	return w.headerXML(time.Now().UTC(), nonce, uuid.NewString(), uuid.NewString())
}

// headerXML renders with explicit time, nonce, and element IDs.
func (w *WSSE) headerXML(now time.Time, nonce []byte, tokenID, stampID string) string {
	created := now.Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(`<wsse:Security xmlns:wsse="` + NamespaceWSSE + `" xmlns:wsu="` + NamespaceWSU + `">`)

	if w.Timestamp {
		expires := now.Add(timestampTTL).Format(time.RFC3339)
		b.WriteString(`<wsu:Timestamp wsu:Id="Timestamp-` + stampID + `">`)
		b.WriteString(`<wsu:Created>` + created + `</wsu:Created>`)
		b.WriteString(`<wsu:Expires>` + expires + `</wsu:Expires>`)
		b.WriteString(`</wsu:Timestamp>`)
	}

	if w.Username != "" {
		b.WriteString(`<wsse:UsernameToken wsu:Id="UsernameToken-` + tokenID + `">`)
		b.WriteString(`<wsse:Username>` + escape(w.Username) + `</wsse:Username>`)
		if w.Digest {
			b.WriteString(`<wsse:Password Type="` + passwordDigestType + `">`)
			b.WriteString(passwordDigest(nonce, created, w.Password))
			b.WriteString(`</wsse:Password>`)
			b.WriteString(`<wsse:Nonce EncodingType="` + nonceEncodingType + `">`)
			b.WriteString(base64.StdEncoding.EncodeToString(nonce))
			b.WriteString(`</wsse:Nonce>`)
			b.WriteString(`<wsu:Created>` + created + `</wsu:Created>`)
		} else {
			b.WriteString(`<wsse:Password Type="` + passwordTextType + `">`)
			b.WriteString(escape(w.Password))
			b.WriteString(`</wsse:Password>`)
		}
		b.WriteString(`</wsse:UsernameToken>`)
	}

	b.WriteString(`</wsse:Security>`)
	return b.String()
}

// passwordDigest computes Base64(SHA-1(nonce + created + password)) per the
// UsernameToken profile.
func passwordDigest(nonce []byte, created, password string) string {
	h := sha1.New()
	h.Write(nonce)
	h.Write([]byte(created))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
