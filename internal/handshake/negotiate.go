// Package handshake validates WebSocket upgrade requests and computes the
// RFC 6455 accept value. It is pure: nothing here touches the registry or
// the transport.
package handshake

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// keyGUID is the fixed magic constant from RFC 6455 section 1.3. The accept
// value is the base64 SHA-1 digest of the client key concatenated with it;
// encoding the raw concatenation without the digest breaks every compliant
// client.
const keyGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// SupportedVersion is the only Sec-WebSocket-Version accepted. Other
// versions are rejected, never negotiated down.
const SupportedVersion = "13"

var (
	ErrNotWebSocket = errors.New("upgrade header does not name websocket")
	ErrNotUpgrade   = errors.New("connection header does not request an upgrade")
	ErrMissingKey   = errors.New("missing Sec-WebSocket-Key header")
	ErrBadVersion   = errors.New("unsupported Sec-WebSocket-Version")
	ErrExpired      = errors.New("handshake attempt exceeded its deadline")
)

// State tracks one in-flight upgrade attempt.
type State int

const (
	StatePending State = iota
	StateHeadersValidated
	StateAccepted
	StateRejected
)

// Negotiation is the transient record of a single upgrade attempt. It is
// never shared between goroutines and is discarded once the attempt
// resolves.
type Negotiation struct {
	state    State
	deadline time.Time
	accept   string
	reason   error
}

// New starts a negotiation in the pending state. A non-positive timeout
// means no deadline.
func New(timeout time.Duration) *Negotiation {
	n := &Negotiation{state: StatePending}
	if timeout > 0 {
		n.deadline = time.Now().Add(timeout)
	}
	return n
}

func (n *Negotiation) State() State { return n.state }

// Accept returns the computed accept value, empty unless the negotiation
// reached StateAccepted.
func (n *Negotiation) Accept() string { return n.accept }

// Reason returns the rejection cause, nil unless StateRejected.
func (n *Negotiation) Reason() error { return n.reason }

// Negotiate validates the protocol-required headers and, when they all
// hold, computes the accept value. Any violation rejects the attempt; a
// rejected or expired negotiation never transitions again.
func (n *Negotiation) Negotiate(h http.Header) (string, error) {
	if n.state != StatePending {
		return n.accept, n.reason
	}

	if !n.deadline.IsZero() && time.Now().After(n.deadline) {
		return n.reject(ErrExpired)
	}

	if err := validate(h); err != nil {
		return n.reject(err)
	}
	n.state = StateHeadersValidated

	n.accept = AcceptKey(h.Get("Sec-WebSocket-Key"))
	n.state = StateAccepted

	return n.accept, nil
}

func (n *Negotiation) reject(err error) (string, error) {
	n.state = StateRejected
	n.reason = err
	return "", err
}

func validate(h http.Header) error {
	if !strings.EqualFold(h.Get("Upgrade"), "websocket") {
		return ErrNotWebSocket
	}
	if !connectionRequestsUpgrade(h.Get("Connection")) {
		return ErrNotUpgrade
	}
	if strings.TrimSpace(h.Get("Sec-WebSocket-Key")) == "" {
		return ErrMissingKey
	}
	if h.Get("Sec-WebSocket-Version") != SupportedVersion {
		return ErrBadVersion
	}
	return nil
}

// connectionRequestsUpgrade matches "upgrade" within a comma-separated
// Connection header, e.g. "keep-alive, Upgrade".
func connectionRequestsUpgrade(value string) bool {
	for _, token := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
			return true
		}
	}
	return false
}

// AcceptKey derives the Sec-WebSocket-Accept value for a client key. The
// computation is deterministic and must match byte-for-byte what a
// compliant client expects.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + keyGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}
