package handshake_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-service/internal/handshake"
)

func upgradeHeaders() http.Header {
	h := http.Header{}
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	h.Set("Sec-WebSocket-Version", "13")
	return h
}

func TestNegotiate_RFC6455SampleKey(t *testing.T) {
	neg := handshake.New(time.Second)

	accept, err := neg.Negotiate(upgradeHeaders())
	require.NoError(t, err)

	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", accept)
	assert.Equal(t, handshake.StateAccepted, neg.State())
	assert.Equal(t, accept, neg.Accept())
}

func TestAcceptKey_Deterministic(t *testing.T) {
	key := "dGhlIHNhbXBsZSBub25jZQ=="

	first := handshake.AcceptKey(key)
	second := handshake.AcceptKey(key)

	assert.Equal(t, first, second)
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", first)
}

func TestNegotiate_RejectsBadHeaders(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(http.Header)
		wantErr error
	}{
		{
			name:    "wrong upgrade target",
			mutate:  func(h http.Header) { h.Set("Upgrade", "h2c") },
			wantErr: handshake.ErrNotWebSocket,
		},
		{
			name:    "missing upgrade header",
			mutate:  func(h http.Header) { h.Del("Upgrade") },
			wantErr: handshake.ErrNotWebSocket,
		},
		{
			name:    "connection without upgrade directive",
			mutate:  func(h http.Header) { h.Set("Connection", "keep-alive") },
			wantErr: handshake.ErrNotUpgrade,
		},
		{
			name:    "missing key",
			mutate:  func(h http.Header) { h.Del("Sec-WebSocket-Key") },
			wantErr: handshake.ErrMissingKey,
		},
		{
			name:    "blank key",
			mutate:  func(h http.Header) { h.Set("Sec-WebSocket-Key", "   ") },
			wantErr: handshake.ErrMissingKey,
		},
		{
			name:    "older protocol version",
			mutate:  func(h http.Header) { h.Set("Sec-WebSocket-Version", "8") },
			wantErr: handshake.ErrBadVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := upgradeHeaders()
			tt.mutate(h)

			neg := handshake.New(time.Second)
			accept, err := neg.Negotiate(h)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, accept)
			assert.Equal(t, handshake.StateRejected, neg.State())
			assert.ErrorIs(t, neg.Reason(), tt.wantErr)
		})
	}
}

func TestNegotiate_MixedCaseAndListHeaders(t *testing.T) {
	h := upgradeHeaders()
	h.Set("Upgrade", "WebSocket")
	h.Set("Connection", "keep-alive, Upgrade")

	neg := handshake.New(time.Second)
	_, err := neg.Negotiate(h)

	require.NoError(t, err)
	assert.Equal(t, handshake.StateAccepted, neg.State())
}

func TestNegotiate_DeadlineExpired(t *testing.T) {
	neg := handshake.New(time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	_, err := neg.Negotiate(upgradeHeaders())

	assert.ErrorIs(t, err, handshake.ErrExpired)
	assert.Equal(t, handshake.StateRejected, neg.State())
}

func TestNegotiate_RejectedStateIsTerminal(t *testing.T) {
	h := upgradeHeaders()
	h.Set("Sec-WebSocket-Version", "8")

	neg := handshake.New(time.Second)
	_, err := neg.Negotiate(h)
	require.ErrorIs(t, err, handshake.ErrBadVersion)

	// Valid headers after a rejection must not resurrect the attempt.
	accept, err := neg.Negotiate(upgradeHeaders())
	assert.ErrorIs(t, err, handshake.ErrBadVersion)
	assert.Empty(t, accept)
	assert.Equal(t, handshake.StateRejected, neg.State())
}
