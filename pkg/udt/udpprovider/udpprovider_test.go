package udpprovider

import (
	"context"
	"testing"
	"time"

	"github.com/archfabric/ugni-core/pkg/udt"
	"gotest.tools/v3/assert"
)

func mustNewProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New("127.0.0.1:0", 0, nil)
	assert.NilError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func waitCompleted(t *testing.T, p *Provider, want udt.PostID) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		id, ok, err := p.Probe(context.Background())
		assert.NilError(t, err)
		if ok {
			assert.Equal(t, id, want)
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for post %d to complete", want)
		case <-time.After(time.Millisecond):
		}
	}
}

// TestWildcardDoesNotSelfSend reproduces the scenario a single interface's
// own wildcard receive sits on: posting a pure receive (Type == HeaderEmpty,
// no payload) targeting the provider's own bound address must not put a
// datagram on the wire at all, let alone one that completes the wildcard
// receive itself.
func TestWildcardDoesNotSelfSend(t *testing.T) {
	p := mustNewProvider(t)

	var recvHeader udt.Header
	recvPayload := make([]byte, 64)
	err := p.Post(context.Background(), p.LocalAddr(), udt.AnyID, udt.Header{Type: udt.HeaderEmpty}, nil, &recvHeader, recvPayload)
	assert.NilError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, ok, err := p.Probe(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, !ok, "wildcard receive self-completed without any peer traffic")
}

// TestPeerDatagramMatchesWildcardReceive is the cross-process scenario
// cmd/udtdemo drives: a peer posts an active message to this provider's
// address while a wildcard receive is posted, and the datagram must be
// delivered into the wildcard slot and reported under its local post id
// (AnyID), not dropped for lack of a matching sender-chosen id.
func TestPeerDatagramMatchesWildcardReceive(t *testing.T) {
	server := mustNewProvider(t)
	client := mustNewProvider(t)

	var recvHeader udt.Header
	recvPayload := make([]byte, 64)
	err := server.Post(context.Background(), server.LocalAddr(), udt.AnyID, udt.Header{Type: udt.HeaderEmpty}, nil, &recvHeader, recvPayload)
	assert.NilError(t, err)

	sendHeader := udt.Header{Type: udt.HeaderPayload, AMID: 7, Length: 5}
	var clientRecvHeader udt.Header
	clientRecvPayload := make([]byte, 64)
	err = client.Post(context.Background(), server.LocalAddr(), udt.PostID(42), sendHeader, []byte("hello"), &clientRecvHeader, clientRecvPayload)
	assert.NilError(t, err)

	waitCompleted(t, server, udt.AnyID)
	assert.NilError(t, server.WaitByID(context.Background(), server.LocalAddr(), udt.AnyID))

	assert.Equal(t, recvHeader.Type, udt.HeaderPayload)
	assert.Equal(t, recvHeader.AMID, uint8(7))
	assert.Equal(t, string(recvPayload[:recvHeader.Length]), "hello")
}

// TestRxHeadroomReservedBeforePayload checks that incoming payload bytes
// land after the configured headroom, not at offset zero.
func TestRxHeadroomReservedBeforePayload(t *testing.T) {
	const headroom = 8
	server, err := New("127.0.0.1:0", headroom, nil)
	assert.NilError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	client := mustNewProvider(t)

	var recvHeader udt.Header
	recvPayload := make([]byte, headroom+64)
	for i := range recvPayload {
		recvPayload[i] = 0xFF
	}
	err = server.Post(context.Background(), server.LocalAddr(), udt.AnyID, udt.Header{Type: udt.HeaderEmpty}, nil, &recvHeader, recvPayload)
	assert.NilError(t, err)

	sendHeader := udt.Header{Type: udt.HeaderPayload, AMID: 1, Length: 2}
	var clientRecvHeader udt.Header
	clientRecvPayload := make([]byte, 64)
	err = client.Post(context.Background(), server.LocalAddr(), udt.PostID(1), sendHeader, []byte("hi"), &clientRecvHeader, clientRecvPayload)
	assert.NilError(t, err)

	waitCompleted(t, server, udt.AnyID)

	for i := 0; i < headroom; i++ {
		assert.Equal(t, recvPayload[i], byte(0xFF), "headroom byte %d was overwritten", i)
	}
	assert.Equal(t, string(recvPayload[headroom:headroom+2]), "hi")
}
